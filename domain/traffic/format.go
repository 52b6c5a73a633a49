package traffic

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// FormatBytes renders a byte count in decimal units ("0 B", "1.5 GB").
func FormatBytes(n int64) string {
	if n <= 0 {
		return "0 B"
	}
	return humanize.Bytes(uint64(n))
}

// FormatGB renders a GB quantity with one decimal.
func FormatGB(gb float64) string {
	return fmt.Sprintf("%.1f GB", gb)
}
