package traffic

import (
	"sort"
	"time"
)

// RecordTypeDownload is the only record type produced by the demo generator.
const RecordTypeDownload = "download"

// DefaultDayHost labels a day that carries a total but no host breakdown.
const DefaultDayHost = "Real-Debrid"

// DailyRecord is one day of synthetic traffic (value type).
type DailyRecord struct {
	Date  string // yyyy-MM-dd
	Bytes int64
	Host  string
	Type  string
}

// DayHost is one hoster's share of a day.
type DayHost struct {
	Name  string
	Bytes int64
}

// Day is the per-host breakdown of one day of traffic.
type Day struct {
	Date       string
	Hosts      []DayHost
	TotalBytes int64
}

// BucketRecords sums record bytes into every window that contains the
// record's date, parsed in now's location. Records with unparseable dates
// are skipped. Every slot of the returned summary is resolved.
// This is a PURE function.
func BucketRecords(records []DailyRecord, now time.Time) Summary {
	windows := Windows(now)
	var totals [labelCount]int64

	for _, r := range records {
		day, err := time.ParseInLocation(DateLayout, r.Date, now.Location())
		if err != nil {
			continue
		}
		for _, w := range windows {
			if w.Contains(day) {
				totals[w.Label] += r.Bytes
			}
		}
	}

	var s Summary
	for _, l := range Labels() {
		s.Set(l, totals[l])
	}
	return s
}

// SortDays orders days newest first and each day's hosts by bytes descending.
func SortDays(days []Day) {
	for i := range days {
		hosts := days[i].Hosts
		sort.SliceStable(hosts, func(a, b int) bool {
			if hosts[a].Bytes != hosts[b].Bytes {
				return hosts[a].Bytes > hosts[b].Bytes
			}
			return hosts[a].Name < hosts[b].Name
		})
	}
	sort.SliceStable(days, func(i, j int) bool {
		return days[i].Date > days[j].Date
	})
}

// TotalBytes sums the totals of days.
func TotalBytes(days []Day) int64 {
	var total int64
	for _, d := range days {
		total += d.TotalBytes
	}
	return total
}
