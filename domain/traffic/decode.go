package traffic

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrMalformed wraps every structural decode failure.
var ErrMalformed = errors.New("malformed traffic payload")

// dayPayload is one entry of the traffic/details response.
type dayPayload struct {
	Bytes json.RawMessage            `json:"bytes"`
	Hosts map[string]json.RawMessage `json:"hosts"`
}

// hostPayload is one entry of the traffic response.
type hostPayload struct {
	Type  *string         `json:"type"`
	Bytes json.RawMessage `json:"bytes"`
	Links json.RawMessage `json:"links"`
	Limit json.RawMessage `json:"limit"`
	Left  json.RawMessage `json:"left"`
}

// DecodeDetailsTotal sums the bytes of every day in a traffic/details
// response. A day's direct "bytes" value wins; without it the "hosts"
// breakdown is summed.
// This is a PURE function.
func DecodeDetailsTotal(data []byte) (int64, error) {
	days, err := decodeObject(data)
	if err != nil {
		return 0, err
	}

	var total int64
	for date, raw := range days {
		if !isObject(raw) {
			continue
		}
		var day dayPayload
		if err := json.Unmarshal(raw, &day); err != nil {
			return 0, fmt.Errorf("%w: day %s: %v", ErrMalformed, date, err)
		}

		direct, present, err := decodeInt64(day.Bytes)
		if err != nil {
			return 0, fmt.Errorf("day %s: %w", date, err)
		}
		if present {
			if total, err = addBytes(total, direct); err != nil {
				return 0, fmt.Errorf("day %s: %w", date, err)
			}
			continue
		}

		hosts, err := decodeDayHosts(day.Hosts)
		if err != nil {
			return 0, fmt.Errorf("day %s: %w", date, err)
		}
		for _, h := range hosts {
			if total, err = addBytes(total, h.Bytes); err != nil {
				return 0, fmt.Errorf("day %s: %w", date, err)
			}
		}
	}
	return total, nil
}

// DecodeDays decodes a traffic/details response into per-day host
// breakdowns. Days whose hosts carry no bytes fall back to the direct
// "bytes" value under DefaultDayHost; days with a zero total are dropped.
// This is a PURE function.
func DecodeDays(data []byte) ([]Day, error) {
	days, err := decodeObject(data)
	if err != nil {
		return nil, err
	}

	out := make([]Day, 0, len(days))
	for date, raw := range days {
		if !isObject(raw) {
			continue
		}
		var payload dayPayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, fmt.Errorf("%w: day %s: %v", ErrMalformed, date, err)
		}

		hosts, err := decodeDayHosts(payload.Hosts)
		if err != nil {
			return nil, fmt.Errorf("day %s: %w", date, err)
		}
		day := Day{Date: date, Hosts: hosts}
		for _, h := range hosts {
			if day.TotalBytes, err = addBytes(day.TotalBytes, h.Bytes); err != nil {
				return nil, fmt.Errorf("day %s: %w", date, err)
			}
		}

		if day.TotalBytes == 0 {
			direct, present, err := decodeInt64(payload.Bytes)
			if err != nil {
				return nil, fmt.Errorf("day %s: %w", date, err)
			}
			if present && direct > 0 {
				day.Hosts = []DayHost{{Name: DefaultDayHost, Bytes: direct}}
				day.TotalBytes = direct
			}
		}

		if day.TotalBytes > 0 {
			out = append(out, day)
		}
	}

	SortDays(out)
	return out, nil
}

// DecodeHosts decodes the per-host traffic response into a sorted list.
// Records with an unknown or missing type, or that are not objects, are
// dropped.
// This is a PURE function.
func DecodeHosts(data []byte) ([]HostTraffic, error) {
	records, err := decodeObject(data)
	if err != nil {
		return nil, err
	}

	hosts := make([]HostTraffic, 0, len(records))
	for name, raw := range records {
		if !isObject(raw) {
			continue
		}
		var rec hostPayload
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("%w: host %s: %v", ErrMalformed, name, err)
		}
		if rec.Type == nil {
			continue
		}

		var usedBytes, links, limit float64
		switch *rec.Type {
		case QuotaGigabytes:
			if usedBytes, _, err = decodeFloat(rec.Bytes); err != nil {
				return nil, fmt.Errorf("host %s: %w", name, err)
			}
		case QuotaLinks:
			if links, _, err = decodeFloat(rec.Links); err != nil {
				return nil, fmt.Errorf("host %s: %w", name, err)
			}
		default:
			continue
		}
		if limit, _, err = decodeFloat(rec.Limit); err != nil {
			return nil, fmt.Errorf("host %s: %w", name, err)
		}

		if h, ok := hostFromQuota(name, *rec.Type, usedBytes, links, limit); ok {
			hosts = append(hosts, h)
		}
	}

	SortHosts(hosts)
	return hosts, nil
}

// decodeObject decodes a top-level map. The API encodes an empty map as
// [], so an empty array and null decode as an empty map.
func decodeObject(data []byte) (map[string]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if isEmptyMap(trimmed) {
		return map[string]json.RawMessage{}, nil
	}
	if !isObject(trimmed) {
		return nil, fmt.Errorf("%w: top-level value is not an object", ErrMalformed)
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return m, nil
}

func decodeDayHosts(raw map[string]json.RawMessage) ([]DayHost, error) {
	hosts := make([]DayHost, 0, len(raw))
	for name, entry := range raw {
		if !isObject(entry) {
			continue
		}
		var h struct {
			Bytes json.RawMessage `json:"bytes"`
		}
		if err := json.Unmarshal(entry, &h); err != nil {
			return nil, fmt.Errorf("%w: host %s: %v", ErrMalformed, name, err)
		}
		n, present, err := decodeInt64(h.Bytes)
		if err != nil {
			return nil, fmt.Errorf("host %s: %w", name, err)
		}
		if present {
			hosts = append(hosts, DayHost{Name: name, Bytes: n})
		}
	}
	return hosts, nil
}

// decodeInt64 normalizes a byte count. Variants are tried in a fixed
// order: integer literal (int64, then int - identical in Go), floating
// literal (truncated), numeric string. present is false for a missing or
// null value.
func decodeInt64(raw json.RawMessage) (n int64, present bool, err error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, false, nil
	}

	switch {
	case isNumberStart(raw[0]):
		lit := string(raw)
		if n, err := strconv.ParseInt(lit, 10, 64); err == nil {
			return checkNonNegative(n)
		}
		f, err := strconv.ParseFloat(lit, 64)
		if err != nil || math.IsNaN(f) || f >= math.MaxInt64 || f <= math.MinInt64 {
			return 0, true, fmt.Errorf("%w: bytes %s is not a usable number", ErrMalformed, lit)
		}
		return checkNonNegative(int64(f))
	case raw[0] == '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, true, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return 0, true, fmt.Errorf("%w: bytes %q is not an integer", ErrMalformed, s)
		}
		return checkNonNegative(n)
	default:
		return 0, true, fmt.Errorf("%w: bytes has unsupported encoding %s", ErrMalformed, truncate(raw))
	}
}

// decodeFloat normalizes a quota field: number or numeric string.
func decodeFloat(raw json.RawMessage) (f float64, present bool, err error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, false, nil
	}

	lit := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &lit); err != nil {
			return 0, true, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		lit = strings.TrimSpace(lit)
	} else if !isNumberStart(raw[0]) {
		return 0, true, fmt.Errorf("%w: value has unsupported encoding %s", ErrMalformed, truncate(raw))
	}

	f, err = strconv.ParseFloat(lit, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, true, fmt.Errorf("%w: %q is not a number", ErrMalformed, lit)
	}
	return f, true, nil
}

func checkNonNegative(n int64) (int64, bool, error) {
	if n < 0 {
		return 0, true, fmt.Errorf("%w: negative byte count %d", ErrMalformed, n)
	}
	return n, true, nil
}

func isEmptyMap(raw []byte) bool {
	if bytes.Equal(raw, []byte("null")) {
		return true
	}
	if len(raw) < 2 || raw[0] != '[' || raw[len(raw)-1] != ']' {
		return false
	}
	return len(bytes.TrimSpace(raw[1:len(raw)-1])) == 0
}

// addBytes sums byte counts, failing instead of wrapping on overflow.
func addBytes(total, n int64) (int64, error) {
	if n > math.MaxInt64-total {
		return 0, fmt.Errorf("%w: byte total overflows int64", ErrMalformed)
	}
	return total + n, nil
}

func isObject(raw []byte) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}

func isNumberStart(c byte) bool {
	return c == '-' || (c >= '0' && c <= '9')
}

func truncate(raw []byte) string {
	if len(raw) > 32 {
		return string(raw[:32]) + "..."
	}
	return string(raw)
}
