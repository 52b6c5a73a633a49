package traffic

import "sort"

// BytesPerGB converts byte counts into the GB unit used by host quotas.
const BytesPerGB = 1073741824.0

// Quota types reported by the per-host traffic endpoint.
const (
	QuotaGigabytes = "gigabytes"
	QuotaLinks     = "links"
)

// HostTraffic is the cumulative usage of one hoster (value type).
// For link-quota hosts UsedGB is a percentage and LimitGB is 100.
type HostTraffic struct {
	Host    string
	UsedGB  float64
	LimitGB float64
}

// UsedPercent returns UsedGB as a share of LimitGB, or 0 without a limit.
func (h HostTraffic) UsedPercent() float64 {
	if h.LimitGB <= 0 {
		return 0
	}
	return h.UsedGB / h.LimitGB * 100
}

// SortHosts orders hosts by UsedGB descending, ties by host name.
func SortHosts(hosts []HostTraffic) {
	sort.SliceStable(hosts, func(i, j int) bool {
		if hosts[i].UsedGB != hosts[j].UsedGB {
			return hosts[i].UsedGB > hosts[j].UsedGB
		}
		return hosts[i].Host < hosts[j].Host
	})
}

// hostFromQuota normalizes one per-host record. ok is false when the
// record must be dropped.
func hostFromQuota(host, quotaType string, bytes, links, limit float64) (HostTraffic, bool) {
	switch quotaType {
	case QuotaGigabytes:
		used := bytes / BytesPerGB
		if used < 0 {
			used = 0
		}
		if limit < 0 {
			limit = 0
		}
		if used > 0 || limit > 0 {
			return HostTraffic{Host: host, UsedGB: used, LimitGB: limit}, true
		}
	case QuotaLinks:
		if links > 0 || limit > 0 {
			var pct float64
			if limit > 0 && links > 0 {
				pct = links / limit * 100
			}
			return HostTraffic{Host: host, UsedGB: pct, LimitGB: 100}, true
		}
	}
	return HostTraffic{}, false
}
