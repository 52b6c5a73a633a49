// Package account holds the account profile and quota value types.
package account

// PointsPerConversion is the smallest block of fidelity points the service
// converts into traffic.
const PointsPerConversion = 1000

// Profile is the subset of the user endpoint the client displays.
type Profile struct {
	Username   string
	Email      string
	Points     int64
	Type       string // "premium" or "free"
	Expiration string // RFC 3339, empty when unknown
}

// ConvertiblePoints returns the points that can be converted now.
func (p Profile) ConvertiblePoints() int64 {
	if p.Points <= 0 {
		return 0
	}
	return p.Points / PointsPerConversion * PointsPerConversion
}

// RemainingPoints returns the points left over after conversion.
func (p Profile) RemainingPoints() int64 {
	if p.Points <= 0 {
		return 0
	}
	return p.Points % PointsPerConversion
}

// IsPremium reports whether the account type is premium.
func (p Profile) IsPremium() bool {
	return p.Type == "premium"
}

// Quota is an account-wide traffic allowance.
type Quota struct {
	UsedBytes  int64
	LimitBytes int64
	LeftBytes  int64
}

// NewQuota derives LeftBytes from used and limit, floored at zero.
func NewQuota(used, limit int64) Quota {
	left := limit - used
	if left < 0 {
		left = 0
	}
	return Quota{UsedBytes: used, LimitBytes: limit, LeftBytes: left}
}

// UsedPercent returns the share of the limit consumed.
func (q Quota) UsedPercent() float64 {
	if q.LimitBytes <= 0 {
		return 0
	}
	return float64(q.UsedBytes) / float64(q.LimitBytes) * 100
}
