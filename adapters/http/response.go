package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rdmonitor/rdmon/app"
	"github.com/rdmonitor/rdmon/domain/traffic"
)

// WindowResponse is one slot of the rolling summary.
type WindowResponse struct {
	Label     string `json:"label"`
	Title     string `json:"title"`
	State     string `json:"state"`
	Bytes     int64  `json:"bytes"`
	Formatted string `json:"formatted"`
	Error     string `json:"error,omitempty"`
}

// HostResponse is one hoster's cumulative usage.
type HostResponse struct {
	Host        string  `json:"host"`
	UsedGB      float64 `json:"used_gb"`
	LimitGB     float64 `json:"limit_gb"`
	UsedPercent float64 `json:"used_percent"`
}

// HostsResponse is the host list of the current cycle.
type HostsResponse struct {
	Resolved bool           `json:"resolved"`
	Hosts    []HostResponse `json:"hosts"`
	Error    string         `json:"error,omitempty"`
}

// TrafficResponse is the presentation view of the current cycle.
type TrafficResponse struct {
	Cycle     uint64           `json:"cycle"`
	TraceID   string           `json:"trace_id,omitempty"`
	Mode      string           `json:"mode"`
	StartedAt *time.Time       `json:"started_at,omitempty"`
	UpdatedAt *time.Time       `json:"updated_at,omitempty"`
	Version   uint64           `json:"version"`
	Loading   bool             `json:"loading"`
	Windows   []WindowResponse `json:"windows"`
	Hosts     HostsResponse    `json:"hosts"`
	LastError string           `json:"last_error,omitempty"`
}

// RefreshResponse acknowledges a started cycle.
type RefreshResponse struct {
	Cycle      uint64           `json:"cycle"`
	TraceID    string           `json:"trace_id"`
	Mode       string           `json:"mode"`
	// Superseded is set when a newer cycle replaced this one before it
	// finished; Traffic is then omitted.
	Superseded bool             `json:"superseded,omitempty"`
	Traffic    *TrafficResponse `json:"traffic,omitempty"`
}

// DayResponse is one day of the details breakdown.
type DayResponse struct {
	Date       string            `json:"date"`
	TotalBytes int64             `json:"total_bytes"`
	Formatted  string            `json:"formatted"`
	Hosts      []DayHostResponse `json:"hosts"`
}

// DayHostResponse is one hoster's share of a day.
type DayHostResponse struct {
	Name  string `json:"name"`
	Bytes int64  `json:"bytes"`
}

// DetailsResponse is the last-31-days breakdown.
type DetailsResponse struct {
	Mode       string        `json:"mode"`
	Start      string        `json:"start"`
	End        string        `json:"end"`
	TotalBytes int64         `json:"total_bytes"`
	Formatted  string        `json:"formatted"`
	Days       []DayResponse `json:"days"`
}

// ConnectionResponse is the outcome of the self-test.
type ConnectionResponse struct {
	Connected bool             `json:"connected"`
	Demo      bool             `json:"demo"`
	Message   string           `json:"message"`
	Profile   *ProfileResponse `json:"profile,omitempty"`
}

// ProfileResponse is the account behind the credential.
type ProfileResponse struct {
	Username          string `json:"username"`
	Email             string `json:"email,omitempty"`
	Type              string `json:"type,omitempty"`
	Points            int64  `json:"points"`
	Expiration        string `json:"expiration,omitempty"`
	Premium           bool   `json:"premium"`
	ConvertiblePoints int64  `json:"convertible_points"`
	RemainingPoints   int64  `json:"remaining_points"`
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func toHosts(hosts []traffic.HostTraffic) []HostResponse {
	out := make([]HostResponse, 0, len(hosts))
	for _, h := range hosts {
		out = append(out, HostResponse{
			Host:        h.Host,
			UsedGB:      h.UsedGB,
			LimitGB:     h.LimitGB,
			UsedPercent: h.UsedPercent(),
		})
	}
	return out
}

func toHostsResponse(v app.TrafficView) HostsResponse {
	return HostsResponse{
		Resolved: v.HostsResolved,
		Hosts:    toHosts(v.Hosts),
		Error:    errString(v.HostsErr),
	}
}

// NewTrafficResponse converts a traffic view for JSON output.
func NewTrafficResponse(v app.TrafficView) TrafficResponse {
	resp := TrafficResponse{
		Cycle:     v.CycleID,
		TraceID:   v.TraceID,
		Mode:      v.Mode.String(),
		StartedAt: timePtr(v.StartedAt),
		UpdatedAt: timePtr(v.UpdatedAt),
		Version:   v.Version,
		Loading:   v.Loading,
		Hosts:     toHostsResponse(v),
		LastError: errString(v.LastErr),
	}
	for _, l := range traffic.Labels() {
		resp.Windows = append(resp.Windows, WindowResponse{
			Label:     l.String(),
			Title:     l.Title(),
			State:     v.Summary.State(l).String(),
			Bytes:     v.Summary.Bytes(l),
			Formatted: traffic.FormatBytes(v.Summary.Bytes(l)),
			Error:     errString(v.Summary.Err(l)),
		})
	}
	return resp
}

// NewDetailsResponse converts a details breakdown for JSON output.
func NewDetailsResponse(d app.Details) DetailsResponse {
	resp := DetailsResponse{
		Mode:       d.Mode.String(),
		Start:      d.Window.StartDate(),
		End:        d.Window.EndDate(),
		TotalBytes: d.TotalBytes,
		Formatted:  traffic.FormatBytes(d.TotalBytes),
		Days:       make([]DayResponse, 0, len(d.Days)),
	}
	for _, day := range d.Days {
		dr := DayResponse{
			Date:       day.Date,
			TotalBytes: day.TotalBytes,
			Formatted:  traffic.FormatBytes(day.TotalBytes),
			Hosts:      make([]DayHostResponse, 0, len(day.Hosts)),
		}
		for _, h := range day.Hosts {
			dr.Hosts = append(dr.Hosts, DayHostResponse{Name: h.Name, Bytes: h.Bytes})
		}
		resp.Days = append(resp.Days, dr)
	}
	return resp
}

// NewConnectionResponse converts a self-test outcome for JSON output.
func NewConnectionResponse(st app.ConnectionStatus) ConnectionResponse {
	resp := ConnectionResponse{
		Connected: st.Connected,
		Demo:      st.Demo,
		Message:   st.Message,
	}
	if p := st.Profile; p.Username != "" {
		resp.Profile = &ProfileResponse{
			Username:          p.Username,
			Email:             p.Email,
			Type:              p.Type,
			Points:            p.Points,
			Expiration:        p.Expiration,
			Premium:           p.IsPremium(),
			ConvertiblePoints: p.ConvertiblePoints(),
			RemainingPoints:   p.RemainingPoints(),
		}
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}

// writeQueryError maps an engine error to a response. Remote failures are
// reported as gateway errors carrying the error kind as code.
func writeQueryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, traffic.ErrNoAPIKey):
		writeError(w, http.StatusConflict, "no_api_key", err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "timeout", err.Error())
	default:
		kind := traffic.KindOf(err)
		status := http.StatusBadGateway
		if kind == traffic.KindRateLimited {
			status = http.StatusTooManyRequests
		}
		writeError(w, status, kind.String(), err.Error())
	}
}
