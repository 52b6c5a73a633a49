package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rdmonitor/rdmon/domain/settings"
)

// GetTraffic returns the current view, including partial results of an
// in-flight cycle.
func (h *Handler) GetTraffic(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, NewTrafficResponse(h.traffic.Snapshot()))
}

// GetHosts returns the host list of the current cycle.
func (h *Handler) GetHosts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toHostsResponse(h.traffic.Snapshot()))
}

// Refresh starts a new cycle. With ?wait=true it responds once the cycle
// has resolved, otherwise immediately with 202.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	// The cycle outlives the request unless the caller waits for it.
	cycle, err := h.traffic.Refresh(context.WithoutCancel(r.Context()), h.settings.RefreshConfig())
	if err != nil {
		writeQueryError(w, err)
		return
	}

	h.logger.Info().
		Uint64("cycle", cycle.ID).
		Str("request_id", middleware.GetReqID(r.Context())).
		Msg("refresh requested")

	resp := RefreshResponse{
		Cycle:   cycle.ID,
		TraceID: cycle.TraceID,
		Mode:    cycle.Mode.String(),
	}

	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); !wait {
		writeJSON(w, http.StatusAccepted, resp)
		return
	}

	if err := cycle.Wait(r.Context()); err != nil {
		writeQueryError(w, err)
		return
	}
	snap := h.traffic.Snapshot()
	if snap.CycleID != cycle.ID {
		h.logger.Debug().
			Uint64("cycle", cycle.ID).
			Uint64("current", snap.CycleID).
			Msg("refresh superseded before it finished")
		resp.Superseded = true
		writeJSON(w, http.StatusOK, resp)
		return
	}
	view := NewTrafficResponse(snap)
	resp.Traffic = &view
	writeJSON(w, http.StatusOK, resp)
}

// GetDetails returns the per-day breakdown of the last 31 days.
func (h *Handler) GetDetails(w http.ResponseWriter, r *http.Request) {
	details, err := h.details.Fetch(r.Context(), h.settings.RefreshConfig())
	if err != nil {
		writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NewDetailsResponse(details))
}

// TestConnection runs the connectivity self-test.
func (h *Handler) TestConnection(w http.ResponseWriter, r *http.Request) {
	status, err := h.connection.Test(r.Context(), h.settings.RefreshConfig())
	if err != nil {
		writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NewConnectionResponse(status))
}

// SettingsResponse is the stored settings with secrets masked.
type SettingsResponse struct {
	Settings    settings.Settings   `json:"settings"`
	Preferences PreferencesResponse `json:"preferences"`
	Mode        string              `json:"mode"`
}

// PreferencesResponse is the typed view of the settings.
type PreferencesResponse struct {
	DemoMode         bool    `json:"demo_mode"`
	AutoRefresh      bool    `json:"auto_refresh"`
	RefreshSeconds   int64   `json:"refresh_interval_seconds"`
	WarningThreshold float64 `json:"warning_threshold"`
}

func (h *Handler) settingsResponse() SettingsResponse {
	p := h.settings.Preferences()
	return SettingsResponse{
		Settings: h.settings.Get().Redacted(),
		Preferences: PreferencesResponse{
			DemoMode:         p.DemoMode,
			AutoRefresh:      p.AutoRefresh,
			RefreshSeconds:   int64(p.RefreshInterval.Seconds()),
			WarningThreshold: p.WarningThreshold,
		},
		Mode: h.settings.RefreshConfig().Mode().String(),
	}
}

// GetSettings returns the settings with secrets masked.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.settingsResponse())
}

// UpdateSettings stores a JSON object of key/value pairs. Nothing is
// stored if any pair is invalid.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var batch map[string]string
	if err := json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(&batch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if len(batch) == 0 {
		writeError(w, http.StatusBadRequest, "empty", "no settings given")
		return
	}
	if err := h.settings.SetBatch(r.Context(), settings.Settings(batch)); err != nil {
		if errors.Is(err, settings.ErrInvalid) {
			writeError(w, http.StatusBadRequest, "invalid_setting", err.Error())
			return
		}
		h.logger.Error().Err(err).Msg("failed to store settings")
		writeError(w, http.StatusInternalServerError, "store_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.settingsResponse())
}

// DeleteSetting resets one setting to its default.
func (h *Handler) DeleteSetting(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if !settings.IsKnown(key) {
		writeError(w, http.StatusNotFound, "unknown_setting", "unknown setting "+strconv.Quote(key))
		return
	}
	if err := h.settings.Delete(r.Context(), key); err != nil {
		h.logger.Error().Err(err).Str("key", key).Msg("failed to delete setting")
		writeError(w, http.StatusInternalServerError, "store_failed", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
