// Package http exposes the traffic telemetry over HTTP.
package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rdmonitor/rdmon/adapters/metrics"
	"github.com/rdmonitor/rdmon/app"
	"github.com/rs/zerolog"
)

// Deps contains the services behind the HTTP surface.
type Deps struct {
	Traffic    *app.TrafficService
	Details    *app.DetailsService
	Connection *app.ConnectionService
	Settings   *app.SettingsService
	Logger     zerolog.Logger
}

// RouterConfig configures optional parts of the router.
type RouterConfig struct {
	// Metrics enables the request metrics middleware when set.
	Metrics *metrics.Collector

	// MetricsHandler is served at MetricsPath. Defaults to promhttp.Handler()
	// when Metrics is set.
	MetricsHandler http.Handler
	MetricsPath    string

	// RequestTimeout bounds each request. Zero means 90s.
	RequestTimeout time.Duration

	Version string
}

// Handler serves the traffic API.
type Handler struct {
	traffic    *app.TrafficService
	details    *app.DetailsService
	connection *app.ConnectionService
	settings   *app.SettingsService
	logger     zerolog.Logger
	version    string
}

// NewRouter builds the chi router for deps.
func NewRouter(deps Deps, cfg RouterConfig) chi.Router {
	h := &Handler{
		traffic:    deps.Traffic,
		details:    deps.Details,
		connection: deps.Connection,
		settings:   deps.Settings,
		logger:     deps.Logger.With().Str("component", "http").Logger(),
		version:    cfg.Version,
	}

	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = 90 * time.Second
	}
	metricsPath := cfg.MetricsPath
	if metricsPath == "" {
		metricsPath = "/metrics"
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(NewLoggingMiddleware(h.logger, metricsPath))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))
	if cfg.Metrics != nil {
		r.Use(NewMetricsMiddleware(cfg.Metrics, metricsPath))
	}

	r.Get("/health", h.Health)
	r.Get("/version", h.Version)

	switch {
	case cfg.MetricsHandler != nil:
		r.Handle(metricsPath, cfg.MetricsHandler)
	case cfg.Metrics != nil:
		r.Handle(metricsPath, promhttp.Handler())
	}

	r.Route("/traffic", func(r chi.Router) {
		r.Get("/", h.GetTraffic)
		r.Post("/refresh", h.Refresh)
		r.Get("/hosts", h.GetHosts)
		r.Get("/details", h.GetDetails)
	})
	r.Get("/connection", h.TestConnection)

	r.Route("/settings", func(r chi.Router) {
		r.Get("/", h.GetSettings)
		r.Put("/", h.UpdateSettings)
		r.Delete("/{key}", h.DeleteSetting)
	})

	return r
}

// Health reports liveness and the mode the next cycle would run in.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]string{"status": "ok"}
	if h.settings != nil {
		resp["mode"] = h.settings.RefreshConfig().Mode().String()
	}
	writeJSON(w, http.StatusOK, resp)
}

// Version returns the build version.
func (h *Handler) Version(w http.ResponseWriter, r *http.Request) {
	v := h.version
	if v == "" {
		v = "dev"
	}
	writeJSON(w, http.StatusOK, map[string]string{"version": v, "service": "rdmon"})
}

func internalPath(path, metricsPath string) bool {
	return strings.HasPrefix(path, "/health") || path == metricsPath
}

// NewMetricsMiddleware creates middleware that records request metrics.
// Paths are labelled by their route pattern.
func NewMetricsMiddleware(m *metrics.Collector, metricsPath string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if internalPath(r.URL.Path, metricsPath) {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			var pattern string
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				pattern = rctx.RoutePattern()
			}
			path := metrics.NormalizePath(pattern)
			status := statusLabel(ww.Status())

			m.RequestsTotal.WithLabelValues(r.Method, path, status).Inc()
			m.RequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

// statusLabel returns a string label for the status code.
func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "other"
	}
}

// NewLoggingMiddleware logs HTTP requests.
func NewLoggingMiddleware(logger zerolog.Logger, metricsPath string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			if internalPath(r.URL.Path, metricsPath) {
				return
			}

			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("http request")
		})
	}
}
