package http_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rdmonitor/rdmon/adapters/clock"
	apihttp "github.com/rdmonitor/rdmon/adapters/http"
	"github.com/rdmonitor/rdmon/adapters/idgen"
	"github.com/rdmonitor/rdmon/adapters/memory"
	"github.com/rdmonitor/rdmon/adapters/metrics"
	"github.com/rdmonitor/rdmon/adapters/random"
	"github.com/rdmonitor/rdmon/adapters/remote"
	"github.com/rdmonitor/rdmon/app"
	"github.com/rdmonitor/rdmon/domain/demo"
	"github.com/rdmonitor/rdmon/domain/settings"
	"github.com/rs/zerolog"
)

var baseTime = time.Date(2024, 3, 15, 14, 30, 0, 0, time.UTC)

type testServer struct {
	handler  http.Handler
	reg      *prometheus.Registry
	settings *app.SettingsService
	traffic  *app.TrafficService
}

// newTestServer wires the handler against upstreamURL, or against an
// unreachable address when upstreamURL is empty.
func newTestServer(t *testing.T, upstreamURL string, stored settings.Settings) *testServer {
	t.Helper()
	if upstreamURL == "" {
		upstreamURL = "http://127.0.0.1:1/"
	}

	logger := zerolog.Nop()
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)
	clk := clock.NewFake(baseTime)
	client := remote.NewClient(remote.ClientConfig{BaseURL: upstreamURL, Timeout: 5 * time.Second})

	store := memory.NewSettingsStore()
	settingsSvc := app.NewSettingsService(app.SettingsDeps{Store: store, Logger: logger})
	if len(stored) > 0 {
		if err := settingsSvc.SetBatch(context.Background(), stored); err != nil {
			t.Fatalf("seed settings: %v", err)
		}
	}

	deps := app.TrafficDeps{
		Sources:   client.TrafficSource,
		Generator: demo.NewGenerator(random.NewSeeded(3)),
		Clock:     clk,
		IDGen:     idgen.NewSequential("req-"),
		Metrics:   m,
		Logger:    logger,
	}
	trafficSvc := app.NewTrafficService(deps, app.DefaultTrafficConfig())

	h := apihttp.NewRouter(apihttp.Deps{
		Traffic:    trafficSvc,
		Details:    app.NewDetailsService(deps, trafficSvc),
		Connection: app.NewConnectionService(app.ConnectionDeps{Accounts: client, Clock: clk, Metrics: m, Logger: logger}),
		Settings:   settingsSvc,
		Logger:     logger,
	}, apihttp.RouterConfig{
		Metrics:        m,
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Version:        "1.2.3",
	})

	return &testServer{handler: h, reg: reg, settings: settingsSvc, traffic: trafficSvc}
}

func (s *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

// upstream fakes the remote API.
func upstream(t *testing.T, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer LIVEKEY" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"bad_token","error_code":8}`))
			return
		}
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		switch r.URL.Path {
		case "/rest/traffic/details":
			w.Write([]byte(`{
				"2024-03-15": {"bytes": 1000},
				"2024-03-14": {"hosts": {"mega.nz": {"bytes": 600}, "1fichier.com": {"bytes": 400}}}
			}`))
		case "/rest/traffic":
			w.Write([]byte(`{
				"mega.nz": {"type": "gigabytes", "bytes": 5368709120, "limit": 100},
				"1fichier.com": {"type": "links", "links": 10, "limit": 50}
			}`))
		case "/rest/user":
			w.Write([]byte(`{"username": "alice", "points": 2500, "type": "premium"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHealthAndVersion(t *testing.T) {
	s := newTestServer(t, "", settings.Settings{settings.KeyDemoMode: "true"})

	rec := s.do(t, "GET", "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var health map[string]string
	decode(t, rec, &health)
	if health["status"] != "ok" || health["mode"] != "demo" {
		t.Errorf("health = %v", health)
	}

	var version map[string]string
	decode(t, s.do(t, "GET", "/version", ""), &version)
	if version["version"] != "1.2.3" {
		t.Errorf("version = %v", version)
	}
}

func TestTraffic_BeforeFirstRefresh(t *testing.T) {
	s := newTestServer(t, "", nil)

	var resp apihttp.TrafficResponse
	decode(t, s.do(t, "GET", "/traffic", ""), &resp)

	if resp.Cycle != 0 || resp.Loading || len(resp.Windows) != 4 {
		t.Errorf("traffic = %+v", resp)
	}
	for _, w := range resp.Windows {
		if w.State != "pending" || w.Bytes != 0 {
			t.Errorf("window %s = %+v", w.Label, w)
		}
	}
	if resp.Hosts.Resolved || resp.Hosts.Hosts == nil {
		t.Errorf("hosts = %+v, want unresolved empty list", resp.Hosts)
	}
}

func TestRefresh_NoAPIKey(t *testing.T) {
	s := newTestServer(t, "", nil)

	if rec := s.do(t, "POST", "/traffic/refresh", ""); rec.Code != http.StatusConflict {
		t.Errorf("POST /traffic/refresh status = %d, want 409", rec.Code)
	}
	for _, path := range []string{"/traffic/details", "/connection"} {
		rec := s.do(t, "GET", path, "")
		if rec.Code != http.StatusConflict {
			t.Errorf("GET %s status = %d, want 409", path, rec.Code)
		}
		var body map[string]map[string]string
		decode(t, rec, &body)
		if body["error"]["code"] != "no_api_key" {
			t.Errorf("GET %s error = %v", path, body)
		}
	}
}

func TestRefresh_Demo(t *testing.T) {
	s := newTestServer(t, "", settings.Settings{settings.KeyAPIKey: "demo"})

	rec := s.do(t, "POST", "/traffic/refresh?wait=true", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var resp apihttp.RefreshResponse
	decode(t, rec, &resp)

	if resp.Mode != "demo" || resp.Cycle != 1 || resp.TraceID != "req-1" {
		t.Errorf("refresh = %+v", resp)
	}
	if resp.Traffic == nil || resp.Traffic.Loading {
		t.Fatalf("traffic = %+v", resp.Traffic)
	}
	for _, w := range resp.Traffic.Windows {
		if w.State != "resolved" {
			t.Errorf("window %s state = %s", w.Label, w.State)
		}
	}
	if len(resp.Traffic.Hosts.Hosts) != len(demo.Hosts) {
		t.Errorf("hosts = %d, want %d", len(resp.Traffic.Hosts.Hosts), len(demo.Hosts))
	}
}

func TestRefresh_Async(t *testing.T) {
	s := newTestServer(t, "", settings.Settings{settings.KeyDemoMode: "on"})

	rec := s.do(t, "POST", "/traffic/refresh", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp apihttp.RefreshResponse
	decode(t, rec, &resp)
	if resp.Traffic != nil {
		t.Error("async refresh should not embed traffic")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.traffic.Current().Wait(ctx); err != nil {
		t.Fatalf("cycle did not finish: %v", err)
	}
}

func TestRefresh_WaitSuperseded(t *testing.T) {
	arrived := make(chan struct{}, 8)
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case arrived <- struct{}{}:
		default:
		}
		select {
		case <-release:
		case <-r.Context().Done():
		}
		w.Write([]byte(`{}`))
	}))
	t.Cleanup(srv.Close)
	defer close(release)

	s := newTestServer(t, srv.URL+"/rest", settings.Settings{settings.KeyAPIKey: "LIVEKEY"})

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() { done <- s.do(t, "POST", "/traffic/refresh?wait=true", "") }()

	select {
	case <-arrived:
	case <-time.After(5 * time.Second):
		t.Fatal("first cycle never reached upstream")
	}
	if _, err := s.traffic.Refresh(context.Background(), s.settings.RefreshConfig()); err != nil {
		t.Fatalf("second refresh: %v", err)
	}

	var rec *httptest.ResponseRecorder
	select {
	case rec = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("waiting refresh did not return")
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var resp apihttp.RefreshResponse
	decode(t, rec, &resp)
	if resp.Cycle != 1 || !resp.Superseded {
		t.Errorf("refresh = %+v, want cycle 1 superseded", resp)
	}
	if resp.Traffic != nil {
		t.Error("superseded refresh should not embed the newer cycle's traffic")
	}
}

func TestRefresh_Live(t *testing.T) {
	srv := upstream(t, http.StatusOK)
	s := newTestServer(t, srv.URL+"/rest", settings.Settings{settings.KeyAPIKey: "LIVEKEY"})

	rec := s.do(t, "POST", "/traffic/refresh?wait=1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var resp apihttp.RefreshResponse
	decode(t, rec, &resp)

	if resp.Mode != "live" || resp.Traffic == nil {
		t.Fatalf("refresh = %+v", resp)
	}
	for _, w := range resp.Traffic.Windows {
		if w.State != "resolved" || w.Bytes != 2000 {
			t.Errorf("window %s = %+v", w.Label, w)
		}
	}

	var hosts apihttp.HostsResponse
	decode(t, s.do(t, "GET", "/traffic/hosts", ""), &hosts)
	if !hosts.Resolved || len(hosts.Hosts) != 2 {
		t.Fatalf("hosts = %+v", hosts)
	}
	// Link quotas report a percentage: 10 of 50 links outranks 5 GB of 100.
	if h := hosts.Hosts[0]; h.Host != "1fichier.com" || h.UsedGB != 20 || h.LimitGB != 100 {
		t.Errorf("hosts[0] = %+v", h)
	}
	if h := hosts.Hosts[1]; h.Host != "mega.nz" || h.UsedGB != 5 || h.UsedPercent != 5 {
		t.Errorf("hosts[1] = %+v", h)
	}
}

func TestRefresh_LiveUnauthorized(t *testing.T) {
	srv := upstream(t, http.StatusOK)
	s := newTestServer(t, srv.URL+"/rest", settings.Settings{settings.KeyAPIKey: "WRONG"})

	var resp apihttp.RefreshResponse
	decode(t, s.do(t, "POST", "/traffic/refresh?wait=true", ""), &resp)

	if resp.Traffic == nil {
		t.Fatal("missing traffic")
	}
	for _, w := range resp.Traffic.Windows {
		if w.State != "failed" || !strings.Contains(w.Error, "invalid API key") {
			t.Errorf("window %s = %+v", w.Label, w)
		}
	}
	if !resp.Traffic.Hosts.Resolved || len(resp.Traffic.Hosts.Hosts) != 0 || resp.Traffic.Hosts.Error == "" {
		t.Errorf("hosts = %+v, want failed empty list", resp.Traffic.Hosts)
	}
}

func TestDetails(t *testing.T) {
	srv := upstream(t, http.StatusOK)
	s := newTestServer(t, srv.URL+"/rest", settings.Settings{settings.KeyAPIKey: "LIVEKEY"})

	rec := s.do(t, "GET", "/traffic/details", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var resp apihttp.DetailsResponse
	decode(t, rec, &resp)

	if resp.Start != "2024-02-13" || resp.End != "2024-03-15" {
		t.Errorf("window = %s..%s", resp.Start, resp.End)
	}
	if resp.TotalBytes != 2000 || len(resp.Days) != 2 {
		t.Fatalf("details = %+v", resp)
	}
	if resp.Days[0].Date != "2024-03-15" || resp.Days[0].Hosts[0].Name != "Real-Debrid" {
		t.Errorf("day 0 = %+v", resp.Days[0])
	}
	if resp.Days[1].Hosts[0].Name != "mega.nz" || resp.Days[1].Hosts[0].Bytes != 600 {
		t.Errorf("day 1 = %+v", resp.Days[1])
	}
}

func TestDetails_UpstreamErrors(t *testing.T) {
	tests := []struct {
		status int
		want   int
		code   string
	}{
		{http.StatusTooManyRequests, http.StatusTooManyRequests, "rate_limited"},
		{http.StatusServiceUnavailable, http.StatusBadGateway, "api_error"},
	}
	for _, tt := range tests {
		srv := upstream(t, tt.status)
		s := newTestServer(t, srv.URL+"/rest", settings.Settings{settings.KeyAPIKey: "LIVEKEY"})

		rec := s.do(t, "GET", "/traffic/details", "")
		if rec.Code != tt.want {
			t.Errorf("upstream %d: status = %d, want %d", tt.status, rec.Code, tt.want)
		}
		var body map[string]map[string]string
		decode(t, rec, &body)
		if body["error"]["code"] != tt.code {
			t.Errorf("upstream %d: code = %q, want %q", tt.status, body["error"]["code"], tt.code)
		}
	}
}

func TestConnection(t *testing.T) {
	srv := upstream(t, http.StatusOK)

	tests := []struct {
		key       string
		connected bool
		message   string
	}{
		{"LIVEKEY", true, "Connected as alice"},
		{"WRONG", false, "Invalid API key"},
	}
	for _, tt := range tests {
		s := newTestServer(t, srv.URL+"/rest", settings.Settings{settings.KeyAPIKey: tt.key})

		var resp apihttp.ConnectionResponse
		decode(t, s.do(t, "GET", "/connection", ""), &resp)
		if resp.Connected != tt.connected || resp.Message != tt.message {
			t.Errorf("key %s: connection = %+v", tt.key, resp)
		}
		if tt.connected && (resp.Profile == nil || resp.Profile.ConvertiblePoints != 2000) {
			t.Errorf("key %s: profile = %+v", tt.key, resp.Profile)
		}
	}
}

func TestSettings(t *testing.T) {
	s := newTestServer(t, "", nil)

	rec := s.do(t, "PUT", "/settings", `{"api_key": "ABCDEFGH1234", "refresh_interval": "120"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT status = %d, body %s", rec.Code, rec.Body)
	}
	var resp apihttp.SettingsResponse
	decode(t, rec, &resp)

	if resp.Settings[settings.KeyAPIKey] != "********1234" {
		t.Errorf("api_key = %q, want masked", resp.Settings[settings.KeyAPIKey])
	}
	if resp.Preferences.RefreshSeconds != 120 || resp.Mode != "live" {
		t.Errorf("settings = %+v", resp)
	}
	if s.settings.RefreshConfig().APIKey != "ABCDEFGH1234" {
		t.Error("api key not stored")
	}

	if rec := s.do(t, "PUT", "/settings", `{"traffic_warning_threshold": "20"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid value status = %d, want 400", rec.Code)
	}
	if rec := s.do(t, "PUT", "/settings", `not json`); rec.Code != http.StatusBadRequest {
		t.Errorf("bad json status = %d, want 400", rec.Code)
	}

	if rec := s.do(t, "DELETE", "/settings/refresh_interval", ""); rec.Code != http.StatusNoContent {
		t.Errorf("DELETE status = %d, want 204", rec.Code)
	}
	if rec := s.do(t, "DELETE", "/settings/bogus", ""); rec.Code != http.StatusNotFound {
		t.Errorf("DELETE unknown status = %d, want 404", rec.Code)
	}
	if got := s.settings.Preferences().RefreshInterval; got != 300*time.Second {
		t.Errorf("refresh interval after delete = %v, want default", got)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, "", settings.Settings{settings.KeyDemoMode: "true"})

	s.do(t, "POST", "/traffic/refresh?wait=true", "")
	s.do(t, "GET", "/traffic/hosts", "")

	rec := s.do(t, "GET", "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		`rdmon_http_requests_total{method="POST",path="/traffic/refresh",status="2xx"} 1`,
		`rdmon_http_requests_total{method="GET",path="/traffic/hosts",status="2xx"} 1`,
		`rdmon_refresh_cycles_total{mode="demo"} 1`,
		`rdmon_queries_total{outcome="ok",query="hosts"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %s", want)
		}
	}
	if strings.Contains(body, `path="/metrics"`) {
		t.Error("metrics endpoint should not record itself")
	}
}
