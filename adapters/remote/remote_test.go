package remote

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/rdmonitor/rdmon/domain/traffic"
)

// =============================================================================
// Client Tests (remote.go)
// =============================================================================

func TestNewClient(t *testing.T) {
	tests := []struct {
		name     string
		cfg      ClientConfig
		wantBase string
	}{
		{
			name:     "with trailing slash",
			cfg:      ClientConfig{BaseURL: "https://api.example.com/rest/1.0/", Timeout: 30 * time.Second},
			wantBase: "https://api.example.com/rest/1.0/",
		},
		{
			name:     "without trailing slash",
			cfg:      ClientConfig{BaseURL: "https://api.example.com/rest/1.0"},
			wantBase: "https://api.example.com/rest/1.0/",
		},
		{
			name:     "empty config",
			cfg:      ClientConfig{},
			wantBase: DefaultBaseURL,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewClient(tt.cfg)
			if client.BaseURL() != tt.wantBase {
				t.Errorf("baseURL = %q, want %q", client.BaseURL(), tt.wantBase)
			}
			if client.httpClient == nil {
				t.Fatal("httpClient is nil")
			}
		})
	}

	if c := NewClient(ClientConfig{}); c.httpClient.Timeout != 60*time.Second {
		t.Errorf("default timeout = %v, want 60s", c.httpClient.Timeout)
	}
}

func TestClientGet_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("Method = %q, want GET", r.Method)
		}
		if r.URL.Path != "/rest/1.0/traffic/details" {
			t.Errorf("Path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("start"); got != "2024-03-01" {
			t.Errorf("start = %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret-key" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("X-Custom"); got != "value" {
			t.Errorf("X-Custom = %q", got)
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{
		BaseURL: server.URL + "/rest/1.0",
		Headers: map[string]string{"X-Custom": "value"},
	})

	body, err := client.Get(context.Background(), "traffic/details", url.Values{"start": {"2024-03-01"}}, "secret-key")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(body) != `{"ok":true}` {
		t.Errorf("body = %s", body)
	}
}

func TestClientGet_NoKeyNoHeader(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Error("Authorization header should be absent without a key")
		}
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL})
	if _, err := client.Get(context.Background(), "traffic", nil, ""); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
}

func TestClientGet_StatusKinds(t *testing.T) {
	tests := []struct {
		status int
		body   string
		want   traffic.ErrorKind
	}{
		{http.StatusUnauthorized, `{"error":"bad_token","error_code":8}`, traffic.KindUnauthorized},
		{http.StatusTooManyRequests, ``, traffic.KindRateLimited},
		{http.StatusForbidden, `{"error":"permission_denied"}`, traffic.KindAPI},
		{http.StatusNotFound, `not json`, traffic.KindAPI},
		{http.StatusServiceUnavailable, ``, traffic.KindAPI},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewClient(ClientConfig{BaseURL: server.URL})
			_, err := client.Get(context.Background(), "traffic", nil, "k")

			var qe *traffic.QueryError
			if !errors.As(err, &qe) {
				t.Fatalf("error %v is not a QueryError", err)
			}
			if qe.Kind != tt.want {
				t.Errorf("Kind = %v, want %v", qe.Kind, tt.want)
			}
			if qe.Status != tt.status {
				t.Errorf("Status = %d, want %d", qe.Status, tt.status)
			}
			if qe.Op != "traffic" {
				t.Errorf("Op = %q, want traffic", qe.Op)
			}
		})
	}
}

func TestClientGet_APIMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"bad_token","error_code":8}`))
	}))
	defer server.Close()

	_, err := NewClient(ClientConfig{BaseURL: server.URL}).Get(context.Background(), "user", nil, "k")
	if err == nil {
		t.Fatal("expected error")
	}
	want := "user: invalid API key: bad_token (code 8)"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestClientGet_EmptyBodyIsNoData(t *testing.T) {
	for _, body := range []string{"", "   \n"} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(body))
		}))

		_, err := NewClient(ClientConfig{BaseURL: server.URL}).Get(context.Background(), "traffic", nil, "k")
		if traffic.KindOf(err) != traffic.KindNoData {
			t.Errorf("body %q: kind = %v, want no_data", body, traffic.KindOf(err))
		}
		server.Close()
	}
}

func TestClientGet_NetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := server.URL
	server.Close()

	_, err := NewClient(ClientConfig{BaseURL: addr}).Get(context.Background(), "traffic", nil, "k")
	if traffic.KindOf(err) != traffic.KindNetwork {
		t.Errorf("kind = %v, want network (err %v)", traffic.KindOf(err), err)
	}
}

func TestClientGet_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := NewClient(ClientConfig{BaseURL: server.URL, Timeout: 50 * time.Millisecond})
	_, err := client.Get(context.Background(), "traffic", nil, "k")
	if traffic.KindOf(err) != traffic.KindNetwork {
		t.Errorf("kind = %v, want network (err %v)", traffic.KindOf(err), err)
	}
}

func TestClientGet_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewClient(ClientConfig{BaseURL: server.URL}).Get(ctx, "traffic", nil, "k")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled in chain", err)
	}
	if traffic.KindOf(err) != traffic.KindNetwork {
		t.Errorf("kind = %v, want network", traffic.KindOf(err))
	}
}
