package remote

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rdmonitor/rdmon/domain/traffic"
	"github.com/rdmonitor/rdmon/ports"
)

// =============================================================================
// Traffic Tests (traffic.go)
// =============================================================================

func newTrafficServer(t *testing.T, routes map[string]string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := routes[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestTrafficClient_DetailsTotal(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{
			"2024-03-01": {"bytes": 500},
			"2024-03-02": {"hosts": {"mega.nz": {"bytes": 300}, "x.com": {"bytes": "200"}}}
		}`))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL})
	total, err := client.Traffic("k").DetailsTotal(context.Background(), "2024-03-01", "2024-03-15")
	if err != nil {
		t.Fatalf("DetailsTotal failed: %v", err)
	}
	if total != 1000 {
		t.Errorf("total = %d, want 1000", total)
	}
	if gotQuery != "end=2024-03-15&start=2024-03-01" {
		t.Errorf("query = %q", gotQuery)
	}
}

func TestTrafficClient_DetailsTotal_ParseFailure(t *testing.T) {
	server := newTrafficServer(t, map[string]string{
		"/traffic/details": `{"2024-03-01": {"bytes": "lots"}}`,
	})

	_, err := NewClient(ClientConfig{BaseURL: server.URL}).Traffic("k").DetailsTotal(context.Background(), "a", "b")

	var qe *traffic.QueryError
	if !errors.As(err, &qe) {
		t.Fatalf("error %v is not a QueryError", err)
	}
	if qe.Kind != traffic.KindParse || qe.Op != PathTrafficDetails {
		t.Errorf("QueryError = %+v", qe)
	}
	if !errors.Is(err, traffic.ErrMalformed) {
		t.Error("parse failure should wrap ErrMalformed")
	}
}

func TestTrafficClient_Days(t *testing.T) {
	server := newTrafficServer(t, map[string]string{
		"/traffic/details": `{
			"2024-03-01": {"bytes": 500},
			"2024-03-02": {"hosts": {"mega.nz": {"bytes": 300}}},
			"2024-03-03": {"bytes": 0}
		}`,
	})

	days, err := NewClient(ClientConfig{BaseURL: server.URL}).Traffic("k").Days(context.Background(), "a", "b")
	if err != nil {
		t.Fatalf("Days failed: %v", err)
	}
	if len(days) != 2 || days[0].Date != "2024-03-02" || days[1].Hosts[0].Name != traffic.DefaultDayHost {
		t.Errorf("days = %+v", days)
	}
}

func TestTrafficClient_Hosts(t *testing.T) {
	server := newTrafficServer(t, map[string]string{
		"/traffic": `{
			"mega.nz": {"type": "gigabytes", "bytes": 2147483648, "limit": 100},
			"1fichier.com": {"type": "links", "links": 75, "limit": 100},
			"zero.com": {"type": "gigabytes", "bytes": 0, "limit": 0}
		}`,
	})

	hosts, err := NewClient(ClientConfig{BaseURL: server.URL}).Traffic("k").Hosts(context.Background())
	if err != nil {
		t.Fatalf("Hosts failed: %v", err)
	}
	if len(hosts) != 2 {
		t.Fatalf("hosts = %+v, want 2", hosts)
	}
	if hosts[0].Host != "1fichier.com" || hosts[0].UsedGB != 75 {
		t.Errorf("hosts[0] = %+v", hosts[0])
	}
	if hosts[1].Host != "mega.nz" || hosts[1].UsedGB != 2 {
		t.Errorf("hosts[1] = %+v", hosts[1])
	}
}

func TestTrafficClient_Hosts_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   traffic.ErrorKind
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":"bad_token"}`, traffic.KindUnauthorized},
		{"rate limited", http.StatusTooManyRequests, ``, traffic.KindRateLimited},
		{"server error", http.StatusBadGateway, ``, traffic.KindAPI},
		{"empty", http.StatusOK, ``, traffic.KindNoData},
		{"non-empty array", http.StatusOK, `[1]`, traffic.KindParse},
		{"scalar", http.StatusOK, `42`, traffic.KindParse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewClient(ClientConfig{BaseURL: server.URL}).Traffic("k").Hosts(context.Background())
			if traffic.KindOf(err) != tt.want {
				t.Errorf("kind = %v, want %v (err %v)", traffic.KindOf(err), tt.want, err)
			}
		})
	}
}

func TestClient_TrafficSourceFactory(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	var factory ports.TrafficSourceFactory = NewClient(ClientConfig{BaseURL: server.URL}).TrafficSource
	if _, err := factory("abc").Hosts(context.Background()); err != nil {
		t.Fatalf("Hosts failed: %v", err)
	}
	if gotAuth != "Bearer abc" {
		t.Errorf("Authorization = %q", gotAuth)
	}
}
