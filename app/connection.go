package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rdmonitor/rdmon/adapters/metrics"
	"github.com/rdmonitor/rdmon/domain/account"
	"github.com/rdmonitor/rdmon/domain/demo"
	"github.com/rdmonitor/rdmon/domain/traffic"
	"github.com/rdmonitor/rdmon/ports"
	"github.com/rs/zerolog"
)

const queryProfile = "profile"

// DemoConnectionDelay is the simulated round trip of a demo self-test.
const DemoConnectionDelay = 1500 * time.Millisecond

// ConnectionStatus is the outcome of a connectivity self-test.
type ConnectionStatus struct {
	Connected bool
	Demo      bool
	Message   string
	Profile   account.Profile
	Kind      traffic.ErrorKind
}

// ConnectionDeps contains dependencies for ConnectionService.
type ConnectionDeps struct {
	Accounts ports.AccountSource
	Clock    ports.Clock
	Metrics  *metrics.Collector // optional
	Logger   zerolog.Logger
}

// ConnectionService checks that the configured credential is accepted.
type ConnectionService struct {
	accounts ports.AccountSource
	clock    ports.Clock
	metrics  *metrics.Collector
	logger   zerolog.Logger
}

// NewConnectionService creates a new connection service.
func NewConnectionService(deps ConnectionDeps) *ConnectionService {
	return &ConnectionService{
		accounts: deps.Accounts,
		clock:    deps.Clock,
		metrics:  deps.Metrics,
		logger:   deps.Logger.With().Str("component", "connection").Logger(),
	}
}

// Test performs the self-test. A rejected credential or an unreachable API
// is reported in the status, not as an error; the returned error is only
// traffic.ErrNoAPIKey or a context error.
func (s *ConnectionService) Test(ctx context.Context, cfg traffic.RefreshConfig) (ConnectionStatus, error) {
	switch cfg.Mode() {
	case traffic.ModeDisabled:
		return ConnectionStatus{}, traffic.ErrNoAPIKey
	case traffic.ModeDemo:
		if err := s.clock.Sleep(ctx, DemoConnectionDelay); err != nil {
			return ConnectionStatus{}, err
		}
		return ConnectionStatus{
			Connected: true,
			Demo:      true,
			Message:   "Demo mode active - using sample data",
			Profile:   demo.Profile(s.clock.Now()),
		}, nil
	}

	start := time.Now()
	profile, err := s.accounts.Profile(ctx, cfg.APIKey)
	took := time.Since(start)
	s.metrics.ObserveQuery(queryProfile, took, err)

	if err != nil && errors.Is(err, context.Canceled) {
		return ConnectionStatus{}, err
	}

	status := statusFor(profile, err)
	ev := s.logger.Info()
	if !status.Connected {
		ev = s.logger.Warn().Err(err)
	}
	ev.Bool("connected", status.Connected).
		Str("kind", status.Kind.String()).
		Dur("duration", took).
		Msg("connection test finished")
	return status, nil
}

// statusFor maps a profile result to the user-facing status.
// A 2xx response the client cannot fully read still proves the credential
// works.
// This is a PURE function.
func statusFor(p account.Profile, err error) ConnectionStatus {
	if err == nil {
		if p.Username != "" {
			return ConnectionStatus{Connected: true, Profile: p, Message: "Connected as " + p.Username}
		}
		return ConnectionStatus{Connected: true, Profile: p, Message: "Connected successfully"}
	}

	kind := traffic.KindOf(err)
	st := ConnectionStatus{Kind: kind}
	var qe *traffic.QueryError
	errors.As(err, &qe)

	switch kind {
	case traffic.KindParse, traffic.KindNoData:
		st.Connected = true
		st.Message = "Connected successfully"
	case traffic.KindUnauthorized:
		st.Message = "Invalid API key"
	case traffic.KindRateLimited:
		st.Message = "Rate limit exceeded"
	case traffic.KindAPI:
		if qe != nil && qe.Status == 403 {
			st.Message = "Account locked or permission denied"
		} else if qe != nil {
			st.Message = fmt.Sprintf("API error: HTTP %d", qe.Status)
		} else {
			st.Message = "API error"
		}
	default:
		cause := err
		if qe != nil && qe.Err != nil {
			cause = qe.Err
		}
		st.Message = "Connection failed: " + cause.Error()
	}
	return st
}
