// Package app provides application services that orchestrate domain logic.
package app

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rdmonitor/rdmon/adapters/metrics"
	"github.com/rdmonitor/rdmon/domain/demo"
	"github.com/rdmonitor/rdmon/domain/traffic"
	"github.com/rdmonitor/rdmon/ports"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Query labels used in logs and metrics besides the window labels.
const queryHosts = "hosts"

// TrafficView is the presentation-facing state of the latest cycle.
// Values returned by Snapshot are copies and safe to retain.
type TrafficView struct {
	CycleID   uint64
	TraceID   string
	Mode      traffic.Mode
	StartedAt time.Time
	UpdatedAt time.Time

	// Version increases with every applied write, across cycles.
	// Listeners may observe snapshots out of order and should keep the
	// highest version.
	Version uint64

	Summary traffic.Summary

	// Hosts is replaced whole when the host query resolves. It is empty,
	// not stale, after a failed host query.
	Hosts         []traffic.HostTraffic
	HostsResolved bool
	HostsErr      error

	// LastErr is the most recently observed error of the cycle.
	LastErr error

	// Loading is true until every query of the cycle has resolved.
	Loading bool
}

func (v TrafficView) clone() TrafficView {
	if v.Hosts != nil {
		hosts := make([]traffic.HostTraffic, len(v.Hosts))
		copy(hosts, v.Hosts)
		v.Hosts = hosts
	}
	return v
}

// Cycle identifies one refresh invocation.
type Cycle struct {
	ID        uint64
	TraceID   string
	Mode      traffic.Mode
	StartedAt time.Time
	Windows   []traffic.Window

	done chan struct{}
}

// Done is closed once every query of the cycle has resolved, whether or
// not its results were applied.
func (c *Cycle) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until the cycle is done or ctx ends.
func (c *Cycle) Wait(ctx context.Context) error {
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TrafficDeps contains dependencies for TrafficService.
type TrafficDeps struct {
	Sources   ports.TrafficSourceFactory
	Generator *demo.Generator
	Clock     ports.Clock
	IDGen     ports.IDGenerator
	Metrics   *metrics.Collector // optional
	Logger    zerolog.Logger
}

// TrafficConfig contains hot-reloadable configuration for TrafficService.
type TrafficConfig struct {
	DemoMinLatency time.Duration
	DemoMaxLatency time.Duration
}

// DefaultTrafficConfig returns the simulated demo latency range.
func DefaultTrafficConfig() TrafficConfig {
	return TrafficConfig{
		DemoMinLatency: 500 * time.Millisecond,
		DemoMaxLatency: 2 * time.Second,
	}
}

// TrafficService aggregates the rolling-window summary and the host list.
//
// Every Refresh starts a new cycle with a higher generation. Results are
// written under mu only if their generation is still current; results of
// superseded cycles are dropped.
type TrafficService struct {
	sources   ports.TrafficSourceFactory
	generator *demo.Generator
	clock     ports.Clock
	idGen     ports.IDGenerator
	metrics   *metrics.Collector
	logger    zerolog.Logger

	cfg atomic.Pointer[TrafficConfig]

	mu        sync.RWMutex
	gen       uint64
	version   uint64
	cancel    context.CancelFunc
	current   *Cycle
	view      TrafficView
	listeners []func(TrafficView)
}

// NewTrafficService creates a new traffic service.
func NewTrafficService(deps TrafficDeps, cfg TrafficConfig) *TrafficService {
	s := &TrafficService{
		sources:   deps.Sources,
		generator: deps.Generator,
		clock:     deps.Clock,
		idGen:     deps.IDGen,
		metrics:   deps.Metrics,
		logger:    deps.Logger.With().Str("component", "traffic").Logger(),
	}
	s.UpdateConfig(cfg)
	return s
}

// UpdateConfig replaces the hot-reloadable configuration.
// Cycles already running keep the values they started with.
func (s *TrafficService) UpdateConfig(cfg TrafficConfig) {
	s.cfg.Store(&cfg)
}

// OnUpdate registers fn to be called with a snapshot after every applied
// write. fn runs on the goroutine that applied the write and must not block.
func (s *TrafficService) OnUpdate(fn func(TrafficView)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Snapshot returns a copy of the current view. It may be called at any
// time, including while a cycle is in flight.
func (s *TrafficService) Snapshot() TrafficView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view.clone()
}

// Current returns the latest cycle, or nil before the first refresh.
func (s *TrafficService) Current() *Cycle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Refresh starts a new cycle and returns without waiting for it.
//
// Without an API key outside demo mode no query is issued, the view is left
// untouched and traffic.ErrNoAPIKey is returned. Otherwise the previous
// cycle is superseded: its context is cancelled and any result it still
// produces is discarded. ctx bounds the lifetime of the new cycle's queries.
func (s *TrafficService) Refresh(ctx context.Context, cfg traffic.RefreshConfig) (*Cycle, error) {
	mode := cfg.Mode()
	if mode == traffic.ModeDisabled {
		return nil, traffic.ErrNoAPIKey
	}

	now := s.clock.Now()
	cctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.gen++
	cycle := &Cycle{
		ID:        s.gen,
		TraceID:   s.idGen.New(),
		Mode:      mode,
		StartedAt: now,
		Windows:   traffic.Windows(now),
		done:      make(chan struct{}),
	}
	s.cancel = cancel
	s.current = cycle
	s.view = TrafficView{
		CycleID:   cycle.ID,
		TraceID:   cycle.TraceID,
		Mode:      mode,
		StartedAt: now,
		Loading:   true,
	}
	snap, listeners := s.publishLocked()
	s.mu.Unlock()

	notify(listeners, snap)
	s.metrics.CycleStarted(mode)

	s.logger.Info().
		Uint64("cycle", cycle.ID).
		Str("trace_id", cycle.TraceID).
		Str("mode", mode.String()).
		Msg("refresh cycle started")

	if mode == traffic.ModeDemo {
		go s.runDemo(cctx, cancel, cycle, *s.cfg.Load())
	} else {
		go s.runLive(cctx, cancel, cycle, s.sources(cfg.APIKey))
	}
	return cycle, nil
}

// Stop cancels the in-flight cycle, if any, and retires its generation so
// none of its late results are applied.
func (s *TrafficService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.gen++
	s.view.Loading = false
}

// runLive issues the four window queries and the host query concurrently.
// The group has no shared context: one failure never cancels its siblings.
func (s *TrafficService) runLive(ctx context.Context, cancel context.CancelFunc, cycle *Cycle, src ports.TrafficSource) {
	defer cancel()
	defer close(cycle.done)

	var g errgroup.Group
	for _, w := range cycle.Windows {
		g.Go(func() error {
			start := time.Now()
			bytes, err := src.DetailsTotal(ctx, w.StartDate(), w.EndDate())
			s.metrics.ObserveQuery(w.Label.String(), time.Since(start), err)
			s.applyWindow(cycle, w.Label, bytes, err, time.Since(start))
			return nil
		})
	}
	g.Go(func() error {
		start := time.Now()
		hosts, err := src.Hosts(ctx)
		s.metrics.ObserveQuery(queryHosts, time.Since(start), err)
		s.applyHosts(cycle, hosts, err)
		return nil
	})
	_ = g.Wait()

	s.finish(cycle)
}

// runDemo waits a simulated latency and applies one synthetic dataset.
func (s *TrafficService) runDemo(ctx context.Context, cancel context.CancelFunc, cycle *Cycle, cfg TrafficConfig) {
	defer cancel()
	defer close(cycle.done)

	delay := s.generator.Latency(cfg.DemoMinLatency, cfg.DemoMaxLatency)
	if err := s.clock.Sleep(ctx, delay); err != nil {
		s.logger.Debug().Uint64("cycle", cycle.ID).Err(err).Msg("demo cycle abandoned")
		s.finish(cycle)
		return
	}

	records := s.generator.Generate(cycle.StartedAt)
	summary := traffic.BucketRecords(records, cycle.StartedAt)
	hosts := s.generator.HostUsage()

	for _, l := range traffic.Labels() {
		s.metrics.ObserveQuery(l.String(), delay, nil)
		s.applyWindow(cycle, l, summary.Bytes(l), nil, delay)
	}
	s.metrics.ObserveQuery(queryHosts, delay, nil)
	s.applyHosts(cycle, hosts, nil)

	s.finish(cycle)
}

func (s *TrafficService) applyWindow(cycle *Cycle, l traffic.Label, bytes int64, err error, took time.Duration) {
	s.mu.Lock()
	if cycle.ID != s.gen {
		s.mu.Unlock()
		s.dropStale(cycle, l.String())
		return
	}

	if err != nil {
		s.view.Summary.Fail(l, err)
		s.view.LastErr = err
	} else {
		s.view.Summary.Set(l, bytes)
	}
	snap, listeners := s.publishLocked()
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn().
			Uint64("cycle", cycle.ID).
			Str("window", l.String()).
			Str("kind", traffic.KindOf(err).String()).
			Dur("duration", took).
			Err(err).
			Msg("window query failed")
	} else {
		s.metrics.SetWindow(l, snap.Summary.Bytes(l))
		s.logger.Debug().
			Uint64("cycle", cycle.ID).
			Str("window", l.String()).
			Int64("bytes", bytes).
			Dur("duration", took).
			Msg("window resolved")
	}
	notify(listeners, snap)
}

// applyHosts replaces the host list; a failed query leaves it empty.
func (s *TrafficService) applyHosts(cycle *Cycle, hosts []traffic.HostTraffic, err error) {
	s.mu.Lock()
	if cycle.ID != s.gen {
		s.mu.Unlock()
		s.dropStale(cycle, queryHosts)
		return
	}

	s.view.HostsResolved = true
	if err != nil {
		s.view.Hosts = []traffic.HostTraffic{}
		s.view.HostsErr = err
		s.view.LastErr = err
	} else {
		if hosts == nil {
			hosts = []traffic.HostTraffic{}
		}
		s.view.Hosts = hosts
		s.view.HostsErr = nil
	}
	snap, listeners := s.publishLocked()
	s.mu.Unlock()

	s.metrics.SetHosts(snap.Hosts)
	if err != nil {
		s.logger.Warn().
			Uint64("cycle", cycle.ID).
			Str("kind", traffic.KindOf(err).String()).
			Err(err).
			Msg("host query failed, host list cleared")
	} else {
		s.logger.Debug().Uint64("cycle", cycle.ID).Int("hosts", len(hosts)).Msg("hosts resolved")
	}
	notify(listeners, snap)
}

func (s *TrafficService) finish(cycle *Cycle) {
	s.metrics.CycleDone()

	s.mu.Lock()
	if cycle.ID != s.gen {
		s.mu.Unlock()
		return
	}
	s.view.Loading = false
	snap, listeners := s.publishLocked()
	s.mu.Unlock()

	s.logger.Info().
		Uint64("cycle", cycle.ID).
		Int("failed_windows", len(snap.Summary.Failed())).
		Bool("hosts_failed", snap.HostsErr != nil).
		Msg("refresh cycle complete")
	notify(listeners, snap)
}

func (s *TrafficService) dropStale(cycle *Cycle, query string) {
	s.metrics.StaleWrite()
	s.logger.Debug().
		Uint64("cycle", cycle.ID).
		Str("query", query).
		Msg("dropped result of superseded cycle")
}

// publishLocked stamps the view and returns what to deliver. mu must be held.
func (s *TrafficService) publishLocked() (TrafficView, []func(TrafficView)) {
	s.version++
	s.view.Version = s.version
	s.view.UpdatedAt = s.clock.Now()
	if len(s.listeners) == 0 {
		return s.view.clone(), nil
	}
	listeners := make([]func(TrafficView), len(s.listeners))
	copy(listeners, s.listeners)
	return s.view.clone(), listeners
}

func notify(listeners []func(TrafficView), v TrafficView) {
	for _, fn := range listeners {
		fn(v.clone())
	}
}
