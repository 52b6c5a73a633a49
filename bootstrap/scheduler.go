package bootstrap

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rdmonitor/rdmon/app"
	"github.com/rdmonitor/rdmon/config"
	"github.com/rdmonitor/rdmon/domain/settings"
	"github.com/rdmonitor/rdmon/domain/traffic"
	"github.com/rs/zerolog"
)

// IntervalFunc returns the tick period for the mode of the next cycle.
type IntervalFunc func(mode traffic.Mode, prefs settings.Preferences) time.Duration

// Scheduler starts a refresh cycle on startup and then once per interval.
// Each tick reads a fresh RefreshConfig, so settings changes apply to the
// next cycle without restarting the scheduler.
type Scheduler struct {
	traffic  *app.TrafficService
	settings *app.SettingsService
	interval IntervalFunc
	logger   zerolog.Logger

	kick     chan struct{}
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	mu       sync.Mutex
	stopOnce sync.Once
}

// NewScheduler creates a scheduler. It does nothing until Start.
func NewScheduler(ts *app.TrafficService, ss *app.SettingsService, interval IntervalFunc, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		traffic:  ts,
		settings: ss,
		interval: interval,
		logger:   logger.With().Str("component", "scheduler").Logger(),
		kick:     make(chan struct{}, 1),
	}
}

// Start runs the first refresh and the tick loop in the background.
// Cycles started by the scheduler are bound to ctx.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.loop(ctx)
}

// Trigger refreshes now and restarts the interval. It never blocks.
func (s *Scheduler) Trigger() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// Stop ends the loop and cancels the in-flight cycle.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		cancel := s.cancel
		s.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		s.wg.Wait()
		s.traffic.Stop()
	})
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	s.refresh(ctx, "startup")
	for {
		cfg := s.settings.RefreshConfig()
		prefs := s.settings.Preferences()
		timer := time.NewTimer(s.interval(cfg.Mode(), prefs))

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-s.kick:
			timer.Stop()
			s.refresh(ctx, "trigger")
		case <-timer.C:
			// Re-read: the preference may have changed while waiting.
			if !s.settings.Preferences().AutoRefresh {
				s.logger.Debug().Msg("auto refresh disabled, skipping tick")
				continue
			}
			s.refresh(ctx, "tick")
		}
	}
}

func (s *Scheduler) refresh(ctx context.Context, reason string) {
	cycle, err := s.traffic.Refresh(ctx, s.settings.RefreshConfig())
	if err != nil {
		if errors.Is(err, traffic.ErrNoAPIKey) {
			s.logger.Debug().Str("reason", reason).Msg("no API key configured, refresh skipped")
			return
		}
		s.logger.Warn().Err(err).Str("reason", reason).Msg("refresh failed to start")
		return
	}
	s.logger.Debug().
		Uint64("cycle", cycle.ID).
		Str("reason", reason).
		Str("mode", cycle.Mode.String()).
		Msg("scheduled refresh")
}

// ConfigIntervals ticks at the configured demo interval in demo mode. In
// live mode a refresh_interval preference that differs from the built-in
// default wins over the configured live interval. current is read on every
// tick so reloaded intervals apply.
func ConfigIntervals(current func() config.RefreshConfig) IntervalFunc {
	defaultInterval := settings.PreferencesFrom(settings.Defaults()).RefreshInterval
	return func(mode traffic.Mode, prefs settings.Preferences) time.Duration {
		cfg := current()
		if mode == traffic.ModeDemo {
			return cfg.DemoInterval
		}
		if prefs.RefreshInterval > 0 && prefs.RefreshInterval != defaultInterval {
			return prefs.RefreshInterval
		}
		return cfg.LiveInterval
	}
}
