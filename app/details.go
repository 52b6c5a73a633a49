package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rdmonitor/rdmon/adapters/metrics"
	"github.com/rdmonitor/rdmon/domain/demo"
	"github.com/rdmonitor/rdmon/domain/traffic"
	"github.com/rdmonitor/rdmon/ports"
	"github.com/rs/zerolog"
)

const queryDetails = "details"

// Details is the per-day breakdown of the last 31 days.
type Details struct {
	Mode       traffic.Mode
	Window     traffic.Window
	Days       []traffic.Day
	TotalBytes int64
}

// DetailsService fetches the per-day host breakdown on demand.
// Unlike TrafficService it keeps no state between calls.
type DetailsService struct {
	sources   ports.TrafficSourceFactory
	generator *demo.Generator
	clock     ports.Clock
	metrics   *metrics.Collector
	logger    zerolog.Logger
	cfg       func() TrafficConfig
}

// NewDetailsService creates a details service sharing the traffic
// dependencies. The demo latency follows ts's current config.
func NewDetailsService(deps TrafficDeps, ts *TrafficService) *DetailsService {
	d := &DetailsService{
		sources:   deps.Sources,
		generator: deps.Generator,
		clock:     deps.Clock,
		metrics:   deps.Metrics,
		logger:    deps.Logger.With().Str("component", "details").Logger(),
		cfg:       DefaultTrafficConfig,
	}
	if ts != nil {
		d.cfg = func() TrafficConfig { return *ts.cfg.Load() }
	}
	return d
}

// Fetch returns the last-31-days breakdown, newest day first.
func (d *DetailsService) Fetch(ctx context.Context, cfg traffic.RefreshConfig) (Details, error) {
	mode := cfg.Mode()
	if mode == traffic.ModeDisabled {
		return Details{}, traffic.ErrNoAPIKey
	}

	now := d.clock.Now()
	result := Details{
		Mode:   mode,
		Window: traffic.WindowFor(traffic.Last31Days, now),
	}

	start := time.Now()
	var err error
	if mode == traffic.ModeDemo {
		result.Days, err = d.demoDays(ctx, now)
	} else {
		result.Days, err = d.sources(cfg.APIKey).Days(ctx, result.Window.StartDate(), result.Window.EndDate())
	}
	took := time.Since(start)
	d.metrics.ObserveQuery(queryDetails, took, err)

	if err != nil {
		d.logger.Warn().
			Str("mode", mode.String()).
			Str("kind", traffic.KindOf(err).String()).
			Dur("duration", took).
			Err(err).
			Msg("details query failed")
		return Details{}, fmt.Errorf("fetch details: %w", err)
	}

	if result.Days == nil {
		result.Days = []traffic.Day{}
	}
	result.TotalBytes = traffic.TotalBytes(result.Days)

	d.logger.Debug().
		Str("mode", mode.String()).
		Int("days", len(result.Days)).
		Int64("bytes", result.TotalBytes).
		Dur("duration", took).
		Msg("details fetched")
	return result, nil
}

func (d *DetailsService) demoDays(ctx context.Context, now time.Time) ([]traffic.Day, error) {
	cfg := d.cfg()
	if err := d.clock.Sleep(ctx, d.generator.Latency(cfg.DemoMinLatency, cfg.DemoMaxLatency)); err != nil {
		return nil, err
	}
	return d.generator.Details(d.generator.Generate(now)), nil
}
