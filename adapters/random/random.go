// Package random provides Random implementations.
package random

import (
	"math/rand/v2"
	"sync"

	"github.com/rdmonitor/rdmon/ports"
)

// Real draws from the process-wide generator. Safe for concurrent use.
type Real struct{}

// Float64 returns a pseudo-random value in [0, 1).
func (Real) Float64() float64 {
	return rand.Float64()
}

var _ ports.Random = Real{}

// Seeded is a reproducible source. Two Seeded values built from the same
// seed yield the same sequence.
type Seeded struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSeeded creates a deterministic source from seed.
func NewSeeded(seed uint64) *Seeded {
	return &Seeded{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Float64 returns the next value in the sequence.
func (s *Seeded) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

var _ ports.Random = (*Seeded)(nil)

// Fake provides scripted randomness for testing.
type Fake struct {
	mu       sync.Mutex
	values   []float64 // Preset values to return
	index    int
	fallback float64
}

// NewFake creates a fake that returns 0.5 once its preset values run out.
func NewFake() *Fake {
	return &Fake{fallback: 0.5}
}

// WithValues sets preset values to return in order.
func (f *Fake) WithValues(values ...float64) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values = values
	f.index = 0
	return f
}

// WithFallback sets the value returned after the presets are exhausted.
func (f *Fake) WithFallback(v float64) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fallback = v
	return f
}

// Float64 returns the next preset value, or the fallback.
func (f *Fake) Float64() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.index < len(f.values) {
		v := f.values[f.index]
		f.index++
		return v
	}
	return f.fallback
}

// Calls reports how many preset values have been consumed.
func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.index
}

// Reset rewinds the fake to its first preset value.
func (f *Fake) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.index = 0
}

var _ ports.Random = (*Fake)(nil)
