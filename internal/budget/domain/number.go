package budget

import (
	"fmt"
	"sync"
	"time"
)

// Clock provides current time.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now.
type SystemClock struct{}

// Now returns current time.
func (SystemClock) Now() time.Time { return time.Now() }

// NumberGenerator issues engagement numbers of the form
// ENG-YYYY-MM-NNNNNN where the suffix is the last six digits of the
// creation timestamp in milliseconds. Timestamps never repeat within a
// generator, so two numbers never share a suffix unless a million
// milliseconds separate them.
type NumberGenerator struct {
	mu    sync.Mutex
	clock Clock
	last  int64
}

// NewNumberGenerator builds a generator; a nil clock means SystemClock.
func NewNumberGenerator(clock Clock) *NumberGenerator {
	if clock == nil {
		clock = SystemClock{}
	}
	return &NumberGenerator{clock: clock}
}

// Next returns a fresh engagement number and the time it was stamped with.
func (g *NumberGenerator) Next() (string, time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()
	ms := now.UnixMilli()
	if ms <= g.last {
		ms = g.last + 1
	}
	g.last = ms
	return fmt.Sprintf("ENG-%04d-%02d-%06d", now.Year(), int(now.Month()), ms%1_000_000), now
}
