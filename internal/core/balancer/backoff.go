package balancer

import (
	"math/rand"
	"time"
)

// Backoff is a retry-with-backoff state machine, not an exception loop:
// each call to Next either yields the next delay to wait before retrying,
// or reports that retrying should stop, grounded in the stop/exponential
// providers this was ported from.
type Backoff interface {
	// Next returns the delay before the next attempt, or ok=false if no
	// further attempt should be made.
	Next() (delay time.Duration, ok bool)

	// Reset clears any accumulated state, for reuse across calls.
	Reset()
}

// StopBackoff never retries: Next always reports ok=false.
type StopBackoff struct{}

var _ Backoff = StopBackoff{}

func (StopBackoff) Next() (time.Duration, bool) { return 0, false }
func (StopBackoff) Reset()                      {}

// ExponentialBackoffConfig configures an ExponentialBackoff provider.
type ExponentialBackoffConfig struct {
	InitialInterval     time.Duration
	Multiplier          float64
	RandomizationFactor float64
	MaxInterval         time.Duration
	MaxElapsedTime       time.Duration
}

// ExponentialBackoff yields exponentially increasing delays with
// randomisation, stopping once MaxElapsedTime has passed.
type ExponentialBackoff struct {
	cfg ExponentialBackoffConfig

	current time.Duration
	elapsed time.Duration
	started time.Time
	rand    *rand.Rand
}

var _ Backoff = (*ExponentialBackoff)(nil)

// NewExponentialBackoff creates an ExponentialBackoff with cfg, filling in
// defaults for a zero or negative InitialInterval or MaxInterval, a
// Multiplier of 1 or less, and a zero MaxElapsedTime. A negative
// MaxElapsedTime is kept, so Next stops at once.
func NewExponentialBackoff(cfg ExponentialBackoffConfig) *ExponentialBackoff {
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = 500 * time.Millisecond
	}
	if cfg.Multiplier <= 1 {
		cfg.Multiplier = 1.5
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = 60 * time.Second
	}
	if cfg.MaxElapsedTime == 0 {
		cfg.MaxElapsedTime = 15 * time.Minute
	}

	b := &ExponentialBackoff{
		cfg:  cfg,
		rand: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	b.Reset()
	return b
}

// Reset restarts the backoff at its initial interval.
func (b *ExponentialBackoff) Reset() {
	b.current = b.cfg.InitialInterval
	b.elapsed = 0
	b.started = time.Now()
}

// Next returns the next randomised delay, or ok=false once MaxElapsedTime
// has been exceeded.
func (b *ExponentialBackoff) Next() (time.Duration, bool) {
	if time.Since(b.started) >= b.cfg.MaxElapsedTime {
		return 0, false
	}

	delay := b.randomised(b.current)

	b.current = time.Duration(float64(b.current) * b.cfg.Multiplier)
	if b.current > b.cfg.MaxInterval {
		b.current = b.cfg.MaxInterval
	}

	return delay, true
}

func (b *ExponentialBackoff) randomised(d time.Duration) time.Duration {
	if b.cfg.RandomizationFactor <= 0 {
		return d
	}
	delta := b.cfg.RandomizationFactor * float64(d)
	min := float64(d) - delta
	max := float64(d) + delta
	return time.Duration(min + (b.rand.Float64() * (max - min)))
}
