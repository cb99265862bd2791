package circuitbreaker

import (
	"context"
	"time"

	"github.com/sony/gobreaker"

	"beacon/pkg/metrics"
)

type Config struct {
	Name            string
	MaxRequests     uint32
	Interval        time.Duration
	Timeout         time.Duration
	FailureRatio    float64
	MinimumRequests uint32
}

func DefaultConfig(name string) Config {
	return Config{
		Name:            name,
		MaxRequests:     3,
		Interval:        60 * time.Second,
		Timeout:         60 * time.Second,
		FailureRatio:    0.5,
		MinimumRequests: 3,
	}
}

// Wrapper guards a callable behind a gobreaker circuit breaker and reflects
// state transitions into the metrics gauge.
type Wrapper struct {
	cb *gobreaker.CircuitBreaker
}

func NewWrapper(cfg Config) *Wrapper {
	if cfg.FailureRatio <= 0 {
		cfg.FailureRatio = 0.5
	}
	if cfg.MinimumRequests == 0 {
		cfg.MinimumRequests = 3
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= cfg.MinimumRequests && ratio >= cfg.FailureRatio
		},
		OnStateChange: func(name string, _, to gobreaker.State) {
			recordState(name, to)
		},
	}

	cb := gobreaker.NewCircuitBreaker(settings)
	recordState(cfg.Name, cb.State())

	return &Wrapper{cb: cb}
}

// Execute runs fn through the breaker, honoring context cancellation before
// and inside the protected call.
func (w *Wrapper) Execute(ctx context.Context, fn func() (interface{}, error)) (interface{}, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	return w.cb.Execute(func() (interface{}, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
			return fn()
		}
	})
}

func (w *Wrapper) State() gobreaker.State {
	return w.cb.State()
}

func (w *Wrapper) IsOpen() bool {
	return w.cb.State() == gobreaker.StateOpen
}

func recordState(name string, state gobreaker.State) {
	var v float64
	switch state {
	case gobreaker.StateHalfOpen:
		v = 1
	case gobreaker.StateOpen:
		v = 2
	}
	metrics.CircuitBreakerState.WithLabelValues(name).Set(v)
}
