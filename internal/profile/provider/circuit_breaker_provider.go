package provider

import (
	"context"
	"errors"
	"fmt"

	"beacon/internal/event"
	"beacon/pkg/circuitbreaker"
)

// CircuitBreakerProvider guards a UserProvider so that a failing backend
// does not stall the ingest path. ErrNotFound is a normal outcome and never
// counts against the breaker.
type CircuitBreakerProvider struct {
	provider UserProvider
	cb       *circuitbreaker.Wrapper
}

func WrapWithCircuitBreaker(p UserProvider, cfg circuitbreaker.Config) *CircuitBreakerProvider {
	if cfg.Name == "" {
		cfg.Name = p.Name()
	}
	return &CircuitBreakerProvider{
		provider: p,
		cb:       circuitbreaker.NewWrapper(cfg),
	}
}

func (p *CircuitBreakerProvider) Name() string {
	return p.provider.Name()
}

func (p *CircuitBreakerProvider) Fetch(ctx context.Context, deviceID string) (*event.User, error) {
	result, err := p.cb.Execute(ctx, func() (interface{}, error) {
		user, err := p.provider.Fetch(ctx, deviceID)
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return user, err
	})
	if err != nil {
		if p.cb.IsOpen() {
			return nil, fmt.Errorf("circuit breaker open for %s: %w", p.provider.Name(), err)
		}
		return nil, err
	}
	if result == nil {
		return nil, ErrNotFound
	}

	user, ok := result.(*event.User)
	if !ok || user == nil {
		return nil, ErrNotFound
	}
	return user, nil
}
