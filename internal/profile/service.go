package profile

import (
	"context"
	"errors"

	"beacon/internal/event"
	"beacon/internal/logger"
	"beacon/internal/profile/provider"
	"beacon/pkg/metrics"
)

// Service resolves the current user for a device: identities, attributes and
// consent state, per the accessor contract enrichment consumes.
type Service interface {
	CurrentUser(ctx context.Context, deviceID string) event.User
}

type serviceImpl struct {
	cache   *provider.CacheProvider
	backing provider.UserProvider
	logger  logger.Logger
}

// NewService builds a profile service with an optional cache layer in front
// of an optional backing provider. With neither configured every device
// resolves to the anonymous user.
func NewService(cache *provider.CacheProvider, backing provider.UserProvider, log logger.Logger) Service {
	return &serviceImpl{cache: cache, backing: backing, logger: log}
}

// CurrentUser never fails: lookup errors degrade to the anonymous user so
// event collection keeps flowing while the profile backend is unavailable.
func (s *serviceImpl) CurrentUser(ctx context.Context, deviceID string) event.User {
	if deviceID == "" {
		return anonymousUser()
	}

	if s.cache != nil {
		user, err := s.cache.Fetch(ctx, deviceID)
		switch {
		case err == nil:
			metrics.ProfileLookupsTotal.WithLabelValues(s.cache.Name(), "hit").Inc()
			return *user
		case errors.Is(err, provider.ErrNotFound):
			metrics.ProfileLookupsTotal.WithLabelValues(s.cache.Name(), "miss").Inc()
		default:
			metrics.ProfileLookupsTotal.WithLabelValues(s.cache.Name(), "error").Inc()
			s.logger.WarnwCtx(ctx, "Profile cache lookup failed",
				"device_id", deviceID,
				"error", err,
			)
		}
	}

	if s.backing == nil {
		return anonymousUser()
	}

	user, err := s.backing.Fetch(ctx, deviceID)
	if err != nil {
		if errors.Is(err, provider.ErrNotFound) {
			metrics.ProfileLookupsTotal.WithLabelValues(s.backing.Name(), "miss").Inc()
		} else {
			metrics.ProfileLookupsTotal.WithLabelValues(s.backing.Name(), "error").Inc()
			s.logger.ErrorwCtx(ctx, "Profile lookup failed",
				"device_id", deviceID,
				"provider", s.backing.Name(),
				"error", err,
			)
		}
		return anonymousUser()
	}
	metrics.ProfileLookupsTotal.WithLabelValues(s.backing.Name(), "hit").Inc()

	if s.cache != nil {
		if err := s.cache.Put(ctx, deviceID, user); err != nil {
			s.logger.WarnwCtx(ctx, "Failed to cache profile",
				"device_id", deviceID,
				"error", err,
			)
		}
	}

	return *user
}

func anonymousUser() event.User {
	return event.User{
		Identities: make(map[string]string),
		Attributes: make(map[string]interface{}),
	}
}
