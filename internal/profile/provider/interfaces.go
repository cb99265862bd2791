package provider

import (
	"context"
	"errors"

	"beacon/internal/event"
)

// ErrNotFound reports that no profile exists for the device. Callers fall
// back to an anonymous user.
var ErrNotFound = errors.New("profile: not found")

// UserProvider resolves the user profile associated with a device id.
type UserProvider interface {
	Fetch(ctx context.Context, deviceID string) (*event.User, error)
	Name() string
}
