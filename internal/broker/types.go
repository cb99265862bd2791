package broker

import "context"

type Producer interface {
	Publish(ctx context.Context, topic, key string, value []byte) error
	Close() error
}

// HandlerFunc processes one consumed message. A non-nil error leaves the
// message uncommitted so it is redelivered.
type HandlerFunc func(ctx context.Context, key, value []byte) error

type Consumer interface {
	Consume(ctx context.Context, topic string, handler HandlerFunc) error
	Close() error
	SetServiceName(name string)
}
