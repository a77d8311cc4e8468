package f

import "context"

type PubSubProvider interface {
	Ping(ctx context.Context) error
	Publish(ctx context.Context, topic string, message string) error
	// Subscribe delivers messages to handler until ctx is done.
	Subscribe(ctx context.Context, topic string, handler func(message string)) error
	Close() error
}
