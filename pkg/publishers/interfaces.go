package publishers

import "context"

// Publisher sends events to a downstream sink (Telegram, SQS, HTTP, etc).
type Publisher interface {
	ID() string
	Type() string
	Publish(ctx context.Context, evt Event) error
}

// Closer is implemented by publishers holding connections.
type Closer interface {
	Close() error
}
