// Package eventbus connects the persistence layer's post-commit events to
// the trigger engine over a watermill pub/sub channel.
package eventbus

import (
	"context"

	"github.com/gearboxhq/gearbox/pkg/events"
)

type Event interface {
	GetType() events.EventType
}

type EventHandler func(ctx context.Context, event any) error

type EventBus interface {
	Publish(ctx context.Context, key string, event Event) error
	Subscribe(ctx context.Context) error
	Handle(eventType events.EventType, handler EventHandler)
	Close() error
	GenerateID() string
}
