package port

import (
	"context"

	"github.com/taskdesk/taskdesk/internal/domain/event"
	"github.com/taskdesk/taskdesk/internal/domain/lifecycle"
)

// ActorResolver turns an authenticated user id into an actor with resolved
// capability flags. Implemented by the tenant isolation guard.
type ActorResolver interface {
	Resolve(ctx context.Context, userID int64) (*lifecycle.Actor, error)
}

// EventSink accepts events emitted after committed lifecycle operations.
// Implementations must not fail the publishing operation.
type EventSink interface {
	Publish(ctx context.Context, evt *event.Event)
}
