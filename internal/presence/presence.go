// Package presence abstracts the live-connection registry. The core only needs
// to know whether a member has a live channel and how to push one ephemeral
// event onto it; connection lifecycle belongs to the realtime transport.
package presence

import (
	"context"

	"github.com/google/uuid"
	"github.com/ripple-community/pebs-api/internal/models"
)

// Event is the ephemeral payload pushed over a live channel. It mirrors the
// persisted notification so an online recipient sees the same content either way.
type Event struct {
	Type    string                  `json:"type"`
	Title   string                  `json:"title"`
	Message string                  `json:"message"`
	Data    models.NotificationData `json:"data"`
}

// Presence reports live-channel availability and delivers best-effort pushes.
// Push returns false when nobody is listening; that is a normal outcome, not
// an error, since the persisted notification row is the durable record.
type Presence interface {
	IsOnline(ctx context.Context, accountID uuid.UUID) bool
	Push(ctx context.Context, accountID uuid.UUID, event Event) bool
}

// Streamer is implemented by backends that can hand the API server a
// consumable event stream for one account. The returned stop function
// releases the subscription and marks the account offline.
type Streamer interface {
	Stream(ctx context.Context, accountID uuid.UUID) (<-chan Event, func(), error)
}
