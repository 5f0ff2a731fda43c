package services

import (
	"context"

	"traffic/internal/core"
)

// EventPublisher announces entry changes to downstream consumers.
type EventPublisher interface {
	PublishEntrySaved(ctx context.Context, entryID, clientID int64, date core.Date) error
	PublishEntryDeleted(ctx context.Context, entryID, clientID int64, date core.Date) error
}

// ChangeListener is told when a client's derived views become stale.
type ChangeListener interface {
	Invalidate(clientID int64)
}
