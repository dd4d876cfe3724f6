package outbox

import (
	"context"
	"errors"

	domain "shepherd/internal/domain/outbox"
)

// ErrNotFound is returned when no entry matches.
var ErrNotFound = errors.New("outbox entry not found")

// Store defines the interface for outbox entry persistence.
type Store interface {
	// GetByID retrieves an outbox entry by its ID.
	// PRE: id is non-empty
	// POST: Returns the entry or ErrNotFound
	GetByID(ctx context.Context, id string) (domain.Entry, error)

	// Save persists an outbox entry (insert or update).
	// PRE: entry has been validated
	Save(ctx context.Context, e domain.Entry) error

	// ListPending returns entries still waiting for delivery.
	// PRE: limit > 0
	// POST: Returns up to limit pending or retrying entries, oldest first
	ListPending(ctx context.Context, limit int) ([]domain.Entry, error)

	// ListFailed returns entries whose attempt budget is spent.
	// PRE: limit > 0
	// POST: Returns up to limit failed entries, most recent attempt first
	ListFailed(ctx context.Context, limit int) ([]domain.Entry, error)
}
