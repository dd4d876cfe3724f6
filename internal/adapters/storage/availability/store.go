package availability

import (
	"context"
	"errors"

	domain "shepherd/internal/domain/availability"
)

// Store errors.
var (
	ErrNotFound = errors.New("availability window not found")
	// ErrSlotTaken is returned when the owner already has an active window
	// with the same day and start time.
	ErrSlotTaken = errors.New("active window already exists for this slot")
)

// Store persists availability windows.
type Store interface {
	GetByID(ctx context.Context, id string) (domain.Window, error)
	Create(ctx context.Context, w domain.Window) error
	Update(ctx context.Context, w domain.Window) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter domain.Filter) ([]domain.Window, error)
}
