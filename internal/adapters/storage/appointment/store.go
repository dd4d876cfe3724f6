package appointment

import (
	"context"
	"errors"
	"time"

	domain "shepherd/internal/domain/appointment"
)

// Store errors.
var (
	ErrNotFound = errors.New("appointment not found")
	// ErrStale is returned when the row changed since it was read.
	ErrStale = errors.New("appointment was modified concurrently")
)

// Store persists appointments.
type Store interface {
	GetByID(ctx context.Context, id string) (domain.Appointment, error)
	Create(ctx context.Context, a domain.Appointment) error
	// Update writes a only if the stored updated_at still equals readAt.
	Update(ctx context.Context, a domain.Appointment, readAt time.Time) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter domain.Filter) ([]domain.Appointment, error)
	// CountOpenAtSlot counts PENDING or CONFIRMED appointments for the
	// counselor at date and time.
	CountOpenAtSlot(ctx context.Context, counselorID, date, clock string) (int, error)
}
