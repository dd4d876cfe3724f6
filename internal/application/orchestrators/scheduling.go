package orchestrators

import (
	"context"

	"shepherd/internal/domain/appointment"
)

// Recorder receives scheduling and notification counters.
// *metrics.Metrics satisfies it.
type Recorder interface {
	AppointmentCreated()
	Transition(from, to string)
	AvailabilityConflict()
	Notification(result string)
	OutboxRetry(result string)
}

type nopRecorder struct{}

func (nopRecorder) AppointmentCreated()    {}
func (nopRecorder) Transition(_, _ string) {}
func (nopRecorder) AvailabilityConflict()  {}
func (nopRecorder) Notification(_ string)  {}
func (nopRecorder) OutboxRetry(_ string)   {}

func recorderOrNop(r Recorder) Recorder {
	if r == nil {
		return nopRecorder{}
	}
	return r
}

// CommitHook runs after an appointment update is durable. Hooks must not
// block the caller and never report errors back to it.
type CommitHook interface {
	AfterUpdate(ctx context.Context, before, after appointment.Appointment)
}

// CommitHookFunc adapts a function to CommitHook.
type CommitHookFunc func(ctx context.Context, before, after appointment.Appointment)

// AfterUpdate implements CommitHook.
func (f CommitHookFunc) AfterUpdate(ctx context.Context, before, after appointment.Appointment) {
	f(ctx, before, after)
}
