package orchestrators

import (
	"context"
	"errors"
	"log/slog"
	"time"

	accountstore "shepherd/internal/adapters/storage/account"
	apptstore "shepherd/internal/adapters/storage/appointment"
	availstore "shepherd/internal/adapters/storage/availability"
	"shepherd/internal/domain/access"
	"shepherd/internal/domain/appointment"
	"shepherd/internal/domain/availability"
	"shepherd/internal/domain/fault"
)

// AppointmentDeps holds dependencies for the appointment orchestrators.
type AppointmentDeps struct {
	Store        apptstore.Store
	Accounts     accountstore.Store
	Availability availstore.Store // read only when EnforceSlotChecks is set
	Authorizer   *access.Authorizer
	Hooks        []CommitHook
	GenerateID   func() string
	Now          func() time.Time
	Metrics      Recorder

	// EnforceSlotChecks requires the requested time to fall inside an active
	// window of the counselor and to be free of other open appointments.
	EnforceSlotChecks bool
}

func (d AppointmentDeps) now() time.Time {
	if d.Now != nil {
		return d.Now().UTC()
	}
	return time.Now().UTC()
}

// CreateAppointmentInput carries input for the create appointment orchestrator.
// Member and status are not part of the input: they are forced.
type CreateAppointmentInput struct {
	Actor         access.Actor
	CounselorID   string
	RequestedDate string
	RequestedTime string
	Subject       string
	Notes         string
}

// ExecuteCreateAppointment books a PENDING appointment for the acting member.
// PRE: actor.Role == MEMBER, else Forbidden
// POST: MemberID = actor.ID, Status = PENDING; CounselorID resolves to a COUNSELOR account
func ExecuteCreateAppointment(ctx context.Context, input CreateAppointmentInput, deps AppointmentDeps) (appointment.Appointment, error) {
	if _, err := deps.Authorizer.Require(input.Actor, access.ResourceAppointment, access.ActionCreate); err != nil {
		return appointment.Appointment{}, err
	}

	now := deps.now()
	a := appointment.Appointment{
		ID:            deps.GenerateID(),
		MemberID:      input.Actor.ID,
		CounselorID:   input.CounselorID,
		RequestedDate: input.RequestedDate,
		RequestedTime: input.RequestedTime,
		Status:        appointment.StatusPending,
		Subject:       input.Subject,
		Notes:         input.Notes,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := a.Validate(); err != nil {
		return appointment.Appointment{}, err
	}
	if err := requireCounselor(ctx, deps.Accounts, a.CounselorID); err != nil {
		return appointment.Appointment{}, err
	}
	if deps.EnforceSlotChecks {
		if err := checkSlot(ctx, a, deps); err != nil {
			return appointment.Appointment{}, err
		}
	}

	if err := deps.Store.Create(ctx, a); err != nil {
		return appointment.Appointment{}, err
	}
	recorderOrNop(deps.Metrics).AppointmentCreated()

	slog.Info("appointment_event", "event", "appointment_created", "appointment_id", a.ID,
		"member_id", a.MemberID, "counselor_id", a.CounselorID, "date", a.RequestedDate, "time", a.RequestedTime)
	return a, nil
}

// ExecuteListAppointments returns the appointments visible to actor, newest first.
// POST: members only see rows they booked; counselors only rows addressed to them
func ExecuteListAppointments(ctx context.Context, actor access.Actor, deps AppointmentDeps) ([]appointment.Appointment, error) {
	p, err := deps.Authorizer.Require(actor, access.ResourceAppointment, access.ActionList)
	if err != nil {
		return nil, err
	}
	return deps.Store.List(ctx, p.AppointmentScope())
}

// ExecuteGetAppointment returns one visible appointment.
// POST: NotFound when absent or outside the actor's visible set
func ExecuteGetAppointment(ctx context.Context, actor access.Actor, id string, deps AppointmentDeps) (appointment.Appointment, error) {
	p, err := deps.Authorizer.Policy(actor)
	if err != nil {
		return appointment.Appointment{}, err
	}
	a, err := loadVisibleAppointment(ctx, p, id, deps.Store)
	if err != nil {
		return appointment.Appointment{}, err
	}
	if err := deps.Authorizer.Check(p, access.ResourceAppointment, access.ActionGet); err != nil {
		return appointment.Appointment{}, err
	}
	return a, nil
}

// UpdateAppointmentInput carries input for the update appointment orchestrator.
type UpdateAppointmentInput struct {
	Actor access.Actor
	ID    string
	Patch appointment.Patch
}

// ExecuteUpdateAppointment applies a role-checked patch to a visible appointment.
// PRE: target visible to actor (else NotFound); fields allowed for the role (else Forbidden)
// POST: status moved along a legal edge or unchanged; row written only if it
// was not modified since it was read; commit hooks ran after the write
func ExecuteUpdateAppointment(ctx context.Context, input UpdateAppointmentInput, deps AppointmentDeps) (appointment.Appointment, error) {
	p, err := deps.Authorizer.Policy(input.Actor)
	if err != nil {
		return appointment.Appointment{}, err
	}
	before, err := loadVisibleAppointment(ctx, p, input.ID, deps.Store)
	if err != nil {
		return appointment.Appointment{}, err
	}
	if err := deps.Authorizer.Check(p, access.ResourceAppointment, access.ActionUpdate); err != nil {
		return appointment.Appointment{}, err
	}
	if err := p.CheckAppointmentPatch(before, input.Patch); err != nil {
		return appointment.Appointment{}, deps.Authorizer.Refuse(p, access.ResourceAppointment, access.ActionUpdate, err)
	}
	if len(input.Patch.Fields()) == 0 {
		return before, nil
	}

	after, err := input.Patch.Apply(before)
	if err != nil {
		return appointment.Appointment{}, err
	}
	if after.CounselorID != before.CounselorID {
		if err := requireCounselor(ctx, deps.Accounts, after.CounselorID); err != nil {
			return appointment.Appointment{}, err
		}
	}
	after.UpdatedAt = deps.now()
	if !after.UpdatedAt.After(before.UpdatedAt) {
		after.UpdatedAt = before.UpdatedAt.Add(time.Microsecond)
	}

	if err := deps.Store.Update(ctx, after, before.UpdatedAt); err != nil {
		switch {
		case errors.Is(err, apptstore.ErrStale):
			return appointment.Appointment{}, fault.Conflict("appointment was modified by someone else, reload and retry")
		case errors.Is(err, apptstore.ErrNotFound):
			return appointment.Appointment{}, fault.NotFound("appointment")
		}
		return appointment.Appointment{}, err
	}

	if before.Status != after.Status {
		recorderOrNop(deps.Metrics).Transition(string(before.Status), string(after.Status))
		slog.Info("appointment_event", "event", "status_changed", "appointment_id", after.ID,
			"actor_id", input.Actor.ID, "from", string(before.Status), "to", string(after.Status))
	} else {
		slog.Info("appointment_event", "event", "appointment_updated", "appointment_id", after.ID,
			"actor_id", input.Actor.ID, "fields", input.Patch.Fields())
	}

	for _, h := range deps.Hooks {
		h.AfterUpdate(ctx, before, after)
	}
	return after, nil
}

// ExecuteDeleteAppointment removes a visible appointment. Members and
// counselors may delete their own rows, admins any row.
// POST: row removed; NotFound when outside the actor's visible set
func ExecuteDeleteAppointment(ctx context.Context, actor access.Actor, id string, deps AppointmentDeps) error {
	p, err := deps.Authorizer.Policy(actor)
	if err != nil {
		return err
	}
	if _, err := loadVisibleAppointment(ctx, p, id, deps.Store); err != nil {
		return err
	}
	if err := deps.Authorizer.Check(p, access.ResourceAppointment, access.ActionDelete); err != nil {
		return err
	}
	if err := deps.Store.Delete(ctx, id); err != nil {
		if errors.Is(err, apptstore.ErrNotFound) {
			return fault.NotFound("appointment")
		}
		return err
	}
	slog.Info("appointment_event", "event", "appointment_deleted", "appointment_id", id, "actor_id", actor.ID)
	return nil
}

func loadVisibleAppointment(ctx context.Context, p access.Policy, id string, store apptstore.Store) (appointment.Appointment, error) {
	a, err := store.GetByID(ctx, id)
	if errors.Is(err, apptstore.ErrNotFound) {
		return appointment.Appointment{}, fault.NotFound("appointment")
	}
	if err != nil {
		return appointment.Appointment{}, err
	}
	if !access.CanSeeAppointment(p, a) {
		return appointment.Appointment{}, fault.NotFound("appointment")
	}
	return a, nil
}

func requireCounselor(ctx context.Context, accounts accountstore.Store, id string) error {
	acc, err := accounts.GetByID(ctx, id)
	if errors.Is(err, accountstore.ErrNotFound) {
		return fault.Validation("counselor", "unknown counselor")
	}
	if err != nil {
		return err
	}
	if !acc.IsCounselor() {
		return fault.Validation("counselor", "account is not a counselor")
	}
	return nil
}

// checkSlot requires a published active window covering the requested
// weekday and time, and no other open appointment at the same slot.
func checkSlot(ctx context.Context, a appointment.Appointment, deps AppointmentDeps) error {
	date, err := appointment.ParseDate(a.RequestedDate)
	if err != nil {
		return err
	}
	day := availability.DayOf(date)
	windows, err := deps.Availability.List(ctx, availability.Filter{OwnerID: a.CounselorID, ActiveOnly: true})
	if err != nil {
		return err
	}
	covered := false
	for _, w := range windows {
		if w.Day == day && w.Covers(a.RequestedTime) {
			covered = true
			break
		}
	}
	if !covered {
		return fault.Validation("requested_time", "outside the counselor's published availability")
	}

	n, err := deps.Store.CountOpenAtSlot(ctx, a.CounselorID, a.RequestedDate, a.RequestedTime)
	if err != nil {
		return err
	}
	if n > 0 {
		return fault.Conflict("the counselor already has an appointment at this time")
	}
	return nil
}
