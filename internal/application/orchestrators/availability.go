package orchestrators

import (
	"context"
	"errors"
	"log/slog"
	"time"

	availstore "shepherd/internal/adapters/storage/availability"
	"shepherd/internal/domain/access"
	"shepherd/internal/domain/availability"
	"shepherd/internal/domain/fault"
)

// AvailabilityDeps holds dependencies for the availability orchestrators.
type AvailabilityDeps struct {
	Store      availstore.Store
	Authorizer *access.Authorizer
	GenerateID func() string
	Now        func() time.Time
	Metrics    Recorder
}

func (d AvailabilityDeps) now() time.Time {
	if d.Now != nil {
		return d.Now().UTC()
	}
	return time.Now().UTC()
}

// ExecuteListAvailability returns the windows visible to actor: active
// windows of every counselor for members, own windows for counselors, all
// windows for admins.
// PRE: actor comes from the identity provider
// POST: every returned window is in the actor's visible set
func ExecuteListAvailability(ctx context.Context, actor access.Actor, deps AvailabilityDeps) ([]availability.Window, error) {
	p, err := deps.Authorizer.Require(actor, access.ResourceAvailability, access.ActionList)
	if err != nil {
		return nil, err
	}
	return deps.Store.List(ctx, p.WindowScope())
}

// ExecuteGetAvailability returns one visible window.
// POST: NotFound when absent or outside the actor's visible set
func ExecuteGetAvailability(ctx context.Context, actor access.Actor, id string, deps AvailabilityDeps) (availability.Window, error) {
	p, err := deps.Authorizer.Policy(actor)
	if err != nil {
		return availability.Window{}, err
	}
	w, err := loadVisibleWindow(ctx, p, id, deps.Store)
	if err != nil {
		return availability.Window{}, err
	}
	if err := deps.Authorizer.Check(p, access.ResourceAvailability, access.ActionGet); err != nil {
		return availability.Window{}, err
	}
	return w, nil
}

// CreateAvailabilityInput carries input for the create availability orchestrator.
// There is no owner field: the owner is always the actor.
type CreateAvailabilityInput struct {
	Actor     access.Actor
	Day       string
	StartTime string
	EndTime   string
	IsActive  *bool // defaults to true
}

// ExecuteCreateAvailability publishes a new weekly window for the acting counselor.
// PRE: actor.Role == COUNSELOR, else Forbidden
// POST: window persisted with OwnerID = actor.ID; Conflict if an active
// window with the same day and start time exists for that owner
func ExecuteCreateAvailability(ctx context.Context, input CreateAvailabilityInput, deps AvailabilityDeps) (availability.Window, error) {
	if _, err := deps.Authorizer.Require(input.Actor, access.ResourceAvailability, access.ActionCreate); err != nil {
		return availability.Window{}, err
	}

	w := availability.Window{
		ID:        deps.GenerateID(),
		OwnerID:   input.Actor.ID,
		Day:       availability.Day(input.Day),
		StartTime: input.StartTime,
		EndTime:   input.EndTime,
		IsActive:  true,
	}
	w.CreatedAt = deps.now()
	w.UpdatedAt = w.CreatedAt
	if input.IsActive != nil {
		w.IsActive = *input.IsActive
	}
	if err := w.Validate(); err != nil {
		return availability.Window{}, err
	}

	if err := deps.Store.Create(ctx, w); err != nil {
		return availability.Window{}, windowStoreError(err, deps.Metrics)
	}

	slog.Info("availability_event", "event", "window_created", "window_id", w.ID, "owner_id", w.OwnerID,
		"day", string(w.Day), "start", w.StartTime, "end", w.EndTime)
	return w, nil
}

// UpdateAvailabilityInput carries input for the update availability orchestrator.
type UpdateAvailabilityInput struct {
	Actor access.Actor
	ID    string
	Patch availability.Patch
}

// ExecuteUpdateAvailability applies a patch to a visible window.
// PRE: target visible to actor (else NotFound); actor owns it or is ADMIN (else Forbidden)
// POST: merged window re-validated and persisted; owner unchanged
func ExecuteUpdateAvailability(ctx context.Context, input UpdateAvailabilityInput, deps AvailabilityDeps) (availability.Window, error) {
	p, err := deps.Authorizer.Policy(input.Actor)
	if err != nil {
		return availability.Window{}, err
	}
	current, err := loadVisibleWindow(ctx, p, input.ID, deps.Store)
	if err != nil {
		return availability.Window{}, err
	}
	if err := checkWindowChange(deps.Authorizer, p, current, access.ActionUpdate); err != nil {
		return availability.Window{}, err
	}

	next, err := input.Patch.Apply(current)
	if err != nil {
		return availability.Window{}, err
	}
	if input.Patch.IsEmpty() {
		return current, nil
	}
	next.UpdatedAt = deps.now()
	if err := deps.Store.Update(ctx, next); err != nil {
		return availability.Window{}, windowStoreError(err, deps.Metrics)
	}

	slog.Info("availability_event", "event", "window_updated", "window_id", next.ID, "actor_id", input.Actor.ID,
		"day", string(next.Day), "start", next.StartTime, "end", next.EndTime, "active", next.IsActive)
	return next, nil
}

// ExecuteDeleteAvailability hard-deletes a visible window.
// PRE: target visible to actor (else NotFound); actor owns it or is ADMIN (else Forbidden)
// POST: window removed
func ExecuteDeleteAvailability(ctx context.Context, actor access.Actor, id string, deps AvailabilityDeps) error {
	p, err := deps.Authorizer.Policy(actor)
	if err != nil {
		return err
	}
	current, err := loadVisibleWindow(ctx, p, id, deps.Store)
	if err != nil {
		return err
	}
	if err := checkWindowChange(deps.Authorizer, p, current, access.ActionDelete); err != nil {
		return err
	}
	if err := deps.Store.Delete(ctx, id); err != nil {
		return windowStoreError(err, deps.Metrics)
	}
	slog.Info("availability_event", "event", "window_deleted", "window_id", id, "actor_id", actor.ID)
	return nil
}

func loadVisibleWindow(ctx context.Context, p access.Policy, id string, store availstore.Store) (availability.Window, error) {
	w, err := store.GetByID(ctx, id)
	if errors.Is(err, availstore.ErrNotFound) {
		return availability.Window{}, fault.NotFound("availability window")
	}
	if err != nil {
		return availability.Window{}, err
	}
	if !access.CanSeeWindow(p, w) {
		return availability.Window{}, fault.NotFound("availability window")
	}
	return w, nil
}

func checkWindowChange(az *access.Authorizer, p access.Policy, w availability.Window, action string) error {
	if err := az.Check(p, access.ResourceAvailability, action); err != nil {
		return err
	}
	if err := p.CheckWindowChange(w); err != nil {
		return az.Refuse(p, access.ResourceAvailability, action, err)
	}
	return nil
}

func windowStoreError(err error, m Recorder) error {
	switch {
	case errors.Is(err, availstore.ErrSlotTaken):
		recorderOrNop(m).AvailabilityConflict()
		return fault.Conflict("an active window already starts at this day and time")
	case errors.Is(err, availstore.ErrNotFound):
		return fault.NotFound("availability window")
	}
	return err
}
