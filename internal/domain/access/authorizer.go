package access

import (
	"fmt"
	"log/slog"

	"shepherd/internal/domain/fault"
)

// DenyObserver is told about every refused (resource, action) pair.
type DenyObserver func(resource, action string)

// Authorizer combines the role grid with the per-role policy variants.
type Authorizer struct {
	grid   *Grid
	onDeny DenyObserver
}

// NewAuthorizer builds an Authorizer. onDeny may be nil.
func NewAuthorizer(onDeny DenyObserver) (*Authorizer, error) {
	g, err := NewGrid()
	if err != nil {
		return nil, err
	}
	return &Authorizer{grid: g, onDeny: onDeny}, nil
}

// Policy resolves the variant for actor without checking any action.
func (a *Authorizer) Policy(actor Actor) (Policy, error) {
	p, err := For(actor)
	if err != nil {
		a.denied(actor, "*", "*")
		return nil, err
	}
	return p, nil
}

// Require returns the actor's policy if the role may perform action on
// resource, and a Forbidden error otherwise.
// PRE: called before any store mutation
// POST: err wraps fault.ErrForbidden when refused
func (a *Authorizer) Require(actor Actor, resource, action string) (Policy, error) {
	p, err := a.Policy(actor)
	if err != nil {
		return nil, err
	}
	if err := a.Check(p, resource, action); err != nil {
		return nil, err
	}
	return p, nil
}

// Check verifies an already-resolved policy against the role grid.
func (a *Authorizer) Check(p Policy, resource, action string) error {
	actor := p.Actor()
	ok, err := a.grid.Allowed(actor.Role, resource, action)
	if err != nil {
		return fmt.Errorf("enforce %s/%s: %w", resource, action, err)
	}
	if !ok {
		a.denied(actor, resource, action)
		return fault.Forbidden(fmt.Sprintf("%s may not %s %s", actor.Role, action, resource))
	}
	return nil
}

// Refuse records a denial decided by a policy rule rather than the grid.
func (a *Authorizer) Refuse(p Policy, resource, action string, err error) error {
	a.denied(p.Actor(), resource, action)
	return err
}

func (a *Authorizer) denied(actor Actor, resource, action string) {
	slog.Warn("access_event",
		"event", "access_denied",
		"actor_id", actor.ID,
		"role", string(actor.Role),
		"resource", resource,
		"action", action,
	)
	if a.onDeny != nil {
		a.onDeny(resource, action)
	}
}
