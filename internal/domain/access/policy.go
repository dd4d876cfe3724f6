// Package access decides what an actor may see and change.
//
// A Policy is chosen once per call from the actor's role. Role-specific
// scope and field rules live on the variant; the coarse role/resource/action
// table lives in Grid. Policies hold no state between calls.
package access

import (
	"strings"

	"shepherd/internal/domain/account"
	"shepherd/internal/domain/appointment"
	"shepherd/internal/domain/availability"
	"shepherd/internal/domain/fault"
)

// Actor is the caller identity supplied by the identity provider.
type Actor struct {
	ID   string
	Role account.Role
}

// Policy is the role-tagged rule set for one actor.
type Policy interface {
	Actor() Actor
	// WindowScope is the visible set of availability windows.
	WindowScope() availability.Filter
	// AppointmentScope is the visible set of appointments.
	AppointmentScope() appointment.Filter
	// CheckWindowChange guards update and delete of a visible window.
	CheckWindowChange(w availability.Window) error
	// CheckAppointmentPatch guards the fields and status in p.
	CheckAppointmentPatch(a appointment.Appointment, p appointment.Patch) error
}

// For returns the policy variant for actor.
// PRE: actor comes from the identity provider
// POST: returns a Forbidden error for an empty id or an unknown role
func For(actor Actor) (Policy, error) {
	if strings.TrimSpace(actor.ID) == "" {
		return nil, fault.Forbidden("missing actor identity")
	}
	switch actor.Role {
	case account.RoleMember:
		return memberPolicy{actor}, nil
	case account.RoleCounselor:
		return counselorPolicy{actor}, nil
	case account.RoleAdmin:
		return adminPolicy{actor}, nil
	}
	return nil, fault.Forbidden("unknown role " + string(actor.Role))
}

// CanSeeWindow reports whether w is in p's visible set.
func CanSeeWindow(p Policy, w availability.Window) bool {
	return p.WindowScope().Matches(w)
}

// CanSeeAppointment reports whether a is in p's visible set.
func CanSeeAppointment(p Policy, a appointment.Appointment) bool {
	return p.AppointmentScope().Matches(a)
}

type memberPolicy struct{ actor Actor }

func (p memberPolicy) Actor() Actor { return p.actor }

func (p memberPolicy) WindowScope() availability.Filter {
	return availability.Filter{ActiveOnly: true}
}

func (p memberPolicy) AppointmentScope() appointment.Filter {
	return appointment.Filter{MemberID: p.actor.ID}
}

func (p memberPolicy) CheckWindowChange(availability.Window) error {
	return fault.Forbidden("members cannot change availability")
}

// Members may only cancel.
func (p memberPolicy) CheckAppointmentPatch(_ appointment.Appointment, patch appointment.Patch) error {
	fields := patch.Fields()
	if len(fields) != 1 || patch.Status == nil || *patch.Status != appointment.StatusCancelled {
		return fault.Forbidden("members may only cancel their appointment")
	}
	return nil
}

type counselorPolicy struct{ actor Actor }

// counselorFields are the only fields a counselor may write.
var counselorFields = map[string]bool{
	appointment.FieldStatus:                true,
	appointment.FieldCounselorPrivateNotes: true,
	appointment.FieldLocation:              true,
	appointment.FieldMessageToMember:       true,
}

func (p counselorPolicy) Actor() Actor { return p.actor }

func (p counselorPolicy) WindowScope() availability.Filter {
	return availability.Filter{OwnerID: p.actor.ID}
}

func (p counselorPolicy) AppointmentScope() appointment.Filter {
	return appointment.Filter{CounselorID: p.actor.ID}
}

func (p counselorPolicy) CheckWindowChange(w availability.Window) error {
	if w.OwnerID != p.actor.ID {
		return fault.Forbidden("window belongs to another counselor")
	}
	return nil
}

func (p counselorPolicy) CheckAppointmentPatch(_ appointment.Appointment, patch appointment.Patch) error {
	for _, f := range patch.Fields() {
		if !counselorFields[f] {
			return fault.Forbidden("counselors cannot change " + f)
		}
	}
	return nil
}

type adminPolicy struct{ actor Actor }

func (p adminPolicy) Actor() Actor { return p.actor }

func (p adminPolicy) WindowScope() availability.Filter { return availability.Filter{} }

func (p adminPolicy) AppointmentScope() appointment.Filter { return appointment.Filter{} }

func (p adminPolicy) CheckWindowChange(availability.Window) error { return nil }

func (p adminPolicy) CheckAppointmentPatch(_ appointment.Appointment, patch appointment.Patch) error {
	if patch.Member != nil {
		return fault.Forbidden("member cannot be reassigned")
	}
	return nil
}
