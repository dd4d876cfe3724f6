package appointment

import (
	"fmt"
	"strings"

	"shepherd/internal/domain/fault"
)

// Status is the lifecycle state of an appointment.
type Status string

// Status constants
const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusCancelled Status = "CANCELLED"
	StatusCompleted Status = "COMPLETED"
)

// ValidStatuses contains all valid status values.
var ValidStatuses = []Status{StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted}

// transitions is the only legal path to change status.
var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCancelled, StatusCompleted},
}

// NormalizeStatus folds s to the stored spelling without checking that the
// result is a known status.
func NormalizeStatus(s string) Status {
	return Status(strings.ToUpper(strings.TrimSpace(s)))
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	for _, v := range ValidStatuses {
		if v == s {
			return true
		}
	}
	return false
}

var statusLabels = map[Status]string{
	StatusPending:   "Pending",
	StatusConfirmed: "Confirmed",
	StatusCancelled: "Cancelled",
	StatusCompleted: "Completed",
}

// Label returns the human-readable name of s, or s itself when unknown.
func (s Status) Label() string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

// IsTerminal reports whether no transition leaves s.
func (s Status) IsTerminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

// CanTransition reports whether from -> to is an edge of the status graph.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CheckTransition returns a ValidationError unless from -> to is legal.
// A same-status change on an open appointment is not a transition and is
// accepted; a terminal appointment refuses every status write.
// PRE: from is a stored status
// POST: nil iff from is not terminal and (to == from or CanTransition(from, to))
func CheckTransition(from, to Status) error {
	if !to.Valid() {
		return fault.Validation("status", fmt.Sprintf("unknown status %q", to))
	}
	if from.IsTerminal() {
		return fault.Validation("status", fmt.Sprintf("appointment is %s; its status can no longer change", from))
	}
	if from == to || CanTransition(from, to) {
		return nil
	}
	return fault.Validation("status", fmt.Sprintf("cannot change status from %s to %s", from, to))
}
