package appointment

import (
	"strings"
	"time"
	"unicode/utf8"

	"shepherd/internal/domain/availability"
	"shepherd/internal/domain/fault"
)

// Max length constants
const (
	MaxSubjectLength  = 255
	MaxLocationLength = 255
)

// DateLayout is the requested_date wire and storage format.
const DateLayout = "2006-01-02"

// Appointment is a single dated booking request between one member and one
// counselor.
type Appointment struct {
	ID                    string
	MemberID              string
	CounselorID           string
	RequestedDate         string // YYYY-MM-DD
	RequestedTime         string // HH:MM
	Status                Status
	Subject               string
	Notes                 string
	CounselorPrivateNotes string
	Location              string
	MessageToMember       string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Validate checks if the Appointment has valid data and normalises
// RequestedTime to HH:MM.
// PRE: Appointment struct is populated
// POST: Returns nil if valid, a *fault.ValidationError otherwise
func (a *Appointment) Validate() error {
	if strings.TrimSpace(a.MemberID) == "" {
		return fault.Validation("member", "cannot be empty")
	}
	if strings.TrimSpace(a.CounselorID) == "" {
		return fault.Validation("counselor", "cannot be empty")
	}
	if _, err := ParseDate(a.RequestedDate); err != nil {
		return err
	}
	clock, err := availability.ParseClock("requested_time", a.RequestedTime)
	if err != nil {
		return err
	}
	a.RequestedTime = clock
	if !a.Status.Valid() {
		return fault.Validation("status", "unknown status")
	}
	if strings.TrimSpace(a.Subject) == "" {
		return fault.Validation("subject", "cannot be empty")
	}
	if utf8.RuneCountInString(a.Subject) > MaxSubjectLength {
		return fault.Validation("subject", "cannot exceed 255 characters")
	}
	if utf8.RuneCountInString(a.Location) > MaxLocationLength {
		return fault.Validation("location", "cannot exceed 255 characters")
	}
	return nil
}

// ParseDate parses a YYYY-MM-DD requested date.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fault.Validation("requested_date", "must be YYYY-MM-DD")
	}
	return d, nil
}

// Filter narrows an appointment listing. Zero values mean no restriction.
type Filter struct {
	MemberID    string
	CounselorID string
}

// Matches reports whether a passes the filter.
func (f Filter) Matches(a Appointment) bool {
	if f.MemberID != "" && a.MemberID != f.MemberID {
		return false
	}
	return f.CounselorID == "" || a.CounselorID == f.CounselorID
}
