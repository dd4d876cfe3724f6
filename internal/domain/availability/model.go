package availability

import (
	"strings"
	"time"

	"shepherd/internal/domain/fault"
)

// Day is a day of the week in upper case.
type Day string

// Day of week constants
const (
	Monday    Day = "MONDAY"
	Tuesday   Day = "TUESDAY"
	Wednesday Day = "WEDNESDAY"
	Thursday  Day = "THURSDAY"
	Friday    Day = "FRIDAY"
	Saturday  Day = "SATURDAY"
	Sunday    Day = "SUNDAY"
)

// ValidDays contains all valid day values, Monday first.
var ValidDays = []Day{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

// TimeLayout is the stored wall-clock format.
const TimeLayout = "15:04"

// ParseDay normalises a day name (case-insensitive).
func ParseDay(s string) (Day, error) {
	d := Day(strings.ToUpper(strings.TrimSpace(s)))
	if d.Index() < 0 {
		return "", fault.Validation("day_of_week", "must be one of MONDAY..SUNDAY")
	}
	return d, nil
}

// Index returns the position of d in the week (Monday = 0), or -1.
func (d Day) Index() int {
	for i, v := range ValidDays {
		if v == d {
			return i
		}
	}
	return -1
}

var dayLabels = map[Day]string{
	Monday:    "Monday",
	Tuesday:   "Tuesday",
	Wednesday: "Wednesday",
	Thursday:  "Thursday",
	Friday:    "Friday",
	Saturday:  "Saturday",
	Sunday:    "Sunday",
}

// Label returns the display name of d, or d itself when unknown.
func (d Day) Label() string {
	if l, ok := dayLabels[d]; ok {
		return l
	}
	return string(d)
}

// DayOf maps a calendar date to its weekday.
func DayOf(t time.Time) Day {
	// time.Weekday starts on Sunday.
	return ValidDays[(int(t.Weekday())+6)%7]
}

// ParseClock parses "HH:MM" or "HH:MM:SS" and returns the canonical "HH:MM".
func ParseClock(field, s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fault.Validation(field, "cannot be empty")
	}
	if len(s) == len("15:04:05") {
		if _, err := time.Parse("15:04:05", s); err == nil {
			return s[:5], nil
		}
	}
	t, err := time.Parse(TimeLayout, s)
	if err != nil {
		return "", fault.Validation(field, "must be HH:MM")
	}
	return t.Format(TimeLayout), nil
}

// Window represents a recurring weekly open slot published by a counselor.
type Window struct {
	ID        string
	OwnerID   string
	Day       Day
	StartTime string // HH:MM
	EndTime   string // HH:MM
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks if the Window has valid data and normalises its fields.
// PRE: Window struct is populated
// POST: Returns nil if valid with Day upper-cased and times as HH:MM
// INVARIANT: EndTime > StartTime
func (w *Window) Validate() error {
	if strings.TrimSpace(w.OwnerID) == "" {
		return fault.Validation("owner", "cannot be empty")
	}
	day, err := ParseDay(string(w.Day))
	if err != nil {
		return err
	}
	start, err := ParseClock("start_time", w.StartTime)
	if err != nil {
		return err
	}
	end, err := ParseClock("end_time", w.EndTime)
	if err != nil {
		return err
	}
	// Zero-padded HH:MM compares correctly as a string.
	if end <= start {
		return fault.Validation("end_time", "must be after start_time")
	}
	w.Day, w.StartTime, w.EndTime = day, start, end
	return nil
}

// Covers reports whether clock (HH:MM) falls within [StartTime, EndTime).
func (w *Window) Covers(clock string) bool {
	return w.StartTime <= clock && clock < w.EndTime
}

// Patch holds the optional fields of an availability update.
type Patch struct {
	Day       *string
	StartTime *string
	EndTime   *string
	IsActive  *bool
}

// IsEmpty reports whether no field is set.
func (p Patch) IsEmpty() bool {
	return p.Day == nil && p.StartTime == nil && p.EndTime == nil && p.IsActive == nil
}

// Apply returns a copy of w with the patch merged and re-validated.
// PRE: w is a stored, valid window
// POST: w is unchanged; the returned window keeps ID and OwnerID
func (p Patch) Apply(w Window) (Window, error) {
	if p.Day != nil {
		w.Day = Day(*p.Day)
	}
	if p.StartTime != nil {
		w.StartTime = *p.StartTime
	}
	if p.EndTime != nil {
		w.EndTime = *p.EndTime
	}
	if p.IsActive != nil {
		w.IsActive = *p.IsActive
	}
	if err := w.Validate(); err != nil {
		return Window{}, err
	}
	return w, nil
}

// Filter narrows a window listing. Zero values mean no restriction.
type Filter struct {
	OwnerID    string
	ActiveOnly bool
}

// Matches reports whether w passes the filter.
func (f Filter) Matches(w Window) bool {
	if f.OwnerID != "" && w.OwnerID != f.OwnerID {
		return false
	}
	return !f.ActiveOnly || w.IsActive
}
