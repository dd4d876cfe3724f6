package appointment

// Field names as they appear on the wire and in access rules.
const (
	FieldMember                = "member"
	FieldCounselor             = "counselor"
	FieldRequestedDate         = "requested_date"
	FieldRequestedTime         = "requested_time"
	FieldStatus                = "status"
	FieldSubject               = "subject"
	FieldNotes                 = "notes"
	FieldCounselorPrivateNotes = "counselor_private_notes"
	FieldLocation              = "location"
	FieldMessageToMember       = "message_to_member"
)

// Patch holds the optional fields of an appointment update. A nil pointer
// means the field was not supplied.
type Patch struct {
	Member                *string
	Counselor             *string
	RequestedDate         *string
	RequestedTime         *string
	Status                *Status
	Subject               *string
	Notes                 *string
	CounselorPrivateNotes *string
	Location              *string
	MessageToMember       *string
}

// Fields returns the names of the supplied fields.
func (p Patch) Fields() []string {
	var out []string
	add := func(set bool, name string) {
		if set {
			out = append(out, name)
		}
	}
	add(p.Member != nil, FieldMember)
	add(p.Counselor != nil, FieldCounselor)
	add(p.RequestedDate != nil, FieldRequestedDate)
	add(p.RequestedTime != nil, FieldRequestedTime)
	add(p.Status != nil, FieldStatus)
	add(p.Subject != nil, FieldSubject)
	add(p.Notes != nil, FieldNotes)
	add(p.CounselorPrivateNotes != nil, FieldCounselorPrivateNotes)
	add(p.Location != nil, FieldLocation)
	add(p.MessageToMember != nil, FieldMessageToMember)
	return out
}

// Apply returns a copy of a with the patch merged and validated.
// Member is never applied; access rules reject it before this point.
// PRE: a is a stored, valid appointment
// POST: a is unchanged; status moved only along a legal edge
func (p Patch) Apply(a Appointment) (Appointment, error) {
	if p.Status != nil {
		if err := CheckTransition(a.Status, *p.Status); err != nil {
			return Appointment{}, err
		}
		a.Status = *p.Status
	}
	if p.Counselor != nil {
		a.CounselorID = *p.Counselor
	}
	if p.RequestedDate != nil {
		a.RequestedDate = *p.RequestedDate
	}
	if p.RequestedTime != nil {
		a.RequestedTime = *p.RequestedTime
	}
	if p.Subject != nil {
		a.Subject = *p.Subject
	}
	if p.Notes != nil {
		a.Notes = *p.Notes
	}
	if p.CounselorPrivateNotes != nil {
		a.CounselorPrivateNotes = *p.CounselorPrivateNotes
	}
	if p.Location != nil {
		a.Location = *p.Location
	}
	if p.MessageToMember != nil {
		a.MessageToMember = *p.MessageToMember
	}
	if err := a.Validate(); err != nil {
		return Appointment{}, err
	}
	return a, nil
}

// BecameConfirmed reports whether before -> after is a transition into
// CONFIRMED.
func BecameConfirmed(before, after Status) bool {
	return before != StatusConfirmed && after == StatusConfirmed
}
