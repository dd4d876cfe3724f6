package web

import (
	"net/http"
	"time"

	"shepherd/internal/application/orchestrators"
	"shepherd/internal/application/projections"
	"shepherd/internal/domain/appointment"
)

type appointmentResponse struct {
	ID                    string    `json:"id"`
	Member                string    `json:"member"`
	MemberName            string    `json:"member_name"`
	MemberEmail           string    `json:"member_email"`
	Counselor             string    `json:"counselor"`
	CounselorName         string    `json:"counselor_name"`
	RequestedDate         string    `json:"requested_date"`
	RequestedTime         string    `json:"requested_time"`
	Status                string    `json:"status"`
	StatusDisplay         string    `json:"status_display"`
	Subject               string    `json:"subject"`
	Notes                 string    `json:"notes"`
	CounselorPrivateNotes string    `json:"counselor_private_notes"`
	Location              string    `json:"location"`
	MessageToMember       string    `json:"message_to_member"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

func toAppointmentResponse(a appointment.Appointment, parties projections.GetPartiesResult) appointmentResponse {
	return appointmentResponse{
		ID:                    a.ID,
		Member:                a.MemberID,
		MemberName:            parties.Name(a.MemberID),
		MemberEmail:           parties.Email(a.MemberID),
		Counselor:             a.CounselorID,
		CounselorName:         parties.Name(a.CounselorID),
		RequestedDate:         a.RequestedDate,
		RequestedTime:         a.RequestedTime,
		Status:                string(a.Status),
		StatusDisplay:         a.Status.Label(),
		Subject:               a.Subject,
		Notes:                 a.Notes,
		CounselorPrivateNotes: a.CounselorPrivateNotes,
		Location:              a.Location,
		MessageToMember:       a.MessageToMember,
		CreatedAt:             a.CreatedAt,
		UpdatedAt:             a.UpdatedAt,
	}
}

// createAppointmentRequest accepts member and status; both are ignored
// because creation forces them.
type createAppointmentRequest struct {
	Member        string `json:"member"`
	Status        string `json:"status"`
	Counselor     string `json:"counselor"`
	RequestedDate string `json:"requested_date"`
	RequestedTime string `json:"requested_time"`
	Subject       string `json:"subject"`
	Notes         string `json:"notes"`
}

type patchAppointmentRequest struct {
	Member                *string `json:"member"`
	Counselor             *string `json:"counselor"`
	RequestedDate         *string `json:"requested_date"`
	RequestedTime         *string `json:"requested_time"`
	Status                *string `json:"status"`
	Subject               *string `json:"subject"`
	Notes                 *string `json:"notes"`
	CounselorPrivateNotes *string `json:"counselor_private_notes"`
	Location              *string `json:"location"`
	MessageToMember       *string `json:"message_to_member"`
}

// toPatch leaves status unchecked so the access policy answers before the
// value is validated.
func (req patchAppointmentRequest) toPatch() appointment.Patch {
	p := appointment.Patch{
		Member:                req.Member,
		Counselor:             req.Counselor,
		RequestedDate:         req.RequestedDate,
		RequestedTime:         req.RequestedTime,
		Subject:               req.Subject,
		Notes:                 req.Notes,
		CounselorPrivateNotes: req.CounselorPrivateNotes,
		Location:              req.Location,
		MessageToMember:       req.MessageToMember,
	}
	if req.Status != nil {
		st := appointment.NormalizeStatus(*req.Status)
		p.Status = &st
	}
	return p
}

// writeAppointment renders one appointment with its parties resolved.
func (a *api) writeAppointment(w http.ResponseWriter, r *http.Request, status int, appt appointment.Appointment) {
	parties, err := projections.QueryGetParties(r.Context(), projections.GetPartiesQuery{
		IDs: []string{appt.MemberID, appt.CounselorID},
	}, a.Queries)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, status, toAppointmentResponse(appt, parties))
}

func (a *api) handleListAppointments(w http.ResponseWriter, r *http.Request) {
	list, err := orchestrators.ExecuteListAppointments(r.Context(), actor(r), a.Appointments)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ids := make([]string, 0, 2*len(list))
	for _, appt := range list {
		ids = append(ids, appt.MemberID, appt.CounselorID)
	}
	parties, err := projections.QueryGetParties(r.Context(), projections.GetPartiesQuery{IDs: ids}, a.Queries)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]appointmentResponse, 0, len(list))
	for _, appt := range list {
		out = append(out, toAppointmentResponse(appt, parties))
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *api) handleGetAppointment(w http.ResponseWriter, r *http.Request) {
	appt, err := orchestrators.ExecuteGetAppointment(r.Context(), actor(r), r.PathValue("id"), a.Appointments)
	if err != nil {
		writeError(w, r, err)
		return
	}
	a.writeAppointment(w, r, http.StatusOK, appt)
}

func (a *api) handleCreateAppointment(w http.ResponseWriter, r *http.Request) {
	var req createAppointmentRequest
	if err := strictDecode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	appt, err := orchestrators.ExecuteCreateAppointment(r.Context(), orchestrators.CreateAppointmentInput{
		Actor:         actor(r),
		CounselorID:   req.Counselor,
		RequestedDate: req.RequestedDate,
		RequestedTime: req.RequestedTime,
		Subject:       req.Subject,
		Notes:         req.Notes,
	}, a.Appointments)
	if err != nil {
		writeError(w, r, err)
		return
	}
	a.writeAppointment(w, r, http.StatusCreated, appt)
}

func (a *api) handleUpdateAppointment(w http.ResponseWriter, r *http.Request) {
	var req patchAppointmentRequest
	if err := strictDecode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	appt, err := orchestrators.ExecuteUpdateAppointment(r.Context(), orchestrators.UpdateAppointmentInput{
		Actor: actor(r),
		ID:    r.PathValue("id"),
		Patch: req.toPatch(),
	}, a.Appointments)
	if err != nil {
		writeError(w, r, err)
		return
	}
	a.writeAppointment(w, r, http.StatusOK, appt)
}

func (a *api) handleDeleteAppointment(w http.ResponseWriter, r *http.Request) {
	if err := orchestrators.ExecuteDeleteAppointment(r.Context(), actor(r), r.PathValue("id"), a.Appointments); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
