package web

import (
	"net/http"
	"time"

	"shepherd/internal/application/orchestrators"
	"shepherd/internal/application/projections"
	"shepherd/internal/domain/availability"
)

type windowResponse struct {
	ID            string    `json:"id"`
	Owner         string    `json:"owner"`
	CounselorName string    `json:"counselor_name"`
	DayOfWeek     string    `json:"day_of_week"`
	DayDisplay    string    `json:"day_display"`
	StartTime     string    `json:"start_time"`
	EndTime       string    `json:"end_time"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func toWindowResponse(w availability.Window, parties projections.GetPartiesResult) windowResponse {
	return windowResponse{
		ID:            w.ID,
		Owner:         w.OwnerID,
		CounselorName: parties.Name(w.OwnerID),
		DayOfWeek:     string(w.Day),
		DayDisplay:    w.Day.Label(),
		StartTime:     w.StartTime,
		EndTime:       w.EndTime,
		IsActive:      w.IsActive,
		CreatedAt:     w.CreatedAt,
		UpdatedAt:     w.UpdatedAt,
	}
}

func (a *api) writeWindow(w http.ResponseWriter, r *http.Request, status int, win availability.Window) {
	parties, err := projections.QueryGetParties(r.Context(), projections.GetPartiesQuery{IDs: []string{win.OwnerID}}, a.Queries)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, status, toWindowResponse(win, parties))
}

// createWindowRequest accepts owner so clients echoing a window back are not
// rejected; the owner is always the caller.
type createWindowRequest struct {
	Owner     string `json:"owner"`
	DayOfWeek string `json:"day_of_week"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	IsActive  *bool  `json:"is_active"`
}

type patchWindowRequest struct {
	DayOfWeek *string `json:"day_of_week"`
	StartTime *string `json:"start_time"`
	EndTime   *string `json:"end_time"`
	IsActive  *bool   `json:"is_active"`
}

func (a *api) handleListAvailability(w http.ResponseWriter, r *http.Request) {
	windows, err := orchestrators.ExecuteListAvailability(r.Context(), actor(r), a.Availability)
	if err != nil {
		writeError(w, r, err)
		return
	}
	owners := make([]string, 0, len(windows))
	for _, win := range windows {
		owners = append(owners, win.OwnerID)
	}
	parties, err := projections.QueryGetParties(r.Context(), projections.GetPartiesQuery{IDs: owners}, a.Queries)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]windowResponse, 0, len(windows))
	for _, win := range windows {
		out = append(out, toWindowResponse(win, parties))
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *api) handleGetAvailability(w http.ResponseWriter, r *http.Request) {
	win, err := orchestrators.ExecuteGetAvailability(r.Context(), actor(r), r.PathValue("id"), a.Availability)
	if err != nil {
		writeError(w, r, err)
		return
	}
	a.writeWindow(w, r, http.StatusOK, win)
}

func (a *api) handleCreateAvailability(w http.ResponseWriter, r *http.Request) {
	var req createWindowRequest
	if err := strictDecode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	win, err := orchestrators.ExecuteCreateAvailability(r.Context(), orchestrators.CreateAvailabilityInput{
		Actor:     actor(r),
		Day:       req.DayOfWeek,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		IsActive:  req.IsActive,
	}, a.Availability)
	if err != nil {
		writeError(w, r, err)
		return
	}
	a.writeWindow(w, r, http.StatusCreated, win)
}

func (a *api) handleUpdateAvailability(w http.ResponseWriter, r *http.Request) {
	var req patchWindowRequest
	if err := strictDecode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	win, err := orchestrators.ExecuteUpdateAvailability(r.Context(), orchestrators.UpdateAvailabilityInput{
		Actor: actor(r),
		ID:    r.PathValue("id"),
		Patch: availability.Patch{
			Day:       req.DayOfWeek,
			StartTime: req.StartTime,
			EndTime:   req.EndTime,
			IsActive:  req.IsActive,
		},
	}, a.Availability)
	if err != nil {
		writeError(w, r, err)
		return
	}
	a.writeWindow(w, r, http.StatusOK, win)
}

func (a *api) handleDeleteAvailability(w http.ResponseWriter, r *http.Request) {
	if err := orchestrators.ExecuteDeleteAvailability(r.Context(), actor(r), r.PathValue("id"), a.Availability); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
