package web

import (
	"net/http"
	"time"

	"shepherd/internal/application/listutil"
	"shepherd/internal/application/orchestrators"
	"shepherd/internal/application/projections"
	"shepherd/internal/domain/account"
)

type counselorResponse struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type accountResponse struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	Role        string    `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
}

func toAccountResponse(a account.Account) accountResponse {
	return accountResponse{
		ID:          a.ID,
		Email:       a.Email,
		DisplayName: a.DisplayName,
		Role:        string(a.Role),
		CreatedAt:   a.CreatedAt,
	}
}

type upsertAccountRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

func (a *api) handleListCounselors(w http.ResponseWriter, r *http.Request) {
	res, err := projections.QueryGetCounselors(r.Context(), actor(r), a.Queries)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]counselorResponse, 0, len(res.Counselors))
	for _, c := range res.Counselors {
		out = append(out, counselorResponse{ID: c.ID, DisplayName: c.DisplayName})
	}
	writeJSON(w, http.StatusOK, out)
}

// handleListAccounts serves GET /api/accounts?role=&limit=&offset=.
func (a *api) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	query, err := parseAccountQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	caller := actor(r)
	query.Actor = &caller
	res, err := projections.QueryGetAccountList(r.Context(), query, a.Queries)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]accountResponse, 0, len(res.Accounts))
	for _, acc := range res.Accounts {
		out = append(out, toAccountResponse(acc))
	}
	writeJSON(w, http.StatusOK, out)
}

func parseAccountQuery(r *http.Request) (projections.GetAccountListQuery, error) {
	page, err := listutil.ParsePage(r.URL.Query())
	if err != nil {
		return projections.GetAccountListQuery{}, err
	}
	query := projections.GetAccountListQuery{Limit: page.Limit, Offset: page.Offset}
	if s := r.URL.Query().Get("role"); s != "" {
		role, err := account.ParseRole(s)
		if err != nil {
			return query, err
		}
		query.Role = role
	}
	return query, nil
}

func (a *api) handleUpsertAccount(w http.ResponseWriter, r *http.Request) {
	var req upsertAccountRequest
	if err := strictDecode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	caller := actor(r)
	acc, err := orchestrators.ExecuteUpsertAccount(r.Context(), orchestrators.UpsertAccountInput{
		Actor:       &caller,
		ID:          r.PathValue("id"),
		Email:       req.Email,
		DisplayName: req.DisplayName,
		Role:        req.Role,
	}, a.Directory)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountResponse(acc))
}
