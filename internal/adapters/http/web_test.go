package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shepherd/internal/adapters/email"
	"shepherd/internal/adapters/http/middleware"
	"shepherd/internal/adapters/metrics"
	"shepherd/internal/adapters/storage"
	accountstore "shepherd/internal/adapters/storage/account"
	apptstore "shepherd/internal/adapters/storage/appointment"
	availstore "shepherd/internal/adapters/storage/availability"
	"shepherd/internal/application/orchestrators"
	"shepherd/internal/application/projections"
	"shepherd/internal/domain/access"
	"shepherd/internal/domain/account"
	"shepherd/internal/domain/notification"
)

var tokenCfg = middleware.TokenConfig{Secret: []byte("web-test-secret"), Issuer: "shepherd"}

type captureSender struct {
	mu   sync.Mutex
	sent []email.SendRequest
}

func (s *captureSender) Name() string { return "capture" }

func (s *captureSender) Send(_ context.Context, req email.SendRequest) (email.SendResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, req)
	return email.SendResult{MessageID: fmt.Sprintf("msg-%d", len(s.sent)), SentAt: time.Now()}, nil
}

func (s *captureSender) Sent() []email.SendRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]email.SendRequest(nil), s.sent...)
}

type apiEnv struct {
	handler    http.Handler
	sender     *captureSender
	dispatcher *orchestrators.Dispatcher
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	path := filepath.Join(t.TempDir(), "web.db")
	db, err := storage.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, storage.MigrateDB(db, path))

	m := metrics.New()
	az, err := access.NewAuthorizer(m.AccessDenied)
	require.NoError(t, err)

	accounts := accountstore.NewSQLiteStore(db)
	ctx := context.Background()
	for _, a := range []account.Account{
		{ID: "m1", Email: "m1@example.org", DisplayName: "Mary Member", Role: account.RoleMember},
		{ID: "m2", Email: "m2@example.org", DisplayName: "Ned Member", Role: account.RoleMember},
		{ID: "c1", Email: "c1@example.org", DisplayName: "Pastor Cole", Role: account.RoleCounselor},
		{ID: "a1", Email: "a1@example.org", DisplayName: "Office Admin", Role: account.RoleAdmin},
	} {
		a.CreatedAt = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		require.NoError(t, accounts.Save(ctx, a))
	}

	sender := &captureSender{}
	dispatcher := orchestrators.NewDispatcher(orchestrators.DispatcherConfig{
		From:        "Grace Chapel <noreply@grace.example>",
		SendTimeout: time.Second,
	}, orchestrators.DispatcherDeps{Sender: sender, Metrics: m})
	t.Cleanup(dispatcher.Close)

	var n atomic.Int64
	ids := func() string { return fmt.Sprintf("id-%03d", n.Add(1)) }

	deps := Deps{
		DB: db,
		Availability: orchestrators.AvailabilityDeps{
			Store:      availstore.NewSQLiteStore(db),
			Authorizer: az,
			GenerateID: ids,
			Metrics:    m,
		},
		Appointments: orchestrators.AppointmentDeps{
			Store:      apptstore.NewSQLiteStore(db),
			Accounts:   accounts,
			Authorizer: az,
			Hooks: []orchestrators.CommitHook{orchestrators.ConfirmationHook{
				Accounts:   accounts,
				Dispatcher: dispatcher,
				Org:        notification.Organization{Name: "Grace Chapel", Website: "https://grace.example"},
				Metrics:    m,
			}},
			GenerateID: ids,
			Metrics:    m,
		},
		Directory: orchestrators.DirectoryDeps{Accounts: accounts, Authorizer: az},
		Queries:   projections.DirectoryDeps{AccountStore: accounts, Authorizer: az},
		Token:     tokenCfg,
		Metrics:   m,
	}
	return &apiEnv{handler: NewMux(deps), sender: sender, dispatcher: dispatcher}
}

func tokenFor(t *testing.T, sub string, role account.Role) string {
	t.Helper()
	raw, err := middleware.IssueToken(tokenCfg, sub, role, time.Hour, time.Now())
	require.NoError(t, err)
	return raw
}

// do sends body (a JSON string or nil) as sub and returns the recorder.
func (e *apiEnv) do(t *testing.T, sub string, role account.Role, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	if sub != "" {
		req.Header.Set("Authorization", "Bearer "+tokenFor(t, sub, role))
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(bytes.NewReader(rr.Body.Bytes())).Decode(&v), rr.Body.String())
	return v
}

func TestHealthAndMetricsArePublic(t *testing.T) {
	env := newAPIEnv(t)

	rr := env.do(t, "", "", http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))

	rr = env.do(t, "", "", http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `shepherd_http_request_duration_seconds_count{code="200",method="GET",route="GET /healthz"} 1`)
}

func TestAPIRequiresBearerToken(t *testing.T) {
	env := newAPIEnv(t)
	for _, path := range []string{"/api/availability", "/api/appointments", "/api/counselors", "/api/accounts"} {
		rr := env.do(t, "", "", http.MethodGet, path, "")
		assert.Equal(t, http.StatusUnauthorized, rr.Code, path)
	}
}

func TestAvailabilityEndpoints(t *testing.T) {
	env := newAPIEnv(t)

	rr := env.do(t, "c1", account.RoleCounselor, http.MethodPost, "/api/availability",
		`{"owner":"c9","day_of_week":"monday","start_time":"09:00:00","end_time":"12:00"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	win := decode[windowResponse](t, rr)
	assert.Equal(t, "c1", win.Owner)
	assert.Equal(t, "MONDAY", win.DayOfWeek)
	assert.Equal(t, "09:00", win.StartTime)
	assert.True(t, win.IsActive)
	assert.Equal(t, "Pastor Cole", win.CounselorName)
	assert.Equal(t, "Monday", win.DayDisplay)
	assert.False(t, win.CreatedAt.IsZero())
	assert.Equal(t, win.CreatedAt, win.UpdatedAt)

	rr = env.do(t, "c1", account.RoleCounselor, http.MethodPost, "/api/availability",
		`{"day_of_week":"MONDAY","start_time":"09:00","end_time":"10:00"}`)
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = env.do(t, "c1", account.RoleCounselor, http.MethodPost, "/api/availability",
		`{"day_of_week":"TUESDAY","start_time":"12:00","end_time":"09:00"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "end_time", decode[errorResponse](t, rr).Field)

	rr = env.do(t, "c1", account.RoleCounselor, http.MethodPost, "/api/availability",
		`{"day_of_week":"TUESDAY","start_time":"09:00","end_time":"10:00","colour":"red"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, "m1", account.RoleMember, http.MethodPost, "/api/availability",
		`{"day_of_week":"TUESDAY","start_time":"09:00","end_time":"10:00"}`)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = env.do(t, "m1", account.RoleMember, http.MethodGet, "/api/availability", "")
	require.Equal(t, http.StatusOK, rr.Code)
	windows := decode[[]windowResponse](t, rr)
	require.Len(t, windows, 1)
	assert.Equal(t, "Pastor Cole", windows[0].CounselorName)
	assert.Equal(t, "Monday", windows[0].DayDisplay)

	path := "/api/availability/" + win.ID
	rr = env.do(t, "m1", account.RoleMember, http.MethodPatch, path, `{"end_time":"13:00"}`)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = env.do(t, "c1", account.RoleCounselor, http.MethodPatch, path, `{"end_time":"13:00","is_active":false}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	patched := decode[windowResponse](t, rr)
	assert.Equal(t, "13:00", patched.EndTime)
	assert.True(t, patched.CreatedAt.Equal(win.CreatedAt))
	assert.False(t, patched.UpdatedAt.Before(win.UpdatedAt))

	// Inactive windows drop out of a member's view.
	rr = env.do(t, "m1", account.RoleMember, http.MethodGet, path, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = env.do(t, "c1", account.RoleCounselor, http.MethodDelete, path, "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	rr = env.do(t, "c1", account.RoleCounselor, http.MethodGet, path, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAppointmentEndpoints(t *testing.T) {
	env := newAPIEnv(t)

	rr := env.do(t, "m1", account.RoleMember, http.MethodPost, "/api/appointments",
		`{"member":"m2","status":"CONFIRMED","counselor":"c1","requested_date":"2025-03-10","requested_time":"10:30","subject":"Guidance"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	appt := decode[appointmentResponse](t, rr)
	assert.Equal(t, "m1", appt.Member)
	assert.Equal(t, "PENDING", appt.Status)
	assert.Equal(t, "Pending", appt.StatusDisplay)
	assert.Equal(t, "Mary Member", appt.MemberName)
	assert.Equal(t, "m1@example.org", appt.MemberEmail)
	assert.Equal(t, "Pastor Cole", appt.CounselorName)
	path := "/api/appointments/" + appt.ID

	rr = env.do(t, "m1", account.RoleMember, http.MethodPost, "/api/appointments",
		`{"counselor":"m2","requested_date":"2025-03-10","requested_time":"10:30","subject":"Guidance"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "counselor", decode[errorResponse](t, rr).Field)

	rr = env.do(t, "m2", account.RoleMember, http.MethodGet, path, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = env.do(t, "m1", account.RoleMember, http.MethodPatch, path, `{"location":"Office"}`)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	// A member may only cancel, so an unknown status is refused before it is validated.
	rr = env.do(t, "m1", account.RoleMember, http.MethodPatch, path, `{"status":"ARCHIVED"}`)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = env.do(t, "c1", account.RoleCounselor, http.MethodPatch, path, `{"status":"DONE"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "status", decode[errorResponse](t, rr).Field)

	rr = env.do(t, "c1", account.RoleCounselor, http.MethodPatch, path,
		`{"status":"confirmed","location":"Parish office","message_to_member":"See you there"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "CONFIRMED", decode[appointmentResponse](t, rr).Status)

	env.dispatcher.Close()
	sent := env.sender.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, []string{"m1@example.org"}, sent[0].To)
	assert.Contains(t, sent[0].Text, "Parish office")

	rr = env.do(t, "m1", account.RoleMember, http.MethodGet, "/api/appointments", "")
	require.Equal(t, http.StatusOK, rr.Code)
	list := decode[[]appointmentResponse](t, rr)
	require.Len(t, list, 1)
	assert.Equal(t, "See you there", list[0].MessageToMember)
	assert.Equal(t, "Confirmed", list[0].StatusDisplay)
	assert.Equal(t, "Pastor Cole", list[0].CounselorName)
	assert.Equal(t, "Mary Member", list[0].MemberName)

	rr = env.do(t, "m1", account.RoleMember, http.MethodPatch, path, `{"status":"CANCELLED"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "CANCELLED", decode[appointmentResponse](t, rr).Status)

	rr = env.do(t, "m1", account.RoleMember, http.MethodPatch, path, `{"status":"CANCELLED"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "status", decode[errorResponse](t, rr).Field)

	rr = env.do(t, "c1", account.RoleCounselor, http.MethodPatch, path, `{"status":"CANCELLED","location":"Room 9"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	rr = env.do(t, "c1", account.RoleCounselor, http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Parish office", decode[appointmentResponse](t, rr).Location)

	rr = env.do(t, "a1", account.RoleAdmin, http.MethodDelete, path, "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	rr = env.do(t, "a1", account.RoleAdmin, http.MethodGet, path, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestDirectoryEndpoints(t *testing.T) {
	env := newAPIEnv(t)

	rr := env.do(t, "m1", account.RoleMember, http.MethodGet, "/api/counselors", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []counselorResponse{{ID: "c1", DisplayName: "Pastor Cole"}}, decode[[]counselorResponse](t, rr))

	rr = env.do(t, "m1", account.RoleMember, http.MethodGet, "/api/accounts", "")
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = env.do(t, "a1", account.RoleAdmin, http.MethodGet, "/api/accounts?role=member&limit=1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	page := decode[[]accountResponse](t, rr)
	require.Len(t, page, 1)
	assert.Equal(t, "MEMBER", page[0].Role)

	rr = env.do(t, "a1", account.RoleAdmin, http.MethodGet, "/api/accounts?limit=0", "")
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "limit", decode[errorResponse](t, rr).Field)

	rr = env.do(t, "a1", account.RoleAdmin, http.MethodPut, "/api/accounts/c2",
		`{"email":"Dee@Example.org","display_name":"Pastor Dee","role":"PASTOR"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	acc := decode[accountResponse](t, rr)
	assert.Equal(t, "dee@example.org", acc.Email)
	assert.Equal(t, "COUNSELOR", acc.Role)

	rr = env.do(t, "a1", account.RoleAdmin, http.MethodPut, "/api/accounts/c3",
		`{"email":"dee@example.org","display_name":"Someone Else","role":"MEMBER"}`)
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = env.do(t, "c1", account.RoleCounselor, http.MethodPut, "/api/accounts/c1",
		`{"email":"c1@example.org","display_name":"Pastor Cole","role":"ADMIN"}`)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestStrictDecode(t *testing.T) {
	env := newAPIEnv(t)
	tests := map[string]string{
		"empty body":    "",
		"not json":      "{",
		"trailing data": `{"day_of_week":"MONDAY","start_time":"09:00","end_time":"10:00"} {}`,
		"wrong type":    `{"day_of_week":1}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/availability", strings.NewReader(body))
			req.Header.Set("Authorization", "Bearer "+tokenFor(t, "c1", account.RoleCounselor))
			rr := httptest.NewRecorder()
			env.handler.ServeHTTP(rr, req)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
		})
	}
}

func TestInternalErrorIsGeneric(t *testing.T) {
	rr := httptest.NewRecorder()
	writeError(rr, httptest.NewRequest(http.MethodGet, "/api/x", nil), fmt.Errorf("disk I/O error: /var/lib/shepherd.db"))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, rr.Body.String())
}

type downDB struct{}

func (downDB) PingContext(context.Context) error { return fmt.Errorf("database is locked") }

func TestHealthReportsUnavailableDB(t *testing.T) {
	h := NewMux(Deps{DB: downDB{}, Token: tokenCfg})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
