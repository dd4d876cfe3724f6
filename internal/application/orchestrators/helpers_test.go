package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"shepherd/internal/adapters/email"
	"shepherd/internal/adapters/storage"
	accountstore "shepherd/internal/adapters/storage/account"
	apptstore "shepherd/internal/adapters/storage/appointment"
	availstore "shepherd/internal/adapters/storage/availability"
	outboxstore "shepherd/internal/adapters/storage/outbox"
	"shepherd/internal/domain/access"
	"shepherd/internal/domain/account"
	"shepherd/internal/domain/fault"
	"shepherd/internal/domain/notification"
)

var (
	memberM    = access.Actor{ID: "m1", Role: account.RoleMember}
	memberN    = access.Actor{ID: "m2", Role: account.RoleMember}
	counselorC = access.Actor{ID: "c1", Role: account.RoleCounselor}
	counselorD = access.Actor{ID: "c2", Role: account.RoleCounselor}
	adminA     = access.Actor{ID: "a1", Role: account.RoleAdmin}
)

var fixedTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// recordingSender captures every request and optionally fails.
type recordingSender struct {
	mu    sync.Mutex
	sent  []email.SendRequest
	fail  error
	block chan struct{}
}

func (s *recordingSender) Name() string { return "recording" }

func (s *recordingSender) Send(ctx context.Context, req email.SendRequest) (email.SendResult, error) {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return email.SendResult{}, ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, req)
	if s.fail != nil {
		return email.SendResult{}, s.fail
	}
	return email.SendResult{MessageID: fmt.Sprintf("msg-%d", len(s.sent)), SentAt: time.Now()}, nil
}

func (s *recordingSender) Sent() []email.SendRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]email.SendRequest(nil), s.sent...)
}

// countingRecorder counts notification results.
type countingRecorder struct {
	nopRecorder
	mu      sync.Mutex
	results map[string]int
}

func (r *countingRecorder) Notification(result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.results == nil {
		r.results = map[string]int{}
	}
	r.results[result]++
}

func (r *countingRecorder) count(result string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.results[result]
}

func sequentialIDs(prefix string) func() string {
	var n atomic.Int64
	return func() string { return fmt.Sprintf("%s-%03d", prefix, n.Add(1)) }
}

type testEnv struct {
	accounts     *accountstore.SQLiteStore
	availability *availstore.SQLiteStore
	appointments *apptstore.SQLiteStore
	outbox       *outboxstore.SQLiteStore
	authorizer   *access.Authorizer
	sender       *recordingSender
	dispatcher   *Dispatcher
	recorder     *countingRecorder
	clock        time.Time
	windowIDs    func() string
	apptIDs      func() string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shepherd.db")
	db, err := storage.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, storage.MigrateDB(db, path))

	az, err := access.NewAuthorizer(nil)
	require.NoError(t, err)

	env := &testEnv{
		accounts:     accountstore.NewSQLiteStore(db),
		availability: availstore.NewSQLiteStore(db),
		appointments: apptstore.NewSQLiteStore(db),
		outbox:       outboxstore.NewSQLiteStore(db),
		authorizer:   az,
		sender:       &recordingSender{},
		recorder:     &countingRecorder{},
		clock:        fixedTime,
		windowIDs:    sequentialIDs("win"),
		apptIDs:      sequentialIDs("appt"),
	}
	env.dispatcher = NewDispatcher(DispatcherConfig{
		From:        "Grace Chapel <noreply@grace.example>",
		SendTimeout: time.Second,
	}, DispatcherDeps{
		Sender:     env.sender,
		Outbox:     env.outbox,
		GenerateID: sequentialIDs("outbox"),
		Now:        func() time.Time { return fixedTime },
		Metrics:    env.recorder,
	})
	t.Cleanup(env.dispatcher.Close)

	ctx := context.Background()
	for _, a := range []account.Account{
		{ID: "m1", Email: "m1@example.org", DisplayName: "Mary Member", Role: account.RoleMember},
		{ID: "m2", Email: "m2@example.org", DisplayName: "Ned Member", Role: account.RoleMember},
		{ID: "c1", Email: "c1@example.org", DisplayName: "Pastor Cole", Role: account.RoleCounselor},
		{ID: "c2", Email: "c2@example.org", DisplayName: "Pastor Dee", Role: account.RoleCounselor},
		{ID: "a1", Email: "a1@example.org", DisplayName: "Office Admin", Role: account.RoleAdmin},
	} {
		a.CreatedAt = fixedTime
		require.NoError(t, env.accounts.Save(ctx, a))
	}
	return env
}

func (e *testEnv) availabilityDeps() AvailabilityDeps {
	return AvailabilityDeps{
		Store:      e.availability,
		Authorizer: e.authorizer,
		GenerateID: e.windowIDs,
		Now:        func() time.Time { return fixedTime },
		Metrics:    e.recorder,
	}
}

// appointmentDeps advances the clock one second per call to Now so
// successive updates carry distinct timestamps.
func (e *testEnv) appointmentDeps() AppointmentDeps {
	return AppointmentDeps{
		Store:        e.appointments,
		Accounts:     e.accounts,
		Availability: e.availability,
		Authorizer:   e.authorizer,
		Hooks: []CommitHook{ConfirmationHook{
			Accounts:   e.accounts,
			Dispatcher: e.dispatcher,
			Org:        notification.Organization{Name: "Grace Chapel", Website: "https://grace.example"},
			Metrics:    e.recorder,
		}},
		GenerateID: e.apptIDs,
		Now: func() time.Time {
			e.clock = e.clock.Add(time.Second)
			return e.clock
		},
		Metrics: e.recorder,
	}
}

func requireKind(t *testing.T, err error, kind string) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, fault.Kind(err), "error: %v", err)
}

func requireField(t *testing.T, err error, field string) {
	t.Helper()
	var ve *fault.ValidationError
	require.True(t, errors.As(err, &ve), "expected validation error, got %v", err)
	require.Equal(t, field, ve.Field)
}

func ptr[T any](v T) *T { return &v }
