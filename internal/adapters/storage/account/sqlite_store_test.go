package account_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shepherd/internal/adapters/storage"
	store "shepherd/internal/adapters/storage/account"
	domain "shepherd/internal/domain/account"
)

func newStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "account.db")
	db, err := storage.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, storage.MigrateDB(db, path))
	return store.NewSQLiteStore(db)
}

var created = time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)

func TestSQLiteStore_SaveAndGet(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	a := domain.Account{ID: "c1", Email: " Pastor@Church.org ", DisplayName: "Pastor Jean", Role: domain.RoleCounselor, CreatedAt: created}
	require.NoError(t, s.Save(ctx, a))

	got, err := s.GetByID(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "pastor@church.org", got.Email)
	assert.Equal(t, domain.RoleCounselor, got.Role)
	assert.True(t, created.Equal(got.CreatedAt))

	byEmail, err := s.GetByEmail(ctx, "PASTOR@church.org")
	require.NoError(t, err)
	assert.Equal(t, "c1", byEmail.ID)

	_, err = s.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSQLiteStore_UpsertKeepsCreatedAt(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	a := domain.Account{ID: "m1", Email: "m@example.org", DisplayName: "Marie", Role: domain.RoleMember, CreatedAt: created}
	require.NoError(t, s.Save(ctx, a))

	a.DisplayName = "Marie L."
	a.CreatedAt = created.Add(48 * time.Hour)
	require.NoError(t, s.Save(ctx, a))

	got, err := s.GetByID(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "Marie L.", got.DisplayName)
	assert.True(t, created.Equal(got.CreatedAt))
}

func TestSQLiteStore_EmailTaken(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, domain.Account{ID: "m1", Email: "m@example.org", DisplayName: "A", Role: domain.RoleMember, CreatedAt: created}))
	err := s.Save(ctx, domain.Account{ID: "m2", Email: "m@example.org", DisplayName: "B", Role: domain.RoleMember, CreatedAt: created})
	assert.ErrorIs(t, err, store.ErrEmailTaken)
}

func TestSQLiteStore_ListByRole(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	for _, a := range []domain.Account{
		{ID: "c2", Email: "z@example.org", DisplayName: "Zoe", Role: domain.RoleCounselor, CreatedAt: created},
		{ID: "c1", Email: "a@example.org", DisplayName: "Adam", Role: domain.RoleCounselor, CreatedAt: created},
		{ID: "m1", Email: "m@example.org", DisplayName: "Marie", Role: domain.RoleMember, CreatedAt: created},
	} {
		require.NoError(t, s.Save(ctx, a))
	}

	counselors, err := s.List(ctx, store.ListFilter{Role: domain.RoleCounselor})
	require.NoError(t, err)
	require.Len(t, counselors, 2)
	assert.Equal(t, "Adam", counselors[0].DisplayName)

	page, err := s.List(ctx, store.ListFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "Marie", page[0].DisplayName)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.NoError(t, s.Delete(ctx, "m1"))
	n, _ = s.Count(ctx)
	assert.Equal(t, 2, n)
}
