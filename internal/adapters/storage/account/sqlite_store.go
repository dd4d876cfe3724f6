package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"shepherd/internal/adapters/storage"
	domain "shepherd/internal/domain/account"
)

const dateLayout = "2006-01-02T15:04:05.999999999Z07:00"

const selectAccount = "SELECT id, email, display_name, role, created_at FROM account"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new account store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// GetByID retrieves an Account by its ID.
// PRE: id is non-empty
// POST: Returns the entity or ErrNotFound
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (domain.Account, error) {
	row := s.db.QueryRowContext(ctx, selectAccount+" WHERE id = ?", id)
	entity, err := scanAccount(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Account{}, ErrNotFound
	}
	return entity, err
}

// GetByEmail retrieves an Account by email (case-insensitive).
// PRE: email is non-empty
// POST: Returns the entity or ErrNotFound
func (s *SQLiteStore) GetByEmail(ctx context.Context, email string) (domain.Account, error) {
	row := s.db.QueryRowContext(ctx, selectAccount+" WHERE email = ?", strings.ToLower(strings.TrimSpace(email)))
	entity, err := scanAccount(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Account{}, ErrNotFound
	}
	return entity, err
}

// Save inserts or updates an Account. created_at is kept on update.
// PRE: entity has been validated
// POST: Entity is persisted; ErrEmailTaken if another id holds the email
func (s *SQLiteStore) Save(ctx context.Context, entity domain.Account) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO account (id, email, display_name, role, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   email=excluded.email, display_name=excluded.display_name, role=excluded.role`,
		entity.ID,
		strings.ToLower(strings.TrimSpace(entity.Email)),
		strings.TrimSpace(entity.DisplayName),
		string(entity.Role),
		entity.CreatedAt.UTC().Format(dateLayout),
	)
	if storage.IsUniqueViolation(err) {
		return ErrEmailTaken
	}
	return err
}

// Delete removes an Account from the database.
// PRE: id is non-empty
// POST: Entity with given id is removed
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM account WHERE id = ?", id)
	return err
}

// List retrieves Accounts ordered by display name.
// PRE: filter has valid parameters
// POST: Returns matching entities; Limit <= 0 means no limit
func (s *SQLiteStore) List(ctx context.Context, filter ListFilter) ([]domain.Account, error) {
	var queryBuilder strings.Builder
	var args []any

	queryBuilder.WriteString(selectAccount)
	if filter.Role != "" {
		queryBuilder.WriteString(" WHERE role = ?")
		args = append(args, string(filter.Role))
	}
	queryBuilder.WriteString(" ORDER BY display_name, id")
	if filter.Limit > 0 {
		queryBuilder.WriteString(" LIMIT ? OFFSET ?")
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.Account
	for rows.Next() {
		entity, err := scanAccount(rows.Scan)
		if err != nil {
			return nil, err
		}
		results = append(results, entity)
	}
	return results, rows.Err()
}

// Count returns the total number of accounts.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM account").Scan(&count)
	return count, err
}

// scanAccount extracts an Account from a row scanner function.
func scanAccount(scan func(dest ...any) error) (domain.Account, error) {
	var entity domain.Account
	var role, createdAt string
	if err := scan(&entity.ID, &entity.Email, &entity.DisplayName, &role, &createdAt); err != nil {
		return domain.Account{}, err
	}
	entity.Role = domain.Role(role)
	t, err := time.Parse(dateLayout, createdAt)
	if err != nil {
		return domain.Account{}, fmt.Errorf("account %s created_at: %w", entity.ID, err)
	}
	entity.CreatedAt = t
	return entity, nil
}
