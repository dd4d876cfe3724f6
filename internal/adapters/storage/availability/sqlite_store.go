package availability

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"shepherd/internal/adapters/storage"
	domain "shepherd/internal/domain/availability"
)

const selectWindow = "SELECT id, owner_id, day_of_week, start_time, end_time, is_active, created_at, updated_at FROM availability_window"

const dateLayout = "2006-01-02T15:04:05.000000000Z07:00"

// dayOrder sorts Monday first.
const dayOrder = `CASE day_of_week
	WHEN 'MONDAY' THEN 0 WHEN 'TUESDAY' THEN 1 WHEN 'WEDNESDAY' THEN 2
	WHEN 'THURSDAY' THEN 3 WHEN 'FRIDAY' THEN 4 WHEN 'SATURDAY' THEN 5
	ELSE 6 END`

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new availability store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// GetByID retrieves a window by its ID.
// PRE: id is non-empty
// POST: Returns the window or ErrNotFound
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (domain.Window, error) {
	row := s.db.QueryRowContext(ctx, selectWindow+" WHERE id = ?", id)
	w, err := scanWindow(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Window{}, ErrNotFound
	}
	return w, err
}

// Create inserts a new window. The active-slot unique index decides
// conflicts, so concurrent creates cannot both succeed.
// PRE: w has been validated
// POST: w is persisted, or ErrSlotTaken and nothing is written
func (s *SQLiteStore) Create(ctx context.Context, w domain.Window) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO availability_window (id, owner_id, day_of_week, start_time, end_time, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		w.ID, w.OwnerID, string(w.Day), w.StartTime, w.EndTime, boolToInt(w.IsActive),
		formatTime(w.CreatedAt), formatTime(w.UpdatedAt))
	if storage.IsUniqueViolation(err) {
		return ErrSlotTaken
	}
	return err
}

// Update writes the mutable fields of an existing window. The owner and
// created_at never change.
// PRE: w has been validated
// POST: row updated, or ErrSlotTaken / ErrNotFound and nothing is written
func (s *SQLiteStore) Update(ctx context.Context, w domain.Window) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE availability_window
		 SET day_of_week = ?, start_time = ?, end_time = ?, is_active = ?, updated_at = ?
		 WHERE id = ?`,
		string(w.Day), w.StartTime, w.EndTime, boolToInt(w.IsActive), formatTime(w.UpdatedAt), w.ID)
	if storage.IsUniqueViolation(err) {
		return ErrSlotTaken
	}
	if err != nil {
		return err
	}
	return requireRow(res)
}

// Delete removes a window.
// PRE: id is non-empty
// POST: row removed, or ErrNotFound
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM availability_window WHERE id = ?", id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// List returns windows matching filter, Monday first then by start time.
func (s *SQLiteStore) List(ctx context.Context, filter domain.Filter) ([]domain.Window, error) {
	var where []string
	var args []any
	if filter.OwnerID != "" {
		where = append(where, "owner_id = ?")
		args = append(args, filter.OwnerID)
	}
	if filter.ActiveOnly {
		where = append(where, "is_active = 1")
	}

	query := selectWindow
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY " + dayOrder + ", start_time, owner_id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Window
	for rows.Next() {
		w, err := scanWindow(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func scanWindow(scan func(dest ...any) error) (domain.Window, error) {
	var w domain.Window
	var day string
	var active int
	var createdAt, updatedAt string
	if err := scan(&w.ID, &w.OwnerID, &day, &w.StartTime, &w.EndTime, &active, &createdAt, &updatedAt); err != nil {
		return domain.Window{}, err
	}
	w.Day = domain.Day(day)
	w.IsActive = active != 0
	var err error
	if w.CreatedAt, err = parseTime(createdAt); err != nil {
		return domain.Window{}, fmt.Errorf("window %s created_at: %w", w.ID, err)
	}
	if w.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return domain.Window{}, fmt.Errorf("window %s updated_at: %w", w.ID, err)
	}
	return w, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

// parseTime maps the empty string left on rows older than the timestamp
// columns to the zero time.
func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(dateLayout, s)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
