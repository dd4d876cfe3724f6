package appointment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"shepherd/internal/adapters/storage"
	domain "shepherd/internal/domain/appointment"
)

// dateLayout is fixed-width so created_at sorts correctly as text.
const dateLayout = "2006-01-02T15:04:05.000000000Z07:00"

const selectAppointment = `SELECT id, member_id, counselor_id, requested_date, requested_time, status,
	subject, notes, counselor_private_notes, location, message_to_member, created_at, updated_at
	FROM appointment`

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new appointment store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// GetByID retrieves an appointment by its ID.
// PRE: id is non-empty
// POST: Returns the appointment or ErrNotFound
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (domain.Appointment, error) {
	row := s.db.QueryRowContext(ctx, selectAppointment+" WHERE id = ?", id)
	a, err := scanAppointment(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Appointment{}, ErrNotFound
	}
	return a, err
}

// Create inserts a new appointment.
// PRE: a has been validated
// POST: a is persisted
func (s *SQLiteStore) Create(ctx context.Context, a domain.Appointment) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO appointment (id, member_id, counselor_id, requested_date, requested_time, status,
		   subject, notes, counselor_private_notes, location, message_to_member, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.MemberID, a.CounselorID, a.RequestedDate, a.RequestedTime, string(a.Status),
		a.Subject, a.Notes, a.CounselorPrivateNotes, a.Location, a.MessageToMember,
		formatTime(a.CreatedAt), formatTime(a.UpdatedAt))
	return err
}

// Update writes every mutable column in one statement guarded by the
// updated_at value the caller read. member_id and created_at never change.
// PRE: a has been validated; readAt is the UpdatedAt the caller loaded
// POST: row updated, or ErrStale / ErrNotFound and nothing is written
func (s *SQLiteStore) Update(ctx context.Context, a domain.Appointment, readAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE appointment SET
		   counselor_id = ?, requested_date = ?, requested_time = ?, status = ?, subject = ?,
		   notes = ?, counselor_private_notes = ?, location = ?, message_to_member = ?, updated_at = ?
		 WHERE id = ? AND updated_at = ?`,
		a.CounselorID, a.RequestedDate, a.RequestedTime, string(a.Status), a.Subject,
		a.Notes, a.CounselorPrivateNotes, a.Location, a.MessageToMember, formatTime(a.UpdatedAt),
		a.ID, formatTime(readAt))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	if _, err := s.GetByID(ctx, a.ID); err != nil {
		return err
	}
	return ErrStale
}

// Delete removes an appointment.
// PRE: id is non-empty
// POST: row removed, or ErrNotFound
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM appointment WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns appointments matching filter, newest first.
func (s *SQLiteStore) List(ctx context.Context, filter domain.Filter) ([]domain.Appointment, error) {
	var where []string
	var args []any
	if filter.MemberID != "" {
		where = append(where, "member_id = ?")
		args = append(args, filter.MemberID)
	}
	if filter.CounselorID != "" {
		where = append(where, "counselor_id = ?")
		args = append(args, filter.CounselorID)
	}

	query := selectAppointment
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// CountOpenAtSlot counts PENDING or CONFIRMED appointments at a slot.
func (s *SQLiteStore) CountOpenAtSlot(ctx context.Context, counselorID, date, clock string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM appointment
		 WHERE counselor_id = ? AND requested_date = ? AND requested_time = ? AND status IN (?, ?)`,
		counselorID, date, clock, string(domain.StatusPending), string(domain.StatusConfirmed),
	).Scan(&n)
	return n, err
}

func scanAppointment(scan func(dest ...any) error) (domain.Appointment, error) {
	var a domain.Appointment
	var status, createdAt, updatedAt string
	err := scan(&a.ID, &a.MemberID, &a.CounselorID, &a.RequestedDate, &a.RequestedTime, &status,
		&a.Subject, &a.Notes, &a.CounselorPrivateNotes, &a.Location, &a.MessageToMember,
		&createdAt, &updatedAt)
	if err != nil {
		return domain.Appointment{}, err
	}
	a.Status = domain.Status(status)
	if a.CreatedAt, err = time.Parse(dateLayout, createdAt); err != nil {
		return domain.Appointment{}, fmt.Errorf("appointment %s created_at: %w", a.ID, err)
	}
	if a.UpdatedAt, err = time.Parse(dateLayout, updatedAt); err != nil {
		return domain.Appointment{}, fmt.Errorf("appointment %s updated_at: %w", a.ID, err)
	}
	return a, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(dateLayout)
}
