package outbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Status constants for outbox entry lifecycle.
const (
	StatusPending   = "pending"
	StatusRetrying  = "retrying"
	StatusDone      = "done"
	StatusFailed    = "failed"
	StatusAbandoned = "abandoned"
)

// ActionTypeEmail is the only action replayed by the outbox today.
const ActionTypeEmail = "email"

// DefaultMaxAttempts applies when an entry is created without a limit.
const DefaultMaxAttempts = 5

// Domain errors.
var (
	ErrEmptyActionType = errors.New("action type is required")
	ErrEmptyPayload    = errors.New("payload is required")
	ErrEmptyCreatedAt  = errors.New("created_at must be set")
)

// Entry is a notification send that failed and waits for replay.
type Entry struct {
	ID              string
	ActionType      string
	Payload         string // JSON EmailPayload
	Status          string
	Attempts        int
	MaxAttempts     int
	LastAttemptedAt time.Time
	CreatedAt       time.Time
	ExternalID      string // provider message ID once delivered
	ErrorMessage    string
}

// EmailPayload is the replayable content of an email entry.
type EmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
	HTML    string `json:"html"`
}

// NewEmailEntry builds a pending email entry. The failed first send counts as
// one attempt.
// POST: Status = pending, Attempts = 1, Payload holds p as JSON
func NewEmailEntry(id string, p EmailPayload, lastErr error, now time.Time) (Entry, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return Entry{}, fmt.Errorf("encode email payload: %w", err)
	}
	e := Entry{
		ID:              id,
		ActionType:      ActionTypeEmail,
		Payload:         string(raw),
		Status:          StatusPending,
		Attempts:        1,
		MaxAttempts:     DefaultMaxAttempts,
		LastAttemptedAt: now,
		CreatedAt:       now,
	}
	if lastErr != nil {
		e.ErrorMessage = lastErr.Error()
	}
	return e, e.Validate()
}

// EmailPayload decodes the entry payload.
func (e *Entry) EmailPayload() (EmailPayload, error) {
	var p EmailPayload
	if err := json.Unmarshal([]byte(e.Payload), &p); err != nil {
		return EmailPayload{}, fmt.Errorf("decode email payload: %w", err)
	}
	return p, nil
}

// Validate checks that the Entry has valid data.
// PRE: Entry struct is populated
// POST: Returns nil if valid; MaxAttempts defaulted when unset
func (e *Entry) Validate() error {
	if e.ActionType == "" {
		return ErrEmptyActionType
	}
	if e.Payload == "" {
		return ErrEmptyPayload
	}
	if e.CreatedAt.IsZero() {
		return ErrEmptyCreatedAt
	}
	if e.MaxAttempts <= 0 {
		e.MaxAttempts = DefaultMaxAttempts
	}
	return nil
}

// CanRetry returns true if the entry can be retried.
// POST: true for pending/retrying with attempts < max
func (e *Entry) CanRetry() bool {
	return (e.Status == StatusPending || e.Status == StatusRetrying) && e.Attempts < e.MaxAttempts
}

// IsTerminal returns true for done, failed and abandoned entries.
func (e *Entry) IsTerminal() bool {
	return e.Status == StatusDone || e.Status == StatusFailed || e.Status == StatusAbandoned
}

// Due reports whether the backoff since the last attempt has elapsed.
func (e *Entry) Due(now time.Time, base, max time.Duration) bool {
	return !now.Before(e.LastAttemptedAt.Add(e.NextRetryDelay(base, max)))
}

// MarkAttempt records a retry attempt.
// POST: Attempts incremented, LastAttemptedAt = now, Status = retrying
func (e *Entry) MarkAttempt(now time.Time) {
	e.Attempts++
	e.LastAttemptedAt = now
	e.Status = StatusRetrying
}

// MarkSuccess marks the entry as delivered.
func (e *Entry) MarkSuccess(externalID string) {
	e.Status = StatusDone
	e.ExternalID = externalID
	e.ErrorMessage = ""
}

// MarkFailed records a failed attempt; the entry becomes failed once the
// attempt budget is spent.
func (e *Entry) MarkFailed(err error) {
	e.ErrorMessage = err.Error()
	if e.Attempts >= e.MaxAttempts {
		e.Status = StatusFailed
	}
}

// MarkAbandoned stops further retries.
func (e *Entry) MarkAbandoned() {
	e.Status = StatusAbandoned
}

// NextRetryDelay is 2^(attempts-1) * base, capped at max.
func (e *Entry) NextRetryDelay(base, max time.Duration) time.Duration {
	n := e.Attempts - 1
	if n < 0 {
		n = 0
	}
	if n > 30 {
		return max
	}
	delay := base * time.Duration(1<<n)
	if delay > max || delay <= 0 {
		return max
	}
	return delay
}
