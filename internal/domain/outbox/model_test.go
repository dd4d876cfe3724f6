package outbox_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shepherd/internal/domain/outbox"
)

var now = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func TestNewEmailEntry(t *testing.T) {
	p := outbox.EmailPayload{To: "m@example.org", Subject: "s", Text: "t", HTML: "<p>t</p>"}
	e, err := outbox.NewEmailEntry("o1", p, errors.New("smtp down"), now)
	require.NoError(t, err)

	assert.Equal(t, outbox.ActionTypeEmail, e.ActionType)
	assert.Equal(t, outbox.StatusPending, e.Status)
	assert.Equal(t, 1, e.Attempts)
	assert.Equal(t, "smtp down", e.ErrorMessage)

	got, err := e.EmailPayload()
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestEntry_RetryLifecycle(t *testing.T) {
	e, err := outbox.NewEmailEntry("o1", outbox.EmailPayload{To: "m@example.org"}, nil, now)
	require.NoError(t, err)
	e.MaxAttempts = 3

	assert.True(t, e.CanRetry())
	e.MarkAttempt(now.Add(time.Minute))
	e.MarkFailed(errors.New("again"))
	assert.Equal(t, outbox.StatusRetrying, e.Status)

	e.MarkAttempt(now.Add(3 * time.Minute))
	e.MarkFailed(errors.New("still"))
	assert.Equal(t, outbox.StatusFailed, e.Status)
	assert.False(t, e.CanRetry())
	assert.True(t, e.IsTerminal())
}

func TestEntry_NextRetryDelay(t *testing.T) {
	tests := []struct {
		attempts int
		want     time.Duration
	}{
		{0, time.Minute},
		{1, time.Minute},
		{2, 2 * time.Minute},
		{4, 8 * time.Minute},
		{10, time.Hour},
		{64, time.Hour},
	}
	for _, tt := range tests {
		e := outbox.Entry{Attempts: tt.attempts}
		assert.Equal(t, tt.want, e.NextRetryDelay(time.Minute, time.Hour), "attempts=%d", tt.attempts)
	}
}

func TestEntry_Due(t *testing.T) {
	e := outbox.Entry{Attempts: 2, LastAttemptedAt: now}
	assert.False(t, e.Due(now.Add(time.Minute), time.Minute, time.Hour))
	assert.True(t, e.Due(now.Add(2*time.Minute), time.Minute, time.Hour))
}
