package orchestrators

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainOutbox "shepherd/internal/domain/outbox"
)

func seedEntry(t *testing.T, env *testEnv, id string, lastAttempt time.Time) domainOutbox.Entry {
	t.Helper()
	e, err := domainOutbox.NewEmailEntry(id, domainOutbox.EmailPayload{
		To: "m1@example.org", Subject: "Your appointment is confirmed - Grace Chapel", Text: "body", HTML: "<p>body</p>",
	}, errors.New("timeout"), lastAttempt)
	require.NoError(t, err)
	require.NoError(t, env.outbox.Save(context.Background(), e))
	return e
}

func (e *testEnv) retryDeps(now time.Time) OutboxRetryDeps {
	return OutboxRetryDeps{
		OutboxStore: e.outbox,
		Sender:      e.sender,
		From:        "noreply@grace.example",
		Now:         func() time.Time { return now },
	}
}

func TestExecuteOutboxRetry_SendsDueEntries(t *testing.T) {
	env := newTestEnv(t)
	now := fixedTime.Add(2 * time.Hour)
	seedEntry(t, env, "due", fixedTime)
	seedEntry(t, env, "fresh", now.Add(-10*time.Second))

	res, err := ExecuteOutboxRetry(context.Background(), env.retryDeps(now))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Processed)
	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, 1, res.Deferred)

	sent := env.sender.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, []string{"m1@example.org"}, sent[0].To)
	assert.Equal(t, "noreply@grace.example", sent[0].From)
	assert.Equal(t, "<p>body</p>", sent[0].HTML)

	done, err := env.outbox.GetByID(context.Background(), "due")
	require.NoError(t, err)
	assert.Equal(t, domainOutbox.StatusDone, done.Status)
	assert.Equal(t, 2, done.Attempts)
	assert.Equal(t, "msg-1", done.ExternalID)
	assert.Empty(t, done.ErrorMessage)

	fresh, err := env.outbox.GetByID(context.Background(), "fresh")
	require.NoError(t, err)
	assert.Equal(t, domainOutbox.StatusPending, fresh.Status)
	assert.Equal(t, 1, fresh.Attempts)
}

func TestExecuteOutboxRetry_ExhaustsAttempts(t *testing.T) {
	env := newTestEnv(t)
	env.sender.fail = errors.New("mailbox unavailable")
	seedEntry(t, env, "e1", fixedTime)
	ctx := context.Background()

	now := fixedTime
	for i := 0; i < domainOutbox.DefaultMaxAttempts-1; i++ {
		now = now.Add(2 * time.Hour)
		res, err := ExecuteOutboxRetry(ctx, env.retryDeps(now))
		require.NoError(t, err)
		assert.Equal(t, 1, res.Failed)
	}

	e, err := env.outbox.GetByID(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, domainOutbox.StatusFailed, e.Status)
	assert.Equal(t, domainOutbox.DefaultMaxAttempts, e.Attempts)
	assert.Equal(t, "mailbox unavailable", e.ErrorMessage)

	failed, err := env.outbox.ListFailed(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, failed, 1)

	res, err := ExecuteOutboxRetry(ctx, env.retryDeps(now.Add(2*time.Hour)))
	require.NoError(t, err)
	assert.Zero(t, res.Processed)
}

func TestExecuteOutboxRetryOne_AndAbandon(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedEntry(t, env, "e1", fixedTime)
	seedEntry(t, env, "e2", fixedTime)

	// Backoff is ignored for a manual replay.
	e, err := ExecuteOutboxRetryOne(ctx, "e1", env.retryDeps(fixedTime.Add(time.Second)))
	require.NoError(t, err)
	assert.Equal(t, domainOutbox.StatusDone, e.Status)

	_, err = ExecuteOutboxRetryOne(ctx, "e1", env.retryDeps(fixedTime))
	assert.ErrorIs(t, err, ErrEntryTerminal)

	require.NoError(t, ExecuteOutboxAbandon(ctx, "e2", env.retryDeps(fixedTime)))
	abandoned, err := env.outbox.GetByID(ctx, "e2")
	require.NoError(t, err)
	assert.Equal(t, domainOutbox.StatusAbandoned, abandoned.Status)

	pending, err := env.outbox.ListPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	require.Error(t, ExecuteOutboxAbandon(ctx, "missing", env.retryDeps(fixedTime)))
}

func TestStartOutboxRetryScheduler(t *testing.T) {
	env := newTestEnv(t)
	seedEntry(t, env, "e1", fixedTime)

	deps := env.retryDeps(fixedTime.Add(2 * time.Hour))
	stop := StartOutboxRetryScheduler(context.Background(), deps, OutboxRetryConfig{Interval: 10 * time.Millisecond, Enabled: true})

	require.Eventually(t, func() bool { return len(env.sender.Sent()) == 1 }, 2*time.Second, 10*time.Millisecond)
	stop()

	e, err := env.outbox.GetByID(context.Background(), "e1")
	require.NoError(t, err)
	assert.Equal(t, domainOutbox.StatusDone, e.Status)

	disabled := StartOutboxRetryScheduler(context.Background(), deps, OutboxRetryConfig{Enabled: false})
	disabled()
}
