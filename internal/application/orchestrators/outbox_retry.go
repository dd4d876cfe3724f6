package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"shepherd/internal/adapters/email"
	"shepherd/internal/adapters/metrics"
	"shepherd/internal/adapters/storage/outbox"
	domainOutbox "shepherd/internal/domain/outbox"
)

// ErrEntryTerminal is returned when replaying an entry that is done, failed
// or abandoned.
var ErrEntryTerminal = errors.New("outbox entry is in a terminal state")

// OutboxRetryDeps provides the dependencies for retrying outbox entries.
type OutboxRetryDeps struct {
	OutboxStore outbox.Store
	Sender      email.Sender
	From        string
	SendTimeout time.Duration
	BaseDelay   time.Duration // defaults to 1m
	MaxDelay    time.Duration // defaults to 1h
	BatchSize   int           // defaults to 100
	Now         func() time.Time
	Metrics     Recorder
}

func (d *OutboxRetryDeps) defaults() {
	if d.BaseDelay <= 0 {
		d.BaseDelay = time.Minute
	}
	if d.MaxDelay <= 0 {
		d.MaxDelay = time.Hour
	}
	if d.BatchSize <= 0 {
		d.BatchSize = 100
	}
	if d.SendTimeout <= 0 {
		d.SendTimeout = 10 * time.Second
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	d.Metrics = recorderOrNop(d.Metrics)
}

// OutboxRetryResult summarises one pass.
type OutboxRetryResult struct {
	Processed int
	Succeeded int
	Failed    int
	Deferred  int
}

// ExecuteOutboxRetry replays due email entries with exponential backoff.
// PRE: Deps are valid and store is connected
// POST: every due entry was attempted once and saved with its new state
func ExecuteOutboxRetry(ctx context.Context, deps OutboxRetryDeps) (OutboxRetryResult, error) {
	deps.defaults()
	var res OutboxRetryResult

	entries, err := deps.OutboxStore.ListPending(ctx, deps.BatchSize)
	if err != nil {
		return res, fmt.Errorf("list retryable outbox entries: %w", err)
	}
	if len(entries) == 0 {
		return res, nil
	}

	slog.Info("outbox_event", "event", "retry_started", "count", len(entries))

	now := deps.Now().UTC()
	for _, entry := range entries {
		if !entry.Due(now, deps.BaseDelay, deps.MaxDelay) {
			res.Deferred++
			continue
		}
		res.Processed++
		if err := replay(ctx, &entry, now, deps); err != nil {
			res.Failed++
		} else {
			res.Succeeded++
		}
		if saveErr := deps.OutboxStore.Save(ctx, entry); saveErr != nil {
			slog.Error("outbox_event", "event", "save_failed", "entry_id", entry.ID, "error", saveErr)
		}
	}

	slog.Info("outbox_event", "event", "retry_complete", "processed", res.Processed,
		"succeeded", res.Succeeded, "failed", res.Failed, "deferred", res.Deferred)
	return res, nil
}

// ExecuteOutboxRetryOne replays a single entry immediately, ignoring backoff.
// PRE: id is non-empty
// POST: entry attempted once and saved; ErrEntryTerminal for finished entries
func ExecuteOutboxRetryOne(ctx context.Context, id string, deps OutboxRetryDeps) (domainOutbox.Entry, error) {
	deps.defaults()
	entry, err := deps.OutboxStore.GetByID(ctx, id)
	if err != nil {
		return domainOutbox.Entry{}, fmt.Errorf("get outbox entry: %w", err)
	}
	if entry.IsTerminal() {
		return entry, fmt.Errorf("%s: %w", id, ErrEntryTerminal)
	}
	sendErr := replay(ctx, &entry, deps.Now().UTC(), deps)
	if err := deps.OutboxStore.Save(ctx, entry); err != nil {
		return entry, err
	}
	return entry, sendErr
}

// ExecuteOutboxAbandon stops retries for an entry.
// POST: entry status is abandoned
func ExecuteOutboxAbandon(ctx context.Context, id string, deps OutboxRetryDeps) error {
	entry, err := deps.OutboxStore.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get outbox entry: %w", err)
	}
	entry.MarkAbandoned()
	if err := deps.OutboxStore.Save(ctx, entry); err != nil {
		return err
	}
	slog.Info("outbox_event", "event", "entry_abandoned", "entry_id", id)
	return nil
}

func replay(ctx context.Context, entry *domainOutbox.Entry, now time.Time, deps OutboxRetryDeps) error {
	entry.MarkAttempt(now)

	messageID, err := sendEntry(ctx, *entry, deps)
	if err != nil {
		entry.MarkFailed(err)
		deps.Metrics.OutboxRetry(metrics.ResultFailed)
		slog.Error("outbox_event", "event", "retry_failed", "entry_id", entry.ID,
			"attempt", entry.Attempts, "status", entry.Status, "error", err)
		return err
	}
	entry.MarkSuccess(messageID)
	deps.Metrics.OutboxRetry(metrics.ResultSent)
	slog.Info("outbox_event", "event", "retry_succeeded", "entry_id", entry.ID, "attempt", entry.Attempts)
	return nil
}

func sendEntry(ctx context.Context, entry domainOutbox.Entry, deps OutboxRetryDeps) (string, error) {
	if entry.ActionType != domainOutbox.ActionTypeEmail {
		return "", fmt.Errorf("unknown action type: %s", entry.ActionType)
	}
	p, err := entry.EmailPayload()
	if err != nil {
		return "", err
	}

	sendCtx, cancel := context.WithTimeout(ctx, deps.SendTimeout)
	defer cancel()
	res, err := deps.Sender.Send(sendCtx, email.SendRequest{
		To:      []string{p.To},
		From:    deps.From,
		Subject: p.Subject,
		Text:    p.Text,
		HTML:    p.HTML,
	})
	if err != nil {
		return "", err
	}
	return res.MessageID, nil
}

// OutboxRetryConfig holds configuration for the retry scheduler.
type OutboxRetryConfig struct {
	Interval time.Duration // How often to run retries
	Enabled  bool
}

// StartOutboxRetryScheduler starts a background goroutine that periodically retries outbox entries.
// PRE: Context is valid, deps are initialized
// POST: Goroutine started, returns a function that stops it and waits for the current pass
func StartOutboxRetryScheduler(ctx context.Context, deps OutboxRetryDeps, cfg OutboxRetryConfig) func() {
	if !cfg.Enabled || cfg.Interval <= 0 {
		return func() {}
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := ExecuteOutboxRetry(ctx, deps); err != nil {
					slog.Error("outbox_event", "event", "scheduler_error", "error", err)
				}
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}
