package orchestrators

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"shepherd/internal/adapters/email"
	"shepherd/internal/adapters/metrics"
	outboxstore "shepherd/internal/adapters/storage/outbox"
	"shepherd/internal/domain/fault"
	"shepherd/internal/domain/notification"
	domainOutbox "shepherd/internal/domain/outbox"
)

// ErrDispatcherClosed is returned by Dispatch after Close.
var ErrDispatcherClosed = errors.New("dispatcher is closed")

// DispatcherConfig tunes delivery of outgoing messages.
type DispatcherConfig struct {
	From        string
	ReplyTo     string
	SendTimeout time.Duration // per send; defaults to 10s
	MaxInFlight int           // concurrent sends; defaults to 4
	RatePerSec  float64       // 0 disables pacing
	Burst       int
}

// DispatcherDeps holds collaborators of the Dispatcher.
type DispatcherDeps struct {
	Sender     email.Sender
	Outbox     outboxstore.Store // optional; failed sends are queued here
	GenerateID func() string
	Now        func() time.Time
	Metrics    Recorder
}

// Dispatcher hands messages to the mail provider off the request path.
type Dispatcher struct {
	cfg     DispatcherConfig
	deps    DispatcherDeps
	limiter *rate.Limiter
	sem     chan struct{}
	metrics Recorder

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher builds a Dispatcher with defaults applied.
func NewDispatcher(cfg DispatcherConfig, deps DispatcherDeps) *Dispatcher {
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = 4
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RatePerSec > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), burst)
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Dispatcher{
		cfg:     cfg,
		deps:    deps,
		limiter: limiter,
		sem:     make(chan struct{}, cfg.MaxInFlight),
		metrics: recorderOrNop(deps.Metrics),
	}
}

// Dispatch queues msg for delivery and returns immediately.
// PRE: msg.To is non-empty
// POST: a background send is started, or ErrDispatcherClosed
func (d *Dispatcher) Dispatch(msg notification.Message) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrDispatcherClosed
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		d.sem <- struct{}{}
		defer func() { <-d.sem }()
		d.deliver(msg)
	}()
	return nil
}

// Close stops accepting messages and waits for in-flight sends.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) deliver(msg notification.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.SendTimeout)
	defer cancel()

	req := email.SendRequest{
		To:      []string{msg.To},
		From:    d.cfg.From,
		Subject: msg.Subject,
		Text:    msg.Text,
		HTML:    msg.HTML,
		ReplyTo: d.cfg.ReplyTo,
	}

	err := d.limiter.Wait(ctx)
	var res email.SendResult
	if err == nil {
		res, err = d.deps.Sender.Send(ctx, req)
	}
	if err == nil {
		d.metrics.Notification(metrics.ResultSent)
		slog.Info("notification_event", "event", "notification_sent", "provider", d.deps.Sender.Name(),
			"message_id", res.MessageID, "subject", msg.Subject)
		return
	}

	gwErr := &fault.GatewayError{Provider: d.deps.Sender.Name(), To: msg.To, Err: err}
	d.metrics.Notification(metrics.ResultFailed)
	slog.Error("notification_event", "event", "notification_failed", "error", gwErr)

	if d.deps.Outbox == nil || errors.Is(err, email.ErrInvalidRequest) {
		return
	}
	d.enqueue(msg, gwErr)
}

func (d *Dispatcher) enqueue(msg notification.Message, cause error) {
	entry, err := domainOutbox.NewEmailEntry(d.deps.GenerateID(), domainOutbox.EmailPayload{
		To:      msg.To,
		Subject: msg.Subject,
		Text:    msg.Text,
		HTML:    msg.HTML,
	}, cause, d.deps.Now().UTC())
	if err != nil {
		slog.Error("notification_event", "event", "outbox_encode_failed", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.deps.Outbox.Save(ctx, entry); err != nil {
		slog.Error("notification_event", "event", "outbox_save_failed", "error", err)
		return
	}
	d.metrics.Notification(metrics.ResultQueued)
	slog.Info("notification_event", "event", "notification_queued", "outbox_id", entry.ID)
}
