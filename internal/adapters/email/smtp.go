package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"time"

	"gopkg.in/gomail.v2"
)

// SMTPConfig holds the settings for SMTPSender.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// SSL dials with implicit TLS (port 465). Otherwise STARTTLS is used
	// when the server offers it.
	SSL     bool
	Timeout time.Duration
}

// SMTPSender delivers mail through an SMTP relay.
type SMTPSender struct {
	cfg    SMTPConfig
	dialer *gomail.Dialer
}

// NewSMTPSender creates an SMTPSender.
// PRE: cfg.Host and cfg.From are set
func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	d.SSL = cfg.SSL
	d.TLSConfig = &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12}
	return &SMTPSender{cfg: cfg, dialer: d}
}

// Name implements Sender.
func (s *SMTPSender) Name() string { return "smtp" }

// Send dials the relay and sends one message. gomail has no context support,
// so the dial runs in a goroutine and the call returns at the earlier of the
// context deadline and the configured timeout.
// PRE: req passes Validate
// POST: message accepted by the relay, or an error
func (s *SMTPSender) Send(ctx context.Context, req SendRequest) (SendResult, error) {
	if err := req.Validate(); err != nil {
		return SendResult{}, err
	}
	msg := buildMessage(s.cfg.From, req)

	done := make(chan error, 1)
	go func() {
		done <- s.dialer.DialAndSend(msg)
	}()

	wait := s.cfg.Timeout
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d > 0 && d < wait {
			wait = d
		}
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil {
			return SendResult{}, fmt.Errorf("smtp send failed: %w", err)
		}
	case <-ctx.Done():
		return SendResult{}, ctx.Err()
	case <-timer.C:
		return SendResult{}, context.DeadlineExceeded
	}

	id := fmt.Sprintf("smtp-%d", time.Now().UnixNano())
	slog.Info("email_event", "event", "email_sent", "provider", "smtp", "message_id", id, "subject", req.Subject)
	return SendResult{MessageID: id, SentAt: time.Now()}, nil
}

func buildMessage(defaultFrom string, req SendRequest) *gomail.Message {
	from := req.From
	if from == "" {
		from = defaultFrom
	}
	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", req.To...)
	m.SetHeader("Subject", req.Subject)
	if req.ReplyTo != "" {
		m.SetHeader("Reply-To", req.ReplyTo)
	}
	switch {
	case req.Text != "" && req.HTML != "":
		m.SetBody("text/plain", req.Text)
		m.AddAlternative("text/html", req.HTML)
	case req.HTML != "":
		m.SetBody("text/html", req.HTML)
	default:
		m.SetBody("text/plain", req.Text)
	}
	return m
}
