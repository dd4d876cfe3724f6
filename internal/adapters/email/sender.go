package email

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrInvalidRequest is returned for requests no provider could deliver.
var ErrInvalidRequest = errors.New("invalid email request")

// SendRequest contains the data needed to send an email via an external provider.
type SendRequest struct {
	To      []string // Recipient email addresses
	From    string   // Sender address, e.g. "Grace Chapel <noreply@grace.example>"
	Subject string
	Text    string // plain-text body
	HTML    string // HTML body
	ReplyTo string
}

// Validate checks the fields every provider needs.
func (r SendRequest) Validate() error {
	if len(r.To) == 0 || strings.TrimSpace(r.To[0]) == "" {
		return errors.Join(ErrInvalidRequest, errors.New("at least one recipient is required"))
	}
	if strings.TrimSpace(r.Subject) == "" {
		return errors.Join(ErrInvalidRequest, errors.New("subject is required"))
	}
	if strings.TrimSpace(r.Text) == "" && strings.TrimSpace(r.HTML) == "" {
		return errors.Join(ErrInvalidRequest, errors.New("a text or HTML body is required"))
	}
	return nil
}

// SendResult contains the response from the email provider.
type SendResult struct {
	MessageID string    // Provider's message ID for tracking
	SentAt    time.Time // When the send was accepted
}

// Sender is the interface for sending emails via an external provider.
type Sender interface {
	Name() string
	Send(ctx context.Context, req SendRequest) (SendResult, error)
}
