package notification

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"

	"shepherd/internal/domain/account"
	"shepherd/internal/domain/appointment"
)

// NoMessage is used when the counselor left no message for the member.
const NoMessage = "No particular message."

// Domain errors
var (
	ErrNoRecipient  = errors.New("member has no email address")
	ErrNotConfirmed = errors.New("appointment is not confirmed")
)

// Organization signs outgoing messages.
type Organization struct {
	Name    string
	Website string
}

// Message is a rendered notification ready for a sender.
type Message struct {
	To      string
	Subject string
	Text    string // Markdown source, also the plain-text part
	HTML    string
}

var md = goldmark.New()

// ComposeConfirmation renders the confirmation sent to the member when an
// appointment becomes CONFIRMED.
// PRE: a.Status == CONFIRMED; member and counselor are the appointment's parties
// POST: Message.To is the member's address; Text and HTML carry the same content
func ComposeConfirmation(org Organization, a appointment.Appointment, member, counselor account.Account) (Message, error) {
	if a.Status != appointment.StatusConfirmed {
		return Message{}, ErrNotConfirmed
	}
	if strings.TrimSpace(member.Email) == "" {
		return Message{}, ErrNoRecipient
	}

	date := a.RequestedDate
	if d, err := appointment.ParseDate(a.RequestedDate); err == nil {
		date = d.Format("02/01/2006")
	}
	location := a.Location
	if strings.TrimSpace(location) == "" {
		location = "To be confirmed."
	}
	note := a.MessageToMember
	if strings.TrimSpace(note) == "" {
		note = NoMessage
	}
	greeting := member.DisplayName
	if greeting == "" {
		greeting = member.Email
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", greeting)
	fmt.Fprintf(&b, "Your appointment request with %s has been confirmed.\n\n", counselor.DisplayName)
	b.WriteString("**Appointment details**\n\n")
	fmt.Fprintf(&b, "- Date: %s\n", date)
	fmt.Fprintf(&b, "- Time: %s\n", a.RequestedTime)
	fmt.Fprintf(&b, "- Subject: %s\n\n", a.Subject)
	fmt.Fprintf(&b, "**Location or meeting link**\n\n%s\n\n", location)
	fmt.Fprintf(&b, "**Message from %s**\n\n%s\n\n", counselor.DisplayName, note)
	b.WriteString("Thank you for your trust.\n\n")
	fmt.Fprintf(&b, "Kind regards,  \n%s  \n%s\n", org.Name, org.Website)
	text := b.String()

	var html bytes.Buffer
	if err := md.Convert([]byte(text), &html); err != nil {
		return Message{}, fmt.Errorf("render confirmation: %w", err)
	}

	return Message{
		To:      member.Email,
		Subject: fmt.Sprintf("Your appointment is confirmed - %s", org.Name),
		Text:    text,
		HTML:    html.String(),
	}, nil
}
