package notification_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shepherd/internal/domain/account"
	"shepherd/internal/domain/appointment"
	"shepherd/internal/domain/notification"
)

var (
	org       = notification.Organization{Name: "Grace Chapel", Website: "https://grace.example"}
	member    = account.Account{ID: "m1", Email: "marie@example.org", DisplayName: "Marie", Role: account.RoleMember}
	counselor = account.Account{ID: "c1", Email: "pastor@example.org", DisplayName: "Pastor Jean", Role: account.RoleCounselor}
)

func confirmed() appointment.Appointment {
	return appointment.Appointment{
		ID:              "a1",
		MemberID:        "m1",
		CounselorID:     "c1",
		RequestedDate:   "2025-03-10",
		RequestedTime:   "09:30",
		Status:          appointment.StatusConfirmed,
		Subject:         "Counseling",
		Location:        "Room 2",
		MessageToMember: "See you there.",
	}
}

func TestComposeConfirmation(t *testing.T) {
	msg, err := notification.ComposeConfirmation(org, confirmed(), member, counselor)
	require.NoError(t, err)

	assert.Equal(t, "marie@example.org", msg.To)
	assert.Equal(t, "Your appointment is confirmed - Grace Chapel", msg.Subject)
	for _, want := range []string{"Marie", "Pastor Jean", "10/03/2025", "09:30", "Counseling", "Room 2", "See you there.", "https://grace.example"} {
		assert.Contains(t, msg.Text, want)
	}
	assert.Contains(t, msg.HTML, "<li>Date: 10/03/2025</li>")
	assert.Contains(t, msg.HTML, "<strong>Appointment details</strong>")
}

func TestComposeConfirmation_FallbackMessage(t *testing.T) {
	a := confirmed()
	a.MessageToMember = ""
	msg, err := notification.ComposeConfirmation(org, a, member, counselor)
	require.NoError(t, err)
	assert.Contains(t, msg.Text, notification.NoMessage)
}

func TestComposeConfirmation_Errors(t *testing.T) {
	a := confirmed()
	a.Status = appointment.StatusPending
	_, err := notification.ComposeConfirmation(org, a, member, counselor)
	assert.ErrorIs(t, err, notification.ErrNotConfirmed)

	noMail := member
	noMail.Email = ""
	_, err = notification.ComposeConfirmation(org, confirmed(), noMail, counselor)
	assert.ErrorIs(t, err, notification.ErrNoRecipient)
}
