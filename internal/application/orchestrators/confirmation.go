package orchestrators

import (
	"context"
	"fmt"
	"log/slog"

	"shepherd/internal/adapters/metrics"
	accountstore "shepherd/internal/adapters/storage/account"
	"shepherd/internal/domain/appointment"
	"shepherd/internal/domain/notification"
)

// MessageDispatcher accepts a composed message for delivery.
type MessageDispatcher interface {
	Dispatch(msg notification.Message) error
}

// ConfirmationHook notifies the member when their appointment becomes CONFIRMED.
type ConfirmationHook struct {
	Accounts   accountstore.Store
	Dispatcher MessageDispatcher
	Org        notification.Organization
	Metrics    Recorder
}

// AfterUpdate implements CommitHook.
// PRE: the transition is already committed
// POST: at most one message dispatched; failures logged and counted only
func (h ConfirmationHook) AfterUpdate(ctx context.Context, before, after appointment.Appointment) {
	if !appointment.BecameConfirmed(before.Status, after.Status) {
		return
	}
	if err := h.notify(ctx, after); err != nil {
		recorderOrNop(h.Metrics).Notification(metrics.ResultSkipped)
		slog.Error("notification_event", "event", "confirmation_skipped", "appointment_id", after.ID, "error", err)
	}
}

func (h ConfirmationHook) notify(ctx context.Context, a appointment.Appointment) error {
	member, err := h.Accounts.GetByID(ctx, a.MemberID)
	if err != nil {
		return fmt.Errorf("load member %s: %w", a.MemberID, err)
	}
	counselor, err := h.Accounts.GetByID(ctx, a.CounselorID)
	if err != nil {
		return fmt.Errorf("load counselor %s: %w", a.CounselorID, err)
	}
	msg, err := notification.ComposeConfirmation(h.Org, a, member, counselor)
	if err != nil {
		return err
	}
	if err := h.Dispatcher.Dispatch(msg); err != nil {
		return err
	}
	slog.Info("notification_event", "event", "confirmation_dispatched", "appointment_id", a.ID, "member_id", a.MemberID)
	return nil
}
