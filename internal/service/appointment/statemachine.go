package appointment

import (
	"time"

	"github.com/jwalitptl/vip-booking/internal/model"
	apperrors "github.com/jwalitptl/vip-booking/pkg/errors"
)

// Event is a command applied to an appointment.
type Event string

const (
	EventPay      Event = "pay"
	EventConfirm  Event = "confirm"
	EventReject   Event = "reject"
	EventPropose  Event = "propose-alternative"
	EventAccept   Event = "accept-alternative"
	EventDecline  Event = "decline-alternative"
	EventComplete Event = "complete"
	EventNoShow   Event = "mark-no-show"
	EventCancel   Event = "cancel"
)

type transition struct {
	from []model.AppointmentStatus
	to   model.AppointmentStatus
	// requiresPayment gates the event on a settled payment.
	requiresPayment bool
}

var nonTerminal = []model.AppointmentStatus{
	model.AppointmentStatusPendingPayment,
	model.AppointmentStatusPending,
	model.AppointmentStatusConfirmed,
	model.AppointmentStatusAlternativeProposed,
}

var transitions = map[Event]transition{
	EventPay: {
		from: []model.AppointmentStatus{model.AppointmentStatusPendingPayment},
		to:   model.AppointmentStatusPending,
	},
	EventConfirm: {
		from:            []model.AppointmentStatus{model.AppointmentStatusPending},
		to:              model.AppointmentStatusConfirmed,
		requiresPayment: true,
	},
	EventReject: {
		from: []model.AppointmentStatus{model.AppointmentStatusPending},
		to:   model.AppointmentStatusCancelled,
	},
	EventPropose: {
		from:            []model.AppointmentStatus{model.AppointmentStatusPending},
		to:              model.AppointmentStatusAlternativeProposed,
		requiresPayment: true,
	},
	EventAccept: {
		from: []model.AppointmentStatus{model.AppointmentStatusAlternativeProposed},
		to:   model.AppointmentStatusConfirmed,
	},
	EventDecline: {
		from: []model.AppointmentStatus{model.AppointmentStatusAlternativeProposed},
		to:   model.AppointmentStatusCancelled,
	},
	EventComplete: {
		from: []model.AppointmentStatus{model.AppointmentStatusConfirmed},
		to:   model.AppointmentStatusCompleted,
	},
	EventNoShow: {
		from: []model.AppointmentStatus{model.AppointmentStatusConfirmed},
		to:   model.AppointmentStatusNoShow,
	},
	EventCancel: {
		from: nonTerminal,
		to:   model.AppointmentStatusCancelled,
	},
}

// Next returns the status the event leads to, or the error that rejects it.
// The payment gate is checked before the source status, so confirming an
// appointment still awaiting payment reports PaymentRequired.
func Next(a *model.Appointment, ev Event) (model.AppointmentStatus, error) {
	t, ok := transitions[ev]
	if !ok {
		return "", apperrors.InvalidTransition(string(a.Status), string(ev))
	}

	awaitingReview := a.Status == model.AppointmentStatusPending || a.Status == model.AppointmentStatusPendingPayment
	if t.requiresPayment && awaitingReview && !a.PaymentStatus.Settled() {
		return "", apperrors.PaymentRequired(a.ID)
	}

	for _, from := range t.from {
		if a.Status == from {
			return t.to, nil
		}
	}
	return "", apperrors.InvalidTransition(string(a.Status), string(ev))
}

// Allowed lists the events that may currently be applied, for clients that
// render action buttons.
func Allowed(a *model.Appointment) []Event {
	var events []Event
	for _, ev := range []Event{EventPay, EventConfirm, EventReject, EventPropose, EventAccept, EventDecline, EventComplete, EventNoShow, EventCancel} {
		if _, err := Next(a, ev); err == nil {
			events = append(events, ev)
		}
	}
	return events
}

// effects applies the event's bookkeeping to a. Status has already been set.
func effects(a *model.Appointment, ev Event, cmd Command, now time.Time) {
	a.UpdatedAt = now

	switch ev {
	case EventPay:
		a.PaymentStatus = model.PaymentStatusPaid
		a.PaidAt = &now
		if cmd.PaymentReference != "" {
			a.PaymentReference = model.StringPtr(cmd.PaymentReference)
		}
	case EventConfirm, EventAccept:
		a.ConfirmedAt = &now
		if cmd.Response != "" {
			a.AdminResponse = model.StringPtr(cmd.Response)
		}
	case EventReject, EventDecline, EventCancel:
		a.CancelledAt = &now
		if cmd.Reason != "" {
			a.CancellationReason = model.StringPtr(cmd.Reason)
		}
		if a.PaymentStatus == model.PaymentStatusPaid {
			a.PaymentStatus = model.PaymentStatusRefunded
		}
	case EventComplete:
		a.CompletedAt = &now
	}
}

// eventTypes maps a transition to the outbox events it produces.
func eventTypes(ev Event) []string {
	switch ev {
	case EventPay:
		return []string{model.EventPaymentRecorded}
	case EventConfirm:
		return []string{model.EventAppointmentConfirmed}
	case EventReject, EventCancel:
		return []string{model.EventAppointmentCancelled}
	case EventPropose:
		return []string{model.EventAlternativeProposed}
	case EventAccept:
		return []string{model.EventAlternativeAccepted}
	case EventDecline:
		return []string{model.EventAlternativeRejected, model.EventAppointmentCancelled}
	case EventComplete:
		return []string{model.EventAppointmentCompleted}
	case EventNoShow:
		return []string{model.EventAppointmentNoShow}
	}
	return nil
}
