package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/jwalitptl/vip-booking/internal/model"
	"github.com/jwalitptl/vip-booking/internal/repository"
	"github.com/jwalitptl/vip-booking/internal/service/event"
	"github.com/jwalitptl/vip-booking/internal/service/history"
	apperrors "github.com/jwalitptl/vip-booking/pkg/errors"
	"github.com/jwalitptl/vip-booking/pkg/logger"
	"github.com/jwalitptl/vip-booking/pkg/metrics"
)

// Command is one state machine event plus its arguments.
type Command struct {
	Event Event
	// ClientID restricts the command to the appointment's owner when set.
	ClientID string
	// Version must match the stored version when set.
	Version          int64
	Reason           string
	Response         string
	PaymentReference string
	// Prepare runs inside the transaction after the transition has been
	// allowed and before the appointment is written. It may mutate the
	// appointment and abort the whole command by returning an error.
	Prepare func(ctx context.Context, tx repository.Store, a *model.Appointment, now time.Time) error
}

// Machine applies commands to appointments. Each command runs in its own
// transaction: the appointment row is locked, the transition checked, the
// appointment written with a version check, client history updated and the
// resulting events appended to the outbox.
type Machine struct {
	store   repository.Store
	history *history.Service
	events  event.Emitter
	now     func() time.Time
	log     *logger.Logger
	metrics *metrics.Metrics
}

func NewMachine(store repository.Store, hist *history.Service, events event.Emitter, now func() time.Time, log *logger.Logger, m *metrics.Metrics) *Machine {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = logger.Nop()
	}
	if m == nil {
		m = metrics.NewNop()
	}
	return &Machine{store: store, history: hist, events: events, now: now, log: log, metrics: m}
}

func (m *Machine) Apply(ctx context.Context, appointmentID string, cmd Command) (*model.Appointment, error) {
	var result *model.Appointment
	err := m.store.WithTx(ctx, func(tx repository.Store) error {
		a, err := tx.Appointments().GetForUpdate(ctx, appointmentID)
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NotFound("appointment", appointmentID)
		}
		if err != nil {
			return apperrors.Internal(err)
		}
		if cmd.ClientID != "" && cmd.ClientID != a.ClientID {
			return apperrors.Forbidden("appointment belongs to another client")
		}
		if cmd.Version != 0 && cmd.Version != a.Version {
			return apperrors.ConcurrentUpdate("appointment", appointmentID)
		}

		next, err := Next(a, cmd.Event)
		if err != nil {
			return err
		}

		now := m.now().UTC()
		if cmd.Event == EventCancel && a.Status == model.AppointmentStatusAlternativeProposed {
			if err := withdrawProposal(ctx, tx, a, now); err != nil {
				return err
			}
		}
		if cmd.Prepare != nil {
			if err := cmd.Prepare(ctx, tx, a, now); err != nil {
				return err
			}
		}
		a.Status = next
		effects(a, cmd.Event, cmd, now)

		if err := tx.Appointments().Update(ctx, a); err != nil {
			return writeError(err, a)
		}
		if err := m.recordOutcome(ctx, tx, a); err != nil {
			return apperrors.Internal(err)
		}

		payload := model.NewAppointmentEvent(a, now)
		payload.Reason = cmd.Reason
		if a.AdminResponse != nil && (cmd.Event == EventConfirm || cmd.Event == EventPropose) {
			payload.Response = *a.AdminResponse
		}
		if a.AlternativeProposal != nil {
			payload.ProposalID = a.AlternativeProposal.ID
		}
		for _, eventType := range eventTypes(cmd.Event) {
			if err := m.events.Emit(ctx, tx.Outbox(), eventType, payload); err != nil {
				return apperrors.Internal(err)
			}
		}

		result = a
		return nil
	})

	m.metrics.Transitions.WithLabelValues(string(cmd.Event), metrics.Result(err)).Inc()
	if err != nil {
		appErr, ok := apperrors.As(err)
		if !ok {
			appErr = apperrors.Internal(err)
		}
		if appErr.Code == apperrors.CodeInternal {
			m.log.Error(err, "appointment transition failed", "appointment_id", appointmentID, "event", string(cmd.Event))
		} else {
			m.log.Debug("appointment transition rejected", "appointment_id", appointmentID, "event", string(cmd.Event), "code", string(appErr.Code))
		}
		return nil, appErr
	}

	m.log.Info("appointment transition applied",
		"appointment_id", appointmentID,
		"event", string(cmd.Event),
		"status", string(result.Status),
	)
	return result, nil
}

func (m *Machine) recordOutcome(ctx context.Context, tx repository.Store, a *model.Appointment) error {
	switch a.Status {
	case model.AppointmentStatusCompleted:
		return m.history.RecordCompletion(ctx, tx.Histories(), a)
	case model.AppointmentStatusCancelled:
		return m.history.RecordCancellation(ctx, tx.Histories(), a)
	case model.AppointmentStatusNoShow:
		return m.history.RecordNoShow(ctx, tx.Histories(), a)
	}
	return nil
}

// withdrawProposal closes the open counter-offer of an appointment that is
// being cancelled mid-negotiation.
func withdrawProposal(ctx context.Context, tx repository.Store, a *model.Appointment, now time.Time) error {
	p, err := tx.Proposals().Latest(ctx, a.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return apperrors.Internal(err)
	}
	if p.Status != model.ProposalStatusPending {
		return nil
	}
	p.Status = model.ProposalStatusRejected
	p.RespondedAt = &now
	if err := tx.Proposals().Update(ctx, p); err != nil {
		return apperrors.Internal(err)
	}
	a.AlternativeProposal = p
	return nil
}

func writeError(err error, a *model.Appointment) error {
	switch {
	case errors.Is(err, repository.ErrStaleVersion):
		return apperrors.ConcurrentUpdate("appointment", a.ID)
	case errors.Is(err, repository.ErrDuplicate):
		return apperrors.SlotUnavailable(a.SlotID)
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NotFound("appointment", a.ID)
	}
	return apperrors.Internal(err)
}
