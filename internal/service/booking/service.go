package booking

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jwalitptl/vip-booking/internal/model"
	"github.com/jwalitptl/vip-booking/internal/repository"
	"github.com/jwalitptl/vip-booking/internal/service/appointment"
	"github.com/jwalitptl/vip-booking/internal/service/event"
	"github.com/jwalitptl/vip-booking/internal/service/history"
	"github.com/jwalitptl/vip-booking/internal/service/payment"
	"github.com/jwalitptl/vip-booking/internal/service/settings"
	"github.com/jwalitptl/vip-booking/internal/service/slot"
	apperrors "github.com/jwalitptl/vip-booking/pkg/errors"
	"github.com/jwalitptl/vip-booking/pkg/logger"
	"github.com/jwalitptl/vip-booking/pkg/metrics"
)

type Dependencies struct {
	Store    repository.Store
	Slots    *slot.Service
	History  *history.Service
	Settings settings.Provider
	Machine  *appointment.Machine
	Events   event.Emitter
	Gateway  payment.Gateway
	Now      func() time.Time
	Logger   *logger.Logger
	Metrics  *metrics.Metrics
}

// Service turns client requests into appointments and records payments.
type Service struct {
	store    repository.Store
	slots    *slot.Service
	history  *history.Service
	settings settings.Provider
	machine  *appointment.Machine
	events   event.Emitter
	gateway  payment.Gateway
	now      func() time.Time
	log      *logger.Logger
	metrics  *metrics.Metrics
}

func NewService(deps Dependencies) *Service {
	s := &Service{
		store:    deps.Store,
		slots:    deps.Slots,
		history:  deps.History,
		settings: deps.Settings,
		machine:  deps.Machine,
		events:   deps.Events,
		gateway:  deps.Gateway,
		now:      deps.Now,
		log:      deps.Logger,
		metrics:  deps.Metrics,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.log == nil {
		s.log = logger.Nop()
	}
	if s.metrics == nil {
		s.metrics = metrics.NewNop()
	}
	return s
}

// SubmitRequest reserves a bookable slot for the client. Slot check, price
// computation, entitlement consumption, insert and event all happen in one
// transaction with the slot row locked.
func (s *Service) SubmitRequest(ctx context.Context, clientID string, req *model.CreateAppointmentRequest) (result *model.Appointment, err error) {
	defer func() {
		modality := "unknown"
		if req != nil && req.Modality.Valid() {
			modality = string(req.Modality)
		}
		s.metrics.BookingRequests.WithLabelValues(modality, metrics.Result(err)).Inc()
	}()

	if err := validateRequest(clientID, req); err != nil {
		return nil, err
	}

	current, err := s.settings.Get(ctx)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		booked, err := s.slots.CheckBookable(ctx, tx, req.SlotID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return apperrors.SlotUnavailable(req.SlotID)
			}
			return err
		}

		hist, err := s.history.Load(ctx, tx.Histories(), clientID)
		if err != nil {
			return apperrors.Internal(err)
		}

		id, err := tx.Appointments().NextID(ctx)
		if err != nil {
			return apperrors.Internal(err)
		}

		now := s.now().UTC()
		a := &model.Appointment{
			ID:            id,
			SlotID:        booked.ID,
			Date:          booked.Date,
			StartTime:     booked.StartTime,
			EndTime:       booked.EndTime,
			ClientID:      clientID,
			ClientName:    strings.TrimSpace(req.ClientName),
			ClientEmail:   strings.TrimSpace(req.ClientEmail),
			ClientPhone:   strings.TrimSpace(req.ClientPhone),
			Modality:      req.Modality,
			Status:        model.AppointmentStatusPendingPayment,
			PaymentStatus: model.PaymentStatusUnpaid,
			Price:         current.PriceFor(req.Modality),
			Subject:       strings.TrimSpace(req.Subject),
			CreatedAt:     now,
			UpdatedAt:     now,
			Version:       1,
		}
		if msg := strings.TrimSpace(req.Message); msg != "" {
			a.Message = model.StringPtr(msg)
		}
		if history.IsEntitledToFree(current, hist) {
			a.IsFreeFirstAppointment = true
			a.Price = 0
			a.Status = model.AppointmentStatusPending
			a.PaymentStatus = model.PaymentStatusFree
		}

		if err := tx.Appointments().Create(ctx, a); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return apperrors.SlotUnavailable(booked.ID)
			}
			if errors.Is(err, repository.ErrFreeAppointmentUsed) {
				return apperrors.ConcurrentUpdate("client history", clientID)
			}
			return apperrors.Internal(err)
		}
		if err := s.history.RecordBooking(ctx, tx.Histories(), a); err != nil {
			return apperrors.Internal(err)
		}
		if err := s.events.Emit(ctx, tx.Outbox(), model.EventAppointmentRequested, model.NewAppointmentEvent(a, now)); err != nil {
			return apperrors.Internal(err)
		}

		result = a
		return nil
	})
	if err != nil {
		s.log.Debug("booking request rejected", "client_id", clientID, "slot_id", req.SlotID, "code", string(apperrors.CodeOf(err)))
		return nil, err
	}

	s.log.Info("appointment requested",
		"appointment_id", result.ID,
		"client_id", clientID,
		"slot_id", result.SlotID,
		"free", result.IsFreeFirstAppointment,
	)
	return result, nil
}

// RecordPayment settles a pending-payment appointment with an external
// payment reference.
func (s *Service) RecordPayment(ctx context.Context, appointmentID, reference string) (*model.Appointment, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, apperrors.Validation("payment reference is required")
	}
	return s.machine.Apply(ctx, appointmentID, appointment.Command{
		Event:            appointment.EventPay,
		PaymentReference: reference,
	})
}

// PayAppointment charges the client's appointment through the payment
// gateway and records the resulting reference. Only the owner may pay.
func (s *Service) PayAppointment(ctx context.Context, appointmentID, clientID string) (*model.Appointment, error) {
	a, err := s.store.Appointments().Get(ctx, appointmentID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("appointment", appointmentID)
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if clientID != "" && a.ClientID != clientID {
		return nil, apperrors.Forbidden("appointment belongs to another client")
	}
	if _, err := appointment.Next(a, appointment.EventPay); err != nil {
		return nil, err
	}

	ref, err := s.gateway.Charge(ctx, payment.ChargeRequest{
		AppointmentID: a.ID,
		ClientID:      a.ClientID,
		Amount:        a.Price,
	})
	if err != nil {
		s.log.Error(err, "payment charge failed", "appointment_id", a.ID)
		return nil, apperrors.Internal(err)
	}

	paid, err := s.machine.Apply(ctx, appointmentID, appointment.Command{
		Event:            appointment.EventPay,
		ClientID:         clientID,
		PaymentReference: ref,
	})
	if err != nil {
		// The charge went through but the appointment moved on meanwhile;
		// the reference is logged for manual reconciliation.
		s.log.Error(err, "charged payment could not be recorded", "appointment_id", a.ID, "payment_reference", ref)
		return nil, err
	}
	return paid, nil
}

func validateRequest(clientID string, req *model.CreateAppointmentRequest) error {
	switch {
	case strings.TrimSpace(clientID) == "":
		return apperrors.Validation("client id is required")
	case req == nil:
		return apperrors.Validation("request body is required")
	case strings.TrimSpace(req.SlotID) == "":
		return apperrors.Validation("slot id is required")
	case !req.Modality.Valid():
		return apperrors.Validation("modality must be online or in-person")
	case strings.TrimSpace(req.Subject) == "":
		return apperrors.Validation("subject is required")
	}
	return nil
}
