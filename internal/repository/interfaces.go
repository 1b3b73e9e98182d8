package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/vip-booking/internal/model"
)

var (
	ErrNotFound            = errors.New("record not found")
	ErrDuplicate           = errors.New("duplicate record")
	ErrStaleVersion        = errors.New("stale version")
	// ErrFreeAppointmentUsed reports a second free appointment for a client.
	ErrFreeAppointmentUsed = errors.New("free appointment already used")
)

// All repository interfaces in one file
type (
	SlotRepository interface {
		Create(ctx context.Context, slot *model.Slot) error
		Get(ctx context.Context, id string) (*model.Slot, error)
		// GetForUpdate locks the slot row until the surrounding transaction ends.
		GetForUpdate(ctx context.Context, id string) (*model.Slot, error)
		// LockDate serialises slot creation on one calendar day until the
		// surrounding transaction ends.
		LockDate(ctx context.Context, date time.Time) error
		ListByDate(ctx context.Context, date time.Time) ([]*model.Slot, error)
		List(ctx context.Context, filters *model.SlotFilters) ([]*model.SlotView, error)
		// ListBookable returns available, unbooked slots dated strictly after
		// the reference date, ordered by date then start time.
		ListBookable(ctx context.Context, after time.Time, to *time.Time) ([]*model.Slot, error)
		SetAvailability(ctx context.Context, id string, available bool) error
		Delete(ctx context.Context, id string) error
		IsBooked(ctx context.Context, id string) (bool, error)
	}

	AppointmentRepository interface {
		NextID(ctx context.Context) (string, error)
		// Create fails with ErrDuplicate if the slot already backs a live
		// appointment and with ErrFreeAppointmentUsed if the client already has a
		// free one.
		Create(ctx context.Context, appointment *model.Appointment) error
		Get(ctx context.Context, id string) (*model.Appointment, error)
		GetForUpdate(ctx context.Context, id string) (*model.Appointment, error)
		// Update persists the appointment if its version is unchanged and bumps it.
		Update(ctx context.Context, appointment *model.Appointment) error
		List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, int, error)
		CountByStatus(ctx context.Context) (model.StatusCounts, error)
	}

	ProposalRepository interface {
		NextID(ctx context.Context) (string, error)
		Create(ctx context.Context, proposal *model.AlternativeSlotProposal) error
		Update(ctx context.Context, proposal *model.AlternativeSlotProposal) error
		// Latest returns the most recent proposal made for an appointment.
		Latest(ctx context.Context, appointmentID string) (*model.AlternativeSlotProposal, error)
		ListByAppointment(ctx context.Context, appointmentID string) ([]*model.AlternativeSlotProposal, error)
	}

	HistoryRepository interface {
		// Get returns ErrNotFound for clients that never booked.
		Get(ctx context.Context, clientID string) (*model.ClientAppointmentHistory, error)
		GetForUpdate(ctx context.Context, clientID string) (*model.ClientAppointmentHistory, error)
		Upsert(ctx context.Context, history *model.ClientAppointmentHistory) error
	}

	SettingsRepository interface {
		Get(ctx context.Context) (*model.AppointmentSettings, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errorMessage *string, retryAt *time.Time) error
		MoveToDeadLetter(ctx context.Context, evt *model.OutboxEvent) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}

	// Store groups the repositories that must change together. Repositories
	// obtained from the Store passed to WithTx's callback share its transaction.
	Store interface {
		Slots() SlotRepository
		Appointments() AppointmentRepository
		Proposals() ProposalRepository
		Histories() HistoryRepository
		Settings() SettingsRepository
		Outbox() OutboxRepository
		WithTx(ctx context.Context, fn func(Store) error) error
		Ping(ctx context.Context) error
	}
)
