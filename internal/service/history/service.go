package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jwalitptl/vip-booking/internal/model"
	"github.com/jwalitptl/vip-booking/internal/repository"
	apperrors "github.com/jwalitptl/vip-booking/pkg/errors"
)

// Outcome is the terminal result recorded against a client.
type Outcome int

const (
	OutcomeCompleted Outcome = iota
	OutcomeCancelled
	OutcomeNoShow
)

// Service tracks per-client appointment counters and the free first
// appointment entitlement. The Record* methods take the repository of the
// caller's transaction so the counters change atomically with the appointment.
type Service struct {
	store repository.Store
	now   func() time.Time
}

func NewService(store repository.Store, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{store: store, now: now}
}

// GetHistory returns a zero history for clients that never booked.
func (s *Service) GetHistory(ctx context.Context, clientID string) (*model.ClientAppointmentHistory, error) {
	if clientID == "" {
		return nil, apperrors.Validation("client id is required")
	}
	h, err := s.store.Histories().Get(ctx, clientID)
	if errors.Is(err, repository.ErrNotFound) {
		return &model.ClientAppointmentHistory{ClientID: clientID}, nil
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return h, nil
}

// Load reads and locks the history row inside a transaction, returning a zero
// history for new clients.
func (s *Service) Load(ctx context.Context, repo repository.HistoryRepository, clientID string) (*model.ClientAppointmentHistory, error) {
	h, err := repo.GetForUpdate(ctx, clientID)
	if errors.Is(err, repository.ErrNotFound) {
		return &model.ClientAppointmentHistory{ClientID: clientID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load client history: %w", err)
	}
	return h, nil
}

// IsEntitledToFree reports whether the client's next booking is free.
func IsEntitledToFree(settings *model.AppointmentSettings, h *model.ClientAppointmentHistory) bool {
	return settings.FirstAppointmentFree && !h.HasUsedFreeAppointment
}

// RecordBooking counts a new appointment. A free booking consumes the
// entitlement for good; it is not restored on cancellation.
func (s *Service) RecordBooking(ctx context.Context, repo repository.HistoryRepository, a *model.Appointment) error {
	h, err := s.Load(ctx, repo, a.ClientID)
	if err != nil {
		return err
	}
	h.TotalAppointments++
	if a.IsFreeFirstAppointment {
		h.HasUsedFreeAppointment = true
	}
	return s.save(ctx, repo, h)
}

func (s *Service) RecordCompletion(ctx context.Context, repo repository.HistoryRepository, a *model.Appointment) error {
	return s.record(ctx, repo, a, OutcomeCompleted)
}

func (s *Service) RecordCancellation(ctx context.Context, repo repository.HistoryRepository, a *model.Appointment) error {
	return s.record(ctx, repo, a, OutcomeCancelled)
}

func (s *Service) RecordNoShow(ctx context.Context, repo repository.HistoryRepository, a *model.Appointment) error {
	return s.record(ctx, repo, a, OutcomeNoShow)
}

func (s *Service) record(ctx context.Context, repo repository.HistoryRepository, a *model.Appointment, outcome Outcome) error {
	h, err := s.Load(ctx, repo, a.ClientID)
	if err != nil {
		return err
	}

	switch outcome {
	case OutcomeCompleted:
		h.CompletedAppointments++
	case OutcomeCancelled:
		h.CancelledAppointments++
	case OutcomeNoShow:
		h.NoShowAppointments++
	}

	date := model.DateOf(a.Date)
	if h.LastAppointmentDate == nil || date.After(*h.LastAppointmentDate) {
		h.LastAppointmentDate = &date
	}
	return s.save(ctx, repo, h)
}

func (s *Service) save(ctx context.Context, repo repository.HistoryRepository, h *model.ClientAppointmentHistory) error {
	h.UpdatedAt = s.now().UTC()
	if err := repo.Upsert(ctx, h); err != nil {
		return fmt.Errorf("failed to save client history: %w", err)
	}
	return nil
}
