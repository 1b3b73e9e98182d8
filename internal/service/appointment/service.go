package appointment

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jwalitptl/vip-booking/internal/model"
	"github.com/jwalitptl/vip-booking/internal/repository"
	apperrors "github.com/jwalitptl/vip-booking/pkg/errors"
	"github.com/jwalitptl/vip-booking/pkg/logger"
)

const maxPageSize = 100

// Service exposes the admin and client commands that do not need another
// collaborator, plus read access to appointments.
type Service struct {
	store   repository.Store
	machine *Machine
	now     func() time.Time
	log     *logger.Logger
}

func NewService(store repository.Store, machine *Machine, now func() time.Time, log *logger.Logger) *Service {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Service{store: store, machine: machine, now: now, log: log}
}

// Confirm accepts a pending appointment whose payment is settled.
func (s *Service) Confirm(ctx context.Context, id, response string) (*model.Appointment, error) {
	return s.machine.Apply(ctx, id, Command{Event: EventConfirm, Response: strings.TrimSpace(response)})
}

// Reject cancels a pending appointment on the agency's side.
func (s *Service) Reject(ctx context.Context, id, reason string) (*model.Appointment, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperrors.Validation("reason is required")
	}
	return s.machine.Apply(ctx, id, Command{Event: EventReject, Reason: reason})
}

func (s *Service) Complete(ctx context.Context, id string) (*model.Appointment, error) {
	return s.machine.Apply(ctx, id, Command{Event: EventComplete})
}

func (s *Service) MarkNoShow(ctx context.Context, id string) (*model.Appointment, error) {
	return s.machine.Apply(ctx, id, Command{Event: EventNoShow})
}

// Cancel withdraws any non-terminal appointment. clientID is empty for the
// agency and the owner's id otherwise.
func (s *Service) Cancel(ctx context.Context, id, clientID, reason string) (*model.Appointment, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperrors.Validation("reason is required")
	}
	return s.machine.Apply(ctx, id, Command{Event: EventCancel, ClientID: clientID, Reason: reason})
}

// Get loads an appointment with its latest alternative proposal. clientID
// restricts access to the owner when set.
func (s *Service) Get(ctx context.Context, id, clientID string) (*model.Appointment, error) {
	a, err := s.store.Appointments().Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("appointment", id)
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if clientID != "" && a.ClientID != clientID {
		return nil, apperrors.NotFound("appointment", id)
	}

	p, err := s.store.Proposals().Latest(ctx, id)
	switch {
	case err == nil:
		a.AlternativeProposal = p
	case !errors.Is(err, repository.ErrNotFound):
		return nil, apperrors.Internal(err)
	}
	return a, nil
}

func (s *Service) List(ctx context.Context, filters *model.AppointmentFilters) (*model.Page[*model.Appointment], error) {
	if filters == nil {
		filters = &model.AppointmentFilters{}
	}
	if filters.Status != "" && !filters.Status.Valid() {
		return nil, apperrors.Validation("unknown status " + string(filters.Status))
	}
	if filters.Modality != "" && !filters.Modality.Valid() {
		return nil, apperrors.Validation("unknown modality " + string(filters.Modality))
	}
	if filters.Limit <= 0 || filters.Limit > maxPageSize {
		filters.Limit = maxPageSize
	}
	if filters.Offset < 0 {
		filters.Offset = 0
	}

	items, total, err := s.store.Appointments().List(ctx, filters)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if items == nil {
		items = []*model.Appointment{}
	}
	return &model.Page[*model.Appointment]{Items: items, Total: total}, nil
}

func (s *Service) CountByStatus(ctx context.Context) (model.StatusCounts, error) {
	counts, err := s.store.Appointments().CountByStatus(ctx)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return counts, nil
}

// UpdateNotes replaces the agency's private notes. It is allowed in every
// status and is not a transition.
func (s *Service) UpdateNotes(ctx context.Context, id, notes string) (*model.Appointment, error) {
	var result *model.Appointment
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		a, err := tx.Appointments().GetForUpdate(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NotFound("appointment", id)
		}
		if err != nil {
			return apperrors.Internal(err)
		}

		notes = strings.TrimSpace(notes)
		if notes == "" {
			a.AdminNotes = nil
		} else {
			a.AdminNotes = model.StringPtr(notes)
		}
		a.UpdatedAt = s.now().UTC()
		if err := tx.Appointments().Update(ctx, a); err != nil {
			return writeError(err, a)
		}
		result = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("appointment notes updated", "appointment_id", id)
	return result, nil
}
