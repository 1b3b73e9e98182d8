package slot

import (
	"context"
	"errors"
	"time"

	"github.com/jwalitptl/vip-booking/internal/model"
	"github.com/jwalitptl/vip-booking/internal/repository"
	apperrors "github.com/jwalitptl/vip-booking/pkg/errors"
	"github.com/jwalitptl/vip-booking/pkg/logger"
	"github.com/jwalitptl/vip-booking/pkg/metrics"
)

// Service manages the agency's slot inventory.
type Service struct {
	store   repository.Store
	now     func() time.Time
	log     *logger.Logger
	metrics *metrics.Metrics
}

func NewService(store repository.Store, now func() time.Time, log *logger.Logger, m *metrics.Metrics) *Service {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = logger.Nop()
	}
	if m == nil {
		m = metrics.NewNop()
	}
	return &Service{store: store, now: now, log: log, metrics: m}
}

// Today is the reference date for bookability.
func (s *Service) Today() time.Time {
	return model.DateOf(s.now())
}

// CreateSlot adds an available slot. The date must be strictly after today
// and the slot must not overlap another slot on the same date.
func (s *Service) CreateSlot(ctx context.Context, date, start, end string) (slot *model.Slot, err error) {
	defer func() {
		s.metrics.SlotOperations.WithLabelValues("create", metrics.Result(err)).Inc()
	}()

	day, err := model.ParseDate(date)
	if err != nil {
		return nil, apperrors.Validation(err.Error())
	}
	startClock, err := model.ParseClock(start)
	if err != nil {
		return nil, apperrors.Validation(err.Error())
	}
	endClock, err := model.ParseClock(end)
	if err != nil {
		return nil, apperrors.Validation(err.Error())
	}
	if !startClock.Before(endClock) {
		return nil, apperrors.Validation("start time must be before end time")
	}
	if !day.After(s.Today()) {
		return nil, apperrors.Validation("slot date must be after today")
	}

	now := s.now().UTC()
	slot = &model.Slot{
		ID:          model.SlotID(day, start),
		Date:        day,
		StartTime:   start,
		EndTime:     end,
		IsAvailable: true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		if err := tx.Slots().LockDate(ctx, day); err != nil {
			return apperrors.Internal(err)
		}
		existing, err := tx.Slots().ListByDate(ctx, day)
		if err != nil {
			return apperrors.Internal(err)
		}
		for _, other := range existing {
			if other.ID == slot.ID {
				return apperrors.AlreadyExists("slot", slot.ID)
			}
			if other.Overlaps(start, end) {
				return apperrors.Validation("slot overlaps " + other.ID)
			}
		}

		err = tx.Slots().Create(ctx, slot)
		if errors.Is(err, repository.ErrDuplicate) {
			return apperrors.AlreadyExists("slot", slot.ID)
		}
		if err != nil {
			return apperrors.Internal(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("slot created", "slot_id", slot.ID)
	return slot, nil
}

// ToggleAvailability flips is_available. Existing bookings are untouched.
func (s *Service) ToggleAvailability(ctx context.Context, slotID string) (slot *model.Slot, err error) {
	defer func() {
		s.metrics.SlotOperations.WithLabelValues("toggle", metrics.Result(err)).Inc()
	}()

	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		current, err := s.lock(ctx, tx, slotID)
		if err != nil {
			return err
		}
		current.IsAvailable = !current.IsAvailable
		current.UpdatedAt = s.now().UTC()
		if err := tx.Slots().SetAvailability(ctx, slotID, current.IsAvailable); err != nil {
			return apperrors.Internal(err)
		}
		slot = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("slot availability toggled", "slot_id", slotID, "is_available", slot.IsAvailable)
	return slot, nil
}

// DeleteSlot removes a slot not referenced by a live appointment.
func (s *Service) DeleteSlot(ctx context.Context, slotID string) (err error) {
	defer func() {
		s.metrics.SlotOperations.WithLabelValues("delete", metrics.Result(err)).Inc()
	}()

	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		if _, err := s.lock(ctx, tx, slotID); err != nil {
			return err
		}
		booked, err := tx.Slots().IsBooked(ctx, slotID)
		if err != nil {
			return apperrors.Internal(err)
		}
		if booked {
			return apperrors.SlotConflict(slotID)
		}
		if err := tx.Slots().Delete(ctx, slotID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperrors.NotFound("slot", slotID)
			}
			return apperrors.Internal(err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info("slot deleted", "slot_id", slotID)
	return nil
}

// QueryBookableSlots lists available, unbooked slots dated strictly after
// the reference date, ordered by date then start time.
func (s *Service) QueryBookableSlots(ctx context.Context, referenceDate time.Time) ([]*model.Slot, error) {
	return s.queryBookable(ctx, model.DateOf(referenceDate), nil)
}

// QueryBookableRange narrows the bookable slots to [from, to]. Dates not
// after today are never bookable regardless of from.
func (s *Service) QueryBookableRange(ctx context.Context, from, to *time.Time) ([]*model.Slot, error) {
	after := s.Today()
	if from != nil {
		if dayBefore := model.DateOf(*from).AddDate(0, 0, -1); dayBefore.After(after) {
			after = dayBefore
		}
	}
	if to != nil {
		d := model.DateOf(*to)
		if d.Before(after) {
			return nil, apperrors.Validation("to must not be before from")
		}
		to = &d
	}
	return s.queryBookable(ctx, after, to)
}

func (s *Service) queryBookable(ctx context.Context, after time.Time, to *time.Time) ([]*model.Slot, error) {
	slots, err := s.store.Slots().ListBookable(ctx, after, to)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return slots, nil
}

func (s *Service) GetSlot(ctx context.Context, slotID string) (*model.Slot, error) {
	slot, err := s.store.Slots().Get(ctx, slotID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("slot", slotID)
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return slot, nil
}

// ListSlots is the admin inventory view, including the derived booking flag.
func (s *Service) ListSlots(ctx context.Context, filters *model.SlotFilters) ([]*model.SlotView, error) {
	if filters != nil && filters.From != nil && filters.To != nil && filters.To.Before(*filters.From) {
		return nil, apperrors.Validation("to must not be before from")
	}
	views, err := s.store.Slots().List(ctx, filters)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return views, nil
}

// CheckBookable locks a slot inside the caller's transaction and fails
// SlotUnavailable unless it is available, unbooked and dated after today.
func (s *Service) CheckBookable(ctx context.Context, tx repository.Store, slotID string) (*model.Slot, error) {
	slot, err := s.lock(ctx, tx, slotID)
	if err != nil {
		return nil, err
	}
	if !slot.IsAvailable || !model.DateOf(slot.Date).After(s.Today()) {
		return nil, apperrors.SlotUnavailable(slotID)
	}
	booked, err := tx.Slots().IsBooked(ctx, slotID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if booked {
		return nil, apperrors.SlotUnavailable(slotID)
	}
	return slot, nil
}

func (s *Service) lock(ctx context.Context, tx repository.Store, slotID string) (*model.Slot, error) {
	slot, err := tx.Slots().GetForUpdate(ctx, slotID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("slot", slotID)
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return slot, nil
}
