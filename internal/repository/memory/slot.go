package memory

import (
	"context"
	"sort"
	"time"

	"github.com/jwalitptl/vip-booking/internal/model"
	"github.com/jwalitptl/vip-booking/internal/repository"
)

type slotRepository struct {
	s *Store
}

func (r *slotRepository) Create(ctx context.Context, slot *model.Slot) error {
	defer r.s.lock()()
	if _, ok := r.s.data.slots[slot.ID]; ok {
		return repository.ErrDuplicate
	}
	v := *slot
	r.s.data.slots[slot.ID] = &v
	return nil
}

func (r *slotRepository) Get(ctx context.Context, id string) (*model.Slot, error) {
	defer r.s.lock()()
	slot, ok := r.s.data.slots[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	v := *slot
	return &v, nil
}

func (r *slotRepository) GetForUpdate(ctx context.Context, id string) (*model.Slot, error) {
	return r.Get(ctx, id)
}

// LockDate is a no-op: transactions already run one at a time.
func (r *slotRepository) LockDate(ctx context.Context, date time.Time) error {
	return nil
}

func (r *slotRepository) ListByDate(ctx context.Context, date time.Time) ([]*model.Slot, error) {
	defer r.s.lock()()
	var slots []*model.Slot
	for _, slot := range r.s.data.slots {
		if slot.Date.Equal(date) {
			v := *slot
			slots = append(slots, &v)
		}
	}
	sortSlots(slots)
	return slots, nil
}

func (r *slotRepository) List(ctx context.Context, filters *model.SlotFilters) ([]*model.SlotView, error) {
	defer r.s.lock()()
	if filters == nil {
		filters = &model.SlotFilters{}
	}

	var slots []*model.Slot
	for _, slot := range r.s.data.slots {
		if filters.From != nil && slot.Date.Before(*filters.From) {
			continue
		}
		if filters.To != nil && slot.Date.After(*filters.To) {
			continue
		}
		if filters.OnlyAvailable && !slot.IsAvailable {
			continue
		}
		v := *slot
		slots = append(slots, &v)
	}
	sortSlots(slots)

	views := make([]*model.SlotView, 0, len(slots))
	for _, slot := range slots {
		views = append(views, &model.SlotView{Slot: *slot, IsBooked: r.s.isBooked(slot.ID)})
	}
	return views, nil
}

func (r *slotRepository) ListBookable(ctx context.Context, after time.Time, to *time.Time) ([]*model.Slot, error) {
	defer r.s.lock()()
	var slots []*model.Slot
	for _, slot := range r.s.data.slots {
		if !slot.IsAvailable || !slot.Date.After(after) {
			continue
		}
		if to != nil && slot.Date.After(*to) {
			continue
		}
		if r.s.isBooked(slot.ID) {
			continue
		}
		v := *slot
		slots = append(slots, &v)
	}
	sortSlots(slots)
	return slots, nil
}

func (r *slotRepository) SetAvailability(ctx context.Context, id string, available bool) error {
	defer r.s.lock()()
	slot, ok := r.s.data.slots[id]
	if !ok {
		return repository.ErrNotFound
	}
	slot.IsAvailable = available
	slot.UpdatedAt = r.s.now().UTC()
	return nil
}

func (r *slotRepository) Delete(ctx context.Context, id string) error {
	defer r.s.lock()()
	if _, ok := r.s.data.slots[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.data.slots, id)
	return nil
}

func (r *slotRepository) IsBooked(ctx context.Context, id string) (bool, error) {
	defer r.s.lock()()
	return r.s.isBooked(id), nil
}

func sortSlots(slots []*model.Slot) {
	sort.Slice(slots, func(i, j int) bool {
		return slots[i].Before(slots[j])
	})
}
