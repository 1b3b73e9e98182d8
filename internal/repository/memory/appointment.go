package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jwalitptl/vip-booking/internal/model"
	"github.com/jwalitptl/vip-booking/internal/repository"
)

type appointmentRepository struct {
	s *Store
}

func (r *appointmentRepository) NextID(ctx context.Context) (string, error) {
	defer r.s.lock()()
	r.s.data.aptSeq++
	return fmt.Sprintf("apt-%d", r.s.data.aptSeq), nil
}

func (r *appointmentRepository) Create(ctx context.Context, appointment *model.Appointment) error {
	defer r.s.lock()()
	if _, ok := r.s.data.appointments[appointment.ID]; ok {
		return repository.ErrDuplicate
	}
	if appointment.Status != model.AppointmentStatusCancelled && r.s.isBooked(appointment.SlotID) {
		return repository.ErrDuplicate
	}
	if appointment.IsFreeFirstAppointment {
		for _, a := range r.s.data.appointments {
			if a.ClientID == appointment.ClientID && a.IsFreeFirstAppointment {
				return repository.ErrFreeAppointmentUsed
			}
		}
	}
	stored := appointment.Clone()
	stored.AlternativeProposal = nil
	r.s.data.appointments[appointment.ID] = stored
	return nil
}

func (r *appointmentRepository) Get(ctx context.Context, id string) (*model.Appointment, error) {
	defer r.s.lock()()
	a, ok := r.s.data.appointments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return a.Clone(), nil
}

func (r *appointmentRepository) GetForUpdate(ctx context.Context, id string) (*model.Appointment, error) {
	return r.Get(ctx, id)
}

func (r *appointmentRepository) Update(ctx context.Context, appointment *model.Appointment) error {
	defer r.s.lock()()
	current, ok := r.s.data.appointments[appointment.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if current.Version != appointment.Version {
		return repository.ErrStaleVersion
	}
	if appointment.Status != model.AppointmentStatusCancelled {
		for id, other := range r.s.data.appointments {
			if id != appointment.ID && other.SlotID == appointment.SlotID && other.Status != model.AppointmentStatusCancelled {
				return repository.ErrDuplicate
			}
		}
	}

	appointment.Version++
	stored := appointment.Clone()
	stored.AlternativeProposal = nil
	r.s.data.appointments[appointment.ID] = stored
	return nil
}

func (r *appointmentRepository) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, int, error) {
	defer r.s.lock()()
	if filters == nil {
		filters = &model.AppointmentFilters{}
	}
	search := strings.ToLower(strings.TrimSpace(filters.Search))

	var matched []*model.Appointment
	for _, a := range r.s.data.appointments {
		if filters.Status != "" && a.Status != filters.Status {
			continue
		}
		if filters.Modality != "" && a.Modality != filters.Modality {
			continue
		}
		if filters.ClientID != "" && a.ClientID != filters.ClientID {
			continue
		}
		if search != "" && !matchesSearch(a, search) {
			continue
		}
		matched = append(matched, a)
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return model.SequenceLess(matched[j].ID, matched[i].ID)
	})

	total := len(matched)
	start := filters.Offset
	if start > total {
		start = total
	}
	end := total
	if filters.Limit > 0 && start+filters.Limit < end {
		end = start + filters.Limit
	}

	out := make([]*model.Appointment, 0, end-start)
	for _, a := range matched[start:end] {
		out = append(out, a.Clone())
	}
	return out, total, nil
}

func (r *appointmentRepository) CountByStatus(ctx context.Context) (model.StatusCounts, error) {
	defer r.s.lock()()
	counts := make(model.StatusCounts, len(model.AppointmentStatuses))
	for _, st := range model.AppointmentStatuses {
		counts[st] = 0
	}
	for _, a := range r.s.data.appointments {
		counts[a.Status]++
	}
	return counts, nil
}

func matchesSearch(a *model.Appointment, needle string) bool {
	for _, field := range []string{a.ID, a.Subject, a.ClientName, a.ClientEmail, a.ClientID} {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}
