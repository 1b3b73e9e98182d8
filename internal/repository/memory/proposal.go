package memory

import (
	"context"
	"fmt"

	"github.com/jwalitptl/vip-booking/internal/model"
	"github.com/jwalitptl/vip-booking/internal/repository"
)

type proposalRepository struct {
	s *Store
}

func (r *proposalRepository) NextID(ctx context.Context) (string, error) {
	defer r.s.lock()()
	r.s.data.altSeq++
	return fmt.Sprintf("alt-%d", r.s.data.altSeq), nil
}

func (r *proposalRepository) Create(ctx context.Context, proposal *model.AlternativeSlotProposal) error {
	defer r.s.lock()()
	for _, p := range r.s.data.proposals {
		if p.ID == proposal.ID {
			return repository.ErrDuplicate
		}
	}
	r.s.data.proposals = append(r.s.data.proposals, proposal.Clone())
	return nil
}

func (r *proposalRepository) Update(ctx context.Context, proposal *model.AlternativeSlotProposal) error {
	defer r.s.lock()()
	for i, p := range r.s.data.proposals {
		if p.ID == proposal.ID {
			r.s.data.proposals[i] = proposal.Clone()
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *proposalRepository) Latest(ctx context.Context, appointmentID string) (*model.AlternativeSlotProposal, error) {
	defer r.s.lock()()
	for i := len(r.s.data.proposals) - 1; i >= 0; i-- {
		if p := r.s.data.proposals[i]; p.AppointmentID == appointmentID {
			return p.Clone(), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *proposalRepository) ListByAppointment(ctx context.Context, appointmentID string) ([]*model.AlternativeSlotProposal, error) {
	defer r.s.lock()()
	var out []*model.AlternativeSlotProposal
	for _, p := range r.s.data.proposals {
		if p.AppointmentID == appointmentID {
			out = append(out, p.Clone())
		}
	}
	return out, nil
}
