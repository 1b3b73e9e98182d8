package negotiation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jwalitptl/vip-booking/internal/model"
	"github.com/jwalitptl/vip-booking/internal/repository"
	"github.com/jwalitptl/vip-booking/internal/service/appointment"
	"github.com/jwalitptl/vip-booking/internal/service/slot"
	apperrors "github.com/jwalitptl/vip-booking/pkg/errors"
)

const declineReason = "client declined proposed slot"

// Service runs the agency's counter-offer round trip: the agency proposes
// another slot and the client accepts or declines it.
type Service struct {
	store   repository.Store
	slots   *slot.Service
	machine *appointment.Machine
}

func NewService(store repository.Store, slots *slot.Service, machine *appointment.Machine) *Service {
	return &Service{store: store, slots: slots, machine: machine}
}

// Propose offers slotID in place of the requested slot. The appointment
// must be pending with a settled payment and the slot bookable.
func (s *Service) Propose(ctx context.Context, appointmentID, slotID, reason string) (*model.Appointment, error) {
	slotID = strings.TrimSpace(slotID)
	reason = strings.TrimSpace(reason)
	if slotID == "" {
		return nil, apperrors.Validation("proposed slot is required")
	}
	if reason == "" {
		return nil, apperrors.Validation("reason is required")
	}

	return s.machine.Apply(ctx, appointmentID, appointment.Command{
		Event:  appointment.EventPropose,
		Reason: reason,
		Prepare: func(ctx context.Context, tx repository.Store, a *model.Appointment, now time.Time) error {
			proposed, err := s.bookable(ctx, tx, slotID)
			if err != nil {
				return err
			}

			id, err := tx.Proposals().NextID(ctx)
			if err != nil {
				return apperrors.Internal(err)
			}
			p := &model.AlternativeSlotProposal{
				ID:             id,
				AppointmentID:  a.ID,
				ProposedSlotID: proposed.ID,
				Date:           proposed.Date,
				StartTime:      proposed.StartTime,
				EndTime:        proposed.EndTime,
				Reason:         reason,
				Status:         model.ProposalStatusPending,
				ProposedAt:     now,
			}
			if err := tx.Proposals().Create(ctx, p); err != nil {
				return apperrors.Internal(err)
			}

			a.AlternativeProposal = p
			a.AdminResponse = model.StringPtr(composeResponse(p))
			return nil
		},
	})
}

// Respond records the client's answer to the pending proposal. Accepting
// re-checks the proposed slot under lock and moves the appointment onto it;
// if the slot was taken meanwhile nothing changes.
func (s *Service) Respond(ctx context.Context, appointmentID, clientID string, accept bool) (*model.Appointment, error) {
	cmd := appointment.Command{
		Event:    appointment.EventDecline,
		ClientID: clientID,
		Reason:   declineReason,
	}
	if accept {
		cmd.Event = appointment.EventAccept
		cmd.Reason = ""
	}

	cmd.Prepare = func(ctx context.Context, tx repository.Store, a *model.Appointment, now time.Time) error {
		p, err := tx.Proposals().Latest(ctx, a.ID)
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.InvalidTransition(string(a.Status), string(cmd.Event))
		}
		if err != nil {
			return apperrors.Internal(err)
		}
		if p.Status != model.ProposalStatusPending {
			return apperrors.InvalidTransition(string(a.Status), string(cmd.Event))
		}

		if accept {
			if _, err := s.bookable(ctx, tx, p.ProposedSlotID); err != nil {
				return err
			}
			a.SlotID = p.ProposedSlotID
			a.Date = p.Date
			a.StartTime = p.StartTime
			a.EndTime = p.EndTime
			p.Status = model.ProposalStatusAccepted
		} else {
			p.Status = model.ProposalStatusRejected
		}
		p.RespondedAt = &now

		if err := tx.Proposals().Update(ctx, p); err != nil {
			return apperrors.Internal(err)
		}
		a.AlternativeProposal = p
		return nil
	}

	return s.machine.Apply(ctx, appointmentID, cmd)
}

// GetProposal returns the most recent proposal made for an appointment.
// clientID restricts access to the owner when set.
func (s *Service) GetProposal(ctx context.Context, appointmentID, clientID string) (*model.AlternativeSlotProposal, error) {
	a, err := s.store.Appointments().Get(ctx, appointmentID)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && clientID != "" && a.ClientID != clientID) {
		return nil, apperrors.NotFound("appointment", appointmentID)
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	p, err := s.store.Proposals().Latest(ctx, appointmentID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("alternative proposal for appointment", appointmentID)
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return p, nil
}

// ListProposals returns every proposal made for an appointment, oldest first.
func (s *Service) ListProposals(ctx context.Context, appointmentID, clientID string) ([]*model.AlternativeSlotProposal, error) {
	a, err := s.store.Appointments().Get(ctx, appointmentID)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && clientID != "" && a.ClientID != clientID) {
		return nil, apperrors.NotFound("appointment", appointmentID)
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	proposals, err := s.store.Proposals().ListByAppointment(ctx, appointmentID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if proposals == nil {
		proposals = []*model.AlternativeSlotProposal{}
	}
	return proposals, nil
}

// bookable treats an unknown slot like a taken one.
func (s *Service) bookable(ctx context.Context, tx repository.Store, slotID string) (*model.Slot, error) {
	proposed, err := s.slots.CheckBookable(ctx, tx, slotID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, apperrors.SlotUnavailable(slotID)
	}
	return proposed, err
}

func composeResponse(p *model.AlternativeSlotProposal) string {
	return fmt.Sprintf("We propose %s from %s to %s instead. %s",
		p.Date.Format(model.DateLayout), p.StartTime, p.EndTime, p.Reason)
}
