package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/vip-booking/internal/model"
	"github.com/jwalitptl/vip-booking/internal/repository"
)

const proposalColumns = `id, appointment_id, proposed_slot_id, slot_date, start_time, end_time,
	reason, status, proposed_at, responded_at`

type proposalRepository struct {
	ex sqlx.ExtContext
}

func (r *proposalRepository) NextID(ctx context.Context) (string, error) {
	var seq int64
	if err := sqlx.GetContext(ctx, r.ex, &seq, `SELECT nextval('proposal_seq')`); err != nil {
		return "", translate(err, "allocate proposal id")
	}
	return fmt.Sprintf("alt-%d", seq), nil
}

func (r *proposalRepository) Create(ctx context.Context, p *model.AlternativeSlotProposal) error {
	query := `
		INSERT INTO alternative_proposals (` + proposalColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.ex.ExecContext(ctx, query,
		p.ID,
		p.AppointmentID,
		p.ProposedSlotID,
		p.Date,
		p.StartTime,
		p.EndTime,
		p.Reason,
		p.Status,
		p.ProposedAt,
		p.RespondedAt,
	)
	return translate(err, "create proposal")
}

func (r *proposalRepository) Update(ctx context.Context, p *model.AlternativeSlotProposal) error {
	query := `
		UPDATE alternative_proposals
		SET status = $1, responded_at = $2
		WHERE id = $3
	`
	result, err := r.ex.ExecContext(ctx, query, p.Status, p.RespondedAt, p.ID)
	if err != nil {
		return translate(err, "update proposal")
	}
	return requireRow(result)
}

func (r *proposalRepository) Latest(ctx context.Context, appointmentID string) (*model.AlternativeSlotProposal, error) {
	query := `
		SELECT ` + proposalColumns + `
		FROM alternative_proposals
		WHERE appointment_id = $1
		ORDER BY proposed_at DESC, length(id) DESC, id DESC
		LIMIT 1
	`
	var p model.AlternativeSlotProposal
	if err := sqlx.GetContext(ctx, r.ex, &p, query, appointmentID); err != nil {
		return nil, translate(err, "get latest proposal")
	}
	p.Date = model.DateOf(p.Date)
	return &p, nil
}

func (r *proposalRepository) ListByAppointment(ctx context.Context, appointmentID string) ([]*model.AlternativeSlotProposal, error) {
	query := `
		SELECT ` + proposalColumns + `
		FROM alternative_proposals
		WHERE appointment_id = $1
		ORDER BY proposed_at ASC, length(id) ASC, id ASC
	`
	var proposals []*model.AlternativeSlotProposal
	if err := sqlx.SelectContext(ctx, r.ex, &proposals, query, appointmentID); err != nil {
		return nil, translate(err, "list proposals")
	}
	for _, p := range proposals {
		p.Date = model.DateOf(p.Date)
	}
	return proposals, nil
}

var _ repository.ProposalRepository = (*proposalRepository)(nil)
