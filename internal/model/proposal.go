package model

import "time"

type ProposalStatus string

const (
	ProposalStatusPending  ProposalStatus = "pending"
	ProposalStatusAccepted ProposalStatus = "accepted"
	ProposalStatusRejected ProposalStatus = "rejected"
)

// AlternativeSlotProposal is an agency counter-offer. The slot date and
// boundaries are captured when the proposal is made.
type AlternativeSlotProposal struct {
	ID             string         `db:"id" json:"id"`
	AppointmentID  string         `db:"appointment_id" json:"appointment_id"`
	ProposedSlotID string         `db:"proposed_slot_id" json:"proposed_slot_id"`
	Date           time.Time      `db:"slot_date" json:"date"`
	StartTime      string         `db:"start_time" json:"start_time"`
	EndTime        string         `db:"end_time" json:"end_time"`
	Reason         string         `db:"reason" json:"reason"`
	Status         ProposalStatus `db:"status" json:"status"`
	ProposedAt     time.Time      `db:"proposed_at" json:"proposed_at"`
	RespondedAt    *time.Time     `db:"responded_at" json:"responded_at,omitempty"`
}

func (p *AlternativeSlotProposal) Clone() *AlternativeSlotProposal {
	c := *p
	c.RespondedAt = cloneTime(p.RespondedAt)
	return &c
}
