package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "PENDING"
	OutboxStatusProcessed OutboxStatus = "PROCESSED"
	OutboxStatusFailed    OutboxStatus = "FAILED"
)

// Domain events emitted on every appointment state change.
const (
	EventAppointmentRequested = "AppointmentRequested"
	EventPaymentRecorded      = "PaymentRecorded"
	EventAppointmentConfirmed = "AppointmentConfirmed"
	EventAppointmentCancelled = "AppointmentCancelled"
	EventAlternativeProposed  = "AlternativeProposed"
	EventAlternativeAccepted  = "AlternativeAccepted"
	EventAlternativeRejected  = "AlternativeRejected"
	EventAppointmentCompleted = "AppointmentCompleted"
	EventAppointmentNoShow    = "AppointmentNoShow"
)

type OutboxEvent struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	EventType    string          `db:"event_type" json:"event_type"`
	AggregateID  string          `db:"aggregate_id" json:"aggregate_id"`
	Payload      json.RawMessage `db:"payload" json:"payload"`
	Status       OutboxStatus    `db:"status" json:"status"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	ProcessedAt  *time.Time      `db:"processed_at" json:"processed_at,omitempty"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
	RetryCount   int             `db:"retry_count" json:"retry_count"`
	RetryAt      *time.Time      `db:"retry_at" json:"retry_at,omitempty"`
}

// AppointmentEvent is the payload carried by every appointment event.
type AppointmentEvent struct {
	AppointmentID string            `json:"appointment_id"`
	ClientID      string            `json:"client_id"`
	ClientEmail   string            `json:"client_email,omitempty"`
	ClientName    string            `json:"client_name,omitempty"`
	SlotID        string            `json:"slot_id"`
	Date          string            `json:"date"`
	StartTime     string            `json:"start_time"`
	EndTime       string            `json:"end_time"`
	Modality      Modality          `json:"modality"`
	Status        AppointmentStatus `json:"status"`
	PaymentStatus PaymentStatus     `json:"payment_status"`
	Price         int64             `json:"price"`
	Reason        string            `json:"reason,omitempty"`
	Response      string            `json:"response,omitempty"`
	ProposalID    string            `json:"proposal_id,omitempty"`
	OccurredAt    time.Time         `json:"occurred_at"`
}

// NewAppointmentEvent snapshots an appointment into an event payload.
func NewAppointmentEvent(a *Appointment, occurredAt time.Time) AppointmentEvent {
	return AppointmentEvent{
		AppointmentID: a.ID,
		ClientID:      a.ClientID,
		ClientEmail:   a.ClientEmail,
		ClientName:    a.ClientName,
		SlotID:        a.SlotID,
		Date:          a.Date.Format(DateLayout),
		StartTime:     a.StartTime,
		EndTime:       a.EndTime,
		Modality:      a.Modality,
		Status:        a.Status,
		PaymentStatus: a.PaymentStatus,
		Price:         a.Price,
		OccurredAt:    occurredAt,
	}
}
