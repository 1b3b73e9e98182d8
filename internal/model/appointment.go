package model

import (
	"time"
)

type AppointmentStatus string

const (
	AppointmentStatusPendingPayment      AppointmentStatus = "pending-payment"
	AppointmentStatusPending             AppointmentStatus = "pending"
	AppointmentStatusConfirmed           AppointmentStatus = "confirmed"
	AppointmentStatusAlternativeProposed AppointmentStatus = "alternative-proposed"
	AppointmentStatusCancelled           AppointmentStatus = "cancelled"
	AppointmentStatusCompleted           AppointmentStatus = "completed"
	AppointmentStatusNoShow              AppointmentStatus = "no-show"
)

// AppointmentStatuses lists every status, in lifecycle order.
var AppointmentStatuses = []AppointmentStatus{
	AppointmentStatusPendingPayment,
	AppointmentStatusPending,
	AppointmentStatusConfirmed,
	AppointmentStatusAlternativeProposed,
	AppointmentStatusCancelled,
	AppointmentStatusCompleted,
	AppointmentStatusNoShow,
}

// IsTerminal reports whether no further transition is possible.
func (s AppointmentStatus) IsTerminal() bool {
	switch s {
	case AppointmentStatusCancelled, AppointmentStatusCompleted, AppointmentStatusNoShow:
		return true
	}
	return false
}

func (s AppointmentStatus) Valid() bool {
	for _, st := range AppointmentStatuses {
		if st == s {
			return true
		}
	}
	return false
}

type PaymentStatus string

const (
	PaymentStatusUnpaid   PaymentStatus = "unpaid"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusRefunded PaymentStatus = "refunded"
	PaymentStatusFree     PaymentStatus = "free"
)

// Settled reports whether the payment gate is open.
func (p PaymentStatus) Settled() bool {
	return p == PaymentStatusPaid || p == PaymentStatusFree
}

type Modality string

const (
	ModalityOnline   Modality = "online"
	ModalityInPerson Modality = "in-person"
)

func (m Modality) Valid() bool {
	return m == ModalityOnline || m == ModalityInPerson
}

type Appointment struct {
	ID                     string            `db:"id" json:"id"`
	SlotID                 string            `db:"slot_id" json:"slot_id"`
	Date                   time.Time         `db:"slot_date" json:"date"`
	StartTime              string            `db:"start_time" json:"start_time"`
	EndTime                string            `db:"end_time" json:"end_time"`
	ClientID               string            `db:"client_id" json:"client_id"`
	ClientName             string            `db:"client_name" json:"client_name,omitempty"`
	ClientEmail            string            `db:"client_email" json:"client_email,omitempty"`
	ClientPhone            string            `db:"client_phone" json:"client_phone,omitempty"`
	Modality               Modality          `db:"modality" json:"modality"`
	Status                 AppointmentStatus `db:"status" json:"status"`
	PaymentStatus          PaymentStatus     `db:"payment_status" json:"payment_status"`
	PaymentReference       *string           `db:"payment_reference" json:"payment_reference,omitempty"`
	Price                  int64             `db:"price" json:"price"`
	IsFreeFirstAppointment bool              `db:"is_free_first_appointment" json:"is_free_first_appointment"`
	Subject                string            `db:"subject" json:"subject"`
	Message                *string           `db:"message" json:"message,omitempty"`
	AdminResponse          *string           `db:"admin_response" json:"admin_response,omitempty"`
	AdminNotes             *string           `db:"admin_notes" json:"admin_notes,omitempty"`
	CancellationReason     *string           `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
	CreatedAt              time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt              time.Time         `db:"updated_at" json:"updated_at"`
	PaidAt                 *time.Time        `db:"paid_at" json:"paid_at,omitempty"`
	ConfirmedAt            *time.Time        `db:"confirmed_at" json:"confirmed_at,omitempty"`
	CompletedAt            *time.Time        `db:"completed_at" json:"completed_at,omitempty"`
	CancelledAt            *time.Time        `db:"cancelled_at" json:"cancelled_at,omitempty"`
	Version                int64             `db:"version" json:"version"`

	AlternativeProposal *AlternativeSlotProposal `db:"-" json:"alternative_proposal,omitempty"`
}

// Clone returns a deep copy safe to mutate.
func (a *Appointment) Clone() *Appointment {
	c := *a
	c.PaymentReference = cloneString(a.PaymentReference)
	c.Message = cloneString(a.Message)
	c.AdminResponse = cloneString(a.AdminResponse)
	c.AdminNotes = cloneString(a.AdminNotes)
	c.CancellationReason = cloneString(a.CancellationReason)
	c.PaidAt = cloneTime(a.PaidAt)
	c.ConfirmedAt = cloneTime(a.ConfirmedAt)
	c.CompletedAt = cloneTime(a.CompletedAt)
	c.CancelledAt = cloneTime(a.CancelledAt)
	if a.AlternativeProposal != nil {
		c.AlternativeProposal = a.AlternativeProposal.Clone()
	}
	return &c
}

type CreateAppointmentRequest struct {
	SlotID      string   `json:"slot_id" binding:"required"`
	Modality    Modality `json:"modality" binding:"required,oneof=online in-person"`
	Subject     string   `json:"subject" binding:"required,max=200"`
	Message     string   `json:"message" binding:"max=2000"`
	ClientName  string   `json:"client_name" binding:"max=200"`
	ClientEmail string   `json:"client_email" binding:"omitempty,email"`
	ClientPhone string   `json:"client_phone" binding:"max=32"`
}

type RecordPaymentRequest struct {
	Reference string `json:"reference" binding:"required,max=128"`
}

type ConfirmAppointmentRequest struct {
	Response string `json:"response" binding:"max=2000"`
}

type ReasonRequest struct {
	Reason string `json:"reason" binding:"required,max=1000"`
}

type ProposeAlternativeRequest struct {
	SlotID string `json:"slot_id"`
	Reason string `json:"reason" binding:"max=1000"`
}

type RespondAlternativeRequest struct {
	Accept *bool `json:"accept" binding:"required"`
}

type UpdateNotesRequest struct {
	Notes string `json:"notes" binding:"max=4000"`
}

type AppointmentFilters struct {
	Status   AppointmentStatus
	Modality Modality
	ClientID string
	Search   string
	Limit    int
	Offset   int
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// StringPtr is a convenience for optional text fields.
func StringPtr(s string) *string {
	return &s
}

// TimePtr is a convenience for optional timestamps.
func TimePtr(t time.Time) *time.Time {
	return &t
}
