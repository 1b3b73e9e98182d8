package model

import "time"

// ClientAppointmentHistory holds per-client counters and the one-time free
// appointment entitlement.
type ClientAppointmentHistory struct {
	ClientID               string     `db:"client_id" json:"client_id"`
	TotalAppointments      int        `db:"total_appointments" json:"total_appointments"`
	CompletedAppointments  int        `db:"completed_appointments" json:"completed_appointments"`
	CancelledAppointments  int        `db:"cancelled_appointments" json:"cancelled_appointments"`
	NoShowAppointments     int        `db:"no_show_appointments" json:"no_show_appointments"`
	HasUsedFreeAppointment bool       `db:"has_used_free_appointment" json:"has_used_free_appointment"`
	LastAppointmentDate    *time.Time `db:"last_appointment_date" json:"last_appointment_date,omitempty"`
	UpdatedAt              time.Time  `db:"updated_at" json:"updated_at"`
}

func (h *ClientAppointmentHistory) Clone() *ClientAppointmentHistory {
	c := *h
	c.LastAppointmentDate = cloneTime(h.LastAppointmentDate)
	return &c
}
