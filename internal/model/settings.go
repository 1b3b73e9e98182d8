package model

import "fmt"

// AppointmentSettings is owned by the settings store and read-only here.
type AppointmentSettings struct {
	DefaultDurationMinutes    int    `db:"default_duration_minutes" json:"default_duration_minutes" mapstructure:"default_duration_minutes"`
	OnlinePrice               int64  `db:"online_price" json:"online_price" mapstructure:"online_price"`
	InPersonPrice             int64  `db:"in_person_price" json:"in_person_price" mapstructure:"in_person_price"`
	FirstAppointmentFree      bool   `db:"first_appointment_free" json:"first_appointment_free" mapstructure:"first_appointment_free"`
	CancellationDeadlineHours int    `db:"cancellation_deadline_hours" json:"cancellation_deadline_hours" mapstructure:"cancellation_deadline_hours"`
	OnlineLocation            string `db:"online_location" json:"online_location" mapstructure:"online_location"`
	InPersonLocation          string `db:"in_person_location" json:"in_person_location" mapstructure:"in_person_location"`
}

// PriceFor returns the list price of a modality.
func (s *AppointmentSettings) PriceFor(m Modality) int64 {
	if m == ModalityOnline {
		return s.OnlinePrice
	}
	return s.InPersonPrice
}

// LocationFor returns the location text shown to the client.
func (s *AppointmentSettings) LocationFor(m Modality) string {
	if m == ModalityOnline {
		return s.OnlineLocation
	}
	return s.InPersonLocation
}

// Validate rejects settings that would break price == 0 <=> free.
func (s *AppointmentSettings) Validate() error {
	if s.OnlinePrice <= 0 {
		return fmt.Errorf("online price must be positive")
	}
	if s.InPersonPrice <= 0 {
		return fmt.Errorf("in-person price must be positive")
	}
	if s.DefaultDurationMinutes < 0 || s.CancellationDeadlineHours < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	return nil
}
