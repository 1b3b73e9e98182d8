package model

import (
	"fmt"
	"strings"
	"time"
)

const (
	// DateLayout is the wire and storage format of calendar dates.
	DateLayout = "2006-01-02"
	// ClockLayout is the wire and storage format of slot boundaries.
	ClockLayout = "15:04"
)

// Slot is a bookable time window offered by the agency.
type Slot struct {
	ID          string    `db:"id" json:"id"`
	Date        time.Time `db:"slot_date" json:"date"`
	StartTime   string    `db:"start_time" json:"start_time"`
	EndTime     string    `db:"end_time" json:"end_time"`
	IsAvailable bool      `db:"is_available" json:"is_available"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// SlotView is the admin inventory projection with the derived booking state.
type SlotView struct {
	Slot
	IsBooked bool `db:"is_booked" json:"is_booked"`
}

type CreateSlotRequest struct {
	Date      string `json:"date" binding:"required,datetime=2006-01-02"`
	StartTime string `json:"start_time" binding:"required,hhmm"`
	EndTime   string `json:"end_time" binding:"required,hhmm"`
}

type SlotFilters struct {
	From          *time.Time
	To            *time.Time
	OnlyAvailable bool
}

// SlotID builds the persisted identifier slot-<date>-<HHmm>.
func SlotID(date time.Time, start string) string {
	return fmt.Sprintf("slot-%s-%s", date.Format(DateLayout), strings.ReplaceAll(start, ":", ""))
}

// ParseDate parses a calendar date and normalizes it to UTC midnight.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return d.UTC(), nil
}

// ParseClock validates a zero-padded HH:MM value. Slot times are compared as
// strings, so "9:00" is rejected.
func ParseClock(s string) (time.Time, error) {
	t, err := time.Parse(ClockLayout, s)
	if err != nil || len(s) != len(ClockLayout) {
		return time.Time{}, fmt.Errorf("invalid time %q: expected HH:MM", s)
	}
	return t, nil
}

// DateOf truncates t to its UTC calendar date.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Overlaps reports whether two slots on the same date intersect.
func (s *Slot) Overlaps(start, end string) bool {
	return start < s.EndTime && s.StartTime < end
}

// Before orders slots by (date, start time).
func (s *Slot) Before(other *Slot) bool {
	if !s.Date.Equal(other.Date) {
		return s.Date.Before(other.Date)
	}
	return s.StartTime < other.StartTime
}
