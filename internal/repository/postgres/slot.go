package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/vip-booking/internal/model"
	"github.com/jwalitptl/vip-booking/internal/repository"
)

const slotColumns = `id, slot_date, start_time, end_time, is_available, created_at, updated_at`

const liveAppointmentExists = `EXISTS (
	SELECT 1 FROM appointments a
	WHERE a.slot_id = s.id AND a.status <> 'cancelled'
)`

type slotRepository struct {
	ex sqlx.ExtContext
}

func (r *slotRepository) Create(ctx context.Context, slot *model.Slot) error {
	query := `
		INSERT INTO slots (` + slotColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.ex.ExecContext(ctx, query,
		slot.ID,
		slot.Date,
		slot.StartTime,
		slot.EndTime,
		slot.IsAvailable,
		slot.CreatedAt,
		slot.UpdatedAt,
	)
	return translate(err, "create slot")
}

func (r *slotRepository) Get(ctx context.Context, id string) (*model.Slot, error) {
	return r.get(ctx, `SELECT `+slotColumns+` FROM slots WHERE id = $1`, id)
}

func (r *slotRepository) GetForUpdate(ctx context.Context, id string) (*model.Slot, error) {
	return r.get(ctx, `SELECT `+slotColumns+` FROM slots WHERE id = $1 FOR UPDATE`, id)
}

func (r *slotRepository) get(ctx context.Context, query, id string) (*model.Slot, error) {
	var slot model.Slot
	if err := sqlx.GetContext(ctx, r.ex, &slot, query, id); err != nil {
		return nil, translate(err, "get slot")
	}
	normalizeSlot(&slot)
	return &slot, nil
}

func (r *slotRepository) LockDate(ctx context.Context, date time.Time) error {
	_, err := r.ex.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "slots:"+date.Format(model.DateLayout))
	return translate(err, "lock slot date")
}

func (r *slotRepository) ListByDate(ctx context.Context, date time.Time) ([]*model.Slot, error) {
	query := `
		SELECT ` + slotColumns + `
		FROM slots
		WHERE slot_date = $1
		ORDER BY start_time ASC
	`
	var slots []*model.Slot
	if err := sqlx.SelectContext(ctx, r.ex, &slots, query, date); err != nil {
		return nil, translate(err, "list slots by date")
	}
	for _, s := range slots {
		normalizeSlot(s)
	}
	return slots, nil
}

func (r *slotRepository) List(ctx context.Context, filters *model.SlotFilters) ([]*model.SlotView, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filters != nil {
		if filters.From != nil {
			conds = append(conds, "s.slot_date >= ?")
			args = append(args, *filters.From)
		}
		if filters.To != nil {
			conds = append(conds, "s.slot_date <= ?")
			args = append(args, *filters.To)
		}
		if filters.OnlyAvailable {
			conds = append(conds, "s.is_available")
		}
	}

	query := `
		SELECT s.id, s.slot_date, s.start_time, s.end_time, s.is_available,
			   s.created_at, s.updated_at, ` + liveAppointmentExists + ` AS is_booked
		FROM slots s`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY s.slot_date ASC, s.start_time ASC"

	var views []*model.SlotView
	if err := sqlx.SelectContext(ctx, r.ex, &views, r.ex.Rebind(query), args...); err != nil {
		return nil, translate(err, "list slots")
	}
	for _, v := range views {
		normalizeSlot(&v.Slot)
	}
	return views, nil
}

func (r *slotRepository) ListBookable(ctx context.Context, after time.Time, to *time.Time) ([]*model.Slot, error) {
	query := `
		SELECT s.id, s.slot_date, s.start_time, s.end_time, s.is_available, s.created_at, s.updated_at
		FROM slots s
		WHERE s.is_available
		AND s.slot_date > ?
		AND NOT ` + liveAppointmentExists
	args := []interface{}{after}
	if to != nil {
		query += " AND s.slot_date <= ?"
		args = append(args, *to)
	}
	query += " ORDER BY s.slot_date ASC, s.start_time ASC"

	var slots []*model.Slot
	if err := sqlx.SelectContext(ctx, r.ex, &slots, r.ex.Rebind(query), args...); err != nil {
		return nil, translate(err, "list bookable slots")
	}
	for _, s := range slots {
		normalizeSlot(s)
	}
	return slots, nil
}

func (r *slotRepository) SetAvailability(ctx context.Context, id string, available bool) error {
	query := `
		UPDATE slots
		SET is_available = $1, updated_at = NOW()
		WHERE id = $2
	`
	result, err := r.ex.ExecContext(ctx, query, available, id)
	if err != nil {
		return translate(err, "update slot availability")
	}
	return requireRow(result)
}

func (r *slotRepository) Delete(ctx context.Context, id string) error {
	result, err := r.ex.ExecContext(ctx, `DELETE FROM slots WHERE id = $1`, id)
	if err != nil {
		return translate(err, "delete slot")
	}
	return requireRow(result)
}

func (r *slotRepository) IsBooked(ctx context.Context, id string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE slot_id = $1 AND status <> 'cancelled'
		)
	`
	var booked bool
	if err := sqlx.GetContext(ctx, r.ex, &booked, query, id); err != nil {
		return false, translate(err, "check slot booking")
	}
	return booked, nil
}

func normalizeSlot(s *model.Slot) {
	s.Date = model.DateOf(s.Date)
}

var _ repository.SlotRepository = (*slotRepository)(nil)
