package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/vip-booking/internal/model"
	"github.com/jwalitptl/vip-booking/internal/repository"
)

const historyColumns = `client_id, total_appointments, completed_appointments, cancelled_appointments,
	no_show_appointments, has_used_free_appointment, last_appointment_date, updated_at`

type historyRepository struct {
	ex sqlx.ExtContext
}

func (r *historyRepository) Get(ctx context.Context, clientID string) (*model.ClientAppointmentHistory, error) {
	return r.get(ctx, `SELECT `+historyColumns+` FROM client_appointment_histories WHERE client_id = $1`, clientID)
}

// GetForUpdate creates the client's row when missing so that concurrent
// bookings of a new client serialise on the same row lock.
func (r *historyRepository) GetForUpdate(ctx context.Context, clientID string) (*model.ClientAppointmentHistory, error) {
	_, err := r.ex.ExecContext(ctx, `
		INSERT INTO client_appointment_histories (client_id)
		VALUES ($1)
		ON CONFLICT (client_id) DO NOTHING
	`, clientID)
	if err != nil {
		return nil, translate(err, "create client history")
	}
	return r.get(ctx, `SELECT `+historyColumns+` FROM client_appointment_histories WHERE client_id = $1 FOR UPDATE`, clientID)
}

func (r *historyRepository) get(ctx context.Context, query, clientID string) (*model.ClientAppointmentHistory, error) {
	var h model.ClientAppointmentHistory
	if err := sqlx.GetContext(ctx, r.ex, &h, query, clientID); err != nil {
		return nil, translate(err, "get client history")
	}
	return &h, nil
}

func (r *historyRepository) Upsert(ctx context.Context, h *model.ClientAppointmentHistory) error {
	query := `
		INSERT INTO client_appointment_histories (` + historyColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (client_id) DO UPDATE SET
			total_appointments = EXCLUDED.total_appointments,
			completed_appointments = EXCLUDED.completed_appointments,
			cancelled_appointments = EXCLUDED.cancelled_appointments,
			no_show_appointments = EXCLUDED.no_show_appointments,
			has_used_free_appointment = EXCLUDED.has_used_free_appointment,
			last_appointment_date = EXCLUDED.last_appointment_date,
			updated_at = EXCLUDED.updated_at
	`
	_, err := r.ex.ExecContext(ctx, query,
		h.ClientID,
		h.TotalAppointments,
		h.CompletedAppointments,
		h.CancelledAppointments,
		h.NoShowAppointments,
		h.HasUsedFreeAppointment,
		h.LastAppointmentDate,
		h.UpdatedAt,
	)
	return translate(err, "upsert client history")
}

type settingsRepository struct {
	ex sqlx.ExtContext
}

func (r *settingsRepository) Get(ctx context.Context) (*model.AppointmentSettings, error) {
	query := `
		SELECT default_duration_minutes, online_price, in_person_price, first_appointment_free,
			   cancellation_deadline_hours, online_location, in_person_location
		FROM appointment_settings
		WHERE id = 1
	`
	var s model.AppointmentSettings
	if err := sqlx.GetContext(ctx, r.ex, &s, query); err != nil {
		return nil, translate(err, "get appointment settings")
	}
	return &s, nil
}

var (
	_ repository.HistoryRepository  = (*historyRepository)(nil)
	_ repository.SettingsRepository = (*settingsRepository)(nil)
)
