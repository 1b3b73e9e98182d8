package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/vip-booking/internal/model"
	"github.com/jwalitptl/vip-booking/internal/repository"
)

const appointmentColumns = `id, slot_id, slot_date, start_time, end_time,
	client_id, client_name, client_email, client_phone,
	modality, status, payment_status, payment_reference, price, is_free_first_appointment,
	subject, message, admin_response, admin_notes, cancellation_reason,
	created_at, updated_at, paid_at, confirmed_at, completed_at, cancelled_at, version`

type appointmentRepository struct {
	ex sqlx.ExtContext
}

func (r *appointmentRepository) NextID(ctx context.Context) (string, error) {
	var seq int64
	if err := sqlx.GetContext(ctx, r.ex, &seq, `SELECT nextval('appointment_seq')`); err != nil {
		return "", translate(err, "allocate appointment id")
	}
	return fmt.Sprintf("apt-%d", seq), nil
}

func (r *appointmentRepository) Create(ctx context.Context, a *model.Appointment) error {
	query := `
		INSERT INTO appointments (` + appointmentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27)
	`
	_, err := r.ex.ExecContext(ctx, query,
		a.ID,
		a.SlotID,
		a.Date,
		a.StartTime,
		a.EndTime,
		a.ClientID,
		a.ClientName,
		a.ClientEmail,
		a.ClientPhone,
		a.Modality,
		a.Status,
		a.PaymentStatus,
		a.PaymentReference,
		a.Price,
		a.IsFreeFirstAppointment,
		a.Subject,
		a.Message,
		a.AdminResponse,
		a.AdminNotes,
		a.CancellationReason,
		a.CreatedAt,
		a.UpdatedAt,
		a.PaidAt,
		a.ConfirmedAt,
		a.CompletedAt,
		a.CancelledAt,
		a.Version,
	)
	return translate(err, "create appointment")
}

func (r *appointmentRepository) Get(ctx context.Context, id string) (*model.Appointment, error) {
	return r.get(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id)
}

func (r *appointmentRepository) GetForUpdate(ctx context.Context, id string) (*model.Appointment, error) {
	return r.get(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1 FOR UPDATE`, id)
}

func (r *appointmentRepository) get(ctx context.Context, query, id string) (*model.Appointment, error) {
	var a model.Appointment
	if err := sqlx.GetContext(ctx, r.ex, &a, query, id); err != nil {
		return nil, translate(err, "get appointment")
	}
	a.Date = model.DateOf(a.Date)
	return &a, nil
}

func (r *appointmentRepository) Update(ctx context.Context, a *model.Appointment) error {
	query := `
		UPDATE appointments
		SET slot_id = $1, slot_date = $2, start_time = $3, end_time = $4,
			status = $5, payment_status = $6, payment_reference = $7,
			admin_response = $8, admin_notes = $9, cancellation_reason = $10,
			updated_at = $11, paid_at = $12, confirmed_at = $13,
			completed_at = $14, cancelled_at = $15,
			version = version + 1
		WHERE id = $16 AND version = $17
	`
	result, err := r.ex.ExecContext(ctx, query,
		a.SlotID,
		a.Date,
		a.StartTime,
		a.EndTime,
		a.Status,
		a.PaymentStatus,
		a.PaymentReference,
		a.AdminResponse,
		a.AdminNotes,
		a.CancellationReason,
		a.UpdatedAt,
		a.PaidAt,
		a.ConfirmedAt,
		a.CompletedAt,
		a.CancelledAt,
		a.ID,
		a.Version,
	)
	if err != nil {
		return translate(err, "update appointment")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		var exists bool
		if err := sqlx.GetContext(ctx, r.ex, &exists, `SELECT EXISTS (SELECT 1 FROM appointments WHERE id = $1)`, a.ID); err != nil {
			return translate(err, "check appointment")
		}
		if !exists {
			return repository.ErrNotFound
		}
		return repository.ErrStaleVersion
	}

	a.Version++
	return nil
}

func (r *appointmentRepository) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, int, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filters == nil {
		filters = &model.AppointmentFilters{}
	}
	if filters.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, filters.Status)
	}
	if filters.Modality != "" {
		conds = append(conds, "modality = ?")
		args = append(args, filters.Modality)
	}
	if filters.ClientID != "" {
		conds = append(conds, "client_id = ?")
		args = append(args, filters.ClientID)
	}
	if search := strings.TrimSpace(filters.Search); search != "" {
		conds = append(conds, "(id ILIKE ? OR subject ILIKE ? OR client_name ILIKE ? OR client_email ILIKE ? OR client_id ILIKE ?)")
		pattern := "%" + search + "%"
		args = append(args, pattern, pattern, pattern, pattern, pattern)
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	countQuery := r.ex.Rebind(`SELECT COUNT(*) FROM appointments` + where)
	if err := sqlx.GetContext(ctx, r.ex, &total, countQuery, args...); err != nil {
		return nil, 0, translate(err, "count appointments")
	}

	query := `SELECT ` + appointmentColumns + ` FROM appointments` + where +
		` ORDER BY created_at DESC, length(id) DESC, id DESC`
	if filters.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filters.Limit)
	}
	if filters.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filters.Offset)
	}

	var appointments []*model.Appointment
	if err := sqlx.SelectContext(ctx, r.ex, &appointments, r.ex.Rebind(query), args...); err != nil {
		return nil, 0, translate(err, "list appointments")
	}
	for _, a := range appointments {
		a.Date = model.DateOf(a.Date)
	}
	return appointments, total, nil
}

func (r *appointmentRepository) CountByStatus(ctx context.Context) (model.StatusCounts, error) {
	rows, err := r.ex.QueryxContext(ctx, `SELECT status, COUNT(*) FROM appointments GROUP BY status`)
	if err != nil {
		return nil, translate(err, "count appointments by status")
	}
	defer rows.Close()

	counts := make(model.StatusCounts, len(model.AppointmentStatuses))
	for _, st := range model.AppointmentStatuses {
		counts[st] = 0
	}
	for rows.Next() {
		var (
			status model.AppointmentStatus
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

var _ repository.AppointmentRepository = (*appointmentRepository)(nil)
