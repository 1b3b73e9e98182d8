package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/vip-booking/internal/model"
	"github.com/jwalitptl/vip-booking/internal/repository"
	"github.com/jwalitptl/vip-booking/internal/service/slot"
)

func setupMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	sqlxDB := sqlx.NewDb(db, "postgres")
	t.Cleanup(func() {
		sqlxDB.Close()
	})
	return NewStore(sqlxDB), mock
}

var slotRowColumns = []string{"id", "slot_date", "start_time", "end_time", "is_available", "created_at", "updated_at"}

func TestSlotRepository_CreateDuplicate(t *testing.T) {
	store, mock := setupMock(t)
	date := time.Date(2030, 5, 10, 0, 0, 0, 0, time.UTC)
	slot := &model.Slot{ID: model.SlotID(date, "09:00"), Date: date, StartTime: "09:00", EndTime: "10:00", IsAvailable: true}

	mock.ExpectExec("INSERT INTO slots").
		WithArgs(slot.ID, date, "09:00", "10:00", true, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnError(&pq.Error{Code: uniqueViolation})

	err := store.Slots().Create(context.Background(), slot)
	assert.ErrorIs(t, err, repository.ErrDuplicate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSlotRepository_GetNotFound(t *testing.T) {
	store, mock := setupMock(t)

	mock.ExpectQuery("SELECT (.+) FROM slots WHERE id = \\$1").
		WithArgs("slot-2030-05-10-0900").
		WillReturnError(sql.ErrNoRows)

	_, err := store.Slots().Get(context.Background(), "slot-2030-05-10-0900")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSlotRepository_GetForUpdateLocksRow(t *testing.T) {
	store, mock := setupMock(t)
	date := time.Date(2030, 5, 10, 0, 0, 0, 0, time.UTC)
	now := time.Now()

	mock.ExpectQuery("FROM slots WHERE id = \\$1 FOR UPDATE").
		WithArgs("slot-2030-05-10-0900").
		WillReturnRows(sqlmock.NewRows(slotRowColumns).
			AddRow("slot-2030-05-10-0900", date, "09:00", "10:00", true, now, now))

	slot, err := store.Slots().GetForUpdate(context.Background(), "slot-2030-05-10-0900")
	require.NoError(t, err)
	assert.Equal(t, "09:00", slot.StartTime)
	assert.True(t, slot.Date.Equal(date))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSlotRepository_ListBookable(t *testing.T) {
	store, mock := setupMock(t)
	today := time.Date(2030, 5, 1, 0, 0, 0, 0, time.UTC)
	to := today.AddDate(0, 0, 14)
	now := time.Now()

	mock.ExpectQuery("(?s)WHERE s.is_available\\s+AND s.slot_date > \\$1\\s+AND NOT EXISTS (.+) AND s.slot_date <= \\$2 ORDER BY s.slot_date ASC, s.start_time ASC").
		WithArgs(today, to).
		WillReturnRows(sqlmock.NewRows(slotRowColumns).
			AddRow("slot-2030-05-02-0900", today.AddDate(0, 0, 1), "09:00", "10:00", true, now, now).
			AddRow("slot-2030-05-02-1100", today.AddDate(0, 0, 1), "11:00", "12:00", true, now, now))

	slots, err := store.Slots().ListBookable(context.Background(), today, &to)
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, "slot-2030-05-02-0900", slots[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSlotRepository_DeleteMissing(t *testing.T) {
	store, mock := setupMock(t)

	mock.ExpectExec("DELETE FROM slots WHERE id = \\$1").
		WithArgs("slot-x").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Slots().Delete(context.Background(), "slot-x")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestAppointmentRepository_NextID(t *testing.T) {
	store, mock := setupMock(t)

	mock.ExpectQuery("SELECT nextval\\('appointment_seq'\\)").
		WillReturnRows(sqlmock.NewRows([]string{"nextval"}).AddRow(42))

	id, err := store.Appointments().NextID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "apt-42", id)
}

func TestAppointmentRepository_CreateLiveSlotConflict(t *testing.T) {
	store, mock := setupMock(t)

	mock.ExpectExec("INSERT INTO appointments").
		WillReturnError(&pq.Error{Code: uniqueViolation, Constraint: "uq_appointments_live_slot"})

	err := store.Appointments().Create(context.Background(), &model.Appointment{ID: "apt-1", SlotID: "slot-1"})
	assert.ErrorIs(t, err, repository.ErrDuplicate)
}

func TestAppointmentRepository_CreateSecondFreeAppointment(t *testing.T) {
	store, mock := setupMock(t)

	mock.ExpectExec("INSERT INTO appointments").
		WillReturnError(&pq.Error{Code: uniqueViolation, Constraint: freeAppointmentConstraint})

	err := store.Appointments().Create(context.Background(), &model.Appointment{ID: "apt-2", SlotID: "slot-2", IsFreeFirstAppointment: true})
	assert.ErrorIs(t, err, repository.ErrFreeAppointmentUsed)
	assert.NotErrorIs(t, err, repository.ErrDuplicate)
}

func TestHistoryRepository_GetForUpdateCreatesRowBeforeLocking(t *testing.T) {
	store, mock := setupMock(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO client_appointment_histories \\(client_id\\)\\s+VALUES \\(\\$1\\)\\s+ON CONFLICT \\(client_id\\) DO NOTHING").
		WithArgs("client-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("FROM client_appointment_histories WHERE client_id = \\$1 FOR UPDATE").
		WithArgs("client-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"client_id", "total_appointments", "completed_appointments", "cancelled_appointments",
			"no_show_appointments", "has_used_free_appointment", "last_appointment_date", "updated_at",
		}).AddRow("client-1", 0, 0, 0, 0, false, nil, now))
	mock.ExpectCommit()

	err := store.WithTx(context.Background(), func(tx repository.Store) error {
		h, err := tx.Histories().GetForUpdate(context.Background(), "client-1")
		if err != nil {
			return err
		}
		assert.Equal(t, "client-1", h.ClientID)
		assert.False(t, h.HasUsedFreeAppointment)
		assert.Zero(t, h.TotalAppointments)
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSlotRepository_LockDate(t *testing.T) {
	store, mock := setupMock(t)
	date := time.Date(2030, 5, 10, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec("SELECT pg_advisory_xact_lock\\(hashtext\\(\\$1\\)\\)").
		WithArgs("slots:2030-05-10").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.Slots().LockDate(context.Background(), date))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateSlot_LocksDateBeforeOverlapCheck(t *testing.T) {
	store, mock := setupMock(t)
	now := time.Date(2030, 5, 1, 8, 0, 0, 0, time.UTC)
	svc := slot.NewService(store, func() time.Time { return now }, nil, nil)

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs("slots:2030-05-10").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("FROM slots\\s+WHERE slot_date = \\$1").
		WillReturnRows(sqlmock.NewRows(slotRowColumns))
	mock.ExpectExec("INSERT INTO slots").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	created, err := svc.CreateSlot(context.Background(), "2030-05-10", "09:00", "10:00")
	require.NoError(t, err)
	assert.Equal(t, "slot-2030-05-10-0900", created.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProposalRepository_LatestOrdersBySequence(t *testing.T) {
	store, mock := setupMock(t)

	mock.ExpectQuery("ORDER BY proposed_at DESC, length\\(id\\) DESC, id DESC").
		WithArgs("apt-1").
		WillReturnError(sql.ErrNoRows)

	_, err := store.Proposals().Latest(context.Background(), "apt-1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepository_Update(t *testing.T) {
	t.Run("bumps version", func(t *testing.T) {
		store, mock := setupMock(t)
		a := &model.Appointment{ID: "apt-1", Status: model.AppointmentStatusConfirmed, Version: 3}

		mock.ExpectExec("(?s)UPDATE appointments (.+) WHERE id = \\$16 AND version = \\$17").
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, store.Appointments().Update(context.Background(), a))
		assert.Equal(t, int64(4), a.Version)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("stale version", func(t *testing.T) {
		store, mock := setupMock(t)
		a := &model.Appointment{ID: "apt-1", Version: 3}

		mock.ExpectExec("UPDATE appointments").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT EXISTS").WithArgs("apt-1").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		err := store.Appointments().Update(context.Background(), a)
		assert.ErrorIs(t, err, repository.ErrStaleVersion)
		assert.Equal(t, int64(3), a.Version)
	})

	t.Run("missing", func(t *testing.T) {
		store, mock := setupMock(t)

		mock.ExpectExec("UPDATE appointments").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT EXISTS").WithArgs("apt-9").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

		err := store.Appointments().Update(context.Background(), &model.Appointment{ID: "apt-9"})
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})
}

func TestAppointmentRepository_ListFilters(t *testing.T) {
	store, mock := setupMock(t)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM appointments WHERE status = \\$1 AND modality = \\$2 AND \\(id ILIKE \\$3").
		WithArgs(model.AppointmentStatusPending, model.ModalityOnline, "%visit%", "%visit%", "%visit%", "%visit%", "%visit%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery("FROM appointments WHERE (.+) ORDER BY created_at DESC, length\\(id\\) DESC, id DESC LIMIT \\$8").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	items, total, err := store.Appointments().List(context.Background(), &model.AppointmentFilters{
		Status:   model.AppointmentStatusPending,
		Modality: model.ModalityOnline,
		Search:   "visit",
		Limit:    20,
	})
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Zero(t, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepository_CountByStatus(t *testing.T) {
	store, mock := setupMock(t)

	mock.ExpectQuery("SELECT status, COUNT\\(\\*\\) FROM appointments GROUP BY status").
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow("pending", 2).
			AddRow("confirmed", 1))

	counts, err := store.Appointments().CountByStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, counts[model.AppointmentStatusPending])
	assert.Equal(t, 1, counts[model.AppointmentStatusConfirmed])
	assert.Equal(t, 0, counts[model.AppointmentStatusNoShow])
}

func TestStore_WithTx(t *testing.T) {
	t.Run("commits", func(t *testing.T) {
		store, mock := setupMock(t)

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE slots").WithArgs(false, "slot-1").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := store.WithTx(context.Background(), func(tx repository.Store) error {
			return tx.Slots().SetAvailability(context.Background(), "slot-1", false)
		})
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back on error", func(t *testing.T) {
		store, mock := setupMock(t)
		boom := errors.New("boom")

		mock.ExpectBegin()
		mock.ExpectRollback()

		err := store.WithTx(context.Background(), func(tx repository.Store) error {
			return boom
		})
		assert.ErrorIs(t, err, boom)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestOutboxRepository_CreateAssignsDefaults(t *testing.T) {
	store, mock := setupMock(t)
	evt := &model.OutboxEvent{EventType: model.EventAppointmentConfirmed, AggregateID: "apt-1", Payload: []byte(`{}`)}

	mock.ExpectExec("INSERT INTO outbox_events").
		WithArgs(sqlmock.AnyArg(), model.EventAppointmentConfirmed, "apt-1", []byte(`{}`), model.OutboxStatusPending, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Outbox().Create(context.Background(), evt))
	assert.NotEmpty(t, evt.ID.String())
	assert.Equal(t, model.OutboxStatusPending, evt.Status)
}
