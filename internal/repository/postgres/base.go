package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/vip-booking/internal/repository"
)

// Store implements repository.Store over a *sqlx.DB, or over a *sqlx.Tx for
// the Store handed to a WithTx callback.
type Store struct {
	db *sqlx.DB
	ex sqlx.ExtContext
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db, ex: db}
}

func (s *Store) Slots() repository.SlotRepository               { return &slotRepository{s.ex} }
func (s *Store) Appointments() repository.AppointmentRepository { return &appointmentRepository{s.ex} }
func (s *Store) Proposals() repository.ProposalRepository       { return &proposalRepository{s.ex} }
func (s *Store) Histories() repository.HistoryRepository        { return &historyRepository{s.ex} }
func (s *Store) Settings() repository.SettingsRepository        { return &settingsRepository{s.ex} }
func (s *Store) Outbox() repository.OutboxRepository            { return &outboxRepository{s.ex} }

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// WithTx executes a function within a transaction
func (s *Store) WithTx(ctx context.Context, fn func(repository.Store) error) error {
	if _, ok := s.ex.(*sqlx.Tx); ok {
		return fn(s)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&Store{db: s.db, ex: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

var _ repository.Store = (*Store)(nil)
