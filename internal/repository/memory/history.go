package memory

import (
	"context"

	"github.com/jwalitptl/vip-booking/internal/model"
	"github.com/jwalitptl/vip-booking/internal/repository"
)

type historyRepository struct {
	s *Store
}

func (r *historyRepository) Get(ctx context.Context, clientID string) (*model.ClientAppointmentHistory, error) {
	defer r.s.lock()()
	h, ok := r.s.data.histories[clientID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return h.Clone(), nil
}

func (r *historyRepository) GetForUpdate(ctx context.Context, clientID string) (*model.ClientAppointmentHistory, error) {
	return r.Get(ctx, clientID)
}

func (r *historyRepository) Upsert(ctx context.Context, history *model.ClientAppointmentHistory) error {
	defer r.s.lock()()
	r.s.data.histories[history.ClientID] = history.Clone()
	return nil
}

type settingsRepository struct {
	s *Store
}

func (r *settingsRepository) Get(ctx context.Context) (*model.AppointmentSettings, error) {
	defer r.s.lock()()
	if r.s.data.settings == nil {
		return nil, repository.ErrNotFound
	}
	v := *r.s.data.settings
	return &v, nil
}
