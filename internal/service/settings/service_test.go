package settings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/vip-booking/internal/model"
	"github.com/jwalitptl/vip-booking/internal/repository"
)

type mockSettingsRepository struct {
	mock.Mock
}

func (m *mockSettingsRepository) Get(ctx context.Context) (*model.AppointmentSettings, error) {
	args := m.Called(ctx)
	if s := args.Get(0); s != nil {
		return s.(*model.AppointmentSettings), args.Error(1)
	}
	return nil, args.Error(1)
}

var defaults = model.AppointmentSettings{
	DefaultDurationMinutes: 60,
	OnlinePrice:            5000,
	InPersonPrice:          8000,
	FirstAppointmentFree:   true,
	OnlineLocation:         "video call",
	InPersonLocation:       "agency office",
}

func TestGet_CachesStoredSettings(t *testing.T) {
	repo := new(mockSettingsRepository)
	stored := defaults
	stored.OnlinePrice = 4500
	repo.On("Get", mock.Anything).Return(&stored, nil).Once()

	svc := NewService(repo, Config{TTL: time.Minute, Defaults: defaults}, nil, nil)

	first, err := svc.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4500), first.OnlinePrice)

	first.OnlinePrice = 1
	second, err := svc.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4500), second.OnlinePrice, "callers get copies")

	repo.AssertExpectations(t)
}

func TestGet_FallsBackToDefaults(t *testing.T) {
	repo := new(mockSettingsRepository)
	repo.On("Get", mock.Anything).Return(nil, repository.ErrNotFound).Once()

	svc := NewService(repo, Config{Defaults: defaults}, nil, nil)

	got, err := svc.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, defaults, *got)
}

func TestGet_InvalidStoredSettingsUseDefaults(t *testing.T) {
	repo := new(mockSettingsRepository)
	repo.On("Get", mock.Anything).Return(&model.AppointmentSettings{OnlinePrice: 0, InPersonPrice: 100}, nil).Once()

	svc := NewService(repo, Config{Defaults: defaults}, nil, nil)

	got, err := svc.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, defaults.OnlinePrice, got.OnlinePrice)
}

func TestGet_StoreErrorNotCached(t *testing.T) {
	repo := new(mockSettingsRepository)
	repo.On("Get", mock.Anything).Return(nil, errors.New("connection refused")).Once()
	repo.On("Get", mock.Anything).Return(&defaults, nil).Once()

	svc := NewService(repo, Config{Defaults: defaults}, nil, nil)

	_, err := svc.Get(context.Background())
	require.Error(t, err)

	got, err := svc.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, defaults.InPersonPrice, got.InPersonPrice)
	repo.AssertExpectations(t)
}

func TestInvalidate(t *testing.T) {
	repo := new(mockSettingsRepository)
	repo.On("Get", mock.Anything).Return(&defaults, nil).Twice()

	svc := NewService(repo, Config{Defaults: defaults}, nil, nil)

	_, err := svc.Get(context.Background())
	require.NoError(t, err)
	svc.Invalidate()
	_, err = svc.Get(context.Background())
	require.NoError(t, err)

	repo.AssertExpectations(t)
}
