package settings

import (
	"context"
	"errors"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/vip-booking/internal/model"
	"github.com/jwalitptl/vip-booking/internal/repository"
	"github.com/jwalitptl/vip-booking/pkg/logger"
	"github.com/jwalitptl/vip-booking/pkg/metrics"
)

const cacheKey = "appointment_settings"

// Provider exposes the agency's appointment settings. They are owned by the
// settings store and read-only for the booking core.
type Provider interface {
	Get(ctx context.Context) (*model.AppointmentSettings, error)
}

type Config struct {
	TTL      time.Duration
	Defaults model.AppointmentSettings
}

type Service struct {
	repo     repository.SettingsRepository
	cache    *cache.Cache
	defaults model.AppointmentSettings
	log      *logger.Logger
	metrics  *metrics.Metrics
}

func NewService(repo repository.SettingsRepository, cfg Config, log *logger.Logger, m *metrics.Metrics) *Service {
	if cfg.TTL <= 0 {
		cfg.TTL = time.Minute
	}
	if log == nil {
		log = logger.Nop()
	}
	if m == nil {
		m = metrics.NewNop()
	}
	return &Service{
		repo:     repo,
		cache:    cache.New(cfg.TTL, 2*cfg.TTL),
		defaults: cfg.Defaults,
		log:      log,
		metrics:  m,
	}
}

// Get returns a copy of the current settings. A missing settings row falls
// back to the configured defaults.
func (s *Service) Get(ctx context.Context) (*model.AppointmentSettings, error) {
	if cached, found := s.cache.Get(cacheKey); found {
		s.metrics.SettingsCacheLookups.WithLabelValues("hit").Inc()
		v := cached.(model.AppointmentSettings)
		return &v, nil
	}
	s.metrics.SettingsCacheLookups.WithLabelValues("miss").Inc()

	current, err := s.repo.Get(ctx)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		v := s.defaults
		current = &v
	case err != nil:
		return nil, err
	}

	if err := current.Validate(); err != nil {
		s.log.Warn("stored appointment settings are invalid, using defaults", "error", err.Error())
		v := s.defaults
		current = &v
	}

	s.cache.Set(cacheKey, *current, cache.DefaultExpiration)
	v := *current
	return &v, nil
}

// Invalidate drops the cached settings so the next read hits the store.
func (s *Service) Invalidate() {
	s.cache.Delete(cacheKey)
}

var _ Provider = (*Service)(nil)
