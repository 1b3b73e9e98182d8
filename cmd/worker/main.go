package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/vip-booking/config"
	"github.com/jwalitptl/vip-booking/internal/email"
	"github.com/jwalitptl/vip-booking/internal/repository/postgres"
	"github.com/jwalitptl/vip-booking/internal/service/notification"
	settingsService "github.com/jwalitptl/vip-booking/internal/service/settings"
	"github.com/jwalitptl/vip-booking/pkg/logger"
	"github.com/jwalitptl/vip-booking/pkg/messaging"
	"github.com/jwalitptl/vip-booking/pkg/messaging/redis"
	"github.com/jwalitptl/vip-booking/pkg/metrics"
	"github.com/jwalitptl/vip-booking/pkg/worker"
)

type pinger interface {
	Ping(ctx context.Context) error
}

func setupHealthCheck(lg *logger.Logger, port int, reg *prometheus.Registry, deps map[string]pinger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		for name, dep := range deps {
			if err := dep.Ping(ctx); err != nil {
				lg.Warn("readiness check failed", "dependency", name, "error", err.Error())
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/health/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error(err, "Health check server failed")
			os.Exit(1)
		}
	}()
	return srv
}

func main() {
	// Load config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	lg := logger.NewLogger(&logger.Config{
		Level:  logger.ParseLevel(cfg.Log.Level),
		Pretty: cfg.Log.Pretty,
	})
	log.Logger = *lg.Zerolog()

	if !cfg.UseDatabase() {
		lg.Fatal(errors.New("database host is not configured"), "The worker reads the outbox from Postgres")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(reg, "vip", "worker")

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		lg.Fatal(err, "Failed to connect to database")
	}
	defer db.Close()
	store := postgres.NewStore(db)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Redis broker
	broker, err := redis.NewRedisBroker(ctx, cfg.Redis.ToBrokerConfig(), lg.Zerolog().With().Str("component", "redis").Logger())
	if err != nil {
		lg.Fatal(err, "Failed to create Redis broker")
	}
	defer broker.Close()

	processor, err := worker.NewOutboxProcessor(store, broker, cfg.Outbox.ToWorkerConfig(), lg, m)
	if err != nil {
		lg.Fatal(err, "Failed to create outbox processor")
	}

	if cfg.Notification.Enabled {
		var mailer email.Service
		if cfg.SMTP.Host != "" {
			mailer = email.NewSMTPService(email.SMTPConfig{
				Host:     cfg.SMTP.Host,
				Port:     cfg.SMTP.Port,
				Username: cfg.SMTP.Username,
				Password: cfg.SMTP.Password,
				From:     cfg.SMTP.From,
			})
		} else {
			lg.Warn("No SMTP host configured, notifications are logged only")
			mailer = email.NewLogService(lg)
		}

		settingsSvc := settingsService.NewService(store.Settings(), settingsService.Config{
			TTL:      cfg.Settings.CacheTTL,
			Defaults: cfg.Appointment,
		}, lg, m)
		dispatcher := notification.NewDispatcher(mailer, notification.Config{
			AgentName:        cfg.Notification.AgentName,
			AdminEmail:       cfg.Notification.AdminEmail,
			Settings:         settingsSvc,
			OnlineLocation:   cfg.Appointment.OnlineLocation,
			InPersonLocation: cfg.Appointment.InPersonLocation,
		}, lg, m)
		adapter := messaging.NewBrokerAdapter(broker, lg.Zerolog().With().Str("component", "notification").Logger())
		if err := dispatcher.Start(ctx, adapter); err != nil {
			lg.Fatal(err, "Failed to start notification dispatcher")
		}
	}

	health := setupHealthCheck(lg, cfg.Worker.HealthPort, reg, map[string]pinger{
		"database": store,
		"redis":    broker,
	})

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		lg.Info("Shutting down...")
		cancel()
	}()

	processor.Start(ctx)

	shutdownCtx, stop := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer stop()
	_ = health.Shutdown(shutdownCtx)
}
