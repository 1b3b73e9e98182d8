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
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/vip-booking/config"
	appointmentHandler "github.com/jwalitptl/vip-booking/internal/handler/appointment"
	authHandler "github.com/jwalitptl/vip-booking/internal/handler/auth"
	clientHandler "github.com/jwalitptl/vip-booking/internal/handler/client"
	"github.com/jwalitptl/vip-booking/internal/handler/health"
	settingsHandler "github.com/jwalitptl/vip-booking/internal/handler/settings"
	slotHandler "github.com/jwalitptl/vip-booking/internal/handler/slot"
	"github.com/jwalitptl/vip-booking/internal/middleware"
	"github.com/jwalitptl/vip-booking/internal/repository"
	"github.com/jwalitptl/vip-booking/internal/repository/memory"
	"github.com/jwalitptl/vip-booking/internal/repository/postgres"
	"github.com/jwalitptl/vip-booking/internal/router"
	appointmentService "github.com/jwalitptl/vip-booking/internal/service/appointment"
	authService "github.com/jwalitptl/vip-booking/internal/service/auth"
	bookingService "github.com/jwalitptl/vip-booking/internal/service/booking"
	eventService "github.com/jwalitptl/vip-booking/internal/service/event"
	historyService "github.com/jwalitptl/vip-booking/internal/service/history"
	negotiationService "github.com/jwalitptl/vip-booking/internal/service/negotiation"
	"github.com/jwalitptl/vip-booking/internal/service/payment"
	settingsService "github.com/jwalitptl/vip-booking/internal/service/settings"
	slotService "github.com/jwalitptl/vip-booking/internal/service/slot"
	"github.com/jwalitptl/vip-booking/pkg/auth"
	"github.com/jwalitptl/vip-booking/pkg/circuitbreaker"
	"github.com/jwalitptl/vip-booking/pkg/logger"
	"github.com/jwalitptl/vip-booking/pkg/metrics"
	"github.com/jwalitptl/vip-booking/pkg/security"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	lg := logger.NewLogger(&logger.Config{
		Level:  logger.ParseLevel(cfg.Log.Level),
		Pretty: cfg.Log.Pretty,
	})
	log.Logger = *lg.Zerolog()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(reg, "vip", "api")

	// Initialize storage
	var store repository.Store
	if cfg.UseDatabase() {
		db, err := postgres.NewDB(cfg.Database)
		if err != nil {
			lg.Fatal(err, "failed to connect to database")
		}
		defer db.Close()
		store = postgres.NewStore(db)
	} else {
		lg.Warn("no database host configured, using the in-memory store; data is lost on restart")
		store = memory.NewStore(memory.WithSettings(cfg.Appointment))
	}

	// Initialize services
	now := time.Now
	settingsSvc := settingsService.NewService(store.Settings(), settingsService.Config{
		TTL:      cfg.Settings.CacheTTL,
		Defaults: cfg.Appointment,
	}, lg, m)
	slotSvc := slotService.NewService(store, now, lg, m)
	historySvc := historyService.NewService(store, now)
	events := eventService.NewEventService(lg)
	machine := appointmentService.NewMachine(store, historySvc, events, now, lg, m)

	gateway, err := payment.NewGateway(cfg.Payment.Gateway, cfg.Payment.ReferencePrefix, circuitbreaker.Settings{
		MaxFailures: cfg.Payment.FailureLimit,
		Timeout:     cfg.Payment.OpenTimeout,
	}, m)
	if err != nil {
		lg.Fatal(err, "failed to configure payment gateway")
	}

	bookingSvc := bookingService.NewService(bookingService.Dependencies{
		Store:    store,
		Slots:    slotSvc,
		History:  historySvc,
		Settings: settingsSvc,
		Machine:  machine,
		Events:   events,
		Gateway:  gateway,
		Now:      now,
		Logger:   lg,
		Metrics:  m,
	})
	appointmentSvc := appointmentService.NewService(store, machine, now, lg)
	negotiationSvc := negotiationService.NewService(store, slotSvc, machine)

	jwtSvc, err := auth.NewJWTService(auth.Config{
		Secret: cfg.JWT.Secret,
		Issuer: cfg.JWT.Issuer,
		TTL:    time.Duration(cfg.JWT.ExpiryHours) * time.Hour,
		Leeway: cfg.JWT.Leeway,
	})
	if err != nil {
		lg.Fatal(err, "failed to configure jwt")
	}
	authSvc := authService.NewService(authService.Admin{
		Username:     cfg.Admin.Username,
		PasswordHash: cfg.Admin.PasswordHash,
	}, jwtSvc, security.NewBcryptHasher(bcrypt.DefaultCost), lg)

	// Setup router
	r := router.NewRouter(middleware.NewAuthMiddleware(jwtSvc), router.Handlers{
		Auth:        authHandler.NewHandler(authSvc),
		Slots:       slotHandler.NewHandler(slotSvc),
		Appointment: appointmentHandler.NewHandler(appointmentSvc, bookingSvc, negotiationSvc),
		Clients:     clientHandler.NewHandler(historySvc),
		Settings:    settingsHandler.NewHandler(settingsSvc),
		Health:      health.NewHandler(map[string]health.Pinger{"database": store}, reg),
	}, m, router.RouterConfig{
		Mode:           cfg.Server.Mode,
		RateLimit:      cfg.RateLimit.Enabled,
		RateRPS:        rate.Limit(cfg.RateLimit.RequestsPerSecond),
		RateBurst:      cfg.RateLimit.Burst,
		CORSOrigins:    cfg.Server.CORSOrigins,
		RequestTimeout: cfg.Server.RequestTimeout,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
	})

	srv := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        r.Handler(),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	// Start server
	go func() {
		lg.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal(err, "failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	lg.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		lg.Error(err, "server forced to shutdown")
		return
	}

	lg.Info("server exited properly")
}
