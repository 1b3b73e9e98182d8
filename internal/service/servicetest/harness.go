// Package servicetest wires the booking services on the in-memory store with a
// controllable clock for package and handler tests.
package servicetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/vip-booking/internal/model"
	"github.com/jwalitptl/vip-booking/internal/repository/memory"
	"github.com/jwalitptl/vip-booking/internal/service/appointment"
	"github.com/jwalitptl/vip-booking/internal/service/booking"
	"github.com/jwalitptl/vip-booking/internal/service/event"
	"github.com/jwalitptl/vip-booking/internal/service/history"
	"github.com/jwalitptl/vip-booking/internal/service/negotiation"
	"github.com/jwalitptl/vip-booking/internal/service/payment"
	"github.com/jwalitptl/vip-booking/internal/service/settings"
	"github.com/jwalitptl/vip-booking/internal/service/slot"
	"github.com/jwalitptl/vip-booking/pkg/logger"
	"github.com/jwalitptl/vip-booking/pkg/metrics"
)

// Start is the harness clock's initial reading; "today" is 2030-05-01.
var Start = time.Date(2030, 5, 1, 10, 0, 0, 0, time.UTC)

// DefaultSettings mirrors config.yaml.
var DefaultSettings = model.AppointmentSettings{
	DefaultDurationMinutes:    60,
	OnlinePrice:               50000,
	InPersonPrice:             75000,
	FirstAppointmentFree:      true,
	CancellationDeadlineHours: 24,
	OnlineLocation:            "Video call link sent by e-mail",
	InPersonLocation:          "Agency office",
}

type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type Harness struct {
	Store        *memory.Store
	Clock        *Clock
	Metrics      *metrics.Metrics
	Slots        *slot.Service
	History      *history.Service
	Settings     *settings.Service
	Machine      *appointment.Machine
	Appointments *appointment.Service
	Booking      *booking.Service
	Negotiation  *negotiation.Service
}

type Option func(*options)

type options struct {
	settings model.AppointmentSettings
	gateway  payment.Gateway
}

func WithSettings(s model.AppointmentSettings) Option {
	return func(o *options) { o.settings = s }
}

func WithGateway(g payment.Gateway) Option {
	return func(o *options) { o.gateway = g }
}

func New(opts ...Option) *Harness {
	o := &options{settings: DefaultSettings, gateway: payment.NewManualGateway("TEST")}
	for _, opt := range opts {
		opt(o)
	}

	clock := &Clock{now: Start}
	store := memory.NewStore(memory.WithClock(clock.Now), memory.WithSettings(o.settings))
	log := logger.Nop()
	m := metrics.NewNop()

	slots := slot.NewService(store, clock.Now, log, m)
	hist := history.NewService(store, clock.Now)
	cfg := settings.NewService(store.Settings(), settings.Config{TTL: time.Minute, Defaults: o.settings}, log, m)
	events := event.NewEventService(log)
	machine := appointment.NewMachine(store, hist, events, clock.Now, log, m)

	return &Harness{
		Store:        store,
		Clock:        clock,
		Metrics:      m,
		Slots:        slots,
		History:      hist,
		Settings:     cfg,
		Machine:      machine,
		Appointments: appointment.NewService(store, machine, clock.Now, log),
		Booking: booking.NewService(booking.Dependencies{
			Store:    store,
			Slots:    slots,
			History:  hist,
			Settings: cfg,
			Machine:  machine,
			Events:   events,
			Gateway:  o.gateway,
			Now:      clock.Now,
			Logger:   log,
			Metrics:  m,
		}),
		Negotiation: negotiation.NewService(store, slots, machine),
	}
}

// Slot creates an available slot or fails the test.
func (h *Harness) Slot(t testing.TB, date, start, end string) *model.Slot {
	t.Helper()
	s, err := h.Slots.CreateSlot(context.Background(), date, start, end)
	require.NoError(t, err)
	return s
}

// Book submits a request or fails the test.
func (h *Harness) Book(t testing.TB, clientID, slotID string, modality model.Modality) *model.Appointment {
	t.Helper()
	a, err := h.Booking.SubmitRequest(context.Background(), clientID, &model.CreateAppointmentRequest{
		SlotID:   slotID,
		Modality: modality,
		Subject:  "Viewing",
	})
	require.NoError(t, err)
	return a
}

// UseFreeAppointment marks the client's entitlement as consumed.
func (h *Harness) UseFreeAppointment(t testing.TB, clientID string) {
	t.Helper()
	require.NoError(t, h.Store.Histories().Upsert(context.Background(), &model.ClientAppointmentHistory{
		ClientID:               clientID,
		TotalAppointments:      1,
		HasUsedFreeAppointment: true,
	}))
}

// EventTypes lists the outbox event types written so far, oldest first.
func (h *Harness) EventTypes() []string {
	var types []string
	for _, e := range h.Store.OutboxEvents() {
		types = append(types, e.EventType)
	}
	return types
}
