// Package memory is an in-process implementation of repository.Store used by
// tests and by the API when no database is configured.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/jwalitptl/vip-booking/internal/model"
	"github.com/jwalitptl/vip-booking/internal/repository"
)

type data struct {
	slots        map[string]*model.Slot
	appointments map[string]*model.Appointment
	proposals    []*model.AlternativeSlotProposal
	histories    map[string]*model.ClientAppointmentHistory
	settings     *model.AppointmentSettings
	outbox       []*model.OutboxEvent
	deadLetters  []*model.OutboxEvent
	aptSeq       int64
	altSeq       int64
}

func newData() *data {
	return &data{
		slots:        make(map[string]*model.Slot),
		appointments: make(map[string]*model.Appointment),
		histories:    make(map[string]*model.ClientAppointmentHistory),
	}
}

func (d *data) clone() *data {
	c := &data{
		slots:        make(map[string]*model.Slot, len(d.slots)),
		appointments: make(map[string]*model.Appointment, len(d.appointments)),
		proposals:    make([]*model.AlternativeSlotProposal, 0, len(d.proposals)),
		histories:    make(map[string]*model.ClientAppointmentHistory, len(d.histories)),
		outbox:       make([]*model.OutboxEvent, 0, len(d.outbox)),
		deadLetters:  append([]*model.OutboxEvent(nil), d.deadLetters...),
		aptSeq:       d.aptSeq,
		altSeq:       d.altSeq,
	}
	for id, s := range d.slots {
		v := *s
		c.slots[id] = &v
	}
	for id, a := range d.appointments {
		c.appointments[id] = a.Clone()
	}
	for _, p := range d.proposals {
		c.proposals = append(c.proposals, p.Clone())
	}
	for id, h := range d.histories {
		c.histories[id] = h.Clone()
	}
	for _, e := range d.outbox {
		v := *e
		c.outbox = append(c.outbox, &v)
	}
	if d.settings != nil {
		v := *d.settings
		c.settings = &v
	}
	return c
}

// Store keeps all state behind one mutex. A transaction holds the mutex for
// its whole duration and works on a copy that replaces the live state only
// when the callback succeeds.
type Store struct {
	mu   *sync.Mutex
	data *data
	inTx bool
	now  func() time.Time
}

type Option func(*Store)

// WithClock overrides the clock used for outbox retry scheduling.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithSettings seeds the settings row.
func WithSettings(settings model.AppointmentSettings) Option {
	return func(s *Store) {
		s.data.settings = &settings
	}
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		mu:   &sync.Mutex{},
		data: newData(),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) Slots() repository.SlotRepository               { return &slotRepository{s} }
func (s *Store) Appointments() repository.AppointmentRepository { return &appointmentRepository{s} }
func (s *Store) Proposals() repository.ProposalRepository       { return &proposalRepository{s} }
func (s *Store) Histories() repository.HistoryRepository        { return &historyRepository{s} }
func (s *Store) Settings() repository.SettingsRepository        { return &settingsRepository{s} }
func (s *Store) Outbox() repository.OutboxRepository            { return &outboxRepository{s} }

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) WithTx(ctx context.Context, fn func(repository.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Store{mu: s.mu, data: s.data.clone(), inTx: true, now: s.now}
	if err := fn(tx); err != nil {
		return err
	}
	*s.data = *tx.data
	return nil
}

// OutboxEvents returns a snapshot of the outbox, oldest first.
func (s *Store) OutboxEvents() []*model.OutboxEvent {
	defer s.lock()()
	events := make([]*model.OutboxEvent, 0, len(s.data.outbox))
	for _, e := range s.data.outbox {
		v := *e
		events = append(events, &v)
	}
	return events
}

// DeadLetters returns events that exhausted their retries.
func (s *Store) DeadLetters() []*model.OutboxEvent {
	defer s.lock()()
	return append([]*model.OutboxEvent(nil), s.data.deadLetters...)
}

func (s *Store) isBooked(slotID string) bool {
	for _, a := range s.data.appointments {
		if a.SlotID == slotID && a.Status != model.AppointmentStatusCancelled {
			return true
		}
	}
	return false
}

var _ repository.Store = (*Store)(nil)
