package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/vip-booking/internal/model"
	"github.com/jwalitptl/vip-booking/internal/repository"
)

type outboxRepository struct {
	s *Store
}

func (r *outboxRepository) Create(ctx context.Context, event *model.OutboxEvent) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	if event.Payload == nil {
		return fmt.Errorf("event payload cannot be nil")
	}
	defer r.s.lock()()

	now := r.s.now().UTC()
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	event.Status = model.OutboxStatusPending
	event.CreatedAt = now
	event.UpdatedAt = now

	v := *event
	r.s.data.outbox = append(r.s.data.outbox, &v)
	return nil
}

func (r *outboxRepository) GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	defer r.s.lock()()
	now := r.s.now()
	var events []*model.OutboxEvent
	for _, e := range r.s.data.outbox {
		if len(events) >= limit {
			break
		}
		if e.Status != model.OutboxStatusPending && e.Status != model.OutboxStatusFailed {
			continue
		}
		if e.Status == model.OutboxStatusFailed && e.RetryAt == nil {
			continue
		}
		if e.RetryAt != nil && e.RetryAt.After(now) {
			continue
		}
		v := *e
		events = append(events, &v)
	}
	return events, nil
}

func (r *outboxRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errorMessage *string, retryAt *time.Time) error {
	defer r.s.lock()()
	for _, e := range r.s.data.outbox {
		if e.ID != id {
			continue
		}
		now := r.s.now().UTC()
		e.Status = status
		e.ErrorMessage = errorMessage
		e.RetryAt = retryAt
		e.UpdatedAt = now
		if status == model.OutboxStatusFailed {
			e.RetryCount++
		}
		if status == model.OutboxStatusProcessed {
			e.ProcessedAt = &now
		}
		return nil
	}
	return repository.ErrNotFound
}

func (r *outboxRepository) MoveToDeadLetter(ctx context.Context, evt *model.OutboxEvent) error {
	defer r.s.lock()()
	v := *evt
	r.s.data.deadLetters = append(r.s.data.deadLetters, &v)
	for i, e := range r.s.data.outbox {
		if e.ID == evt.ID {
			r.s.data.outbox = append(r.s.data.outbox[:i], r.s.data.outbox[i+1:]...)
			break
		}
	}
	return nil
}

func (r *outboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	defer r.s.lock()()
	var deleted int64
	kept := r.s.data.outbox[:0]
	for _, e := range r.s.data.outbox {
		if e.Status == model.OutboxStatusProcessed && e.ProcessedAt != nil && e.ProcessedAt.Before(before) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	r.s.data.outbox = kept
	return deleted, nil
}
