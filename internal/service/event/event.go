package event

import (
	"context"

	"github.com/jwalitptl/vip-booking/internal/model"
	"github.com/jwalitptl/vip-booking/internal/repository"
)

// Emitter appends domain events to the outbox of the transaction that caused
// them. Publication happens later, in the worker.
type Emitter interface {
	Emit(ctx context.Context, outbox repository.OutboxRepository, eventType string, payload model.AppointmentEvent) error
}
