package event

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/vip-booking/internal/model"
	"github.com/jwalitptl/vip-booking/internal/repository"
	"github.com/jwalitptl/vip-booking/pkg/logger"
)

type EventService struct {
	log *logger.Logger
}

func NewEventService(log *logger.Logger) *EventService {
	if log == nil {
		log = logger.Nop()
	}
	return &EventService{log: log}
}

func (s *EventService) Emit(ctx context.Context, outbox repository.OutboxRepository, eventType string, payload model.AppointmentEvent) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	event := &model.OutboxEvent{
		ID:          uuid.New(),
		EventType:   eventType,
		AggregateID: payload.AppointmentID,
		Payload:     payloadJSON,
		Status:      model.OutboxStatusPending,
	}
	if err := outbox.Create(ctx, event); err != nil {
		return fmt.Errorf("failed to create outbox event: %w", err)
	}

	s.log.Debug("event queued",
		"event_id", event.ID.String(),
		"event_type", eventType,
		"appointment_id", payload.AppointmentID,
	)
	return nil
}

var _ Emitter = (*EventService)(nil)
