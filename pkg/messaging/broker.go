package messaging

import (
	"context"
	"strings"
)

// Broker defines the interface for message brokers
type Broker interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	// Subscribe delivers payloads until ctx is done. Channels containing '*'
	// are treated as patterns.
	Subscribe(ctx context.Context, channel string) (<-chan Message, error)
	Close() error
}

// Message is a payload received on a channel.
type Message struct {
	Channel string
	Payload []byte
}

type MessageBroker interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Subscribe(ctx context.Context, topic string, handler func(Message) error) error
	Close() error
}

const appointmentPrefix = "appointments."

// AppointmentChannel returns the pub/sub channel carrying an event type.
func AppointmentChannel(eventType string) string {
	return appointmentPrefix + eventType
}

// AppointmentChannels matches every appointment event channel.
const AppointmentChannels = appointmentPrefix + "*"

// EventType extracts the event type from an appointment channel name.
func EventType(channel string) string {
	return strings.TrimPrefix(channel, appointmentPrefix)
}
