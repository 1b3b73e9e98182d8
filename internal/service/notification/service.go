package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jwalitptl/vip-booking/internal/email"
	"github.com/jwalitptl/vip-booking/internal/model"
	"github.com/jwalitptl/vip-booking/internal/service/settings"
	"github.com/jwalitptl/vip-booking/pkg/logger"
	"github.com/jwalitptl/vip-booking/pkg/messaging"
	"github.com/jwalitptl/vip-booking/pkg/metrics"
)

const sendTimeout = 30 * time.Second

type Config struct {
	AgentName  string
	AdminEmail string
	// Settings supplies the current locations shown on confirmations. The
	// fixed locations below are used when it is nil or fails.
	Settings         settings.Provider
	OnlineLocation   string
	InPersonLocation string
}

// Dispatcher turns published appointment events into e-mails.
type Dispatcher struct {
	mailer  email.Service
	cfg     Config
	log     *logger.Logger
	metrics *metrics.Metrics
}

func NewDispatcher(mailer email.Service, cfg Config, log *logger.Logger, m *metrics.Metrics) *Dispatcher {
	if cfg.AgentName == "" {
		cfg.AgentName = "Your agent"
	}
	if log == nil {
		log = logger.Nop()
	}
	if m == nil {
		m = metrics.NewNop()
	}
	return &Dispatcher{mailer: mailer, cfg: cfg, log: log, metrics: m}
}

// Start subscribes to every appointment channel. Messages are handled until
// ctx is done.
func (d *Dispatcher) Start(ctx context.Context, broker messaging.MessageBroker) error {
	if err := broker.Subscribe(ctx, messaging.AppointmentChannels, d.Handle); err != nil {
		return fmt.Errorf("failed to subscribe to appointment events: %w", err)
	}
	d.log.Info("notification dispatcher started", "channel", messaging.AppointmentChannels)
	return nil
}

type view struct {
	model.AppointmentEvent
	Price    string
	Agent    string
	Location string
}

// Handle sends the notices registered for the message's event type. Unknown
// event types are ignored.
func (d *Dispatcher) Handle(msg messaging.Message) error {
	eventType := messaging.EventType(msg.Channel)
	list, ok := notices[eventType]
	if !ok {
		return nil
	}

	var evt model.AppointmentEvent
	if err := json.Unmarshal(msg.Payload, &evt); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", eventType, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	v := view{
		AppointmentEvent: evt,
		Price:            formatPrice(evt.Price),
		Agent:            d.cfg.AgentName,
		Location:         d.location(ctx, evt.Modality),
	}
	if v.ClientName == "" {
		v.ClientName = evt.ClientID
	}

	var firstErr error
	for _, n := range list {
		to := evt.ClientEmail
		if n.to == toAdmin {
			to = d.cfg.AdminEmail
		}
		if to == "" {
			continue
		}

		err := d.send(ctx, to, n, v)
		d.metrics.NotificationsSent.WithLabelValues(eventType, metrics.Result(err)).Inc()
		if err != nil {
			d.log.Error(err, "notification failed", "event_type", eventType, "appointment_id", evt.AppointmentID)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		d.log.Debug("notification sent", "event_type", eventType, "appointment_id", evt.AppointmentID)
	}
	return firstErr
}

func (d *Dispatcher) send(ctx context.Context, to string, n notice, v view) error {
	var subject, body bytes.Buffer
	if err := n.subject.Execute(&subject, v); err != nil {
		return fmt.Errorf("failed to render subject: %w", err)
	}
	if err := n.body.Execute(&body, v); err != nil {
		return fmt.Errorf("failed to render body: %w", err)
	}
	return d.mailer.Send(ctx, email.Message{
		To:      to,
		Subject: subject.String(),
		Body:    body.String(),
	})
}

func (d *Dispatcher) location(ctx context.Context, m model.Modality) string {
	online, inPerson := d.cfg.OnlineLocation, d.cfg.InPersonLocation
	if d.cfg.Settings != nil {
		current, err := d.cfg.Settings.Get(ctx)
		if err != nil {
			d.log.Warn("settings unavailable, using configured locations", "error", err.Error())
		} else {
			online, inPerson = current.OnlineLocation, current.InPersonLocation
		}
	}
	if m == model.ModalityOnline {
		return online
	}
	return inPerson
}

// formatPrice renders minor units as a decimal amount.
func formatPrice(minor int64) string {
	return fmt.Sprintf("%d.%02d", minor/100, minor%100)
}
