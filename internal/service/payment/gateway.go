package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/jwalitptl/vip-booking/pkg/circuitbreaker"
	"github.com/jwalitptl/vip-booking/pkg/metrics"
)

const GatewayManual = "manual"

// ErrDeclined is returned by gateways that refuse a charge. It does not count
// against the circuit breaker.
var ErrDeclined = errors.New("payment declined")

type ChargeRequest struct {
	AppointmentID string
	ClientID      string
	Amount        int64
}

// Gateway charges a client and returns the external payment reference.
type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (string, error)
}

// ManualGateway accepts every charge and issues a local reference. Money is
// collected out of band and reconciled by the agency.
type ManualGateway struct {
	prefix string
}

func NewManualGateway(prefix string) *ManualGateway {
	if prefix == "" {
		prefix = "MAN"
	}
	return &ManualGateway{prefix: prefix}
}

func (g *ManualGateway) Charge(ctx context.Context, req ChargeRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if req.Amount <= 0 {
		return "", fmt.Errorf("%w: amount must be positive", ErrDeclined)
	}
	ref := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return fmt.Sprintf("%s-%s", g.prefix, ref[:16]), nil
}

// GuardedGateway trips a circuit breaker after repeated gateway failures so
// clients get a fast error instead of waiting on a dead provider.
type GuardedGateway struct {
	name    string
	inner   Gateway
	breaker *circuitbreaker.CircuitBreaker
	metrics *metrics.Metrics
}

func NewGuardedGateway(name string, inner Gateway, breaker *circuitbreaker.CircuitBreaker, m *metrics.Metrics) *GuardedGateway {
	if m == nil {
		m = metrics.NewNop()
	}
	return &GuardedGateway{name: name, inner: inner, breaker: breaker, metrics: m}
}

func (g *GuardedGateway) Charge(ctx context.Context, req ChargeRequest) (string, error) {
	var ref string
	err := g.breaker.Execute(func() error {
		var err error
		ref, err = g.inner.Charge(ctx, req)
		return err
	})
	g.metrics.PaymentCharges.WithLabelValues(g.name, metrics.Result(err)).Inc()
	if err != nil {
		return "", err
	}
	return ref, nil
}

// NewGateway builds the configured gateway behind a circuit breaker.
func NewGateway(name, referencePrefix string, breaker circuitbreaker.Settings, m *metrics.Metrics) (Gateway, error) {
	var inner Gateway
	switch name {
	case "", GatewayManual:
		name = GatewayManual
		inner = NewManualGateway(referencePrefix)
	default:
		return nil, fmt.Errorf("unknown payment gateway %q", name)
	}

	if breaker.Name == "" {
		breaker.Name = "payment-" + name
	}
	if breaker.IsFailure == nil {
		breaker.IsFailure = func(err error) bool {
			return err != nil && !errors.Is(err, ErrDeclined)
		}
	}
	return NewGuardedGateway(name, inner, circuitbreaker.NewCircuitBreaker(breaker), m), nil
}
