/*
Package events publishes calculation lifecycle events.

PURPOSE:
  Downstream systems (payroll export, notifications) learn about new
  calculation records without polling. Only newly created records are
  published; idempotent replays are not.

DELIVERY:
  At-most-once, core NATS publish. The record is the source of truth;
  a lost event is recovered by listing calculations.

SEE ALSO:
  - payroll.Calculator: calls PublishCalculated after a successful create
*/
package events

import (
	"context"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/warp/labor-engine/payroll"
)

// DefaultSubject is used when no subject is configured.
const DefaultSubject = "labor.calculations.created"

// TypeCalculationCreated identifies the event payload.
const TypeCalculationCreated = "calculation.created"

// CalculationCreated is the event payload. It carries identifiers and
// totals; consumers fetch the full record when they need the breakdown.
type CalculationCreated struct {
	Type          string               `json:"type"`
	TenantID      string               `json:"tenant_id"`
	CalculationID string               `json:"calculation_id"`
	EmployeeID    string               `json:"employee_id"`
	Period        string               `json:"period"`
	Totals        payroll.RecordTotals `json:"totals"`
	CreatedBy     string               `json:"created_by"`
	CreatedAt     time.Time            `json:"created_at"`
}

// NewCalculationCreated builds the event for rec.
func NewCalculationCreated(rec payroll.CalculationRecord) CalculationCreated {
	return CalculationCreated{
		Type:          TypeCalculationCreated,
		TenantID:      rec.TenantID,
		CalculationID: rec.ID,
		EmployeeID:    rec.EmployeeID,
		Period:        rec.Period,
		Totals:        rec.Results.Totals,
		CreatedBy:     rec.CreatedBy,
		CreatedAt:     rec.CreatedAt,
	}
}

// =============================================================================
// NATS
// =============================================================================

// Conn is the subset of *nats.Conn the publisher needs.
type Conn interface {
	Publish(subject string, data []byte) error
	Close()
}

// NATSPublisher publishes CalculationCreated events. The tenant is
// appended to the subject so consumers can subscribe per tenant with
// "<subject>.*" or "<subject>.<tenant>".
type NATSPublisher struct {
	conn    Conn
	subject string
}

var _ payroll.Publisher = (*NATSPublisher)(nil)

// Connect dials url and returns a publisher on subject.
func Connect(url, subject string, logger zerolog.Logger) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("labor-engine"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info().Str("url", nc.ConnectedUrl()).Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	return NewNATSPublisher(nc, subject), nil
}

// NewNATSPublisher wraps an existing connection.
func NewNATSPublisher(conn Conn, subject string) *NATSPublisher {
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATSPublisher{conn: conn, subject: subject}
}

func (p *NATSPublisher) Subject(tenantID string) string {
	return p.subject + "." + tenantID
}

func (p *NATSPublisher) PublishCalculated(ctx context.Context, rec payroll.CalculationRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(NewCalculationCreated(rec))
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	if err := p.conn.Publish(p.Subject(rec.TenantID), data); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

func (p *NATSPublisher) Close() { p.conn.Close() }

// =============================================================================
// NOOP
// =============================================================================

// Noop discards events. Used when NATS is not configured.
type Noop struct{}

func (Noop) PublishCalculated(context.Context, payroll.CalculationRecord) error { return nil }
