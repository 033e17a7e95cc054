package notify

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/roach88/intents/internal/canon"
	"github.com/roach88/intents/internal/settlement"
)

// TickSubject returns the subject a session's committed ticks are
// published on.
func TickSubject(sessionID string) string {
	return "intents.session." + sessionID + ".tick"
}

// Publisher implements engine.Publisher on a NATS connection.
type Publisher struct {
	conn *nats.Conn
}

// NewPublisher creates a publisher on conn.
func NewPublisher(conn *nats.Conn) *Publisher {
	return &Publisher{conn: conn}
}

// PublishTick sends the report as canonical JSON. Delivery is at most
// once; the settlement log is the durable record.
func (p *Publisher) PublishTick(ctx context.Context, report settlement.Report) error {
	data, err := canon.Marshal(report)
	if err != nil {
		return fmt.Errorf("publish tick %s/%d: %w", report.SessionID, report.Tick, err)
	}
	if err := p.conn.Publish(TickSubject(report.SessionID), data); err != nil {
		return fmt.Errorf("publish tick %s/%d: %w", report.SessionID, report.Tick, err)
	}
	return nil
}

// Nop discards every report. Used when no broker is configured.
type Nop struct{}

// PublishTick implements engine.Publisher.
func (Nop) PublishTick(context.Context, settlement.Report) error {
	return nil
}
