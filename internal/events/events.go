// README: Domain events emitted after booking and bid state changes commit.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"freightbid/internal/metrics"
	"freightbid/internal/types"
)

type Type string

const (
	BookingCreated   Type = "booking.created"
	BookingPublished Type = "booking.published"
	BookingUpdated   Type = "booking.updated"
	BookingCancelled Type = "booking.cancelled"
	BookingInTransit Type = "booking.in_transit"
	BookingCompleted Type = "booking.completed"
	BidSubmitted     Type = "bid.submitted"
	BidWithdrawn     Type = "bid.withdrawn"
	BidAccepted      Type = "bid.accepted"
)

type Event struct {
	Type       Type         `json:"type"`
	BookingID  uuid.UUID    `json:"booking_id"`
	BidID      *uuid.UUID   `json:"bid_id,omitempty"`
	ActorID    types.ID     `json:"actor_id"`
	Status     string       `json:"status,omitempty"`
	Amount     *types.Money `json:"amount,omitempty"`
	Charge     *types.Money `json:"charge,omitempty"`
	OccurredAt time.Time    `json:"occurred_at"`
}

// Publisher delivers events to a broker.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Emit publishes ev and logs failures. State changes are already committed
// when events are emitted, so delivery errors never reach the caller.
func Emit(ctx context.Context, p Publisher, log logrus.FieldLogger, ev Event) {
	if p == nil {
		return
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	if err := p.Publish(ctx, ev); err != nil {
		metrics.EventPublishFailuresTotal.WithLabelValues(string(ev.Type)).Inc()
		log.WithError(err).WithFields(logrus.Fields{
			"event":      ev.Type,
			"booking_id": ev.BookingID,
		}).Warn("publish event failed")
	}
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                        { return nil }
