// README: Bid entity and status definitions.
package bid

import (
	"time"

	"github.com/google/uuid"

	"freightbid/internal/types"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
	StatusWithdrawn Status = "withdrawn"
)

type Bid struct {
	ID          uuid.UUID   `json:"id"`
	BookingID   int64       `json:"-"`
	BookingUUID uuid.UUID   `json:"booking_id"`
	CarrierID   types.ID    `json:"carrier_id"`
	Amount      types.Money `json:"amount"`
	Status      Status      `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
	DecidedAt   *time.Time  `json:"decided_at,omitempty"`
}
