// README: Fee breakdown and persisted platform charge records.
package fee

import (
	"time"

	"github.com/google/uuid"

	"freightbid/internal/types"
)

const (
	// MinBid is the smallest bid a carrier may submit, in cents.
	MinBid int64 = 2500
	// MinCharge and MaxCharge bound the platform fee, in cents.
	MinCharge int64 = 2500
	MaxCharge int64 = 10000
)

// Breakdown is the result of splitting a bid amount between platform and carrier.
type Breakdown struct {
	BidAmount        types.Money
	Charge           types.Money
	CarrierNet       types.Money
	ChargePercentage float64
}

// PlatformCharge is the immutable fee record written when a bid is accepted.
type PlatformCharge struct {
	BidID            uuid.UUID   `json:"bid_id"`
	BookingID        int64       `json:"-"`
	BookingUUID      uuid.UUID   `json:"booking_id"`
	BidAmount        types.Money `json:"bid_amount"`
	Charge           types.Money `json:"charge"`
	CarrierNet       types.Money `json:"carrier_net"`
	ChargePercentage float64     `json:"charge_percentage"`
	ComputedAt       time.Time   `json:"computed_at"`
}

// NewPlatformCharge stamps a breakdown with the bid and booking it settles.
func NewPlatformCharge(bidID uuid.UUID, bookingID int64, bookingUUID uuid.UUID, b Breakdown, at time.Time) PlatformCharge {
	return PlatformCharge{
		BidID:            bidID,
		BookingID:        bookingID,
		BookingUUID:      bookingUUID,
		BidAmount:        b.BidAmount,
		Charge:           b.Charge,
		CarrierNet:       b.CarrierNet,
		ChargePercentage: b.ChargePercentage,
		ComputedAt:       at,
	}
}
