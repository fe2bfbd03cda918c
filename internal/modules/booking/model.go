// README: Booking aggregate, carrier-facing summary and status definitions.
package booking

import (
	"time"

	"github.com/google/uuid"

	"freightbid/internal/access"
	"freightbid/internal/types"
)

type Status string

const (
	StatusNone      Status = "none"
	StatusDraft     Status = "draft"
	StatusOpen      Status = "open"
	StatusAwarded   Status = "awarded"
	StatusInTransit Status = "in_transit"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

type Booking struct {
	ID                  int64      `json:"-"`
	UUID                uuid.UUID  `json:"id"`
	OwnerID             types.ID   `json:"owner_id"`
	Origin              string     `json:"origin"`
	Destination         string     `json:"destination"`
	Notes               string     `json:"notes,omitempty"`
	EstimatedDistanceKm *float64   `json:"estimated_distance_km,omitempty"`
	Status              Status     `json:"status"`
	StatusVersion       int        `json:"status_version"`
	AwardedBidID        *uuid.UUID `json:"awarded_bid_id,omitempty"`
	AwardedCarrierID    *types.ID  `json:"awarded_carrier_id,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
	PublishedAt         *time.Time `json:"published_at,omitempty"`
	AwardedAt           *time.Time `json:"awarded_at,omitempty"`
	PickedUpAt          *time.Time `json:"picked_up_at,omitempty"`
	CompletedAt         *time.Time `json:"completed_at,omitempty"`
	CancelledAt         *time.Time `json:"cancelled_at,omitempty"`
	CancelReason        *string    `json:"cancellation_reason,omitempty"`
}

// Summary is what carriers see of a booking they were not awarded.
type Summary struct {
	UUID                uuid.UUID `json:"id"`
	Origin              string    `json:"origin"`
	Destination         string    `json:"destination"`
	EstimatedDistanceKm *float64  `json:"estimated_distance_km,omitempty"`
	Status              Status    `json:"status"`
	CreatedAt           time.Time `json:"created_at"`
}

func (b *Booking) Summary() Summary {
	return Summary{
		UUID:                b.UUID,
		Origin:              b.Origin,
		Destination:         b.Destination,
		EstimatedDistanceKm: b.EstimatedDistanceKm,
		Status:              b.Status,
		CreatedAt:           b.CreatedAt,
	}
}

// Resource exposes the ownership facts the access policy needs.
func (b *Booking) Resource() access.Resource {
	r := access.Resource{OwnerID: b.OwnerID, Open: b.Status == StatusOpen}
	if b.AwardedCarrierID != nil {
		r.AwardedCarrierID = *b.AwardedCarrierID
	}
	return r
}

// Editable reports whether origin, destination and notes may still change.
func (b *Booking) Editable() bool {
	return b.Status == StatusDraft || b.Status == StatusOpen
}

type Event struct {
	ID         int64
	BookingID  int64
	FromStatus Status
	ToStatus   Status
	ActorRole  string
	ActorID    *types.ID
	CreatedAt  time.Time
}

// AllowedTransitions represents the booking lifecycle as code.
var AllowedTransitions = map[Status][]Status{
	StatusDraft:     {StatusOpen},
	StatusOpen:      {StatusAwarded, StatusCancelled},
	StatusAwarded:   {StatusInTransit},
	StatusInTransit: {StatusCompleted},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

func IsTerminal(s Status) bool {
	return s == StatusCompleted || s == StatusCancelled
}
