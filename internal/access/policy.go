// README: Role and ownership access policy for bookings and bids.
package access

import (
	"fmt"

	"freightbid/internal/errs"
	"freightbid/internal/identity"
	"freightbid/internal/types"
)

type Action string

const (
	ActionCreateBooking      Action = "booking.create"
	ActionReadBooking        Action = "booking.read"
	ActionReadBookingSummary Action = "booking.read_summary"
	ActionMutateBooking      Action = "booking.mutate"
	ActionMarkInTransit      Action = "booking.mark_in_transit"
	ActionCompleteBooking    Action = "booking.complete"
	ActionListOwnBookings    Action = "booking.list_own"
	ActionListOpenBookings   Action = "booking.list_open"

	ActionSubmitBid       Action = "bid.submit"
	ActionReadBid         Action = "bid.read"
	ActionListBookingBids Action = "bid.list_for_booking"
	ActionListOwnBids     Action = "bid.list_own"
	ActionReadCharge      Action = "bid.read_charge"
)

// Resource carries the ownership facts the policy decides on.
// Zero values mean "not applicable".
type Resource struct {
	OwnerID          types.ID
	Open             bool
	AwardedCarrierID types.ID
	BidCarrierID     types.ID
}

type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision             { return Decision{Allowed: true} }
func deny(reason string) Decision { return Decision{Reason: reason} }
func allowIf(ok bool, reason string) Decision {
	if ok {
		return allow()
	}
	return deny(reason)
}

// Err returns nil when allowed, otherwise errs.ErrForbidden carrying the reason.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return fmt.Errorf("%w: %s", errs.ErrForbidden, d.Reason)
}

// Policy never filters silently: callers check the decision before reading.
type Policy struct{}

func NewPolicy() *Policy { return &Policy{} }

func (p *Policy) Authorize(pr identity.Principal, action Action, res Resource) Decision {
	if !pr.Active {
		return deny("principal is inactive")
	}
	switch pr.Role {
	case identity.RoleAdmin:
		return allow()
	case identity.RoleCustomer:
		return customer(pr, action, res)
	case identity.RoleCarrier:
		return carrier(pr, action, res)
	}
	return deny("unknown role")
}

func customer(pr identity.Principal, action Action, res Resource) Decision {
	owns := res.OwnerID != "" && res.OwnerID == pr.IdentityID
	switch action {
	case ActionCreateBooking, ActionListOwnBookings:
		return allowIf(pr.Ships(), "organisation does not ship")
	case ActionReadBooking, ActionReadBookingSummary, ActionMutateBooking, ActionMarkInTransit,
		ActionCompleteBooking, ActionListBookingBids, ActionReadBid, ActionReadCharge:
		return allowIf(owns, "booking belongs to another customer")
	}
	return deny(fmt.Sprintf("customers may not %s", action))
}

func carrier(pr identity.Principal, action Action, res Resource) Decision {
	awarded := res.AwardedCarrierID != "" && res.AwardedCarrierID == pr.IdentityID
	ownBid := res.BidCarrierID != "" && res.BidCarrierID == pr.IdentityID
	switch action {
	case ActionListOpenBookings, ActionListOwnBids, ActionSubmitBid:
		return allowIf(pr.Hauls(), "organisation does not haul")
	case ActionReadBookingSummary:
		return allowIf(res.Open || awarded, "booking is not open")
	case ActionReadBooking, ActionMarkInTransit:
		return allowIf(awarded, "carrier was not awarded this booking")
	case ActionReadBid, ActionReadCharge:
		return allowIf(ownBid, "bid belongs to another carrier")
	}
	return deny(fmt.Sprintf("carriers may not %s", action))
}
