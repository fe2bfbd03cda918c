package access

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"freightbid/internal/errs"
	"freightbid/internal/identity"
)

var (
	owner    = identity.Principal{IdentityID: "cust-1", Role: identity.RoleCustomer, OrgType: identity.OrgShipper, Active: true}
	stranger = identity.Principal{IdentityID: "cust-2", Role: identity.RoleCustomer, OrgType: identity.OrgShipper, Active: true}
	hauler   = identity.Principal{IdentityID: "car-1", Role: identity.RoleCarrier, OrgType: identity.OrgCarrier, Active: true}
	rival    = identity.Principal{IdentityID: "car-2", Role: identity.RoleCarrier, OrgType: identity.OrgCarrier, Active: true}
	admin    = identity.Principal{IdentityID: "adm-1", Role: identity.RoleAdmin, OrgType: identity.OrgBoth, Active: true}
)

func TestPolicy_Authorize(t *testing.T) {
	openBooking := Resource{OwnerID: "cust-1", Open: true}
	awardedBooking := Resource{OwnerID: "cust-1", AwardedCarrierID: "car-1"}
	haulerBid := Resource{OwnerID: "cust-1", BidCarrierID: "car-1"}

	tests := []struct {
		name      string
		principal identity.Principal
		action    Action
		res       Resource
		want      bool
	}{
		{"owner reads booking", owner, ActionReadBooking, openBooking, true},
		{"stranger reads booking", stranger, ActionReadBooking, openBooking, false},
		{"owner mutates booking", owner, ActionMutateBooking, openBooking, true},
		{"stranger mutates booking", stranger, ActionMutateBooking, openBooking, false},
		{"owner lists bids on own booking", owner, ActionListBookingBids, openBooking, true},
		{"stranger lists bids", stranger, ActionListBookingBids, openBooking, false},
		{"owner reads bid on own booking", owner, ActionReadBid, haulerBid, true},
		{"stranger reads bid", stranger, ActionReadBid, haulerBid, false},
		{"customer cannot submit bids", owner, ActionSubmitBid, openBooking, false},
		{"customer cannot list open bookings", owner, ActionListOpenBookings, Resource{}, false},

		{"carrier reads open summary", hauler, ActionReadBookingSummary, openBooking, true},
		{"carrier cannot read closed summary", rival, ActionReadBookingSummary, awardedBooking, false},
		{"awarded carrier reads closed summary", hauler, ActionReadBookingSummary, awardedBooking, true},
		{"carrier cannot read full open booking", hauler, ActionReadBooking, openBooking, false},
		{"awarded carrier reads full booking", hauler, ActionReadBooking, awardedBooking, true},
		{"awarded carrier picks up", hauler, ActionMarkInTransit, awardedBooking, true},
		{"other carrier cannot pick up", rival, ActionMarkInTransit, awardedBooking, false},
		{"carrier cannot complete", hauler, ActionCompleteBooking, awardedBooking, false},
		{"carrier submits bid", hauler, ActionSubmitBid, openBooking, true},
		{"carrier reads own bid", hauler, ActionReadBid, haulerBid, true},
		{"carrier cannot read rival bid", rival, ActionReadBid, haulerBid, false},
		{"carrier cannot list booking bids", hauler, ActionListBookingBids, openBooking, false},
		{"carrier cannot mutate booking", hauler, ActionMutateBooking, openBooking, false},

		{"admin reads anything", admin, ActionReadBooking, openBooking, true},
		{"admin mutates anything", admin, ActionMutateBooking, awardedBooking, true},
		{"admin reads bids", admin, ActionReadBid, haulerBid, true},
	}

	p := NewPolicy()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := p.Authorize(tt.principal, tt.action, tt.res)
			assert.Equal(t, tt.want, d.Allowed, d.Reason)
			if !tt.want {
				assert.NotEmpty(t, d.Reason)
			}
		})
	}
}

func TestPolicy_OrgTypeGatesListings(t *testing.T) {
	p := NewPolicy()

	carrierOrgCustomer := owner
	carrierOrgCustomer.OrgType = identity.OrgCarrier
	assert.False(t, p.Authorize(carrierOrgCustomer, ActionListOwnBookings, Resource{}).Allowed)
	assert.True(t, p.Authorize(owner, ActionListOwnBookings, Resource{}).Allowed)

	shipperOrgCarrier := hauler
	shipperOrgCarrier.OrgType = identity.OrgShipper
	assert.False(t, p.Authorize(shipperOrgCarrier, ActionListOwnBids, Resource{}).Allowed)

	both := hauler
	both.OrgType = identity.OrgBoth
	assert.True(t, p.Authorize(both, ActionListOwnBids, Resource{}).Allowed)
}

func TestPolicy_InactivePrincipalDenied(t *testing.T) {
	inactive := admin
	inactive.Active = false
	d := NewPolicy().Authorize(inactive, ActionReadBooking, Resource{OwnerID: "cust-1"})
	assert.False(t, d.Allowed)
	assert.ErrorIs(t, d.Err(), errs.ErrForbidden)
	assert.Contains(t, d.Err().Error(), "inactive")
}

func TestDecision_Err(t *testing.T) {
	assert.NoError(t, Decision{Allowed: true}.Err())
	assert.ErrorIs(t, Decision{Reason: "nope"}.Err(), errs.ErrForbidden)
}
