// README: Authenticated principal and the resolver contract consumed by the access policy.
package identity

import (
	"context"

	"freightbid/internal/types"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleCarrier  Role = "carrier"
	RoleAdmin    Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleCarrier, RoleAdmin:
		return true
	}
	return false
}

type OrgType string

const (
	OrgShipper OrgType = "shipper"
	OrgCarrier OrgType = "carrier"
	OrgBoth    OrgType = "both"
)

// Principal is the caller identity every engine operation is evaluated against.
type Principal struct {
	IdentityID types.ID
	Role       Role
	OrgType    OrgType
	Active     bool
}

func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

// Ships reports whether the principal's organisation posts bookings.
func (p Principal) Ships() bool { return p.OrgType == OrgShipper || p.OrgType == OrgBoth }

// Hauls reports whether the principal's organisation bids on bookings.
func (p Principal) Hauls() bool { return p.OrgType == OrgCarrier || p.OrgType == OrgBoth }

// Resolver turns a bearer credential into a Principal.
// Any failure is reported as errs.ErrUnauthenticated.
type Resolver interface {
	Resolve(ctx context.Context, bearer string) (Principal, error)
}
