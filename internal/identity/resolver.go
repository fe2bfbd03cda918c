// README: Claims-based resolver shared by the Firebase and JWT verifiers.
package identity

import (
	"context"
	"fmt"

	"freightbid/internal/errs"
	"freightbid/internal/types"
)

// VerifiedToken holds the subject and custom claims of a verified credential.
type VerifiedToken struct {
	Subject string
	Claims  map[string]interface{}
}

// TokenVerifier checks a raw bearer token's signature and expiry.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*VerifiedToken, error)
}

// ClaimsResolver maps the role, org_type and active custom claims onto a Principal.
type ClaimsResolver struct {
	verifier TokenVerifier
}

func NewClaimsResolver(verifier TokenVerifier) *ClaimsResolver {
	return &ClaimsResolver{verifier: verifier}
}

func (r *ClaimsResolver) Resolve(ctx context.Context, bearer string) (Principal, error) {
	if bearer == "" {
		return Principal{}, fmt.Errorf("%w: missing token", errs.ErrUnauthenticated)
	}
	tok, err := r.verifier.VerifyIDToken(ctx, bearer)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", errs.ErrUnauthenticated, err)
	}
	if tok.Subject == "" {
		return Principal{}, fmt.Errorf("%w: token has no subject", errs.ErrUnauthenticated)
	}
	return PrincipalFromClaims(tok.Subject, tok.Claims)
}

// PrincipalFromClaims builds a Principal from custom claims. A missing org_type
// defaults from the role; a missing active claim means active.
func PrincipalFromClaims(subject string, claims map[string]interface{}) (Principal, error) {
	role := Role(stringClaim(claims, "role"))
	if !role.Valid() {
		return Principal{}, fmt.Errorf("%w: unknown role %q", errs.ErrUnauthenticated, role)
	}

	org := OrgType(stringClaim(claims, "org_type"))
	switch org {
	case OrgShipper, OrgCarrier, OrgBoth:
	case "":
		org = defaultOrg(role)
	default:
		return Principal{}, fmt.Errorf("%w: unknown org_type %q", errs.ErrUnauthenticated, org)
	}

	active := true
	if v, ok := claims["active"].(bool); ok {
		active = v
	}

	return Principal{
		IdentityID: types.ID(subject),
		Role:       role,
		OrgType:    org,
		Active:     active,
	}, nil
}

func defaultOrg(role Role) OrgType {
	switch role {
	case RoleCustomer:
		return OrgShipper
	case RoleCarrier:
		return OrgCarrier
	}
	return OrgBoth
}

func stringClaim(claims map[string]interface{}, key string) string {
	v, _ := claims[key].(string)
	return v
}
