// README: Platform fee calculator: 5% of the bid, clamped to [$25, $100].
package fee

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"freightbid/internal/errs"
	"freightbid/internal/types"
)

var (
	rate    = decimal.RequireFromString("0.05")
	hundred = decimal.NewFromInt(100)
	// maxCents is the largest amount representable in Money.
	maxCents = decimal.NewFromInt(math.MaxInt64)
)

// Compute splits bidAmount into the platform charge and the carrier net.
// Amounts below MinBid still clamp to MinCharge; callers validate bids first.
func Compute(bidAmount types.Money) (Breakdown, error) {
	if err := checkAmount(bidAmount); err != nil {
		return Breakdown{}, err
	}

	amount := decimal.NewFromInt(bidAmount.Amount)
	charge := amount.Mul(rate).Round(0)
	if charge.LessThan(decimal.NewFromInt(MinCharge)) {
		charge = decimal.NewFromInt(MinCharge)
	}
	if charge.GreaterThan(decimal.NewFromInt(MaxCharge)) {
		charge = decimal.NewFromInt(MaxCharge)
	}

	pct, _ := charge.Div(amount).Mul(hundred).Round(2).Float64()
	chargeCents := charge.IntPart()

	return Breakdown{
		BidAmount:        bidAmount,
		Charge:           types.Money{Amount: chargeCents, Currency: bidAmount.Currency},
		CarrierNet:       types.Money{Amount: bidAmount.Amount - chargeCents, Currency: bidAmount.Currency},
		ChargePercentage: pct,
	}, nil
}

// ValidateBidAmount rejects amounts that would produce a negative carrier payout.
func ValidateBidAmount(amount types.Money) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	if amount.Amount < MinBid {
		return fmt.Errorf("%w: bid amount must be at least %s", errs.ErrInvalidAmount, Format(types.USD(MinBid)))
	}
	return nil
}

// ParseAmount reads a decimal dollar string such as "500" or "500.25".
func ParseAmount(s string) (types.Money, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "$")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return types.Money{}, fmt.Errorf("%w: %q is not a number", errs.ErrInvalidAmount, s)
	}
	if d.Exponent() < -2 && !d.Equal(d.Round(2)) {
		return types.Money{}, fmt.Errorf("%w: %q has more than two decimal places", errs.ErrInvalidAmount, s)
	}
	if !d.IsPositive() {
		return types.Money{}, fmt.Errorf("%w: amount must be positive", errs.ErrInvalidAmount)
	}
	cents := d.Mul(hundred)
	if cents.GreaterThan(maxCents) {
		return types.Money{}, fmt.Errorf("%w: %q is too large", errs.ErrInvalidAmount, s)
	}
	return types.USD(cents.IntPart()), nil
}

// Format renders m as a plain dollar string such as "$500.00".
func Format(m types.Money) string {
	return "$" + decimal.New(m.Amount, -2).StringFixed(2)
}

func checkAmount(m types.Money) error {
	if m.Amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", errs.ErrInvalidAmount)
	}
	if m.Currency != types.DefaultCurrency {
		return fmt.Errorf("%w: unsupported currency %q", errs.ErrInvalidAmount, m.Currency)
	}
	return nil
}
