// README: Common money value object used across modules (amounts in minor units).
package types

// DefaultCurrency is the only settlement currency the marketplace supports today.
const DefaultCurrency = "USD"

type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

func USD(cents int64) Money {
	return Money{Amount: cents, Currency: DefaultCurrency}
}
