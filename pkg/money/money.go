package money

import "math"

// All monetary amounts in this service are int64 cents. Fractional
// results from percentage math are rounded half-to-even so repeated
// small payouts carry no systematic bias.

// Mul multiplies an amount in cents by a factor and rounds half-to-even.
func Mul(amountCents int64, factor float64) int64 {
	return int64(math.RoundToEven(float64(amountCents) * factor))
}

// FromDollars converts a dollar amount to cents, rounding half-to-even.
func FromDollars(d float64) int64 {
	return int64(math.RoundToEven(d * 100))
}

// Dollars converts cents to a float dollar amount for display/serialization.
func Dollars(amountCents int64) float64 {
	return float64(amountCents) / 100
}
