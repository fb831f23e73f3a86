package scheduling

import "github.com/shopspring/decimal"

// CalculateFee prices a visit: feePerMinute * duration rounded to cents,
// halves away from zero. The caller resolves feePerMinute from the visit
// type.
func CalculateFee(durationMinutes int, feePerMinute decimal.Decimal) decimal.Decimal {
	return feePerMinute.Mul(decimal.NewFromInt(int64(durationMinutes))).Round(2)
}
