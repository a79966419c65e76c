/*
policy.go - Points accrual policy

PURPOSE:
  Pure mapping from a validated payment amount to the whole points it
  earns. Members earn a fixed percentage of every qualifying payment.

WHY FLOOR, NOT ROUND:
  Rounding up would pay out fractional-point obligations the platform
  never earned in whole units. floor(1000.00 * 0.25) = 250, but also
  floor(3.99 * 0.25) = 0.

SEE ALSO:
  - service.go: The only caller on the write path
*/
package ledger

import "github.com/shopspring/decimal"

// accrualRate is the fraction of a payment amount earned as points.
// Unexported so no importer can change the deployed rate at runtime.
var accrualRate = decimal.New(25, -2) // 0.25

// ComputePoints returns the whole points earned by a payment of the given
// amount: floor(amount * 0.25).
//
// Deterministic and side-effect free. Fails with ErrInvalidAmount if the
// amount is zero or negative.
func ComputePoints(amount decimal.Decimal) (int64, error) {
	if !amount.IsPositive() {
		return 0, ErrInvalidAmount
	}
	return amount.Mul(accrualRate).Floor().IntPart(), nil
}
