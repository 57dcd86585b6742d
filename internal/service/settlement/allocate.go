package settlement

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Allocate splits amount between weights proportionally, exact to a cent.
// Every share is floored to cents, then the cents left over go one each to the
// shares with the largest remainders. Equal remainders are served in weights order.
// Sum of the result equals amount truncated to cents.
func Allocate(amount decimal.Decimal, weights []decimal.Decimal) []decimal.Decimal {
	shares := make([]decimal.Decimal, len(weights))
	for i := range shares {
		shares[i] = decimal.Zero
	}

	total := decimal.Sum(decimal.Zero, weights...)
	cents := amount.Shift(2).Truncate(0)
	if !total.IsPositive() || !cents.IsPositive() {
		return shares
	}

	remainders := make([]decimal.Decimal, len(weights))
	allocated := decimal.Zero

	for i, w := range weights {
		q, r := cents.Mul(w).QuoRem(total, 0)
		shares[i] = q
		remainders[i] = r
		allocated = allocated.Add(q)
	}

	order := make([]int, len(weights))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return remainders[order[a]].GreaterThan(remainders[order[b]])
	})

	left := cents.Sub(allocated).IntPart()
	for _, i := range order[:left] {
		shares[i] = shares[i].Add(decimal.NewFromInt(1))
	}

	for i := range shares {
		shares[i] = shares[i].Shift(-2)
	}
	return shares
}
