package discount

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/predatell/satchmo/internal/money"
)

// ErrSplitDiverged reports that the even-split loop failed to reach a stable
// allocation. The loop is bounded by the pool size, so hitting this means a
// programming error, not bad input; callers must treat it as fatal.
var ErrSplitDiverged = errors.New("discount split did not converge")

// EvenSplit divides amount across the pool as evenly as possible without any
// entry receiving more than its own price.
//
// Each round computes the even share of the not-yet-pinned remainder. Entries
// whose price is at or below the share are capped at their price and leave
// the eligible set; the round repeats until no entry gets capped. Leftover
// cents from flooring the share are handed out one cent at a time in pool
// insertion order.
//
// When amount is at most the pool total, the returned values sum to amount
// floored to cents. When it exceeds the total, every entry is discounted at
// exactly its price.
func EvenSplit(pool *Pool, amount decimal.Decimal) (map[string]decimal.Decimal, error) {
	eps := money.Cent
	zero := money.Zero
	amount = money.FloorCents(amount)

	lastCount := -1
	count := pool.Len()
	sentinel := pool.Len()
	work := make(map[string]decimal.Decimal, pool.Len())
	applied, pinned := zero, zero

	// count:   entries still eligible for a full share after the last round
	// pinned:  total handed to capped entries in the last round
	// applied: total handed out in the last round
	for count > 0 && applied.LessThan(amount) && count != lastCount && sentinel > 0 {
		share := money.FloorCents(amount.Sub(pinned).Div(decimal.NewFromInt(int64(count))))
		remainder := amount.Sub(pinned).Sub(share.Mul(decimal.NewFromInt(int64(count))))
		lastCount = count

		count = pool.Len()
		work = make(map[string]decimal.Decimal, pool.Len())
		applied, pinned = zero, zero
		for _, id := range pool.IDs() {
			price := pool.Price(id)
			var toApply decimal.Decimal
			if price.GreaterThan(share) {
				if remainder.IsPositive() {
					toApply = share.Add(eps)
					remainder = remainder.Sub(eps)
				} else {
					toApply = share
				}
			} else {
				toApply = money.FloorCents(price)
				pinned = pinned.Add(toApply)
				count--
			}
			work[id] = toApply
			applied = applied.Add(toApply)
		}
		sentinel--
	}

	if !applied.Equal(amount) && !(applied.LessThanOrEqual(amount) && applied.Equal(pinned)) {
		return nil, ErrSplitDiverged
	}

	money.RoundCentsMap(work)
	return work, nil
}

// Percentage discounts every pool entry by price × percentage / 100, rounded
// to cents independently per entry. There is no cross-entry remainder
// redistribution, so the sum may drift from the nominal percentage by a few
// cents; that drift is intentional and matched by the storefront display.
func Percentage(pool *Pool, percentage decimal.Decimal) map[string]decimal.Decimal {
	work := make(map[string]decimal.Decimal, pool.Len())
	hundred := decimal.NewFromInt(100)
	for _, id := range pool.IDs() {
		work[id] = pool.Price(id).Mul(percentage).Div(hundred)
	}
	money.RoundCentsMap(work)
	return work
}
