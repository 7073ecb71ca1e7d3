package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/predatell/satchmo/internal/discount"
	"github.com/predatell/satchmo/internal/orders/ports"
)

// DiscountRepository is an in-memory discount store.
type DiscountRepository struct {
	mu        sync.RWMutex
	discounts map[string]discount.Discount
}

// NewDiscountRepository constructs an empty discount store.
func NewDiscountRepository() *DiscountRepository {
	return &DiscountRepository{discounts: make(map[string]discount.Discount)}
}

// Put stores or replaces a discount by code.
func (r *DiscountRepository) Put(d discount.Discount) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.discounts[d.Code] = d
}

// GetByCode fetches an active discount by its coupon code.
func (r *DiscountRepository) GetByCode(_ context.Context, code string) (*discount.Discount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.discounts[code]
	if !ok {
		return nil, ports.ErrNotFound
	}
	copy := d
	return &copy, nil
}

// FindAutomatic returns active automatic discounts valid on day, ordered
// by percentage descending so the steepest sale wins.
func (r *DiscountRepository) FindAutomatic(_ context.Context, site string, day time.Time) ([]discount.Discount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []discount.Discount
	for _, d := range r.discounts {
		if !d.Automatic || !d.Active {
			continue
		}
		if d.Site != "" && d.Site != site {
			continue
		}
		if d.StartDate.After(day) || d.EndDate.Before(day) {
			continue
		}
		result = append(result, d)
	}

	sort.SliceStable(result, func(i, j int) bool {
		pi, pj := percentageOf(result[i]), percentageOf(result[j])
		if pi.Equal(pj) {
			return result[i].Code < result[j].Code
		}
		return pi.GreaterThan(pj)
	})
	return result, nil
}

func percentageOf(d discount.Discount) decimal.Decimal {
	if d.Percentage != nil {
		return *d.Percentage
	}
	return decimal.Zero
}

// IncrementUses bumps the redemption counter for a code.
func (r *DiscountRepository) IncrementUses(_ context.Context, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.discounts[code]
	if !ok {
		return ports.ErrNotFound
	}
	d.NumUses++
	r.discounts[code] = d
	return nil
}
