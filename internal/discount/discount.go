// Package discount implements coupon and sale definitions, their validity
// rules, and the allocation of a discount across order line items.
package discount

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/predatell/satchmo/internal/money"
	"github.com/predatell/satchmo/internal/orders/domain"
	"github.com/predatell/satchmo/internal/product"
)

// ShippingPolicy controls how a discount treats shipping cost.
type ShippingPolicy string

const (
	// ShippingNone leaves shipping untouched.
	ShippingNone ShippingPolicy = "NONE"
	// ShippingFree zeroes the shipping cost outright.
	ShippingFree ShippingPolicy = "FREE"
	// ShippingFreeCheap makes only the cheapest shipping option free.
	ShippingFreeCheap ShippingPolicy = "FREECHEAP"
	// ShippingApply folds shipping into the discountable pool alongside the
	// line items.
	ShippingApply ShippingPolicy = "APPLY"
)

// shippingPoolID keys the shipping entry when policy is ShippingApply. Line
// items are keyed by uuid, so the sentinel cannot collide.
const shippingPoolID = "shipping"

// Discount is a coupon or sale definition. Amount and Percentage are
// mutually exclusive by convention; NewDiscount enforces it.
type Discount struct {
	ID          string           `json:"id"`
	Site        string           `json:"site"`
	Code        string           `json:"code"`
	Description string           `json:"description"`
	Active      bool             `json:"active"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	Percentage  *decimal.Decimal `json:"percentage,omitempty"`
	// Automatic marks a site-wide sale applied without a coupon code.
	Automatic   bool            `json:"automatic"`
	AllowedUses int             `json:"allowed_uses"`
	NumUses     int             `json:"num_uses"`
	MinOrder    decimal.Decimal `json:"min_order"`
	StartDate   time.Time       `json:"start_date"`
	EndDate     time.Time       `json:"end_date"`
	Shipping    ShippingPolicy  `json:"shipping"`
	// AllValid applies the discount to every discountable product. When
	// false, ValidProducts limits eligibility; the repository resolves
	// valid categories down to product slugs on load.
	AllValid      bool     `json:"all_valid"`
	ValidProducts []string `json:"valid_products,omitempty"`
}

// NewDiscount builds a discount, rejecting definitions that set both an
// absolute amount and a percentage, or neither while not being
// shipping-only.
func NewDiscount(code string, amount, percentage *decimal.Decimal, shipping ShippingPolicy) (*Discount, error) {
	if amount != nil && percentage != nil {
		return nil, errors.New("discount cannot have both an amount and a percentage")
	}
	if amount == nil && percentage == nil && shipping == ShippingNone {
		return nil, errors.New("discount must have an amount, a percentage, or a shipping policy")
	}
	if shipping == "" {
		shipping = ShippingNone
	}
	return &Discount{Code: code, Amount: amount, Percentage: percentage, Shipping: shipping}, nil
}

// Validator lets collaborators veto a discount after the built-in checks
// pass. Returning an error rejects the discount with the error text as the
// customer-facing reason.
type Validator func(ctx context.Context, d *Discount, cart *domain.Cart) error

// Validate runs the built-in validity checks in order, then any external
// validators. It returns ok plus a human-readable reason when not ok.
func (d *Discount) Validate(ctx context.Context, cart *domain.Cart, now time.Time, validators ...Validator) (bool, string) {
	today := now.Truncate(24 * time.Hour)
	if !d.Active {
		return false, "This coupon is disabled."
	}
	if d.StartDate.After(today) {
		return false, "This coupon is not active yet."
	}
	if d.EndDate.Before(today) {
		return false, "This coupon has expired."
	}
	if d.AllowedUses > 0 && d.NumUses >= d.AllowedUses {
		return false, "This discount has exceeded the number of allowed uses."
	}

	if cart != nil {
		if cart.Total().LessThan(d.MinOrder) {
			return false, fmt.Sprintf("This discount only applies to orders of at least %s.", money.Format(d.MinOrder))
		}
		if !d.AllValid && !d.anyCartItemEligible(cart) {
			return false, "This discount cannot be applied to the products in your cart."
		}
	}

	for _, validate := range validators {
		if err := validate(ctx, d, cart); err != nil {
			return false, err.Error()
		}
	}
	return true, "Valid."
}

// ValidForProduct tests eligibility of a single product.
func (d *Discount) ValidForProduct(p product.Product) bool {
	if !p.IsDiscountable() {
		return false
	}
	if d.AllValid {
		return true
	}
	for _, valid := range d.ValidProducts {
		if valid == p.Slug {
			return true
		}
	}
	return false
}

func (d *Discount) anyCartItemEligible(cart *domain.Cart) bool {
	for _, item := range cart.Items {
		if d.ValidForProduct(item.Product) {
			return true
		}
	}
	return false
}

// Allocation is the outcome of applying a discount to an order: the rounded
// per-item discounts plus how much of the shipping cost is forgiven.
type Allocation struct {
	ItemDiscounts    map[string]decimal.Decimal
	ShippingDiscount decimal.Decimal
}

// Total sums the item discounts and the shipping discount.
func (a Allocation) Total() decimal.Decimal {
	total := a.ShippingDiscount
	for _, v := range a.ItemDiscounts {
		total = total.Add(v)
	}
	return total
}

// ApplyInput carries the context Apply needs beyond the order itself.
type ApplyInput struct {
	// CheapestShippingChosen reports whether the order's frozen shipping
	// method is the cheapest of the currently available options; FREECHEAP
	// only forgives shipping in that case.
	CheapestShippingChosen bool
}

// Apply computes the discount allocation for an order: it builds the pool of
// discountable line prices (folding shipping in under the APPLY policy),
// splits the amount or percentage across it, and resolves the shipping
// policy. Item order in the pool follows the order's line order.
func (d *Discount) Apply(order *domain.Order, in ApplyInput) (Allocation, error) {
	pool := NewPool()
	for _, item := range order.Items {
		if d.ValidForProduct(item.Product) {
			pool.Add(item.ID, item.LineItemPrice)
		}
	}

	if d.Shipping == ShippingApply {
		pool.Add(shippingPoolID, order.ShippingCost)
	}

	var work map[string]decimal.Decimal
	switch {
	case d.Amount != nil:
		var err error
		work, err = EvenSplit(pool, *d.Amount)
		if err != nil {
			return Allocation{}, err
		}
	case d.Percentage != nil:
		work = Percentage(pool, *d.Percentage)
	default:
		// Shipping-only discount.
		work = make(map[string]decimal.Decimal, pool.Len())
		for _, id := range pool.IDs() {
			work[id] = money.Zero
		}
	}

	shippingDiscount := money.Zero
	if amount, ok := work[shippingPoolID]; ok {
		shippingDiscount = amount
		delete(work, shippingPoolID)
	}

	switch d.Shipping {
	case ShippingFree:
		shippingDiscount = order.ShippingCost
	case ShippingFreeCheap:
		if in.CheapestShippingChosen {
			shippingDiscount = order.ShippingCost
		}
	}

	return Allocation{ItemDiscounts: work, ShippingDiscount: shippingDiscount}, nil
}
