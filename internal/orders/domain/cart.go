package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/predatell/satchmo/internal/money"
	"github.com/predatell/satchmo/internal/product"
)

// CartItem is one line of a customer's cart.
type CartItem struct {
	Product  product.Product `json:"product"`
	Quantity int             `json:"quantity"`
}

// LineTotal is quantity times the product's current price.
func (ci CartItem) LineTotal() decimal.Decimal {
	return ci.Product.Price.Mul(decimal.NewFromInt(int64(ci.Quantity)))
}

// Cart is the pre-order shopping basket.
type Cart struct {
	ID    string     `json:"id"`
	Site  string     `json:"site"`
	Items []CartItem `json:"items"`
}

// NumItems counts the units in the cart.
func (c *Cart) NumItems() int {
	n := 0
	for _, item := range c.Items {
		n += item.Quantity
	}
	return n
}

// Total sums the line totals.
func (c *Cart) Total() decimal.Decimal {
	total := money.Zero
	for _, item := range c.Items {
		total = total.Add(item.LineTotal())
	}
	return total
}

// IsShippable reports whether any cart line requires physical delivery.
func (c *Cart) IsShippable() bool {
	for _, item := range c.Items {
		if item.Product.Shippable() {
			return true
		}
	}
	return false
}

// ToOrderItem copies a cart line into an order line, applying subscription
// terms: the expire date is computed from the billing period, and a trial
// price replaces the unit price for the first period when one is defined.
func (ci CartItem) ToOrderItem(id string, now time.Time) OrderItem {
	item := OrderItem{
		ID:            id,
		Product:       ci.Product,
		Quantity:      ci.Quantity,
		UnitPrice:     ci.Product.Price,
		LineItemPrice: ci.LineTotal(),
		Discount:      money.Zero,
	}

	terms := ci.Product.SubscriptionTerms
	if ci.Product.IsSubscription() && terms != nil {
		if terms.TrialPrice != nil {
			item.UnitPrice = *terms.TrialPrice
			item.LineItemPrice = terms.TrialPrice.Mul(decimal.NewFromInt(int64(ci.Quantity)))
			expire := addPeriod(now, terms.ExpireUnit, terms.TrialLength)
			item.ExpireDate = &expire
		} else if terms.ExpireLength > 0 {
			expire := addPeriod(now, terms.ExpireUnit, terms.ExpireLength)
			item.ExpireDate = &expire
		}
	}
	return item
}

func addPeriod(from time.Time, unit string, length int) time.Time {
	if unit == "MONTH" {
		return from.AddDate(0, length, 0)
	}
	return from.AddDate(0, 0, length)
}
