package shipping

import (
	"github.com/shopspring/decimal"

	"github.com/predatell/satchmo/internal/orders/domain"
)

// PerItem charges a fee for every shippable unit in the cart.
type PerItem struct {
	fee      decimal.Decimal
	delivery string
}

// NewPerItem builds the per-piece method.
func NewPerItem(fee decimal.Decimal, delivery string) *PerItem {
	return &PerItem{fee: fee, delivery: delivery}
}

func (p *PerItem) Key() string              { return "PerItem" }
func (p *PerItem) Description() string      { return "Per piece shipping" }
func (p *PerItem) Method() string           { return "US Mail" }
func (p *PerItem) ExpectedDelivery() string { return p.delivery }

func (p *PerItem) Cost(cart *domain.Cart, _ domain.Contact) (decimal.Decimal, error) {
	units := 0
	for _, item := range cart.Items {
		if item.Product.Shippable() {
			units += item.Quantity
		}
	}
	return p.fee.Mul(decimal.NewFromInt(int64(units))), nil
}

func (p *PerItem) Valid(_ *domain.Cart, _ domain.Contact) bool { return true }
