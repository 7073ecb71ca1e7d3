package shipping

import (
	"github.com/shopspring/decimal"

	"github.com/predatell/satchmo/internal/money"
	"github.com/predatell/satchmo/internal/orders/domain"
)

// NoShippingKey identifies the synthetic zero-cost method used for carts
// with nothing to ship.
const NoShippingKey = "NoShipping"

// NoShipping is the synthetic method offered when a cart contains only
// downloadable or virtual products.
type NoShipping struct{}

func (NoShipping) Key() string              { return NoShippingKey }
func (NoShipping) Description() string      { return "No Shipping" }
func (NoShipping) Method() string           { return "" }
func (NoShipping) ExpectedDelivery() string { return "" }

func (NoShipping) Cost(_ *domain.Cart, _ domain.Contact) (decimal.Decimal, error) {
	return money.Zero, nil
}

func (NoShipping) Valid(_ *domain.Cart, _ domain.Contact) bool { return true }
