package shipping

import (
	"github.com/shopspring/decimal"

	"github.com/predatell/satchmo/internal/orders/domain"
)

// FlatRate charges a single fee per order regardless of contents.
type FlatRate struct {
	fee      decimal.Decimal
	delivery string
}

// NewFlatRate builds the flat-fee method.
func NewFlatRate(fee decimal.Decimal, delivery string) *FlatRate {
	return &FlatRate{fee: fee, delivery: delivery}
}

func (f *FlatRate) Key() string              { return "FlatRate" }
func (f *FlatRate) Description() string      { return "Flat Rate Shipping" }
func (f *FlatRate) Method() string           { return "US Mail" }
func (f *FlatRate) ExpectedDelivery() string { return f.delivery }

func (f *FlatRate) Cost(_ *domain.Cart, _ domain.Contact) (decimal.Decimal, error) {
	return f.fee, nil
}

func (f *FlatRate) Valid(_ *domain.Cart, _ domain.Contact) bool { return true }
