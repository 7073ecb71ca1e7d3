// Package shipping enumerates shipping method providers, prices them for a
// cart, and ranks the results for display and selection.
package shipping

import (
	"github.com/shopspring/decimal"

	"github.com/predatell/satchmo/internal/orders/domain"
)

// Shipper is one shipping method provider. Implementations must be safe for
// concurrent use; cost computation receives the cart and contact explicitly.
type Shipper interface {
	// Key is the stable identifier stored on orders that chose this method.
	Key() string
	// Description is shown to the customer when choosing a method.
	Description() string
	// Method names the actual delivery service (Mail, FedEx, UPS, ...).
	Method() string
	// ExpectedDelivery is a human string such as "3 - 4 business days".
	ExpectedDelivery() string
	// Cost computes the charge for the cart. An error marks the method
	// unavailable for this cart (for example no matching price tier).
	Cost(cart *domain.Cart, contact domain.Contact) (decimal.Decimal, error)
	// Valid reports whether the method may be offered to this destination.
	Valid(cart *domain.Cart, contact domain.Contact) bool
}

// HidingMode controls whether the shipping chooser is shown when only one
// method is available.
type HidingMode string

const (
	HideNever       HidingMode = "NO"
	HideAlways      HidingMode = "YES"
	HideDescription HidingMode = "DESCRIPTION"
)

// Config carries the store-level shipping toggles consumed as input.
type Config struct {
	// TaxShipping adds tax at TaxRate to every computed cost.
	TaxShipping bool
	TaxRate     decimal.Decimal
	// SelectCheapest pre-selects the least expensive option.
	SelectCheapest bool
	Hiding         HidingMode
}

// Option is one rendered shipping choice. Options are ephemeral: they are
// computed fresh per request and never persisted beyond the chosen key.
type Option struct {
	Key              string          `json:"key"`
	Description      string          `json:"description"`
	Method           string          `json:"method"`
	ExpectedDelivery string          `json:"expected_delivery"`
	Cost             decimal.Decimal `json:"cost"`
	Discount         decimal.Decimal `json:"discount"`
	Final            decimal.Decimal `json:"final"`
	Tax              decimal.Decimal `json:"tax"`
}
