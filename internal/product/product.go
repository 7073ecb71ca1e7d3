// Package product defines the catalog-facing view the checkout core needs:
// a product's kind and the capabilities that follow from it. The storefront
// catalog itself (categories, browsing, variants admin) lives elsewhere.
package product

import "github.com/shopspring/decimal"

// Kind tags a product with its behavioral variant.
type Kind string

const (
	Physical        Kind = "physical"
	Subscription    Kind = "subscription"
	GiftCertificate Kind = "giftcertificate"
	Configurable    Kind = "configurable"
	Variation       Kind = "variation"
)

// Product carries the attributes checkout cares about. Slug is the stable
// catalog identifier used in discount scoping.
type Product struct {
	Slug         string          `json:"slug"`
	Name         string          `json:"name"`
	Kind         Kind            `json:"kind"`
	Price        decimal.Decimal `json:"price"`
	ItemsInStock int             `json:"items_in_stock"`
	Active       bool            `json:"active"`
	Discountable bool            `json:"discountable"`

	// SubscriptionTerms is set only for Kind == Subscription.
	SubscriptionTerms *SubscriptionTerms `json:"subscription_terms,omitempty"`
}

// SubscriptionTerms describes a recurring product's billing cycle.
type SubscriptionTerms struct {
	// ExpireLength is the length of one billing period in ExpireUnit units.
	ExpireLength int    `json:"expire_length"`
	ExpireUnit   string `json:"expire_unit"` // "DAY" or "MONTH"
	// RecurringTimes caps the number of renewals; zero means unlimited.
	RecurringTimes int `json:"recurring_times"`
	// TrialPrice, when non-nil, replaces the unit price for the first
	// TrialLength units of ExpireUnit.
	TrialPrice  *decimal.Decimal `json:"trial_price,omitempty"`
	TrialLength int              `json:"trial_length"`
}

// Shippable reports whether the product requires physical delivery.
func (p Product) Shippable() bool {
	switch p.Kind {
	case GiftCertificate, Subscription:
		return false
	default:
		return true
	}
}

// IsSubscription reports whether the product bills on a recurring schedule.
func (p Product) IsSubscription() bool {
	return p.Kind == Subscription
}

// IsDiscountable reports whether discounts may apply to this product.
// Gift certificates hold stored value and are never discounted.
func (p Product) IsDiscountable() bool {
	if p.Kind == GiftCertificate {
		return false
	}
	return p.Discountable
}
