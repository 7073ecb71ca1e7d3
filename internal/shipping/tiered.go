package shipping

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/predatell/satchmo/internal/money"
	"github.com/predatell/satchmo/internal/orders/domain"
)

// ErrNoTier is returned when a carrier has no price tier covering a total.
// The resolver treats it as "method unavailable", not as a failure.
var ErrNoTier = errors.New("no price tier available for this total")

// Tier prices orders whose shippable total is at least MinTotal. A tier
// with an expiry date is a promotional price preferred over regular tiers
// until it lapses.
type Tier struct {
	MinTotal decimal.Decimal
	Price    decimal.Decimal
	Expires  *time.Time
}

// Carrier is a tiered-rate shipping provider: a delivery service with a
// ladder of prices keyed by order total.
type Carrier struct {
	CarrierKey string
	Name       string
	Desc       string
	Service    string
	Delivery   string
	Active     bool
	Tiers      []Tier
	Clock      func() time.Time
}

func (c *Carrier) now() time.Time {
	if c.Clock != nil {
		return c.Clock()
	}
	return time.Now()
}

func (c *Carrier) Key() string              { return c.CarrierKey }
func (c *Carrier) Description() string      { return c.Desc }
func (c *Carrier) Method() string           { return c.Service }
func (c *Carrier) ExpectedDelivery() string { return c.Delivery }

// Price finds the applicable tier for a shippable total: the qualifying
// unexpired promotional tier if any, else the qualifying regular tier with
// the highest minimum.
func (c *Carrier) Price(total decimal.Decimal) (decimal.Decimal, error) {
	today := c.now()

	best, found := c.bestTier(total, func(t Tier) bool {
		return t.Expires != nil && !t.Expires.Before(today)
	})
	if !found {
		best, found = c.bestTier(total, func(t Tier) bool {
			return t.Expires == nil
		})
	}
	if !found {
		return decimal.Zero, ErrNoTier
	}
	return best.Price, nil
}

func (c *Carrier) bestTier(total decimal.Decimal, eligible func(Tier) bool) (Tier, bool) {
	var best Tier
	found := false
	for _, t := range c.Tiers {
		if !eligible(t) || t.MinTotal.GreaterThan(total) {
			continue
		}
		if !found || t.MinTotal.GreaterThan(best.MinTotal) {
			best = t
			found = true
		}
	}
	return best, found
}

// Cost prices the shippable portion of the cart against the tier ladder.
func (c *Carrier) Cost(cart *domain.Cart, _ domain.Contact) (decimal.Decimal, error) {
	return c.Price(shippableTotal(cart))
}

// Valid reports false when no tier covers the cart, so the method simply
// is not offered rather than erroring at confirmation time.
func (c *Carrier) Valid(cart *domain.Cart, contact domain.Contact) bool {
	if !c.Active {
		return false
	}
	_, err := c.Cost(cart, contact)
	return err == nil
}

// ParseTiers builds a tier ladder from a comma-separated "min=price" list,
// e.g. "0=8.00,25=5.00,50=0".
func ParseTiers(spec string) ([]Tier, error) {
	var tiers []Tier
	for _, entry := range strings.Split(spec, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		minStr, priceStr, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("malformed tier %q: want min=price", entry)
		}
		minTotal, err := decimal.NewFromString(strings.TrimSpace(minStr))
		if err != nil {
			return nil, fmt.Errorf("tier %q: bad minimum: %w", entry, err)
		}
		price, err := decimal.NewFromString(strings.TrimSpace(priceStr))
		if err != nil {
			return nil, fmt.Errorf("tier %q: bad price: %w", entry, err)
		}
		tiers = append(tiers, Tier{MinTotal: minTotal, Price: price})
	}
	if len(tiers) == 0 {
		return nil, errors.New("no price tiers defined")
	}
	return tiers, nil
}

func shippableTotal(cart *domain.Cart) decimal.Decimal {
	total := money.Zero
	for _, item := range cart.Items {
		if item.Product.Shippable() {
			total = total.Add(item.LineTotal())
		}
	}
	return total
}
