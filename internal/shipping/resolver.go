package shipping

import (
	"context"
	"log/slog"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/predatell/satchmo/internal/discount"
	"github.com/predatell/satchmo/internal/money"
	"github.com/predatell/satchmo/internal/orders/domain"
)

// Result is what the resolver hands to the checkout flow: the ranked option
// list for display plus a final-cost map keyed by method for programmatic
// lookups.
type Result struct {
	Options []Option                   `json:"options"`
	Costs   map[string]decimal.Decimal `json:"costs"`
	// Cheapest is the key of the least expensive option after discounts.
	Cheapest string `json:"cheapest"`
	// AutoSelect names the option to pre-select, empty when none.
	AutoSelect string `json:"auto_select"`
	// HideChooser is true when the chooser should not be rendered at all:
	// a single available option under a hiding mode, or a frozen choice on
	// a partially paid order.
	HideChooser bool `json:"hide_chooser"`
}

// Request describes the order context the resolver needs beyond the cart.
type Request struct {
	Cart     *domain.Cart
	Contact  domain.Contact
	Discount *discount.Discount
	// FrozenMethod is the method already chosen on an order that has
	// received payments; the chooser must not resurface mid-payment.
	FrozenMethod  string
	PartiallyPaid bool
}

// Resolver computes shipping options across the registered providers.
type Resolver struct {
	shippers []Shipper
	cfg      Config
	logger   *slog.Logger
}

// NewResolver registers the active shipping providers.
func NewResolver(cfg Config, logger *slog.Logger, shippers ...Shipper) *Resolver {
	return &Resolver{shippers: shippers, cfg: cfg, logger: logger}
}

// Options enumerates valid providers, prices them, applies the discount's
// shipping policy and tax, and ranks ascending by final cost.
func (r *Resolver) Options(ctx context.Context, req Request) Result {
	options := r.collect(ctx, req)
	applyShippingPolicy(options, req.Discount)

	for i := range options {
		options[i].Final = options[i].Cost.Sub(options[i].Discount)
		if r.cfg.TaxShipping {
			options[i].Tax = money.RoundCents(options[i].Final.Mul(r.cfg.TaxRate))
		}
	}

	sort.SliceStable(options, func(i, j int) bool {
		if options[i].Final.Equal(options[j].Final) {
			return options[i].Key < options[j].Key
		}
		return options[i].Final.LessThan(options[j].Final)
	})

	result := Result{Options: options, Costs: make(map[string]decimal.Decimal, len(options))}
	for _, opt := range options {
		result.Costs[opt.Key] = opt.Final
	}
	if len(options) > 0 {
		result.Cheapest = options[0].Key
		if r.cfg.SelectCheapest {
			result.AutoSelect = options[0].Key
		}
	}

	if req.PartiallyPaid && req.FrozenMethod != "" {
		return freeze(result, req.FrozenMethod)
	}

	if len(options) == 1 && r.cfg.Hiding != HideNever {
		result.HideChooser = true
		result.AutoSelect = options[0].Key
	}
	return result
}

// CheapestChosen reports whether the given method key is the cheapest of
// the currently available options. FREECHEAP discounts hinge on this.
func (r *Resolver) CheapestChosen(ctx context.Context, req Request, methodKey string) bool {
	req.Discount = nil
	res := r.Options(ctx, req)
	return res.Cheapest != "" && res.Cheapest == methodKey
}

func (r *Resolver) collect(ctx context.Context, req Request) []Option {
	if !req.Cart.IsShippable() {
		return []Option{{
			Key:         NoShippingKey,
			Description: NoShipping{}.Description(),
			Cost:        money.Zero,
			Discount:    money.Zero,
		}}
	}

	var options []Option
	for _, shipper := range r.shippers {
		if !shipper.Valid(req.Cart, req.Contact) {
			continue
		}
		cost, err := shipper.Cost(req.Cart, req.Contact)
		if err != nil {
			r.logger.DebugContext(ctx, "shipping method unavailable",
				"method", shipper.Key(), "error", err)
			continue
		}
		options = append(options, Option{
			Key:              shipper.Key(),
			Description:      shipper.Description(),
			Method:           shipper.Method(),
			ExpectedDelivery: shipper.ExpectedDelivery(),
			Cost:             money.RoundCents(cost),
			Discount:         money.Zero,
		})
	}
	return options
}

// applyShippingPolicy zeroes option costs according to the discount's
// shipping treatment. FREECHEAP touches only the cheapest raw cost; ties
// break by key order, matching the ranking tie-break.
func applyShippingPolicy(options []Option, d *discount.Discount) {
	if d == nil || len(options) == 0 {
		return
	}
	switch d.Shipping {
	case discount.ShippingFree:
		for i := range options {
			options[i].Discount = options[i].Cost
		}
	case discount.ShippingFreeCheap:
		cheapest := 0
		for i := 1; i < len(options); i++ {
			if options[i].Cost.LessThan(options[cheapest].Cost) ||
				(options[i].Cost.Equal(options[cheapest].Cost) && options[i].Key < options[cheapest].Key) {
				cheapest = i
			}
		}
		options[cheapest].Discount = options[cheapest].Cost
	}
}

func freeze(result Result, methodKey string) Result {
	for _, opt := range result.Options {
		if opt.Key == methodKey {
			return Result{
				Options:     []Option{opt},
				Costs:       map[string]decimal.Decimal{opt.Key: opt.Final},
				Cheapest:    opt.Key,
				AutoSelect:  opt.Key,
				HideChooser: true,
			}
		}
	}
	// The frozen method is no longer offered; keep it anyway so the order's
	// prior choice is not silently re-priced mid-payment.
	frozen := Option{Key: methodKey, Cost: money.Zero, Discount: money.Zero, Final: money.Zero}
	return Result{
		Options:     []Option{frozen},
		Costs:       map[string]decimal.Decimal{methodKey: money.Zero},
		Cheapest:    methodKey,
		AutoSelect:  methodKey,
		HideChooser: true,
	}
}
