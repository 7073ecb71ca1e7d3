package shipping_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/predatell/satchmo/internal/discount"
	"github.com/predatell/satchmo/internal/money"
	"github.com/predatell/satchmo/internal/orders/domain"
	"github.com/predatell/satchmo/internal/product"
	"github.com/predatell/satchmo/internal/shipping"
)

type fakeShipper struct {
	key   string
	cost  decimal.Decimal
	err   error
	valid bool
}

func (f fakeShipper) Key() string              { return f.key }
func (f fakeShipper) Description() string      { return f.key + " shipping" }
func (f fakeShipper) Method() string           { return "US Mail" }
func (f fakeShipper) ExpectedDelivery() string { return "3-4 business days" }

func (f fakeShipper) Cost(_ *domain.Cart, _ domain.Contact) (decimal.Decimal, error) {
	return f.cost, f.err
}

func (f fakeShipper) Valid(_ *domain.Cart, _ domain.Contact) bool { return f.valid }

func shippableCart() *domain.Cart {
	return &domain.Cart{
		Items: []domain.CartItem{
			{
				Product: product.Product{
					Slug:  "dj-rocks",
					Kind:  product.Physical,
					Price: money.MustParse("20.00"),
				},
				Quantity: 2,
			},
		},
	}
}

func virtualCart() *domain.Cart {
	return &domain.Cart{
		Items: []domain.CartItem{
			{
				Product: product.Product{
					Slug:  "gift-10",
					Kind:  product.GiftCertificate,
					Price: money.MustParse("10.00"),
				},
				Quantity: 1,
			},
		},
	}
}

func testShippers() []shipping.Shipper {
	return []shipping.Shipper{
		fakeShipper{key: "Standard", cost: money.MustParse("5.00"), valid: true},
		fakeShipper{key: "Priority", cost: money.MustParse("8.00"), valid: true},
		fakeShipper{key: "Express", cost: money.MustParse("12.00"), valid: true},
	}
}

func TestResolverOptions(t *testing.T) {
	ctx := context.Background()
	logger := slog.Default()

	t.Run("ranks options ascending by final cost", func(t *testing.T) {
		resolver := shipping.NewResolver(shipping.Config{}, logger, testShippers()...)

		res := resolver.Options(ctx, shipping.Request{Cart: shippableCart()})

		if len(res.Options) != 3 {
			t.Fatalf("expected 3 options, got %d", len(res.Options))
		}
		wantOrder := []string{"Standard", "Priority", "Express"}
		for i, key := range wantOrder {
			if res.Options[i].Key != key {
				t.Errorf("option %d: expected %q, got %q", i, key, res.Options[i].Key)
			}
		}
		if res.Cheapest != "Standard" {
			t.Errorf("expected cheapest Standard, got %q", res.Cheapest)
		}
	})

	t.Run("skips invalid and unavailable shippers", func(t *testing.T) {
		shippers := []shipping.Shipper{
			fakeShipper{key: "Standard", cost: money.MustParse("5.00"), valid: true},
			fakeShipper{key: "Disabled", cost: money.MustParse("1.00"), valid: false},
			fakeShipper{key: "Broken", err: shipping.ErrNoTier, valid: true},
		}
		resolver := shipping.NewResolver(shipping.Config{}, logger, shippers...)

		res := resolver.Options(ctx, shipping.Request{Cart: shippableCart()})

		if len(res.Options) != 1 {
			t.Fatalf("expected 1 option, got %d", len(res.Options))
		}
		if res.Options[0].Key != "Standard" {
			t.Errorf("expected Standard, got %q", res.Options[0].Key)
		}
	})

	t.Run("virtual cart gets the zero-cost no-shipping option", func(t *testing.T) {
		resolver := shipping.NewResolver(shipping.Config{}, logger, testShippers()...)

		res := resolver.Options(ctx, shipping.Request{Cart: virtualCart()})

		if len(res.Options) != 1 {
			t.Fatalf("expected 1 option, got %d", len(res.Options))
		}
		if res.Options[0].Key != shipping.NoShippingKey {
			t.Errorf("expected %q, got %q", shipping.NoShippingKey, res.Options[0].Key)
		}
		if !res.Options[0].Final.IsZero() {
			t.Errorf("expected zero cost, got %s", res.Options[0].Final)
		}
	})

	t.Run("free shipping discount zeroes every option", func(t *testing.T) {
		resolver := shipping.NewResolver(shipping.Config{}, logger, testShippers()...)
		d, err := discount.NewDiscount("FREESHIP", nil, nil, discount.ShippingFree)
		if err != nil {
			t.Fatal(err)
		}

		res := resolver.Options(ctx, shipping.Request{Cart: shippableCart(), Discount: d})

		for _, opt := range res.Options {
			if !opt.Final.IsZero() {
				t.Errorf("option %q: expected zero final cost, got %s", opt.Key, opt.Final)
			}
		}
	})

	t.Run("freecheap zeroes only the cheapest option", func(t *testing.T) {
		resolver := shipping.NewResolver(shipping.Config{}, logger, testShippers()...)
		d, err := discount.NewDiscount("CHEAP", nil, nil, discount.ShippingFreeCheap)
		if err != nil {
			t.Fatal(err)
		}

		res := resolver.Options(ctx, shipping.Request{Cart: shippableCart(), Discount: d})

		if !res.Costs["Standard"].IsZero() {
			t.Errorf("expected Standard free, got %s", res.Costs["Standard"])
		}
		if !res.Costs["Priority"].Equal(money.MustParse("8.00")) {
			t.Errorf("expected Priority at 8.00, got %s", res.Costs["Priority"])
		}
		if !res.Costs["Express"].Equal(money.MustParse("12.00")) {
			t.Errorf("expected Express at 12.00, got %s", res.Costs["Express"])
		}
	})

	t.Run("taxes final costs when configured", func(t *testing.T) {
		cfg := shipping.Config{TaxShipping: true, TaxRate: money.MustParse("0.10")}
		resolver := shipping.NewResolver(cfg, logger, testShippers()...)

		res := resolver.Options(ctx, shipping.Request{Cart: shippableCart()})

		if !res.Options[0].Tax.Equal(money.MustParse("0.50")) {
			t.Errorf("expected 0.50 tax on cheapest, got %s", res.Options[0].Tax)
		}
	})

	t.Run("auto-selects cheapest when configured", func(t *testing.T) {
		cfg := shipping.Config{SelectCheapest: true}
		resolver := shipping.NewResolver(cfg, logger, testShippers()...)

		res := resolver.Options(ctx, shipping.Request{Cart: shippableCart()})

		if res.AutoSelect != "Standard" {
			t.Errorf("expected Standard auto-selected, got %q", res.AutoSelect)
		}
	})

	t.Run("hides chooser for a single option under hiding mode", func(t *testing.T) {
		cfg := shipping.Config{Hiding: shipping.HideAlways}
		shippers := []shipping.Shipper{
			fakeShipper{key: "Standard", cost: money.MustParse("5.00"), valid: true},
		}
		resolver := shipping.NewResolver(cfg, logger, shippers...)

		res := resolver.Options(ctx, shipping.Request{Cart: shippableCart()})

		if !res.HideChooser {
			t.Error("expected chooser hidden")
		}
		if res.AutoSelect != "Standard" {
			t.Errorf("expected Standard auto-selected, got %q", res.AutoSelect)
		}
	})

	t.Run("keeps chooser visible for a single option by default", func(t *testing.T) {
		shippers := []shipping.Shipper{
			fakeShipper{key: "Standard", cost: money.MustParse("5.00"), valid: true},
		}
		resolver := shipping.NewResolver(shipping.Config{}, logger, shippers...)

		res := resolver.Options(ctx, shipping.Request{Cart: shippableCart()})

		if res.HideChooser {
			t.Error("expected chooser visible")
		}
	})

	t.Run("freezes prior choice on a partially paid order", func(t *testing.T) {
		resolver := shipping.NewResolver(shipping.Config{}, logger, testShippers()...)

		res := resolver.Options(ctx, shipping.Request{
			Cart:          shippableCart(),
			FrozenMethod:  "Priority",
			PartiallyPaid: true,
		})

		if len(res.Options) != 1 || res.Options[0].Key != "Priority" {
			t.Fatalf("expected only Priority, got %+v", res.Options)
		}
		if !res.HideChooser {
			t.Error("expected chooser hidden")
		}
		if !res.Options[0].Final.Equal(money.MustParse("8.00")) {
			t.Errorf("expected frozen cost 8.00, got %s", res.Options[0].Final)
		}
	})
}

func TestResolverCheapestChosen(t *testing.T) {
	ctx := context.Background()
	resolver := shipping.NewResolver(shipping.Config{}, slog.Default(), testShippers()...)
	req := shipping.Request{Cart: shippableCart()}

	if !resolver.CheapestChosen(ctx, req, "Standard") {
		t.Error("expected Standard to be the cheapest")
	}
	if resolver.CheapestChosen(ctx, req, "Express") {
		t.Error("expected Express not to be the cheapest")
	}
}
