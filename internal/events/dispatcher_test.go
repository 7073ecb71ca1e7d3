package events

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/predatell/satchmo/internal/orders/domain"
)

func TestDispatcherSanityCheck(t *testing.T) {
	ctx := context.Background()
	order := &domain.Order{ID: "order-1"}

	t.Run("passes when no checks are registered", func(t *testing.T) {
		d := NewDispatcher(slog.Default(), nil)

		if err := d.SanityCheck(ctx, order); err != nil {
			t.Fatalf("SanityCheck() failed: %v", err)
		}
	})

	t.Run("runs checks in registration order", func(t *testing.T) {
		d := NewDispatcher(slog.Default(), nil)

		var calls []string
		d.RegisterSanityCheck(func(_ context.Context, _ *domain.Order) error {
			calls = append(calls, "first")
			return nil
		})
		d.RegisterSanityCheck(func(_ context.Context, _ *domain.Order) error {
			calls = append(calls, "second")
			return nil
		})

		if err := d.SanityCheck(ctx, order); err != nil {
			t.Fatalf("SanityCheck() failed: %v", err)
		}
		if len(calls) != 2 || calls[0] != "first" || calls[1] != "second" {
			t.Errorf("unexpected call order: %v", calls)
		}
	})

	t.Run("stops at the first veto", func(t *testing.T) {
		d := NewDispatcher(slog.Default(), nil)
		veto := errors.New("cart is empty")

		secondRan := false
		d.RegisterSanityCheck(func(_ context.Context, _ *domain.Order) error {
			return veto
		})
		d.RegisterSanityCheck(func(_ context.Context, _ *domain.Order) error {
			secondRan = true
			return nil
		})

		if err := d.SanityCheck(ctx, order); !errors.Is(err, veto) {
			t.Fatalf("expected veto error, got %v", err)
		}
		if secondRan {
			t.Error("expected second check to be skipped")
		}
	})
}

func TestDispatcherPublish(t *testing.T) {
	ctx := context.Background()
	order := &domain.Order{ID: "order-1"}
	payment := domain.OrderPayment{ID: "payment-1", OrderID: "order-1"}

	t.Run("notifies all success listeners despite failures", func(t *testing.T) {
		d := NewDispatcher(slog.Default(), nil)

		secondRan := false
		d.RegisterOrderSuccess(func(_ context.Context, _ *domain.Order) error {
			return errors.New("mail server down")
		})
		d.RegisterOrderSuccess(func(_ context.Context, _ *domain.Order) error {
			secondRan = true
			return nil
		})

		if err := d.PublishOrderSuccess(ctx, order); err != nil {
			t.Fatalf("PublishOrderSuccess() failed: %v", err)
		}
		if !secondRan {
			t.Error("expected second listener to run")
		}
	})

	t.Run("passes the payment to payment listeners", func(t *testing.T) {
		d := NewDispatcher(slog.Default(), nil)

		var got domain.OrderPayment
		d.RegisterPaymentRecorded(func(_ context.Context, _ *domain.Order, p domain.OrderPayment) error {
			got = p
			return nil
		})

		if err := d.PublishPaymentRecorded(ctx, order, payment); err != nil {
			t.Fatalf("PublishPaymentRecorded() failed: %v", err)
		}
		if got.ID != payment.ID {
			t.Errorf("expected payment %q, got %q", payment.ID, got.ID)
		}
	})
}
