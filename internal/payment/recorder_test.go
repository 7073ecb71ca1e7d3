package payment

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/predatell/satchmo/internal/money"
	"github.com/predatell/satchmo/internal/orders/domain"
	"github.com/predatell/satchmo/internal/orders/ports"
)

type mockStore struct {
	savePaymentFn       func(ctx context.Context, payment domain.OrderPayment) error
	saveAuthorizationFn func(ctx context.Context, auth domain.OrderAuthorization) error
	saveFailureFn       func(ctx context.Context, failure domain.OrderPaymentFailure) error
}

func (m *mockStore) SavePayment(ctx context.Context, payment domain.OrderPayment) error {
	if m.savePaymentFn != nil {
		return m.savePaymentFn(ctx, payment)
	}
	return nil
}

func (m *mockStore) SaveAuthorization(ctx context.Context, auth domain.OrderAuthorization) error {
	if m.saveAuthorizationFn != nil {
		return m.saveAuthorizationFn(ctx, auth)
	}
	return nil
}

func (m *mockStore) SaveFailure(ctx context.Context, failure domain.OrderPaymentFailure) error {
	if m.saveFailureFn != nil {
		return m.saveFailureFn(ctx, failure)
	}
	return nil
}

func fixedClock() time.Time {
	return time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)
}

func TestRecordPayment(t *testing.T) {
	ctx := context.Background()

	t.Run("persists and appends a new payment", func(t *testing.T) {
		var saved domain.OrderPayment
		store := &mockStore{
			savePaymentFn: func(_ context.Context, p domain.OrderPayment) error {
				saved = p
				return nil
			},
		}
		recorder := NewRecorder(store, slog.Default(), fixedClock)
		order := &domain.Order{ID: "order-1"}

		payment, err := recorder.RecordPayment(ctx, order, "DUMMY", money.MustParse("12.345"), "txn-1", "0")
		if err != nil {
			t.Fatalf("RecordPayment() failed: %v", err)
		}

		if !payment.Amount.Equal(money.MustParse("12.34")) {
			t.Errorf("expected amount rounded to 12.34, got %s", payment.Amount)
		}
		if saved.ID != payment.ID {
			t.Errorf("expected saved payment %q, got %q", payment.ID, saved.ID)
		}
		if len(order.Payments) != 1 {
			t.Errorf("expected payment appended to order, got %d", len(order.Payments))
		}
	})

	t.Run("replaying a transaction returns the original row", func(t *testing.T) {
		calls := 0
		store := &mockStore{
			savePaymentFn: func(_ context.Context, _ domain.OrderPayment) error {
				calls++
				return nil
			},
		}
		recorder := NewRecorder(store, slog.Default(), fixedClock)
		order := &domain.Order{ID: "order-1"}

		first, err := recorder.RecordPayment(ctx, order, "DUMMY", money.MustParse("10.00"), "txn-1", "0")
		if err != nil {
			t.Fatalf("RecordPayment() failed: %v", err)
		}
		second, err := recorder.RecordPayment(ctx, order, "DUMMY", money.MustParse("10.00"), "txn-1", "0")
		if err != nil {
			t.Fatalf("RecordPayment() replay failed: %v", err)
		}

		if first.ID != second.ID {
			t.Errorf("expected the original payment back, got %q vs %q", first.ID, second.ID)
		}
		if calls != 1 {
			t.Errorf("expected 1 save, got %d", calls)
		}
		if len(order.Payments) != 1 {
			t.Errorf("expected 1 payment on order, got %d", len(order.Payments))
		}
	})

	t.Run("duplicate rejected by the store is not treated as an error", func(t *testing.T) {
		store := &mockStore{
			savePaymentFn: func(_ context.Context, _ domain.OrderPayment) error {
				return ports.ErrDuplicateTransaction
			},
		}
		recorder := NewRecorder(store, slog.Default(), fixedClock)
		order := &domain.Order{ID: "order-1"}

		payment, err := recorder.RecordPayment(ctx, order, "DUMMY", money.MustParse("10.00"), "txn-1", "0")
		if err != nil {
			t.Fatalf("RecordPayment() failed: %v", err)
		}
		if payment.TransactionID != "txn-1" {
			t.Errorf("expected txn-1, got %q", payment.TransactionID)
		}
	})

	t.Run("propagates store errors", func(t *testing.T) {
		storeErr := errors.New("connection lost")
		store := &mockStore{
			savePaymentFn: func(_ context.Context, _ domain.OrderPayment) error {
				return storeErr
			},
		}
		recorder := NewRecorder(store, slog.Default(), fixedClock)
		order := &domain.Order{ID: "order-1"}

		_, err := recorder.RecordPayment(ctx, order, "DUMMY", money.MustParse("10.00"), "txn-1", "0")
		if !errors.Is(err, storeErr) {
			t.Fatalf("expected store error, got %v", err)
		}
		if len(order.Payments) != 0 {
			t.Errorf("expected no payment appended on failure, got %d", len(order.Payments))
		}
	})
}

func TestRecordFailure(t *testing.T) {
	ctx := context.Background()

	t.Run("persists the failure without touching payments", func(t *testing.T) {
		var saved domain.OrderPaymentFailure
		store := &mockStore{
			saveFailureFn: func(_ context.Context, f domain.OrderPaymentFailure) error {
				saved = f
				return nil
			},
		}
		recorder := NewRecorder(store, slog.Default(), fixedClock)
		order := &domain.Order{ID: "order-1"}

		failure, err := recorder.RecordFailure(ctx, order, "STRIPE", money.MustParse("25.00"), "card_declined", "insufficient funds")
		if err != nil {
			t.Fatalf("RecordFailure() failed: %v", err)
		}

		if saved.ReasonCode != "card_declined" {
			t.Errorf("expected reason card_declined, got %q", saved.ReasonCode)
		}
		if failure.Details != "insufficient funds" {
			t.Errorf("expected details preserved, got %q", failure.Details)
		}
		if len(order.Payments) != 0 {
			t.Error("failures must not create payments")
		}
		if len(order.Failures) != 1 {
			t.Errorf("expected failure appended, got %d", len(order.Failures))
		}
	})
}
