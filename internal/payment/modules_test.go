package payment

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/predatell/satchmo/internal/money"
	"github.com/predatell/satchmo/internal/orders/domain"
	"github.com/predatell/satchmo/internal/orders/ports"
	"github.com/predatell/satchmo/internal/product"
)

func testOrder(total string) *domain.Order {
	return &domain.Order{
		ID:      "order-1",
		Site:    "shop",
		Contact: domain.Contact{ID: "contact-1", Email: "jane@example.com"},
		Total:   money.MustParse(total),
	}
}

func newTestRecorder() *Recorder {
	return NewRecorder(&mockStore{}, slog.Default(), fixedClock)
}

func TestDummyCapture(t *testing.T) {
	ctx := context.Background()

	t.Run("approves by default", func(t *testing.T) {
		dummy := NewDummy(newTestRecorder())
		order := testOrder("25.00")

		result := dummy.Capture(ctx, order, nil)

		if !result.Success {
			t.Fatalf("expected success, got %q", result.Message)
		}
		if !result.Payment.Amount.Equal(money.MustParse("25.00")) {
			t.Errorf("expected 25.00 captured, got %s", result.Payment.Amount)
		}
		if !order.PaidInFull() {
			t.Error("expected order paid in full")
		}
	})

	t.Run("declines configured amounts", func(t *testing.T) {
		dummy := NewDummy(newTestRecorder(), money.MustParse("13.00"))
		order := testOrder("13.00")

		result := dummy.Capture(ctx, order, nil)

		if result.Success {
			t.Fatal("expected decline")
		}
		if result.ReasonCode != "DECLINED" {
			t.Errorf("expected DECLINED, got %q", result.ReasonCode)
		}
		if len(order.Failures) != 1 {
			t.Errorf("expected failure recorded, got %d", len(order.Failures))
		}
		if order.TotalPaid().IsPositive() {
			t.Error("declined capture must not affect paid total")
		}
	})

	t.Run("captures an explicit partial amount", func(t *testing.T) {
		dummy := NewDummy(newTestRecorder())
		order := testOrder("50.00")
		amt := money.MustParse("20.00")

		result := dummy.Capture(ctx, order, &amt)

		if !result.Success {
			t.Fatalf("expected success, got %q", result.Message)
		}
		if !order.IsPartiallyPaid() {
			t.Error("expected partially paid order")
		}
		if !order.Balance().Equal(money.MustParse("30.00")) {
			t.Errorf("expected 30.00 remaining, got %s", order.Balance())
		}
	})
}

func TestDummyAuthorize(t *testing.T) {
	ctx := context.Background()
	dummy := NewDummy(newTestRecorder())
	order := testOrder("40.00")

	result := dummy.Authorize(ctx, order, nil)
	if !result.Success {
		t.Fatalf("expected authorization, got %q", result.Message)
	}
	if !order.AuthorizedRemaining().Equal(money.MustParse("40.00")) {
		t.Errorf("expected 40.00 authorized, got %s", order.AuthorizedRemaining())
	}

	capture := dummy.CaptureAuthorization(ctx, order, order.Authorizations[0])
	if !capture.Success {
		t.Fatalf("expected capture, got %q", capture.Message)
	}
	if !order.PaidInFull() {
		t.Error("expected order paid in full after capture")
	}
	if order.AuthorizedRemaining().IsPositive() {
		t.Error("expected no remaining authorizations")
	}
}

func TestDummyCreateSubscription(t *testing.T) {
	ctx := context.Background()
	dummy := NewDummy(newTestRecorder())

	t.Run("stores a reference per subscription line", func(t *testing.T) {
		order := testOrder("30.00")
		order.Items = []domain.OrderItem{
			{ID: "item-1", Product: product.Product{Slug: "membership", Kind: product.Subscription}},
			{ID: "item-2", Product: product.Product{Slug: "book", Kind: product.Physical}},
		}

		result := dummy.CreateSubscription(ctx, order)

		if !result.Success {
			t.Fatalf("expected success, got %q", result.Message)
		}
		if order.Variable("SUBSCRIPTION_item-1", "") == "" {
			t.Error("expected a subscription reference for item-1")
		}
		if order.Variable("SUBSCRIPTION_item-2", "") != "" {
			t.Error("physical line must not get a subscription reference")
		}
	})

	t.Run("refuses an order with no recurring lines", func(t *testing.T) {
		order := testOrder("30.00")
		order.Items = []domain.OrderItem{
			{ID: "item-1", Product: product.Product{Slug: "book", Kind: product.Physical}},
		}

		if result := dummy.CreateSubscription(ctx, order); result.Success {
			t.Fatal("expected refusal")
		}
	})
}

func TestFreeCapture(t *testing.T) {
	ctx := context.Background()

	t.Run("records a zero payment for a zero balance", func(t *testing.T) {
		free := NewFree(newTestRecorder())
		order := testOrder("0.00")

		result := free.Capture(ctx, order, nil)

		if !result.Success {
			t.Fatalf("expected success, got %q", result.Message)
		}
		if !result.Payment.Amount.IsZero() {
			t.Errorf("expected zero payment, got %s", result.Payment.Amount)
		}
	})

	t.Run("refuses an order with a balance", func(t *testing.T) {
		free := NewFree(newTestRecorder())
		order := testOrder("10.00")

		result := free.Capture(ctx, order, nil)

		if result.Success {
			t.Fatal("expected refusal")
		}
		if result.Message != "This order does not have a zero balance" {
			t.Errorf("unexpected message %q", result.Message)
		}
	})
}

func TestPurchaseOrderCapture(t *testing.T) {
	ctx := context.Background()

	t.Run("records the balance against the PO number", func(t *testing.T) {
		po := NewPurchaseOrder(newTestRecorder())
		order := testOrder("99.00")
		order.SetVariable(PONumberKey, "PO-2026-001")

		result := po.Capture(ctx, order, nil)

		if !result.Success {
			t.Fatalf("expected success, got %q", result.Message)
		}
		if result.Payment.TransactionID != "PO" {
			t.Errorf("expected transaction PO, got %q", result.Payment.TransactionID)
		}
		if !order.PaidInFull() {
			t.Error("expected order paid in full")
		}
	})

	t.Run("requires a PO number", func(t *testing.T) {
		po := NewPurchaseOrder(newTestRecorder())
		order := testOrder("99.00")

		result := po.Capture(ctx, order, nil)

		if result.Success {
			t.Fatal("expected refusal without a PO number")
		}
	})
}

type mockCertRepo struct {
	getByCodeFn func(ctx context.Context, site, code string) (*domain.GiftCertificate, error)
	createFn    func(ctx context.Context, cert domain.GiftCertificate) error
	addUsageFn  func(ctx context.Context, code string, usage domain.GiftCertificateUsage) error
}

func (m *mockCertRepo) GetByCode(ctx context.Context, site, code string) (*domain.GiftCertificate, error) {
	if m.getByCodeFn != nil {
		return m.getByCodeFn(ctx, site, code)
	}
	return nil, ports.ErrNotFound
}

func (m *mockCertRepo) Create(ctx context.Context, cert domain.GiftCertificate) error {
	if m.createFn != nil {
		return m.createFn(ctx, cert)
	}
	return nil
}

func (m *mockCertRepo) AddUsage(ctx context.Context, code string, usage domain.GiftCertificateUsage) error {
	if m.addUsageFn != nil {
		return m.addUsageFn(ctx, code, usage)
	}
	return nil
}

func TestGiftCertificateCapture(t *testing.T) {
	ctx := context.Background()

	newCert := func(balance string) *domain.GiftCertificate {
		return &domain.GiftCertificate{
			ID:           "cert-1",
			Site:         "shop",
			Code:         "GIFT-CODE",
			StartBalance: money.MustParse(balance),
			Valid:        true,
		}
	}

	t.Run("covers the full balance when funded", func(t *testing.T) {
		certs := &mockCertRepo{
			getByCodeFn: func(_ context.Context, _, _ string) (*domain.GiftCertificate, error) {
				return newCert("100.00"), nil
			},
		}
		proc := NewGiftCertificateProcessor(certs, newTestRecorder(), slog.Default(), fixedClock)
		order := testOrder("50.00")
		order.SetVariable(domain.GiftCodeKey, "GIFT-CODE")

		result := proc.Capture(ctx, order, nil)

		if !result.Success {
			t.Fatalf("expected success, got %q", result.Message)
		}
		if !order.PaidInFull() {
			t.Error("expected order paid in full")
		}
	})

	t.Run("pays partially from an underfunded certificate", func(t *testing.T) {
		var usage domain.GiftCertificateUsage
		certs := &mockCertRepo{
			getByCodeFn: func(_ context.Context, _, _ string) (*domain.GiftCertificate, error) {
				return newCert("20.00"), nil
			},
			addUsageFn: func(_ context.Context, _ string, u domain.GiftCertificateUsage) error {
				usage = u
				return nil
			},
		}
		proc := NewGiftCertificateProcessor(certs, newTestRecorder(), slog.Default(), fixedClock)
		order := testOrder("50.00")
		order.SetVariable(domain.GiftCodeKey, "GIFT-CODE")

		result := proc.Capture(ctx, order, nil)

		if !result.Success {
			t.Fatalf("expected success, got %q", result.Message)
		}
		if !result.Payment.Amount.Equal(money.MustParse("20.00")) {
			t.Errorf("expected 20.00 captured, got %s", result.Payment.Amount)
		}
		if !usage.BalanceUsed.Equal(money.MustParse("20.00")) {
			t.Errorf("expected ledger entry of 20.00, got %s", usage.BalanceUsed)
		}
		if !order.IsPartiallyPaid() {
			t.Error("expected partially paid order")
		}
		if !order.Balance().Equal(money.MustParse("30.00")) {
			t.Errorf("expected 30.00 remaining, got %s", order.Balance())
		}
	})

	t.Run("refuses a drained certificate", func(t *testing.T) {
		cert := newCert("20.00")
		cert.Use("usage-1", money.MustParse("20.00"), "payment-0", fixedClock())
		certs := &mockCertRepo{
			getByCodeFn: func(_ context.Context, _, _ string) (*domain.GiftCertificate, error) {
				return cert, nil
			},
		}
		proc := NewGiftCertificateProcessor(certs, newTestRecorder(), slog.Default(), fixedClock)
		order := testOrder("50.00")
		order.SetVariable(domain.GiftCodeKey, "GIFT-CODE")

		result := proc.Capture(ctx, order, nil)

		if result.Success {
			t.Fatal("expected refusal")
		}
	})

	t.Run("refuses an unknown code", func(t *testing.T) {
		proc := NewGiftCertificateProcessor(&mockCertRepo{}, newTestRecorder(), slog.Default(), fixedClock)
		order := testOrder("50.00")
		order.SetVariable(domain.GiftCodeKey, "NOPE")

		result := proc.Capture(ctx, order, nil)

		if result.Success {
			t.Fatal("expected refusal")
		}
	})
}

func TestIssueCertificates(t *testing.T) {
	ctx := context.Background()

	var created []domain.GiftCertificate
	certs := &mockCertRepo{
		createFn: func(_ context.Context, cert domain.GiftCertificate) error {
			created = append(created, cert)
			return nil
		},
	}
	proc := NewGiftCertificateProcessor(certs, newTestRecorder(), slog.Default(), fixedClock)

	order := testOrder("60.00")
	order.Items = []domain.OrderItem{
		{
			Product:   product.Product{Slug: "gift-25", Kind: product.GiftCertificate},
			Quantity:  2,
			UnitPrice: money.MustParse("25.00"),
		},
		{
			Product:   product.Product{Slug: "dj-rocks", Kind: product.Physical},
			Quantity:  1,
			UnitPrice: money.MustParse("10.00"),
		},
	}

	if err := proc.IssueCertificates(ctx, order); err != nil {
		t.Fatalf("IssueCertificates() failed: %v", err)
	}

	if len(created) != 2 {
		t.Fatalf("expected 2 certificates, got %d", len(created))
	}
	for _, cert := range created {
		if !cert.StartBalance.Equal(money.MustParse("25.00")) {
			t.Errorf("expected balance 25.00, got %s", cert.StartBalance)
		}
		if !cert.Valid {
			t.Error("expected issued certificate valid")
		}
		if cert.Code == "" || strings.Contains(cert.Code, " ") {
			t.Errorf("unexpected code %q", cert.Code)
		}
	}
	if created[0].Code == created[1].Code {
		t.Error("expected distinct codes")
	}
}

func TestRegistry(t *testing.T) {
	recorder := newTestRecorder()
	registry := NewRegistry(NewDummy(recorder), NewFree(recorder), NewPurchaseOrder(recorder))

	t.Run("looks up registered modules", func(t *testing.T) {
		p, ok := registry.Get(FreeKey)
		if !ok {
			t.Fatal("expected FREE module")
		}
		if p.Key() != FreeKey {
			t.Errorf("expected key FREE, got %q", p.Key())
		}
	})

	t.Run("reports missing modules", func(t *testing.T) {
		if _, ok := registry.Get("NOPE"); ok {
			t.Error("expected lookup miss")
		}
	})

	t.Run("preserves registration order", func(t *testing.T) {
		keys := registry.Keys()
		want := []string{DummyKey, FreeKey, PurchaseOrderKey}
		if len(keys) != len(want) {
			t.Fatalf("expected %d keys, got %d", len(want), len(keys))
		}
		for i := range want {
			if keys[i] != want[i] {
				t.Errorf("key %d: expected %q, got %q", i, want[i], keys[i])
			}
		}
	})

	t.Run("dummy module supports authorizations", func(t *testing.T) {
		p, _ := registry.Get(DummyKey)
		if _, ok := p.(Authorizer); !ok {
			t.Error("expected the dummy module to implement Authorizer")
		}
	})

	t.Run("free module does not support authorizations", func(t *testing.T) {
		p, _ := registry.Get(FreeKey)
		if _, ok := p.(Authorizer); ok {
			t.Error("expected the free module not to implement Authorizer")
		}
	})
}
