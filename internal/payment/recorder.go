package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/predatell/satchmo/internal/money"
	"github.com/predatell/satchmo/internal/orders/domain"
	"github.com/predatell/satchmo/internal/orders/ports"
)

// Store is the slice of persistence the recorder needs.
type Store interface {
	SavePayment(ctx context.Context, payment domain.OrderPayment) error
	SaveAuthorization(ctx context.Context, auth domain.OrderAuthorization) error
	SaveFailure(ctx context.Context, failure domain.OrderPaymentFailure) error
}

// Recorder writes payment outcomes. Recording is idempotent on the
// (processor, transaction id) pair: replaying a gateway callback returns
// the already-recorded payment instead of a second row.
type Recorder struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// NewRecorder builds a recorder. clock may be nil to use wall time.
func NewRecorder(store Store, logger *slog.Logger, clock func() time.Time) *Recorder {
	if clock == nil {
		clock = time.Now
	}
	return &Recorder{store: store, logger: logger, now: clock}
}

// RecordPayment persists a successful payment and appends it to the
// order aggregate.
func (r *Recorder) RecordPayment(ctx context.Context, order *domain.Order, processor string, amount decimal.Decimal, transactionID, reasonCode string) (domain.OrderPayment, error) {
	if transactionID != "" {
		if existing, ok := order.PaymentByTransaction(processor, transactionID); ok {
			r.logger.InfoContext(ctx, "payment already recorded",
				"order_id", order.ID, "processor", processor, "transaction_id", transactionID)
			return existing, nil
		}
	}

	payment := domain.OrderPayment{
		ID:            uuid.NewString(),
		OrderID:       order.ID,
		Processor:     processor,
		Amount:        money.RoundCents(amount),
		TransactionID: transactionID,
		ReasonCode:    reasonCode,
		CreatedAt:     r.now(),
	}

	if err := r.store.SavePayment(ctx, payment); err != nil {
		if errors.Is(err, ports.ErrDuplicateTransaction) {
			if existing, ok := order.PaymentByTransaction(processor, transactionID); ok {
				return existing, nil
			}
			return payment, nil
		}
		return domain.OrderPayment{}, fmt.Errorf("save payment: %w", err)
	}

	order.Payments = append(order.Payments, payment)
	return payment, nil
}

// RecordAuthorization persists an authorization hold.
func (r *Recorder) RecordAuthorization(ctx context.Context, order *domain.Order, processor string, amount decimal.Decimal, transactionID string) (domain.OrderAuthorization, error) {
	auth := domain.OrderAuthorization{
		ID:            uuid.NewString(),
		OrderID:       order.ID,
		Processor:     processor,
		Amount:        money.RoundCents(amount),
		TransactionID: transactionID,
		CreatedAt:     r.now(),
	}

	if err := r.store.SaveAuthorization(ctx, auth); err != nil {
		return domain.OrderAuthorization{}, fmt.Errorf("save authorization: %w", err)
	}

	order.Authorizations = append(order.Authorizations, auth)
	return auth, nil
}

// RecordFailure persists a declined attempt for later review. The order
// total is never affected.
func (r *Recorder) RecordFailure(ctx context.Context, order *domain.Order, processor string, amount decimal.Decimal, reasonCode, details string) (domain.OrderPaymentFailure, error) {
	failure := domain.OrderPaymentFailure{
		ID:         uuid.NewString(),
		OrderID:    order.ID,
		Processor:  processor,
		Amount:     money.RoundCents(amount),
		ReasonCode: reasonCode,
		Details:    details,
		CreatedAt:  r.now(),
	}

	if err := r.store.SaveFailure(ctx, failure); err != nil {
		return domain.OrderPaymentFailure{}, fmt.Errorf("save payment failure: %w", err)
	}

	order.Failures = append(order.Failures, failure)
	return failure, nil
}
