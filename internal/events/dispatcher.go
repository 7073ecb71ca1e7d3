package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/predatell/satchmo/internal/orders/domain"
)

// SanityCheckFunc vets an order before confirmation proceeds. Any error
// vetoes the confirmation.
type SanityCheckFunc func(ctx context.Context, order *domain.Order) error

// OrderSuccessFunc reacts to an order reaching full payment.
type OrderSuccessFunc func(ctx context.Context, order *domain.Order) error

// PaymentRecordedFunc reacts to a payment row being written.
type PaymentRecordedFunc func(ctx context.Context, order *domain.Order, payment domain.OrderPayment) error

// Dispatcher invokes registered listeners synchronously, in registration
// order. All listeners are wired explicitly at startup so nothing fires
// that main did not hook up.
type Dispatcher struct {
	sanityChecks    []SanityCheckFunc
	orderSuccess    []OrderSuccessFunc
	paymentRecorded []PaymentRecordedFunc
	logger          *slog.Logger
	metrics         *Metrics
}

// NewDispatcher returns an empty dispatcher. Metrics may be nil.
func NewDispatcher(logger *slog.Logger, metrics *Metrics) *Dispatcher {
	return &Dispatcher{logger: logger, metrics: metrics}
}

// RegisterSanityCheck adds a pre-confirmation check.
func (d *Dispatcher) RegisterSanityCheck(fn SanityCheckFunc) {
	d.sanityChecks = append(d.sanityChecks, fn)
}

// RegisterOrderSuccess adds an order-success listener.
func (d *Dispatcher) RegisterOrderSuccess(fn OrderSuccessFunc) {
	d.orderSuccess = append(d.orderSuccess, fn)
}

// RegisterPaymentRecorded adds a payment-recorded listener.
func (d *Dispatcher) RegisterPaymentRecorded(fn PaymentRecordedFunc) {
	d.paymentRecorded = append(d.paymentRecorded, fn)
}

// SanityCheck runs every registered check and stops at the first veto.
func (d *Dispatcher) SanityCheck(ctx context.Context, order *domain.Order) error {
	start := time.Now()
	for _, fn := range d.sanityChecks {
		if err := fn(ctx, order); err != nil {
			d.record(ctx, "sanity_check", start, false)
			return err
		}
	}
	d.record(ctx, "sanity_check", start, true)
	return nil
}

// PublishOrderSuccess notifies success listeners. Listener errors are
// logged, not propagated: the payment has already been taken and the
// confirmation must not fail after the fact.
func (d *Dispatcher) PublishOrderSuccess(ctx context.Context, order *domain.Order) error {
	start := time.Now()
	ok := true
	for _, fn := range d.orderSuccess {
		if err := fn(ctx, order); err != nil {
			ok = false
			d.logger.ErrorContext(ctx, "order success listener failed",
				"order_id", order.ID, "error", err)
		}
	}
	d.record(ctx, "order_success", start, ok)
	return nil
}

// PublishPaymentRecorded notifies payment listeners. Errors are logged,
// not propagated.
func (d *Dispatcher) PublishPaymentRecorded(ctx context.Context, order *domain.Order, payment domain.OrderPayment) error {
	start := time.Now()
	ok := true
	for _, fn := range d.paymentRecorded {
		if err := fn(ctx, order, payment); err != nil {
			ok = false
			d.logger.ErrorContext(ctx, "payment recorded listener failed",
				"order_id", order.ID, "payment_id", payment.ID, "error", err)
		}
	}
	d.record(ctx, "payment_recorded", start, ok)
	return nil
}

func (d *Dispatcher) record(ctx context.Context, event string, start time.Time, success bool) {
	if d.metrics == nil {
		return
	}
	d.metrics.RecordDispatch(ctx, event, time.Since(start).Seconds(), success)
}
