package payment

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/predatell/satchmo/internal/orders/domain"
)

// DummyKey identifies the test gateway.
const DummyKey = "DUMMY"

// Dummy is a gateway stand-in for development and tests. It approves
// every capture except amounts it was configured to decline, so failure
// paths stay reproducible.
type Dummy struct {
	recorder  *Recorder
	declineOn []decimal.Decimal
}

// NewDummy builds the test gateway. Captures matching any declineOn
// amount fail with reason code "DECLINED".
func NewDummy(recorder *Recorder, declineOn ...decimal.Decimal) *Dummy {
	return &Dummy{recorder: recorder, declineOn: declineOn}
}

func (d *Dummy) Key() string { return DummyKey }

func (d *Dummy) Prepare(_ context.Context, _ *domain.Order) error { return nil }

func (d *Dummy) Capture(ctx context.Context, order *domain.Order, amount *decimal.Decimal) Result {
	amt := order.Balance()
	if amount != nil {
		amt = *amount
	}

	for _, bad := range d.declineOn {
		if amt.Equal(bad) {
			_, err := d.recorder.RecordFailure(ctx, order, DummyKey, amt, "DECLINED", "simulated decline")
			if err != nil {
				return Result{Processor: DummyKey, Message: err.Error()}
			}
			return Result{Processor: DummyKey, Message: "Declined", ReasonCode: "DECLINED"}
		}
	}

	payment, err := d.recorder.RecordPayment(ctx, order, DummyKey, amt, uuid.NewString(), "0")
	if err != nil {
		return Result{Processor: DummyKey, Message: err.Error()}
	}
	return Result{Processor: DummyKey, Success: true, Payment: &payment}
}

// Authorize places a simulated hold.
func (d *Dummy) Authorize(ctx context.Context, order *domain.Order, amount *decimal.Decimal) Result {
	amt := order.Balance()
	if amount != nil {
		amt = *amount
	}

	auth, err := d.recorder.RecordAuthorization(ctx, order, DummyKey, amt, uuid.NewString())
	if err != nil {
		return Result{Processor: DummyKey, Message: err.Error()}
	}
	return Result{Processor: DummyKey, Success: true, Message: fmt.Sprintf("authorized %s", auth.Amount)}
}

// CaptureAuthorization settles a simulated hold.
func (d *Dummy) CaptureAuthorization(ctx context.Context, order *domain.Order, auth domain.OrderAuthorization) Result {
	payment, err := d.recorder.RecordPayment(ctx, order, DummyKey, auth.Amount, auth.TransactionID, "0")
	if err != nil {
		return Result{Processor: DummyKey, Message: err.Error()}
	}
	order.CompleteAuthorization(auth.ID)
	return Result{Processor: DummyKey, Success: true, Payment: &payment}
}

// ReleaseAuthorization voids a simulated hold.
func (d *Dummy) ReleaseAuthorization(_ context.Context, order *domain.Order, auth domain.OrderAuthorization) error {
	order.CompleteAuthorization(auth.ID)
	return nil
}

// CreateSubscription simulates setting up recurring billing: it stores a
// subscription reference for every recurring line so renewal charges can
// find it later.
func (d *Dummy) CreateSubscription(_ context.Context, order *domain.Order) Result {
	created := 0
	for _, item := range order.Items {
		if !item.Product.IsSubscription() {
			continue
		}
		order.SetVariable(
			fmt.Sprintf("SUBSCRIPTION_%s", item.ID),
			fmt.Sprintf("dummy-sub-%s", uuid.NewString()),
		)
		created++
	}
	if created == 0 {
		return Result{Processor: DummyKey, Message: "no subscription products on order"}
	}
	return Result{
		Processor: DummyKey,
		Success:   true,
		Message:   fmt.Sprintf("created %d subscription(s)", created),
	}
}
