package payment

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/predatell/satchmo/internal/money"
	"github.com/predatell/satchmo/internal/orders/domain"
)

// FreeKey identifies the zero-balance processor.
const FreeKey = "FREE"

// Free handles orders whose balance is already zero, typically after
// discounts or gift certificates covered the full total. It refuses any
// order still carrying a balance.
type Free struct {
	recorder *Recorder
}

// NewFree builds the zero-balance processor.
func NewFree(recorder *Recorder) *Free {
	return &Free{recorder: recorder}
}

func (f *Free) Key() string { return FreeKey }

func (f *Free) Prepare(_ context.Context, _ *domain.Order) error { return nil }

func (f *Free) Capture(ctx context.Context, order *domain.Order, _ *decimal.Decimal) Result {
	if order.Balance().IsPositive() {
		return Result{Processor: FreeKey, Message: "This order does not have a zero balance"}
	}

	// The fixed transaction id makes a repeated confirmation of the same
	// order a no-op instead of a second zero row.
	payment, err := f.recorder.RecordPayment(ctx, order, FreeKey, money.Zero, "FREE", "0")
	if err != nil {
		return Result{Processor: FreeKey, Message: err.Error()}
	}
	return Result{Processor: FreeKey, Success: true, Payment: &payment}
}
