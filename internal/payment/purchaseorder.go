package payment

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/predatell/satchmo/internal/orders/domain"
)

// PurchaseOrderKey identifies the purchase order processor.
const PurchaseOrderKey = "PURCHASEORDER"

// PONumberKey is the order variable holding the customer's PO number.
const PONumberKey = "PONUMBER"

// PurchaseOrder accepts a purchase order number in lieu of payment and
// records the full balance as paid. Collection happens offline.
type PurchaseOrder struct {
	recorder *Recorder
}

// NewPurchaseOrder builds the purchase order processor.
func NewPurchaseOrder(recorder *Recorder) *PurchaseOrder {
	return &PurchaseOrder{recorder: recorder}
}

func (p *PurchaseOrder) Key() string { return PurchaseOrderKey }

func (p *PurchaseOrder) Prepare(_ context.Context, _ *domain.Order) error { return nil }

func (p *PurchaseOrder) Capture(ctx context.Context, order *domain.Order, amount *decimal.Decimal) Result {
	if order.Variable(PONumberKey, "") == "" {
		return Result{Processor: PurchaseOrderKey, Message: "No purchase order number given"}
	}

	amt := order.Balance()
	if amount != nil {
		amt = *amount
	}

	payment, err := p.recorder.RecordPayment(ctx, order, PurchaseOrderKey, amt, "PO", "0")
	if err != nil {
		return Result{Processor: PurchaseOrderKey, Message: err.Error()}
	}
	return Result{Processor: PurchaseOrderKey, Success: true, Payment: &payment}
}
