// Package domain holds the order aggregate and the records of money moving
// against it. Monetary invariants live here; persistence and gateway concerns
// stay in the adapters.
package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/predatell/satchmo/internal/money"
	"github.com/predatell/satchmo/internal/product"
)

// Well-known status labels. The status field is free text so stores can add
// their own workflow states; these are the ones checkout itself writes.
const (
	StatusUnprocessed = ""
	StatusNew         = "New"
	StatusProcessing  = "Processing"
	StatusShipped     = "Shipped"
	StatusCanceled    = "Canceled"
)

const submittedNote = "Order successfully submitted"

var (
	// ErrNegativeBalance signals a computed balance below zero, which is a
	// programming error rather than a recoverable condition.
	ErrNegativeBalance = errors.New("order balance is negative")
)

// Contact identifies the customer an order belongs to. It is passed
// explicitly through every call that needs it.
type Contact struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Country   string `json:"country"`
}

// Order is the aggregate root of the checkout flow.
type Order struct {
	ID           string  `json:"id"`
	Site         string  `json:"site"`
	Contact      Contact `json:"contact"`
	Status       string  `json:"status"`
	Notes        string  `json:"notes"`
	DiscountCode string  `json:"discount_code"`
	// ShippingMethod is the key of the chosen shipping provider.
	ShippingMethod      string          `json:"shipping_method"`
	ShippingDescription string          `json:"shipping_description"`
	SubTotal            decimal.Decimal `json:"sub_total"`
	ShippingCost        decimal.Decimal `json:"shipping_cost"`
	ShippingDiscount    decimal.Decimal `json:"shipping_discount"`
	Tax                 decimal.Decimal `json:"tax"`
	Discount            decimal.Decimal `json:"discount"`
	Total               decimal.Decimal `json:"total"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`

	Items          []OrderItem           `json:"items"`
	Statuses       []OrderStatus         `json:"statuses"`
	Payments       []OrderPayment        `json:"payments"`
	Authorizations []OrderAuthorization  `json:"authorizations"`
	Failures       []OrderPaymentFailure `json:"failures"`
	Variables      []OrderVariable       `json:"variables"`
}

// OrderItem is a single purchased line.
type OrderItem struct {
	ID            string          `json:"id"`
	Product       product.Product `json:"product"`
	Quantity      int             `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	LineItemPrice decimal.Decimal `json:"line_item_price"`
	Discount      decimal.Decimal `json:"discount"`
	// ExpireDate is set for subscription lines.
	ExpireDate *time.Time `json:"expire_date,omitempty"`
	Completed  bool       `json:"completed"`
}

// OrderStatus is one entry of an order's status history.
type OrderStatus struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	Notes     string    `json:"notes"`
	CreatedAt time.Time `json:"created_at"`
}

// OrderPayment records a successful movement of funds against an order.
type OrderPayment struct {
	ID            string          `json:"id"`
	OrderID       string          `json:"order_id"`
	Processor     string          `json:"processor"`
	Amount        decimal.Decimal `json:"amount"`
	TransactionID string          `json:"transaction_id"`
	ReasonCode    string          `json:"reason_code"`
	CreatedAt     time.Time       `json:"created_at"`
}

// OrderAuthorization reserves funds without capturing them. Complete flips
// to true once the authorization has been captured or released.
type OrderAuthorization struct {
	ID            string          `json:"id"`
	OrderID       string          `json:"order_id"`
	Processor     string          `json:"processor"`
	Amount        decimal.Decimal `json:"amount"`
	TransactionID string          `json:"transaction_id"`
	ReasonCode    string          `json:"reason_code"`
	Complete      bool            `json:"complete"`
	CreatedAt     time.Time       `json:"created_at"`
}

// OrderPaymentFailure records a declined or errored capture attempt.
type OrderPaymentFailure struct {
	ID         string          `json:"id"`
	OrderID    string          `json:"order_id"`
	Processor  string          `json:"processor"`
	Amount     decimal.Decimal `json:"amount"`
	ReasonCode string          `json:"reason_code"`
	Details    string          `json:"details"`
	CreatedAt  time.Time       `json:"created_at"`
}

// OrderVariable is an arbitrary key/value attached to an order, e.g. the
// gift certificate code under the "GIFTCODE" key.
type OrderVariable struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Variable returns the value stored under key, or fallback when unset.
func (o *Order) Variable(key, fallback string) string {
	for _, v := range o.Variables {
		if v.Key == key {
			return v.Value
		}
	}
	return fallback
}

// SetVariable stores value under key, replacing any previous value.
func (o *Order) SetVariable(key, value string) {
	for i, v := range o.Variables {
		if v.Key == key {
			o.Variables[i].Value = value
			return
		}
	}
	o.Variables = append(o.Variables, OrderVariable{Key: key, Value: value})
}

// Validate ensures the order is still in a state checkout can act on.
func (o *Order) Validate() error {
	if len(o.Items) == 0 {
		return errors.New("order has no items")
	}
	if o.Contact.Email == "" {
		return errors.New("order has no contact")
	}
	if o.Total.IsNegative() {
		return ErrNegativeBalance
	}
	return nil
}

// RecalculateTotal recomputes the derived totals:
//
//	total = sub_total + shipping_cost - shipping_discount + tax - discount
//
// clamped at zero. SubTotal and Discount are rebuilt from the line items.
func (o *Order) RecalculateTotal() {
	subTotal := money.Zero
	itemDiscount := money.Zero
	for _, item := range o.Items {
		subTotal = subTotal.Add(item.LineItemPrice)
		itemDiscount = itemDiscount.Add(item.Discount)
	}
	o.SubTotal = subTotal
	o.Discount = itemDiscount

	total := subTotal.
		Add(o.ShippingCost).
		Sub(o.ShippingDiscount).
		Add(o.Tax).
		Sub(itemDiscount)
	if total.IsNegative() {
		total = money.Zero
	}
	o.Total = money.RoundCents(total)
}

// ApplyDiscount writes the per-item allocation produced by the discount
// allocator onto the line items, sets the shipping discount, and refreshes
// the totals. Unknown item ids are ignored.
func (o *Order) ApplyDiscount(itemDiscounts map[string]decimal.Decimal, shippingDiscount decimal.Decimal) {
	for i := range o.Items {
		if d, ok := itemDiscounts[o.Items[i].ID]; ok {
			o.Items[i].Discount = d
		}
	}
	o.ShippingDiscount = shippingDiscount
	o.RecalculateTotal()
}

// TotalPaid sums the successful payments recorded against the order.
func (o *Order) TotalPaid() decimal.Decimal {
	paid := money.Zero
	for _, p := range o.Payments {
		paid = paid.Add(p.Amount)
	}
	return paid
}

// Balance is the amount still owed: total minus successful payments.
func (o *Order) Balance() decimal.Decimal {
	return o.Total.Sub(o.TotalPaid())
}

// PaidInFull reports whether the balance has reached zero.
func (o *Order) PaidInFull() bool {
	return !o.Balance().IsPositive()
}

// IsPartiallyPaid reports whether some, but not all, of the total has been
// captured.
func (o *Order) IsPartiallyPaid() bool {
	return o.TotalPaid().IsPositive() && o.Balance().IsPositive()
}

// AuthorizedRemaining sums authorizations that have not yet been captured
// or released.
func (o *Order) AuthorizedRemaining() decimal.Decimal {
	remaining := money.Zero
	for _, a := range o.Authorizations {
		if !a.Complete {
			remaining = remaining.Add(a.Amount)
		}
	}
	return remaining
}

// CompleteAuthorization marks an authorization as settled or released so
// it no longer counts toward AuthorizedRemaining.
func (o *Order) CompleteAuthorization(authID string) {
	for i := range o.Authorizations {
		if o.Authorizations[i].ID == authID {
			o.Authorizations[i].Complete = true
			return
		}
	}
}

// IsShippable reports whether any line requires physical delivery.
func (o *Order) IsShippable() bool {
	for _, item := range o.Items {
		if item.Product.Shippable() {
			return true
		}
	}
	return false
}

// HasTransaction reports whether a payment with the given processor and
// transaction id has already been recorded. Used to drop duplicate gateway
// notifications.
func (o *Order) HasTransaction(processor, transactionID string) bool {
	_, ok := o.PaymentByTransaction(processor, transactionID)
	return ok
}

// PaymentByTransaction looks up the payment recorded for a gateway
// transaction, so replayed notifications can return the original row.
func (o *Order) PaymentByTransaction(processor, transactionID string) (OrderPayment, bool) {
	for _, p := range o.Payments {
		if p.Processor == processor && p.TransactionID == transactionID {
			return p, true
		}
	}
	return OrderPayment{}, false
}

// LatestStatus returns the most recent status entry, or nil when the order
// has no history yet.
func (o *Order) LatestStatus() *OrderStatus {
	if len(o.Statuses) == 0 {
		return nil
	}
	return &o.Statuses[len(o.Statuses)-1]
}

// AddStatus appends a status history entry and updates the order label.
// The entry gets its id here, so saving it standalone and again as part of
// the aggregate writes one row, not two.
func (o *Order) AddStatus(status, notes string, now time.Time) *OrderStatus {
	entry := OrderStatus{ID: uuid.NewString(), Status: status, Notes: notes, CreatedAt: now}
	o.Statuses = append(o.Statuses, entry)
	o.Status = status
	o.UpdatedAt = now
	return &o.Statuses[len(o.Statuses)-1]
}

// MarkSubmitted records the transition to the submitted ("New") state after
// a successful capture. Calling it again is a no-op, so a double confirm
// never produces a second history row. It reports whether anything changed.
func (o *Order) MarkSubmitted(now time.Time) bool {
	curr := o.LatestStatus()
	if curr == nil {
		o.AddStatus(StatusNew, submittedNote, now)
		return true
	}
	if curr.Status == StatusNew {
		if curr.Notes == "" {
			curr.Notes = submittedNote
			return true
		}
		return false
	}
	o.AddStatus(StatusNew, submittedNote, now)
	return true
}

// HasSubscriptions reports whether any line bills on a recurring schedule.
func (o *Order) HasSubscriptions() bool {
	for _, item := range o.Items {
		if item.Product.IsSubscription() {
			return true
		}
	}
	return false
}

// MarkSubscriptionsComplete flags subscription lines as completed once the
// order is paid in full. Returns the ids of the items it changed.
func (o *Order) MarkSubscriptionsComplete() []string {
	var changed []string
	for i := range o.Items {
		if o.Items[i].Product.IsSubscription() && !o.Items[i].Completed {
			o.Items[i].Completed = true
			changed = append(changed, o.Items[i].ID)
		}
	}
	return changed
}
