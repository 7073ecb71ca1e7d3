package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/predatell/satchmo/internal/orders/domain"
	"github.com/predatell/satchmo/internal/orders/ports"
	"github.com/predatell/satchmo/internal/payment"
)

// Outcome is the terminal branch a confirmation attempt reached.
type Outcome string

const (
	// OutcomeInvalid means a sanity check failed; the attempt halted
	// before any processing.
	OutcomeInvalid Outcome = "invalid"
	// OutcomeForm re-renders the confirmation form without processing.
	OutcomeForm Outcome = "form"
	// OutcomeSuccess means the order is fully paid.
	OutcomeSuccess Outcome = "success"
	// OutcomePartialSuccess means a capture succeeded but a balance
	// remains, e.g. a gift certificate covered part of the total.
	OutcomePartialSuccess Outcome = "partial_success"
	// OutcomeFailedForm re-renders the form with the processor's message.
	OutcomeFailedForm Outcome = "failed_form"
)

// Confirmation is the result of one confirmation attempt.
type Confirmation struct {
	Outcome    Outcome
	RedirectTo string
	// Message is the customer-facing error for invalid and failed-form
	// outcomes.
	Message string
	Order   *domain.Order
	Result  *payment.Result
}

// CartStore is the slice of cart persistence the controller needs.
type CartStore interface {
	GetByOrder(ctx context.Context, orderID string) (*domain.Cart, error)
	Empty(ctx context.Context, orderID string) error
}

// Config carries the knobs of the confirmation flow.
type Config struct {
	// NoStockCheckout disables the stock sanity check.
	NoStockCheckout bool
	SuccessURL      string
	PayRemainingURL string
}

// Controller drives an order through confirmation: sanity checks, the
// selected payment module, and the resulting status transition. Two
// concurrent confirmations of the same order serialize on a per-order
// lock so a browser double-submit cannot double-capture.
type Controller struct {
	orders    ports.OrderRepository
	discounts ports.DiscountRepository
	carts     CartStore
	registry  *payment.Registry
	bus       ports.EventBus
	cfg       Config
	logger    *slog.Logger
	now       func() time.Time
}

// NewController wires the confirmation flow. clock may be nil.
func NewController(
	orders ports.OrderRepository,
	discounts ports.DiscountRepository,
	carts CartStore,
	registry *payment.Registry,
	bus ports.EventBus,
	cfg Config,
	logger *slog.Logger,
	clock func() time.Time,
) *Controller {
	if clock == nil {
		clock = time.Now
	}
	return &Controller{
		orders:    orders,
		discounts: discounts,
		carts:     carts,
		registry:  registry,
		bus:       bus,
		cfg:       cfg,
		logger:    logger,
		now:       clock,
	}
}

// Confirm runs one confirmation attempt. The sanity checks always run,
// submission or not; processing happens only on a submission. Gateway
// declines come back as outcomes, never as errors: a non-nil error means
// an internal failure the customer cannot fix.
func (c *Controller) Confirm(ctx context.Context, orderID, processorKey string, isSubmission bool) (Confirmation, error) {
	order, err := c.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return Confirmation{Outcome: OutcomeInvalid, Message: "Your order could not be found."}, nil
		}
		return Confirmation{}, fmt.Errorf("load order: %w", err)
	}

	if msg, ok := c.sanityCheck(ctx, order); !ok {
		return Confirmation{Outcome: OutcomeInvalid, Message: msg, Order: order}, nil
	}

	// A zero-balance order is processed through the zero-balance module
	// immediately, even on a plain GET: there is nothing left to collect.
	if !order.Balance().IsPositive() {
		processorKey = payment.FreeKey
		isSubmission = true
	}

	if !isSubmission {
		return Confirmation{Outcome: OutcomeForm, Order: order}, nil
	}

	processor, ok := c.registry.Get(processorKey)
	if !ok {
		return Confirmation{
			Outcome: OutcomeInvalid,
			Message: fmt.Sprintf("Unknown payment method %q.", processorKey),
			Order:   order,
		}, nil
	}

	var confirmation Confirmation
	err = c.orders.WithOrderLock(ctx, order.ID, func(ctx context.Context) error {
		// Reload under the lock: a concurrent submission may have already
		// taken payment.
		order, err := c.orders.GetByID(ctx, order.ID)
		if err != nil {
			return fmt.Errorf("load order: %w", err)
		}
		confirmation, err = c.process(ctx, order, processor)
		return err
	})
	if err != nil {
		return Confirmation{}, err
	}
	return confirmation, nil
}

// sanityCheck validates the order and its cart. It returns a
// customer-facing message when the check fails.
func (c *Controller) sanityCheck(ctx context.Context, order *domain.Order) (string, bool) {
	if err := order.Validate(); err != nil {
		return err.Error(), false
	}

	cart, err := c.carts.GetByOrder(ctx, order.ID)
	if err != nil && !errors.Is(err, ports.ErrNotFound) {
		c.logger.ErrorContext(ctx, "load cart", "order_id", order.ID, "error", err)
		return "Your cart could not be loaded.", false
	}

	// An order that already collected a payment keeps going even with an
	// empty cart: the customer is paying the remaining balance, or is
	// replaying a confirmation that already succeeded.
	if (cart == nil || len(cart.Items) == 0) && !order.TotalPaid().IsPositive() {
		return "Your cart is empty.", false
	}

	if cart != nil && !c.cfg.NoStockCheckout {
		for _, item := range cart.Items {
			if !item.Product.Active {
				return fmt.Sprintf("%s is no longer available.", item.Product.Name), false
			}
			if item.Product.Shippable() && item.Product.ItemsInStock < item.Quantity {
				return fmt.Sprintf("There is not enough stock of %s.", item.Product.Name), false
			}
		}
	}

	if err := c.bus.SanityCheck(ctx, order); err != nil {
		return err.Error(), false
	}
	return "", true
}

func (c *Controller) process(ctx context.Context, order *domain.Order, processor payment.Processor) (Confirmation, error) {
	if order.Balance().IsNegative() {
		return Confirmation{}, fmt.Errorf("order %s: %w", order.ID, domain.ErrNegativeBalance)
	}

	if err := processor.Prepare(ctx, order); err != nil {
		c.logger.WarnContext(ctx, "processor prepare failed",
			"order_id", order.ID, "processor", processor.Key(), "error", err)
		return Confirmation{Outcome: OutcomeFailedForm, Message: err.Error(), Order: order}, nil
	}

	result := processor.Capture(ctx, order, nil)
	if !result.Success {
		c.logger.InfoContext(ctx, "capture failed",
			"order_id", order.ID, "processor", result.Processor,
			"reason", result.ReasonCode, "message", result.Message)
		return Confirmation{
			Outcome: OutcomeFailedForm,
			Message: result.Message,
			Order:   order,
			Result:  &result,
		}, nil
	}

	if result.Payment != nil {
		if err := c.bus.PublishPaymentRecorded(ctx, order, *result.Payment); err != nil {
			return Confirmation{}, err
		}
	}

	if !order.PaidInFull() {
		if err := c.orders.Save(ctx, *order); err != nil {
			return Confirmation{}, fmt.Errorf("save order: %w", err)
		}
		return Confirmation{
			Outcome:    OutcomePartialSuccess,
			RedirectTo: c.cfg.PayRemainingURL,
			Order:      order,
			Result:     &result,
		}, nil
	}

	// Recurring billing is set up before the subscription lines are
	// marked complete. A gateway that cannot do it does not fail the
	// confirmation; the payment is already taken.
	if biller, ok := processor.(payment.RecurringBiller); ok && order.HasSubscriptions() {
		if res := biller.CreateSubscription(ctx, order); !res.Success {
			c.logger.WarnContext(ctx, "recurring billing setup failed",
				"order_id", order.ID, "processor", processor.Key(), "message", res.Message)
		}
	}

	if err := c.finalize(ctx, order); err != nil {
		return Confirmation{}, err
	}
	return Confirmation{
		Outcome:    OutcomeSuccess,
		RedirectTo: c.cfg.SuccessURL,
		Order:      order,
		Result:     &result,
	}, nil
}

// finalize applies the success side effects: empty the cart, complete
// subscription lines, merge the submitted status, bump the discount use
// counter, and notify listeners.
func (c *Controller) finalize(ctx context.Context, order *domain.Order) error {
	if err := c.carts.Empty(ctx, order.ID); err != nil && !errors.Is(err, ports.ErrNotFound) {
		return fmt.Errorf("empty cart: %w", err)
	}

	order.MarkSubscriptionsComplete()

	if order.MarkSubmitted(c.now()) {
		status := order.LatestStatus()
		if err := c.orders.SaveStatus(ctx, order.ID, *status); err != nil {
			return fmt.Errorf("save status: %w", err)
		}
	}

	if err := c.orders.Save(ctx, *order); err != nil {
		return fmt.Errorf("save order: %w", err)
	}

	if order.DiscountCode != "" {
		if err := c.discounts.IncrementUses(ctx, order.DiscountCode); err != nil {
			// The payment is taken; a miscounted coupon is not worth
			// failing the confirmation over.
			c.logger.ErrorContext(ctx, "increment discount uses",
				"order_id", order.ID, "code", order.DiscountCode, "error", err)
		}
	}

	return c.bus.PublishOrderSuccess(ctx, order)
}
