package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/predatell/satchmo/internal/discount"
	"github.com/predatell/satchmo/internal/money"
	"github.com/predatell/satchmo/internal/orders/domain"
	"github.com/predatell/satchmo/internal/orders/ports"
	"github.com/predatell/satchmo/internal/shipping"
)

// CreateOrderCommand turns a cart, a contact and a shipping choice into a
// persisted order with all totals computed.
type CreateOrderCommand struct {
	Site     string
	Cart     *domain.Cart
	Contact  domain.Contact
	Shipping shipping.Option
	// Discount is the validated coupon to apply, nil for none.
	Discount *discount.Discount
	// CheapestShippingChosen reports whether the chosen method was the
	// cheapest offered; the FREECHEAP shipping policy depends on it.
	CheapestShippingChosen bool
	// GiftCode is stored on the order so the gift certificate processor
	// can find it at capture time.
	GiftCode string
}

func (c CreateOrderCommand) Validate() error {
	if c.Cart == nil || len(c.Cart.Items) == 0 {
		return errors.New("cart is empty")
	}
	if strings.TrimSpace(c.Contact.Email) == "" {
		return errors.New("contact email is required")
	}
	if !strings.Contains(c.Contact.Email, "@") {
		return errors.New("contact email must be valid")
	}
	if c.Cart.IsShippable() && c.Shipping.Key == "" {
		return errors.New("shipping method is required")
	}
	return nil
}

type CommandHandler interface {
	Handle(ctx context.Context, cmd CreateOrderCommand) (*domain.Order, error)
}

type CreateOrderCommandHandler struct {
	repo ports.OrderRepository
	now  func() time.Time
}

func NewCreateOrderCommandHandler(repo ports.OrderRepository, clock func() time.Time) *CreateOrderCommandHandler {
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &CreateOrderCommandHandler{repo: repo, now: clock}
}

func (h *CreateOrderCommandHandler) Handle(ctx context.Context, cmd CreateOrderCommand) (*domain.Order, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	now := h.now()
	order := domain.Order{
		ID:                  uuid.NewString(),
		Site:                cmd.Site,
		Contact:             cmd.Contact,
		Status:              domain.StatusUnprocessed,
		ShippingMethod:      cmd.Shipping.Key,
		ShippingDescription: cmd.Shipping.Description,
		ShippingCost:        cmd.Shipping.Cost,
		ShippingDiscount:    money.Zero,
		Tax:                 cmd.Shipping.Tax,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	for _, line := range cmd.Cart.Items {
		order.Items = append(order.Items, line.ToOrderItem(uuid.NewString(), now))
	}

	if cmd.GiftCode != "" {
		order.SetVariable(domain.GiftCodeKey, cmd.GiftCode)
	}

	if cmd.Discount != nil {
		order.DiscountCode = cmd.Discount.Code
		alloc, err := cmd.Discount.Apply(&order, discount.ApplyInput{
			CheapestShippingChosen: cmd.CheapestShippingChosen,
		})
		if err != nil {
			return nil, fmt.Errorf("apply discount %s: %w", cmd.Discount.Code, err)
		}
		// The allocation owns the shipping discount. The quoted option
		// carries one too, but that is the same forgiveness priced for
		// display; summing the two would forgive shipping twice.
		order.ApplyDiscount(alloc.ItemDiscounts, alloc.ShippingDiscount)
	}

	order.RecalculateTotal()

	if err := order.Validate(); err != nil {
		return nil, err
	}

	if err := h.repo.Create(ctx, order); err != nil {
		return nil, err
	}

	return &order, nil
}
