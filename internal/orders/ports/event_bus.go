package ports

import (
	"context"

	"github.com/predatell/satchmo/internal/orders/domain"
)

// EventBus defines the extension points of the checkout lifecycle.
// Listeners are registered explicitly at wiring time rather than
// discovered, so every hook in play is visible in main.
type EventBus interface {
	// SanityCheck runs registered pre-confirmation checks. Any error
	// aborts the confirmation and sends the customer back to the form.
	SanityCheck(ctx context.Context, order *domain.Order) error
	// PublishOrderSuccess fires after an order reaches full payment.
	PublishOrderSuccess(ctx context.Context, order *domain.Order) error
	// PublishPaymentRecorded fires after any payment row is written,
	// including partial payments.
	PublishPaymentRecorded(ctx context.Context, order *domain.Order, payment domain.OrderPayment) error
}
