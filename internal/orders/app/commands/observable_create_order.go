package commands

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/predatell/satchmo/internal/orders/domain"
	"github.com/predatell/satchmo/internal/orders/metrics"
	"github.com/predatell/satchmo/internal/telemetry"
)

type ObservableCommandHandler struct {
	handler CommandHandler
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewObservableCommandHandler(handler CommandHandler, logger *slog.Logger, metrics *metrics.Metrics) *ObservableCommandHandler {
	return &ObservableCommandHandler{
		handler: handler,
		logger:  logger,
		metrics: metrics,
	}
}

func (o *ObservableCommandHandler) Handle(ctx context.Context, cmd CreateOrderCommand) (*domain.Order, error) {
	ctx, span := telemetry.StartSpan(ctx, "CreateOrderCommand.Handle")
	defer span.End()

	start := time.Now()
	var success bool
	defer func() {
		duration := time.Since(start).Seconds()
		o.metrics.RecordOrderCreationDuration(ctx, duration)
		o.metrics.RecordOrderCreated(ctx, success)
	}()

	cartItems := 0
	if cmd.Cart != nil {
		cartItems = cmd.Cart.NumItems()
	}
	o.logger.InfoContext(ctx, "creating order",
		"contact_email", cmd.Contact.Email,
		"cart_items", cartItems,
		"shipping_method", cmd.Shipping.Key,
	)

	order, err := o.handler.Handle(ctx, cmd)

	if err != nil {
		telemetry.RecordSpanError(span, err)
		o.logger.ErrorContext(ctx, "failed to create order",
			"error", err,
			"contact_email", cmd.Contact.Email,
		)
		return nil, err
	}

	telemetry.AddSpanAttributes(span,
		attribute.String("order.id", order.ID),
		attribute.String("order.contact_email", order.Contact.Email),
		attribute.String("order.total", order.Total.String()),
		attribute.String("order.shipping_method", order.ShippingMethod),
	)

	o.logger.InfoContext(ctx, "order created successfully",
		"order_id", order.ID,
		"total", order.Total.String(),
	)

	success = true
	telemetry.SetSpanSuccess(span)

	return order, nil
}
