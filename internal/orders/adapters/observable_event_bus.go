package adapters

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/predatell/satchmo/internal/orders/domain"
	"github.com/predatell/satchmo/internal/orders/ports"
	"github.com/predatell/satchmo/internal/telemetry"
)

type ObservableEventBus struct {
	bus ports.EventBus
}

func NewObservableEventBus(bus ports.EventBus) *ObservableEventBus {
	return &ObservableEventBus{bus: bus}
}

func (e *ObservableEventBus) SanityCheck(ctx context.Context, order *domain.Order) error {
	ctx, span := telemetry.StartSpan(ctx, "EventBus.SanityCheck")
	defer span.End()

	telemetry.AddSpanAttributes(span,
		attribute.String("order.id", order.ID),
		attribute.String("event.type", "sanity_check"),
	)

	if err := e.bus.SanityCheck(ctx, order); err != nil {
		telemetry.RecordSpanError(span, err)
		return err
	}

	telemetry.SetSpanSuccess(span)
	return nil
}

func (e *ObservableEventBus) PublishOrderSuccess(ctx context.Context, order *domain.Order) error {
	ctx, span := telemetry.StartSpan(ctx, "EventBus.PublishOrderSuccess")
	defer span.End()

	telemetry.AddSpanAttributes(span,
		attribute.String("order.id", order.ID),
		attribute.String("event.type", "order_success"),
	)

	if err := e.bus.PublishOrderSuccess(ctx, order); err != nil {
		telemetry.RecordSpanError(span, err)
		return err
	}

	telemetry.SetSpanSuccess(span)
	return nil
}

func (e *ObservableEventBus) PublishPaymentRecorded(ctx context.Context, order *domain.Order, payment domain.OrderPayment) error {
	ctx, span := telemetry.StartSpan(ctx, "EventBus.PublishPaymentRecorded")
	defer span.End()

	telemetry.AddSpanAttributes(span,
		attribute.String("order.id", order.ID),
		attribute.String("payment.id", payment.ID),
		attribute.String("payment.processor", payment.Processor),
		attribute.String("event.type", "payment_recorded"),
	)

	if err := e.bus.PublishPaymentRecorded(ctx, order, payment); err != nil {
		telemetry.RecordSpanError(span, err)
		return err
	}

	telemetry.SetSpanSuccess(span)
	return nil
}
