package adapters

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/predatell/satchmo/internal/database"
	"github.com/predatell/satchmo/internal/orders/domain"
	"github.com/predatell/satchmo/internal/orders/ports"
	"github.com/predatell/satchmo/internal/telemetry"
)

type ObservableRepository struct {
	repo    ports.OrderRepository
	metrics *database.Metrics
}

func NewObservableRepository(repo ports.OrderRepository, metrics *database.Metrics) *ObservableRepository {
	return &ObservableRepository{
		repo:    repo,
		metrics: metrics,
	}
}

func (r *ObservableRepository) Create(ctx context.Context, order domain.Order) error {
	ctx, span := telemetry.StartSpan(ctx, "OrderRepository.Create")
	defer span.End()

	telemetry.AddSpanAttributes(span,
		attribute.String("order.id", order.ID),
		attribute.String("operation", "create"),
	)

	start := time.Now()
	err := r.repo.Create(ctx, order)
	duration := time.Since(start).Seconds()

	r.metrics.RecordQuery(ctx, "create_order", duration)

	if err != nil {
		telemetry.RecordSpanError(span, err)
		return err
	}

	telemetry.SetSpanSuccess(span)
	return nil
}

func (r *ObservableRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	ctx, span := telemetry.StartSpan(ctx, "OrderRepository.GetByID")
	defer span.End()

	telemetry.AddSpanAttributes(span,
		attribute.String("order.id", id),
		attribute.String("operation", "get_by_id"),
	)

	start := time.Now()
	order, err := r.repo.GetByID(ctx, id)
	duration := time.Since(start).Seconds()

	r.metrics.RecordQuery(ctx, "get_order_by_id", duration)

	if err != nil {
		telemetry.RecordSpanError(span, err)
		return nil, err
	}

	telemetry.SetSpanSuccess(span)
	return order, nil
}

func (r *ObservableRepository) List(ctx context.Context, filter ports.ListFilter) ([]domain.Order, error) {
	ctx, span := telemetry.StartSpan(ctx, "OrderRepository.List")
	defer span.End()

	attrs := []attribute.KeyValue{
		attribute.String("operation", "list"),
		attribute.Int("page", filter.Page),
		attribute.Int("page_size", filter.PageSize),
	}
	if filter.Status != nil {
		attrs = append(attrs, attribute.String("filter.status", *filter.Status))
	}
	telemetry.AddSpanAttributes(span, attrs...)

	start := time.Now()
	orders, err := r.repo.List(ctx, filter)
	duration := time.Since(start).Seconds()

	r.metrics.RecordQuery(ctx, "list_orders", duration)

	if err != nil {
		telemetry.RecordSpanError(span, err)
		return nil, err
	}

	telemetry.AddSpanAttributes(span, attribute.Int("result.count", len(orders)))
	telemetry.SetSpanSuccess(span)
	return orders, nil
}

func (r *ObservableRepository) Save(ctx context.Context, order domain.Order) error {
	ctx, span := telemetry.StartSpan(ctx, "OrderRepository.Save")
	defer span.End()

	telemetry.AddSpanAttributes(span,
		attribute.String("order.id", order.ID),
		attribute.String("operation", "save"),
	)

	start := time.Now()
	err := r.repo.Save(ctx, order)
	duration := time.Since(start).Seconds()

	r.metrics.RecordQuery(ctx, "save_order", duration)

	if err != nil {
		telemetry.RecordSpanError(span, err)
		return err
	}

	telemetry.SetSpanSuccess(span)
	return nil
}

func (r *ObservableRepository) SaveStatus(ctx context.Context, id string, status domain.OrderStatus) error {
	ctx, span := telemetry.StartSpan(ctx, "OrderRepository.SaveStatus")
	defer span.End()

	telemetry.AddSpanAttributes(span,
		attribute.String("order.id", id),
		attribute.String("order.new_status", status.Status),
		attribute.String("operation", "save_status"),
	)

	start := time.Now()
	err := r.repo.SaveStatus(ctx, id, status)
	duration := time.Since(start).Seconds()

	r.metrics.RecordQuery(ctx, "save_order_status", duration)

	if err != nil {
		telemetry.RecordSpanError(span, err)
		return err
	}

	telemetry.SetSpanSuccess(span)
	return nil
}

func (r *ObservableRepository) SavePayment(ctx context.Context, payment domain.OrderPayment) error {
	ctx, span := telemetry.StartSpan(ctx, "OrderRepository.SavePayment")
	defer span.End()

	telemetry.AddSpanAttributes(span,
		attribute.String("order.id", payment.OrderID),
		attribute.String("payment.processor", payment.Processor),
		attribute.String("operation", "save_payment"),
	)

	start := time.Now()
	err := r.repo.SavePayment(ctx, payment)
	duration := time.Since(start).Seconds()

	r.metrics.RecordQuery(ctx, "save_order_payment", duration)

	if err != nil {
		telemetry.RecordSpanError(span, err)
		return err
	}

	telemetry.SetSpanSuccess(span)
	return nil
}

func (r *ObservableRepository) SaveAuthorization(ctx context.Context, auth domain.OrderAuthorization) error {
	ctx, span := telemetry.StartSpan(ctx, "OrderRepository.SaveAuthorization")
	defer span.End()

	telemetry.AddSpanAttributes(span,
		attribute.String("order.id", auth.OrderID),
		attribute.String("authorization.processor", auth.Processor),
		attribute.String("operation", "save_authorization"),
	)

	start := time.Now()
	err := r.repo.SaveAuthorization(ctx, auth)
	duration := time.Since(start).Seconds()

	r.metrics.RecordQuery(ctx, "save_order_authorization", duration)

	if err != nil {
		telemetry.RecordSpanError(span, err)
		return err
	}

	telemetry.SetSpanSuccess(span)
	return nil
}

func (r *ObservableRepository) SaveFailure(ctx context.Context, failure domain.OrderPaymentFailure) error {
	ctx, span := telemetry.StartSpan(ctx, "OrderRepository.SaveFailure")
	defer span.End()

	telemetry.AddSpanAttributes(span,
		attribute.String("order.id", failure.OrderID),
		attribute.String("failure.processor", failure.Processor),
		attribute.String("operation", "save_failure"),
	)

	start := time.Now()
	err := r.repo.SaveFailure(ctx, failure)
	duration := time.Since(start).Seconds()

	r.metrics.RecordQuery(ctx, "save_payment_failure", duration)

	if err != nil {
		telemetry.RecordSpanError(span, err)
		return err
	}

	telemetry.SetSpanSuccess(span)
	return nil
}

func (r *ObservableRepository) WithOrderLock(ctx context.Context, orderID string, fn func(ctx context.Context) error) error {
	ctx, span := telemetry.StartSpan(ctx, "OrderRepository.WithOrderLock")
	defer span.End()

	telemetry.AddSpanAttributes(span,
		attribute.String("order.id", orderID),
		attribute.String("operation", "with_order_lock"),
	)

	err := r.repo.WithOrderLock(ctx, orderID, fn)
	if err != nil {
		telemetry.RecordSpanError(span, err)
		return err
	}

	telemetry.SetSpanSuccess(span)
	return nil
}
