package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type Metrics struct {
	ordersCreatedTotal    metric.Int64Counter
	orderCreationDuration metric.Float64Histogram
	confirmationsTotal    metric.Int64Counter
	paymentsRecordedTotal metric.Int64Counter
	captureDuration       metric.Float64Histogram
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	var err error

	m.ordersCreatedTotal, err = meter.Int64Counter(
		"orders_created_total",
		metric.WithDescription("Total number of orders created"),
		metric.WithUnit("{order}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create orders_created_total counter: %w", err)
	}

	m.orderCreationDuration, err = meter.Float64Histogram(
		"order_creation_duration_seconds",
		metric.WithDescription("Duration of order creation operations"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create order_creation_duration histogram: %w", err)
	}

	m.confirmationsTotal, err = meter.Int64Counter(
		"checkout_confirmations_total",
		metric.WithDescription("Total number of checkout confirmation attempts"),
		metric.WithUnit("{confirmation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create checkout_confirmations_total counter: %w", err)
	}

	m.paymentsRecordedTotal, err = meter.Int64Counter(
		"payments_recorded_total",
		metric.WithDescription("Total number of payment rows recorded"),
		metric.WithUnit("{payment}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create payments_recorded_total counter: %w", err)
	}

	m.captureDuration, err = meter.Float64Histogram(
		"payment_capture_duration_seconds",
		metric.WithDescription("Duration of payment capture calls"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create payment_capture_duration histogram: %w", err)
	}

	return m, nil
}

func (m *Metrics) RecordOrderCreated(ctx context.Context, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	m.ordersCreatedTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", status),
	))
}

func (m *Metrics) RecordOrderCreationDuration(ctx context.Context, durationSeconds float64) {
	m.orderCreationDuration.Record(ctx, durationSeconds)
}

func (m *Metrics) RecordConfirmation(ctx context.Context, outcome string) {
	m.confirmationsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
	))
}

func (m *Metrics) RecordPayment(ctx context.Context, processor string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	m.paymentsRecordedTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("processor", processor),
		attribute.String("status", status),
	))
}

func (m *Metrics) RecordCaptureDuration(ctx context.Context, processor string, durationSeconds float64) {
	m.captureDuration.Record(ctx, durationSeconds, metric.WithAttributes(
		attribute.String("processor", processor),
	))
}
