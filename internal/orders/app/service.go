package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/predatell/satchmo/internal/orders/app/commands"
	"github.com/predatell/satchmo/internal/orders/app/queries"
	"github.com/predatell/satchmo/internal/orders/domain"
	"github.com/predatell/satchmo/internal/orders/metrics"
	"github.com/predatell/satchmo/internal/orders/ports"
	"github.com/predatell/satchmo/internal/payment"
)

// Service bundles the order use cases exposed over the API.
type Service struct {
	repo               ports.OrderRepository
	registry           *payment.Registry
	idemStore          ports.IdempotencyStore
	createOrderHandler commands.CommandHandler
	getOrderHandler    *queries.GetOrderQueryHandler
	logger             *slog.Logger
}

// NewService wires required dependencies.
func NewService(
	repo ports.OrderRepository,
	registry *payment.Registry,
	idem ports.IdempotencyStore,
	logger *slog.Logger,
	metrics *metrics.Metrics,
) *Service {
	coreHandler := commands.NewCreateOrderCommandHandler(repo, nil)
	observableHandler := commands.NewObservableCommandHandler(coreHandler, logger, metrics)

	return &Service{
		repo:               repo,
		registry:           registry,
		idemStore:          idem,
		createOrderHandler: observableHandler,
		getOrderHandler:    queries.NewGetOrderQueryHandler(repo),
		logger:             logger,
	}
}

// CreateOrder builds and persists an order from a cart, contact and
// shipping choice.
func (s *Service) CreateOrder(ctx context.Context, cmd commands.CreateOrderCommand) (*domain.Order, error) {
	return s.createOrderHandler.Handle(ctx, cmd)
}

// GetOrder retrieves an order by ID.
func (s *Service) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	return s.getOrderHandler.Handle(ctx, queries.GetOrderQuery{OrderID: id})
}

// ListOrders returns orders using a filter.
func (s *Service) ListOrders(ctx context.Context, filter ports.ListFilter) ([]domain.Order, error) {
	return s.repo.List(ctx, filter)
}

// CancelOrder cancels an order that has not collected any payment.
func (s *Service) CancelOrder(ctx context.Context, id string) (*domain.Order, error) {
	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if order.TotalPaid().IsPositive() {
		return nil, fmt.Errorf("cannot cancel order %s: payments have been recorded", id)
	}

	status := order.AddStatus(domain.StatusCanceled, "", time.Now().UTC())
	if err := s.repo.SaveStatus(ctx, id, *status); err != nil {
		return nil, err
	}

	order.Status = domain.StatusCanceled
	order.UpdatedAt = time.Now().UTC()
	if err := s.repo.Save(ctx, *order); err != nil {
		return nil, err
	}

	return order, nil
}

// CaptureAuthorizations settles every outstanding authorization on an
// order through its processor. Authorizations are captured one at a
// time; a failed capture stops the run and reports how far it got.
func (s *Service) CaptureAuthorizations(ctx context.Context, orderID, processorKey string) ([]payment.Result, error) {
	processor, ok := s.registry.Get(processorKey)
	if !ok {
		return nil, fmt.Errorf("unknown processor %q", processorKey)
	}
	authorizer, ok := processor.(payment.Authorizer)
	if !ok {
		return nil, fmt.Errorf("processor %q does not support authorizations", processorKey)
	}

	var results []payment.Result
	err := s.repo.WithOrderLock(ctx, orderID, func(ctx context.Context) error {
		order, err := s.repo.GetByID(ctx, orderID)
		if err != nil {
			return err
		}

		for _, auth := range order.Authorizations {
			if auth.Complete || auth.Processor != processorKey {
				continue
			}
			result := authorizer.CaptureAuthorization(ctx, order, auth)
			results = append(results, result)
			if !result.Success {
				s.logger.WarnContext(ctx, "authorization capture failed",
					"order_id", orderID, "authorization_id", auth.ID, "message", result.Message)
				break
			}
		}

		return s.repo.Save(ctx, *order)
	})
	if err != nil {
		return results, err
	}
	return results, nil
}

// SaveIdempotentResponse writes response details for a key.
func (s *Service) SaveIdempotentResponse(ctx context.Context, key string, response ports.StoredResponse) error {
	return s.idemStore.Save(ctx, key, response)
}

// GetIdempotentResponse retrieves previously stored response data.
func (s *Service) GetIdempotentResponse(ctx context.Context, key string) (*ports.StoredResponse, error) {
	return s.idemStore.Get(ctx, key)
}
