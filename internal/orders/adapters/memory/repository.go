package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/predatell/satchmo/internal/orders/domain"
	"github.com/predatell/satchmo/internal/orders/ports"
)

// Repository provides an in-memory store useful for local development and tests.
type Repository struct {
	mu     sync.RWMutex
	orders map[string]domain.Order
	// locks holds one mutex per order so confirmations serialize the way
	// the postgres adapter does with advisory locks.
	locks sync.Map
}

// NewRepository constructs a new in-memory repository.
func NewRepository() *Repository {
	return &Repository{orders: make(map[string]domain.Order)}
}

// Create stores a new order instance.
func (r *Repository) Create(_ context.Context, order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[order.ID] = order
	return nil
}

// GetByID fetches a single order by identifier.
func (r *Repository) GetByID(_ context.Context, id string) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	order, ok := r.orders[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	copy := order
	return &copy, nil
}

// List returns orders respecting the provided filter. Pagination is 1-based.
func (r *Repository) List(_ context.Context, filter ports.ListFilter) ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []domain.Order
	for _, order := range r.orders {
		if filter.Status != nil && order.Status != *filter.Status {
			continue
		}
		result = append(result, order)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	page := filter.Page
	if page <= 0 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	start := (page - 1) * pageSize
	if start >= len(result) {
		return []domain.Order{}, nil
	}

	end := start + pageSize
	if end > len(result) {
		end = len(result)
	}

	slice := make([]domain.Order, end-start)
	copy(slice, result[start:end])

	return slice, nil
}

// Save replaces the stored aggregate.
func (r *Repository) Save(_ context.Context, order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[order.ID]; !ok {
		return ports.ErrNotFound
	}
	order.UpdatedAt = time.Now().UTC()
	r.orders[order.ID] = order
	return nil
}

// SaveStatus appends a status history entry and mirrors it on the order.
func (r *Repository) SaveStatus(_ context.Context, orderID string, status domain.OrderStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[orderID]
	if !ok {
		return ports.ErrNotFound
	}

	found := false
	for i := range order.Statuses {
		if order.Statuses[i].ID == status.ID {
			order.Statuses[i] = status
			found = true
			break
		}
	}
	if !found {
		order.Statuses = append(order.Statuses, status)
	}
	order.Status = status.Status
	order.UpdatedAt = time.Now().UTC()
	r.orders[orderID] = order
	return nil
}

// SavePayment appends a payment row, rejecting a duplicate transaction.
func (r *Repository) SavePayment(_ context.Context, payment domain.OrderPayment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[payment.OrderID]
	if !ok {
		return ports.ErrNotFound
	}

	if payment.TransactionID != "" {
		for _, p := range order.Payments {
			if p.Processor == payment.Processor && p.TransactionID == payment.TransactionID {
				return ports.ErrDuplicateTransaction
			}
		}
	}

	order.Payments = append(order.Payments, payment)
	order.UpdatedAt = time.Now().UTC()
	r.orders[payment.OrderID] = order
	return nil
}

// SaveAuthorization appends or updates an authorization row.
func (r *Repository) SaveAuthorization(_ context.Context, auth domain.OrderAuthorization) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[auth.OrderID]
	if !ok {
		return ports.ErrNotFound
	}

	for i := range order.Authorizations {
		if order.Authorizations[i].ID == auth.ID {
			order.Authorizations[i] = auth
			r.orders[auth.OrderID] = order
			return nil
		}
	}
	order.Authorizations = append(order.Authorizations, auth)
	r.orders[auth.OrderID] = order
	return nil
}

// SaveFailure appends a payment failure row.
func (r *Repository) SaveFailure(_ context.Context, failure domain.OrderPaymentFailure) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[failure.OrderID]
	if !ok {
		return ports.ErrNotFound
	}

	order.Failures = append(order.Failures, failure)
	r.orders[failure.OrderID] = order
	return nil
}

// WithOrderLock serializes fn against other callers locking the same order.
func (r *Repository) WithOrderLock(ctx context.Context, orderID string, fn func(ctx context.Context) error) error {
	v, _ := r.locks.LoadOrStore(orderID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	defer mu.Unlock()
	return fn(ctx)
}
