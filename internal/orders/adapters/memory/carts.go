package memory

import (
	"context"
	"sync"

	"github.com/predatell/satchmo/internal/orders/domain"
	"github.com/predatell/satchmo/internal/orders/ports"
)

// CartStore is an in-memory cart store keyed by order id.
type CartStore struct {
	mu    sync.RWMutex
	carts map[string]domain.Cart
}

// NewCartStore constructs an empty cart store.
func NewCartStore() *CartStore {
	return &CartStore{carts: make(map[string]domain.Cart)}
}

// Attach binds a cart to an order id.
func (s *CartStore) Attach(orderID string, cart domain.Cart) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.carts[orderID] = cart
}

// GetByOrder fetches the cart bound to an order.
func (s *CartStore) GetByOrder(_ context.Context, orderID string) (*domain.Cart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cart, ok := s.carts[orderID]
	if !ok {
		return nil, ports.ErrNotFound
	}
	copy := cart
	copy.Items = append([]domain.CartItem(nil), cart.Items...)
	return &copy, nil
}

// Empty removes the cart bound to an order.
func (s *CartStore) Empty(_ context.Context, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, orderID)
	return nil
}
