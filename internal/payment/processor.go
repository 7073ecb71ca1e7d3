package payment

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/predatell/satchmo/internal/orders/domain"
)

// Result is the outcome of a gateway operation. A failed call against a
// remote gateway still yields a Result, never a panic: network errors
// come back as Success=false with the error text as Message.
type Result struct {
	Processor  string
	Success    bool
	Message    string
	ReasonCode string
	// Payment is the recorded payment row on success, nil otherwise.
	Payment *domain.OrderPayment
}

// Processor is the contract every payment module implements. Capture
// charges the given amount, or the order's remaining balance when amount
// is nil.
type Processor interface {
	Key() string
	// Prepare performs pre-submission work such as creating a remote
	// session. Modules without one return nil.
	Prepare(ctx context.Context, order *domain.Order) error
	Capture(ctx context.Context, order *domain.Order, amount *decimal.Decimal) Result
}

// Authorizer is implemented by modules that support a separate
// authorize/capture flow. Callers discover it by type assertion.
type Authorizer interface {
	Authorize(ctx context.Context, order *domain.Order, amount *decimal.Decimal) Result
	CaptureAuthorization(ctx context.Context, order *domain.Order, auth domain.OrderAuthorization) Result
	ReleaseAuthorization(ctx context.Context, order *domain.Order, auth domain.OrderAuthorization) error
}

// RecurringBiller is implemented by modules that can set up recurring
// billing for subscription products.
type RecurringBiller interface {
	CreateSubscription(ctx context.Context, order *domain.Order) Result
}

// Registry holds the configured payment modules keyed by processor key.
type Registry struct {
	processors map[string]Processor
	order      []string
}

// NewRegistry registers modules in the given order.
func NewRegistry(processors ...Processor) *Registry {
	r := &Registry{processors: make(map[string]Processor, len(processors))}
	for _, p := range processors {
		if _, ok := r.processors[p.Key()]; ok {
			continue
		}
		r.processors[p.Key()] = p
		r.order = append(r.order, p.Key())
	}
	return r
}

// Get returns the module for a key, or false when none is registered.
func (r *Registry) Get(key string) (Processor, bool) {
	p, ok := r.processors[key]
	return p, ok
}

// Keys lists the registered processor keys in registration order.
func (r *Registry) Keys() []string {
	keys := make([]string, len(r.order))
	copy(keys, r.order)
	return keys
}
