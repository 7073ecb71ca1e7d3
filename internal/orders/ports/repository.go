package ports

import (
	"context"
	"errors"
	"time"

	"github.com/predatell/satchmo/internal/discount"
	"github.com/predatell/satchmo/internal/orders/domain"
)

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateTransaction is returned when a payment with the same
	// processor and transaction id has already been recorded.
	ErrDuplicateTransaction = errors.New("transaction already recorded")
)

// OrderRepository exposes persistence operations required by the
// application layer. Save persists the full order aggregate including
// items, statuses, payments, authorizations and variables.
type OrderRepository interface {
	Create(ctx context.Context, order domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	List(ctx context.Context, filter ListFilter) ([]domain.Order, error)
	Save(ctx context.Context, order domain.Order) error
	SaveStatus(ctx context.Context, orderID string, status domain.OrderStatus) error
	// SavePayment persists a payment row. It fails with
	// ErrDuplicateTransaction when the (processor, transaction id) pair
	// already exists for the order, so gateway callbacks can be replayed
	// safely.
	SavePayment(ctx context.Context, payment domain.OrderPayment) error
	SaveAuthorization(ctx context.Context, auth domain.OrderAuthorization) error
	SaveFailure(ctx context.Context, failure domain.OrderPaymentFailure) error
	// WithOrderLock runs fn while holding an exclusive per-order lock, so
	// two concurrent confirmations of the same order serialize.
	WithOrderLock(ctx context.Context, orderID string, fn func(ctx context.Context) error) error
}

// ListFilter narrows list queries by status and pagination.
type ListFilter struct {
	Status   *string
	Page     int
	PageSize int
}

// DiscountRepository resolves discount codes and automatic sales.
type DiscountRepository interface {
	discount.Finder
	// IncrementUses bumps the redemption counter once a confirmed order
	// carries the code.
	IncrementUses(ctx context.Context, code string) error
}

// GiftCertificateRepository persists certificates and their append-only
// usage ledger.
type GiftCertificateRepository interface {
	GetByCode(ctx context.Context, site, code string) (*domain.GiftCertificate, error)
	Create(ctx context.Context, cert domain.GiftCertificate) error
	AddUsage(ctx context.Context, code string, usage domain.GiftCertificateUsage) error
}

// Clock abstracts time for deterministic tests.
type Clock func() time.Time
