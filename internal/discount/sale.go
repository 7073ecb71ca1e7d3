package discount

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/predatell/satchmo/internal/cache"
)

// ErrNoSale is returned when no automatic discount is running today.
var ErrNoSale = errors.New("no sale is active")

// noSaleMarker is cached on a miss so the absence of a sale does not cause
// a repository query on every request.
const noSaleMarker = "-"

// Finder is the slice of the discount repository the sale lookup needs.
type Finder interface {
	// FindAutomatic returns the active automatic discounts whose validity
	// window contains day, ordered by percentage descending.
	FindAutomatic(ctx context.Context, site string, day time.Time) ([]Discount, error)
	// GetByCode fetches an active discount by its coupon code.
	GetByCode(ctx context.Context, code string) (*Discount, error)
}

// Sales resolves the current site-wide sale, caching the winning code per
// site and day.
type Sales struct {
	finder Finder
	cache  cache.Cache
	logger *slog.Logger
}

// NewSales wires a sale resolver.
func NewSales(finder Finder, c cache.Cache, logger *slog.Logger) *Sales {
	return &Sales{finder: finder, cache: c, logger: logger}
}

// Current returns today's sale: the active automatic discount with the
// highest percentage. ErrNoSale when none is running.
func (s *Sales) Current(ctx context.Context, site string, now time.Time) (*Discount, error) {
	day := now.Format("2006-01-02")
	key := s.cache.GenerateKey("sale", fmt.Sprintf("%s:%s", site, day))

	cached, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.WarnContext(ctx, "sale cache unavailable", "error", err)
	}
	switch cached {
	case "":
		// fall through to the repository
	case noSaleMarker:
		return nil, ErrNoSale
	default:
		if d, err := s.finder.GetByCode(ctx, cached); err == nil {
			return d, nil
		}
	}

	sales, err := s.finder.FindAutomatic(ctx, site, now)
	if err != nil {
		return nil, fmt.Errorf("find automatic discounts: %w", err)
	}

	ttl := time.Until(now.Truncate(24 * time.Hour).AddDate(0, 0, 1))
	if len(sales) == 0 {
		if err := s.cache.Set(ctx, key, noSaleMarker, ttl); err != nil {
			s.logger.WarnContext(ctx, "sale cache write failed", "error", err)
		}
		return nil, ErrNoSale
	}

	sale := sales[0]
	if err := s.cache.Set(ctx, key, sale.Code, ttl); err != nil {
		s.logger.WarnContext(ctx, "sale cache write failed", "error", err)
	}
	return &sale, nil
}
