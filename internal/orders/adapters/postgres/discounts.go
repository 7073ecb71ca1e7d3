package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/predatell/satchmo/internal/discount"
	"github.com/predatell/satchmo/internal/orders/ports"
)

type DiscountRepository struct {
	pool *pgxpool.Pool
}

func NewDiscountRepository(pool *pgxpool.Pool) *DiscountRepository {
	return &DiscountRepository{pool: pool}
}

const discountColumns = `
	id, site, code, description, active, amount, percentage, automatic,
	allowed_uses, num_uses, min_order, start_date, end_date, shipping,
	all_valid, valid_products
`

func (r *DiscountRepository) GetByCode(ctx context.Context, code string) (*discount.Discount, error) {
	query := `SELECT ` + discountColumns + ` FROM discounts WHERE code = $1`

	d, err := scanDiscount(r.pool.QueryRow(ctx, query, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ports.ErrNotFound
		}
		return nil, fmt.Errorf("select discount: %w", err)
	}
	return d, nil
}

// FindAutomatic returns active automatic discounts valid on day, steepest
// percentage first so the winning sale sorts to the front.
func (r *DiscountRepository) FindAutomatic(ctx context.Context, site string, day time.Time) ([]discount.Discount, error) {
	query := `
		SELECT ` + discountColumns + `
		FROM discounts
		WHERE automatic
		  AND active
		  AND (site = '' OR site = $1)
		  AND start_date <= $2
		  AND end_date >= $2
		ORDER BY percentage DESC NULLS LAST, code
	`

	rows, err := r.pool.Query(ctx, query, site, day)
	if err != nil {
		return nil, fmt.Errorf("query automatic discounts: %w", err)
	}
	defer rows.Close()

	var discounts []discount.Discount
	for rows.Next() {
		d, err := scanDiscount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan discount: %w", err)
		}
		discounts = append(discounts, *d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate discounts: %w", err)
	}
	return discounts, nil
}

func (r *DiscountRepository) IncrementUses(ctx context.Context, code string) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE discounts SET num_uses = num_uses + 1 WHERE code = $1`, code)
	if err != nil {
		return fmt.Errorf("increment discount uses: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ports.ErrNotFound
	}
	return nil
}

func scanDiscount(row pgx.Row) (*discount.Discount, error) {
	var d discount.Discount
	var shipping string
	err := row.Scan(
		&d.ID,
		&d.Site,
		&d.Code,
		&d.Description,
		&d.Active,
		&d.Amount,
		&d.Percentage,
		&d.Automatic,
		&d.AllowedUses,
		&d.NumUses,
		&d.MinOrder,
		&d.StartDate,
		&d.EndDate,
		&shipping,
		&d.AllValid,
		&d.ValidProducts,
	)
	if err != nil {
		return nil, err
	}
	d.Shipping = discount.ShippingPolicy(shipping)
	return &d, nil
}
