// Package postgres persists the order aggregate and its related records.
// Monetary columns are NUMERIC(12,2) and scan directly into decimals.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/predatell/satchmo/internal/orders/domain"
	"github.com/predatell/satchmo/internal/orders/ports"
)

const pgUniqueViolation = "23505"

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Create(ctx context.Context, order domain.Order) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO orders (
			id, site, contact, status, notes, discount_code,
			shipping_method, shipping_description,
			sub_total, shipping_cost, shipping_discount, tax, discount, total,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	_, err = tx.Exec(ctx, query,
		order.ID,
		order.Site,
		order.Contact,
		order.Status,
		order.Notes,
		order.DiscountCode,
		order.ShippingMethod,
		order.ShippingDescription,
		order.SubTotal,
		order.ShippingCost,
		order.ShippingDiscount,
		order.Tax,
		order.Discount,
		order.Total,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	if err := insertItems(ctx, tx, order.ID, order.Items); err != nil {
		return err
	}
	if err := insertVariables(ctx, tx, order.ID, order.Variables); err != nil {
		return err
	}
	if err := insertStatuses(ctx, tx, order.ID, order.Statuses); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	query := `
		SELECT id, site, contact, status, notes, discount_code,
		       shipping_method, shipping_description,
		       sub_total, shipping_cost, shipping_discount, tax, discount, total,
		       created_at, updated_at
		FROM orders
		WHERE id = $1
	`

	var order domain.Order
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&order.ID,
		&order.Site,
		&order.Contact,
		&order.Status,
		&order.Notes,
		&order.DiscountCode,
		&order.ShippingMethod,
		&order.ShippingDescription,
		&order.SubTotal,
		&order.ShippingCost,
		&order.ShippingDiscount,
		&order.Tax,
		&order.Discount,
		&order.Total,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ports.ErrNotFound
		}
		return nil, fmt.Errorf("select order: %w", err)
	}

	if err := r.loadChildren(ctx, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// List returns order rows without their child collections; callers needing
// items or payments load individual orders with GetByID.
func (r *Repository) List(ctx context.Context, filter ports.ListFilter) ([]domain.Order, error) {
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	query := `
		SELECT id, site, contact, status, notes, discount_code,
		       shipping_method, shipping_description,
		       sub_total, shipping_cost, shipping_discount, tax, discount, total,
		       created_at, updated_at
		FROM orders
		WHERE ($1::text IS NULL OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	offset := (page - 1) * pageSize

	rows, err := r.pool.Query(ctx, query, filter.Status, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		var order domain.Order
		if err := rows.Scan(
			&order.ID,
			&order.Site,
			&order.Contact,
			&order.Status,
			&order.Notes,
			&order.DiscountCode,
			&order.ShippingMethod,
			&order.ShippingDescription,
			&order.SubTotal,
			&order.ShippingCost,
			&order.ShippingDiscount,
			&order.Tax,
			&order.Discount,
			&order.Total,
			&order.CreatedAt,
			&order.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}

	return orders, nil
}

// Save rewrites the order row, items and variables, and upserts the
// monetary child records. Payments and failures are insert-only; an
// authorization row may flip its complete flag.
func (r *Repository) Save(ctx context.Context, order domain.Order) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE orders
		SET site = $2, contact = $3, status = $4, notes = $5, discount_code = $6,
		    shipping_method = $7, shipping_description = $8,
		    sub_total = $9, shipping_cost = $10, shipping_discount = $11,
		    tax = $12, discount = $13, total = $14, updated_at = $15
		WHERE id = $1
	`

	result, err := tx.Exec(ctx, query,
		order.ID,
		order.Site,
		order.Contact,
		order.Status,
		order.Notes,
		order.DiscountCode,
		order.ShippingMethod,
		order.ShippingDescription,
		order.SubTotal,
		order.ShippingCost,
		order.ShippingDiscount,
		order.Tax,
		order.Discount,
		order.Total,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ports.ErrNotFound
	}

	if _, err := tx.Exec(ctx, `DELETE FROM order_items WHERE order_id = $1`, order.ID); err != nil {
		return fmt.Errorf("clear order items: %w", err)
	}
	if err := insertItems(ctx, tx, order.ID, order.Items); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM order_variables WHERE order_id = $1`, order.ID); err != nil {
		return fmt.Errorf("clear order variables: %w", err)
	}
	if err := insertVariables(ctx, tx, order.ID, order.Variables); err != nil {
		return err
	}

	if err := insertStatuses(ctx, tx, order.ID, order.Statuses); err != nil {
		return err
	}
	for _, p := range order.Payments {
		if err := insertPayment(ctx, tx, p, true); err != nil {
			return err
		}
	}
	for _, a := range order.Authorizations {
		if err := upsertAuthorization(ctx, tx, a); err != nil {
			return err
		}
	}
	for _, f := range order.Failures {
		if err := insertFailure(ctx, tx, f); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (r *Repository) SaveStatus(ctx context.Context, orderID string, status domain.OrderStatus) error {
	if status.ID == "" {
		status.ID = uuid.NewString()
	}

	query := `
		INSERT INTO order_statuses (id, order_id, status, notes, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET notes = EXCLUDED.notes
	`

	_, err := r.pool.Exec(ctx, query, status.ID, orderID, status.Status, status.Notes, status.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert order status: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`UPDATE orders SET status = $2, updated_at = $3 WHERE id = $1`,
		orderID, status.Status, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("update order status label: %w", err)
	}
	return nil
}

func (r *Repository) SavePayment(ctx context.Context, payment domain.OrderPayment) error {
	return insertPayment(ctx, r.pool, payment, false)
}

func (r *Repository) SaveAuthorization(ctx context.Context, auth domain.OrderAuthorization) error {
	return upsertAuthorization(ctx, r.pool, auth)
}

func (r *Repository) SaveFailure(ctx context.Context, failure domain.OrderPaymentFailure) error {
	return insertFailure(ctx, r.pool, failure)
}

// WithOrderLock serializes concurrent work on one order with a transaction
// scoped advisory lock. The lock is keyed on the order id and released when
// the transaction ends, whether fn succeeds or not.
func (r *Repository) WithOrderLock(ctx context.Context, orderID string, fn func(ctx context.Context) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin lock tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, orderID); err != nil {
		return fmt.Errorf("acquire order lock: %w", err)
	}

	if err := fn(ctx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("release order lock: %w", err)
	}
	return nil
}

// execer is satisfied by both *pgxpool.Pool and pgx.Tx.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertItems(ctx context.Context, tx execer, orderID string, items []domain.OrderItem) error {
	query := `
		INSERT INTO order_items (id, order_id, product, quantity, unit_price, line_item_price, discount, expire_date, completed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	for _, item := range items {
		_, err := tx.Exec(ctx, query,
			item.ID,
			orderID,
			item.Product,
			item.Quantity,
			item.UnitPrice,
			item.LineItemPrice,
			item.Discount,
			item.ExpireDate,
			item.Completed,
		)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}
	return nil
}

func insertVariables(ctx context.Context, tx execer, orderID string, vars []domain.OrderVariable) error {
	query := `
		INSERT INTO order_variables (order_id, key, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (order_id, key) DO UPDATE SET value = EXCLUDED.value
	`
	for _, v := range vars {
		if _, err := tx.Exec(ctx, query, orderID, v.Key, v.Value); err != nil {
			return fmt.Errorf("insert order variable: %w", err)
		}
	}
	return nil
}

func insertStatuses(ctx context.Context, tx execer, orderID string, statuses []domain.OrderStatus) error {
	query := `
		INSERT INTO order_statuses (id, order_id, status, notes, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET notes = EXCLUDED.notes
	`
	for _, s := range statuses {
		if s.ID == "" {
			s.ID = uuid.NewString()
		}
		if _, err := tx.Exec(ctx, query, s.ID, orderID, s.Status, s.Notes, s.CreatedAt); err != nil {
			return fmt.Errorf("insert order status: %w", err)
		}
	}
	return nil
}

// insertPayment writes a payment row. A duplicate (order, processor,
// transaction) hits the partial unique index and maps to
// ErrDuplicateTransaction, or is silently skipped when tolerateDuplicate
// is set (resaving a full aggregate).
func insertPayment(ctx context.Context, tx execer, payment domain.OrderPayment, tolerateDuplicate bool) error {
	query := `
		INSERT INTO order_payments (id, order_id, processor, amount, transaction_id, reason_code, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if tolerateDuplicate {
		query += ` ON CONFLICT DO NOTHING`
	}

	_, err := tx.Exec(ctx, query,
		payment.ID,
		payment.OrderID,
		payment.Processor,
		payment.Amount,
		payment.TransactionID,
		payment.ReasonCode,
		payment.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ports.ErrDuplicateTransaction
		}
		return fmt.Errorf("insert order payment: %w", err)
	}
	return nil
}

func upsertAuthorization(ctx context.Context, tx execer, auth domain.OrderAuthorization) error {
	query := `
		INSERT INTO order_authorizations (id, order_id, processor, amount, transaction_id, reason_code, complete, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET complete = EXCLUDED.complete
	`

	_, err := tx.Exec(ctx, query,
		auth.ID,
		auth.OrderID,
		auth.Processor,
		auth.Amount,
		auth.TransactionID,
		auth.ReasonCode,
		auth.Complete,
		auth.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order authorization: %w", err)
	}
	return nil
}

func insertFailure(ctx context.Context, tx execer, failure domain.OrderPaymentFailure) error {
	query := `
		INSERT INTO order_payment_failures (id, order_id, processor, amount, reason_code, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`

	_, err := tx.Exec(ctx, query,
		failure.ID,
		failure.OrderID,
		failure.Processor,
		failure.Amount,
		failure.ReasonCode,
		failure.Details,
		failure.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payment failure: %w", err)
	}
	return nil
}

func (r *Repository) loadChildren(ctx context.Context, order *domain.Order) error {
	if err := r.loadItems(ctx, order); err != nil {
		return err
	}
	if err := r.loadStatuses(ctx, order); err != nil {
		return err
	}
	if err := r.loadPayments(ctx, order); err != nil {
		return err
	}
	if err := r.loadAuthorizations(ctx, order); err != nil {
		return err
	}
	if err := r.loadFailures(ctx, order); err != nil {
		return err
	}
	return r.loadVariables(ctx, order)
}

func (r *Repository) loadItems(ctx context.Context, order *domain.Order) error {
	query := `
		SELECT id, product, quantity, unit_price, line_item_price, discount, expire_date, completed
		FROM order_items
		WHERE order_id = $1
		ORDER BY id
	`

	rows, err := r.pool.Query(ctx, query, order.ID)
	if err != nil {
		return fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(
			&item.ID,
			&item.Product,
			&item.Quantity,
			&item.UnitPrice,
			&item.LineItemPrice,
			&item.Discount,
			&item.ExpireDate,
			&item.Completed,
		); err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		order.Items = append(order.Items, item)
	}
	return rows.Err()
}

func (r *Repository) loadStatuses(ctx context.Context, order *domain.Order) error {
	query := `
		SELECT id, status, notes, created_at
		FROM order_statuses
		WHERE order_id = $1
		ORDER BY created_at, id
	`

	rows, err := r.pool.Query(ctx, query, order.ID)
	if err != nil {
		return fmt.Errorf("query order statuses: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s domain.OrderStatus
		if err := rows.Scan(&s.ID, &s.Status, &s.Notes, &s.CreatedAt); err != nil {
			return fmt.Errorf("scan order status: %w", err)
		}
		order.Statuses = append(order.Statuses, s)
	}
	return rows.Err()
}

func (r *Repository) loadPayments(ctx context.Context, order *domain.Order) error {
	query := `
		SELECT id, order_id, processor, amount, transaction_id, reason_code, created_at
		FROM order_payments
		WHERE order_id = $1
		ORDER BY created_at, id
	`

	rows, err := r.pool.Query(ctx, query, order.ID)
	if err != nil {
		return fmt.Errorf("query order payments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p domain.OrderPayment
		if err := rows.Scan(&p.ID, &p.OrderID, &p.Processor, &p.Amount, &p.TransactionID, &p.ReasonCode, &p.CreatedAt); err != nil {
			return fmt.Errorf("scan order payment: %w", err)
		}
		order.Payments = append(order.Payments, p)
	}
	return rows.Err()
}

func (r *Repository) loadAuthorizations(ctx context.Context, order *domain.Order) error {
	query := `
		SELECT id, order_id, processor, amount, transaction_id, reason_code, complete, created_at
		FROM order_authorizations
		WHERE order_id = $1
		ORDER BY created_at, id
	`

	rows, err := r.pool.Query(ctx, query, order.ID)
	if err != nil {
		return fmt.Errorf("query order authorizations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var a domain.OrderAuthorization
		if err := rows.Scan(&a.ID, &a.OrderID, &a.Processor, &a.Amount, &a.TransactionID, &a.ReasonCode, &a.Complete, &a.CreatedAt); err != nil {
			return fmt.Errorf("scan order authorization: %w", err)
		}
		order.Authorizations = append(order.Authorizations, a)
	}
	return rows.Err()
}

func (r *Repository) loadFailures(ctx context.Context, order *domain.Order) error {
	query := `
		SELECT id, order_id, processor, amount, reason_code, details, created_at
		FROM order_payment_failures
		WHERE order_id = $1
		ORDER BY created_at, id
	`

	rows, err := r.pool.Query(ctx, query, order.ID)
	if err != nil {
		return fmt.Errorf("query payment failures: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var f domain.OrderPaymentFailure
		if err := rows.Scan(&f.ID, &f.OrderID, &f.Processor, &f.Amount, &f.ReasonCode, &f.Details, &f.CreatedAt); err != nil {
			return fmt.Errorf("scan payment failure: %w", err)
		}
		order.Failures = append(order.Failures, f)
	}
	return rows.Err()
}

func (r *Repository) loadVariables(ctx context.Context, order *domain.Order) error {
	query := `
		SELECT key, value
		FROM order_variables
		WHERE order_id = $1
		ORDER BY key
	`

	rows, err := r.pool.Query(ctx, query, order.ID)
	if err != nil {
		return fmt.Errorf("query order variables: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var v domain.OrderVariable
		if err := rows.Scan(&v.Key, &v.Value); err != nil {
			return fmt.Errorf("scan order variable: %w", err)
		}
		order.Variables = append(order.Variables, v)
	}
	return rows.Err()
}
