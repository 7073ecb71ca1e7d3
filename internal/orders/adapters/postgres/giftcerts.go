package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/predatell/satchmo/internal/orders/domain"
	"github.com/predatell/satchmo/internal/orders/ports"
)

// GiftCertificateRepository persists certificates and their usage ledger.
// Usage rows are append-only; the certificate balance is always derived
// from the ledger, never stored.
type GiftCertificateRepository struct {
	pool *pgxpool.Pool
}

func NewGiftCertificateRepository(pool *pgxpool.Pool) *GiftCertificateRepository {
	return &GiftCertificateRepository{pool: pool}
}

func (r *GiftCertificateRepository) Create(ctx context.Context, cert domain.GiftCertificate) error {
	query := `
		INSERT INTO gift_certificates (id, site, code, purchased_by_id, recipient_email, message, start_balance, valid, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.pool.Exec(ctx, query,
		cert.ID,
		cert.Site,
		cert.Code,
		cert.PurchasedByID,
		cert.RecipientEmail,
		cert.Message,
		cert.StartBalance,
		cert.Valid,
		cert.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert gift certificate: %w", err)
	}
	return nil
}

func (r *GiftCertificateRepository) GetByCode(ctx context.Context, site, code string) (*domain.GiftCertificate, error) {
	query := `
		SELECT id, site, code, purchased_by_id, recipient_email, message, start_balance, valid, created_at
		FROM gift_certificates
		WHERE site = $1 AND code = $2
	`

	var cert domain.GiftCertificate
	err := r.pool.QueryRow(ctx, query, site, code).Scan(
		&cert.ID,
		&cert.Site,
		&cert.Code,
		&cert.PurchasedByID,
		&cert.RecipientEmail,
		&cert.Message,
		&cert.StartBalance,
		&cert.Valid,
		&cert.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ports.ErrNotFound
		}
		return nil, fmt.Errorf("select gift certificate: %w", err)
	}

	if err := r.loadUsages(ctx, &cert); err != nil {
		return nil, err
	}
	return &cert, nil
}

// AddUsage appends one ledger entry. Existing entries are never touched.
func (r *GiftCertificateRepository) AddUsage(ctx context.Context, code string, usage domain.GiftCertificateUsage) error {
	query := `
		INSERT INTO gift_certificate_usages (id, certificate_id, balance_used, order_payment_id, used_by_id, notes, used_at)
		SELECT $1, gc.id, $2, $3, $4, $5, $6
		FROM gift_certificates gc
		WHERE gc.code = $7
	`

	result, err := r.pool.Exec(ctx, query,
		usage.ID,
		usage.BalanceUsed,
		usage.OrderPaymentID,
		usage.UsedByID,
		usage.Notes,
		usage.UsedAt,
		code,
	)
	if err != nil {
		return fmt.Errorf("insert gift certificate usage: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ports.ErrNotFound
	}
	return nil
}

func (r *GiftCertificateRepository) loadUsages(ctx context.Context, cert *domain.GiftCertificate) error {
	query := `
		SELECT id, balance_used, order_payment_id, used_by_id, notes, used_at
		FROM gift_certificate_usages
		WHERE certificate_id = $1
		ORDER BY used_at, id
	`

	rows, err := r.pool.Query(ctx, query, cert.ID)
	if err != nil {
		return fmt.Errorf("query gift certificate usages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var u domain.GiftCertificateUsage
		if err := rows.Scan(&u.ID, &u.BalanceUsed, &u.OrderPaymentID, &u.UsedByID, &u.Notes, &u.UsedAt); err != nil {
			return fmt.Errorf("scan gift certificate usage: %w", err)
		}
		cert.Usages = append(cert.Usages, u)
	}
	return rows.Err()
}
