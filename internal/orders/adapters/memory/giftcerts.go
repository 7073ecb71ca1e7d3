package memory

import (
	"context"
	"sync"

	"github.com/predatell/satchmo/internal/orders/domain"
	"github.com/predatell/satchmo/internal/orders/ports"
)

// GiftCertificateRepository is an in-memory certificate store. The usage
// ledger is append-only, matching the persistence contract.
type GiftCertificateRepository struct {
	mu    sync.RWMutex
	certs map[string]domain.GiftCertificate
}

// NewGiftCertificateRepository constructs an empty certificate store.
func NewGiftCertificateRepository() *GiftCertificateRepository {
	return &GiftCertificateRepository{certs: make(map[string]domain.GiftCertificate)}
}

// Create stores a new certificate.
func (r *GiftCertificateRepository) Create(_ context.Context, cert domain.GiftCertificate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.certs[certKey(cert.Site, cert.Code)] = cert
	return nil
}

// GetByCode fetches a certificate with its full usage ledger.
func (r *GiftCertificateRepository) GetByCode(_ context.Context, site, code string) (*domain.GiftCertificate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cert, ok := r.certs[certKey(site, code)]
	if !ok {
		return nil, ports.ErrNotFound
	}
	copy := cert
	copy.Usages = append([]domain.GiftCertificateUsage(nil), cert.Usages...)
	return &copy, nil
}

// AddUsage appends a ledger entry. Entries are never mutated or removed.
func (r *GiftCertificateRepository) AddUsage(_ context.Context, code string, usage domain.GiftCertificateUsage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, cert := range r.certs {
		if cert.Code != code {
			continue
		}
		cert.Usages = append(cert.Usages, usage)
		r.certs[key] = cert
		return nil
	}
	return ports.ErrNotFound
}

func certKey(site, code string) string {
	return site + "/" + code
}
