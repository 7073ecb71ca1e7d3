package payment

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/predatell/satchmo/internal/orders/domain"
	"github.com/predatell/satchmo/internal/orders/ports"
	"github.com/predatell/satchmo/internal/product"
)

// GiftCertificateKey identifies the stored-value processor.
const GiftCertificateKey = "GIFTCERTIFICATE"

// GiftCertificateProcessor pays an order from a stored-value certificate.
// A certificate that covers only part of the balance still succeeds with
// a partial payment; the confirm flow decides what happens to the rest.
type GiftCertificateProcessor struct {
	certs    ports.GiftCertificateRepository
	recorder *Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// NewGiftCertificateProcessor builds the stored-value processor. clock
// may be nil to use wall time.
func NewGiftCertificateProcessor(certs ports.GiftCertificateRepository, recorder *Recorder, logger *slog.Logger, clock func() time.Time) *GiftCertificateProcessor {
	if clock == nil {
		clock = time.Now
	}
	return &GiftCertificateProcessor{certs: certs, recorder: recorder, logger: logger, now: clock}
}

func (g *GiftCertificateProcessor) Key() string { return GiftCertificateKey }

// Prepare verifies the code exists and is usable before the customer
// reaches the confirmation page.
func (g *GiftCertificateProcessor) Prepare(ctx context.Context, order *domain.Order) error {
	code := order.Variable(domain.GiftCodeKey, "")
	if code == "" {
		return errors.New("no gift certificate code given")
	}
	cert, err := g.certs.GetByCode(ctx, order.Site, code)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return errors.New("invalid gift certificate code")
		}
		return fmt.Errorf("look up gift certificate: %w", err)
	}
	if !cert.Valid {
		return errors.New("this gift certificate is no longer valid")
	}
	return nil
}

func (g *GiftCertificateProcessor) Capture(ctx context.Context, order *domain.Order, amount *decimal.Decimal) Result {
	code := order.Variable(domain.GiftCodeKey, "")
	if code == "" {
		return Result{Processor: GiftCertificateKey, Message: "No gift certificate code given"}
	}

	cert, err := g.certs.GetByCode(ctx, order.Site, code)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return Result{Processor: GiftCertificateKey, Message: "Invalid gift certificate code"}
		}
		return Result{Processor: GiftCertificateKey, Message: err.Error()}
	}
	if !cert.Valid {
		return Result{Processor: GiftCertificateKey, Message: "This gift certificate is no longer valid"}
	}

	wanted := order.Balance()
	if amount != nil {
		wanted = *amount
	}

	amt := cert.Covering(wanted)
	if !amt.IsPositive() {
		return Result{Processor: GiftCertificateKey, Message: "This gift certificate has no remaining balance"}
	}

	payment, err := g.recorder.RecordPayment(ctx, order, GiftCertificateKey, amt, cert.Code, "0")
	if err != nil {
		return Result{Processor: GiftCertificateKey, Message: err.Error()}
	}

	usage := domain.GiftCertificateUsage{
		ID:             uuid.NewString(),
		BalanceUsed:    amt,
		OrderPaymentID: payment.ID,
		UsedByID:       order.Contact.ID,
		UsedAt:         g.now(),
	}
	if err := g.certs.AddUsage(ctx, cert.Code, usage); err != nil {
		return Result{Processor: GiftCertificateKey, Message: err.Error()}
	}
	cert.Use(usage.ID, amt, payment.ID, usage.UsedAt)

	g.logger.InfoContext(ctx, "gift certificate applied",
		"order_id", order.ID, "code", cert.Code, "amount", amt.String(), "remaining", cert.Balance().String())

	return Result{Processor: GiftCertificateKey, Success: true, Payment: &payment}
}

// IssueCertificates creates a certificate for every gift certificate
// product on a fully paid order. Wire it as an order-success listener.
func (g *GiftCertificateProcessor) IssueCertificates(ctx context.Context, order *domain.Order) error {
	for _, item := range order.Items {
		if item.Product.Kind != product.GiftCertificate {
			continue
		}
		for i := 0; i < item.Quantity; i++ {
			cert := domain.GiftCertificate{
				ID:            uuid.NewString(),
				Site:          order.Site,
				Code:          generateGiftCode(),
				PurchasedByID: order.Contact.ID,
				StartBalance:  item.UnitPrice,
				Valid:         true,
				CreatedAt:     g.now(),
			}
			if err := g.certs.Create(ctx, cert); err != nil {
				return fmt.Errorf("issue gift certificate: %w", err)
			}
			g.logger.InfoContext(ctx, "gift certificate issued",
				"order_id", order.ID, "code", cert.Code, "balance", cert.StartBalance.String())
		}
	}
	return nil
}

// generateGiftCode builds a customer-facing code. The alphabet skips
// lookalike characters.
func generateGiftCode() string {
	const alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:12]
	}
	var sb strings.Builder
	for i, b := range buf {
		if i > 0 && i%4 == 0 {
			sb.WriteByte('-')
		}
		sb.WriteByte(alphabet[int(b)%len(alphabet)])
	}
	return sb.String()
}
