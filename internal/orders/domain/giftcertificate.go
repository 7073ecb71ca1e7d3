package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/predatell/satchmo/internal/money"
)

// GiftCodeKey is the order variable under which the gift certificate code
// entered at checkout is stored.
const GiftCodeKey = "GIFTCODE"

// GiftCertificate is a stored-value instrument. Its balance is never stored
// as a running total: it is always recomputed from the append-only usage
// ledger, so concurrent orders cannot lose updates.
type GiftCertificate struct {
	ID             string          `json:"id"`
	Site           string          `json:"site"`
	Code           string          `json:"code"`
	PurchasedByID  string          `json:"purchased_by_id"`
	RecipientEmail string          `json:"recipient_email"`
	Message        string          `json:"message"`
	StartBalance   decimal.Decimal `json:"start_balance"`
	Valid          bool            `json:"valid"`
	CreatedAt      time.Time       `json:"created_at"`

	Usages []GiftCertificateUsage `json:"usages"`
}

// GiftCertificateUsage is one ledger entry. Rows are appended and never
// mutated or deleted.
type GiftCertificateUsage struct {
	ID             string          `json:"id"`
	BalanceUsed    decimal.Decimal `json:"balance_used"`
	OrderPaymentID string          `json:"order_payment_id"`
	UsedByID       string          `json:"used_by_id"`
	Notes          string          `json:"notes"`
	UsedAt         time.Time       `json:"used_at"`
}

// Balance is the start balance minus everything in the ledger.
func (gc *GiftCertificate) Balance() decimal.Decimal {
	b := gc.StartBalance
	for _, usage := range gc.Usages {
		b = b.Sub(usage.BalanceUsed)
	}
	return b
}

// Use appends a ledger entry consuming amount and returns the new balance.
func (gc *GiftCertificate) Use(id string, amount decimal.Decimal, orderPaymentID string, now time.Time) decimal.Decimal {
	gc.Usages = append(gc.Usages, GiftCertificateUsage{
		ID:             id,
		BalanceUsed:    amount,
		OrderPaymentID: orderPaymentID,
		UsedAt:         now,
	})
	return gc.Balance()
}

// Covering returns how much of the wanted amount this certificate can pay:
// the smaller of its balance and the wanted amount, never negative.
func (gc *GiftCertificate) Covering(wanted decimal.Decimal) decimal.Decimal {
	balance := gc.Balance()
	if balance.LessThan(wanted) {
		wanted = balance
	}
	if wanted.IsNegative() {
		return money.Zero
	}
	return wanted
}
