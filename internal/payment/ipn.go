package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/predatell/satchmo/internal/orders/ports"
)

// IPNKey identifies payments recorded from asynchronous gateway
// notifications.
const IPNKey = "IPN"

var (
	// ErrBadSignature is returned when a notification fails verification.
	// Nothing is mutated in that case.
	ErrBadSignature = errors.New("invalid notification signature")

	// ErrUnknownOrder is returned when a notification references an order
	// that does not exist.
	ErrUnknownOrder = errors.New("notification references unknown order")
)

// Notification is an asynchronous payment notification from a gateway.
type Notification struct {
	OrderID       string          `json:"order_id"`
	TransactionID string          `json:"transaction_id"`
	Amount        decimal.Decimal `json:"amount"`
	Status        string          `json:"status"`
	Signature     string          `json:"signature"`
}

// Sign computes the notification signature with the shared secret. The
// signed string is the fixed pipe-joined field order; both sides must
// agree on it exactly.
func (n Notification) Sign(secret []byte) string {
	mac := hmac.New(sha1.New, secret)
	mac.Write([]byte(strings.Join([]string{
		n.OrderID,
		n.TransactionID,
		n.Amount.StringFixed(2),
		n.Status,
	}, "|")))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks the embedded signature in constant time.
func (n Notification) Verify(secret []byte) bool {
	return hmac.Equal([]byte(n.Sign(secret)), []byte(n.Signature))
}

// IPNHandler processes asynchronous gateway notifications. Verification
// happens before any state is touched, and a replayed transaction id is
// acknowledged without writing a second payment row.
type IPNHandler struct {
	secret   []byte
	orders   ports.OrderRepository
	recorder *Recorder
	bus      ports.EventBus
	logger   *slog.Logger
	now      func() time.Time
}

// NewIPNHandler builds the notification handler. clock may be nil.
func NewIPNHandler(secret []byte, orders ports.OrderRepository, recorder *Recorder, bus ports.EventBus, logger *slog.Logger, clock func() time.Time) *IPNHandler {
	if clock == nil {
		clock = time.Now
	}
	return &IPNHandler{secret: secret, orders: orders, recorder: recorder, bus: bus, logger: logger, now: clock}
}

// Process validates and applies one notification. It is safe to call
// more than once with the same payload.
func (h *IPNHandler) Process(ctx context.Context, n Notification) error {
	if !n.Verify(h.secret) {
		h.logger.WarnContext(ctx, "rejected notification with bad signature",
			"order_id", n.OrderID, "transaction_id", n.TransactionID)
		return ErrBadSignature
	}

	order, err := h.orders.GetByID(ctx, n.OrderID)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return ErrUnknownOrder
		}
		return fmt.Errorf("load order: %w", err)
	}

	if order.HasTransaction(IPNKey, n.TransactionID) {
		h.logger.InfoContext(ctx, "duplicate notification acknowledged",
			"order_id", n.OrderID, "transaction_id", n.TransactionID)
		return nil
	}

	if !strings.EqualFold(n.Status, "Completed") {
		h.logger.InfoContext(ctx, "ignoring non-completed notification",
			"order_id", n.OrderID, "status", n.Status)
		return nil
	}

	return h.orders.WithOrderLock(ctx, order.ID, func(ctx context.Context) error {
		// Reload under the lock so a concurrent notification for the same
		// transaction is seen.
		order, err := h.orders.GetByID(ctx, n.OrderID)
		if err != nil {
			return fmt.Errorf("load order: %w", err)
		}
		if order.HasTransaction(IPNKey, n.TransactionID) {
			return nil
		}

		payment, err := h.recorder.RecordPayment(ctx, order, IPNKey, n.Amount, n.TransactionID, "0")
		if err != nil {
			return err
		}
		if err := h.bus.PublishPaymentRecorded(ctx, order, payment); err != nil {
			return err
		}

		if order.PaidInFull() {
			if order.MarkSubmitted(h.now()) {
				status := order.LatestStatus()
				if err := h.orders.SaveStatus(ctx, order.ID, *status); err != nil {
					return fmt.Errorf("save status: %w", err)
				}
			}
			if err := h.bus.PublishOrderSuccess(ctx, order); err != nil {
				return err
			}
		}
		return nil
	})
}
