package payment

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/checkout/session"
	"github.com/stripe/stripe-go/v81/paymentintent"

	"github.com/predatell/satchmo/internal/orders/domain"
)

// StripeKey identifies the Stripe gateway module.
const StripeKey = "STRIPE"

// genericDeclineMessage is shown when the gateway failed for a reason the
// customer cannot act on.
const genericDeclineMessage = "The payment could not be processed. Please try again."

// Order variables written and read by the Stripe module.
const (
	StripeSessionIDKey     = "STRIPE_SESSION_ID"
	StripeSessionURLKey    = "STRIPE_SESSION_URL"
	StripePaymentMethodKey = "STRIPE_PAYMENT_METHOD"
)

// StripeConfig configures the Stripe gateway.
type StripeConfig struct {
	SecretKey  string
	Currency   string
	SuccessURL string
	CancelURL  string
	// Timeout bounds each remote call so a slow gateway cannot stall a
	// confirmation indefinitely.
	Timeout time.Duration
	Live    bool
}

// Stripe charges cards through the Stripe API. Remote failures come back
// as failed Results rather than errors so the confirm flow treats them
// like any other decline.
type Stripe struct {
	cfg      StripeConfig
	recorder *Recorder
	logger   *slog.Logger
}

// NewStripe builds the Stripe gateway and sets the API key.
func NewStripe(cfg StripeConfig, recorder *Recorder, logger *slog.Logger) *Stripe {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Currency == "" {
		cfg.Currency = string(stripe.CurrencyUSD)
	}
	if cfg.SecretKey != "" && !keyMatchesMode(cfg.SecretKey, cfg.Live) {
		logger.Warn("stripe secret key does not match the configured live mode", "live", cfg.Live)
	}
	stripe.Key = cfg.SecretKey
	return &Stripe{cfg: cfg, recorder: recorder, logger: logger}
}

// keyMatchesMode reports whether the secret key belongs to the configured
// mode, so a test key cannot silently serve live traffic or vice versa.
func keyMatchesMode(key string, live bool) bool {
	return live != strings.HasPrefix(key, "sk_test_")
}

func (s *Stripe) Key() string { return StripeKey }

// Prepare creates a checkout session for the order balance and stores
// the session id and redirect URL as order variables.
func (s *Stripe) Prepare(ctx context.Context, order *domain.Order) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	params := &stripe.CheckoutSessionParams{
		Params:     stripe.Params{Context: ctx},
		SubmitType: stripe.String("pay"),
		Currency:   stripe.String(s.cfg.Currency),
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(s.cfg.SuccessURL),
		CancelURL:  stripe.String(s.cfg.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Quantity: stripe.Int64(1),
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(s.cfg.Currency),
					UnitAmount: stripe.Int64(toMinorUnits(order.Balance())),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(fmt.Sprintf("Order %s", order.ID)),
					},
				},
			},
		},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: map[string]string{"order_id": order.ID},
		},
	}

	sess, err := session.New(params)
	if err != nil {
		return fmt.Errorf("create stripe checkout session: %w", err)
	}

	order.SetVariable(StripeSessionIDKey, sess.ID)
	order.SetVariable(StripeSessionURLKey, sess.URL)
	return nil
}

func (s *Stripe) Capture(ctx context.Context, order *domain.Order, amount *decimal.Decimal) Result {
	amt := order.Balance()
	if amount != nil {
		amt = *amount
	}

	pi, err := s.createIntent(ctx, order, amt, false)
	if err != nil {
		return s.fail(ctx, order, amt, err)
	}

	payment, err := s.recorder.RecordPayment(ctx, order, StripeKey, amt, pi.ID, "0")
	if err != nil {
		return Result{Processor: StripeKey, Message: err.Error()}
	}
	return Result{Processor: StripeKey, Success: true, Payment: &payment}
}

// Authorize places a manual-capture hold on the card.
func (s *Stripe) Authorize(ctx context.Context, order *domain.Order, amount *decimal.Decimal) Result {
	amt := order.Balance()
	if amount != nil {
		amt = *amount
	}

	pi, err := s.createIntent(ctx, order, amt, true)
	if err != nil {
		return s.fail(ctx, order, amt, err)
	}

	auth, err := s.recorder.RecordAuthorization(ctx, order, StripeKey, amt, pi.ID)
	if err != nil {
		return Result{Processor: StripeKey, Message: err.Error()}
	}
	return Result{Processor: StripeKey, Success: true, Message: fmt.Sprintf("authorized %s", auth.Amount)}
}

// CaptureAuthorization settles a previously placed hold.
func (s *Stripe) CaptureAuthorization(ctx context.Context, order *domain.Order, auth domain.OrderAuthorization) Result {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	params := &stripe.PaymentIntentCaptureParams{
		Params: stripe.Params{Context: ctx},
	}
	pi, err := paymentintent.Capture(auth.TransactionID, params)
	if err != nil {
		return s.fail(ctx, order, auth.Amount, err)
	}

	payment, err := s.recorder.RecordPayment(ctx, order, StripeKey, auth.Amount, pi.ID, "0")
	if err != nil {
		return Result{Processor: StripeKey, Message: err.Error()}
	}
	order.CompleteAuthorization(auth.ID)
	return Result{Processor: StripeKey, Success: true, Payment: &payment}
}

// ReleaseAuthorization cancels a hold without charging it.
func (s *Stripe) ReleaseAuthorization(ctx context.Context, order *domain.Order, auth domain.OrderAuthorization) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	params := &stripe.PaymentIntentCancelParams{
		Params: stripe.Params{Context: ctx},
	}
	if _, err := paymentintent.Cancel(auth.TransactionID, params); err != nil {
		return fmt.Errorf("cancel stripe payment intent: %w", err)
	}
	order.CompleteAuthorization(auth.ID)
	return nil
}

func (s *Stripe) createIntent(ctx context.Context, order *domain.Order, amt decimal.Decimal, manualCapture bool) (*stripe.PaymentIntent, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	params := &stripe.PaymentIntentParams{
		Params:   stripe.Params{Context: ctx},
		Amount:   stripe.Int64(toMinorUnits(amt)),
		Currency: stripe.String(s.cfg.Currency),
		Confirm:  stripe.Bool(true),
		Metadata: map[string]string{"order_id": order.ID},
	}
	if pm := order.Variable(StripePaymentMethodKey, ""); pm != "" {
		params.PaymentMethod = stripe.String(pm)
	}
	if manualCapture {
		params.CaptureMethod = stripe.String(string(stripe.PaymentIntentCaptureMethodManual))
	}
	return paymentintent.New(params)
}

func (s *Stripe) fail(ctx context.Context, order *domain.Order, amt decimal.Decimal, err error) Result {
	// Only Stripe's own decline text is fit to show the customer. Anything
	// else (timeouts, transport errors) stays in the log and the failure
	// record; the customer gets a generic message.
	reason := "ERROR"
	msg := genericDeclineMessage
	if stripeErr, ok := err.(*stripe.Error); ok {
		reason = string(stripeErr.Code)
		msg = stripeErr.Msg
	}

	s.logger.WarnContext(ctx, "stripe charge failed",
		"order_id", order.ID, "amount", amt.String(), "reason", reason, "error", err)

	if _, recErr := s.recorder.RecordFailure(ctx, order, StripeKey, amt, reason, err.Error()); recErr != nil {
		s.logger.ErrorContext(ctx, "record payment failure", "order_id", order.ID, "error", recErr)
	}
	return Result{Processor: StripeKey, Message: msg, ReasonCode: reason}
}

// toMinorUnits converts a decimal amount to the integer minor units the
// Stripe API expects.
func toMinorUnits(amt decimal.Decimal) int64 {
	return amt.Shift(2).Round(0).IntPart()
}
