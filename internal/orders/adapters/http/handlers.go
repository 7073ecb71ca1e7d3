package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/predatell/satchmo/internal/checkout"
	"github.com/predatell/satchmo/internal/discount"
	"github.com/predatell/satchmo/internal/orders/app"
	"github.com/predatell/satchmo/internal/orders/app/commands"
	"github.com/predatell/satchmo/internal/orders/domain"
	"github.com/predatell/satchmo/internal/orders/ports"
	"github.com/predatell/satchmo/internal/payment"
	"github.com/predatell/satchmo/internal/shipping"
)

// Handler exposes the checkout API: order creation and lookup, shipping
// quotes, confirmation and gateway notifications.
type Handler struct {
	service   *app.Service
	checkout  *checkout.Controller
	ipn       *payment.IPNHandler
	resolver  *shipping.Resolver
	discounts ports.DiscountRepository
	sales     *discount.Sales
	site      string
	logger    *slog.Logger
}

// NewHandler constructs a Handler.
func NewHandler(
	service *app.Service,
	checkoutCtrl *checkout.Controller,
	ipn *payment.IPNHandler,
	resolver *shipping.Resolver,
	discounts ports.DiscountRepository,
	sales *discount.Sales,
	site string,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		service:   service,
		checkout:  checkoutCtrl,
		ipn:       ipn,
		resolver:  resolver,
		discounts: discounts,
		sales:     sales,
		site:      site,
		logger:    logger,
	}
}

// Register binds the handlers to the provided ServeMux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/v1/orders", h.handleOrders)
	mux.HandleFunc("/v1/orders/", h.handleOrderByID)
	mux.HandleFunc("/v1/shipping/options", h.shippingOptions)
	mux.HandleFunc("/v1/payments/ipn", h.paymentNotification)
}

func (h *Handler) handleOrders(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createOrder(w, r)
	case http.MethodGet:
		h.listOrders(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *Handler) handleOrderByID(w http.ResponseWriter, r *http.Request) {
	trimmed := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/v1/orders/"), "/")
	if trimmed == "" {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}

	id, action := trimmed, ""
	if idx := strings.LastIndex(trimmed, "/"); idx >= 0 {
		id, action = trimmed[:idx], trimmed[idx+1:]
	}

	switch action {
	case "":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		h.getOrder(w, r, id)
	case "cancel":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		h.cancelOrder(w, r, id)
	case "confirm":
		h.confirmOrder(w, r, id)
	case "capture":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		h.captureAuthorizations(w, r, id)
	default:
		writeError(w, http.StatusNotFound, "order not found")
	}
}

type createOrderRequest struct {
	Cart           *domain.Cart   `json:"cart"`
	Contact        domain.Contact `json:"contact"`
	ShippingMethod string         `json:"shipping_method"`
	DiscountCode   string         `json:"discount_code"`
	GiftCode       string         `json:"gift_code"`
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	idemKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if idemKey == "" {
		writeError(w, http.StatusBadRequest, "Idempotency-Key header required")
		return
	}

	if stored, err := h.service.GetIdempotentResponse(ctx, idemKey); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	} else if stored != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(stored.StatusCode)
		_, _ = w.Write(stored.Body)
		return
	}

	var payload createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	cmd, err := h.buildCreateCommand(ctx, payload)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	order, err := h.service.CreateOrder(ctx, cmd)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	response := map[string]any{"order": order}
	body, err := json.Marshal(response)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	stored := ports.StoredResponse{
		StatusCode: http.StatusCreated,
		Body:       body,
		OrderID:    order.ID,
	}

	if err := h.service.SaveIdempotentResponse(ctx, idemKey, stored); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write(body)
}

// buildCreateCommand resolves the coupon and the shipping choice against the
// current rates, so the persisted order carries final costs. With no coupon
// given, today's automatic sale applies when one is running.
func (h *Handler) buildCreateCommand(ctx context.Context, payload createOrderRequest) (commands.CreateOrderCommand, error) {
	now := time.Now().UTC()

	var d *discount.Discount
	if payload.DiscountCode != "" {
		found, err := h.discounts.GetByCode(ctx, payload.DiscountCode)
		if err != nil {
			if errors.Is(err, ports.ErrNotFound) {
				return commands.CreateOrderCommand{}, errors.New("unknown coupon code")
			}
			return commands.CreateOrderCommand{}, err
		}
		if ok, reason := found.Validate(ctx, payload.Cart, now); !ok {
			return commands.CreateOrderCommand{}, errors.New(reason)
		}
		d = found
	} else if h.sales != nil {
		if sale, err := h.sales.Current(ctx, h.site, now); err == nil {
			if ok, _ := sale.Validate(ctx, payload.Cart, now); ok {
				d = sale
			}
		} else if !errors.Is(err, discount.ErrNoSale) {
			h.logger.WarnContext(ctx, "sale lookup failed", "error", err)
		}
	}

	req := shipping.Request{
		Cart:     payload.Cart,
		Contact:  payload.Contact,
		Discount: d,
	}
	rates := h.resolver.Options(ctx, req)

	var chosen shipping.Option
	found := false
	for _, opt := range rates.Options {
		if opt.Key == payload.ShippingMethod {
			chosen = opt
			found = true
			break
		}
	}
	if !found && payload.Cart != nil && payload.Cart.IsShippable() {
		return commands.CreateOrderCommand{}, fmt.Errorf("unknown shipping method %q", payload.ShippingMethod)
	}

	return commands.CreateOrderCommand{
		Site:                   h.site,
		Cart:                   payload.Cart,
		Contact:                payload.Contact,
		Shipping:               chosen,
		Discount:               d,
		CheapestShippingChosen: h.resolver.CheapestChosen(ctx, req, payload.ShippingMethod),
		GiftCode:               payload.GiftCode,
	}, nil
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request, id string) {
	order, err := h.service.GetOrder(r.Context(), id)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order": order})
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	filter := ports.ListFilter{}
	if statusParam := r.URL.Query().Get("status"); statusParam != "" {
		filter.Status = &statusParam
	}

	if pageParam := r.URL.Query().Get("page"); pageParam != "" {
		if page, err := strconv.Atoi(pageParam); err == nil {
			filter.Page = page
		}
	}

	if pageSizeParam := r.URL.Query().Get("page_size"); pageSizeParam != "" {
		if pageSize, err := strconv.Atoi(pageSizeParam); err == nil {
			filter.PageSize = pageSize
		}
	}

	orders, err := h.service.ListOrders(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request, id string) {
	order, err := h.service.CancelOrder(r.Context(), id)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"order": order})
}

type confirmRequest struct {
	Processor string `json:"processor"`
}

// confirmOrder runs one confirmation attempt. GET renders the state of the
// confirmation form; POST submits it. Gateway declines come back with a 200
// and a failed_form outcome, since the customer can retry.
func (h *Handler) confirmOrder(w http.ResponseWriter, r *http.Request, id string) {
	var processorKey string
	isSubmission := false

	switch r.Method {
	case http.MethodGet:
		processorKey = r.URL.Query().Get("processor")
	case http.MethodPost:
		isSubmission = true
		var payload confirmRequest
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON payload")
			return
		}
		processorKey = payload.Processor
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	confirmation, err := h.checkout.Confirm(r.Context(), id, processorKey, isSubmission)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "confirmation failed",
			"order_id", id, "processor", processorKey, "error", err)
		writeError(w, http.StatusInternalServerError, "confirmation failed")
		return
	}

	status := http.StatusOK
	if confirmation.Outcome == checkout.OutcomeInvalid {
		status = http.StatusBadRequest
	}

	body := map[string]any{"outcome": confirmation.Outcome}
	if confirmation.Message != "" {
		body["message"] = confirmation.Message
	}
	if confirmation.RedirectTo != "" {
		body["redirect_to"] = confirmation.RedirectTo
	}
	if confirmation.Order != nil {
		body["order"] = confirmation.Order
	}
	writeJSON(w, status, body)
}

func (h *Handler) captureAuthorizations(w http.ResponseWriter, r *http.Request, id string) {
	var payload confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	results, err := h.service.CaptureAuthorizations(r.Context(), id, payload.Processor)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

type shippingOptionsRequest struct {
	Cart         *domain.Cart   `json:"cart"`
	Contact      domain.Contact `json:"contact"`
	DiscountCode string         `json:"discount_code"`
}

func (h *Handler) shippingOptions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var payload shippingOptionsRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	var d *discount.Discount
	if payload.DiscountCode != "" {
		found, err := h.discounts.GetByCode(r.Context(), payload.DiscountCode)
		if err != nil && !errors.Is(err, ports.ErrNotFound) {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		d = found
	}

	result := h.resolver.Options(r.Context(), shipping.Request{
		Cart:     payload.Cart,
		Contact:  payload.Contact,
		Discount: d,
	})

	writeJSON(w, http.StatusOK, result)
}

// paymentNotification accepts asynchronous gateway notifications. Replayed
// notifications are acknowledged without side effects, so gateways may
// retry freely.
func (h *Handler) paymentNotification(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var notification payment.Notification
	if err := json.NewDecoder(r.Body).Decode(&notification); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	if err := h.ipn.Process(r.Context(), notification); err != nil {
		switch {
		case errors.Is(err, payment.ErrBadSignature):
			writeError(w, http.StatusBadRequest, "invalid signature")
		case errors.Is(err, payment.ErrUnknownOrder):
			writeError(w, http.StatusNotFound, "unknown order")
		default:
			h.logger.ErrorContext(r.Context(), "notification processing failed",
				"order_id", notification.OrderID, "transaction_id", notification.TransactionID, "error", err)
			writeError(w, http.StatusInternalServerError, "notification processing failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}
