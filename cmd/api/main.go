package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"

	"github.com/predatell/satchmo/internal/cache"
	"github.com/predatell/satchmo/internal/checkout"
	"github.com/predatell/satchmo/internal/config"
	"github.com/predatell/satchmo/internal/database"
	"github.com/predatell/satchmo/internal/discount"
	"github.com/predatell/satchmo/internal/events"
	idempostgres "github.com/predatell/satchmo/internal/idempotency/postgres"
	"github.com/predatell/satchmo/internal/orders/adapters"
	httpadapter "github.com/predatell/satchmo/internal/orders/adapters/http"
	"github.com/predatell/satchmo/internal/orders/adapters/memory"
	orderspostgres "github.com/predatell/satchmo/internal/orders/adapters/postgres"
	ordersapp "github.com/predatell/satchmo/internal/orders/app"
	ordersmetrics "github.com/predatell/satchmo/internal/orders/metrics"
	"github.com/predatell/satchmo/internal/payment"
	"github.com/predatell/satchmo/internal/shipping"
	"github.com/predatell/satchmo/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := telemetry.NewLogger(parseLogLevel(cfg.Telemetry.LogLevel))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tel, err := telemetry.Initialize(ctx, telemetry.Config{
		ServiceName:    cfg.Service.Name,
		ServiceVersion: cfg.Service.Version,
		Environment:    cfg.Service.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTelEndpoint,
		EnableTracing:  cfg.Telemetry.EnableTracing,
		EnableMetrics:  cfg.Telemetry.EnableMetrics,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		logger.Error("failed to initialize telemetry", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown failed", "error", err)
		}
	}()

	pool, err := database.NewPool(ctx, cfg.Database.URL)
	if err != nil {
		logger.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if cfg.Database.AutoMigrate {
		logger.Info("running database migrations", "path", cfg.Database.MigrationsPath)
		if err := database.RunMigrations(cfg.Database.URL, cfg.Database.MigrationsPath); err != nil {
			logger.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
		logger.Info("migrations completed successfully")
	}

	meter := otel.Meter(cfg.Service.Name)

	dbMetrics, err := database.NewMetrics(meter)
	if err != nil {
		logger.Error("failed to create database metrics", "error", err)
		os.Exit(1)
	}
	eventMetrics, err := events.NewMetrics(meter)
	if err != nil {
		logger.Error("failed to create event metrics", "error", err)
		os.Exit(1)
	}
	orderMetrics, err := ordersmetrics.NewMetrics(meter)
	if err != nil {
		logger.Error("failed to create order metrics", "error", err)
		os.Exit(1)
	}
	httpMetrics, err := httpadapter.NewMetrics(meter)
	if err != nil {
		logger.Error("failed to create http metrics", "error", err)
		os.Exit(1)
	}

	repo := adapters.NewObservableRepository(orderspostgres.NewRepository(pool), dbMetrics)
	discounts := orderspostgres.NewDiscountRepository(pool)
	certs := orderspostgres.NewGiftCertificateRepository(pool)
	idemStore := idempostgres.NewStore(pool)

	var saleCache cache.Cache
	if cfg.Cache.RedisAddr != "" {
		saleCache = cache.NewRedisCache(cfg.Cache.RedisAddr, cfg.Service.Name)
	} else {
		saleCache = cache.NewMemoryCache(cfg.Service.Name)
	}
	sales := discount.NewSales(discounts, saleCache, logger)

	recorder := payment.NewRecorder(repo, logger, nil)
	giftProcessor := payment.NewGiftCertificateProcessor(certs, recorder, logger, nil)

	processors := []payment.Processor{
		payment.NewFree(recorder),
		payment.NewPurchaseOrder(recorder),
		giftProcessor,
	}
	if cfg.Payment.StripeSecretKey != "" {
		processors = append(processors, payment.NewStripe(payment.StripeConfig{
			SecretKey:  cfg.Payment.StripeSecretKey,
			Currency:   cfg.Payment.Currency,
			SuccessURL: cfg.Payment.StripeSuccess,
			CancelURL:  cfg.Payment.StripeCancel,
			Live:       cfg.Payment.StripeLive,
		}, recorder, logger))
	}
	if cfg.Service.Environment == "development" {
		processors = append(processors, payment.NewDummy(recorder))
	}
	registry := payment.NewRegistry(processors...)

	dispatcher := events.NewDispatcher(logger, eventMetrics)
	dispatcher.RegisterOrderSuccess(giftProcessor.IssueCertificates)
	bus := adapters.NewObservableEventBus(dispatcher)

	resolver := shipping.NewResolver(shipping.Config{
		TaxShipping:    cfg.Shipping.TaxShipping,
		TaxRate:        mustDecimal(cfg.Shipping.TaxRate, logger),
		SelectCheapest: cfg.Shipping.SelectCheapest,
		Hiding:         shipping.HidingMode(cfg.Shipping.Hiding),
	}, logger, buildShippers(cfg.Shipping, logger)...)

	carts := memory.NewCartStore()

	controller := checkout.NewController(repo, discounts, carts, registry, bus, checkout.Config{
		NoStockCheckout: cfg.Checkout.NoStockCheckout,
		SuccessURL:      cfg.Checkout.SuccessURL,
		PayRemainingURL: cfg.Checkout.PayRemainingURL,
	}, logger, nil)

	ipnHandler := payment.NewIPNHandler([]byte(cfg.Payment.IPNSecret), repo, recorder, bus, logger, nil)

	service := ordersapp.NewService(repo, registry, idemStore, logger, orderMetrics)
	handler := httpadapter.NewHandler(service, controller, ipnHandler, resolver, discounts, sales, cfg.Checkout.Site, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := database.CheckHealth(r.Context(), pool); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready", "error": err.Error()})
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
	handler.Register(mux)

	root := withRecovery(withLogging(httpadapter.WithMetrics(mux, httpMetrics)))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           root,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "port", cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownGrace)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	} else {
		logger.Info("http server stopped")
	}
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// buildShippers constructs the shipping methods named in SHIPPING_MODULES.
// A misconfigured module is logged and skipped rather than taking down the
// service.
func buildShippers(cfg config.ShippingConfig, logger *slog.Logger) []shipping.Shipper {
	var shippers []shipping.Shipper
	for _, module := range strings.Split(cfg.Modules, ",") {
		switch strings.TrimSpace(module) {
		case "flat":
			shippers = append(shippers, shipping.NewFlatRate(mustDecimal(cfg.FlatRate, logger), "3 - 4 business days"))
		case "per":
			shippers = append(shippers, shipping.NewPerItem(mustDecimal(cfg.PerItemRate, logger), "3 - 4 business days"))
		case "tiered":
			tiers, err := shipping.ParseTiers(cfg.CarrierTiers)
			if err != nil {
				logger.Warn("skipping tiered shipping", "error", err)
				continue
			}
			shippers = append(shippers, &shipping.Carrier{
				CarrierKey: cfg.CarrierName,
				Name:       cfg.CarrierName,
				Desc:       cfg.CarrierName + " Shipping",
				Service:    "Ground",
				Delivery:   "5 - 7 business days",
				Active:     true,
				Tiers:      tiers,
			})
		case "":
		default:
			logger.Warn("unknown shipping module", "module", module)
		}
	}
	if len(shippers) == 0 {
		logger.Warn("no shipping modules configured")
	}
	return shippers
}

func mustDecimal(value string, logger *slog.Logger) decimal.Decimal {
	d, err := decimal.NewFromString(value)
	if err != nil {
		logger.Error("invalid decimal configuration value", "value", value, "error", err)
		os.Exit(1)
	}
	return d
}

func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		slog.Info("http request", "method", r.Method, "path", r.URL.Path, "status", rw.status, "duration", time.Since(start))
	})
}

func withRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				slog.Error("panic recovered", "error", rec)
				respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (w *responseWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
