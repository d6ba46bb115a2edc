package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/contrib/instrumentation/runtime"

	"github.com/storefrontlabs/reserveflow/internal/catalog"
	"github.com/storefrontlabs/reserveflow/internal/config"
	"github.com/storefrontlabs/reserveflow/internal/httpapi"
	"github.com/storefrontlabs/reserveflow/internal/messaging"
	"github.com/storefrontlabs/reserveflow/internal/platform"
	"github.com/storefrontlabs/reserveflow/internal/reservation"
	"github.com/storefrontlabs/reserveflow/internal/stock"
	"github.com/storefrontlabs/reserveflow/internal/telemetry"
	"github.com/storefrontlabs/reserveflow/internal/vouch"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.Load()

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "reservation-server", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider("reservation-server", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize meter", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(context.Background()) }()

	if err := runtime.Start(); err != nil {
		logger.Error("failed to start runtime metrics", "error", err)
		os.Exit(1)
	}

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		logger.Error("failed to load catalog", "error", err, "path", cfg.CatalogPath)
		os.Exit(1)
	}

	ledger := stock.NewLedger()
	ledger.InitFromCatalog(cat)

	var producer *messaging.Producer
	if cfg.KafkaBrokers != "" {
		producer = messaging.NewLifecycleProducer(strings.Split(cfg.KafkaBrokers, ","))
		defer func() { _ = producer.Close() }()
	}

	httpClient := &http.Client{
		Timeout:   10 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	platformClient := platform.NewClient(cfg.PlatformURL, httpClient)
	notifier := platform.NewNotifier(platformClient, cfg.StaffViewer, logger)

	var enginePublisher reservation.Publisher
	if producer != nil {
		enginePublisher = producer
	}
	engine, err := reservation.NewEngine(cfg.Policy, cat, ledger, enginePublisher, notifier, logger)
	if err != nil {
		logger.Error("failed to create engine", "error", err)
		os.Exit(1)
	}
	go engine.Run(ctx)

	if cfg.KafkaBrokers != "" {
		consumer := messaging.NewPaymentConsumer(strings.Split(cfg.KafkaBrokers, ","))
		defer func() { _ = consumer.Close() }()

		paymentHandler := reservation.NewPaymentHandler(engine, logger)
		go func() {
			if err := consumer.Consume(ctx, paymentHandler.Handle); err != nil && ctx.Err() == nil {
				logger.Error("payment consumer error", "error", err)
			}
		}()
	}

	vouchStore := vouch.NewStore(cfg.VouchPath)
	gate := func(scope string) (string, bool) {
		o, err := engine.GetOrder(scope)
		if err != nil {
			return "", false
		}
		return o.Buyer, o.Completed
	}
	flow := vouch.NewFlow(vouchStore, gate, logger)

	cooldown := httpapi.NewCooldown(cfg.Policy.Cooldown)
	handler := httpapi.NewHandler(engine, cat, flow, vouchStore, platformClient, cooldown, cfg.StaffToken, logger)

	mux := http.NewServeMux()
	handler.Register(mux)
	mux.Handle("GET /metrics", metricsHandler)

	server := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: otelhttp.NewHandler(mux, "reservation-server",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				if r.Pattern != "" {
					return r.Pattern
				}
				return r.Method + " " + r.URL.Path
			}),
		),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting reservation server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
