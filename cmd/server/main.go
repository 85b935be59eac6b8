package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/uhs-developer/kora/internal/cart"
	"github.com/uhs-developer/kora/internal/config"
	"github.com/uhs-developer/kora/internal/gateway"
	"github.com/uhs-developer/kora/internal/httpapi"
	"github.com/uhs-developer/kora/internal/notify"
	"github.com/uhs-developer/kora/internal/reaper"
	"github.com/uhs-developer/kora/internal/repository"
	"github.com/uhs-developer/kora/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	port, err := strconv.Atoi(cfg.PostgresPort)
	if err != nil {
		log.Fatalf("invalid POSTGRES_PORT: %v", err)
	}
	creds := &repository.Credentials{
		Host:              cfg.PostgresHost,
		Port:              port,
		User:              cfg.PostgresUser,
		Password:          cfg.PostgresPassword,
		DBName:            cfg.PostgresDB,
		MigrationsDirPath: cfg.MigrationsDir,
	}
	repo, err := repository.NewRepository(creds)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer repo.Close()

	if err := repo.RunMigrations(creds); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mongoDB, err := cart.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		log.Fatalf("failed to connect to MongoDB: %v", err)
	}
	carts := cart.NewMongoRepository(mongoDB.Collection("carts"))

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	defer rdb.Close()

	notifier := notify.NewKafkaNotifier(
		notify.NewSendGate(rdb, cfg.NotifyTTL),
		cfg.KafkaTopic,
		cfg.KafkaBrokers...)
	defer notifier.Close()

	var gw *gateway.Client
	if cfg.GatewayBaseURL != "" {
		gw = gateway.NewClient(gateway.Config{
			BaseURL:       cfg.GatewayBaseURL,
			ClientID:      cfg.GatewayClientID,
			ClientSecret:  cfg.GatewayClientSecret,
			WebhookSecret: cfg.GatewayWebhookSecret,
			Timeout:       cfg.RequestTimeout,
		})
	} else {
		log.Println("GATEWAY_BASE_URL is not set; payment initialization is disabled")
	}

	var svc *service.Service
	if gw != nil {
		svc = service.NewService(repo, carts, gw, notifier, cfg.PaymentCallbackURL)
	} else {
		svc = service.NewService(repo, carts, nil, notifier, "")
	}

	orderHandler := httpapi.NewOrderHandler(svc, cfg.RequestTimeout)
	checkoutHandler := httpapi.NewCheckoutHandler(svc, carts, cfg.RequestTimeout)
	var verifier httpapi.ChargeVerifier
	if gw != nil {
		verifier = gw
	}
	paymentHandler := httpapi.NewPaymentHandler(svc, verifier, cfg.FrontendURL, cfg.WebhookStrict, cfg.RequestTimeout)

	router := httpapi.NewRouter(orderHandler, checkoutHandler, paymentHandler, cfg.RequestTimeout)

	expiry := reaper.New(repo, svc, cfg.PaymentTimeout, cfg.ReaperInterval, cfg.ReaperDryRun)
	go expiry.Run(ctx)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      otelhttp.NewHandler(router, "kora-http"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("kora server starting on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()

	log.Println("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	log.Println("server exited")
}
