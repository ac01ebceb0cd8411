package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vendhub/marketplace/internal/auth"
	"github.com/vendhub/marketplace/internal/config"
	"github.com/vendhub/marketplace/internal/db"
	"github.com/vendhub/marketplace/internal/event"
	"github.com/vendhub/marketplace/internal/kafka"
	"github.com/vendhub/marketplace/internal/mailer"
	"github.com/vendhub/marketplace/internal/order"
	"github.com/vendhub/marketplace/internal/payment"
	"github.com/vendhub/marketplace/internal/paystack"
	"github.com/vendhub/marketplace/internal/product"
	"github.com/vendhub/marketplace/internal/token"
	"github.com/vendhub/marketplace/internal/transport"
	"github.com/vendhub/marketplace/internal/user"
	"github.com/vendhub/marketplace/internal/vendor"
)

func main() {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	log.Logger = log.With().Str("service", "marketplace").Logger()

	log.Info().Msg("Marketplace starting...")

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbConn, err := db.New(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbConn.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	defer redisClient.Close()

	var publisher event.Publisher = event.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, "marketplace", 256)
		producer.Start(ctx)
		defer producer.WaitClosed()
		publisher = producer
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("Kafka producer started")
	}

	gateway := paystack.NewClient(cfg.Paystack, cfg.Currency)
	signer := token.NewSigner(cfg.TokenSecret, 24*time.Hour)

	authRepo := auth.NewRepository(dbConn.Pool)
	userRepo := user.NewRepository(dbConn.Pool)
	vendorRepo := vendor.NewRepository(dbConn.Pool)
	productRepo := product.NewRepository(dbConn.Pool)
	orderRepo := order.NewRepository(dbConn.Pool)
	paymentRepo := payment.NewRepository(dbConn.Pool)

	otpStore := auth.NewOtpStore(redisClient)
	authService := auth.NewService(authRepo, otpStore, signer, mailer.NewLogMailer())
	orderService := order.NewService(orderRepo, productRepo, publisher)
	paymentService := payment.NewService(paymentRepo, orderRepo, vendorRepo, gateway, payment.Config{
		PlatformFeePercentage: cfg.PlatformFeePercentage,
		WebhookSecret:         cfg.Paystack.SecretKey,
		BankCountry:           "south africa",
	}, publisher)

	router := transport.NewRouter(transport.Deps{
		AuthService:    authService,
		AuthRepo:       authRepo,
		TokenSigner:    signer,
		OrderService:   orderService,
		PaymentService: paymentService,
		ProductRepo:    productRepo,
		UserRepo:       userRepo,
		VendorRepo:     vendorRepo,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.App.Port).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Info().Msg("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Shutdown failed")
	}
	cancel()
	log.Info().Msg("Server stopped")
}
