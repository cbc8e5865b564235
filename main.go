package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fleetrent/config"
	"fleetrent/cron"
	"fleetrent/database"
	"fleetrent/database/repository"
	bookingRepo "fleetrent/database/repository/booking"
	carRepo "fleetrent/database/repository/car"
	directDebitRepo "fleetrent/database/repository/directdebit"
	paymentRepo "fleetrent/database/repository/payment"
	userRepo "fleetrent/database/repository/user"
	"fleetrent/handlers"
	"fleetrent/middleware"
	"fleetrent/models"
	"fleetrent/routes"
	"fleetrent/services/booking"
	"fleetrent/services/directdebit"
	"fleetrent/services/notification"
	"fleetrent/services/payment"
	"fleetrent/services/reconcile"
	"fleetrent/utils"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/stripe/stripe-go/v76"
	"go.uber.org/zap"
)

func main() {
	config.LoadConfig()
	cfg := config.AppConfig
	logger := utils.GetLogger()
	defer logger.Sync()

	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	database.InitDB()
	db := database.Database()
	cache := utils.GetCacheClient()
	stripe.Key = cfg.StripeKey

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	utils.StartHealthMonitor(ctx, cache, database.MongoClient)

	// repositories.
	bookings := bookingRepo.NewMongoBookingRepo(db)
	cars := carRepo.NewMongoCarRepo(db)
	users := userRepo.NewMongoUserRepo(db)
	payments := paymentRepo.NewMongoPaymentRepo(db)
	schedules := directDebitRepo.NewMongoScheduleRepo(db)
	installments := directDebitRepo.NewMongoInstallmentRepo(db)
	customers := directDebitRepo.NewMongoCustomerRepo(db)
	tx := repository.NewMongoTxRunner(database.MongoClient)

	// background notifications.
	queue := asynq.NewClient(cron.QueueRedisOpt())
	defer queue.Close()
	notifier := notification.NewAsyncNotifier(queue, logger)
	cron.InitNotificationWorker(ctx, logger)

	// direct debit gateway.
	gateway := directdebit.NewClient(directdebit.ClientConfig{
		BaseURL:  cfg.DirectDebitAPIURL,
		Username: cfg.DirectDebitUsername,
		Password: cfg.DirectDebitPassword,
		Timeout:  time.Duration(cfg.DirectDebitTimeoutSeconds) * time.Second,
	}, directdebit.NewRedisTokenStore(cache, utils.GatewayTokenCacheKey, logger), logger)
	customerService := directdebit.NewCustomerService(gateway, customers, logger)
	scheduleManager := directdebit.NewManager(gateway, schedules, bookings, users, customerService, logger)

	// services.
	bookingService := booking.NewBookingService(bookings, cars, tx, notifier, scheduleManager, cfg.MinRentalDays, logger)
	ledger := payment.NewLedger(payments, tx, logger)
	if cfg.StripeKey != "" {
		ledger.RegisterRefunder(models.GatewayStripe, payment.NewStripeRefunder(logger))
	}
	reconciler := reconcile.NewReconciler(tx, schedules, installments, payments, bookings, bookingService, notifier, cfg.Currency, logger)

	if cfg.DirectDebitWebhookSecret == "" {
		logger.Warn("DIRECT_DEBIT_WEBHOOK_SECRET is not set; every webhook delivery will be rejected")
	}

	bookingHandler := handlers.NewBookingHandler(bookingService)
	paymentHandler := handlers.NewPaymentHandler(ledger, bookingService)
	directDebitHandler := handlers.NewDirectDebitHandler(scheduleManager)
	webhookHandler := handlers.NewWebhookHandler(
		cfg.DirectDebitWebhookSecret,
		cfg.DirectDebitSignatureHeader,
		reconciler,
		time.Duration(cfg.WebhookProcessTimeoutSecs)*time.Second,
		logger,
	)

	// Assemble the handler bundle.
	handlerBundle := &handlers.HandlerBundle{
		// Booking endpoints.
		CreateBookingHandler:  bookingHandler.CreateBookingHandler,
		GetBookingHandler:     bookingHandler.GetBookingHandler,
		ListBookingsHandler:   bookingHandler.ListBookingsHandler,
		ConfirmBookingHandler: bookingHandler.ConfirmBookingHandler,
		PickupBookingHandler:  bookingHandler.PickupBookingHandler,
		ReturnBookingHandler:  bookingHandler.ReturnBookingHandler,
		CancelBookingHandler:  bookingHandler.CancelBookingHandler,
		NoShowBookingHandler:  bookingHandler.NoShowBookingHandler,

		// Direct debit endpoints.
		CreateScheduleHandler:    directDebitHandler.CreateScheduleHandler,
		GetScheduleStatusHandler: directDebitHandler.GetScheduleStatusHandler,
		CancelScheduleHandler:    directDebitHandler.CancelScheduleHandler,

		// Payment endpoints.
		ListBookingPaymentsHandler: paymentHandler.ListBookingPaymentsHandler,
		RefundPaymentHandler:       paymentHandler.RefundPaymentHandler,

		// Gateway webhook.
		DirectDebitWebhookHandler: webhookHandler.DirectDebitWebhookHandler,
		WebhookHealthHandler:      webhookHandler.WebhookHealthHandler,
	}

	// Create the Gin router.
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.ErrorHandler())
	router.Use(middleware.RequestLogger(logger))
	routes.RegisterRoutes(router, handlerBundle, cfg.MaxRequestsPerMin)

	// Start the HTTP server.
	port := cfg.AppPort
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    "0.0.0.0:" + port,
		Handler: router,
	}

	logger.Info("Starting server", zap.String("addr", srv.Addr))
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("main: server failed to start", zap.Error(err))
		}
	}()

	// Wait for an OS signal to gracefully shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("main: server is shutting down...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("main: server forced to shutdown", zap.Error(err))
	}
	if err := database.MongoClient.Disconnect(shutdownCtx); err != nil {
		logger.Warn("main: mongo disconnect failed", zap.Error(err))
	}

	logger.Info("main: server stopped gracefully")
}
