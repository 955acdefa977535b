package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/virtupay-ledger/internal/api_gateway"
	"github.com/virtupay-ledger/internal/api_gateway/service"
	"github.com/virtupay-ledger/internal/config"
	"github.com/virtupay-ledger/internal/data/mongo"
	"github.com/virtupay-ledger/internal/data/postgres"
	"github.com/virtupay-ledger/internal/data/redis"
	"github.com/virtupay-ledger/internal/ledger"
	"github.com/virtupay-ledger/internal/logger"
	"github.com/virtupay-ledger/internal/notifier"
	"github.com/virtupay-ledger/internal/platform/messaging/producers"
	"github.com/virtupay-ledger/internal/platform/persistence"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("api_gateway")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg)

	// Initialize stores with app context; Postgres also applies pending migrations
	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		log.Error("Failed to initialize MongoDB", "error", err)
		os.Exit(1)
	}

	redisClient, err := persistence.NewRedisClient(appCtx, log, &cfg.Redis)
	if err != nil {
		log.Error("Failed to initialize Redis", "error", err)
		os.Exit(1)
	}

	// Notification intents leave the gateway through Kafka, off the request path
	notificationProducer, err := producers.NewNotificationProducer(log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize notification Kafka producer", "error", err)
		os.Exit(1)
	}
	dispatcher, err := notifier.NewDispatcher(notificationProducer, cfg.WorkerPool.Size, log)
	if err != nil {
		log.Error("Failed to initialize notification dispatcher", "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	accountRepo := postgres.NewAccountRepository(log, postgresDB)
	cardRepo := postgres.NewCardRepository(log, postgresDB)
	cardLedgerRepo := postgres.NewCardLedgerRepository(log, postgresDB)
	membershipRepo := postgres.NewMembershipRepository(log, postgresDB)
	organizationRepo := postgres.NewOrganizationRepository(log, postgresDB)
	departmentRepo := postgres.NewDepartmentRepository(log, postgresDB)
	approvalRepo := postgres.NewApprovalRepository(log, postgresDB)
	outboxRepo := postgres.NewOutboxRepository(log, postgresDB)
	auditRepo := mongo.NewAuditRepository(log, mongoDB.Database())
	idempotencyStore := redis.NewIdempotencyStore(log, redisClient, cfg.Idempotency.TTL)

	// Ledger core
	events := ledger.NewEventRecorder(postgresDB, outboxRepo, log)
	accountLedger := ledger.NewAccountLedger(postgresDB, accountRepo, events, log)
	cardLedger := ledger.NewCardLedger(postgresDB, cardRepo, cardLedgerRepo, events, log)
	cardManager := ledger.NewCardManager(postgresDB, cardRepo, membershipRepo, cardLedger, events, dispatcher, log)
	coordinator := ledger.NewCoordinator(cardRepo, cardLedger, accountLedger, events, dispatcher, log)
	directory := ledger.NewDirectory(postgresDB, organizationRepo, membershipRepo, events, log)
	departments := ledger.NewDepartments(postgresDB, departmentRepo, membershipRepo, events, log)
	workflow := ledger.NewApprovalWorkflow(postgresDB, approvalRepo, cardRepo, membershipRepo, events, dispatcher, cfg.Approval.TTL, log)

	if cfg.Bootstrap.OwnerUserID != "" {
		owner, created, err := directory.Bootstrap(appCtx, cfg.Bootstrap.OrganizationName, cfg.Bootstrap.Industry, uuid.MustParse(cfg.Bootstrap.OwnerUserID))
		if err != nil {
			log.Error("Failed to bootstrap first organization", "error", err)
			os.Exit(1)
		}
		if created {
			log.Info("First organization created", "owner_membership_id", owner.ID.String())
		}
	}

	services := api_gateway.Services{
		Account:      service.NewAccountService(log, accountLedger, membershipRepo),
		Card:         service.NewCardService(log, cardManager, cardLedger, workflow),
		Transaction:  service.NewTransactionService(log, cardManager, cardLedger, coordinator),
		Approval:     service.NewApprovalService(log, workflow, cardManager),
		Audit:        service.NewAuditService(log, auditRepo),
		Organization: service.NewOrganizationService(log, directory),
		Department:   service.NewDepartmentService(log, departments),
	}

	server := api_gateway.NewServer(log, cfg, services, membershipRepo, idempotencyStore)
	log.Info("REST server initialized")

	errChan := make(chan error, 1)

	go func() {
		log.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	var serverErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Server error occurred", "error", err)
		serverErr = err
	}

	cancelAppCtx()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	log.Info("Starting graceful shutdown...")

	// Stop taking requests first so nothing new reaches the stores
	if err = server.Stop(shutdownCtx); err != nil {
		log.Error("Error during server shutdown", "error", err)
	}

	// In-flight intents still need the producer
	dispatcher.Shutdown(cfg.Server.ShutdownTimeout)
	if err = notificationProducer.Close(); err != nil {
		log.Error("Error closing notification Kafka producer", "error", err)
	}

	postgresDB.Close()

	if err = redisClient.Close(); err != nil {
		log.Error("Error closing Redis client", "error", err)
	}

	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	if serverErr != nil {
		log.Error("HTTP server shutdown with errors", "error", serverErr)
	}
	if err != nil {
		log.Error("Server shutdown completed with errors")
	} else {
		log.Info("Server shutdown completed successfully")
	}
}
