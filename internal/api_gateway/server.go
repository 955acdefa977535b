package api_gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/virtupay-ledger/internal/api_gateway/handler"
	"github.com/virtupay-ledger/internal/api_gateway/middleware"
	"github.com/virtupay-ledger/internal/api_gateway/service"
	"github.com/virtupay-ledger/internal/config"
)

// Services bundles what the HTTP layer calls into
type Services struct {
	Account      service.AccountService
	Card         service.CardService
	Transaction  service.TransactionService
	Approval     service.ApprovalService
	Audit        service.AuditService
	Organization service.OrganizationService
	Department   service.DepartmentService
}

// Server handles HTTP requests and manages the application's lifecycle
type Server struct {
	logger     *slog.Logger // For structured logging
	httpServer *http.Server // Underlying HTTP server
	httpRouter *gin.Engine  // Gin router instance
}

// NewServer creates and configures a new HTTP server with the given services.
// members resolves bearer tokens into actors; idempotencyStore backs Idempotency-Key replay.
func NewServer(
	log *slog.Logger,
	cfg *config.Config,
	services Services,
	members middleware.MembershipResolver,
	idempotencyStore middleware.IdempotencyStore,
) *Server {
	if cfg.Application.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	httpRouter := gin.New()

	setupRouter(log, httpRouter, &cfg.Auth, members, idempotencyStore, handlers{
		account:      handler.NewAccountHandler(log, services.Account),
		card:         handler.NewCardHandler(log, services.Card),
		transaction:  handler.NewTransactionHandler(log, services.Transaction),
		approval:     handler.NewApprovalHandler(log, services.Approval),
		audit:        handler.NewAuditHandler(log, services.Audit),
		organization: handler.NewOrganizationHandler(log, services.Organization),
		department:   handler.NewDepartmentHandler(log, services.Department),
	})

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpRouter,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return &Server{
		logger:     log,
		httpServer: httpServer,
		httpRouter: httpRouter,
	}
}

// Handler exposes the configured router, e.g. for in-process tests
func (s *Server) Handler() http.Handler {
	return s.httpRouter
}

// Start begins listening for HTTP requests
func (s *Server) Start() error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the HTTP server, waiting for in-flight requests
// until ctx is done
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping HTTP server")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to stop HTTP server: %w", err)
	}
	return nil
}
