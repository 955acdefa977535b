package api_gateway

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/virtupay-ledger/internal/api_gateway/handler"
	"github.com/virtupay-ledger/internal/api_gateway/middleware"
	"github.com/virtupay-ledger/internal/config"
)

type handlers struct {
	account      *handler.AccountHandler
	card         *handler.CardHandler
	transaction  *handler.TransactionHandler
	approval     *handler.ApprovalHandler
	audit        *handler.AuditHandler
	organization *handler.OrganizationHandler
	department   *handler.DepartmentHandler
}

// setupRouter configures API routes and middleware for the application
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	authCfg *config.AuthConfig,
	members middleware.MembershipResolver,
	idempotencyStore middleware.IdempotencyStore,
	h handlers,
) {
	r.Use(middleware.CorrelationID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recovery(logger))

	// Money-moving endpoints replay their first response for a repeated Idempotency-Key
	idempotent := middleware.Idempotency(idempotencyStore, logger)

	// API v1 endpoints
	v1 := r.Group("/api/v1")
	v1.Use(middleware.Auth(authCfg, members, logger))
	{
		// Master balance operations
		accounts := v1.Group("/accounts")
		{
			accounts.GET("/summary", h.account.Summary)
			accounts.GET("/transactions", h.account.Transactions)
			accounts.POST("/fund", idempotent, h.account.Fund)
			accounts.POST("/withdraw", idempotent, h.account.Withdraw)
		}

		// Card management
		cards := v1.Group("/cards")
		{
			cards.POST("", idempotent, h.card.Create)
			cards.GET("", h.card.List)
			cards.GET("/:id", h.card.GetByID)
			cards.GET("/:id/balance", h.card.Balance)
			cards.POST("/:id/fund", idempotent, h.card.Fund)
			cards.POST("/:id/recalculate", h.card.Recalculate)
			cards.GET("/:id/limits", h.card.Limits)
			cards.PUT("/:id/limits", h.card.ChangeLimits)
			cards.PUT("/:id/merchants", h.card.ChangeMerchants)
			cards.PUT("/:id/international", h.card.SetInternational)
			cards.POST("/:id/freeze", h.card.Freeze)
			cards.POST("/:id/unfreeze", h.card.Unfreeze)
			cards.POST("/:id/cancel", h.card.Cancel)
			cards.GET("/:id/transactions", h.transaction.GetByCardID)
			cards.POST("/:id/transactions", idempotent, h.transaction.Create)
			cards.GET("/:id/approvals", h.approval.History)
		}

		// Card transaction lifecycle
		cardTransactions := v1.Group("/card-transactions")
		{
			cardTransactions.GET("/:id", h.transaction.GetByID)
			cardTransactions.POST("/:id/complete", idempotent, h.transaction.Complete)
			cardTransactions.POST("/:id/reverse", idempotent, h.transaction.Reverse)
			cardTransactions.POST("/:id/dispute", h.transaction.Dispute)
		}

		// Approval workflow
		approvals := v1.Group("/approvals")
		{
			approvals.POST("", h.approval.Create)
			approvals.GET("/pending", h.approval.Pending)
			approvals.GET("/requirements/:actionType", h.approval.Requirements)
			approvals.GET("/:id", h.approval.GetByID)
			approvals.POST("/:id/approve", h.approval.Approve)
			approvals.POST("/:id/reject", h.approval.Reject)
			approvals.POST("/:id/apply", h.approval.Apply)
		}

		// Organizations and their members
		organizations := v1.Group("/organizations")
		{
			organizations.POST("", h.organization.Create)
			organizations.GET("/:id", h.organization.GetByID)
			organizations.PUT("/:id", h.organization.Update)
			organizations.GET("/:id/members", h.organization.Members)
			organizations.POST("/:id/members", h.organization.AddMember)
			organizations.PUT("/:id/members/:userId", h.organization.ChangeMemberRole)
			organizations.DELETE("/:id/members/:userId", h.organization.RemoveMember)
		}

		// Departments of the caller's organization
		departments := v1.Group("/departments")
		{
			departments.POST("", h.department.Create)
			departments.GET("", h.department.List)
			departments.GET("/:id", h.department.GetByID)
			departments.PUT("/:id", h.department.Update)
			departments.DELETE("/:id", h.department.Delete)
		}

		// Audit trail
		auditTrail := v1.Group("/audit")
		{
			auditTrail.GET("/events", h.audit.List)
			auditTrail.GET("/export", h.audit.Export)
		}
	}

	// Health check endpoint for monitoring
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})
}
