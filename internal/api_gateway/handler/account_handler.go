package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/virtupay-ledger/internal/api_gateway/service"
	"github.com/virtupay-ledger/internal/domain/account"
	"github.com/virtupay-ledger/internal/domain/org"
)

// AccountHandler handles HTTP requests for master balance operations
type AccountHandler struct {
	accountService service.AccountService
	logger         *slog.Logger
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(logger *slog.Logger, accountService service.AccountService) *AccountHandler {
	return &AccountHandler{
		accountService: accountService,
		logger:         logger,
	}
}

// Summary returns the organization balance, or a member's personal balance when
// membership_id is given
func (h *AccountHandler) Summary(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var q AccountQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		RespondBadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}
	membershipID, _ := optionalUUID(q.MembershipID)

	summary, err := h.accountService.Summary(c.Request.Context(), actor, membershipID)
	if err != nil {
		respondError(c, h.logger, "account summary", err)
		return
	}
	RespondOK(c, AccountSummaryResponse{
		Available:           summary.Available,
		TotalFunded:         summary.TotalFunded,
		TotalWithdrawn:      summary.TotalWithdrawn,
		Currency:            summary.Currency,
		DistinctCardsFunded: summary.DistinctCardsFunded,
		ActiveTransactions:  summary.ActiveTransactions,
	})
}

// Transactions pages through the balance log, newest first
func (h *AccountHandler) Transactions(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var q AccountTransactionQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		RespondBadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}
	membershipID, _ := optionalUUID(q.MembershipID)

	filter := account.ListFilter{
		From:   q.From,
		To:     q.To,
		Limit:  q.PerPage,
		Offset: q.Offset(),
	}
	if q.Type != "" {
		t := account.TransactionType(q.Type)
		filter.Type = &t
	}

	txns, total, err := h.accountService.ListTransactions(c.Request.Context(), actor, membershipID, filter)
	if err != nil {
		respondError(c, h.logger, "list account transactions", err)
		return
	}

	data := make([]AccountTransactionResponse, 0, len(txns))
	for _, t := range txns {
		data = append(data, mapAccountTransactionToResponse(t))
	}
	RespondWithPaginatedData(c, http.StatusOK, data, q.Page, q.PerPage, int(total))
}

// Fund credits a master balance
func (h *AccountHandler) Fund(c *gin.Context) {
	h.move(c, "fund account", h.accountService.Fund)
}

// Withdraw debits a master balance
func (h *AccountHandler) Withdraw(c *gin.Context) {
	h.move(c, "withdraw from account", h.accountService.Withdraw)
}

type movementFunc func(ctx context.Context, actor org.Actor, req service.MovementRequest) (*account.Balance, *account.Transaction, error)

func (h *AccountHandler) move(c *gin.Context, op string, fn movementFunc) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req MovementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", "operation", op, "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	membershipID, _ := optionalUUID(req.MembershipID)

	b, t, err := fn(c.Request.Context(), actor, service.MovementRequest{
		MembershipID: membershipID,
		Amount:       req.Amount,
		Currency:     req.Currency,
		Reason:       req.Reason,
		ReferenceID:  req.ReferenceID,
	})
	if err != nil {
		respondError(c, h.logger, op, err)
		return
	}
	RespondCreated(c, MovementResponse{
		Balance:     mapAccountBalanceToResponse(b),
		Transaction: mapAccountTransactionToResponse(t),
	})
}
