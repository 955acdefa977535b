package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/virtupay-ledger/internal/api_gateway/service"
	"github.com/virtupay-ledger/internal/domain/card"
	"github.com/virtupay-ledger/internal/ledger"
)

// TransactionHandler handles HTTP requests for card transactions
type TransactionHandler struct {
	transactionService service.TransactionService
	logger             *slog.Logger
}

// NewTransactionHandler creates a new transaction handler
func NewTransactionHandler(logger *slog.Logger, transactionService service.TransactionService) *TransactionHandler {
	return &TransactionHandler{
		transactionService: transactionService,
		logger:             logger,
	}
}

// Create authorizes a spend on the card in the path. The amount is withdrawn from
// the organization balance and held on the card until completed or reversed.
func (h *TransactionHandler) Create(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	cardID, ok := pathID(c, "id", "card")
	if !ok {
		return
	}
	var req CreateCardTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	txn, err := h.transactionService.Create(c.Request.Context(), actor, ledger.CardTransactionRequest{
		CardID:        cardID,
		Amount:        req.Amount,
		Merchant:      req.Merchant,
		MCC:           req.MCC,
		ReferenceID:   req.ReferenceID,
		International: req.International,
	})
	if err != nil {
		respondError(c, h.logger, "create card transaction", err)
		return
	}
	RespondCreated(c, mapCardTransactionToResponse(txn))
}

// GetByID retrieves a card transaction, returning 404 if not found
func (h *TransactionHandler) GetByID(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", "transaction")
	if !ok {
		return
	}

	txn, err := h.transactionService.Get(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, h.logger, "get card transaction", err)
		return
	}
	RespondOK(c, mapCardTransactionToResponse(txn))
}

// GetByCardID lists a card's transactions with pagination
func (h *TransactionHandler) GetByCardID(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	cardID, ok := pathID(c, "id", "card")
	if !ok {
		return
	}
	var p PaginationParams
	if err := c.ShouldBindQuery(&p); err != nil {
		RespondBadRequest(c, "Invalid pagination parameters: "+err.Error())
		return
	}

	txns, total, err := h.transactionService.ListByCard(c.Request.Context(), actor, cardID, p.Page, p.PerPage)
	if err != nil {
		respondError(c, h.logger, "list card transactions", err)
		return
	}
	data := make([]CardTransactionResponse, 0, len(txns))
	for _, t := range txns {
		data = append(data, mapCardTransactionToResponse(t))
	}
	RespondWithPaginatedData(c, http.StatusOK, data, p.Page, p.PerPage, int(total))
}

// Complete captures the held amount
func (h *TransactionHandler) Complete(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", "transaction")
	if !ok {
		return
	}

	txn, err := h.transactionService.Complete(c.Request.Context(), actor, id)
	h.respond(c, "complete card transaction", txn, err)
}

// Reverse releases the card hold and credits the organization balance
func (h *TransactionHandler) Reverse(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", "transaction")
	if !ok {
		return
	}
	var req ReasonRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	txn, err := h.transactionService.Reverse(c.Request.Context(), actor, id, req.Reason)
	h.respond(c, "reverse card transaction", txn, err)
}

// Dispute flags a transaction for investigation
func (h *TransactionHandler) Dispute(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", "transaction")
	if !ok {
		return
	}
	var req RequiredReasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "A dispute needs a reason: "+err.Error())
		return
	}

	txn, err := h.transactionService.Dispute(c.Request.Context(), actor, id, req.Reason)
	h.respond(c, "dispute card transaction", txn, err)
}

func (h *TransactionHandler) respond(c *gin.Context, op string, txn *card.Transaction, err error) {
	if err != nil {
		respondError(c, h.logger, op, err)
		return
	}
	RespondOK(c, mapCardTransactionToResponse(txn))
}
