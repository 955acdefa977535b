package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/virtupay-ledger/internal/api_gateway/service"
	"github.com/virtupay-ledger/internal/domain/approval"
)

// CardHandler handles HTTP requests for card management. Changes that the
// caller's role may not make directly answer 202 with the approval opened for them.
type CardHandler struct {
	cardService service.CardService
	logger      *slog.Logger
}

// NewCardHandler creates a new card handler
func NewCardHandler(logger *slog.Logger, cardService service.CardService) *CardHandler {
	return &CardHandler{
		cardService: cardService,
		logger:      logger,
	}
}

// Create issues a card, or opens a CREATE_CARD approval
func (h *CardHandler) Create(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req CreateCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	res, err := h.cardService.Create(c.Request.Context(), actor, approval.CreateCardAction{
		OwnerMembershipID: uuid.MustParse(req.OwnerMembershipID),
		InitialAmount:     req.InitialAmount,
		Currency:          req.Currency,
	}, req.Reason)
	if err != nil {
		respondError(c, h.logger, "create card", err)
		return
	}
	respondCardResult(c, http.StatusCreated, res)
}

// List pages through the organization's cards
func (h *CardHandler) List(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var p PaginationParams
	if err := c.ShouldBindQuery(&p); err != nil {
		RespondBadRequest(c, "Invalid pagination parameters: "+err.Error())
		return
	}

	cards, total, err := h.cardService.List(c.Request.Context(), actor, p.Page, p.PerPage)
	if err != nil {
		respondError(c, h.logger, "list cards", err)
		return
	}
	data := make([]CardResponse, 0, len(cards))
	for _, cd := range cards {
		data = append(data, mapCardToResponse(cd))
	}
	RespondWithPaginatedData(c, http.StatusOK, data, p.Page, p.PerPage, int(total))
}

// GetByID retrieves a card, returning 404 if not found
func (h *CardHandler) GetByID(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", "card")
	if !ok {
		return
	}

	cd, err := h.cardService.Get(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, h.logger, "get card", err)
		return
	}
	RespondOK(c, mapCardToResponse(cd))
}

// Balance returns the card's available, reserved and used buckets
func (h *CardHandler) Balance(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", "card")
	if !ok {
		return
	}

	b, err := h.cardService.Balance(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, h.logger, "get card balance", err)
		return
	}
	RespondOK(c, mapCardBalanceToResponse(b))
}

// Fund tops up the card's available bucket
func (h *CardHandler) Fund(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", "card")
	if !ok {
		return
	}
	var req FundCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	b, err := h.cardService.Fund(c.Request.Context(), actor, id, req.Amount, req.Reason, req.ReferenceID)
	if err != nil {
		respondError(c, h.logger, "fund card", err)
		return
	}
	RespondOK(c, mapCardBalanceToResponse(b))
}

// Recalculate rebuilds the card's reserved and used buckets from its transactions
func (h *CardHandler) Recalculate(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", "card")
	if !ok {
		return
	}

	b, err := h.cardService.Recalculate(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, h.logger, "recalculate card balance", err)
		return
	}
	RespondOK(c, mapCardBalanceToResponse(b))
}

// Limits lists the card's spending limits
func (h *CardHandler) Limits(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", "card")
	if !ok {
		return
	}

	limits, err := h.cardService.Limits(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, h.logger, "get card limits", err)
		return
	}
	RespondOK(c, mapLimitsToResponse(limits))
}

// ChangeLimits replaces the card's spending limits
func (h *CardHandler) ChangeLimits(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", "card")
	if !ok {
		return
	}
	var req LimitsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	specs := make([]approval.LimitSpec, 0, len(req.Limits))
	for _, l := range req.Limits {
		specs = append(specs, approval.LimitSpec{Type: l.Type, Amount: l.Amount, Threshold: l.Threshold})
	}

	res, err := h.cardService.ChangeLimits(c.Request.Context(), actor, id, specs, req.Reason)
	if err != nil {
		respondError(c, h.logger, "change card limits", err)
		return
	}
	respondCardResult(c, http.StatusOK, res)
}

// ChangeMerchants replaces the blocked merchant category codes
func (h *CardHandler) ChangeMerchants(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", "card")
	if !ok {
		return
	}
	var req MerchantsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	res, err := h.cardService.ChangeMerchants(c.Request.Context(), actor, id, req.BlockedMCCs, req.Reason)
	if err != nil {
		respondError(c, h.logger, "change card merchants", err)
		return
	}
	respondCardResult(c, http.StatusOK, res)
}

// Freeze blocks all spending on the card
func (h *CardHandler) Freeze(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", "card")
	if !ok {
		return
	}
	var req RequiredReasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	res, err := h.cardService.Freeze(c.Request.Context(), actor, id, req.Reason)
	if err != nil {
		respondError(c, h.logger, "freeze card", err)
		return
	}
	respondCardResult(c, http.StatusOK, res)
}

// Unfreeze reactivates a frozen card
func (h *CardHandler) Unfreeze(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", "card")
	if !ok {
		return
	}

	cd, err := h.cardService.Unfreeze(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, h.logger, "unfreeze card", err)
		return
	}
	RespondOK(c, mapCardToResponse(cd))
}

// Cancel permanently closes the card. It always goes through approval.
func (h *CardHandler) Cancel(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", "card")
	if !ok {
		return
	}
	var req ReasonRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	res, err := h.cardService.Cancel(c.Request.Context(), actor, id, req.Reason)
	if err != nil {
		respondError(c, h.logger, "cancel card", err)
		return
	}
	respondCardResult(c, http.StatusOK, res)
}

// SetInternational toggles cross-border spending
func (h *CardHandler) SetInternational(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", "card")
	if !ok {
		return
	}
	var req InternationalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	res, err := h.cardService.SetInternational(c.Request.Context(), actor, id, *req.Enabled, req.Reason)
	if err != nil {
		respondError(c, h.logger, "set card international", err)
		return
	}
	respondCardResult(c, http.StatusOK, res)
}

// respondCardResult answers with the changed card, or 202 with the approval that
// now stands in for the change
func respondCardResult(c *gin.Context, status int, res *service.CardResult) {
	if res.Approval != nil {
		RespondAccepted(c, mapApprovalToResponse(res.Approval))
		return
	}
	RespondWithData(c, status, mapCardToResponse(res.Card))
}
