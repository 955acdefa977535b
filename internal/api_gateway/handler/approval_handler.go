package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/virtupay-ledger/internal/api_gateway/service"
	"github.com/virtupay-ledger/internal/domain/approval"
)

// ApprovalHandler handles HTTP requests for the approval workflow
type ApprovalHandler struct {
	approvalService service.ApprovalService
	logger          *slog.Logger
}

// NewApprovalHandler creates a new approval handler
func NewApprovalHandler(logger *slog.Logger, approvalService service.ApprovalService) *ApprovalHandler {
	return &ApprovalHandler{
		approvalService: approvalService,
		logger:          logger,
	}
}

// Create opens an approval request for a card action
func (h *ApprovalHandler) Create(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req CreateApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	action := approval.ActionType(req.ActionType)
	cardID, _ := optionalUUID(req.CardID)
	if action.TargetsCard() && cardID == nil {
		RespondBadRequest(c, "card_id is required for "+req.ActionType)
		return
	}
	if !action.TargetsCard() {
		cardID = nil
	}

	a, err := h.approvalService.Request(c.Request.Context(), actor, cardID, action, req.ActionData, req.Reason)
	if err != nil {
		respondError(c, h.logger, "request approval", err)
		return
	}
	RespondCreated(c, mapApprovalToResponse(a))
}

// GetByID retrieves an approval, returning 404 if not found
func (h *ApprovalHandler) GetByID(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", "approval")
	if !ok {
		return
	}

	a, err := h.approvalService.Get(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, h.logger, "get approval", err)
		return
	}
	RespondOK(c, mapApprovalToResponse(a))
}

// Pending lists the organization's undecided, unexpired requests
func (h *ApprovalHandler) Pending(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	approvals, err := h.approvalService.Pending(c.Request.Context(), actor)
	if err != nil {
		respondError(c, h.logger, "list pending approvals", err)
		return
	}
	RespondOK(c, mapApprovalsToResponse(approvals))
}

// History lists every approval raised for the card in the path
func (h *ApprovalHandler) History(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	cardID, ok := pathID(c, "id", "card")
	if !ok {
		return
	}

	approvals, err := h.approvalService.History(c.Request.Context(), actor, cardID)
	if err != nil {
		respondError(c, h.logger, "card approval history", err)
		return
	}
	RespondOK(c, mapApprovalsToResponse(approvals))
}

// Requirements reports whether the caller's role would need an approval for the action in the path
func (h *ApprovalHandler) Requirements(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	req, err := h.approvalService.Requirements(c.Request.Context(), actor, approval.ActionType(c.Param("actionType")))
	if err != nil {
		respondError(c, h.logger, "approval requirements", err)
		return
	}
	RespondOK(c, mapRequirementToResponse(req))
}

// Approve decides the request and applies the approved action
func (h *ApprovalHandler) Approve(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", "approval")
	if !ok {
		return
	}
	var req DecisionRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	a, err := h.approvalService.Approve(c.Request.Context(), actor, id, req.Comment)
	if err != nil {
		respondError(c, h.logger, "approve", err)
		return
	}
	RespondOK(c, mapApprovalToResponse(a))
}

// Reject declines the request
func (h *ApprovalHandler) Reject(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", "approval")
	if !ok {
		return
	}
	var req ReasonRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	a, err := h.approvalService.Reject(c.Request.Context(), actor, id, req.Reason)
	if err != nil {
		respondError(c, h.logger, "reject", err)
		return
	}
	RespondOK(c, mapApprovalToResponse(a))
}

// Apply retries an approved action that did not take effect
func (h *ApprovalHandler) Apply(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", "approval")
	if !ok {
		return
	}

	a, err := h.approvalService.Apply(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, h.logger, "apply approval", err)
		return
	}
	RespondOK(c, mapApprovalToResponse(a))
}
