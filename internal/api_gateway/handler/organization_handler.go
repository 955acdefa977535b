package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/virtupay-ledger/internal/api_gateway/service"
	"github.com/virtupay-ledger/internal/domain/org"
)

// OrganizationHandler handles HTTP requests for organizations and their members
type OrganizationHandler struct {
	organizationService service.OrganizationService
	logger              *slog.Logger
}

// NewOrganizationHandler creates a new organization handler
func NewOrganizationHandler(logger *slog.Logger, organizationService service.OrganizationService) *OrganizationHandler {
	return &OrganizationHandler{
		organizationService: organizationService,
		logger:              logger,
	}
}

// Create opens an organization owned by the caller's user
func (h *OrganizationHandler) Create(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req OrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	o, owner, err := h.organizationService.Create(c.Request.Context(), actor, req.Name, req.Industry)
	if err != nil {
		respondError(c, h.logger, "create organization", err)
		return
	}
	RespondCreated(c, CreatedOrganizationResponse{
		Organization: mapOrganizationToResponse(o),
		Owner:        mapMembershipToResponse(owner),
	})
}

func (h *OrganizationHandler) GetByID(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", "organization")
	if !ok {
		return
	}

	o, err := h.organizationService.Get(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, h.logger, "get organization", err)
		return
	}
	RespondOK(c, mapOrganizationToResponse(o))
}

func (h *OrganizationHandler) Update(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", "organization")
	if !ok {
		return
	}
	var req OrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	o, err := h.organizationService.Update(c.Request.Context(), actor, id, req.Name, req.Industry)
	if err != nil {
		respondError(c, h.logger, "update organization", err)
		return
	}
	RespondOK(c, mapOrganizationToResponse(o))
}

// Members lists the organization's members; inactive ones only on request
func (h *OrganizationHandler) Members(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", "organization")
	if !ok {
		return
	}
	var q MemberListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		RespondBadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}

	members, err := h.organizationService.ListMembers(c.Request.Context(), actor, id, q.IncludeInactive)
	if err != nil {
		respondError(c, h.logger, "list members", err)
		return
	}
	resp := make([]MembershipResponse, 0, len(members))
	for _, m := range members {
		resp = append(resp, mapMembershipToResponse(m))
	}
	RespondOK(c, resp)
}

// AddMember answers 409 when the user already belongs to the organization
func (h *OrganizationHandler) AddMember(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", "organization")
	if !ok {
		return
	}
	var req AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	m, err := h.organizationService.AddMember(c.Request.Context(), actor, id, uuid.MustParse(req.UserID), org.Role(req.Role))
	if err != nil {
		respondError(c, h.logger, "add member", err)
		return
	}
	RespondCreated(c, mapMembershipToResponse(m))
}

func (h *OrganizationHandler) ChangeMemberRole(c *gin.Context) {
	actor, id, userID, ok := h.memberPath(c)
	if !ok {
		return
	}
	var req ChangeMemberRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	m, err := h.organizationService.ChangeMemberRole(c.Request.Context(), actor, id, userID, org.Role(req.Role))
	if err != nil {
		respondError(c, h.logger, "change member role", err)
		return
	}
	RespondOK(c, mapMembershipToResponse(m))
}

func (h *OrganizationHandler) RemoveMember(c *gin.Context) {
	actor, id, userID, ok := h.memberPath(c)
	if !ok {
		return
	}

	if _, err := h.organizationService.RemoveMember(c.Request.Context(), actor, id, userID); err != nil {
		respondError(c, h.logger, "remove member", err)
		return
	}
	RespondNoContent(c)
}

func (h *OrganizationHandler) memberPath(c *gin.Context) (org.Actor, uuid.UUID, uuid.UUID, bool) {
	actor, ok := currentActor(c)
	if !ok {
		return org.Actor{}, uuid.Nil, uuid.Nil, false
	}
	id, ok := pathID(c, "id", "organization")
	if !ok {
		return org.Actor{}, uuid.Nil, uuid.Nil, false
	}
	userID, ok := pathID(c, "userId", "user")
	if !ok {
		return org.Actor{}, uuid.Nil, uuid.Nil, false
	}
	return actor, id, userID, true
}
