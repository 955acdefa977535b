package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/virtupay-ledger/internal/api_gateway/service"
	"github.com/virtupay-ledger/internal/domain/org"
)

// DepartmentHandler handles HTTP requests for the caller's organization departments
type DepartmentHandler struct {
	departmentService service.DepartmentService
	logger            *slog.Logger
}

// NewDepartmentHandler creates a new department handler
func NewDepartmentHandler(logger *slog.Logger, departmentService service.DepartmentService) *DepartmentHandler {
	return &DepartmentHandler{
		departmentService: departmentService,
		logger:            logger,
	}
}

func (h *DepartmentHandler) Create(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req CreateDepartmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	var manager *uuid.UUID
	if req.ManagerMembershipID != "" {
		id := uuid.MustParse(req.ManagerMembershipID)
		manager = &id
	}
	d, err := h.departmentService.Create(c.Request.Context(), actor, req.Name, *req.Budget, manager)
	if err != nil {
		respondError(c, h.logger, "create department", err)
		return
	}
	RespondCreated(c, mapDepartmentToResponse(d))
}

// List pages through the organization's departments
func (h *DepartmentHandler) List(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var p PaginationParams
	if err := c.ShouldBindQuery(&p); err != nil {
		RespondBadRequest(c, "Invalid pagination parameters: "+err.Error())
		return
	}

	departments, total, err := h.departmentService.List(c.Request.Context(), actor, p.Page, p.PerPage)
	if err != nil {
		respondError(c, h.logger, "list departments", err)
		return
	}
	data := make([]DepartmentResponse, 0, len(departments))
	for _, d := range departments {
		data = append(data, mapDepartmentToResponse(d))
	}
	RespondWithPaginatedData(c, http.StatusOK, data, p.Page, p.PerPage, int(total))
}

func (h *DepartmentHandler) GetByID(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", "department")
	if !ok {
		return
	}

	d, err := h.departmentService.Get(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, h.logger, "get department", err)
		return
	}
	RespondOK(c, mapDepartmentToResponse(d))
}

func (h *DepartmentHandler) Update(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", "department")
	if !ok {
		return
	}
	var req UpdateDepartmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	change := org.DepartmentChange{Name: req.Name, Budget: req.Budget}
	if req.ManagerMembershipID != nil {
		manager := uuid.MustParse(*req.ManagerMembershipID)
		change.ManagerMembershipID = &manager
	}
	if req.Status != nil {
		status := org.DepartmentStatus(*req.Status)
		change.Status = &status
	}

	d, err := h.departmentService.Update(c.Request.Context(), actor, id, change)
	if err != nil {
		respondError(c, h.logger, "update department", err)
		return
	}
	RespondOK(c, mapDepartmentToResponse(d))
}

func (h *DepartmentHandler) Delete(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", "department")
	if !ok {
		return
	}

	if err := h.departmentService.Delete(c.Request.Context(), actor, id); err != nil {
		respondError(c, h.logger, "delete department", err)
		return
	}
	RespondNoContent(c)
}
