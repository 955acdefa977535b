package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/virtupay-ledger/internal/api_gateway/middleware"
	"github.com/virtupay-ledger/internal/domain/org"
)

func correlationID(c *gin.Context) string {
	return middleware.GetCorrelationID(c)
}

// currentActor returns the authenticated actor or answers 401
func currentActor(c *gin.Context) (org.Actor, bool) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		RespondUnauthorized(c, "")
		return org.Actor{}, false
	}
	return actor, true
}

// pathID parses a uuid path parameter or answers 400
func pathID(c *gin.Context, name, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		RespondBadRequest(c, "Invalid "+what+" ID")
		return uuid.Nil, false
	}
	return id, true
}

// bindOptionalJSON binds a body that callers may leave out entirely
func bindOptionalJSON(c *gin.Context, obj any) error {
	if c.Request.ContentLength == 0 {
		return nil
	}
	return c.ShouldBindJSON(obj)
}

func optionalUUID(raw string) (*uuid.UUID, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
