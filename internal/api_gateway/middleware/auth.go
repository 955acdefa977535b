package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/virtupay-ledger/internal/config"
	"github.com/virtupay-ledger/internal/domain/org"
)

// ActorKey is the key under which the authenticated org.Actor is stored in the gin context
const ActorKey = "actor"

// Claims is the bearer token payload. The subject is the membership id the caller acts as.
type Claims struct {
	jwt.RegisteredClaims
}

// MembershipResolver looks up the membership named by a token
type MembershipResolver interface {
	GetMembership(ctx context.Context, id uuid.UUID) (*org.Membership, error)
}

// IssueToken signs an HS256 token for a membership. Token issuance belongs to the
// identity service; this is used by tooling and tests.
func IssueToken(cfg *config.AuthConfig, membershipID uuid.UUID, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Subject:   membershipID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.JWTSecret))
}

// Auth verifies the bearer token and resolves it into an org.Actor. The stored
// membership is authoritative: its role and organization are used, not anything
// claimed by the token, and an inactive membership is refused.
func Auth(cfg *config.AuthConfig, members MembershipResolver, logger *slog.Logger) gin.HandlerFunc {
	secret := []byte(cfg.JWTSecret)
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithExpirationRequired(),
	)

	return func(c *gin.Context) {
		raw, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			abortWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Missing bearer token")
			return
		}

		var claims Claims
		if _, err := parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
			return secret, nil
		}); err != nil {
			logger.Warn("Rejected bearer token", "error", err, "correlation_id", GetCorrelationID(c))
			abortWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or expired token")
			return
		}

		membershipID, err := uuid.Parse(claims.Subject)
		if err != nil {
			abortWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid token subject")
			return
		}

		m, err := members.GetMembership(c.Request.Context(), membershipID)
		if err != nil {
			if errors.Is(err, org.ErrMembershipNotFound{}) {
				abortWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Unknown membership")
				return
			}
			logger.Error("Failed to resolve membership", "membership_id", membershipID.String(), "error", err)
			abortWithError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "An internal server error occurred")
			return
		}
		if !m.IsActive() {
			abortWithError(c, http.StatusForbidden, "FORBIDDEN", "Membership is not active")
			return
		}

		c.Set(ActorKey, m.Actor())
		c.Next()
	}
}

// GetActor returns the authenticated actor, if any
func GetActor(c *gin.Context) (org.Actor, bool) {
	v, exists := c.Get(ActorKey)
	if !exists {
		return org.Actor{}, false
	}
	actor, ok := v.(org.Actor)
	return actor, ok
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
