package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"merchant-backend/internal/usecase"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type AuthMiddleware struct {
	tokenValidator usecase.TokenValidator
}

const (
	ctxMerchantIDKey    = "merchant_id"
	ctxMerchantEmailKey = "merchant_email"
	ctxClaimsKey        = "jwt_claims"

	bearerPrefix = "Bearer "
)

func NewAuthMiddleware(tokenValidator usecase.TokenValidator) *AuthMiddleware {
	return &AuthMiddleware{
		tokenValidator: tokenValidator,
	}
}

func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Access token required",
			})
			c.Abort()
			return
		}

		merchantID, email, err := m.tokenValidator.ValidateToken(token)
		if err != nil {
			slog.Warn("Token validation failed in auth middleware", "error", err.Error())
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid or expired token",
			})
			c.Abort()
			return
		}

		c.Set(ctxMerchantIDKey, merchantID)
		c.Set(ctxMerchantEmailKey, email)
		c.Set(ctxClaimsKey, map[string]any{
			"merchant_id": merchantID.String(),
			"email":       email,
		})
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(authHeader[len(bearerPrefix):])
}

func GetMerchantID(c *gin.Context) (uuid.UUID, bool) {
	merchantID, exists := c.Get(ctxMerchantIDKey)
	if !exists {
		return uuid.Nil, false
	}

	id, ok := merchantID.(uuid.UUID)
	return id, ok
}
