package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"campaign-server/shared/authutils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	ContextKeyAccountID = "account_id"
	ContextKeyClaims    = "claims"
)

// TokenVerifier проверяет строку токена.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, tokenString string) (*authutils.Claims, error)
}

// GinAuth проверяет Bearer-токен и кладет id аккаунта и claims в контекст gin.
func GinAuth(verifier TokenVerifier, logger *zap.Logger, requiredRoles ...string) gin.HandlerFunc {
	log := logger.Named("GinAuth")
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
			log.Warn("Missing or malformed Authorization header", zap.String("path", c.Request.URL.Path))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized: missing token"})
			return
		}

		claims, err := verifier.VerifyToken(c.Request.Context(), parts[1])
		if err != nil {
			msg := "unauthorized: invalid token"
			if errors.Is(err, authutils.ErrTokenExpired) {
				msg = "unauthorized: token expired"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
			return
		}

		if len(requiredRoles) > 0 {
			allowed := false
			for _, role := range requiredRoles {
				if claims.HasRole(role) {
					allowed = true
					break
				}
			}
			if !allowed {
				log.Warn("Account lacks required role", zap.String("account_id", claims.AccountID()), zap.Strings("required", requiredRoles))
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
				return
			}
		}

		c.Set(ContextKeyAccountID, claims.AccountID())
		c.Set(ContextKeyClaims, claims)
		c.Next()
	}
}
