package middleware

import (
	"net/http"
	"strings"

	"github.com/finchbank/ledger-service/internal/domain"
	"github.com/finchbank/ledger-service/internal/ledger"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the JWT payload. Role travels inside the token so the ledger
// receives a complete caller context without a user lookup.
type Claims struct {
	AccountID string `json:"accountId"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

const callerContextKey = "ledgerCaller"

// AuthMiddleware verifies the Bearer token and stores the caller context for
// downstream handlers.
func AuthMiddleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"message": "Authorization header required",
			})
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"message": "Invalid authorization header format",
			})
			c.Abort()
			return
		}

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (any, error) {
			return secret, nil
		})
		if err != nil || !token.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{
				"message": "Invalid or expired token",
			})
			c.Abort()
			return
		}

		c.Set(callerContextKey, ledger.Caller{
			AccountID: claims.AccountID,
			Role:      domain.Role(claims.Role),
		})
		c.Next()
	}
}

// GetCaller returns the verified caller context set by AuthMiddleware.
func GetCaller(c *gin.Context) (ledger.Caller, bool) {
	v, exists := c.Get(callerContextKey)
	if !exists {
		return ledger.Caller{}, false
	}
	caller, ok := v.(ledger.Caller)
	return caller, ok
}

// SetCaller injects a caller context directly; test helper for handler tests.
func SetCaller(c *gin.Context, caller ledger.Caller) {
	c.Set(callerContextKey, caller)
}
