package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/OfirPatish/Chattrix-sub000/internal/auth"
)

// AuthMiddleware validates bearer access tokens and sets the user id
// in context. Verification consults the blacklist, so revoked tokens
// fail here even before their natural expiry.
func AuthMiddleware(tokens *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")

		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")

		userID, err := tokens.Verify(c.Request.Context(), tokenString, auth.TokenKindAccess)
		if err != nil {
			message := "Invalid token"
			switch {
			case errors.Is(err, auth.ErrTokenExpired):
				message = "Token expired"
			case errors.Is(err, auth.ErrTokenRevoked):
				message = "Token revoked"
			}
			c.JSON(http.StatusUnauthorized, gin.H{"error": message})
			c.Abort()
			return
		}

		c.Set("userID", userID)
		c.Set("accessToken", tokenString)

		c.Next()
	}
}
