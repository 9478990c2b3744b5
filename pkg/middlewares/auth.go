package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jjpp222/tutor-aleman-backend/pkg/commons"
	"github.com/jjpp222/tutor-aleman-backend/pkg/types"
)

// Authenticated verifies the Authorization bearer token and attaches the
// resolved principle to the request context. Aborts with 401 otherwise.
func Authenticated(verifier types.TokenVerifier, logger commons.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		principle, err := verifier.Verify(token)
		if err != nil {
			logger.Debugf("token verification failed: %v", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		types.SetAuthPrinciple(c, principle)
		c.Next()
	}
}
