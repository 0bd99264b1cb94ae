package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"whosehouse/api/internal/models"
	"whosehouse/api/internal/service"
)

// ChildToken authenticates the unauthenticated child-facing routes by the
// opaque token in the path. Validation failures are uniform: the holder
// never learns whether the token was unknown, expired, or the case closed.
func ChildToken(childAccess *service.ChildAccessService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Param("token")
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "access_denied"})
			return
		}

		caseRow, err := childAccess.Validate(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "access_denied"})
			return
		}

		c.Set("child_case", caseRow)
		c.Next()
	}
}

// ChildCase returns the case the token resolved to.
func ChildCase(c *gin.Context) (models.Case, bool) {
	val, ok := c.Get("child_case")
	if !ok {
		return models.Case{}, false
	}
	caseRow, ok := val.(models.Case)
	return caseRow, ok
}
