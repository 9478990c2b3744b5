package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Success writes a 200 JSON envelope.
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

// Error writes an error envelope with the given status and a user-safe message.
func Error(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "error": message})
}

// InternalError writes the generic 500 envelope; the underlying error is for
// logs only, never the response body.
func InternalError(c *gin.Context) {
	Error(c, http.StatusInternalServerError, "something went wrong, please try again in sometime")
}
