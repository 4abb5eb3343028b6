package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/PaulBabatuyi/connectChat/internal/apperr"
)

// ErrorHandler renders errors attached with c.Error as {"error": message} and
// recovers panics as internal errors. Internal causes are logged, never sent.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				LoggerFrom(c).Error().
					Str("panic", fmt.Sprintf("%v", r)).
					Str("stack", string(debug.Stack())).
					Msg("panic recovered")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			}
		}()

		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		status := apperr.HTTPStatus(err)
		if status >= http.StatusInternalServerError {
			LoggerFrom(c).Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
		}
		c.JSON(status, gin.H{"error": apperr.PublicMessage(err)})
	}
}
