// Package middleware holds the gin middleware chain: request ids, logging,
// error rendering and rate limiting.
package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Context keys set by the middleware chain.
const (
	UserIDKey    = "userID"
	RequestIDKey = "requestID"
	loggerKey    = "logger"
)

// RequestIDHeader carries the request id in and out.
const RequestIDHeader = "X-Request-ID"

// LoggerFrom returns the request-scoped logger, or a disabled logger if the
// request did not pass through RequestLogger.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if l, ok := v.(*zerolog.Logger); ok {
			return l
		}
	}
	nop := zerolog.Nop()
	return &nop
}
