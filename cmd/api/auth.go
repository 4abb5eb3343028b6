package main

import (
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/PaulBabatuyi/connectChat/internal/apperr"
	"github.com/PaulBabatuyi/connectChat/internal/auth"
	"github.com/PaulBabatuyi/connectChat/internal/middleware"
)

// gin context key for the verified claims
const claimsKey = "claims"

// requireAuth resolves the caller from the Authorization header and aborts
// with 401 when it cannot. The caller id is stored for handlers and logging.
func (s *Server) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := auth.BearerToken(c.GetHeader("Authorization"))
		if err != nil {
			_ = c.Error(apperr.Unauthenticated("missing or malformed authorization header"))
			c.Abort()
			return
		}

		claims, err := s.jwt.VerifyToken(token)
		if err != nil {
			middleware.LoggerFrom(c).Debug().Err(err).Msg("token rejected")
			_ = c.Error(apperr.Unauthenticated("invalid or expired token"))
			c.Abort()
			return
		}

		c.Set(claimsKey, claims)
		c.Set(middleware.UserIDKey, claims.UserID)
		c.Next()
	}
}

// callerID returns the authenticated user id. requireAuth guarantees it is a
// valid ObjectID.
func callerID(c *gin.Context) bson.ObjectID {
	id, _ := bson.ObjectIDFromHex(c.GetString(middleware.UserIDKey))
	return id
}
