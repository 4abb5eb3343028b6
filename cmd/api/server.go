package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/PaulBabatuyi/connectChat/internal/auth"
	"github.com/PaulBabatuyi/connectChat/internal/connection"
	"github.com/PaulBabatuyi/connectChat/internal/data"
	"github.com/PaulBabatuyi/connectChat/internal/messaging"
	"github.com/PaulBabatuyi/connectChat/internal/middleware"
	"github.com/PaulBabatuyi/connectChat/internal/presence"
)

// userStore is what the account handlers need from the users collection.
type userStore interface {
	CreateUser(ctx context.Context, username, email, hashedPassword string) (*data.User, error)
	GetUserByLogin(ctx context.Context, identifier string) (*data.User, error)
	GetUserByID(ctx context.Context, id bson.ObjectID) (*data.User, error)
	UpdateProfile(ctx context.Context, id bson.ObjectID, upd data.ProfileUpdate) (*data.User, error)
}

// readinessChecker reports whether the service can take traffic.
type readinessChecker interface {
	Check(ctx context.Context) error
}

// limits groups the rate limiters applied by the router.
type limits struct {
	auth middleware.Limiter
	send middleware.Limiter
}

// Server holds the dependencies of the HTTP handlers.
type Server struct {
	users       userStore
	jwt         *auth.JWTManager
	connections *connection.Service
	messaging   *messaging.Service
	presence    *presence.Registry
	health      readinessChecker
	limits      limits
	origins     []string
	log         zerolog.Logger
}

// routes builds the gin engine. socket may be nil when real-time delivery is
// not served by this engine.
func (s *Server) routes(socket http.Handler) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(s.log))
	r.Use(middleware.ErrorHandler())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     s.origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/healthz", s.handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if socket != nil {
		r.GET("/socket.io/*any", gin.WrapH(socket))
		r.POST("/socket.io/*any", gin.WrapH(socket))
	}

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	if s.limits.auth != nil {
		authGroup.Use(middleware.RateLimit(s.limits.auth, "auth", middleware.ByIP))
	}
	authGroup.POST("/register", s.handleRegister)
	authGroup.POST("/login", s.handleLogin)

	private := api.Group("")
	private.Use(s.requireAuth())

	private.GET("/profile", s.handleGetProfile)
	private.PUT("/profile", s.handleUpdateProfile)

	conns := private.Group("/connections")
	conns.GET("/discover", s.handleDiscover)
	conns.POST("/connect/:id", s.handleConnect)
	conns.POST("/accept/:id", s.handleAccept)
	conns.POST("/reject/:id", s.handleReject)
	conns.GET("/connections", s.handleListConnections)
	conns.GET("/requests", s.handleListRequests)

	msgs := private.Group("/messages")
	msgs.GET("", s.handleListConversations)
	msgs.GET("/with/:userId", s.handleOpenConversation)
	msgs.GET("/:conversationId", s.handleGetMessages)
	send := []gin.HandlerFunc{s.handleSendMessage}
	if s.limits.send != nil {
		send = append([]gin.HandlerFunc{middleware.RateLimit(s.limits.send, "send", middleware.ByUser)}, send...)
	}
	msgs.POST("/send/:userId", send...)

	private.GET("/presence/online", s.handleOnline)

	return r
}

func (s *Server) handleHealth(c *gin.Context) {
	if s.health == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}
	if err := s.health.Check(c.Request.Context()); err != nil {
		middleware.LoggerFrom(c).Warn().Err(err).Msg("health check failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleOnline(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"online": s.presence.Online()})
}
