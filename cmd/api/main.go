// Command api serves the connectChat REST API, the socket.io gateway and the
// gRPC health service. Socket clients authenticate with ?token=<jwt> or an
// Authorization bearer header.
package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/PaulBabatuyi/connectChat/internal/auth"
	"github.com/PaulBabatuyi/connectChat/internal/config"
	"github.com/PaulBabatuyi/connectChat/internal/connection"
	"github.com/PaulBabatuyi/connectChat/internal/data"
	"github.com/PaulBabatuyi/connectChat/internal/db"
	"github.com/PaulBabatuyi/connectChat/internal/health"
	"github.com/PaulBabatuyi/connectChat/internal/logger"
	"github.com/PaulBabatuyi/connectChat/internal/messaging"
	"github.com/PaulBabatuyi/connectChat/internal/middleware"
	"github.com/PaulBabatuyi/connectChat/internal/presence"
)

func main() {
	envFile := flag.String("env", ".env", "path to an optional env file")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		bootLog := logger.New("development", "info")
		bootLog.Fatal().Err(err).Msg("failed to load config")
	}

	log := logger.New(cfg.Env, cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server exited with error")
	}
	log.Info().Msg("server exited gracefully")
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	dbClient, err := db.New(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		return err
	}
	defer func() {
		_ = dbClient.Close(context.Background())
	}()

	// Ensure indexes exist; the unique ones keep one record per user pair
	if err := dbClient.CreateIndexes(ctx); err != nil {
		return err
	}

	// Create stores
	usersStore := data.NewUsersStore(dbClient.UsersCollection())
	connsStore := data.NewConnectionsStore(dbClient.ConnectionsCollection())
	convsStore := data.NewConversationsStore(dbClient.ConversationsCollection())
	msgsStore := data.NewMessagesStore(dbClient.MessagesCollection())

	jwtMgr, err := newJWTManager(cfg)
	if err != nil {
		return err
	}

	registry := presence.NewRegistry(log)
	connSvc := connection.NewService(usersStore, connsStore, convsStore, log)
	msgSvc := messaging.NewService(usersStore, connsStore, convsStore, msgsStore, registry, log)

	// Auth endpoints get a small burst to allow a couple of quick retries
	authLimiter := middleware.NewLimiterStore(middleware.PerMinute(cfg.RateLimitRPM), 3, time.Minute)
	defer authLimiter.Stop()
	typingLimiter := middleware.NewLimiterStore(rate.Every(cfg.TypingThrottle), 1, time.Minute)
	defer typingLimiter.Stop()
	localSend := middleware.NewLimiterStore(middleware.PerMinute(cfg.SendRateLimitPerMin), cfg.SendRateLimitPerMin, time.Minute)
	defer localSend.Stop()

	var sendLimiter middleware.Limiter = localSend
	if cfg.RedisAddr != "" {
		rdb, err := middleware.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable, using in-process send limits")
		} else {
			defer rdb.Close()
			rl := middleware.NewRedisLimiter(rdb, cfg.SendRateLimitPerMin, time.Minute, log)
			rl.Fallback = localSend
			sendLimiter = rl
			log.Info().Str("addr", cfg.RedisAddr).Msg("redis send limits enabled")
		}
	}

	grpcOpts, err := health.ServerOptions(cfg.TLSCert, cfg.TLSKey, cfg.RequireTLS)
	if err != nil {
		return err
	}
	healthSrv := health.NewServer(dbClient, 10*time.Second, log, grpcOpts...)
	go healthSrv.Run(ctx)

	origins := cfg.AllowedOrigins()
	gw := &gateway{jwt: jwtMgr, presence: registry, typing: typingLimiter, log: log.With().Str("component", "socket").Logger()}
	socketServer := newSocketServer(gw, origins)
	go func() {
		if err := socketServer.Serve(); err != nil {
			log.Error().Err(err).Msg("socket server exit")
		}
	}()
	defer socketServer.Close()

	srv := &Server{
		users:       usersStore,
		jwt:         jwtMgr,
		connections: connSvc,
		messaging:   msgSvc,
		presence:    registry,
		health:      healthSrv,
		limits:      limits{auth: authLimiter, send: sendLimiter},
		origins:     origins,
		log:         log,
	}

	httpSrv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.routes(socketServer),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("HTTP server listening")
		var err error
		if cfg.TLSCert != "" && cfg.TLSKey != "" {
			err = httpSrv.ListenAndServeTLS(cfg.TLSCert, cfg.TLSKey)
		} else {
			err = httpSrv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	if cfg.GRPCHealthPort != "" {
		lis, err := net.Listen("tcp", ":"+cfg.GRPCHealthPort)
		if err != nil {
			return err
		}
		go func() {
			if err := healthSrv.Serve(lis); err != nil {
				errCh <- err
			}
		}()
	}

	// Graceful shutdown on SIGINT/SIGTERM or a listener failure
	select {
	case <-ctx.Done():
	case err := <-errCh:
		log.Error().Err(err).Msg("listener failed")
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	healthSrv.Stop()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

// newJWTManager builds the token manager. JWT_KEYS enables rotation;
// otherwise a single JWT_SECRET is used.
func newJWTManager(cfg *config.Config) (*auth.JWTManager, error) {
	if cfg.JWTKeys != "" {
		keys, err := cfg.ParseJWTKeys()
		if err != nil {
			return nil, err
		}
		return auth.NewJWTManagerFromKeys(keys, cfg.JWTActiveKid, cfg.JWTTTL), nil
	}
	return auth.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL), nil
}
