package main

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"slices"

	socketio "github.com/googollee/go-socket.io"
	"github.com/googollee/go-socket.io/engineio"
	"github.com/googollee/go-socket.io/engineio/transport"
	"github.com/googollee/go-socket.io/engineio/transport/polling"
	"github.com/googollee/go-socket.io/engineio/transport/websocket"
	"github.com/rs/zerolog"

	"github.com/PaulBabatuyi/connectChat/internal/auth"
	"github.com/PaulBabatuyi/connectChat/internal/metrics"
	"github.com/PaulBabatuyi/connectChat/internal/middleware"
	"github.com/PaulBabatuyi/connectChat/internal/presence"
)

// Real-time events.
const (
	eventUserOnline  = "user-online"
	eventUserOffline = "user-offline"
	eventOnlineUsers = "online-users"
	eventTyping      = "typing"
	eventStopTyping  = "stop-typing"
)

var (
	errAuthRequired = errors.New("authentication required")
	errInvalidToken = errors.New("invalid token")
)

// socketConn is the part of socketio.Conn the gateway uses.
type socketConn interface {
	ID() string
	Emit(event string, args ...interface{})
	URL() url.URL
	RemoteHeader() http.Header
	Context() interface{}
	SetContext(v interface{})
}

type typingPayload struct {
	To string `json:"to"`
}

type typingNotice struct {
	From string `json:"from"`
}

// gateway authenticates sockets and keeps the presence registry in sync with
// them.
type gateway struct {
	jwt      *auth.JWTManager
	presence *presence.Registry
	typing   middleware.Limiter
	log      zerolog.Logger
}

// socketToken returns the handshake credential: the token query parameter,
// or a bearer Authorization header. The socket.io v4 handshake auth payload
// ({auth: {token}}) is not readable here, so browser clients must connect
// with io(url, {query: {token}}).
func socketToken(c socketConn) string {
	u := c.URL()
	if t := u.Query().Get("token"); t != "" {
		return t
	}
	t, _ := auth.BearerToken(c.RemoteHeader().Get("Authorization"))
	return t
}

func (g *gateway) onConnect(c socketConn) error {
	c.SetContext("")

	token := socketToken(c)
	if token == "" {
		g.log.Debug().Str("socket_id", c.ID()).Msg("socket rejected: no token")
		return errAuthRequired
	}
	claims, err := g.jwt.VerifyToken(token)
	if err != nil {
		g.log.Debug().Err(err).Str("socket_id", c.ID()).Msg("socket rejected: invalid token")
		return errInvalidToken
	}

	userID := claims.UserID
	c.SetContext(userID)

	g.presence.Register(userID, c)
	metrics.OnlineUsers.Set(float64(g.presence.Len()))
	g.log.Info().Str("socket_id", c.ID()).Str("user_id", userID).Msg("socket connected")

	g.presence.Broadcast(eventUserOnline, userID)
	c.Emit(eventOnlineUsers, g.presence.Online())
	return nil
}

func socketUser(c socketConn) string {
	id, _ := c.Context().(string)
	return id
}

func (g *gateway) onTyping(c socketConn, p typingPayload) {
	from := socketUser(c)
	if from == "" || p.To == "" || p.To == from {
		return
	}
	if g.typing != nil && !g.typing.Allow(context.Background(), "typing:"+from+":"+p.To) {
		return
	}
	g.presence.PushToUser(p.To, eventTyping, typingNotice{From: from})
}

func (g *gateway) onStopTyping(c socketConn, p typingPayload) {
	from := socketUser(c)
	if from == "" || p.To == "" || p.To == from {
		return
	}
	g.presence.PushToUser(p.To, eventStopTyping, typingNotice{From: from})
}

func (g *gateway) onDisconnect(c socketConn, reason string) {
	userID := socketUser(c)
	if userID == "" {
		return
	}

	removed := g.presence.Unregister(userID, c)
	metrics.OnlineUsers.Set(float64(g.presence.Len()))
	g.log.Info().
		Str("socket_id", c.ID()).
		Str("user_id", userID).
		Str("reason", reason).
		Bool("removed", removed).
		Msg("socket disconnected")

	// a stale socket closing after a reconnect must not announce the user offline
	if removed {
		g.presence.Broadcast(eventUserOffline, userID)
	}
}

// newSocketServer builds the socket.io server for g. Origins outside
// allowedOrigins are refused at the transport.
func newSocketServer(g *gateway, allowedOrigins []string) *socketio.Server {
	checkOrigin := func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(allowedOrigins, origin)
	}

	server := socketio.NewServer(&engineio.Options{
		Transports: []transport.Transport{
			&websocket.Transport{CheckOrigin: checkOrigin},
			&polling.Transport{CheckOrigin: checkOrigin},
		},
	})

	server.OnConnect("/", func(s socketio.Conn) error {
		return g.onConnect(s)
	})
	server.OnEvent("/", eventTyping, func(s socketio.Conn, p typingPayload) {
		g.onTyping(s, p)
	})
	server.OnEvent("/", eventStopTyping, func(s socketio.Conn, p typingPayload) {
		g.onStopTyping(s, p)
	})
	server.OnDisconnect("/", func(s socketio.Conn, reason string) {
		g.onDisconnect(s, reason)
	})
	server.OnError("/", func(s socketio.Conn, err error) {
		ev := g.log.Warn().Err(err)
		if s != nil {
			ev = ev.Str("socket_id", s.ID())
		}
		ev.Msg("socket error")
	})

	return server
}
