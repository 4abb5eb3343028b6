package main

import (
	"net/http"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/PaulBabatuyi/connectChat/internal/auth"
	"github.com/PaulBabatuyi/connectChat/internal/middleware"
	"github.com/PaulBabatuyi/connectChat/internal/presence"
)

type sentEvent struct {
	name    string
	payload interface{}
}

type fakeSocket struct {
	id     string
	url    url.URL
	header http.Header

	mu     sync.Mutex
	ctx    interface{}
	events []sentEvent
}

func newFakeSocket(id, token string) *fakeSocket {
	u := url.URL{Path: "/socket.io/"}
	if token != "" {
		u.RawQuery = url.Values{"token": {token}}.Encode()
	}
	return &fakeSocket{id: id, url: u, header: http.Header{}}
}

func (f *fakeSocket) ID() string                { return f.id }
func (f *fakeSocket) URL() url.URL              { return f.url }
func (f *fakeSocket) RemoteHeader() http.Header { return f.header }

func (f *fakeSocket) Context() interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ctx
}

func (f *fakeSocket) SetContext(v interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ctx = v
}

func (f *fakeSocket) Emit(event string, args ...interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var payload interface{}
	if len(args) > 0 {
		payload = args[0]
	}
	f.events = append(f.events, sentEvent{name: event, payload: payload})
}

func (f *fakeSocket) emitted(event string) []interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []interface{}
	for _, e := range f.events {
		if e.name == event {
			out = append(out, e.payload)
		}
	}
	return out
}

type gatewayFixture struct {
	gw       *gateway
	jwt      *auth.JWTManager
	registry *presence.Registry
}

func newGatewayFixture(t *testing.T) *gatewayFixture {
	t.Helper()
	jwtMgr := auth.NewJWTManager("test-secret", time.Hour)
	registry := presence.NewRegistry(zerolog.Nop())
	typing := middleware.NewLimiterStore(1, 1, time.Minute)
	t.Cleanup(typing.Stop)
	return &gatewayFixture{
		gw:       &gateway{jwt: jwtMgr, presence: registry, typing: typing, log: zerolog.Nop()},
		jwt:      jwtMgr,
		registry: registry,
	}
}

// connect opens an authenticated socket for a new user.
func (f *gatewayFixture) connect(t *testing.T, socketID string) (string, *fakeSocket) {
	t.Helper()
	id := bson.NewObjectID()
	token, _, err := f.jwt.GenerateToken(id, id.Hex()+"@example.com")
	require.NoError(t, err)
	s := newFakeSocket(socketID, token)
	require.NoError(t, f.gw.onConnect(s))
	return id.Hex(), s
}

func TestSocketHandshake(t *testing.T) {
	f := newGatewayFixture(t)

	assert.ErrorIs(t, f.gw.onConnect(newFakeSocket("s0", "")), errAuthRequired)
	assert.ErrorIs(t, f.gw.onConnect(newFakeSocket("s0", "garbage")), errInvalidToken)
	assert.Empty(t, f.registry.Online())

	// bearer header works too
	id := bson.NewObjectID()
	token, _, err := f.jwt.GenerateToken(id, "h@example.com")
	require.NoError(t, err)
	s := newFakeSocket("s1", "")
	s.header.Set("Authorization", "Bearer "+token)
	require.NoError(t, f.gw.onConnect(s))
	assert.True(t, f.registry.IsOnline(id.Hex()))
	assert.Equal(t, id.Hex(), s.Context())
}

func TestSocketPresenceAnnouncements(t *testing.T) {
	f := newGatewayFixture(t)

	alice, aliceSock := f.connect(t, "a1")
	bob, bobSock := f.connect(t, "b1")

	assert.Equal(t, []interface{}{alice, bob}, aliceSock.emitted(eventUserOnline))
	snapshot := bobSock.emitted(eventOnlineUsers)
	require.Len(t, snapshot, 1)
	assert.ElementsMatch(t, []string{alice, bob}, snapshot[0])

	f.gw.onDisconnect(bobSock, "transport close")
	assert.Equal(t, []interface{}{bob}, aliceSock.emitted(eventUserOffline))
	assert.False(t, f.registry.IsOnline(bob))
}

func TestSocketStaleDisconnect(t *testing.T) {
	f := newGatewayFixture(t)
	_, watcher := f.connect(t, "w1")

	id := bson.NewObjectID()
	token, _, err := f.jwt.GenerateToken(id, "r@example.com")
	require.NoError(t, err)
	old := newFakeSocket("old", token)
	fresh := newFakeSocket("new", token)
	require.NoError(t, f.gw.onConnect(old))
	require.NoError(t, f.gw.onConnect(fresh))

	// the old session closing late must not evict or announce
	f.gw.onDisconnect(old, "ping timeout")
	assert.True(t, f.registry.IsOnline(id.Hex()))
	assert.Empty(t, watcher.emitted(eventUserOffline))

	f.registry.PushToUser(id.Hex(), "probe", 1)
	assert.Len(t, fresh.emitted("probe"), 1)
	assert.Empty(t, old.emitted("probe"))

	f.gw.onDisconnect(fresh, "client namespace disconnect")
	assert.Equal(t, []interface{}{id.Hex()}, watcher.emitted(eventUserOffline))
}

func TestSocketTyping(t *testing.T) {
	f := newGatewayFixture(t)
	alice, aliceSock := f.connect(t, "a1")
	bob, bobSock := f.connect(t, "b1")

	f.gw.onTyping(aliceSock, typingPayload{To: bob})
	// throttled
	f.gw.onTyping(aliceSock, typingPayload{To: bob})
	f.gw.onStopTyping(aliceSock, typingPayload{To: bob})

	assert.Equal(t, []interface{}{typingNotice{From: alice}}, bobSock.emitted(eventTyping))
	assert.Equal(t, []interface{}{typingNotice{From: alice}}, bobSock.emitted(eventStopTyping))

	// offline targets and self are ignored
	f.gw.onTyping(bobSock, typingPayload{To: bson.NewObjectID().Hex()})
	f.gw.onTyping(bobSock, typingPayload{To: bob})
	assert.Empty(t, bobSock.emitted(eventTyping)[1:])
	assert.Empty(t, aliceSock.emitted(eventTyping))
}

func TestSocketEventsBeforeAuthAreIgnored(t *testing.T) {
	f := newGatewayFixture(t)
	_, bobSock := f.connect(t, "b1")

	anon := newFakeSocket("x", "")
	f.gw.onTyping(anon, typingPayload{To: "anyone"})
	f.gw.onDisconnect(anon, "transport close")
	assert.Empty(t, bobSock.emitted(eventTyping))
	assert.Empty(t, bobSock.emitted(eventUserOffline))
}
