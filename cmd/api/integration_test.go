package main

import (
	"context"
	"net/http"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/PaulBabatuyi/connectChat/internal/auth"
	"github.com/PaulBabatuyi/connectChat/internal/connection"
	"github.com/PaulBabatuyi/connectChat/internal/data"
	"github.com/PaulBabatuyi/connectChat/internal/db"
	"github.com/PaulBabatuyi/connectChat/internal/health"
	"github.com/PaulBabatuyi/connectChat/internal/messaging"
	"github.com/PaulBabatuyi/connectChat/internal/presence"
)

func TestIntegrationConcurrentFirstSends(t *testing.T) {
	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		t.Skip("MONGODB_URI not set; skipping integration test")
	}

	ctx := context.Background()
	dbClient, err := db.New(ctx, uri, "connect_chat_api_test")
	require.NoError(t, err)
	t.Cleanup(func() {
		for _, c := range []*mongo.Collection{
			dbClient.UsersCollection(), dbClient.ConnectionsCollection(),
			dbClient.ConversationsCollection(), dbClient.MessagesCollection(),
		} {
			_ = c.Drop(context.Background())
		}
		_ = dbClient.Close(context.Background())
	})
	require.NoError(t, dbClient.CreateIndexes(ctx))

	users := data.NewUsersStore(dbClient.UsersCollection())
	conns := data.NewConnectionsStore(dbClient.ConnectionsCollection())
	convs := data.NewConversationsStore(dbClient.ConversationsCollection())
	msgs := data.NewMessagesStore(dbClient.MessagesCollection())
	registry := presence.NewRegistry(zerolog.Nop())

	gin.SetMode(gin.TestMode)
	srv := &Server{
		users:       users,
		jwt:         auth.NewJWTManager("test-secret", time.Hour),
		connections: connection.NewService(users, conns, convs, zerolog.Nop()),
		messaging:   messaging.NewService(users, conns, convs, msgs, registry, zerolog.Nop()),
		presence:    registry,
		health:      health.NewServer(dbClient, time.Minute, zerolog.Nop()),
		log:         zerolog.Nop(),
	}
	app := &testApp{srv: srv, router: srv.routes(nil), presence: registry}

	suffix := bson.NewObjectID().Hex()[16:]
	a := app.register(t, "a"+suffix)
	b := app.register(t, "b"+suffix)

	w := app.do(t, http.MethodPost, "/api/connections/connect/"+b.id, a.token, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = app.do(t, http.MethodPost, "/api/connections/accept/"+a.id, b.token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var wg sync.WaitGroup
	codes := make([]int, 2)
	for i, pair := range [][2]account{{a, b}, {b, a}} {
		wg.Add(1)
		go func(i int, from, to account) {
			defer wg.Done()
			codes[i] = app.do(t, http.MethodPost, "/api/messages/send/"+to.id, from.token, map[string]string{"text": "first from " + from.id}).Code
		}(i, pair[0], pair[1])
	}
	wg.Wait()
	assert.Equal(t, []int{http.StatusCreated, http.StatusCreated}, codes)

	n, err := convs.Count(ctx, data.ParticipantsKey(a.id, b.id))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	w = app.do(t, http.MethodGet, "/api/messages", a.token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[[]map[string]interface{}](t, w)
	require.Len(t, list, 1)

	w = app.do(t, http.MethodGet, "/api/messages/"+list[0]["_id"].(string), b.token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]map[string]interface{}](t, w), 2)

	w = app.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
