package data

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/PaulBabatuyi/connectChat/internal/db"
)

func setupDB(t *testing.T) *db.Client {
	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		t.Skip("MONGODB_URI not set; skipping integration test")
	}

	ctx := context.Background()
	c, err := db.New(ctx, uri, "connect_chat_data_test")
	if err != nil {
		t.Fatalf("db.New failed: %v", err)
	}

	// ensure clean collections in case previous runs left data
	_ = c.UsersCollection().Drop(ctx)
	_ = c.ConnectionsCollection().Drop(ctx)
	_ = c.ConversationsCollection().Drop(ctx)
	_ = c.MessagesCollection().Drop(ctx)

	if err := c.CreateIndexes(ctx); err != nil {
		t.Fatalf("CreateIndexes failed: %v", err)
	}

	t.Cleanup(func() { _ = c.Close(context.Background()) })
	return c
}

func TestUsersCreateAndGet(t *testing.T) {
	c := setupDB(t)
	users := NewUsersStore(c.UsersCollection())

	ctx := context.Background()
	email := time.Now().UTC().Format("20060102-150405") + "-Integration@Example.com"

	user, err := users.CreateUser(ctx, "  Ada  Lovelace ", email, "hashed-password")
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if user.Username != "Ada Lovelace" {
		t.Fatalf("expected normalized username, got %q", user.Username)
	}

	if _, err := users.CreateUser(ctx, "dup", email, "x"); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate for taken email, got %v", err)
	}

	ok, err := users.UserExists(ctx, user.ID)
	if err != nil || !ok {
		t.Fatalf("UserExists failed: ok=%v err=%v", ok, err)
	}
	ok, err = users.UserExists(ctx, bson.NewObjectID())
	if err != nil || ok {
		t.Fatalf("UserExists for unknown id: ok=%v err=%v", ok, err)
	}

	byLogin, err := users.GetUserByLogin(ctx, "Ada Lovelace")
	if err != nil || byLogin.ID != user.ID {
		t.Fatalf("GetUserByLogin by username failed: %v", err)
	}
	byEmail, err := users.GetUserByLogin(ctx, email)
	if err != nil || byEmail.ID != user.ID {
		t.Fatalf("GetUserByLogin by email failed: %v", err)
	}

	byAddr, err := users.GetUserByEmail(ctx, "  "+email)
	if err != nil || byAddr.ID != user.ID {
		t.Fatalf("GetUserByEmail failed: %v", err)
	}

	if _, err := users.GetUserByID(ctx, bson.NewObjectID()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	inst := "MIT"
	updated, err := users.UpdateProfile(ctx, user.ID, ProfileUpdate{Institution: &inst})
	if err != nil {
		t.Fatalf("UpdateProfile failed: %v", err)
	}
	if updated.Institution != "MIT" || updated.Username != "Ada Lovelace" {
		t.Fatalf("unexpected profile after update: %+v", updated)
	}
}

func TestUsersSummariesAndExclusion(t *testing.T) {
	c := setupDB(t)
	users := NewUsersStore(c.UsersCollection())
	ctx := context.Background()

	a, err := users.CreateUser(ctx, "alice", "alice@example.com", "h")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	b, err := users.CreateUser(ctx, "bob", "bob@example.com", "h")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	sums, err := users.GetSummaries(ctx, []bson.ObjectID{a.ID, b.ID, bson.NewObjectID()})
	if err != nil {
		t.Fatalf("GetSummaries: %v", err)
	}
	if len(sums) != 2 || sums[b.ID].Username != "bob" {
		t.Fatalf("unexpected summaries: %+v", sums)
	}

	rest, err := users.ListUsersExcept(ctx, []bson.ObjectID{a.ID})
	if err != nil {
		t.Fatalf("ListUsersExcept: %v", err)
	}
	if len(rest) != 1 || rest[0].ID != b.ID {
		t.Fatalf("expected only bob, got %+v", rest)
	}
}
