package data

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestConversationGetOrCreateIsOrderIndependent(t *testing.T) {
	c := setupDB(t)
	store := NewConversationsStore(c.ConversationsCollection())
	ctx := context.Background()

	alice, bob := bson.NewObjectID(), bson.NewObjectID()

	ab, err := store.GetOrCreate(ctx, alice, bob)
	if err != nil {
		t.Fatalf("GetOrCreate(a,b) failed: %v", err)
	}
	ba, err := store.GetOrCreate(ctx, bob, alice)
	if err != nil {
		t.Fatalf("GetOrCreate(b,a) failed: %v", err)
	}
	if ab.ID != ba.ID {
		t.Fatalf("expected same conversation, got %s and %s", ab.ID.Hex(), ba.ID.Hex())
	}
	if ab.ParticipantsKey != ParticipantsKey(alice.Hex(), bob.Hex()) {
		t.Fatalf("unexpected key %q", ab.ParticipantsKey)
	}
	if !ab.HasParticipant(alice) || !ab.HasParticipant(bob) || len(ab.Participants) != 2 {
		t.Fatalf("unexpected participants %v", ab.Participants)
	}
	if ab.CreatedAt.IsZero() {
		t.Fatal("created_at not set on insert")
	}

	byKey, err := store.GetByKey(ctx, ParticipantsKey(bob.Hex(), alice.Hex()))
	if err != nil || byKey.ID != ab.ID {
		t.Fatalf("GetByKey failed: %v", err)
	}
}

func TestConversationGetOrCreateConcurrent(t *testing.T) {
	c := setupDB(t)
	store := NewConversationsStore(c.ConversationsCollection())
	ctx := context.Background()

	alice, bob := bson.NewObjectID(), bson.NewObjectID()

	const n = 16
	ids := make([]bson.ObjectID, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, b := alice, bob
			if i%2 == 1 {
				a, b = bob, alice
			}
			conv, err := store.GetOrCreate(ctx, a, b)
			errs[i] = err
			if err == nil {
				ids[i] = conv.ID
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("call %d failed: %v", i, errs[i])
		}
		if ids[i] != ids[0] {
			t.Fatalf("call %d returned %s, want %s", i, ids[i].Hex(), ids[0].Hex())
		}
	}

	count, err := store.Count(ctx, ParticipantsKey(alice.Hex(), bob.Hex()))
	if err != nil || count != 1 {
		t.Fatalf("expected exactly one conversation, got %d (%v)", count, err)
	}
}

func TestConversationListOrdersByActivity(t *testing.T) {
	c := setupDB(t)
	store := NewConversationsStore(c.ConversationsCollection())
	ctx := context.Background()

	me := bson.NewObjectID()
	older, err := store.GetOrCreate(ctx, me, bson.NewObjectID())
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	empty, err := store.GetOrCreate(ctx, me, bson.NewObjectID())
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if _, err := store.GetOrCreate(ctx, bson.NewObjectID(), bson.NewObjectID()); err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}

	if err := store.UpdateSummary(ctx, older.ID, "latest", time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("UpdateSummary: %v", err)
	}

	list, err := store.ListForUser(ctx, me)
	if err != nil {
		t.Fatalf("ListForUser: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 conversations, got %d", len(list))
	}
	if list[0].ID != older.ID || list[0].LastMessage != "latest" {
		t.Fatalf("expected most recently active first, got %+v", list[0])
	}
	if list[1].ID != empty.ID || list[1].LastMessageAt != nil {
		t.Fatalf("expected empty conversation second, got %+v", list[1])
	}

	if err := store.UpdateSummary(ctx, bson.NewObjectID(), "x", time.Now()); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound for unknown conversation, got %v", err)
	}
}
