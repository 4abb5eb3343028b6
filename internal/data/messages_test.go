package data

import (
	"context"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestMessagesAppendAndHistoryOrder(t *testing.T) {
	c := setupDB(t)
	msgs := NewMessagesStore(c.MessagesCollection())
	ctx := context.Background()

	conv := bson.NewObjectID()
	alice, bob := bson.NewObjectID(), bson.NewObjectID()

	// identical timestamps must still come back in insertion order
	now := time.Now()
	texts := []string{"hi bob", "hello alice", "how are you", "fine"}
	ids := make([]bson.ObjectID, len(texts))
	for i, text := range texts {
		sender := alice
		if i%2 == 1 {
			sender = bob
		}
		msg, err := msgs.Append(ctx, conv, sender, text, now)
		if err != nil {
			t.Fatalf("Append %d failed: %v", i, err)
		}
		if msg.ID.IsZero() {
			t.Fatalf("Append %d returned no id", i)
		}
		ids[i] = msg.ID
	}
	// another conversation's messages must not leak in
	if _, err := msgs.Append(ctx, bson.NewObjectID(), alice, "elsewhere", now); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	history, err := msgs.ListByConversation(ctx, conv)
	if err != nil {
		t.Fatalf("ListByConversation failed: %v", err)
	}
	if len(history) != len(texts) {
		t.Fatalf("expected %d messages, got %d", len(texts), len(history))
	}
	for i, m := range history {
		if m.Text != texts[i] {
			t.Fatalf("message %d = %q, want %q", i, m.Text, texts[i])
		}
		if m.ID != ids[i] {
			t.Fatalf("message %d has id %s, want %s", i, m.ID.Hex(), ids[i].Hex())
		}
		if i > 0 && m.CreatedAt.Before(history[i-1].CreatedAt) {
			t.Fatalf("history not in non-decreasing time order at %d", i)
		}
	}

	n, err := msgs.CountByConversation(ctx, conv)
	if err != nil || n != int64(len(texts)) {
		t.Fatalf("CountByConversation = %d, %v", n, err)
	}
}
