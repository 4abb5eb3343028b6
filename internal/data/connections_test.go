package data

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestConnectionsLifecycle(t *testing.T) {
	c := setupDB(t)
	store := NewConnectionsStore(c.ConnectionsCollection())
	ctx := context.Background()

	alice, bob := bson.NewObjectID(), bson.NewObjectID()

	conn, err := store.Create(ctx, alice, bob)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if conn.Status != StatusPending || conn.ConnectedAt != nil {
		t.Fatalf("new connection should be pending: %+v", conn)
	}

	// the reverse direction is the same pair
	if _, err := store.Create(ctx, bob, alice); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate for reverse request, got %v", err)
	}

	found, err := store.FindBetween(ctx, bob, alice)
	if err != nil || found.ID != conn.ID {
		t.Fatalf("FindBetween failed: %v", err)
	}

	ok, err := store.AreConnected(ctx, alice, bob)
	if err != nil || ok {
		t.Fatalf("pending pair reported connected: %v %v", ok, err)
	}

	// only the recipient can accept
	if _, err := store.Accept(ctx, bob, alice); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound accepting from wrong side, got %v", err)
	}

	pending, err := store.ListPendingFor(ctx, bob)
	if err != nil || len(pending) != 1 {
		t.Fatalf("ListPendingFor = %d, %v", len(pending), err)
	}

	accepted, err := store.Accept(ctx, alice, bob)
	if err != nil {
		t.Fatalf("Accept failed: %v", err)
	}
	if accepted.Status != StatusConnected || accepted.ConnectedAt == nil {
		t.Fatalf("accepted connection not stamped: %+v", accepted)
	}

	for _, pair := range [][2]bson.ObjectID{{alice, bob}, {bob, alice}} {
		ok, err := store.AreConnected(ctx, pair[0], pair[1])
		if err != nil || !ok {
			t.Fatalf("AreConnected(%v) = %v, %v", pair, ok, err)
		}
	}

	// accepting twice finds nothing pending
	if _, err := store.Accept(ctx, alice, bob); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second accept, got %v", err)
	}

	connected, err := store.ListConnected(ctx, bob)
	if err != nil || len(connected) != 1 || connected[0].Other(bob) != alice {
		t.Fatalf("ListConnected unexpected: %v %v", connected, err)
	}
}

func TestConnectionsDeletePendingIsIdempotent(t *testing.T) {
	c := setupDB(t)
	store := NewConnectionsStore(c.ConnectionsCollection())
	ctx := context.Background()

	alice, bob := bson.NewObjectID(), bson.NewObjectID()
	if _, err := store.Create(ctx, alice, bob); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	n, err := store.DeletePending(ctx, alice, bob)
	if err != nil || n != 1 {
		t.Fatalf("DeletePending = %d, %v", n, err)
	}
	n, err = store.DeletePending(ctx, alice, bob)
	if err != nil || n != 0 {
		t.Fatalf("second DeletePending = %d, %v", n, err)
	}

	if _, err := store.FindBetween(ctx, alice, bob); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected record gone, got %v", err)
	}
}

func TestConnectionsConcurrentCrossRequests(t *testing.T) {
	c := setupDB(t)
	store := NewConnectionsStore(c.ConnectionsCollection())
	ctx := context.Background()

	alice, bob := bson.NewObjectID(), bson.NewObjectID()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, pair := range [][2]bson.ObjectID{{alice, bob}, {bob, alice}} {
		wg.Add(1)
		go func(i int, from, to bson.ObjectID) {
			defer wg.Done()
			_, errs[i] = store.Create(ctx, from, to)
		}(i, pair[0], pair[1])
	}
	wg.Wait()

	created := 0
	for _, err := range errs {
		switch {
		case err == nil:
			created++
		case errors.Is(err, ErrDuplicate):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if created != 1 {
		t.Fatalf("expected exactly one record, created %d", created)
	}

	all, err := store.ListForUser(ctx, alice)
	if err != nil || len(all) != 1 {
		t.Fatalf("ListForUser = %d, %v", len(all), err)
	}
}
