package data

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ConnectionsStore persists relationship records between user pairs. Every
// method is a single-document operation; nothing is cached.
type ConnectionsStore struct {
	coll *mongo.Collection
}

// NewConnectionsStore returns a ConnectionsStore using the given collection.
func NewConnectionsStore(coll *mongo.Collection) *ConnectionsStore {
	return &ConnectionsStore{coll: coll}
}

// Create inserts a pending connection from requester to recipient. If any
// record already relates the pair, in either direction, it returns ErrDuplicate.
func (s *ConnectionsStore) Create(ctx context.Context, requester, recipient bson.ObjectID) (*Connection, error) {
	now := time.Now().UTC()
	conn := &Connection{
		Requester: requester,
		Recipient: recipient,
		PairKey:   ParticipantsKey(requester.Hex(), recipient.Hex()),
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	res, err := s.coll.InsertOne(ctx, conn)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	conn.ID = res.InsertedID.(bson.ObjectID)
	return conn, nil
}

// FindBetween returns the record relating a and b regardless of role.
func (s *ConnectionsStore) FindBetween(ctx context.Context, a, b bson.ObjectID) (*Connection, error) {
	var conn Connection
	err := s.coll.FindOne(ctx, bson.M{"pair_key": ParticipantsKey(a.Hex(), b.Hex())}).Decode(&conn)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &conn, nil
}

// Accept atomically moves the pending record requester -> recipient to
// connected and returns it. ErrNotFound means there was no such pending record.
func (s *ConnectionsStore) Accept(ctx context.Context, requester, recipient bson.ObjectID) (*Connection, error) {
	now := time.Now().UTC()
	filter := bson.M{
		"requester": requester,
		"recipient": recipient,
		"status":    StatusPending,
	}
	update := bson.M{"$set": bson.M{
		"status":       StatusConnected,
		"connected_at": now,
		"updated_at":   now,
	}}

	var conn Connection
	err := s.coll.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&conn)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &conn, nil
}

// DeletePending removes the pending record requester -> recipient if it exists
// and reports how many records were removed.
func (s *ConnectionsStore) DeletePending(ctx context.Context, requester, recipient bson.ObjectID) (int64, error) {
	res, err := s.coll.DeleteOne(ctx, bson.M{
		"requester": requester,
		"recipient": recipient,
		"status":    StatusPending,
	})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// AreConnected reports whether a connected record relates a and b.
func (s *ConnectionsStore) AreConnected(ctx context.Context, a, b bson.ObjectID) (bool, error) {
	count, err := s.coll.CountDocuments(ctx, bson.M{
		"pair_key": ParticipantsKey(a.Hex(), b.Hex()),
		"status":   StatusConnected,
	}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListForUser returns every record in which user takes part, in any status.
func (s *ConnectionsStore) ListForUser(ctx context.Context, user bson.ObjectID) ([]*Connection, error) {
	return s.find(ctx, bson.M{"$or": bson.A{
		bson.M{"requester": user},
		bson.M{"recipient": user},
	}}, options.Find())
}

// ListConnected returns the connected records of user, most recent first.
func (s *ConnectionsStore) ListConnected(ctx context.Context, user bson.ObjectID) ([]*Connection, error) {
	return s.find(ctx, bson.M{
		"status": StatusConnected,
		"$or": bson.A{
			bson.M{"requester": user},
			bson.M{"recipient": user},
		},
	}, options.Find().SetSort(bson.D{{Key: "connected_at", Value: -1}}))
}

// ListPendingFor returns the pending requests addressed to recipient, oldest first.
func (s *ConnectionsStore) ListPendingFor(ctx context.Context, recipient bson.ObjectID) ([]*Connection, error) {
	return s.find(ctx, bson.M{
		"recipient": recipient,
		"status":    StatusPending,
	}, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
}

func (s *ConnectionsStore) find(ctx context.Context, filter any, opts *options.FindOptionsBuilder) ([]*Connection, error) {
	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	conns := []*Connection{}
	if err := cursor.All(ctx, &conns); err != nil {
		return nil, err
	}
	return conns, nil
}
