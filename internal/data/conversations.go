package data

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ConversationsStore is the conversation directory: one document per
// unordered user pair, keyed by the unique participants_key.
type ConversationsStore struct {
	coll *mongo.Collection
}

// NewConversationsStore returns a ConversationsStore using the given collection.
func NewConversationsStore(coll *mongo.Collection) *ConversationsStore {
	return &ConversationsStore{coll: coll}
}

// GetOrCreate returns the conversation between a and b, creating it if needed.
// The upsert is keyed on participants_key and only sets fields on insert, so
// concurrent callers for the same pair all end up with the same document. If
// two upserts race on the unique index, the loser re-reads the winner.
// The directory does not check whether a and b may talk; callers do.
func (s *ConversationsStore) GetOrCreate(ctx context.Context, a, b bson.ObjectID) (*Conversation, error) {
	key := ParticipantsKey(a.Hex(), b.Hex())
	participants := []bson.ObjectID{a, b}
	if b.Hex() < a.Hex() {
		participants = []bson.ObjectID{b, a}
	}
	now := time.Now().UTC()

	filter := bson.M{"participants_key": key}
	update := bson.M{"$setOnInsert": bson.M{
		"participants": participants,
		"created_at":   now,
		"updated_at":   now,
	}}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var conv Conversation
	err := s.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&conv)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return s.findOne(ctx, filter)
		}
		return nil, err
	}
	return &conv, nil
}

// GetByID returns the conversation with the given id.
func (s *ConversationsStore) GetByID(ctx context.Context, id bson.ObjectID) (*Conversation, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

// GetByKey returns the conversation for a canonical participants key.
func (s *ConversationsStore) GetByKey(ctx context.Context, key string) (*Conversation, error) {
	return s.findOne(ctx, bson.M{"participants_key": key})
}

func (s *ConversationsStore) findOne(ctx context.Context, filter any) (*Conversation, error) {
	var conv Conversation
	if err := s.coll.FindOne(ctx, filter).Decode(&conv); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &conv, nil
}

// ListForUser returns the conversations user takes part in, most recently
// active first. A conversation without messages is ordered by its creation time.
func (s *ConversationsStore) ListForUser(ctx context.Context, user bson.ObjectID) ([]*Conversation, error) {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.D{{Key: "participants", Value: user}}}},
		bson.D{{Key: "$addFields", Value: bson.D{
			{Key: "activity_at", Value: bson.D{{Key: "$ifNull", Value: bson.A{"$last_message_at", "$created_at"}}}},
		}}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "activity_at", Value: -1}, {Key: "_id", Value: -1}}}},
		bson.D{{Key: "$project", Value: bson.D{{Key: "activity_at", Value: 0}}}},
	}

	cursor, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	convs := []*Conversation{}
	if err := cursor.All(ctx, &convs); err != nil {
		return nil, err
	}
	return convs, nil
}

// UpdateSummary records text as the conversation's last message. Last write
// wins; the summary is a cache and never the source of truth for history.
func (s *ConversationsStore) UpdateSummary(ctx context.Context, id bson.ObjectID, text string, at time.Time) error {
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"last_message":    text,
		"last_message_at": at,
		"updated_at":      at,
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Count returns how many conversations exist for key. Used to verify the
// one-conversation-per-pair guarantee.
func (s *ConversationsStore) Count(ctx context.Context, key string) (int64, error) {
	return s.coll.CountDocuments(ctx, bson.M{"participants_key": key})
}
