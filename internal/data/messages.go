package data

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MessagesStore is the append-only message log.
type MessagesStore struct {
	coll *mongo.Collection
}

// NewMessagesStore returns a MessagesStore using given collection.
func NewMessagesStore(coll *mongo.Collection) *MessagesStore {
	return &MessagesStore{coll: coll}
}

// Append inserts a message into conversation and returns the saved record.
// The _id is stamped here, before the write, so ids of one process follow
// the order of Append calls.
func (m *MessagesStore) Append(ctx context.Context, conversation, sender bson.ObjectID, text string, createdAt time.Time) (*Message, error) {
	msg := &Message{
		ID:           bson.NewObjectID(),
		Conversation: conversation,
		Sender:       sender,
		Text:         text,
		CreatedAt:    createdAt.UTC(),
	}

	if _, err := m.coll.InsertOne(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// ListByConversation returns the whole history of conversation, oldest first.
// Messages with the same created_at are ordered by _id, which follows the
// order of Append calls rather than the order the inserts landed in.
func (m *MessagesStore) ListByConversation(ctx context.Context, conversation bson.ObjectID) ([]*Message, error) {
	opts := options.Find().SetSort(bson.D{
		{Key: "created_at", Value: 1},
		{Key: "_id", Value: 1},
	})

	cursor, err := m.coll.Find(ctx, bson.M{"conversation": conversation}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	messages := []*Message{}
	if err = cursor.All(ctx, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// CountByConversation returns the number of messages in conversation.
func (m *MessagesStore) CountByConversation(ctx context.Context, conversation bson.ObjectID) (int64, error) {
	return m.coll.CountDocuments(ctx, bson.M{"conversation": conversation})
}
