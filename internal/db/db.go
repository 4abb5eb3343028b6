// Package db manages MongoDB connections, collections and indexes.
package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// DefaultDatabase is used when no database name is configured.
const DefaultDatabase = "connect_chat"

// Client wraps mongo.Client and exposes collections.
type Client struct {
	client *mongo.Client
	db     *mongo.Database
}

// New connects to MongoDB, pings the primary and returns a Client bound to database.
func New(ctx context.Context, mongoURI, database string) (*Client, error) {
	opts := options.Client().
		ApplyURI(mongoURI).
		SetConnectTimeout(10 * time.Second)

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	if database == "" {
		database = DefaultDatabase
	}

	return &Client{
		client: client,
		db:     client.Database(database),
	}, nil
}

// UsersCollection returns the users collection.
func (c *Client) UsersCollection() *mongo.Collection {
	return c.db.Collection("users")
}

// ConnectionsCollection returns the connections collection.
func (c *Client) ConnectionsCollection() *mongo.Collection {
	return c.db.Collection("connections")
}

// ConversationsCollection returns the conversations collection.
func (c *Client) ConversationsCollection() *mongo.Collection {
	return c.db.Collection("conversations")
}

// MessagesCollection returns the messages collection.
func (c *Client) MessagesCollection() *mongo.Collection {
	return c.db.Collection("messages")
}

// Ping checks that the primary is reachable. Used by health checks.
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx, readpref.Primary())
}

// Close disconnects from MongoDB.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// CreateIndexes creates the indexes the stores rely on. The unique indexes on
// connections.pair_key and conversations.participants_key are what make
// request creation and conversation get-or-create safe under concurrency.
func (c *Client) CreateIndexes(ctx context.Context) error {
	_, err := c.UsersCollection().Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("email_unique"),
		},
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetName("username"),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create users indexes: %w", err)
	}

	_, err = c.ConnectionsCollection().Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			// one record per unordered pair, whichever side asked first
			Keys:    bson.D{{Key: "pair_key", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("pair_key_unique"),
		},
		{
			Keys:    bson.D{{Key: "requester", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index().SetName("requester_status"),
		},
		{
			Keys:    bson.D{{Key: "recipient", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index().SetName("recipient_status"),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create connections indexes: %w", err)
	}

	_, err = c.ConversationsCollection().Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "participants_key", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("participants_key_unique"),
		},
		{
			Keys:    bson.D{{Key: "participants", Value: 1}, {Key: "last_message_at", Value: -1}},
			Options: options.Index().SetName("participants_activity"),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create conversations indexes: %w", err)
	}

	_, err = c.MessagesCollection().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "conversation", Value: 1}, {Key: "created_at", Value: 1}, {Key: "_id", Value: 1}},
		Options: options.Index().SetName("conversation_history"),
	})
	if err != nil {
		return fmt.Errorf("failed to create messages index: %w", err)
	}

	return nil
}
