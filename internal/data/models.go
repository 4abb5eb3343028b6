package data

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Connection statuses.
const (
	StatusPending   = "pending"
	StatusConnected = "connected"
)

// User maps to the users collection. Relationships live in the connections
// collection only; there is no embedded connection list.
type User struct {
	ID           bson.ObjectID `bson:"_id,omitempty" json:"_id"`
	Username     string        `bson:"username" json:"username"`
	Email        string        `bson:"email" json:"email"`
	Password     string        `bson:"password" json:"-"`
	ProfileImage string        `bson:"profile_image" json:"profileImage"`
	Institution  string        `bson:"institution" json:"institution"`
	CreatedAt    time.Time     `bson:"created_at" json:"createdAt"`
	UpdatedAt    time.Time     `bson:"updated_at" json:"updatedAt"`
}

// UserSummary is the public projection of a user embedded in other payloads.
type UserSummary struct {
	ID           bson.ObjectID `bson:"_id" json:"_id"`
	Username     string        `bson:"username" json:"username"`
	ProfileImage string        `bson:"profile_image" json:"profileImage"`
	Institution  string        `bson:"institution,omitempty" json:"institution,omitempty"`
}

// Summary returns the public projection of u.
func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Username: u.Username, ProfileImage: u.ProfileImage, Institution: u.Institution}
}

// Connection maps to the connections collection. PairKey is the canonical key
// of {Requester, Recipient} and is unique, so a pair has at most one record.
type Connection struct {
	ID          bson.ObjectID `bson:"_id,omitempty" json:"_id"`
	Requester   bson.ObjectID `bson:"requester" json:"requester"`
	Recipient   bson.ObjectID `bson:"recipient" json:"recipient"`
	PairKey     string        `bson:"pair_key" json:"-"`
	Status      string        `bson:"status" json:"status"`
	ConnectedAt *time.Time    `bson:"connected_at,omitempty" json:"connectedAt,omitempty"`
	CreatedAt   time.Time     `bson:"created_at" json:"createdAt"`
	UpdatedAt   time.Time     `bson:"updated_at" json:"updatedAt"`
}

// Other returns the id on the opposite side of the connection from me.
func (c *Connection) Other(me bson.ObjectID) bson.ObjectID {
	if c.Requester == me {
		return c.Recipient
	}
	return c.Requester
}

// Conversation maps to the conversations collection.
type Conversation struct {
	ID              bson.ObjectID   `bson:"_id,omitempty" json:"_id"`
	Participants    []bson.ObjectID `bson:"participants" json:"participants"`
	ParticipantsKey string          `bson:"participants_key" json:"participantsKey"`
	LastMessage     string          `bson:"last_message,omitempty" json:"lastMessage,omitempty"`
	LastMessageAt   *time.Time      `bson:"last_message_at,omitempty" json:"lastMessageAt,omitempty"`
	CreatedAt       time.Time       `bson:"created_at" json:"createdAt"`
	UpdatedAt       time.Time       `bson:"updated_at" json:"updatedAt"`
}

// HasParticipant reports whether id takes part in the conversation.
func (c *Conversation) HasParticipant(id bson.ObjectID) bool {
	for _, p := range c.Participants {
		if p == id {
			return true
		}
	}
	return false
}

// ActivityAt is the ordering key for conversation lists: the last message
// time, or the creation time for a conversation without messages.
func (c *Conversation) ActivityAt() time.Time {
	if c.LastMessageAt != nil {
		return *c.LastMessageAt
	}
	return c.CreatedAt
}

// Message maps to the messages collection.
type Message struct {
	ID           bson.ObjectID `bson:"_id,omitempty" json:"_id"`
	Conversation bson.ObjectID `bson:"conversation" json:"conversation"`
	Sender       bson.ObjectID `bson:"sender" json:"-"`
	Text         string        `bson:"text" json:"text"`
	CreatedAt    time.Time     `bson:"created_at" json:"createdAt"`
}
