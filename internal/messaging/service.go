// Package messaging implements connection-gated direct messages: the send
// flow, conversation history and conversation lists.
package messaging

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/PaulBabatuyi/connectChat/internal/apperr"
	"github.com/PaulBabatuyi/connectChat/internal/data"
	"github.com/PaulBabatuyi/connectChat/internal/metrics"
)

// MaxMessageLength is the maximum message length in characters, after trimming.
const MaxMessageLength = 2000

// EventNewMessage is pushed to the receiver of a message.
const EventNewMessage = "new-message"

// Users resolves user ids.
type Users interface {
	UserExists(ctx context.Context, id bson.ObjectID) (bool, error)
	GetSummaries(ctx context.Context, ids []bson.ObjectID) (map[bson.ObjectID]data.UserSummary, error)
}

// Connections answers whether two users may talk.
type Connections interface {
	AreConnected(ctx context.Context, a, b bson.ObjectID) (bool, error)
}

// Directory stores one conversation per user pair.
type Directory interface {
	GetOrCreate(ctx context.Context, a, b bson.ObjectID) (*data.Conversation, error)
	GetByID(ctx context.Context, id bson.ObjectID) (*data.Conversation, error)
	ListForUser(ctx context.Context, user bson.ObjectID) ([]*data.Conversation, error)
	UpdateSummary(ctx context.Context, id bson.ObjectID, text string, at time.Time) error
}

// Log is the append-only message log.
type Log interface {
	Append(ctx context.Context, conversation, sender bson.ObjectID, text string, createdAt time.Time) (*data.Message, error)
	ListByConversation(ctx context.Context, conversation bson.ObjectID) ([]*data.Message, error)
}

// Notifier delivers an event to a user if they are reachable right now. It
// reports whether the event was handed to a live connection. Delivery is at
// most once; there is no retry or queue.
type Notifier interface {
	PushToUser(userID, event string, payload interface{}) bool
}

// MessageView is a message with its sender resolved for display.
type MessageView struct {
	ID           bson.ObjectID    `json:"_id"`
	Conversation bson.ObjectID    `json:"conversation"`
	Sender       data.UserSummary `json:"sender"`
	Text         string           `json:"text"`
	CreatedAt    time.Time        `json:"createdAt"`
}

// ConversationView is a conversation with its participants resolved.
type ConversationView struct {
	ID            bson.ObjectID      `json:"_id"`
	Participants  []data.UserSummary `json:"participants"`
	LastMessage   string             `json:"lastMessage,omitempty"`
	LastMessageAt *time.Time         `json:"lastMessageAt,omitempty"`
	CreatedAt     time.Time          `json:"createdAt"`
	UpdatedAt     time.Time          `json:"updatedAt"`
}

// Service orchestrates the connection store, directory, log and notifier.
type Service struct {
	users    Users
	conns    Connections
	dir      Directory
	log      Log
	notifier Notifier
	logger   zerolog.Logger
	now      func() time.Time
}

// NewService wires a Service. A nil notifier disables real-time push.
func NewService(users Users, conns Connections, dir Directory, log Log, notifier Notifier, logger zerolog.Logger) *Service {
	return &Service{
		users:    users,
		conns:    conns,
		dir:      dir,
		log:      log,
		notifier: notifier,
		logger:   logger.With().Str("component", "messaging").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// NormalizeText trims text and checks it is non-empty and within
// MaxMessageLength.
func NormalizeText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", apperr.ErrEmptyMessage
	}
	if utf8.RuneCountInString(text) > MaxMessageLength {
		return "", apperr.ErrMessageTooLong
	}
	return text, nil
}

// SendMessage delivers text from sender to the user identified by
// receiverHex. Every check runs before any write. Once the message is
// appended the send succeeds: the summary update and the push are best effort.
func (s *Service) SendMessage(ctx context.Context, sender bson.ObjectID, receiverHex, text string) (*MessageView, error) {
	text, err := NormalizeText(text)
	if err != nil {
		return nil, err
	}

	receiver, err := bson.ObjectIDFromHex(receiverHex)
	if err != nil {
		return nil, apperr.ErrInvalidTarget
	}
	if receiver == sender {
		return nil, apperr.ErrSelfMessage
	}
	exists, err := s.users.UserExists(ctx, receiver)
	if err != nil {
		return nil, apperr.Internal("failed to send message", err)
	}
	if !exists {
		return nil, apperr.ErrInvalidTarget
	}

	if err := s.requireConnected(ctx, sender, receiver); err != nil {
		return nil, err
	}

	conv, err := s.dir.GetOrCreate(ctx, sender, receiver)
	if err != nil {
		return nil, apperr.Internal("failed to send message", err)
	}

	msg, err := s.log.Append(ctx, conv.ID, sender, text, s.now())
	if err != nil {
		return nil, apperr.Internal("failed to send message", err)
	}
	metrics.MessagesSentTotal.Inc()

	if err := s.dir.UpdateSummary(ctx, conv.ID, msg.Text, msg.CreatedAt); err != nil {
		metrics.SummaryUpdateFailuresTotal.Inc()
		s.logger.Warn().Err(err).
			Str("conversation_id", conv.ID.Hex()).
			Str("message_id", msg.ID.Hex()).
			Msg("conversation summary update failed")
	}

	view := &MessageView{
		ID:           msg.ID,
		Conversation: msg.Conversation,
		Sender:       s.summaryOf(ctx, sender),
		Text:         msg.Text,
		CreatedAt:    msg.CreatedAt,
	}

	s.push(receiver.Hex(), EventNewMessage, view)
	return view, nil
}

func (s *Service) push(userID, event string, payload interface{}) {
	if s.notifier == nil {
		return
	}
	delivered := s.notifier.PushToUser(userID, event, payload)
	metrics.RecordPush(delivered)
	s.logger.Debug().Str("user_id", userID).Str("event", event).Bool("delivered", delivered).Msg("push")
}

func (s *Service) requireConnected(ctx context.Context, a, b bson.ObjectID) error {
	ok, err := s.conns.AreConnected(ctx, a, b)
	if err != nil {
		return apperr.Internal("failed to check connection", err)
	}
	if !ok {
		return apperr.ErrNotConnected
	}
	return nil
}

// summaryOf resolves one user for display. A lookup failure degrades to a
// summary carrying only the id.
func (s *Service) summaryOf(ctx context.Context, id bson.ObjectID) data.UserSummary {
	summaries, err := s.users.GetSummaries(ctx, []bson.ObjectID{id})
	if err != nil {
		s.logger.Warn().Err(err).Str("user_id", id.Hex()).Msg("user lookup failed")
	}
	if u, ok := summaries[id]; ok {
		return u
	}
	return data.UserSummary{ID: id}
}

// GetMessages returns the full history of a conversation, oldest first. Only
// participants may read it; a missing conversation is reported the same way.
func (s *Service) GetMessages(ctx context.Context, conversationHex string, caller bson.ObjectID) ([]MessageView, error) {
	convID, err := bson.ObjectIDFromHex(conversationHex)
	if err != nil {
		return nil, apperr.ErrInvalidConversation
	}

	conv, err := s.dir.GetByID(ctx, convID)
	if err != nil {
		if errors.Is(err, data.ErrNotFound) {
			return nil, apperr.ErrNotParticipant
		}
		return nil, apperr.Internal("failed to fetch messages", err)
	}
	if !conv.HasParticipant(caller) {
		return nil, apperr.ErrNotParticipant
	}

	msgs, err := s.log.ListByConversation(ctx, conv.ID)
	if err != nil {
		return nil, apperr.Internal("failed to fetch messages", err)
	}

	people, err := s.users.GetSummaries(ctx, conv.Participants)
	if err != nil {
		return nil, apperr.Internal("failed to fetch messages", err)
	}

	out := make([]MessageView, 0, len(msgs))
	for _, m := range msgs {
		sender, ok := people[m.Sender]
		if !ok {
			sender = data.UserSummary{ID: m.Sender}
		}
		out = append(out, MessageView{
			ID:           m.ID,
			Conversation: m.Conversation,
			Sender:       sender,
			Text:         m.Text,
			CreatedAt:    m.CreatedAt,
		})
	}
	return out, nil
}

// ListConversations returns the conversations of caller, most recently active
// first.
func (s *Service) ListConversations(ctx context.Context, caller bson.ObjectID) ([]ConversationView, error) {
	convs, err := s.dir.ListForUser(ctx, caller)
	if err != nil {
		return nil, apperr.Internal("failed to fetch conversations", err)
	}

	seen := map[bson.ObjectID]bool{}
	var ids []bson.ObjectID
	for _, c := range convs {
		for _, p := range c.Participants {
			if !seen[p] {
				seen[p] = true
				ids = append(ids, p)
			}
		}
	}
	people, err := s.users.GetSummaries(ctx, ids)
	if err != nil {
		return nil, apperr.Internal("failed to fetch conversations", err)
	}

	out := make([]ConversationView, 0, len(convs))
	for _, c := range convs {
		out = append(out, newConversationView(c, people))
	}
	return out, nil
}

// OpenConversation returns the conversation between caller and the user
// identified by otherHex, creating it if the two are connected.
func (s *Service) OpenConversation(ctx context.Context, caller bson.ObjectID, otherHex string) (*ConversationView, error) {
	other, err := bson.ObjectIDFromHex(otherHex)
	if err != nil {
		return nil, apperr.ErrInvalidTarget
	}
	if other == caller {
		return nil, apperr.ErrSelfMessage
	}

	exists, err := s.users.UserExists(ctx, other)
	if err != nil {
		return nil, apperr.Internal("failed to load conversation", err)
	}
	if !exists {
		return nil, apperr.ErrUserNotFound
	}
	if err := s.requireConnected(ctx, caller, other); err != nil {
		return nil, err
	}

	conv, err := s.dir.GetOrCreate(ctx, caller, other)
	if err != nil {
		return nil, apperr.Internal("failed to load conversation", err)
	}

	people, err := s.users.GetSummaries(ctx, conv.Participants)
	if err != nil {
		return nil, apperr.Internal("failed to load conversation", err)
	}
	view := newConversationView(conv, people)
	return &view, nil
}

func newConversationView(c *data.Conversation, people map[bson.ObjectID]data.UserSummary) ConversationView {
	participants := make([]data.UserSummary, 0, len(c.Participants))
	for _, p := range c.Participants {
		u, ok := people[p]
		if !ok {
			u = data.UserSummary{ID: p}
		}
		participants = append(participants, u)
	}
	return ConversationView{
		ID:            c.ID,
		Participants:  participants,
		LastMessage:   c.LastMessage,
		LastMessageAt: c.LastMessageAt,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}
