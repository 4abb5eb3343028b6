// Package datatest provides in-memory implementations of the data stores for
// unit tests. They mirror the unique-index and ordering behaviour of the
// MongoDB stores.
package datatest

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/PaulBabatuyi/connectChat/internal/data"
	"github.com/PaulBabatuyi/connectChat/internal/normalize"
)

// Users is an in-memory users store.
type Users struct {
	mu    sync.Mutex
	users map[bson.ObjectID]*data.User
	Err   error
}

// NewUsers returns an empty Users store.
func NewUsers() *Users {
	return &Users{users: map[bson.ObjectID]*data.User{}}
}

// Add stores a user with the given username and returns it.
func (u *Users) Add(username string) *data.User {
	user, _ := u.CreateUser(context.Background(), username, username+"@example.com", "hash")
	return user
}

func (u *Users) CreateUser(_ context.Context, username, email, hashedPassword string) (*data.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.Err != nil {
		return nil, u.Err
	}
	email = normalize.Email(email)
	for _, existing := range u.users {
		if existing.Email == email {
			return nil, data.ErrDuplicate
		}
	}
	now := time.Now().UTC()
	user := &data.User{
		ID:        bson.NewObjectID(),
		Username:  normalize.Username(username),
		Email:     email,
		Password:  hashedPassword,
		CreatedAt: now,
		UpdatedAt: now,
	}
	u.users[user.ID] = user
	cp := *user
	return &cp, nil
}

func (u *Users) GetUserByLogin(_ context.Context, identifier string) (*data.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, user := range u.users {
		if user.Email == normalize.Email(identifier) || user.Username == normalize.Username(identifier) {
			cp := *user
			return &cp, nil
		}
	}
	return nil, data.ErrNotFound
}

func (u *Users) GetUserByID(_ context.Context, id bson.ObjectID) (*data.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.Err != nil {
		return nil, u.Err
	}
	user, ok := u.users[id]
	if !ok {
		return nil, data.ErrNotFound
	}
	cp := *user
	return &cp, nil
}

func (u *Users) UserExists(_ context.Context, id bson.ObjectID) (bool, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.Err != nil {
		return false, u.Err
	}
	_, ok := u.users[id]
	return ok, nil
}

func (u *Users) GetSummaries(_ context.Context, ids []bson.ObjectID) (map[bson.ObjectID]data.UserSummary, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.Err != nil {
		return nil, u.Err
	}
	out := make(map[bson.ObjectID]data.UserSummary, len(ids))
	for _, id := range ids {
		if user, ok := u.users[id]; ok {
			out[id] = user.Summary()
		}
	}
	return out, nil
}

func (u *Users) ListUsersExcept(_ context.Context, exclude []bson.ObjectID) ([]data.UserSummary, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.Err != nil {
		return nil, u.Err
	}
	skip := make(map[bson.ObjectID]bool, len(exclude))
	for _, id := range exclude {
		skip[id] = true
	}
	out := []data.UserSummary{}
	for id, user := range u.users {
		if !skip[id] {
			out = append(out, user.Summary())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (u *Users) UpdateProfile(_ context.Context, id bson.ObjectID, upd data.ProfileUpdate) (*data.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	user, ok := u.users[id]
	if !ok {
		return nil, data.ErrNotFound
	}
	if upd.Username != nil {
		user.Username = normalize.Username(*upd.Username)
	}
	if upd.Institution != nil {
		user.Institution = *upd.Institution
	}
	if upd.ProfileImage != nil {
		user.ProfileImage = *upd.ProfileImage
	}
	user.UpdatedAt = time.Now().UTC()
	cp := *user
	return &cp, nil
}

// Connections is an in-memory connections store keyed by pair key.
type Connections struct {
	mu    sync.Mutex
	byKey map[string]*data.Connection
	Err   error
}

// NewConnections returns an empty Connections store.
func NewConnections() *Connections {
	return &Connections{byKey: map[string]*data.Connection{}}
}

// Connect stores a connected record between a and b.
func (c *Connections) Connect(a, b bson.ObjectID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now().UTC()
	key := data.ParticipantsKey(a.Hex(), b.Hex())
	c.byKey[key] = &data.Connection{
		ID: bson.NewObjectID(), Requester: a, Recipient: b, PairKey: key,
		Status: data.StatusConnected, ConnectedAt: &now, CreatedAt: now, UpdatedAt: now,
	}
}

func (c *Connections) Create(_ context.Context, requester, recipient bson.ObjectID) (*data.Connection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return nil, c.Err
	}
	key := data.ParticipantsKey(requester.Hex(), recipient.Hex())
	if _, ok := c.byKey[key]; ok {
		return nil, data.ErrDuplicate
	}
	now := time.Now().UTC()
	conn := &data.Connection{
		ID: bson.NewObjectID(), Requester: requester, Recipient: recipient, PairKey: key,
		Status: data.StatusPending, CreatedAt: now, UpdatedAt: now,
	}
	c.byKey[key] = conn
	cp := *conn
	return &cp, nil
}

func (c *Connections) FindBetween(_ context.Context, a, b bson.ObjectID) (*data.Connection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	conn, ok := c.byKey[data.ParticipantsKey(a.Hex(), b.Hex())]
	if !ok {
		return nil, data.ErrNotFound
	}
	cp := *conn
	return &cp, nil
}

func (c *Connections) Accept(_ context.Context, requester, recipient bson.ObjectID) (*data.Connection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return nil, c.Err
	}
	conn, ok := c.byKey[data.ParticipantsKey(requester.Hex(), recipient.Hex())]
	if !ok || conn.Status != data.StatusPending || conn.Requester != requester {
		return nil, data.ErrNotFound
	}
	now := time.Now().UTC()
	conn.Status = data.StatusConnected
	conn.ConnectedAt = &now
	conn.UpdatedAt = now
	cp := *conn
	return &cp, nil
}

func (c *Connections) DeletePending(_ context.Context, requester, recipient bson.ObjectID) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return 0, c.Err
	}
	key := data.ParticipantsKey(requester.Hex(), recipient.Hex())
	conn, ok := c.byKey[key]
	if !ok || conn.Status != data.StatusPending || conn.Requester != requester {
		return 0, nil
	}
	delete(c.byKey, key)
	return 1, nil
}

func (c *Connections) AreConnected(_ context.Context, a, b bson.ObjectID) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return false, c.Err
	}
	conn, ok := c.byKey[data.ParticipantsKey(a.Hex(), b.Hex())]
	return ok && conn.Status == data.StatusConnected, nil
}

func (c *Connections) ListForUser(_ context.Context, user bson.ObjectID) ([]*data.Connection, error) {
	return c.filter(func(conn *data.Connection) bool {
		return conn.Requester == user || conn.Recipient == user
	}, nil)
}

func (c *Connections) ListConnected(_ context.Context, user bson.ObjectID) ([]*data.Connection, error) {
	return c.filter(func(conn *data.Connection) bool {
		return conn.Status == data.StatusConnected && (conn.Requester == user || conn.Recipient == user)
	}, func(a, b *data.Connection) bool { return a.ConnectedAt.After(*b.ConnectedAt) })
}

func (c *Connections) ListPendingFor(_ context.Context, recipient bson.ObjectID) ([]*data.Connection, error) {
	return c.filter(func(conn *data.Connection) bool {
		return conn.Status == data.StatusPending && conn.Recipient == recipient
	}, func(a, b *data.Connection) bool { return a.CreatedAt.Before(b.CreatedAt) })
}

func (c *Connections) filter(keep func(*data.Connection) bool, less func(a, b *data.Connection) bool) ([]*data.Connection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return nil, c.Err
	}
	out := []*data.Connection{}
	for _, conn := range c.byKey {
		if keep(conn) {
			cp := *conn
			out = append(out, &cp)
		}
	}
	if less != nil {
		sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	}
	return out, nil
}

// Conversations is an in-memory conversation directory.
type Conversations struct {
	mu         sync.Mutex
	byKey      map[string]*data.Conversation
	Err        error
	SummaryErr error
	// Creates counts inserts performed by GetOrCreate.
	Creates int
}

// NewConversations returns an empty directory.
func NewConversations() *Conversations {
	return &Conversations{byKey: map[string]*data.Conversation{}}
}

func (s *Conversations) GetOrCreate(_ context.Context, a, b bson.ObjectID) (*data.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	key := data.ParticipantsKey(a.Hex(), b.Hex())
	if conv, ok := s.byKey[key]; ok {
		cp := *conv
		return &cp, nil
	}
	participants := []bson.ObjectID{a, b}
	if b.Hex() < a.Hex() {
		participants = []bson.ObjectID{b, a}
	}
	now := time.Now().UTC()
	conv := &data.Conversation{
		ID: bson.NewObjectID(), Participants: participants, ParticipantsKey: key,
		CreatedAt: now, UpdatedAt: now,
	}
	s.byKey[key] = conv
	s.Creates++
	cp := *conv
	return &cp, nil
}

func (s *Conversations) GetByID(_ context.Context, id bson.ObjectID) (*data.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	for _, conv := range s.byKey {
		if conv.ID == id {
			cp := *conv
			return &cp, nil
		}
	}
	return nil, data.ErrNotFound
}

func (s *Conversations) ListForUser(_ context.Context, user bson.ObjectID) ([]*data.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	out := []*data.Conversation{}
	for _, conv := range s.byKey {
		if conv.HasParticipant(user) {
			cp := *conv
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ActivityAt().After(out[j].ActivityAt()) })
	return out, nil
}

func (s *Conversations) UpdateSummary(_ context.Context, id bson.ObjectID, text string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SummaryErr != nil {
		return s.SummaryErr
	}
	for _, conv := range s.byKey {
		if conv.ID == id {
			conv.LastMessage = text
			conv.LastMessageAt = &at
			conv.UpdatedAt = at
			return nil
		}
	}
	return data.ErrNotFound
}

// Count returns the number of conversations stored for key.
func (s *Conversations) Count(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byKey[key]; ok {
		return 1
	}
	return 0
}

// Messages is an in-memory append-only message log.
type Messages struct {
	mu   sync.Mutex
	msgs []*data.Message
	Err  error
}

// NewMessages returns an empty log.
func NewMessages() *Messages {
	return &Messages{}
}

func (m *Messages) Append(_ context.Context, conversation, sender bson.ObjectID, text string, createdAt time.Time) (*data.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	msg := &data.Message{
		ID: bson.NewObjectID(), Conversation: conversation, Sender: sender,
		Text: text, CreatedAt: createdAt.UTC(),
	}
	m.msgs = append(m.msgs, msg)
	cp := *msg
	return &cp, nil
}

func (m *Messages) ListByConversation(_ context.Context, conversation bson.ObjectID) ([]*data.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	out := []*data.Message{}
	for _, msg := range m.msgs {
		if msg.Conversation == conversation {
			cp := *msg
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Len returns the number of stored messages.
func (m *Messages) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.msgs)
}
