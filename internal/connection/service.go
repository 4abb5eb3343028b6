// Package connection implements the connection request lifecycle between users.
package connection

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/PaulBabatuyi/connectChat/internal/apperr"
	"github.com/PaulBabatuyi/connectChat/internal/data"
	"github.com/PaulBabatuyi/connectChat/internal/metrics"
)

// Discover annotations, from the caller's point of view.
const (
	StatusNone     = "none"
	StatusPending  = "pending"
	StatusReceived = "received"
)

// Users is the subset of the users store the service reads.
type Users interface {
	UserExists(ctx context.Context, id bson.ObjectID) (bool, error)
	GetSummaries(ctx context.Context, ids []bson.ObjectID) (map[bson.ObjectID]data.UserSummary, error)
	ListUsersExcept(ctx context.Context, exclude []bson.ObjectID) ([]data.UserSummary, error)
}

// Store persists connection records.
type Store interface {
	Create(ctx context.Context, requester, recipient bson.ObjectID) (*data.Connection, error)
	Accept(ctx context.Context, requester, recipient bson.ObjectID) (*data.Connection, error)
	DeletePending(ctx context.Context, requester, recipient bson.ObjectID) (int64, error)
	AreConnected(ctx context.Context, a, b bson.ObjectID) (bool, error)
	ListForUser(ctx context.Context, user bson.ObjectID) ([]*data.Connection, error)
	ListConnected(ctx context.Context, user bson.ObjectID) ([]*data.Connection, error)
	ListPendingFor(ctx context.Context, recipient bson.ObjectID) ([]*data.Connection, error)
}

// Directory resolves the conversation of a user pair.
type Directory interface {
	GetOrCreate(ctx context.Context, a, b bson.ObjectID) (*data.Conversation, error)
}

// Candidate is a discoverable user with the state of any request between
// them and the caller.
type Candidate struct {
	data.UserSummary
	ConnectionStatus string `json:"connectionStatus"`
}

// Request is an incoming pending request.
type Request struct {
	From        data.UserSummary `json:"from"`
	RequestedAt time.Time        `json:"requestedAt"`
}

// Contact is a connected user.
type Contact struct {
	data.UserSummary
	ConnectedAt *time.Time `json:"connectedAt,omitempty"`
}

// Service implements the connection operations.
type Service struct {
	users Users
	store Store
	dir   Directory
	log   zerolog.Logger
}

// NewService wires a Service.
func NewService(users Users, store Store, dir Directory, log zerolog.Logger) *Service {
	return &Service{
		users: users,
		store: store,
		dir:   dir,
		log:   log.With().Str("component", "connection").Logger(),
	}
}

// ParseUserID parses a hex user id, mapping malformed input to ErrInvalidTarget.
func ParseUserID(hex string) (bson.ObjectID, error) {
	id, err := bson.ObjectIDFromHex(hex)
	if err != nil {
		return bson.NilObjectID, apperr.ErrInvalidTarget
	}
	return id, nil
}

// resolveTarget parses hex and checks that such a user exists.
func (s *Service) resolveTarget(ctx context.Context, hex string) (bson.ObjectID, error) {
	id, err := ParseUserID(hex)
	if err != nil {
		return id, err
	}
	ok, err := s.users.UserExists(ctx, id)
	if err != nil {
		return id, apperr.Internal("failed to look up user", err)
	}
	if !ok {
		return id, apperr.ErrInvalidTarget
	}
	return id, nil
}

// SendRequest creates a pending request from requester to the user identified
// by recipientHex.
func (s *Service) SendRequest(ctx context.Context, requester bson.ObjectID, recipientHex string) (*data.Connection, error) {
	recipient, err := s.resolveTarget(ctx, recipientHex)
	if err != nil {
		return nil, err
	}
	if recipient == requester {
		return nil, apperr.ErrSelfConnection
	}

	conn, err := s.store.Create(ctx, requester, recipient)
	if err != nil {
		if errors.Is(err, data.ErrDuplicate) {
			return nil, apperr.ErrConnectionExists
		}
		return nil, apperr.Internal("failed to create connection request", err)
	}

	metrics.RecordConnectionEvent(metrics.EventRequested)
	s.log.Info().
		Str("requester", requester.Hex()).
		Str("recipient", recipient.Hex()).
		Msg("connection requested")
	return conn, nil
}

// AcceptRequest accepts the pending request requesterHex -> accepter and
// returns the id of the pair's conversation.
func (s *Service) AcceptRequest(ctx context.Context, accepter bson.ObjectID, requesterHex string) (bson.ObjectID, error) {
	requester, err := ParseUserID(requesterHex)
	if err != nil {
		return bson.NilObjectID, err
	}

	if _, err := s.store.Accept(ctx, requester, accepter); err != nil {
		if errors.Is(err, data.ErrNotFound) {
			return bson.NilObjectID, apperr.ErrRequestNotFound
		}
		return bson.NilObjectID, apperr.Internal("failed to accept connection request", err)
	}
	metrics.RecordConnectionEvent(metrics.EventAccepted)

	conv, err := s.dir.GetOrCreate(ctx, requester, accepter)
	if err != nil {
		return bson.NilObjectID, apperr.Internal("failed to create conversation", err)
	}

	s.log.Info().
		Str("requester", requester.Hex()).
		Str("accepter", accepter.Hex()).
		Str("conversation_id", conv.ID.Hex()).
		Msg("connection accepted")
	return conv.ID, nil
}

// RejectRequest deletes the pending request requesterHex -> rejecter. It is
// idempotent: rejecting a request that does not exist is not an error.
func (s *Service) RejectRequest(ctx context.Context, rejecter bson.ObjectID, requesterHex string) error {
	requester, err := ParseUserID(requesterHex)
	if err != nil {
		return err
	}

	n, err := s.store.DeletePending(ctx, requester, rejecter)
	if err != nil {
		return apperr.Internal("failed to reject connection request", err)
	}
	if n > 0 {
		metrics.RecordConnectionEvent(metrics.EventRejected)
	}
	return nil
}

// AreConnected reports whether a and b are connected, in either direction.
func (s *Service) AreConnected(ctx context.Context, a, b bson.ObjectID) (bool, error) {
	ok, err := s.store.AreConnected(ctx, a, b)
	if err != nil {
		return false, apperr.Internal("failed to check connection", err)
	}
	return ok, nil
}

// Discover lists users other than the caller that the caller is not yet
// connected to, annotated with any pending request between them.
func (s *Service) Discover(ctx context.Context, caller bson.ObjectID) ([]Candidate, error) {
	records, err := s.store.ListForUser(ctx, caller)
	if err != nil {
		return nil, apperr.Internal("failed to load connections", err)
	}

	exclude := []bson.ObjectID{caller}
	status := make(map[bson.ObjectID]string, len(records))
	for _, r := range records {
		other := r.Other(caller)
		switch {
		case r.Status == data.StatusConnected:
			exclude = append(exclude, other)
		case r.Requester == caller:
			status[other] = StatusPending
		default:
			status[other] = StatusReceived
		}
	}

	users, err := s.users.ListUsersExcept(ctx, exclude)
	if err != nil {
		return nil, apperr.Internal("failed to list users", err)
	}

	out := make([]Candidate, 0, len(users))
	for _, u := range users {
		st, ok := status[u.ID]
		if !ok {
			st = StatusNone
		}
		out = append(out, Candidate{UserSummary: u, ConnectionStatus: st})
	}
	return out, nil
}

// ListConnections returns the users connected to caller, most recent first.
func (s *Service) ListConnections(ctx context.Context, caller bson.ObjectID) ([]Contact, error) {
	records, err := s.store.ListConnected(ctx, caller)
	if err != nil {
		return nil, apperr.Internal("failed to load connections", err)
	}

	ids := make([]bson.ObjectID, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.Other(caller))
	}
	summaries, err := s.users.GetSummaries(ctx, ids)
	if err != nil {
		return nil, apperr.Internal("failed to load users", err)
	}

	out := make([]Contact, 0, len(records))
	for _, r := range records {
		u, ok := summaries[r.Other(caller)]
		if !ok {
			continue
		}
		out = append(out, Contact{UserSummary: u, ConnectedAt: r.ConnectedAt})
	}
	return out, nil
}

// ListRequests returns the pending requests addressed to caller, oldest first.
func (s *Service) ListRequests(ctx context.Context, caller bson.ObjectID) ([]Request, error) {
	records, err := s.store.ListPendingFor(ctx, caller)
	if err != nil {
		return nil, apperr.Internal("failed to load requests", err)
	}

	ids := make([]bson.ObjectID, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.Requester)
	}
	summaries, err := s.users.GetSummaries(ctx, ids)
	if err != nil {
		return nil, apperr.Internal("failed to load users", err)
	}

	out := make([]Request, 0, len(records))
	for _, r := range records {
		u, ok := summaries[r.Requester]
		if !ok {
			continue
		}
		out = append(out, Request{From: u, RequestedAt: r.CreatedAt})
	}
	return out, nil
}
