package data

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/PaulBabatuyi/connectChat/internal/normalize"
)

// UsersStore performs user DB operations.
type UsersStore struct {
	coll *mongo.Collection
}

// NewUsersStore returns a UsersStore using the provided collection.
func NewUsersStore(coll *mongo.Collection) *UsersStore {
	return &UsersStore{coll: coll}
}

// summaryProjection is the field set returned for embedded user summaries.
var summaryProjection = bson.D{
	{Key: "username", Value: 1},
	{Key: "profile_image", Value: 1},
	{Key: "institution", Value: 1},
}

// CreateUser inserts a new user document with an already-hashed password.
// A taken email yields ErrDuplicate.
func (u *UsersStore) CreateUser(ctx context.Context, username, email, hashedPassword string) (*User, error) {
	now := time.Now().UTC()
	user := &User{
		Username:  normalize.Username(username),
		Email:     normalize.Email(email),
		Password:  hashedPassword,
		CreatedAt: now,
		UpdatedAt: now,
	}

	result, err := u.coll.InsertOne(ctx, user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}

	user.ID = result.InsertedID.(bson.ObjectID)
	return user, nil
}

// GetUserByLogin finds a user by email or, failing that, by exact username.
func (u *UsersStore) GetUserByLogin(ctx context.Context, identifier string) (*User, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"email": normalize.Email(identifier)},
		bson.M{"username": normalize.Username(identifier)},
	}}
	return u.findOne(ctx, filter)
}

// GetUserByEmail finds a user by email.
func (u *UsersStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return u.findOne(ctx, bson.M{"email": normalize.Email(email)})
}

// GetUserByID finds a user by ObjectID.
func (u *UsersStore) GetUserByID(ctx context.Context, id bson.ObjectID) (*User, error) {
	return u.findOne(ctx, bson.M{"_id": id})
}

func (u *UsersStore) findOne(ctx context.Context, filter any) (*User, error) {
	var user User
	err := u.coll.FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// UserExists checks if a user exists by id.
func (u *UsersStore) UserExists(ctx context.Context, id bson.ObjectID) (bool, error) {
	count, err := u.coll.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetSummaries returns public summaries for ids, keyed by id. Unknown ids are
// absent from the map.
func (u *UsersStore) GetSummaries(ctx context.Context, ids []bson.ObjectID) (map[bson.ObjectID]UserSummary, error) {
	out := make(map[bson.ObjectID]UserSummary, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	cursor, err := u.coll.Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, options.Find().SetProjection(summaryProjection))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var users []UserSummary
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	for _, s := range users {
		out[s.ID] = s
	}
	return out, nil
}

// ListUsersExcept returns summaries of every user whose id is not in exclude,
// ordered by username.
func (u *UsersStore) ListUsersExcept(ctx context.Context, exclude []bson.ObjectID) ([]UserSummary, error) {
	if exclude == nil {
		exclude = []bson.ObjectID{}
	}
	opts := options.Find().
		SetProjection(summaryProjection).
		SetSort(bson.D{{Key: "username", Value: 1}})

	cursor, err := u.coll.Find(ctx, bson.M{"_id": bson.M{"$nin": exclude}}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	users := []UserSummary{}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// ProfileUpdate carries the editable profile fields; nil leaves a field as is.
type ProfileUpdate struct {
	Username     *string
	Institution  *string
	ProfileImage *string
}

// UpdateProfile applies upd and returns the updated user.
func (u *UsersStore) UpdateProfile(ctx context.Context, id bson.ObjectID, upd ProfileUpdate) (*User, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	if upd.Username != nil {
		set["username"] = normalize.Username(*upd.Username)
	}
	if upd.Institution != nil {
		set["institution"] = *upd.Institution
	}
	if upd.ProfileImage != nil {
		set["profile_image"] = *upd.ProfileImage
	}

	var user User
	err := u.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}
