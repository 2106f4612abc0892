package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Roohan-gm/shopblizz-backend/internal/domain"
	"github.com/Roohan-gm/shopblizz-backend/internal/repositories"
)

const (
	usersCollection   = "users"
	userIDIndex       = "_id_"
	userUsernameIndex = "username_unique"
	userEmailIndex    = "email_unique"
)

// UserRepository stores profiles keyed by Firebase uid. Username and email uniqueness are
// unique indexes.
type UserRepository struct {
	collection *mongo.Collection
}

var _ repositories.UserRepository = (*UserRepository)(nil)

// NewUserRepository binds the repository to the users collection of db.
func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{collection: db.Collection(usersCollection)}
}

// CreateIndexes installs the username and email uniqueness indexes.
func (r *UserRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true).SetName(userUsernameIndex)},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetName(userEmailIndex)},
	}
	if _, err := r.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("mongo: create user indexes: %w", err)
	}
	return nil
}

func (r *UserRepository) Insert(ctx context.Context, profile domain.UserProfile) error {
	if strings.TrimSpace(profile.UID) == "" {
		return errors.New("user repository: uid is required")
	}
	_, err := r.collection.InsertOne(ctx, newUserRecord(profile))
	if isUserClash(err) {
		return conflict("users.insert", fmt.Errorf("%w: %s", repositories.ErrUserExists, profile.Username))
	}
	return wrap("users.insert", err)
}

func (r *UserRepository) FindByUID(ctx context.Context, uid string) (domain.UserProfile, error) {
	record, err := r.findRecord(ctx, uid)
	if err != nil {
		return domain.UserProfile{}, err
	}
	return record.toDomain(), nil
}

// Mutate performs an optimistic read-modify-write guarded by the record version.
func (r *UserRepository) Mutate(ctx context.Context, uid string, mutate repositories.UserMutation) (domain.UserProfile, error) {
	if mutate == nil {
		return domain.UserProfile{}, errors.New("user repository: mutation is required")
	}
	for attempt := 0; attempt < maxMutateRetries; attempt++ {
		record, err := r.findRecord(ctx, uid)
		if err != nil {
			return domain.UserProfile{}, err
		}

		profile := record.toDomain()
		if err := mutate(&profile); err != nil {
			return domain.UserProfile{}, err
		}
		profile.UID = record.UID
		profile.CreatedAt = record.CreatedAt

		next := newUserRecord(profile)
		next.Version = record.Version + 1
		result, err := r.collection.ReplaceOne(ctx, bson.M{"_id": uid, "version": record.Version}, next)
		if isUserClash(err) {
			return domain.UserProfile{}, conflict("users.mutate", fmt.Errorf("%w: %s", repositories.ErrUserExists, profile.Username))
		}
		if err != nil {
			return domain.UserProfile{}, wrap("users.mutate", err)
		}
		if result.MatchedCount == 1 {
			return profile, nil
		}
	}
	return domain.UserProfile{}, conflict("users.mutate", errConcurrentUpdate)
}

func (r *UserRepository) findRecord(ctx context.Context, uid string) (userRecord, error) {
	var record userRecord
	err := r.collection.FindOne(ctx, bson.M{"_id": uid}).Decode(&record)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return userRecord{}, notFound("users.find", fmt.Errorf("user %s not found", uid))
	}
	if err != nil {
		return userRecord{}, wrap("users.find", err)
	}
	return record, nil
}

func isUserClash(err error) bool {
	return isDuplicateKeyOn(err, userIDIndex) ||
		isDuplicateKeyOn(err, userUsernameIndex) ||
		isDuplicateKeyOn(err, userEmailIndex)
}

type userRecord struct {
	UID           string    `bson:"_id"`
	Username      string    `bson:"username"`
	Email         string    `bson:"email"`
	Role          string    `bson:"role"`
	AvatarURL     string    `bson:"avatarUrl"`
	AvatarAssetID string    `bson:"avatarAssetId"`
	CreatedAt     time.Time `bson:"createdAt"`
	UpdatedAt     time.Time `bson:"updatedAt"`
	Version       int64     `bson:"version"`
}

func newUserRecord(u domain.UserProfile) userRecord {
	return userRecord{
		UID:           u.UID,
		Username:      u.Username,
		Email:         u.Email,
		Role:          string(u.Role),
		AvatarURL:     u.Avatar.URL,
		AvatarAssetID: u.Avatar.AssetID,
		CreatedAt:     u.CreatedAt.UTC(),
		UpdatedAt:     u.UpdatedAt.UTC(),
	}
}

func (r userRecord) toDomain() domain.UserProfile {
	return domain.UserProfile{
		UID:       r.UID,
		Username:  r.Username,
		Email:     r.Email,
		Role:      domain.UserRole(r.Role),
		Avatar:    domain.MediaAsset{URL: r.AvatarURL, AssetID: r.AvatarAssetID},
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}
