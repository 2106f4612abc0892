package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/Roohan-gm/shopblizz-backend/internal/domain"
	pfirestore "github.com/Roohan-gm/shopblizz-backend/internal/platform/firestore"
	"github.com/Roohan-gm/shopblizz-backend/internal/repositories"
)

const (
	usersCollection       = "users"
	userHandlesCollection = "userHandles"

	handleUsername = "username"
	handleEmail    = "email"
)

// UserRepository stores profiles in the users collection keyed by Firebase uid. Username and
// email uniqueness is held by one reservation document per value in userHandles.
type UserRepository struct {
	provider *pfirestore.Provider
	users    *pfirestore.BaseRepository[userDocument]
	handles  *pfirestore.BaseRepository[userHandleDocument]
}

var _ repositories.UserRepository = (*UserRepository)(nil)

// NewUserRepository constructs a Firestore backed profile repository.
func NewUserRepository(provider *pfirestore.Provider) (*UserRepository, error) {
	if provider == nil {
		return nil, errors.New("user repository requires firestore provider")
	}
	return &UserRepository{
		provider: provider,
		users:    pfirestore.NewBaseRepository[userDocument](provider, usersCollection, nil),
		handles:  pfirestore.NewBaseRepository[userHandleDocument](provider, userHandlesCollection, nil),
	}, nil
}

func (r *UserRepository) Insert(ctx context.Context, profile domain.UserProfile) error {
	if strings.TrimSpace(profile.UID) == "" {
		return errors.New("user repository: uid is required")
	}
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		userRef, err := r.users.DocumentRef(ctx, profile.UID)
		if err != nil {
			return err
		}
		if _, err := tx.Get(userRef); err == nil {
			return pfirestore.Conflict("users.insert", fmt.Errorf("%w: uid %s is registered", repositories.ErrUserExists, profile.UID))
		} else if !pfirestore.IsNotFoundStatus(err) {
			return err
		}
		usernameRef, err := r.claimHandle(ctx, tx, handleUsername, profile.Username, profile.UID)
		if err != nil {
			return err
		}
		emailRef, err := r.claimHandle(ctx, tx, handleEmail, profile.Email, profile.UID)
		if err != nil {
			return err
		}

		if err := tx.Create(userRef, newUserDocument(profile)); err != nil {
			return err
		}
		if err := tx.Set(usernameRef, userHandleDocument{UID: profile.UID}); err != nil {
			return err
		}
		return tx.Set(emailRef, userHandleDocument{UID: profile.UID})
	})
	if pfirestore.IsAlreadyExists(err) {
		return pfirestore.Conflict("users.insert", fmt.Errorf("%w: uid %s is registered", repositories.ErrUserExists, profile.UID))
	}
	return pfirestore.WrapError("users.insert", err)
}

func (r *UserRepository) FindByUID(ctx context.Context, uid string) (domain.UserProfile, error) {
	doc, err := r.users.Get(ctx, uid)
	if err != nil {
		return domain.UserProfile{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// Mutate applies mutate inside a transaction and moves the handle reservations when the
// username or email changes.
func (r *UserRepository) Mutate(ctx context.Context, uid string, mutate repositories.UserMutation) (domain.UserProfile, error) {
	if mutate == nil {
		return domain.UserProfile{}, errors.New("user repository: mutation is required")
	}
	var (
		updated   domain.UserProfile
		mutateErr error
	)
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.users.DocumentRef(ctx, uid)
		if err != nil {
			return err
		}
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		doc, err := r.users.Decode(snap)
		if err != nil {
			return err
		}

		before := doc.Data.toDomain(doc.ID)
		after := before
		if mutateErr = mutate(&after); mutateErr != nil {
			return mutateErr
		}
		after.UID = before.UID
		after.CreatedAt = before.CreatedAt

		type move struct {
			kind, from, to string
			claim          *firestore.DocumentRef
		}
		moves := []move{
			{kind: handleUsername, from: before.Username, to: after.Username},
			{kind: handleEmail, from: before.Email, to: after.Email},
		}
		// all reads precede writes inside a Firestore transaction
		for i := range moves {
			if moves[i].from == moves[i].to {
				continue
			}
			if moves[i].claim, err = r.claimHandle(ctx, tx, moves[i].kind, moves[i].to, after.UID); err != nil {
				return err
			}
		}
		for _, m := range moves {
			if m.claim == nil {
				continue
			}
			oldRef, err := r.handles.DocumentRef(ctx, handleKey(m.kind, m.from))
			if err != nil {
				return err
			}
			if err := tx.Delete(oldRef); err != nil {
				return err
			}
			if err := tx.Set(m.claim, userHandleDocument{UID: after.UID}); err != nil {
				return err
			}
		}

		updated = after
		return tx.Set(ref, newUserDocument(after))
	})
	if mutateErr != nil {
		return domain.UserProfile{}, mutateErr
	}
	if err != nil {
		return domain.UserProfile{}, pfirestore.WrapError("users.mutate", err)
	}
	return updated, nil
}

// claimHandle reads the reservation for value inside tx. A reservation held by another uid is
// a conflict wrapping repositories.ErrUserExists.
func (r *UserRepository) claimHandle(ctx context.Context, tx *firestore.Transaction, kind, value, uid string) (*firestore.DocumentRef, error) {
	ref, err := r.handles.DocumentRef(ctx, handleKey(kind, value))
	if err != nil {
		return nil, err
	}
	snap, err := tx.Get(ref)
	if err != nil {
		if pfirestore.IsNotFoundStatus(err) {
			return ref, nil
		}
		return nil, err
	}
	holder, err := r.handles.Decode(snap)
	if err != nil {
		return nil, err
	}
	if holder.Data.UID != uid {
		return nil, pfirestore.Conflict("users."+kind, fmt.Errorf("%w: %s %q is taken", repositories.ErrUserExists, kind, value))
	}
	return ref, nil
}

func handleKey(kind, value string) string {
	return reservationKey(kind + ":" + value)
}

type userHandleDocument struct {
	UID string `firestore:"uid"`
}

type userDocument struct {
	Username      string    `firestore:"username"`
	Email         string    `firestore:"email"`
	Role          string    `firestore:"role"`
	AvatarURL     string    `firestore:"avatarUrl"`
	AvatarAssetID string    `firestore:"avatarAssetId"`
	CreatedAt     time.Time `firestore:"createdAt"`
	UpdatedAt     time.Time `firestore:"updatedAt"`
}

func newUserDocument(u domain.UserProfile) userDocument {
	return userDocument{
		Username:      u.Username,
		Email:         u.Email,
		Role:          string(u.Role),
		AvatarURL:     u.Avatar.URL,
		AvatarAssetID: u.Avatar.AssetID,
		CreatedAt:     u.CreatedAt.UTC(),
		UpdatedAt:     u.UpdatedAt.UTC(),
	}
}

func (d userDocument) toDomain(uid string) domain.UserProfile {
	return domain.UserProfile{
		UID:       uid,
		Username:  d.Username,
		Email:     d.Email,
		Role:      domain.UserRole(d.Role),
		Avatar:    domain.MediaAsset{URL: d.AvatarURL, AssetID: d.AvatarAssetID},
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}
}
