package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Roohan-gm/shopblizz-backend/internal/domain"
	"github.com/Roohan-gm/shopblizz-backend/internal/repositories"
)

// UserServiceDeps bundles the collaborators of the user service.
type UserServiceDeps struct {
	Users  repositories.UserRepository
	Media  MediaStore
	Clock  func() time.Time
	Logger func(context.Context, string, map[string]any)
}

type userService struct {
	users  repositories.UserRepository
	media  MediaStore
	now    func() time.Time
	logger func(context.Context, string, map[string]any)
}

var _ UserService = (*userService)(nil)

// NewUserService wires the user service.
func NewUserService(deps UserServiceDeps) (UserService, error) {
	if deps.Users == nil {
		return nil, errors.New("user service: user repository is required")
	}
	if deps.Media == nil {
		return nil, errors.New("user service: media store is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &userService{
		users: deps.Users,
		media: deps.Media,
		now: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

func (s *userService) Register(ctx context.Context, cmd RegisterUserCommand) (domain.UserProfile, error) {
	uid, err := requireUID(cmd.UID)
	if err != nil {
		return domain.UserProfile{}, err
	}
	username, err := normalizeUsername(cmd.Username)
	if err != nil {
		return domain.UserProfile{}, err
	}
	email, err := normalizeAccountEmail(cmd.Email)
	if err != nil {
		return domain.UserProfile{}, err
	}
	if cmd.Avatar.Body == nil {
		return domain.UserProfile{}, invalid("avatar", "avatar image is required")
	}

	avatar, err := s.media.Store(ctx, cmd.Avatar)
	if err != nil {
		return domain.UserProfile{}, avatarError(err)
	}

	role := domain.UserRoleUser
	if cmd.Admin {
		role = domain.UserRoleAdmin
	}
	now := s.now()
	profile := domain.UserProfile{
		UID:       uid,
		Username:  username,
		Email:     email,
		Role:      role,
		Avatar:    avatar,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.users.Insert(ctx, profile); err != nil {
		s.releaseAvatar(ctx, avatar.AssetID)
		return domain.UserProfile{}, mapRepositoryError(err)
	}
	s.logger(ctx, "user.registered", map[string]any{"uid": uid, "email": email})
	return profile, nil
}

func (s *userService) Current(ctx context.Context, uid string) (domain.UserProfile, error) {
	uid, err := requireUID(uid)
	if err != nil {
		return domain.UserProfile{}, err
	}
	profile, err := s.users.FindByUID(ctx, uid)
	if err != nil {
		return domain.UserProfile{}, mapRepositoryError(err)
	}
	return profile, nil
}

func (s *userService) UpdateAccount(ctx context.Context, uid string, patch AccountPatch) (domain.UserProfile, error) {
	uid, err := requireUID(uid)
	if err != nil {
		return domain.UserProfile{}, err
	}
	if patch.Username == nil && patch.Email == nil {
		return domain.UserProfile{}, invalid("account", "username or email is required")
	}
	var username, email string
	if patch.Username != nil {
		if username, err = normalizeUsername(*patch.Username); err != nil {
			return domain.UserProfile{}, err
		}
	}
	if patch.Email != nil {
		if email, err = normalizeAccountEmail(*patch.Email); err != nil {
			return domain.UserProfile{}, err
		}
	}

	profile, err := s.users.Mutate(ctx, uid, func(profile *domain.UserProfile) error {
		if patch.Username != nil {
			profile.Username = username
		}
		if patch.Email != nil {
			profile.Email = email
		}
		profile.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return domain.UserProfile{}, mapRepositoryError(err)
	}
	s.logger(ctx, "user.account_updated", map[string]any{"uid": uid})
	return profile, nil
}

// UpdateAvatar stores the new image before swapping it in. The previous image is released
// only after the swap is persisted.
func (s *userService) UpdateAvatar(ctx context.Context, uid string, upload MediaUpload) (domain.UserProfile, error) {
	uid, err := requireUID(uid)
	if err != nil {
		return domain.UserProfile{}, err
	}
	if upload.Body == nil {
		return domain.UserProfile{}, invalid("avatar", "avatar image is required")
	}
	if _, err := s.Current(ctx, uid); err != nil {
		return domain.UserProfile{}, err
	}
	avatar, err := s.media.Store(ctx, upload)
	if err != nil {
		return domain.UserProfile{}, avatarError(err)
	}

	var previous domain.MediaAsset
	profile, err := s.users.Mutate(ctx, uid, func(profile *domain.UserProfile) error {
		previous = profile.Avatar
		profile.Avatar = avatar
		profile.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		s.releaseAvatar(ctx, avatar.AssetID)
		return domain.UserProfile{}, mapRepositoryError(err)
	}
	if previous.AssetID != "" && previous.AssetID != avatar.AssetID {
		s.releaseAvatar(ctx, previous.AssetID)
	}
	s.logger(ctx, "user.avatar_updated", map[string]any{"uid": uid, "assetId": avatar.AssetID})
	return profile, nil
}

func (s *userService) releaseAvatar(ctx context.Context, assetID string) {
	if assetID == "" {
		return
	}
	if err := s.media.Release(ctx, assetID); err != nil {
		s.logger(ctx, "user.media.release_failed", map[string]any{"assetId": assetID, "error": err})
	}
}

func requireUID(raw string) (string, error) {
	uid := strings.TrimSpace(raw)
	if uid == "" {
		return "", fmt.Errorf("%w: user", ErrNotFound)
	}
	return uid, nil
}

func normalizeUsername(raw string) (string, error) {
	username := strings.ToLower(strings.TrimSpace(raw))
	if !domain.UsernamePattern.MatchString(username) {
		return "", invalid("username", "username must be 3 to 30 letters, numbers or underscores")
	}
	return username, nil
}

func normalizeAccountEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if !emailPattern.MatchString(email) {
		return "", invalid("email", "please provide a valid email address")
	}
	return email, nil
}

func avatarError(err error) error {
	if errors.Is(err, ErrValidation) {
		return err
	}
	return fmt.Errorf("%w: store avatar: %w", ErrDependencyFailure, err)
}
