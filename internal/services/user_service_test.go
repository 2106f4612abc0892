package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/Roohan-gm/shopblizz-backend/internal/domain"
	"github.com/Roohan-gm/shopblizz-backend/internal/repositories"
)

const testUID = "firebase-uid-1"

type userFixture struct {
	users   *stubUserRepo
	media   *stubMediaStore
	service UserService
	stored  *domain.UserProfile
}

func newUserFixture(t *testing.T) *userFixture {
	t.Helper()
	stored := &domain.UserProfile{
		UID:      testUID,
		Username: "ayesha",
		Email:    "ayesha@example.com",
		Role:     domain.UserRoleUser,
		Avatar:   domain.MediaAsset{URL: "https://cdn.example/old.png", AssetID: "asset-old"},
	}
	fx := &userFixture{users: &stubUserRepo{}, media: &stubMediaStore{}, stored: stored}
	fx.users.findFn = func(_ context.Context, uid string) (domain.UserProfile, error) {
		if uid != stored.UID {
			return domain.UserProfile{}, notFoundError(uid)
		}
		return *stored, nil
	}
	fx.users.mutateFn = func(_ context.Context, uid string, mutate repositories.UserMutation) (domain.UserProfile, error) {
		if uid != stored.UID {
			return domain.UserProfile{}, notFoundError(uid)
		}
		next := *stored
		if err := mutate(&next); err != nil {
			return domain.UserProfile{}, err
		}
		*stored = next
		return next, nil
	}
	svc, err := NewUserService(UserServiceDeps{Users: fx.users, Media: fx.media, Clock: fixedClock()})
	if err != nil {
		t.Fatalf("new user service: %v", err)
	}
	fx.service = svc
	return fx
}

func TestUserServiceRegister(t *testing.T) {
	fx := newUserFixture(t)

	profile, err := fx.service.Register(context.Background(), RegisterUserCommand{
		UID:      "firebase-uid-2",
		Username: "  Bilal_K ",
		Email:    " Bilal@Example.com",
		Avatar:   upload("bilal.png"),
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if profile.Username != "bilal_k" || profile.Email != "bilal@example.com" || profile.Role != domain.UserRoleUser {
		t.Fatalf("unexpected profile %+v", profile)
	}
	if profile.Avatar.AssetID != "asset-bilal.png" || profile.CreatedAt.IsZero() {
		t.Fatalf("expected stored avatar and timestamps, got %+v", profile)
	}
	if len(fx.users.inserted) != 1 {
		t.Fatalf("expected one insert, got %d", len(fx.users.inserted))
	}
}

func TestUserServiceRegisterAdminRoleFollowsClaim(t *testing.T) {
	fx := newUserFixture(t)

	profile, err := fx.service.Register(context.Background(), RegisterUserCommand{
		UID: "firebase-uid-3", Username: "ops", Email: "ops@example.com", Admin: true, Avatar: upload("ops.png"),
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if profile.Role != domain.UserRoleAdmin {
		t.Fatalf("expected admin role, got %s", profile.Role)
	}
}

func TestUserServiceRegisterValidation(t *testing.T) {
	tests := []struct {
		name  string
		cmd   RegisterUserCommand
		field string
	}{
		{"short username", RegisterUserCommand{UID: "u", Username: "ab", Email: "a@example.com", Avatar: upload("a.png")}, "username"},
		{"username symbols", RegisterUserCommand{UID: "u", Username: "ay-esha", Email: "a@example.com", Avatar: upload("a.png")}, "username"},
		{"bad email", RegisterUserCommand{UID: "u", Username: "ayesha", Email: "ayesha@example", Avatar: upload("a.png")}, "email"},
		{"missing avatar", RegisterUserCommand{UID: "u", Username: "ayesha", Email: "a@example.com"}, "avatar"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fx := newUserFixture(t)
			_, err := fx.service.Register(context.Background(), tc.cmd)
			var validationErr *ValidationError
			if !errors.As(err, &validationErr) || validationErr.Field != tc.field {
				t.Fatalf("expected %s validation error, got %v", tc.field, err)
			}
			if len(fx.users.inserted) != 0 {
				t.Fatal("invalid registrations must not be persisted")
			}
		})
	}
}

func TestUserServiceRegisterAvatarStoreFailureIsFatal(t *testing.T) {
	fx := newUserFixture(t)
	fx.media.storeFn = func(context.Context, MediaUpload) (domain.MediaAsset, error) {
		return domain.MediaAsset{}, errors.New("bucket unavailable")
	}

	_, err := fx.service.Register(context.Background(), RegisterUserCommand{
		UID: "firebase-uid-2", Username: "bilal", Email: "bilal@example.com", Avatar: upload("bilal.png"),
	})
	if !errors.Is(err, ErrDependencyFailure) {
		t.Fatalf("expected dependency failure, got %v", err)
	}
	if len(fx.users.inserted) != 0 {
		t.Fatal("profile must not be created without an avatar")
	}
}

func TestUserServiceRegisterConflictReleasesAvatar(t *testing.T) {
	fx := newUserFixture(t)
	fx.users.insertFn = func(context.Context, domain.UserProfile) error {
		return &stubRepoError{err: fmt.Errorf("%w: ayesha", repositories.ErrUserExists), conflict: true}
	}

	_, err := fx.service.Register(context.Background(), RegisterUserCommand{
		UID: "firebase-uid-2", Username: "ayesha", Email: "other@example.com", Avatar: upload("dup.png"),
	})
	if !errors.Is(err, ErrConflict) || !errors.Is(err, repositories.ErrUserExists) {
		t.Fatalf("expected user exists conflict, got %v", err)
	}
	if len(fx.media.released) != 1 || fx.media.released[0] != "asset-dup.png" {
		t.Fatalf("expected orphaned avatar release, got %v", fx.media.released)
	}
}

func TestUserServiceCurrent(t *testing.T) {
	fx := newUserFixture(t)

	profile, err := fx.service.Current(context.Background(), testUID)
	if err != nil || profile.Username != "ayesha" {
		t.Fatalf("unexpected profile %+v %v", profile, err)
	}
	if _, err := fx.service.Current(context.Background(), "unknown"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := fx.service.Current(context.Background(), " "); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found for blank uid, got %v", err)
	}
}

func TestUserServiceUpdateAccount(t *testing.T) {
	fx := newUserFixture(t)
	username := "Ayesha_Khan"

	profile, err := fx.service.UpdateAccount(context.Background(), testUID, AccountPatch{Username: &username})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if profile.Username != "ayesha_khan" || profile.Email != "ayesha@example.com" {
		t.Fatalf("unexpected profile %+v", profile)
	}
	if profile.UpdatedAt.IsZero() {
		t.Fatal("expected updatedAt to be stamped")
	}

	if _, err := fx.service.UpdateAccount(context.Background(), testUID, AccountPatch{}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for empty patch, got %v", err)
	}
	bad := "not-an-email"
	if _, err := fx.service.UpdateAccount(context.Background(), testUID, AccountPatch{Email: &bad}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for email, got %v", err)
	}
}

func TestUserServiceUpdateAvatarReleasesPrevious(t *testing.T) {
	fx := newUserFixture(t)

	profile, err := fx.service.UpdateAvatar(context.Background(), testUID, upload("new.png"))
	if err != nil {
		t.Fatalf("update avatar: %v", err)
	}
	if profile.Avatar.AssetID != "asset-new.png" {
		t.Fatalf("unexpected avatar %+v", profile.Avatar)
	}
	if len(fx.media.released) != 1 || fx.media.released[0] != "asset-old" {
		t.Fatalf("expected previous avatar release, got %v", fx.media.released)
	}
}

func TestUserServiceUpdateAvatarKeepsPreviousOnWriteFailure(t *testing.T) {
	fx := newUserFixture(t)
	fx.users.mutateFn = func(context.Context, string, repositories.UserMutation) (domain.UserProfile, error) {
		return domain.UserProfile{}, &stubRepoError{err: errors.New("firestore down"), unavailable: true}
	}

	_, err := fx.service.UpdateAvatar(context.Background(), testUID, upload("new.png"))
	if !errors.Is(err, ErrDependencyFailure) {
		t.Fatalf("expected dependency failure, got %v", err)
	}
	if len(fx.media.released) != 1 || fx.media.released[0] != "asset-new.png" {
		t.Fatalf("expected only the new upload to be released, got %v", fx.media.released)
	}
}

func TestUserServiceUpdateAvatarRequiresUpload(t *testing.T) {
	fx := newUserFixture(t)
	if _, err := fx.service.UpdateAvatar(context.Background(), testUID, MediaUpload{}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
