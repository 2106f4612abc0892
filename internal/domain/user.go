package domain

import (
	"regexp"
	"time"
)

// UserRole is the profile role shown to clients. Authorisation itself comes from the
// Firebase role claim.
type UserRole string

const (
	UserRoleUser  UserRole = "user"
	UserRoleAdmin UserRole = "admin"
)

// UsernamePattern matches the stored, lower-cased username.
var UsernamePattern = regexp.MustCompile(`^[a-z0-9_]{3,30}$`)

// UserProfile is the account record keyed by the Firebase uid. Credentials live in Firebase.
type UserProfile struct {
	UID       string
	Username  string
	Email     string
	Role      UserRole
	Avatar    MediaAsset
	CreatedAt time.Time
	UpdatedAt time.Time
}
