package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Roohan-gm/shopblizz-backend/internal/platform/auth"
	"github.com/Roohan-gm/shopblizz-backend/internal/platform/httpx"
	"github.com/Roohan-gm/shopblizz-backend/internal/services"
)

const avatarFormField = "avatar"

type updateAccountRequest struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
}

// UserHandlers exposes the profile of the signed-in Firebase account.
type UserHandlers struct {
	authn     *auth.Authenticator
	users     services.UserService
	maxUpload int64
}

// NewUserHandlers constructs user handlers. maxUploadBytes bounds avatar uploads; non-positive
// values use 5 MiB.
func NewUserHandlers(authn *auth.Authenticator, users services.UserService, maxUploadBytes int64) *UserHandlers {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &UserHandlers{authn: authn, users: users, maxUpload: maxUploadBytes}
}

// Routes registers the /users endpoints. Every route requires a Firebase ID token.
func (h *UserHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Post("/register", h.register)
	r.Get("/current-user", h.currentUser)
	r.Patch("/update-account", h.updateAccount)
	r.Patch("/update-avatar", h.updateAvatar)
}

func (h *UserHandlers) register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}
	if err := parseMultipart(w, r, h.maxUpload); err != nil {
		writeUploadError(w, r, err, h.maxUpload)
		return
	}
	defer r.MultipartForm.RemoveAll()

	avatar, closeAvatar, err := formImage(r, avatarFormField)
	if err != nil {
		writeBadRequest(ctx, w, err.Error())
		return
	}
	defer closeAvatar()

	email := strings.TrimSpace(r.FormValue("email"))
	if email == "" {
		email = identity.Email
	}
	profile, err := h.users.Register(ctx, services.RegisterUserCommand{
		UID:      identity.UID,
		Username: r.FormValue("username"),
		Email:    email,
		Admin:    identity.HasRole(auth.RoleAdmin),
		Avatar:   avatar,
	})
	if err != nil {
		writeServiceError(ctx, w, err, "user")
		return
	}
	writeJSON(w, http.StatusCreated, newUserPayload(profile))
}

func (h *UserHandlers) currentUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}
	profile, err := h.users.Current(ctx, identity.UID)
	if err != nil {
		writeServiceError(ctx, w, err, "user")
		return
	}
	writeJSON(w, http.StatusOK, newUserPayload(profile))
}

func (h *UserHandlers) updateAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}
	var req updateAccountRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeBadRequest(ctx, w, err.Error())
		return
	}
	profile, err := h.users.UpdateAccount(ctx, identity.UID, services.AccountPatch{
		Username: req.Username,
		Email:    req.Email,
	})
	if err != nil {
		writeServiceError(ctx, w, err, "user")
		return
	}
	writeJSON(w, http.StatusOK, newUserPayload(profile))
}

func (h *UserHandlers) updateAvatar(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}
	if err := parseMultipart(w, r, h.maxUpload); err != nil {
		writeUploadError(w, r, err, h.maxUpload)
		return
	}
	defer r.MultipartForm.RemoveAll()

	avatar, closeAvatar, err := formImage(r, avatarFormField)
	if err != nil {
		writeBadRequest(ctx, w, err.Error())
		return
	}
	defer closeAvatar()

	profile, err := h.users.UpdateAvatar(ctx, identity.UID, avatar)
	if err != nil {
		writeServiceError(ctx, w, err, "user")
		return
	}
	writeJSON(w, http.StatusOK, newUserPayload(profile))
}

// identity returns the verified caller, writing 503 when the service is not wired and 401
// when no identity reached the handler.
func (h *UserHandlers) identity(w http.ResponseWriter, r *http.Request) (*auth.Identity, bool) {
	ctx := r.Context()
	if h.users == nil {
		writeServiceUnavailable(ctx, w, "user")
		return nil, false
	}
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "sign in required", http.StatusUnauthorized))
		return nil, false
	}
	return identity, true
}
