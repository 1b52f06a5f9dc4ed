package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sakif/messagely/internal/apperror"
	"github.com/sakif/messagely/internal/service"
)

// Authenticator is the slice of service.AuthService the auth routes need.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (string, error)
	RegisterAndLogin(ctx context.Context, in service.RegisterInput) (string, error)
}

// AuthHandler serves the two public routes that hand out tokens.
//
// HANDLER RESPONSIBILITIES:
//   - HandleLogin    → check credentials, record the login, return a token
//   - HandleRegister → create the account, return its first token
//
// Neither route needs a token; every other route does.
type AuthHandler struct {
	auth   Authenticator
	logger *slog.Logger
}

// NewAuthHandler creates an AuthHandler. All dependencies are injected here;
// the handler has no knowledge of how they're constructed.
func NewAuthHandler(auth Authenticator, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, logger: logger}
}

// TokenResponse is the body of a successful login or registration.
type TokenResponse struct {
	Token string `json:"token"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// HandleLogin authenticates a user.
//
// HTTP: POST /login
// REQUEST BODY: {"username": "alice", "password": "..."}
// RESPONSE:     200 {"token": "..."} | 400 on bad credentials
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	token, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, TokenResponse{Token: token})
}

// HandleRegister creates an account and logs it in.
//
// HTTP: POST /register
// REQUEST BODY: {"username", "password", "first_name", "last_name", "phone"}
// RESPONSE:     201 {"token": "..."} | 400 missing field or username taken
//
// The token is only minted after the user row is committed. A taken
// username is a bad registration field like any other, so it comes back
// as a 400 validation error on "username" rather than the funnel's 409.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	token, err := h.auth.RegisterAndLogin(r.Context(), req)
	if errors.Is(err, apperror.ErrConflict) {
		err = apperror.ValidationFailed("username",
			"username "+strings.TrimSpace(req.Username)+" is already taken")
	}
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, TokenResponse{Token: token})
}
