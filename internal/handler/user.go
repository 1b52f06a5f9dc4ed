package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/messagely/internal/model"
)

// UserDirectory is the slice of service.UserService the user routes need.
type UserDirectory interface {
	All(ctx context.Context) ([]model.ProfileSnippet, error)
	Get(ctx context.Context, username string) (*model.UserProfile, error)
	MessagesFrom(ctx context.Context, username string) ([]model.SentMessage, error)
	MessagesTo(ctx context.Context, username string) ([]model.ReceivedMessage, error)
}

// UserHandler serves the user directory.
//
// Access control happens before these methods run: GET /users needs any
// logged-in caller, the {username} routes need the caller to BE that user.
// See auth.Authorizer and the route table in server.go.
type UserHandler struct {
	users  UserDirectory
	logger *slog.Logger
}

func NewUserHandler(users UserDirectory, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

// HandleList returns every user's profile snippet.
//
// HTTP: GET /users → {"users": [{username, first_name, last_name, phone}, ...]}
func (h *UserHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.All(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

// HandleGet returns one user's profile.
//
// HTTP: GET /users/{username} → {"user": {...}}
func (h *UserHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.Get(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

// HandleMessagesTo returns the user's inbox.
//
// HTTP: GET /users/{username}/to → {"messages": [{id, from_user, body, sent_at, read_at}, ...]}
func (h *UserHandler) HandleMessagesTo(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.users.MessagesTo(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

// HandleMessagesFrom returns the user's sent messages.
//
// HTTP: GET /users/{username}/from → {"messages": [{id, to_user, body, sent_at, read_at}, ...]}
func (h *UserHandler) HandleMessagesFrom(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.users.MessagesFrom(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}
