package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// contextKey is an unexported type used for context keys in this package.
//
// WHY A CUSTOM TYPE FOR CONTEXT KEYS?
// context.WithValue uses any as the key type. If you use a plain string like
// context.WithValue(ctx, "username", u), ANY package that knows the string
// "username" can read or shadow your value. Using a package-private type
// prevents collisions: only THIS package can create a key of type contextKey.
type contextKey string

const usernameKey contextKey = "username"

// TokenParam is the query parameter and JSON body field that may carry the
// token when no Authorization header is sent.
const TokenParam = "_token"

// OwnerParam is the chi URL parameter compared against the caller identity
// by the CorrectUser policy.
const OwnerParam = "username"

// maxTokenBodyBytes caps how much of a request body is buffered while
// looking for a _token field.
const maxTokenBodyBytes = 1 << 20

// TokenVerifier turns a raw token into the username it was issued for.
// service.AuthService satisfies it.
type TokenVerifier interface {
	VerifyToken(token string) (string, error)
}

// VerifierFunc adapts a plain function to TokenVerifier, the way
// http.HandlerFunc adapts one to http.Handler.
type VerifierFunc func(token string) (string, error)

// VerifyToken calls f(token).
func (f VerifierFunc) VerifyToken(token string) (string, error) {
	return f(token)
}

// Authorizer is the single policy object consulted by every protected route.
//
// Routes declare WHAT they need (a Policy) and the Authorizer decides HOW:
//
//	r.With(authz.Enforce(auth.LoggedIn)).Get("/users", h.List)
//	r.With(authz.Enforce(auth.CorrectUser)).Get("/users/{username}", h.Get)
//
// Keeping the checks here instead of in each handler means two routes with
// the same Policy can never drift apart.
type Authorizer struct {
	verifier TokenVerifier
	logger   *slog.Logger
}

// NewAuthorizer creates an Authorizer that checks tokens with verifier.
func NewAuthorizer(verifier TokenVerifier, logger *slog.Logger) *Authorizer {
	return &Authorizer{verifier: verifier, logger: logger}
}

// Enforce returns a middleware that applies policy before the handler runs.
//
// On success the caller's username is stored in the request context
// (read it back with UsernameFromContext). On failure the chain stops and
// the client receives 401 with the standard JSON error body.
//
// MIDDLEWARE PATTERN IN GO:
// A middleware is a function that takes an http.Handler and returns a new
// http.Handler. The new handler "wraps" the original:
//
//	func Middleware(next http.Handler) http.Handler {
//	    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
//	        // ... do stuff before the handler ...
//	        next.ServeHTTP(w, r)
//	    })
//	}
func (a *Authorizer) Enforce(policy Policy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			username, err := a.authenticate(r)
			if err != nil {
				a.logger.Debug("rejected unauthenticated request",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				writeUnauthorized(w, "valid authentication required")
				return
			}

			if policy == CorrectUser {
				owner := chi.URLParam(r, OwnerParam)
				if owner == "" || owner != username {
					a.logger.Debug("rejected request for another user's resource",
						slog.String("caller", username),
						slog.String("owner", owner),
					)
					writeUnauthorized(w, "not authorized to access this user")
					return
				}
			}

			next.ServeHTTP(w, r.WithContext(WithUsername(r.Context(), username)))
		})
	}
}

// authenticate extracts the token from the request and verifies it.
func (a *Authorizer) authenticate(r *http.Request) (string, error) {
	token := ExtractToken(r)
	return a.verifier.VerifyToken(token)
}

// WithUsername returns a copy of ctx carrying the caller identity.
func WithUsername(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, usernameKey, username)
}

// UsernameFromContext retrieves the caller identity from the request context.
//
// Returns ("", false) outside a route guarded by Enforce.
func UsernameFromContext(ctx context.Context) (string, bool) {
	u, ok := ctx.Value(usernameKey).(string)
	return u, ok && u != ""
}

// ExtractToken looks for a token in three places, in order:
//
//  1. Authorization: Bearer <token>
//  2. ?_token=<token>
//  3. {"_token": "<token>"} in a JSON request body
//
// The body is read into memory and put back so the handler can still
// decode it. Returns "" when no token is present.
func ExtractToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}

	if token := r.URL.Query().Get(TokenParam); token != "" {
		return token
	}

	return tokenFromBody(r)
}

func tokenFromBody(r *http.Request) string {
	if r.Body == nil || r.Body == http.NoBody {
		return ""
	}
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		return ""
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxTokenBodyBytes))
	r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(raw))
	if err != nil {
		return ""
	}

	var payload struct {
		Token string `json:"_token"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ""
	}
	return payload.Token
}

// writeUnauthorized mirrors the handler package's error body. It lives here
// because handler imports auth, not the other way round.
func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   "unauthorized",
		"message": message,
	})
}
