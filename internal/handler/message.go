package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/messagely/internal/apperror"
	"github.com/sakif/messagely/internal/auth"
	"github.com/sakif/messagely/internal/model"
	"github.com/sakif/messagely/internal/service"
)

// Messenger is the slice of service.MessageService the message routes need.
type Messenger interface {
	Create(ctx context.Context, from, to, body string) (*model.Message, error)
	Get(ctx context.Context, id int64) (*model.MessageDetail, error)
	MarkRead(ctx context.Context, id int64) (*model.ReadReceipt, error)
}

// MessageHandler serves /messages.
//
// All routes require a logged-in caller (enforced by the router). The
// per-message rules, sender-or-recipient to view and recipient-only to mark
// read, need the message itself, so they are checked here after loading it.
type MessageHandler struct {
	messages Messenger
	logger   *slog.Logger
}

func NewMessageHandler(messages Messenger, logger *slog.Logger) *MessageHandler {
	return &MessageHandler{messages: messages, logger: logger}
}

type createMessageRequest struct {
	ToUsername string `json:"to_username"`
	Body       string `json:"body"`
}

// HandleCreate sends a message from the caller.
//
// HTTP: POST /messages
// REQUEST BODY: {"to_username": "bob", "body": "hello"}
// RESPONSE:     201 {"message": {id, from_username, to_username, body, sent_at}}
//
// The sender is always the caller. A from_username in the body is ignored.
func (h *MessageHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req createMessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	msg, err := h.messages.Create(r.Context(), caller, req.ToUsername, req.Body)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"message": msg})
}

// HandleGet returns one message with both parties' snippets.
//
// HTTP: GET /messages/{id} → {"message": {...}} | 401 not a party | 404 unknown id
func (h *MessageHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	caller, msg, err := h.load(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if !auth.CanViewMessage(caller, msg) {
		h.logger.Warn("message view denied",
			slog.String("caller", caller),
			slog.Int64("id", msg.ID),
		)
		writeError(w, apperror.Unauthorized("cannot view this message"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"message": msg})
}

// HandleMarkRead marks a message read.
//
// HTTP: POST /messages/{id}/read → {"message": {id, read_at}} | 401 not the recipient
func (h *MessageHandler) HandleMarkRead(w http.ResponseWriter, r *http.Request) {
	caller, msg, err := h.load(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if !auth.CanMarkRead(caller, msg) {
		h.logger.Warn("mark read denied",
			slog.String("caller", caller),
			slog.Int64("id", msg.ID),
		)
		writeError(w, apperror.Unauthorized("only the recipient can mark this message as read"))
		return
	}

	receipt, err := h.messages.MarkRead(r.Context(), msg.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"message": receipt})
}

// load resolves the caller and the {id} message shared by Get and MarkRead.
func (h *MessageHandler) load(r *http.Request) (string, *model.MessageDetail, error) {
	caller, err := callerFrom(r)
	if err != nil {
		return "", nil, err
	}

	id, err := service.ParseMessageID(chi.URLParam(r, "id"))
	if err != nil {
		return "", nil, err
	}

	msg, err := h.messages.Get(r.Context(), id)
	if err != nil {
		return "", nil, err
	}
	return caller, msg, nil
}

// callerFrom reads the identity auth.Authorizer attached to the request.
func callerFrom(r *http.Request) (string, error) {
	caller, ok := auth.UsernameFromContext(r.Context())
	if !ok {
		return "", apperror.Unauthorized("valid authentication required")
	}
	return caller, nil
}
