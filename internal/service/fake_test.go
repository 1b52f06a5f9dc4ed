package service

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/sakif/messagely/internal/apperror"
	"github.com/sakif/messagely/internal/model"
	"github.com/sakif/messagely/internal/repository"
)

// =========================================================================
// FAKE STORE
// =========================================================================
//
// fakeStore is an in-memory implementation of both repository interfaces.
// Using a fake (not a mock framework) keeps tests dependency-free and easy
// to read — you can see exactly what the fake does.

var (
	_ repository.UserRepository    = (*fakeStore)(nil)
	_ repository.MessageRepository = (*fakeStore)(nil)
)

type fakeStore struct {
	users    map[string]*model.User
	messages map[int64]*fakeMessage
	nextID   int64

	// set to a non-nil error to simulate a database failure
	err error
}

type fakeMessage struct {
	model.Message
	readAt *time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:    make(map[string]*model.User),
		messages: make(map[int64]*fakeMessage),
	}
}

func (f *fakeStore) CreateUser(_ context.Context, user *model.User) error {
	if f.err != nil {
		return f.err
	}
	if _, ok := f.users[user.Username]; ok {
		return apperror.Conflict("user", user.Username)
	}
	stored := *user
	f.users[user.Username] = &stored
	return nil
}

func (f *fakeStore) GetPasswordHash(_ context.Context, username string) (string, bool, error) {
	if f.err != nil {
		return "", false, f.err
	}
	u, ok := f.users[username]
	if !ok {
		return "", false, nil
	}
	return u.PasswordHash, true, nil
}

func (f *fakeStore) TouchLogin(_ context.Context, username string, at time.Time) error {
	if f.err != nil {
		return f.err
	}
	u, ok := f.users[username]
	if !ok {
		return apperror.NotFound("user", username)
	}
	u.LastLoginAt = at
	return nil
}

func (f *fakeStore) ListUsers(_ context.Context) ([]model.ProfileSnippet, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]model.ProfileSnippet, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, f.snippet(u.Username))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (f *fakeStore) GetUser(_ context.Context, username string) (*model.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.users[username]
	if !ok {
		return nil, apperror.NotFound("user", username)
	}
	copied := *u
	return &copied, nil
}

func (f *fakeStore) MessagesFrom(_ context.Context, username string) ([]model.SentMessage, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := []model.SentMessage{}
	for _, m := range f.sorted() {
		if m.FromUsername == username {
			out = append(out, model.SentMessage{
				ID: m.ID, ToUser: f.snippet(m.ToUsername), Body: m.Body, SentAt: m.SentAt, ReadAt: m.readAt,
			})
		}
	}
	return out, nil
}

func (f *fakeStore) MessagesTo(_ context.Context, username string) ([]model.ReceivedMessage, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := []model.ReceivedMessage{}
	for _, m := range f.sorted() {
		if m.ToUsername == username {
			out = append(out, model.ReceivedMessage{
				ID: m.ID, FromUser: f.snippet(m.FromUsername), Body: m.Body, SentAt: m.SentAt, ReadAt: m.readAt,
			})
		}
	}
	return out, nil
}

func (f *fakeStore) CreateMessage(_ context.Context, msg *model.Message) error {
	if f.err != nil {
		return f.err
	}
	if _, ok := f.users[msg.FromUsername]; !ok {
		return apperror.NotFound("user", msg.FromUsername)
	}
	if _, ok := f.users[msg.ToUsername]; !ok {
		return apperror.NotFound("user", msg.ToUsername)
	}
	f.nextID++
	msg.ID = f.nextID
	f.messages[msg.ID] = &fakeMessage{Message: *msg}
	return nil
}

func (f *fakeStore) GetMessage(_ context.Context, id int64) (*model.MessageDetail, error) {
	if f.err != nil {
		return nil, f.err
	}
	m, ok := f.messages[id]
	if !ok {
		return nil, apperror.NotFound("message", "id")
	}
	return &model.MessageDetail{
		ID:       m.ID,
		Body:     m.Body,
		SentAt:   m.SentAt,
		ReadAt:   m.readAt,
		FromUser: f.snippet(m.FromUsername),
		ToUser:   f.snippet(m.ToUsername),
	}, nil
}

func (f *fakeStore) MarkRead(_ context.Context, id int64, at time.Time) (*model.ReadReceipt, error) {
	if f.err != nil {
		return nil, f.err
	}
	m, ok := f.messages[id]
	if !ok {
		return nil, apperror.NotFound("message", "id")
	}
	if m.readAt == nil {
		m.readAt = &at
	}
	return &model.ReadReceipt{ID: id, ReadAt: *m.readAt}, nil
}

func (f *fakeStore) snippet(username string) model.ProfileSnippet {
	u := f.users[username]
	return model.ProfileSnippet{Username: u.Username, FirstName: u.FirstName, LastName: u.LastName, Phone: u.Phone}
}

func (f *fakeStore) sorted() []*fakeMessage {
	out := make([]*fakeMessage, 0, len(f.messages))
	for _, m := range f.messages {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// =========================================================================
// SHARED HELPERS
// =========================================================================

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stepClock returns a Clock that starts at a fixed instant and advances one
// second per call, so every stamp is distinct and ordered.
func stepClock() Clock {
	t := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}
