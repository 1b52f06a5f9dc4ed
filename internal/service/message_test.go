package service

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/messagely/internal/apperror"
	"github.com/sakif/messagely/internal/model"
)

// newTestMessageService wires a MessageService to a fake store that already
// knows alice and bob.
func newTestMessageService(t *testing.T) (*MessageService, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	for _, u := range []string{"alice", "bob"} {
		store.users[u] = &model.User{Username: u, FirstName: "First-" + u, LastName: "Last-" + u, Phone: "555-" + u}
	}
	svc := NewMessageService(store, discardLogger())
	svc.now = stepClock()
	return svc, store
}

func TestParseMessageID(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"1", 1, false},
		{" 42 ", 42, false},
		{"0", 0, true},
		{"-3", 0, true},
		{"abc", 0, true},
		{"", 0, true},
		{"1.5", 0, true},
		{"99999999999999999999", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMessageID(tt.in)
			if tt.wantErr {
				if !errors.Is(err, apperror.ErrValidation) {
					t.Fatalf("ParseMessageID(%q) error = %v, want ErrValidation", tt.in, err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("ParseMessageID(%q) = (%d, %v), want %d", tt.in, got, err, tt.want)
			}
		})
	}
}

func TestCreateMessage_Success(t *testing.T) {
	svc, _ := newTestMessageService(t)

	msg, err := svc.Create(context.Background(), "alice", "bob", "hello")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if msg.ID == 0 {
		t.Error("expected message to have an ID")
	}
	if msg.FromUsername != "alice" || msg.ToUsername != "bob" || msg.Body != "hello" {
		t.Errorf("Create() = %+v", msg)
	}
	if msg.SentAt.IsZero() {
		t.Error("sent_at was not stamped")
	}
}

func TestCreateMessage_Validation(t *testing.T) {
	tests := []struct {
		name, from, to, body, field string
	}{
		{"no sender", "", "bob", "hi", "from_username"},
		{"no recipient", "alice", "  ", "hi", "to_username"},
		{"empty body", "alice", "bob", "", "body"},
		{"blank body", "alice", "bob", " \n\t", "body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store := newTestMessageService(t)

			_, err := svc.Create(context.Background(), tt.from, tt.to, tt.body)

			var appErr *apperror.AppError
			if !errors.As(err, &appErr) || appErr.Field != tt.field {
				t.Fatalf("Create() error = %v, want validation error on %s", err, tt.field)
			}
			if len(store.messages) != 0 {
				t.Error("invalid message was stored")
			}
		})
	}
}

func TestCreateMessage_UnknownRecipient(t *testing.T) {
	svc, _ := newTestMessageService(t)

	_, err := svc.Create(context.Background(), "alice", "ghost", "hello?")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("Create() error = %v, want ErrNotFound", err)
	}
}

func TestGetMessage(t *testing.T) {
	svc, _ := newTestMessageService(t)
	ctx := context.Background()
	msg, _ := svc.Create(ctx, "alice", "bob", "hi")

	detail, err := svc.Get(ctx, msg.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if detail.ReadAt != nil {
		t.Errorf("ReadAt = %v, want nil", detail.ReadAt)
	}
	if detail.FromUser.Username != "alice" || detail.ToUser.Phone != "555-bob" {
		t.Errorf("parties = %+v / %+v", detail.FromUser, detail.ToUser)
	}
}

func TestGetMessage_Errors(t *testing.T) {
	svc, _ := newTestMessageService(t)

	if _, err := svc.Get(context.Background(), 404); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}
	if _, err := svc.Get(context.Background(), 0); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("Get(0) error = %v, want ErrValidation", err)
	}
}

func TestMarkRead_SetsOnce(t *testing.T) {
	svc, _ := newTestMessageService(t)
	ctx := context.Background()
	msg, _ := svc.Create(ctx, "alice", "bob", "hi")

	first, err := svc.MarkRead(ctx, msg.ID)
	if err != nil {
		t.Fatalf("MarkRead() error = %v", err)
	}
	if first.ReadAt.Before(msg.SentAt) {
		t.Errorf("read_at %v is before sent_at %v", first.ReadAt, msg.SentAt)
	}

	second, err := svc.MarkRead(ctx, msg.ID)
	if err != nil {
		t.Fatalf("second MarkRead() error = %v", err)
	}
	if !second.ReadAt.Equal(first.ReadAt) {
		t.Errorf("second MarkRead() moved read_at from %v to %v", first.ReadAt, second.ReadAt)
	}

	detail, _ := svc.Get(ctx, msg.ID)
	if detail.ReadAt == nil || !detail.ReadAt.Equal(first.ReadAt) {
		t.Errorf("Get().ReadAt = %v, want %v", detail.ReadAt, first.ReadAt)
	}
}

func TestMarkRead_NotFound(t *testing.T) {
	svc, _ := newTestMessageService(t)

	_, err := svc.MarkRead(context.Background(), 77)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("MarkRead() error = %v, want ErrNotFound", err)
	}
}
