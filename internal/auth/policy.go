package auth

import "github.com/sakif/messagely/internal/model"

// Policy names the access rule a route requires.
type Policy int

const (
	// LoggedIn requires any valid token.
	LoggedIn Policy = iota
	// CorrectUser requires a valid token whose username equals the
	// {username} path parameter.
	CorrectUser
)

func (p Policy) String() string {
	switch p {
	case LoggedIn:
		return "logged-in"
	case CorrectUser:
		return "correct-user"
	default:
		return "unknown"
	}
}

// CanViewMessage reports whether caller may read msg: only its sender or
// its recipient.
func CanViewMessage(caller string, msg *model.MessageDetail) bool {
	if msg == nil || caller == "" {
		return false
	}
	return caller == msg.FromUser.Username || caller == msg.ToUser.Username
}

// CanMarkRead reports whether caller may mark msg as read: the recipient only.
func CanMarkRead(caller string, msg *model.MessageDetail) bool {
	if msg == nil || caller == "" {
		return false
	}
	return caller == msg.ToUser.Username
}
