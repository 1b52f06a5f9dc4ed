package model

import "time"

// Message is a newly sent direct message, as returned by POST /messages.
// A fresh message is always unread, so ReadAt is not part of this shape.
type Message struct {
	ID           int64     `json:"id"`
	FromUsername string    `json:"from_username"`
	ToUsername   string    `json:"to_username"`
	Body         string    `json:"body"`
	SentAt       time.Time `json:"sent_at"`
}

// MessageDetail is a message joined with both parties' profile snippets.
//
// ReadAt is a pointer so that an unread message serialises as
// "read_at": null rather than the zero time.
type MessageDetail struct {
	ID       int64          `json:"id"`
	Body     string         `json:"body"`
	SentAt   time.Time      `json:"sent_at"`
	ReadAt   *time.Time     `json:"read_at"`
	FromUser ProfileSnippet `json:"from_user"`
	ToUser   ProfileSnippet `json:"to_user"`
}

// SentMessage is one entry of GET /users/{username}/from.
type SentMessage struct {
	ID     int64          `json:"id"`
	ToUser ProfileSnippet `json:"to_user"`
	Body   string         `json:"body"`
	SentAt time.Time      `json:"sent_at"`
	ReadAt *time.Time     `json:"read_at"`
}

// ReceivedMessage is one entry of GET /users/{username}/to.
type ReceivedMessage struct {
	ID       int64          `json:"id"`
	FromUser ProfileSnippet `json:"from_user"`
	Body     string         `json:"body"`
	SentAt   time.Time      `json:"sent_at"`
	ReadAt   *time.Time     `json:"read_at"`
}

// ReadReceipt is the result of marking a message read.
type ReadReceipt struct {
	ID     int64     `json:"id"`
	ReadAt time.Time `json:"read_at"`
}
