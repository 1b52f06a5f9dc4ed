// Package model defines the data structures used throughout the application.
package model

import "time"

// User is the full persisted user record.
//
// PasswordHash is tagged json:"-" so a User can never leak the hash through
// an accidental writeJSON. Handlers respond with Profile() instead.
type User struct {
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Phone        string    `json:"phone"`
	JoinAt       time.Time `json:"join_at"`
	LastLoginAt  time.Time `json:"last_login_at"`
}

// Profile returns the public view of the user.
func (u *User) Profile() *UserProfile {
	return &UserProfile{
		Username:    u.Username,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Phone:       u.Phone,
		JoinAt:      u.JoinAt,
		LastLoginAt: u.LastLoginAt,
	}
}

// UserProfile is returned by GET /users/{username} and by registration.
type UserProfile struct {
	Username    string    `json:"username"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	Phone       string    `json:"phone"`
	JoinAt      time.Time `json:"join_at"`
	LastLoginAt time.Time `json:"last_login_at"`
}

// ProfileSnippet is the subset of a user embedded in listings and message
// details.
type ProfileSnippet struct {
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
}

// LoginStamp is the result of recording a successful login.
type LoginStamp struct {
	Username    string    `json:"username"`
	LastLoginAt time.Time `json:"last_login_at"`
}
