package auth

import (
	"errors"
	"time"

	sessionstore "github.com/dalemusser/scratchstarter/internal/app/store/sessions"
	userstore "github.com/dalemusser/scratchstarter/internal/app/store/users"
)

// ErrAuthRequired is returned by RequireAuth when the request carries no
// valid session.
var ErrAuthRequired = errors.New("auth: authentication required")

// User is the identity read out of a session.
type User struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	Image         string `json:"image,omitempty"`
	EmailVerified bool   `json:"emailVerified"`
}

// Session is the server-side record behind the session cookie.
type Session struct {
	Token     string    `json:"-"`
	UserID    string    `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
	IPAddress string    `json:"ipAddress,omitempty"`
	UserAgent string    `json:"userAgent,omitempty"`
}

// Status is the outcome of a session lookup.
type Status int

const (
	Unauthenticated Status = iota
	Authenticated
	BackendUnavailable
)

func (s Status) String() string {
	switch s {
	case Authenticated:
		return "authenticated"
	case BackendUnavailable:
		return "backend_unavailable"
	default:
		return "unauthenticated"
	}
}

// Result is a session lookup. User and Session are set only when Status is
// Authenticated; Err is set only when Status is BackendUnavailable.
type Result struct {
	Status  Status
	User    *User
	Session *Session
	Err     error
}

func fromUserRow(u *userstore.User) *User {
	return &User{
		ID:            u.ID,
		Name:          u.Name,
		Email:         u.Email,
		Image:         u.Image,
		EmailVerified: u.EmailVerified,
	}
}

func fromSessionRow(s *sessionstore.Session) *Session {
	return &Session{
		Token:     s.Token,
		UserID:    s.UserID,
		ExpiresAt: s.Expires(),
		IPAddress: s.IPAddress,
		UserAgent: s.UserAgent,
	}
}
