// Package session holds the authenticated session of a client instance and
// persists it between runs.
package session

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrNoSession is returned by stores that hold nothing.
var ErrNoSession = errors.New("no session")

// Principal identifies the signed-in user.
type Principal struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Username    string `json:"username,omitempty"`
	Email       string `json:"email,omitempty"`
}

// Session is the credential plus identity created at login.
type Session struct {
	Token     string    `json:"token"`
	Principal Principal `json:"principal"`
	// ExpiresAt comes from the token's exp claim; zero when unknown.
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Valid reports whether the session carries a credential.
func (s Session) Valid() bool {
	return strings.TrimSpace(s.Token) != ""
}

// Expired reports whether the token's own expiry has passed.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Store is durable client storage for at most one session.
type Store interface {
	Load(ctx context.Context) (Session, error)
	Save(ctx context.Context, s Session) error
	Clear(ctx context.Context) error
}
