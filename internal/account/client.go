// Package account signs users in and out and edits their profile majors.
package account

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"saintplus-client/internal/gateway"
	"saintplus-client/internal/session"
	"saintplus-client/internal/shared/auth"
	"saintplus-client/internal/shared/telemetry"
)

var (
	// ErrLoginFailed means the backend rejected the credentials.
	ErrLoginFailed = errors.New("login failed")
	// ErrInvalidInput is returned before any request is made.
	ErrInvalidInput = errors.New("invalid input")
)

// Credentials are the username/password pair for login.
type Credentials struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Registration creates a new account.
type Registration struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Password string `json:"password" validate:"required,min=4"`
	Nickname string `json:"nickname,omitempty" validate:"max=50"`
	Email    string `json:"email,omitempty" validate:"omitempty,email"`
}

// Majors is the profile's primary and optional secondary/tertiary majors.
type Majors struct {
	Major1 string `json:"major1" validate:"required"`
	Major2 string `json:"major2,omitempty"`
	Major3 string `json:"major3,omitempty"`
}

type userDTO struct {
	ID       flexibleID `json:"id"`
	Username string     `json:"username"`
	Nickname string     `json:"nickname"`
	Email    string     `json:"email"`
}

type loginResponse struct {
	Success bool    `json:"success"`
	Token   string  `json:"token"`
	User    userDTO `json:"user"`
	Message string  `json:"message"`
}

type ackResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Client calls the account endpoints through the session gateway.
type Client struct {
	gw       *gateway.Gateway
	validate *validator.Validate
	now      func() time.Time
}

func NewClient(gw *gateway.Gateway) *Client {
	return &Client{gw: gw, validate: validator.New(), now: time.Now}
}

// Login exchanges credentials for a session and installs it.
func (c *Client) Login(ctx context.Context, creds Credentials) (session.Session, error) {
	creds.Username = strings.TrimSpace(creds.Username)
	if err := c.validate.Struct(creds); err != nil {
		return session.Session{}, fmt.Errorf("%w: %s", ErrInvalidInput, describe(err))
	}

	resp, err := c.gw.Send(ctx, gateway.Request{
		Method:    http.MethodPost,
		Path:      "/api/auth/login",
		JSON:      creds,
		Anonymous: true,
	})
	if err != nil {
		var se *gateway.StatusError
		if errors.As(err, &se) && (se.StatusCode == http.StatusUnauthorized || se.StatusCode == http.StatusBadRequest) {
			return session.Session{}, fmt.Errorf("%w: %s", ErrLoginFailed, se.Message)
		}
		return session.Session{}, err
	}

	var body loginResponse
	if err := resp.DecodeJSON(&body); err != nil {
		return session.Session{}, err
	}
	if !body.Success || strings.TrimSpace(body.Token) == "" {
		return session.Session{}, fmt.Errorf("%w: %s", ErrLoginFailed, body.Message)
	}

	s := session.Session{
		Token: body.Token,
		Principal: session.Principal{
			ID:          string(body.User.ID),
			DisplayName: displayName(body.User),
			Username:    body.User.Username,
			Email:       body.User.Email,
		},
		ExpiresAt: auth.ExpiresAt(body.Token),
		CreatedAt: c.now().UTC(),
	}
	if s.Principal.ID == "" {
		if claims, err := auth.ReadUnverified(body.Token); err == nil {
			s.Principal.ID = claims.Subject
		}
	}
	if err := c.gw.Establish(ctx, s); err != nil {
		return session.Session{}, err
	}
	telemetry.Info("account.login", map[string]any{"user_id": s.Principal.ID})
	return s, nil
}

// Logout destroys the local session. There is no server call.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.gw.EndSession(ctx); err != nil {
		return err
	}
	telemetry.Info("account.logout", nil)
	return nil
}

// Register creates an account. It does not sign in.
func (c *Client) Register(ctx context.Context, reg Registration) error {
	reg.Username = strings.TrimSpace(reg.Username)
	reg.Email = strings.TrimSpace(reg.Email)
	if err := c.validate.Struct(reg); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidInput, describe(err))
	}
	resp, err := c.gw.Send(ctx, gateway.Request{
		Method:    http.MethodPost,
		Path:      "/api/auth/register",
		JSON:      reg,
		Anonymous: true,
	})
	if err != nil {
		return err
	}
	return ack(resp)
}

// UpdateMajors stores the profile majors for the signed-in user.
func (c *Client) UpdateMajors(ctx context.Context, m Majors) error {
	m.Major1 = strings.TrimSpace(m.Major1)
	m.Major2 = strings.TrimSpace(m.Major2)
	m.Major3 = strings.TrimSpace(m.Major3)
	if err := c.validate.Struct(m); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidInput, describe(err))
	}
	resp, err := c.gw.Send(ctx, gateway.Request{
		Method: http.MethodPost,
		Path:   "/api/auth/update-majors",
		JSON:   m,
	})
	if err != nil {
		return err
	}
	return ack(resp)
}

// Current returns the signed-in principal.
func (c *Client) Current() (session.Principal, bool) {
	s, ok := c.gw.Session()
	return s.Principal, ok
}

func ack(resp *gateway.Response) error {
	var body ackResponse
	if err := resp.DecodeJSON(&body); err != nil {
		return err
	}
	if !body.Success {
		return fmt.Errorf("request rejected: %s", body.Message)
	}
	return nil
}

func displayName(u userDTO) string {
	if n := strings.TrimSpace(u.Nickname); n != "" {
		return n
	}
	return u.Username
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, strings.ToLower(fe.Field())+" "+fe.Tag())
	}
	return strings.Join(parts, ", ")
}
