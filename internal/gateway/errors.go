package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrAuthorizationExpired marks a 401 on a request that carried the session.
	ErrAuthorizationExpired = errors.New("authorization expired")
	// ErrUnauthorized marks a 401 on a request sent without a session.
	ErrUnauthorized = errors.New("unauthorized")
)

// StatusError is a non-2xx backend response.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Code       string
	Message    string
	// SessionAttached is true when the request carried the bearer credential.
	SessionAttached bool
}

func (e *StatusError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, msg)
}

func (e *StatusError) Unwrap() error {
	if e.StatusCode != http.StatusUnauthorized {
		return nil
	}
	if e.SessionAttached {
		return ErrAuthorizationExpired
	}
	return ErrUnauthorized
}

// StatusCode returns the HTTP status of err, or 0 when err is not a StatusError.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

// newStatusError reads the common error envelopes: {"message"} and
// {"error":{"code","message"}}.
func newStatusError(req Request, status int, body []byte, attached bool) *StatusError {
	se := &StatusError{
		Method:          req.Method,
		Path:            req.Path,
		StatusCode:      status,
		SessionAttached: attached,
	}
	var envelope struct {
		Message string          `json:"message"`
		Error   json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		se.Message = envelope.Message
		var nested struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if len(envelope.Error) > 0 && json.Unmarshal(envelope.Error, &nested) == nil {
			se.Code = nested.Code
			if se.Message == "" {
				se.Message = nested.Message
			}
		} else if len(envelope.Error) > 0 {
			var s string
			if json.Unmarshal(envelope.Error, &s) == nil && se.Message == "" {
				se.Message = s
			}
		}
	} else if text := strings.TrimSpace(string(body)); text != "" && len(text) < 512 {
		se.Message = text
	}
	return se
}
