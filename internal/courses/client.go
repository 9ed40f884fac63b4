// Package courses manages the user's saved-course plan and reads per-course
// enrollment statistics.
package courses

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"

	"saintplus-client/internal/gateway"
	"saintplus-client/internal/shared/telemetry"
)

var (
	// ErrInvalidInput is returned before any request is made.
	ErrInvalidInput = errors.New("invalid input")
	// ErrAlreadySaved means the course is already in the plan.
	ErrAlreadySaved = errors.New("course already saved")
	// ErrSemesterFull means the target semester reached its course limit.
	ErrSemesterFull = errors.New("target semester is full")
)

// SavedCourse is one entry of the user's plan.
type SavedCourse struct {
	ID             int64  `json:"id"`
	Code           string `json:"courseCode"`
	Name           string `json:"courseName"`
	TargetSemester string `json:"targetSemester,omitempty"`
}

// Plan adds a course to a target semester, e.g. 2025-1 or 2025-S.
type Plan struct {
	Code           string `validate:"required,max=20"`
	Name           string `validate:"required,max=100"`
	TargetSemester string `validate:"omitempty,max=10"`
}

// Stats is a course's enrollment histogram by ordinal semester.
type Stats struct {
	Labels []string `json:"labels"`
	Values []int64  `json:"values"`
}

// Total sums every bucket.
func (s Stats) Total() int64 {
	var n int64
	for _, v := range s.Values {
		n += v
	}
	return n
}

type saveRequest struct {
	CourseName     string `json:"courseName"`
	TargetSemester string `json:"targetSemester,omitempty"`
}

// Client calls the saved-course and course-stats endpoints through the
// session gateway.
type Client struct {
	gw       *gateway.Gateway
	validate *validator.Validate
}

func NewClient(gw *gateway.Gateway) *Client {
	return &Client{gw: gw, validate: validator.New()}
}

// Saved lists the plan in the order courses were added.
func (c *Client) Saved(ctx context.Context) ([]SavedCourse, error) {
	resp, err := c.gw.Send(ctx, gateway.Request{Method: http.MethodGet, Path: "/api/saved-courses"})
	if err != nil {
		return nil, err
	}
	var out []SavedCourse
	if err := resp.DecodeJSON(&out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []SavedCourse{}
	}
	return out, nil
}

// Save adds a course to the plan.
func (c *Client) Save(ctx context.Context, p Plan) (SavedCourse, error) {
	p.Code = strings.TrimSpace(p.Code)
	p.Name = strings.TrimSpace(p.Name)
	p.TargetSemester = strings.TrimSpace(p.TargetSemester)
	if err := c.validate.Struct(p); err != nil {
		return SavedCourse{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	resp, err := c.gw.Send(ctx, gateway.Request{
		Method: http.MethodPost,
		Path:   "/api/saved-courses/" + url.PathEscape(p.Code),
		JSON:   saveRequest{CourseName: p.Name, TargetSemester: p.TargetSemester},
	})
	if err != nil {
		return SavedCourse{}, conflict(err)
	}
	var out SavedCourse
	if err := resp.DecodeJSON(&out); err != nil {
		return SavedCourse{}, err
	}
	telemetry.Info("courses.saved", map[string]any{"course": out.Code, "target": out.TargetSemester})
	return out, nil
}

// Remove drops a course from the plan. Removing an unsaved course succeeds.
func (c *Client) Remove(ctx context.Context, code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return fmt.Errorf("%w: course code is required", ErrInvalidInput)
	}
	_, err := c.gw.Send(ctx, gateway.Request{
		Method: http.MethodDelete,
		Path:   "/api/saved-courses/" + url.PathEscape(code),
	})
	return err
}

// Stats reads how many students took subjectCode in each ordinal semester.
func (c *Client) Stats(ctx context.Context, subjectCode string) (Stats, error) {
	subjectCode = strings.TrimSpace(subjectCode)
	if subjectCode == "" {
		return Stats{}, fmt.Errorf("%w: subject code is required", ErrInvalidInput)
	}
	resp, err := c.gw.Send(ctx, gateway.Request{
		Method: http.MethodGet,
		Path:   "/api/course-stats/" + url.PathEscape(subjectCode),
	})
	if err != nil {
		return Stats{}, err
	}
	var out Stats
	if err := resp.DecodeJSON(&out); err != nil {
		return Stats{}, err
	}
	if len(out.Labels) != len(out.Values) {
		return Stats{}, fmt.Errorf("course stats: %d labels for %d values", len(out.Labels), len(out.Values))
	}
	return out, nil
}

// conflict maps a 409 onto the plan errors, keeping the server message.
func conflict(err error) error {
	var se *gateway.StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusConflict {
		return err
	}
	switch se.Code {
	case "semester_full":
		return fmt.Errorf("%w: %s", ErrSemesterFull, se.Message)
	default:
		return fmt.Errorf("%w: %s", ErrAlreadySaved, se.Message)
	}
}
