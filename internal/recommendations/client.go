package recommendations

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"saintplus-client/internal/gateway"
	"saintplus-client/internal/shared/telemetry"
)

const basePath = "/api/recommendations"

type courseDTO struct {
	CourseCode string  `json:"courseCode"`
	CourseName string  `json:"courseName"`
	Professor  string  `json:"professor"`
	Credit     float64 `json:"credit"`
}

type resultDTO struct {
	Course       *courseDTO `json:"course"`
	Score        float64    `json:"score"`
	StudentCount int        `json:"studentCount"`
	TrackName    string     `json:"trackName"`
	MajorName    string     `json:"majorName"`
}

// Client calls the recommendation endpoints through the session gateway.
type Client struct {
	gw *gateway.Gateway
}

func NewClient(gw *gateway.Gateway) *Client {
	return &Client{gw: gw}
}

// Statistical fetches the precomputed ranking. semester 0 means no filter.
func (c *Client) Statistical(ctx context.Context, semester int) ([]Result, error) {
	query := url.Values{}
	if semester > 0 {
		query.Set("semester", strconv.Itoa(semester))
	}
	return c.fetch(ctx, SourceStatistical, "/statistics", query)
}

// AI runs a prompt search. An empty major is omitted so the server default applies.
func (c *Client) AI(ctx context.Context, prompt, major string) ([]Result, error) {
	query := url.Values{}
	query.Set("prompt", prompt)
	if major = strings.TrimSpace(major); major != "" {
		query.Set("major", major)
	}
	return c.fetch(ctx, SourceAI, "/ai", query)
}

func (c *Client) fetch(ctx context.Context, src Source, path string, query url.Values) ([]Result, error) {
	resp, err := c.gw.Send(ctx, gateway.Request{
		Method: http.MethodGet,
		Path:   basePath + path,
		Query:  query,
	})
	if err != nil {
		return nil, err
	}
	var body []resultDTO
	if err := resp.DecodeJSON(&body); err != nil {
		return nil, err
	}
	return toResults(src, body), nil
}

func toResults(src Source, body []resultDTO) []Result {
	semantics := SemanticsOf(src)
	out := make([]Result, 0, len(body))
	for _, item := range body {
		r := Result{
			Source:         src,
			Score:          item.Score,
			ScoreSemantics: semantics,
			StudentCount:   item.StudentCount,
			Track:          item.TrackName,
			Major:          item.MajorName,
		}
		if item.Course != nil {
			r.Course = CourseRef{
				Code:      item.Course.CourseCode,
				Name:      item.Course.CourseName,
				Professor: item.Course.Professor,
				Credit:    item.Course.Credit,
			}
		}
		if semantics == Similarity && (r.Score < 0 || r.Score > 1) {
			clamped := clamp01(r.Score)
			telemetry.Warn("recommendations.score_clamped", map[string]any{
				"course": r.Course.Code,
				"score":  r.Score,
				"to":     clamped,
			})
			r.Score = clamped
		}
		out = append(out, r)
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
