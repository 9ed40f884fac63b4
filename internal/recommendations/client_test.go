package recommendations

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saintplus-client/internal/gateway"
	"saintplus-client/internal/session"
)

func newClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	gw := gateway.New(srv.URL, session.NewState(session.NewMemoryStore()))
	require.NoError(t, gw.Establish(context.Background(), session.Session{
		Token:     "tok",
		Principal: session.Principal{ID: "1"},
		ExpiresAt: time.Now().Add(time.Hour),
	}))
	return NewClient(gw)
}

func TestStatisticalKeepsRankScoreUnclamped(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/recommendations/statistics", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("semester"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[{"course":{"courseCode":"CSE301","courseName":"운영체제"},"score":87.5,"studentCount":42,"trackName":"소프트웨어","majorName":"컴퓨터학부"}]`))
	})

	results, err := c.Statistical(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, results, 1)
	r := results[0]
	assert.Equal(t, SourceStatistical, r.Source)
	assert.Equal(t, "CSE301", r.Course.Code)
	assert.Equal(t, 87.5, r.Score)
	assert.Equal(t, RelativeRank, r.ScoreSemantics)
	assert.Equal(t, "87.50", r.ScoreText())
	assert.Equal(t, 42, r.StudentCount)
	assert.Equal(t, "소프트웨어", r.Track)
}

func TestStatisticalWithoutFilterOmitsSemester(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, present := r.URL.Query()["semester"]
		assert.False(t, present)
		_, _ = w.Write([]byte(`[]`))
	})
	results, err := c.Statistical(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestAIOmitsEmptyMajorAndClampsScores(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/recommendations/ai", r.URL.Path)
		assert.Equal(t, "데이터 분석", r.URL.Query().Get("prompt"))
		_, present := r.URL.Query()["major"]
		assert.False(t, present)
		_, _ = w.Write([]byte(`[{"course":{"courseCode":"CSE410"},"score":1.3},{"course":null,"score":-0.2},{"course":{"courseCode":"STA201"},"score":0.75}]`))
	})

	results, err := c.AI(context.Background(), "데이터 분석", " ")
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, 1.0, results[0].Score)
	assert.Equal(t, 0.0, results[1].Score)
	assert.Equal(t, "N/A", results[1].Course.DisplayCode())
	assert.Equal(t, 0.75, results[2].Score)
	for _, r := range results {
		assert.Equal(t, Similarity, r.ScoreSemantics)
	}
}

func TestAISendsMajorWhenGiven(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "컴퓨터학부", r.URL.Query().Get("major"))
		_, _ = w.Write([]byte(`[]`))
	})
	_, err := c.AI(context.Background(), "AI", "컴퓨터학부")
	require.NoError(t, err)
}
