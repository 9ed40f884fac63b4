package stubserver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saintplus-client/internal/extract"
	"saintplus-client/internal/workerproc"
)

func TestStatisticalFiltersSemesterAndTaken(t *testing.T) {
	c := DefaultCatalog()
	ranked := c.Statistical(2, nil, map[string]bool{"CSE4070": true}, 0)
	require.NotEmpty(t, ranked)
	for _, r := range ranked {
		assert.Equal(t, 2, r.Course.Semester)
		assert.NotEqual(t, "CSE4070", r.Course.Code)
	}
	for i := 1; i < len(ranked); i++ {
		assert.GreaterOrEqual(t, ranked[i-1].Score, ranked[i].Score)
	}
}

func TestStatisticalScoresAreNotNormalized(t *testing.T) {
	ranked := DefaultCatalog().Statistical(0, []string{"CSE"}, nil, 3)
	require.Len(t, ranked, 3)
	assert.Greater(t, ranked[0].Score, 1.0)
}

func TestAIScoresStayInUnitRange(t *testing.T) {
	ranked := DefaultCatalog().AI("데이터 분석 머신러닝", "CSE", nil, 0)
	require.NotEmpty(t, ranked)
	for _, r := range ranked {
		assert.GreaterOrEqual(t, r.Score, 0.0)
		assert.LessOrEqual(t, r.Score, 1.0)
	}
	assert.Empty(t, DefaultCatalog().AI("   ", "CSE", nil, 0))
}

func TestUserStoreLifecycle(t *testing.T) {
	s := NewUserStore()
	s.cost = 4

	u, err := s.Register("kim", "pass1234", "김학생", "")
	require.NoError(t, err)
	assert.EqualValues(t, 1, u.ID)

	_, err = s.Register("kim", "other", "", "")
	assert.ErrorIs(t, err, ErrUsernameTaken)

	_, err = s.Authenticate("kim", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = s.Authenticate("nobody", "x")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	got, err := s.Authenticate("kim", "pass1234")
	require.NoError(t, err)
	assert.Equal(t, "김학생", got.Nickname)

	require.NoError(t, s.UpdateMajors("1", "컴퓨터학부", " ", "경영학부"))
	got, err = s.Get("1")
	require.NoError(t, err)
	assert.Equal(t, []string{"컴퓨터학부", "경영학부"}, got.Majors)

	require.NoError(t, s.RecordTranscript(context.Background(), workerproc.Transcript{
		UserID:  "1",
		Majors:  []string{"컴퓨터학부"},
		Courses: []extract.CourseRecord{{Code: "CSE2003"}, {Code: "CSE3013", Failed: true}},
	}))
	got, err = s.Get("1")
	require.NoError(t, err)
	assert.Len(t, got.Courses, 2)
	assert.Equal(t, map[string]bool{"CSE2003": true}, takenCourses(got))

	assert.ErrorIs(t, s.UpdateMajors("99", "x"), ErrUserNotFound)
	_, err = s.Get("abc")
	assert.ErrorIs(t, err, ErrUserNotFound)
}
