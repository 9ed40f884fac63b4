package stubserver

import (
	"context"
	"fmt"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saintplus-client/internal/extract"
	"saintplus-client/internal/workerproc"
)

func newUser(t *testing.T, users *UserStore, name string) string {
	t.Helper()
	users.cost = 4
	u, err := users.Register(name, "pass1234", "", "")
	require.NoError(t, err)
	return strconv.FormatInt(u.ID, 10)
}

func TestSaveCourseRejectsDuplicatesAndFullSemester(t *testing.T) {
	users := NewUserStore()
	id := newUser(t, users, "kim")

	first, err := users.SaveCourse(id, SavedCourse{Code: "CSE3013", Name: "운영체제", TargetSemester: "2025-1"})
	require.NoError(t, err)
	assert.NotZero(t, first.ID)

	_, err = users.SaveCourse(id, SavedCourse{Code: "CSE3013", Name: "운영체제", TargetSemester: "2025-2"})
	assert.ErrorIs(t, err, ErrCourseAlreadySaved)

	for i := 1; i < MaxSavedPerSemester; i++ {
		_, err := users.SaveCourse(id, SavedCourse{Code: fmt.Sprintf("GEN%03d", i), Name: "교양", TargetSemester: "2025-1"})
		require.NoError(t, err)
	}
	_, err = users.SaveCourse(id, SavedCourse{Code: "CSE4070", Name: "기계학습", TargetSemester: "2025-1"})
	assert.ErrorIs(t, err, ErrSemesterFull)

	// Another semester still has room.
	_, err = users.SaveCourse(id, SavedCourse{Code: "CSE4070", Name: "기계학습", TargetSemester: "2025-2"})
	require.NoError(t, err)

	saved, err := users.SavedCourses(id)
	require.NoError(t, err)
	assert.Len(t, saved, MaxSavedPerSemester+1)
	assert.Equal(t, "CSE3013", saved[0].Code)
}

func TestRemoveSavedCourseIsIdempotent(t *testing.T) {
	users := NewUserStore()
	id := newUser(t, users, "kim")
	_, err := users.SaveCourse(id, SavedCourse{Code: "CSE3013", Name: "운영체제"})
	require.NoError(t, err)

	require.NoError(t, users.RemoveSavedCourse(id, "CSE3013"))
	require.NoError(t, users.RemoveSavedCourse(id, "CSE3013"))
	saved, err := users.SavedCourses(id)
	require.NoError(t, err)
	assert.Empty(t, saved)

	assert.ErrorIs(t, users.RemoveSavedCourse("999", "CSE3013"), ErrUserNotFound)
}

func TestCourseStatsCountsOrdinalSemesters(t *testing.T) {
	users := NewUserStore()
	ctx := context.Background()

	first := newUser(t, users, "kim")
	require.NoError(t, users.RecordTranscript(ctx, workerproc.Transcript{UserID: first, Courses: []extract.CourseRecord{
		{Term: "2023-1", Code: "MAT2410"},
		{Term: "2023-S", Code: "GEN001"},
		{Term: "2023-2", Code: "CSE2003"},
	}}))
	second := newUser(t, users, "lee")
	require.NoError(t, users.RecordTranscript(ctx, workerproc.Transcript{UserID: second, Courses: []extract.CourseRecord{
		{Term: "2022-2", Code: "MAT2410"},
		{Term: "2022-W", Code: "CSE2003"},
	}}))

	stats := users.CourseStats("cse2003")
	require.Len(t, stats, 9)
	byOrdinal := map[float64]int64{}
	for i, s := range stats {
		if i > 0 {
			assert.Less(t, stats[i-1].Ordinal, s.Ordinal)
		}
		byOrdinal[s.Ordinal] = s.Count
	}
	assert.Equal(t, int64(1), byOrdinal[2])
	assert.Equal(t, int64(1), byOrdinal[1.5])
	assert.Equal(t, int64(0), byOrdinal[8])

	assert.Equal(t, "2학기", semesterLabel(2))
	assert.Equal(t, "1.5학기", semesterLabel(1.5))
}
