package recommendations

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatScore(t *testing.T) {
	assert.Equal(t, "87.50", FormatScore(87.5, RelativeRank))
	assert.Equal(t, "1234.00", FormatScore(1234, RelativeRank))
	assert.Equal(t, "91.2%", FormatScore(0.912, Similarity))
	assert.Equal(t, "0.0%", FormatScore(0, Similarity))
	assert.Equal(t, "-", FormatScore(math.NaN(), Similarity))
}

func TestResultScoreTextFollowsSemantics(t *testing.T) {
	stat := Result{Source: SourceStatistical, Score: 87.5, ScoreSemantics: SemanticsOf(SourceStatistical)}
	ai := Result{Source: SourceAI, Score: 0.5, ScoreSemantics: SemanticsOf(SourceAI)}
	assert.Equal(t, "87.50", stat.ScoreText())
	assert.Equal(t, "50.0%", ai.ScoreText())
}

func TestSemesterLabel(t *testing.T) {
	assert.Equal(t, "전체", SemesterLabel(0))
	assert.Equal(t, "1학기", SemesterLabel(1))
	assert.Equal(t, "2학기", SemesterLabel(2))
	assert.Equal(t, "여름학기", SemesterLabel(3))
	assert.Equal(t, "겨울학기", SemesterLabel(4))
}

func TestCourseDisplayFallbacks(t *testing.T) {
	var c CourseRef
	assert.Equal(t, "N/A", c.DisplayCode())
	assert.Equal(t, "과목명 없음", c.DisplayName())
	c = CourseRef{Code: "CSE301", Name: "운영체제"}
	assert.Equal(t, "CSE301", c.DisplayCode())
	assert.Equal(t, "운영체제", c.DisplayName())
}
