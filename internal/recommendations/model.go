// Package recommendations fetches course recommendations from the statistical
// and AI sources and keeps the latest result set of each.
package recommendations

import (
	"fmt"
	"math"
	"strconv"
)

// Source identifies where a result set came from.
type Source string

const (
	SourceStatistical Source = "statistical"
	SourceAI          Source = "ai"
)

// ScoreSemantics says how a score is to be read and shown.
type ScoreSemantics string

const (
	// RelativeRank is an unbounded ranking signal; higher is better.
	RelativeRank ScoreSemantics = "relative-rank"
	// Similarity is a normalized similarity in [0,1].
	Similarity ScoreSemantics = "similarity-0to1"
)

// SemanticsOf returns the score semantics a source produces.
func SemanticsOf(src Source) ScoreSemantics {
	if src == SourceAI {
		return Similarity
	}
	return RelativeRank
}

// CourseRef identifies a recommended course.
type CourseRef struct {
	Code      string
	Name      string
	Professor string
	Credit    float64
}

// DisplayCode returns the course code or a placeholder.
func (c CourseRef) DisplayCode() string {
	if c.Code == "" {
		return "N/A"
	}
	return c.Code
}

// DisplayName returns the course name or a placeholder.
func (c CourseRef) DisplayName() string {
	if c.Name == "" {
		return "과목명 없음"
	}
	return c.Name
}

// Result is one recommended course. StudentCount, Track and Major are only
// filled by the statistical source.
type Result struct {
	Source         Source
	Course         CourseRef
	Score          float64
	ScoreSemantics ScoreSemantics
	StudentCount   int
	Track          string
	Major          string
}

// ScoreText formats the score according to its semantics.
func (r Result) ScoreText() string {
	return FormatScore(r.Score, r.ScoreSemantics)
}

// FormatScore renders a relative rank with two decimals and a similarity as a
// percentage with one decimal.
func FormatScore(score float64, semantics ScoreSemantics) string {
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return "-"
	}
	switch semantics {
	case Similarity:
		return strconv.FormatFloat(score*100, 'f', 1, 64) + "%"
	default:
		return strconv.FormatFloat(score, 'f', 2, 64)
	}
}

// SemesterLabel names a semester filter value. Zero means all semesters.
func SemesterLabel(semester int) string {
	switch semester {
	case 0:
		return "전체"
	case 1:
		return "1학기"
	case 2:
		return "2학기"
	case 3:
		return "여름학기"
	case 4:
		return "겨울학기"
	default:
		return fmt.Sprintf("%d학기", semester)
	}
}

// ValidationError rejects a fetch before any request is made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
