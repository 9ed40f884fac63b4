package stubserver

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"

	"saintplus-client/internal/extract"
	"saintplus-client/internal/shared/server/middleware"
	"saintplus-client/internal/shared/server/respond"
	"saintplus-client/internal/shared/telemetry"
)

// MaxSavedPerSemester caps the saved courses planned for one target semester.
const MaxSavedPerSemester = 8

// statSemesters is the number of ordinal semesters always reported.
const statSemesters = 8

var (
	ErrCourseAlreadySaved = errors.New("course already saved")
	ErrSemesterFull       = errors.New("target semester is full")
)

// SavedCourse is a course the user plans to take.
type SavedCourse struct {
	ID             int64
	Code           string
	Name           string
	TargetSemester string
}

// SavedCourses lists the user's saved courses in insertion order.
func (s *UserStore) SavedCourses(id string) ([]SavedCourse, error) {
	u, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	return u.Saved, nil
}

// SaveCourse adds a course to the user's plan.
func (s *UserStore) SaveCourse(id string, course SavedCourse) (SavedCourse, error) {
	var saved SavedCourse
	var rejected error
	err := s.update(id, func(u *User) {
		planned := 0
		for _, existing := range u.Saved {
			if existing.TargetSemester == course.TargetSemester {
				planned++
			}
			if existing.Code == course.Code {
				rejected = ErrCourseAlreadySaved
				return
			}
		}
		if planned >= MaxSavedPerSemester {
			rejected = ErrSemesterFull
			return
		}
		s.nextSavedID++
		course.ID = s.nextSavedID
		u.Saved = append(u.Saved, course)
		saved = course
	})
	if err != nil {
		return SavedCourse{}, err
	}
	return saved, rejected
}

// RemoveSavedCourse drops a saved course. Removing an unsaved code is a no-op.
func (s *UserStore) RemoveSavedCourse(id, code string) error {
	return s.update(id, func(u *User) {
		kept := u.Saved[:0]
		for _, c := range u.Saved {
			if c.Code != code {
				kept = append(kept, c)
			}
		}
		u.Saved = kept
	})
}

// SemesterStat is one bucket of a course's enrollment histogram.
type SemesterStat struct {
	Ordinal float64
	Count   int64
}

// CourseStats counts, across every recorded transcript, the ordinal semester
// in which students took code. Regular terms count 1, 2, 3...; a summer or
// winter term sits half a step after the regular term before it. Semesters
// one to eight are always present.
func (s *UserStore) CourseStats(code string) []SemesterStat {
	counts := make(map[float64]int64, statSemesters)
	for i := 1; i <= statSemesters; i++ {
		counts[float64(i)] = 0
	}

	s.mu.RLock()
	for _, u := range s.byID {
		ordinals := termOrdinals(u.Courses)
		for _, c := range u.Courses {
			if strings.EqualFold(c.Code, code) {
				counts[ordinals[c.Term]]++
			}
		}
	}
	s.mu.RUnlock()

	out := make([]SemesterStat, 0, len(counts))
	for ordinal, n := range counts {
		if ordinal > 0 {
			out = append(out, SemesterStat{Ordinal: ordinal, Count: n})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ordinal < out[j].Ordinal })
	return out
}

func termOrdinals(courses []extract.CourseRecord) map[string]float64 {
	type term struct {
		name  string
		year  string
		order int
		extra bool
	}
	seen := map[string]term{}
	for _, c := range courses {
		if _, ok := seen[c.Term]; ok || c.Term == "" {
			continue
		}
		year, _, _ := strings.Cut(c.Term, "-")
		t := term{name: c.Term, year: year}
		switch c.Semester() {
		case 1:
			t.order = 0
		case 3:
			t.order, t.extra = 1, true
		case 2:
			t.order = 2
		case 4:
			t.order, t.extra = 3, true
		default:
			continue
		}
		seen[c.Term] = t
	}

	terms := make([]term, 0, len(seen))
	for _, t := range seen {
		terms = append(terms, t)
	}
	sort.Slice(terms, func(i, j int) bool {
		if terms[i].year != terms[j].year {
			return terms[i].year < terms[j].year
		}
		return terms[i].order < terms[j].order
	})

	out := make(map[string]float64, len(terms))
	regular := 0
	for _, t := range terms {
		if t.extra {
			out[t.name] = float64(regular) + 0.5
			continue
		}
		regular++
		out[t.name] = float64(regular)
	}
	return out
}

// CourseHandler serves saved courses and per-course statistics.
type CourseHandler struct {
	Users *UserStore
}

func NewCourseHandler(users *UserStore) *CourseHandler {
	return &CourseHandler{Users: users}
}

type savedCourseRequest struct {
	CourseName     string `json:"courseName"`
	TargetSemester string `json:"targetSemester"`
}

type savedCourseResponse struct {
	ID             int64  `json:"id"`
	CourseCode     string `json:"courseCode"`
	CourseName     string `json:"courseName"`
	TargetSemester string `json:"targetSemester,omitempty"`
}

type courseStatsResponse struct {
	Labels []string `json:"labels"`
	Values []int64  `json:"values"`
}

// RegisterSavedRoutes attaches /api/saved-courses.
func (h *CourseHandler) RegisterSavedRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.listSaved)
	rg.POST("/:courseCode", h.save)
	rg.DELETE("/:courseCode", h.remove)
}

// RegisterStatsRoutes attaches /api/course-stats.
func (h *CourseHandler) RegisterStatsRoutes(rg *gin.RouterGroup) {
	rg.GET("/:subjectCode", h.stats)
}

func (h *CourseHandler) listSaved(c *gin.Context) {
	saved, err := h.Users.SavedCourses(middleware.UserIDFromContext(c))
	if err != nil {
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
		return
	}
	out := make([]savedCourseResponse, 0, len(saved))
	for _, s := range saved {
		out = append(out, toSavedResponse(s))
	}
	respond.OK(c, out)
}

func (h *CourseHandler) save(c *gin.Context) {
	code := strings.TrimSpace(c.Param("courseCode"))
	var req savedCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	req.CourseName = strings.TrimSpace(req.CourseName)
	if code == "" || req.CourseName == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "courseCode and courseName are required", nil)
		return
	}

	userID := middleware.UserIDFromContext(c)
	saved, err := h.Users.SaveCourse(userID, SavedCourse{
		Code:           code,
		Name:           req.CourseName,
		TargetSemester: strings.TrimSpace(req.TargetSemester),
	})
	switch {
	case errors.Is(err, ErrCourseAlreadySaved):
		respond.Error(c, http.StatusConflict, "already_saved", "이미 장바구니에 담긴 과목입니다.", nil)
		return
	case errors.Is(err, ErrSemesterFull):
		respond.Error(c, http.StatusConflict, "semester_full", fmt.Sprintf("한 학기에는 최대 %d과목까지 담을 수 있습니다.", MaxSavedPerSemester), nil)
		return
	case errors.Is(err, ErrUserNotFound):
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
		return
	case err != nil:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "과목 저장에 실패했습니다.", nil)
		return
	}
	telemetry.Info("stub.course_saved", map[string]any{"user_id": userID, "course": code})
	respond.JSON(c, http.StatusCreated, toSavedResponse(saved))
}

func (h *CourseHandler) remove(c *gin.Context) {
	if err := h.Users.RemoveSavedCourse(middleware.UserIDFromContext(c), c.Param("courseCode")); err != nil {
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
		return
	}
	c.Status(http.StatusOK)
}

func (h *CourseHandler) stats(c *gin.Context) {
	code := strings.TrimSpace(c.Param("subjectCode"))
	if code == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "subjectCode is required", nil)
		return
	}
	buckets := h.Users.CourseStats(code)
	out := courseStatsResponse{
		Labels: make([]string, 0, len(buckets)),
		Values: make([]int64, 0, len(buckets)),
	}
	for _, b := range buckets {
		out.Labels = append(out.Labels, semesterLabel(b.Ordinal))
		out.Values = append(out.Values, b.Count)
	}
	respond.OK(c, out)
}

func semesterLabel(ordinal float64) string {
	if ordinal == float64(int(ordinal)) {
		return fmt.Sprintf("%d학기", int(ordinal))
	}
	return fmt.Sprintf("%.1f학기", ordinal)
}

func toSavedResponse(s SavedCourse) savedCourseResponse {
	return savedCourseResponse{
		ID:             s.ID,
		CourseCode:     s.Code,
		CourseName:     s.Name,
		TargetSemester: s.TargetSemester,
	}
}
