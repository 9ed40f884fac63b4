package stubserver

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"saintplus-client/internal/shared/server/middleware"
	"saintplus-client/internal/shared/server/respond"
)

const (
	defaultAIMajor = "CSE"
	resultLimit    = 10
)

// RecommendationHandler serves /api/recommendations.
type RecommendationHandler struct {
	Users   *UserStore
	Catalog *Catalog
}

func NewRecommendationHandler(users *UserStore, catalog *Catalog) *RecommendationHandler {
	return &RecommendationHandler{Users: users, Catalog: catalog}
}

type courseResponse struct {
	CourseCode string  `json:"courseCode"`
	CourseName string  `json:"courseName"`
	Professor  string  `json:"professor"`
	Credit     float64 `json:"credit"`
	Semester   int     `json:"semester"`
}

type recommendationResponse struct {
	Course                courseResponse `json:"course"`
	Score                 float64        `json:"score"`
	StudentCount          int            `json:"studentCount,omitempty"`
	AverageProximityScore float64        `json:"averageProximityScore,omitempty"`
	TrackName             string         `json:"trackName,omitempty"`
	MajorName             string         `json:"majorName,omitempty"`
}

// RegisterRoutes attaches recommendation routes to the router group.
func (h *RecommendationHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/statistics", h.statistics)
	rg.GET("/ai", h.ai)
}

func (h *RecommendationHandler) statistics(c *gin.Context) {
	semester := 0
	if raw := strings.TrimSpace(c.Query("semester")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 4 {
			respond.Error(c, http.StatusBadRequest, "validation_error", "semester must be 1-4", nil)
			return
		}
		semester = n
	}
	u, ok := h.user(c)
	if !ok {
		return
	}

	ranked := h.Catalog.Statistical(semester, u.Majors, takenCourses(u), resultLimit)
	out := make([]recommendationResponse, 0, len(ranked))
	for _, r := range ranked {
		item := toResponse(r)
		item.StudentCount = r.Course.StudentCount
		item.AverageProximityScore = r.Course.Proximity
		item.TrackName = r.Course.Track
		item.MajorName = r.Course.Major
		out = append(out, item)
	}
	respond.OK(c, out)
}

func (h *RecommendationHandler) ai(c *gin.Context) {
	prompt := strings.TrimSpace(c.Query("prompt"))
	if prompt == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "prompt is required", nil)
		return
	}
	major := strings.TrimSpace(c.Query("major"))
	if major == "" {
		major = defaultAIMajor
	}
	u, ok := h.user(c)
	if !ok {
		return
	}

	ranked := h.Catalog.AI(prompt, major, takenCourses(u), resultLimit)
	out := make([]recommendationResponse, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, toResponse(r))
	}
	respond.OK(c, out)
}

func (h *RecommendationHandler) user(c *gin.Context) (User, bool) {
	u, err := h.Users.Get(middleware.UserIDFromContext(c))
	if err != nil {
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
		return User{}, false
	}
	return u, true
}

func toResponse(r Ranked) recommendationResponse {
	return recommendationResponse{
		Course: courseResponse{
			CourseCode: r.Course.Code,
			CourseName: r.Course.Name,
			Professor:  r.Course.Professor,
			Credit:     r.Course.Credit,
			Semester:   r.Course.Semester,
		},
		Score: r.Score,
	}
}

// takenCourses lists passed courses; failed ones stay recommendable.
func takenCourses(u User) map[string]bool {
	taken := make(map[string]bool, len(u.Courses))
	for _, c := range u.Courses {
		if !c.Failed {
			taken[c.Code] = true
		}
	}
	return taken
}
