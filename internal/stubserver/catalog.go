package stubserver

import (
	"sort"
	"strings"
)

// Course is a catalog entry the stand-in recommends from.
type Course struct {
	Code         string
	Name         string
	Professor    string
	Credit       float64
	Semester     int
	Major        string
	Track        string
	StudentCount int
	Proximity    float64
	Keywords     []string
}

// Catalog is a fixed course list. Semester 1 and 2 are regular terms, 3 is
// summer and 4 winter.
type Catalog struct {
	courses []Course
}

func NewCatalog(courses []Course) *Catalog {
	return &Catalog{courses: append([]Course(nil), courses...)}
}

// DefaultCatalog is the built-in list used by cmd/stubserver.
func DefaultCatalog() *Catalog {
	return NewCatalog([]Course{
		{Code: "CSE2003", Name: "자료구조", Professor: "김철수", Credit: 3, Semester: 1, Major: "CSE", Track: "소프트웨어", StudentCount: 184, Proximity: 0.42, Keywords: []string{"자료구조", "알고리즘", "프로그래밍", "data", "structure"}},
		{Code: "CSE3013", Name: "운영체제", Professor: "이영희", Credit: 3, Semester: 2, Major: "CSE", Track: "시스템", StudentCount: 151, Proximity: 0.55, Keywords: []string{"운영체제", "시스템", "os", "kernel"}},
		{Code: "CSE3050", Name: "데이터베이스", Professor: "박민수", Credit: 3, Semester: 1, Major: "CSE", Track: "데이터", StudentCount: 133, Proximity: 0.48, Keywords: []string{"데이터", "데이터베이스", "sql", "database"}},
		{Code: "CSE4070", Name: "기계학습", Professor: "최지원", Credit: 3, Semester: 2, Major: "CSE", Track: "인공지능", StudentCount: 162, Proximity: 0.61, Keywords: []string{"머신러닝", "기계학습", "ai", "인공지능", "데이터", "분석", "machine", "learning"}},
		{Code: "CSE4180", Name: "딥러닝", Professor: "최지원", Credit: 3, Semester: 1, Major: "CSE", Track: "인공지능", StudentCount: 97, Proximity: 0.66, Keywords: []string{"딥러닝", "신경망", "ai", "인공지능", "deep", "learning"}},
		{Code: "CSE3080", Name: "컴퓨터네트워크", Professor: "정우성", Credit: 3, Semester: 2, Major: "CSE", Track: "시스템", StudentCount: 120, Proximity: 0.51, Keywords: []string{"네트워크", "통신", "network", "tcp"}},
		{Code: "CSE2100", Name: "웹프로그래밍", Professor: "한소희", Credit: 3, Semester: 3, Major: "CSE", Track: "소프트웨어", StudentCount: 88, Proximity: 0.37, Keywords: []string{"웹", "프로그래밍", "web", "javascript"}},
		{Code: "STA2010", Name: "통계학개론", Professor: "오세훈", Credit: 3, Semester: 1, Major: "STA", Track: "통계", StudentCount: 141, Proximity: 0.33, Keywords: []string{"통계", "데이터", "분석", "statistics"}},
		{Code: "STA3030", Name: "데이터마이닝", Professor: "오세훈", Credit: 3, Semester: 2, Major: "STA", Track: "데이터", StudentCount: 76, Proximity: 0.58, Keywords: []string{"데이터", "마이닝", "분석", "mining"}},
		{Code: "MAT2410", Name: "선형대수", Professor: "윤서연", Credit: 3, Semester: 1, Major: "MAT", Track: "수학", StudentCount: 203, Proximity: 0.29, Keywords: []string{"선형대수", "행렬", "수학", "linear", "algebra"}},
		{Code: "BUS2001", Name: "경영학원론", Professor: "강동원", Credit: 3, Semester: 4, Major: "BUS", Track: "경영", StudentCount: 176, Proximity: 0.21, Keywords: []string{"경영", "전략", "business"}},
		{Code: "BUS3040", Name: "마케팅관리", Professor: "강동원", Credit: 3, Semester: 2, Major: "BUS", Track: "경영", StudentCount: 99, Proximity: 0.26, Keywords: []string{"마케팅", "경영", "marketing"}},
	})
}

// Ranked is a catalog course with its score.
type Ranked struct {
	Course Course
	Score  float64
}

// Statistical ranks courses by enrollment among peers, weighted by proximity
// to the user's majors. Taken courses are skipped. semester 0 means all.
func (c *Catalog) Statistical(semester int, majors []string, taken map[string]bool, limit int) []Ranked {
	out := make([]Ranked, 0, len(c.courses))
	for _, course := range c.courses {
		if taken[course.Code] || (semester > 0 && course.Semester != semester) {
			continue
		}
		score := float64(course.StudentCount) * (0.5 + course.Proximity)
		if matchesMajor(course, majors) {
			score *= 1.25
		}
		out = append(out, Ranked{Course: course, Score: round2(score / 2)})
	}
	return top(out, limit)
}

// AI scores courses by keyword overlap with prompt, a similarity in [0,1].
// Courses outside major get half weight. Courses with no overlap are dropped.
func (c *Catalog) AI(prompt, major string, taken map[string]bool, limit int) []Ranked {
	terms := tokenize(prompt)
	if len(terms) == 0 {
		return []Ranked{}
	}
	out := make([]Ranked, 0, len(c.courses))
	for _, course := range c.courses {
		if taken[course.Code] {
			continue
		}
		hits := 0
		for _, term := range terms {
			for _, kw := range course.Keywords {
				if strings.Contains(term, kw) || strings.Contains(kw, term) {
					hits++
					break
				}
			}
		}
		if hits == 0 {
			continue
		}
		sim := float64(hits) / float64(len(terms))
		if !strings.EqualFold(course.Major, major) {
			sim *= 0.5
		}
		out = append(out, Ranked{Course: course, Score: round2(sim)})
	}
	return top(out, limit)
}

func matchesMajor(course Course, majors []string) bool {
	for _, m := range majors {
		if strings.EqualFold(course.Major, m) || strings.Contains(m, course.Track) {
			return true
		}
	}
	return false
}

func tokenize(prompt string) []string {
	fields := strings.FieldsFunc(strings.ToLower(prompt), func(r rune) bool {
		return r == ' ' || r == ',' || r == '.' || r == '?' || r == '!' || r == '\t' || r == '\n'
	})
	out := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) >= 2 {
			out = append(out, f)
		}
	}
	return out
}

func top(ranked []Ranked, limit int) []Ranked {
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
