package extract

import (
	"bufio"
	"regexp"
	"strconv"
	"strings"
)

var (
	majorPattern  = regexp.MustCompile(`1전공(.+?)2전공(.+?)3전공(.*)`)
	coursePattern = regexp.MustCompile(`^(20\d{2}-[12SW])\s+([A-Z]{3,5}\d{3,4})\s+(.+?)\s+([0-9]+\.[0-9])\s*(A[+-0]?|B[+-0]?|C[+-0]?|D[+-0]?|FA|F|U|S|P|W)?\s*(.*)$`)
)

// Majors returns the up-to-three majors on the first "1전공 … 2전공 … 3전공"
// line. Blank slots are dropped; the result may be empty.
func Majors(text string) []string {
	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		m := majorPattern.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		out := make([]string, 0, 3)
		for _, raw := range m[1:] {
			name := strings.Trim(strings.TrimSpace(raw), ":：-")
			name = strings.TrimSpace(name)
			if name != "" {
				out = append(out, name)
			}
		}
		return out
	}
	return []string{}
}

// CourseRecord is one course line of a transcript.
type CourseRecord struct {
	Term    string // e.g. 2024-1, 2024-S
	Code    string
	Name    string
	Credit  float64
	Grade   string
	Failed  bool
	Retake  bool
	English bool
	Overlap bool
}

// Semester maps the term suffix onto 1, 2, 3 (summer) or 4 (winter).
func (c CourseRecord) Semester() int {
	if i := strings.LastIndexByte(c.Term, '-'); i >= 0 && i+1 < len(c.Term) {
		switch c.Term[i+1] {
		case '1':
			return 1
		case '2':
			return 2
		case 'S':
			return 3
		case 'W':
			return 4
		}
	}
	return 0
}

// Courses returns every course line in transcript order.
func Courses(text string) []CourseRecord {
	var out []CourseRecord
	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		m := coursePattern.FindStringSubmatch(strings.TrimSpace(scanner.Text()))
		if m == nil {
			continue
		}
		credit, _ := strconv.ParseFloat(m[4], 64)
		rec := CourseRecord{
			Term:   m[1],
			Code:   strings.TrimSpace(m[2]),
			Name:   strings.TrimSpace(m[3]),
			Credit: credit,
			Grade:  strings.TrimSpace(m[5]),
		}
		switch rec.Grade {
		case "FA", "F", "U":
			rec.Failed = true
		}
		for _, remark := range strings.Split(m[6], ",") {
			switch strings.TrimSpace(remark) {
			case "R":
				rec.Retake = true
			case "E":
				rec.English = true
			case "M":
				rec.Overlap = true
			}
		}
		out = append(out, rec)
	}
	return out
}
