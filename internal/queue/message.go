package queue

import "encoding/json"

// ParseJob asks the parse worker to read an uploaded transcript.
type ParseJob struct {
	JobID      string `json:"jobId"`
	UserID     string `json:"userId"`
	FileKey    string `json:"fileKey"`
	Major1     string `json:"major1"`
	Major2     string `json:"major2,omitempty"`
	Major3     string `json:"major3,omitempty"`
	RequestID  string `json:"requestId"`
	EnqueuedAt string `json:"enqueuedAt"`
	Version    int    `json:"version"`
}

// Majors returns the non-empty majors in order.
func (j ParseJob) Majors() []string {
	out := make([]string, 0, 3)
	for _, m := range []string{j.Major1, j.Major2, j.Major3} {
		if m != "" {
			out = append(out, m)
		}
	}
	return out
}

// EncodeJob returns the JSON representation of a job.
func EncodeJob(job ParseJob) ([]byte, error) {
	return json.Marshal(job)
}

// DecodeJob parses a JSON payload into a ParseJob.
func DecodeJob(payload []byte) (ParseJob, error) {
	var job ParseJob
	if err := json.Unmarshal(payload, &job); err != nil {
		return ParseJob{}, err
	}
	return job, nil
}
