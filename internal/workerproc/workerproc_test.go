package workerproc

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"saintplus-client/internal/queue"
	"saintplus-client/internal/shared/storage/object/local"
)

const transcriptText = `1전공 컴퓨터공학과 2전공 경영학과 3전공
2023-1 CSE2003 자료구조 3.0 A+
2023-2 CSE3013 운영체제 3.0 B0
`

type recorder struct {
	got []Transcript
	err error
}

func (r *recorder) RecordTranscript(ctx context.Context, t Transcript) error {
	if r.err != nil {
		return r.err
	}
	r.got = append(r.got, t)
	return nil
}

func encode(t *testing.T, job queue.ParseJob) []byte {
	t.Helper()
	body, err := queue.EncodeJob(job)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return body
}

func TestParseMessageRejectsBadPayloads(t *testing.T) {
	cases := []struct {
		name string
		body []byte
	}{
		{"empty", []byte("  ")},
		{"not json", []byte("{")},
		{"no key", []byte(`{"userId":"1","major1":"A"}`)},
		{"no user", []byte(`{"fileKey":"k","major1":"A"}`)},
		{"no major", []byte(`{"fileKey":"k","userId":"1"}`)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := ParseMessage(tc.body)
			if err == nil {
				t.Fatalf("expected error")
			}
			if !errors.Is(err, queue.ErrPermanent) {
				t.Fatalf("expected permanent error, got %v", err)
			}
		})
	}
}

func TestComputeMeta(t *testing.T) {
	meta := ComputeMeta([]byte("abc"))
	if meta.BodyLen != 3 || len(meta.BodySHA) != 64 {
		t.Fatalf("unexpected meta %+v", meta)
	}
	if (ComputeMeta(nil) != MessageMeta{}) {
		t.Fatalf("expected zero meta for empty body")
	}
}

func TestHandleMessageRecordsCoursesAndDeletesFile(t *testing.T) {
	ctx := context.Background()
	store := local.New(t.TempDir(), "http://stub.test", []byte("k"))
	key := "transcripts/u1/abc-grades.txt"
	if _, err := store.SaveWithKey(ctx, key, "text/plain", bytes.NewReader([]byte(transcriptText))); err != nil {
		t.Fatalf("save: %v", err)
	}
	rec := &recorder{}
	p := &Processor{Store: store, Recorder: rec}

	err := HandleMessage(ctx, p, encode(t, queue.ParseJob{JobID: "j1", UserID: "7", FileKey: key, Major1: "컴퓨터공학과"}))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(rec.got) != 1 {
		t.Fatalf("expected one transcript, got %d", len(rec.got))
	}
	got := rec.got[0]
	if got.UserID != "7" || len(got.Courses) != 2 || got.Courses[1].Code != "CSE3013" {
		t.Fatalf("unexpected transcript %+v", got)
	}
	if len(got.Majors) != 1 || got.Majors[0] != "컴퓨터공학과" {
		t.Fatalf("unexpected majors %v", got.Majors)
	}
	if _, err := store.Open(ctx, key); err == nil {
		t.Fatalf("expected file removed after parse")
	}
}

func TestHandleMessageMissingObjectIsRetryable(t *testing.T) {
	store := local.New(t.TempDir(), "http://stub.test", []byte("k"))
	p := &Processor{Store: store, Recorder: &recorder{}}

	err := HandleMessage(context.Background(), p, encode(t, queue.ParseJob{JobID: "j2", UserID: "7", FileKey: "transcripts/u1/missing.pdf", Major1: "A"}))
	var perr ErrProcess
	if !errors.As(err, &perr) {
		t.Fatalf("expected ErrProcess, got %v", err)
	}
	if errors.Is(err, queue.ErrPermanent) {
		t.Fatalf("missing object should be retried")
	}
}

func TestHandleMessageRecorderFailureKeepsFile(t *testing.T) {
	ctx := context.Background()
	store := local.New(t.TempDir(), "http://stub.test", []byte("k"))
	key := "transcripts/u1/x-grades.txt"
	if _, err := store.SaveWithKey(ctx, key, "text/plain", bytes.NewReader([]byte(transcriptText))); err != nil {
		t.Fatalf("save: %v", err)
	}
	p := &Processor{Store: store, Recorder: &recorder{err: errors.New("db down")}}

	if err := HandleMessage(ctx, p, encode(t, queue.ParseJob{JobID: "j3", UserID: "7", FileKey: key, Major1: "A"})); err == nil {
		t.Fatalf("expected error")
	}
	rc, err := store.Open(ctx, key)
	if err != nil {
		t.Fatalf("file should remain for retry: %v", err)
	}
	rc.Close()
}
