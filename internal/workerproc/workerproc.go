// Package workerproc runs the stand-in backend's transcript parse jobs.
package workerproc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"saintplus-client/internal/extract"
	"saintplus-client/internal/queue"
	"saintplus-client/internal/shared/storage/object"
	"saintplus-client/internal/shared/telemetry"
	"saintplus-client/internal/shared/util"
)

// MessageMeta captures details useful for logging and diagnostics.
type MessageMeta struct {
	BodyLen int
	BodySHA string
}

// ComputeMeta returns the body length and SHA-256 hash.
func ComputeMeta(body []byte) MessageMeta {
	if len(body) == 0 {
		return MessageMeta{}
	}
	sum := sha256.Sum256(body)
	return MessageMeta{BodyLen: len(body), BodySHA: hex.EncodeToString(sum[:])}
}

// ErrEmptyBody indicates an empty queue payload.
type ErrEmptyBody struct {
	Meta MessageMeta
}

func (e ErrEmptyBody) Error() string { return "empty message body" }

func (e ErrEmptyBody) Unwrap() error { return queue.ErrPermanent }

// ErrDecode indicates a JSON decode failure.
type ErrDecode struct {
	Meta MessageMeta
	Err  error
}

func (e ErrDecode) Error() string {
	if e.Err == nil {
		return "decode message"
	}
	return "decode message: " + e.Err.Error()
}

func (e ErrDecode) Unwrap() []error { return []error{queue.ErrPermanent, e.Err} }

// ErrMissingField indicates a job without a file key, user or primary major.
type ErrMissingField struct {
	Meta  MessageMeta
	Field string
	JobID string
}

func (e ErrMissingField) Error() string { return "missing " + e.Field }

func (e ErrMissingField) Unwrap() error { return queue.ErrPermanent }

// ErrProcess indicates processing failed after successful parsing.
type ErrProcess struct {
	JobID   string
	FileKey string
	Err     error
}

func (e ErrProcess) Error() string {
	if e.Err == nil {
		return "process transcript"
	}
	return "process transcript: " + e.Err.Error()
}

func (e ErrProcess) Unwrap() error { return e.Err }

// ParseMessage validates and decodes the queue payload.
func ParseMessage(body []byte) (queue.ParseJob, MessageMeta, error) {
	meta := ComputeMeta(body)
	if strings.TrimSpace(string(body)) == "" {
		return queue.ParseJob{}, meta, ErrEmptyBody{Meta: meta}
	}

	job, err := queue.DecodeJob(body)
	if err != nil {
		return queue.ParseJob{}, meta, ErrDecode{Meta: meta, Err: err}
	}
	switch {
	case strings.TrimSpace(job.FileKey) == "":
		return job, meta, ErrMissingField{Meta: meta, Field: "file key", JobID: job.JobID}
	case strings.TrimSpace(job.UserID) == "":
		return job, meta, ErrMissingField{Meta: meta, Field: "user id", JobID: job.JobID}
	case strings.TrimSpace(job.Major1) == "":
		return job, meta, ErrMissingField{Meta: meta, Field: "major1", JobID: job.JobID}
	}
	return job, meta, nil
}

// Transcript is the parsed outcome of one job.
type Transcript struct {
	UserID  string
	FileKey string
	Majors  []string
	Courses []extract.CourseRecord
}

// Recorder stores a parsed transcript against its user.
type Recorder interface {
	RecordTranscript(ctx context.Context, t Transcript) error
}

// Processor reads uploaded transcripts, extracts course records and removes
// the uploaded file once recorded.
type Processor struct {
	Store    object.ObjectStore
	Recorder Recorder
}

// Process runs one decoded job.
func (p *Processor) Process(ctx context.Context, job queue.ParseJob) error {
	rc, err := p.Store.Open(ctx, job.FileKey)
	if err != nil {
		if errors.Is(err, object.ErrInvalidKey) {
			return fmt.Errorf("%w: %v", queue.ErrPermanent, err)
		}
		return fmt.Errorf("open %s: %w", job.FileKey, err)
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return fmt.Errorf("read %s: %w", job.FileKey, err)
	}

	name := path.Base(job.FileKey)
	text, err := extract.TextFromBytes(ctx, data, util.ContentTypeFor(name), name)
	if err != nil {
		return fmt.Errorf("%w: extract text: %v", queue.ErrPermanent, err)
	}

	t := Transcript{
		UserID:  job.UserID,
		FileKey: job.FileKey,
		Majors:  job.Majors(),
		Courses: extract.Courses(text),
	}
	if err := p.Recorder.RecordTranscript(ctx, t); err != nil {
		return fmt.Errorf("record transcript: %w", err)
	}
	if err := p.Store.Delete(ctx, job.FileKey); err != nil {
		telemetry.Warn("workerproc.delete_failed", map[string]any{"file_key": job.FileKey, "err": err})
	}
	telemetry.Info("workerproc.parsed", map[string]any{
		"job_id":   job.JobID,
		"user_id":  job.UserID,
		"file_key": job.FileKey,
		"courses":  len(t.Courses),
	})
	return nil
}

// HandleMessage parses, validates, and processes a message payload.
func HandleMessage(ctx context.Context, p *Processor, body []byte) error {
	if p == nil || p.Store == nil || p.Recorder == nil {
		return errors.New("parse processor not configured")
	}

	job, meta, err := ParseMessage(body)
	if err != nil {
		telemetry.Warn("workerproc.invalid_message", map[string]any{
			"body_len": meta.BodyLen,
			"body_sha": meta.BodySHA,
			"err":      err,
		})
		return err
	}

	if err := p.Process(ctx, job); err != nil {
		return ErrProcess{JobID: job.JobID, FileKey: job.FileKey, Err: err}
	}
	return nil
}

// Handler adapts HandleMessage to a queue consumer.
func Handler(p *Processor) queue.Handler {
	return func(ctx context.Context, body []byte) error {
		return HandleMessage(ctx, p, body)
	}
}
