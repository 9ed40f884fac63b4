package ingestion

import (
	"context"
	"time"
)

// Stage is the upload job's position in the workflow.
type Stage string

const (
	StageIdle                   Stage = "Idle"
	StageFileSelected           Stage = "FileSelected"
	StageExtracting             Stage = "Extracting"
	StageAwaitingMajorSelection Stage = "AwaitingMajorSelection"
	StageRequestingUploadURL    Stage = "RequestingUploadUrl"
	StageTransferring           Stage = "TransferringToStorage"
	StageNotifying              Stage = "NotifyingBackend"
	StageCompleted              Stage = "Completed"
	StageFailed                 Stage = "Failed"
)

// Leg names the network step a failure happened in.
type Leg string

const (
	LegExtract  Leg = "extract"
	LegURL      Leg = "url"
	LegTransfer Leg = "transfer"
	LegNotify   Leg = "notify"
)

// SourceFile is the transcript the user picked.
type SourceFile struct {
	Name        string
	ContentType string
	Content     []byte
}

// Majors is the user's confirmed selection. Secondary and Tertiary are optional.
type Majors struct {
	Primary   string `validate:"required"`
	Secondary string
	Tertiary  string
}

// Destination is a pre-signed upload target.
type Destination struct {
	URL string
	Key string
}

// Failure records the leg that failed and why.
type Failure struct {
	Leg   Leg
	Cause error
}

// Job is a snapshot of the current upload job.
type Job struct {
	ID              string
	File            SourceFile
	ExtractedMajors []string
	Selected        Majors
	// StorageKey is set once the upload-url leg succeeds and is kept across retries.
	StorageKey string
	UploadURL  string
	Stage      Stage
	Failure    *Failure
	UpdatedAt  time.Time
}

func (j *Job) clone() Job {
	out := *j
	if j.ExtractedMajors != nil {
		out.ExtractedMajors = append([]string{}, j.ExtractedMajors...)
	}
	if j.Failure != nil {
		f := *j.Failure
		out.Failure = &f
	}
	return out
}

// Backend is the transcript API reached through the session gateway.
type Backend interface {
	ExtractMajors(ctx context.Context, file SourceFile) ([]string, error)
	RequestUploadURL(ctx context.Context, fileName, contentType string) (Destination, error)
	NotifyUploaded(ctx context.Context, storageKey string, majors Majors) error
}

// Storage moves raw bytes to a pre-signed destination without the session credential.
type Storage interface {
	Transfer(ctx context.Context, uploadURL string, file SourceFile) error
}
