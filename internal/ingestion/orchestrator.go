// Package ingestion drives a transcript from file selection to the backend
// parse handoff.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"saintplus-client/internal/events"
	"saintplus-client/internal/shared/metrics"
	"saintplus-client/internal/shared/telemetry"
	"saintplus-client/internal/shared/util"
)

// Orchestrator owns at most one upload job. Legs run strictly one at a time;
// a reset or new file abandons the running leg and its late result is dropped.
type Orchestrator struct {
	backend  Backend
	storage  Storage
	bus      *events.Bus
	validate *validator.Validate
	tracer   trace.Tracer
	now      func() time.Time

	mu     sync.Mutex
	job    *Job
	gen    uint64
	cancel context.CancelFunc
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithBus publishes every stage change on bus.
func WithBus(bus *events.Bus) Option {
	return func(o *Orchestrator) { o.bus = bus }
}

func NewOrchestrator(backend Backend, storage Storage, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		backend:  backend,
		storage:  storage,
		validate: validator.New(),
		tracer:   otel.Tracer("saintplus-client/ingestion"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Snapshot returns a copy of the current job; ok is false when Idle.
func (o *Orchestrator) Snapshot() (Job, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.job == nil {
		return Job{Stage: StageIdle}, false
	}
	return o.job.clone(), true
}

// SelectFile starts a new job, discarding any previous one. No network.
func (o *Orchestrator) SelectFile(file SourceFile) (Job, error) {
	file.Name = strings.TrimSpace(file.Name)
	if file.Name == "" {
		return Job{}, &ValidationError{Field: "file", Reason: "name is required"}
	}
	if len(file.Content) == 0 {
		return Job{}, &ValidationError{Field: "file", Reason: "file is empty"}
	}
	if strings.TrimSpace(file.ContentType) == "" {
		file.ContentType = util.ContentTypeFor(file.Name)
	}

	o.mu.Lock()
	o.abandonLocked()
	stage, _ := transition(o.currentStageLocked(), evSelectFile, "")
	o.job = &Job{
		ID:        uuid.NewString(),
		File:      file,
		Stage:     stage,
		UpdatedAt: o.now().UTC(),
	}
	snap := o.job.clone()
	o.mu.Unlock()

	o.publish(snap)
	telemetry.Info("ingestion.file_selected", map[string]any{
		"job_id":       snap.ID,
		"file_name":    file.Name,
		"content_type": file.ContentType,
		"size_bytes":   len(file.Content),
	})
	return snap, nil
}

// BeginExtraction uploads the file for major detection and waits for the result.
func (o *Orchestrator) BeginExtraction(ctx context.Context) (Job, error) {
	gen, err := o.fire(evBeginExtract)
	if err != nil {
		return o.snapshotOrIdle(), err
	}
	return o.run(ctx, gen, LegExtract)
}

// ConfirmMajors validates the selection, then runs the url, transfer and
// notify legs in order. An empty primary major is rejected with no transition.
func (o *Orchestrator) ConfirmMajors(ctx context.Context, majors Majors) (Job, error) {
	majors.Primary = strings.TrimSpace(majors.Primary)
	majors.Secondary = strings.TrimSpace(majors.Secondary)
	majors.Tertiary = strings.TrimSpace(majors.Tertiary)

	o.mu.Lock()
	if o.job == nil || o.job.Stage != StageAwaitingMajorSelection {
		stage := o.currentStageLocked()
		o.mu.Unlock()
		return o.snapshotOrIdle(), fmt.Errorf("%w: %s from %s", ErrInvalidTransition, evConfirm, stage)
	}
	if err := o.validate.Struct(majors); err != nil {
		o.mu.Unlock()
		return o.snapshotOrIdle(), &ValidationError{Field: "primary major", Reason: "is required"}
	}
	stage, err := transition(o.job.Stage, evConfirm, "")
	if err != nil {
		o.mu.Unlock()
		return o.snapshotOrIdle(), err
	}
	o.job.Selected = majors
	o.job.Stage = stage
	o.job.UpdatedAt = o.now().UTC()
	gen := o.gen
	snap := o.job.clone()
	o.mu.Unlock()

	o.publish(snap)
	return o.run(ctx, gen, LegURL)
}

// Retry resumes at the start of the failed leg. A storage key and upload URL
// issued before the failure are reused.
func (o *Orchestrator) Retry(ctx context.Context) (Job, error) {
	o.mu.Lock()
	if o.job == nil || o.job.Failure == nil {
		stage := o.currentStageLocked()
		o.mu.Unlock()
		return o.snapshotOrIdle(), fmt.Errorf("%w: %s from %s", ErrInvalidTransition, evRetry, stage)
	}
	leg := o.job.Failure.Leg
	stage, err := transition(o.job.Stage, evRetry, leg)
	if err != nil {
		o.mu.Unlock()
		return o.snapshotOrIdle(), err
	}
	o.job.Stage = stage
	o.job.Failure = nil
	o.job.UpdatedAt = o.now().UTC()
	gen := o.gen
	snap := o.job.clone()
	o.mu.Unlock()

	o.publish(snap)
	telemetry.Info("ingestion.retry", map[string]any{"job_id": snap.ID, "leg": string(leg)})
	return o.run(ctx, gen, leg)
}

// Reset discards the job unconditionally. A running leg is cancelled and its
// result ignored.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	var id string
	if o.job != nil {
		id = o.job.ID
	}
	o.abandonLocked()
	o.job = nil
	o.mu.Unlock()

	if id != "" {
		o.publish(Job{ID: id, Stage: StageIdle, UpdatedAt: o.now().UTC()})
		telemetry.Info("ingestion.reset", map[string]any{"job_id": id})
	}
}

// fire applies a user event that needs no input and returns the job generation.
func (o *Orchestrator) fire(ev event) (uint64, error) {
	o.mu.Lock()
	from := o.currentStageLocked()
	if o.job == nil {
		o.mu.Unlock()
		return 0, fmt.Errorf("%w: %s from %s", ErrInvalidTransition, ev, from)
	}
	to, err := transition(from, ev, "")
	if err != nil {
		o.mu.Unlock()
		return 0, err
	}
	o.job.Stage = to
	o.job.UpdatedAt = o.now().UTC()
	gen := o.gen
	snap := o.job.clone()
	o.mu.Unlock()

	o.publish(snap)
	return gen, nil
}

// run executes legs starting at leg until one fails, the chain ends, or the
// job is abandoned.
func (o *Orchestrator) run(ctx context.Context, gen uint64, leg Leg) (Job, error) {
	for {
		job, err := o.runLeg(ctx, gen, leg)
		if err != nil {
			return job, err
		}
		next, ok := nextLeg[leg]
		if !ok {
			return job, nil
		}
		leg = next
	}
}

type legResult struct {
	majors []string
	dest   Destination
}

func (o *Orchestrator) runLeg(ctx context.Context, gen uint64, leg Leg) (Job, error) {
	o.mu.Lock()
	if o.gen != gen || o.job == nil {
		o.mu.Unlock()
		return o.snapshotOrIdle(), ErrJobAbandoned
	}
	input := o.job.clone()
	legCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	o.mu.Unlock()
	defer cancel()

	legCtx, span := o.tracer.Start(legCtx, "ingestion."+string(leg), trace.WithAttributes(
		attribute.String("job.id", input.ID),
		attribute.String("leg", string(leg)),
	))
	start := time.Now()
	res, legErr := o.execute(legCtx, leg, input)
	metrics.ObserveLegDurationMs(metrics.SinceMillis(start))
	if legErr != nil {
		span.RecordError(legErr)
		span.SetStatus(codes.Error, string(leg))
	}
	span.End()

	o.mu.Lock()
	if o.gen != gen || o.job == nil {
		o.mu.Unlock()
		metrics.IncLeg(string(leg), "abandoned")
		telemetry.Info("ingestion.leg_abandoned", map[string]any{"job_id": input.ID, "leg": string(leg)})
		return o.snapshotOrIdle(), ErrJobAbandoned
	}
	o.cancel = nil

	if legErr != nil {
		to, err := transition(o.job.Stage, evFail, "")
		if err != nil {
			o.mu.Unlock()
			return o.snapshotOrIdle(), err
		}
		o.job.Stage = to
		o.job.Failure = &Failure{Leg: leg, Cause: legErr}
		o.job.UpdatedAt = o.now().UTC()
		snap := o.job.clone()
		o.mu.Unlock()

		metrics.IncLeg(string(leg), "failed")
		telemetry.Warn("ingestion.leg_failed", map[string]any{"job_id": snap.ID, "leg": string(leg), "err": legErr})
		o.publish(snap)
		return snap, &LegError{Leg: leg, Cause: legErr}
	}

	to, err := transition(o.job.Stage, legSuccess[leg], "")
	if err != nil {
		o.mu.Unlock()
		return o.snapshotOrIdle(), err
	}
	switch leg {
	case LegExtract:
		o.job.ExtractedMajors = res.majors
	case LegURL:
		o.job.StorageKey = res.dest.Key
		o.job.UploadURL = res.dest.URL
	}
	o.job.Stage = to
	o.job.UpdatedAt = o.now().UTC()
	snap := o.job.clone()
	o.mu.Unlock()

	metrics.IncLeg(string(leg), "ok")
	telemetry.Info("ingestion.leg_completed", map[string]any{
		"job_id":      snap.ID,
		"leg":         string(leg),
		"stage":       string(snap.Stage),
		"storage_key": snap.StorageKey,
	})
	o.publish(snap)
	return snap, nil
}

func (o *Orchestrator) execute(ctx context.Context, leg Leg, job Job) (legResult, error) {
	switch leg {
	case LegExtract:
		majors, err := o.backend.ExtractMajors(ctx, job.File)
		if majors == nil {
			majors = []string{}
		}
		return legResult{majors: majors}, err
	case LegURL:
		dest, err := o.backend.RequestUploadURL(ctx, job.File.Name, job.File.ContentType)
		if err == nil && (dest.Key == "" || dest.URL == "") {
			err = errors.New("upload url response missing url or key")
		}
		return legResult{dest: dest}, err
	case LegTransfer:
		return legResult{}, o.storage.Transfer(ctx, job.UploadURL, job.File)
	case LegNotify:
		return legResult{}, o.backend.NotifyUploaded(ctx, job.StorageKey, job.Selected)
	default:
		return legResult{}, fmt.Errorf("unknown leg %q", leg)
	}
}

func (o *Orchestrator) abandonLocked() {
	o.gen++
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
}

func (o *Orchestrator) currentStageLocked() Stage {
	if o.job == nil {
		return StageIdle
	}
	return o.job.Stage
}

func (o *Orchestrator) snapshotOrIdle() Job {
	job, _ := o.Snapshot()
	return job
}

func (o *Orchestrator) publish(job Job) {
	if o.bus == nil {
		return
	}
	evt := events.IngestionStage{
		JobID:      job.ID,
		Stage:      string(job.Stage),
		StorageKey: job.StorageKey,
		At:         job.UpdatedAt,
	}
	if job.Failure != nil {
		evt.Leg = string(job.Failure.Leg)
		evt.Cause = job.Failure.Cause.Error()
	}
	if err := o.bus.Publish(events.TopicIngestionStage, evt); err != nil {
		telemetry.Error("ingestion.publish_failed", map[string]any{"err": err})
	}
}
