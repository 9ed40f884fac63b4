package recommendations

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"saintplus-client/internal/events"
	"saintplus-client/internal/shared/metrics"
	"saintplus-client/internal/shared/telemetry"
)

// ErrSuperseded is returned to a fetch whose response arrived after a newer
// fetch on the same source had already been applied.
var ErrSuperseded = errors.New("superseded by a newer request")

// Fetcher is the backend the aggregator queries.
type Fetcher interface {
	Statistical(ctx context.Context, semester int) ([]Result, error)
	AI(ctx context.Context, prompt, major string) ([]Result, error)
}

// Slice is one source's retained state.
type Slice struct {
	Source   Source
	Results  []Result
	Sequence uint64
	// Failed is set when the newest applied response was a failure. Results
	// still hold the last successful set.
	Failed    bool
	Err       error
	UpdatedAt time.Time
}

// View is the merged read-only state of both sources.
type View struct {
	Statistical Slice
	AI          Slice
}

// All returns statistical results followed by AI results.
func (v View) All() []Result {
	out := make([]Result, 0, len(v.Statistical.Results)+len(v.AI.Results))
	out = append(out, v.Statistical.Results...)
	return append(out, v.AI.Results...)
}

type sourceState struct {
	issued uint64
	slice  Slice
}

// Aggregator keeps the latest result set per source. Fetches on different
// sources never affect each other; on one source the last issued request wins.
type Aggregator struct {
	fetcher Fetcher
	bus     *events.Bus
	tracer  trace.Tracer
	now     func() time.Time

	mu      sync.Mutex
	sources map[Source]*sourceState
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithBus publishes every applied update on bus.
func WithBus(bus *events.Bus) Option {
	return func(a *Aggregator) { a.bus = bus }
}

func NewAggregator(fetcher Fetcher, opts ...Option) *Aggregator {
	a := &Aggregator{
		fetcher: fetcher,
		tracer:  otel.Tracer("saintplus-client/recommendations"),
		now:     time.Now,
		sources: map[Source]*sourceState{
			SourceStatistical: {slice: Slice{Source: SourceStatistical, Results: []Result{}}},
			SourceAI:          {slice: Slice{Source: SourceAI, Results: []Result{}}},
		},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// FetchStatistical replaces the statistical slice. semester 0 means all.
func (a *Aggregator) FetchStatistical(ctx context.Context, semester int) (Slice, error) {
	if semester < 0 || semester > 4 {
		return a.slice(SourceStatistical), &ValidationError{Field: "semester", Reason: "must be between 1 and 4"}
	}
	return a.fetch(ctx, SourceStatistical, []attribute.KeyValue{attribute.Int("semester", semester)},
		func(ctx context.Context) ([]Result, error) {
			return a.fetcher.Statistical(ctx, semester)
		})
}

// FetchAI replaces the AI slice. An empty prompt is rejected before any request.
func (a *Aggregator) FetchAI(ctx context.Context, prompt, major string) (Slice, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return a.slice(SourceAI), &ValidationError{Field: "prompt", Reason: "is required"}
	}
	return a.fetch(ctx, SourceAI, []attribute.KeyValue{attribute.String("major", major)},
		func(ctx context.Context) ([]Result, error) {
			return a.fetcher.AI(ctx, prompt, major)
		})
}

// View returns copies of both slices.
func (a *Aggregator) View() View {
	return View{
		Statistical: a.slice(SourceStatistical),
		AI:          a.slice(SourceAI),
	}
}

func (a *Aggregator) fetch(ctx context.Context, src Source, attrs []attribute.KeyValue, call func(context.Context) ([]Result, error)) (Slice, error) {
	a.mu.Lock()
	st := a.sources[src]
	st.issued++
	seq := st.issued
	a.mu.Unlock()

	ctx, span := a.tracer.Start(ctx, "recommendations.fetch", trace.WithAttributes(
		append(attrs, attribute.String("source", string(src)), attribute.Int64("sequence", int64(seq)))...,
	))
	results, err := call(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
	}
	span.End()

	a.mu.Lock()
	if seq <= st.slice.Sequence {
		current := cloneSlice(st.slice)
		a.mu.Unlock()
		metrics.IncFetch(string(src), "discarded")
		telemetry.Debug("recommendations.discarded", map[string]any{
			"source":   string(src),
			"sequence": seq,
			"retained": current.Sequence,
		})
		return current, ErrSuperseded
	}
	st.slice.Sequence = seq
	st.slice.UpdatedAt = a.now().UTC()
	if err != nil {
		st.slice.Failed = true
		st.slice.Err = err
	} else {
		if results == nil {
			results = []Result{}
		}
		st.slice.Results = results
		st.slice.Failed = false
		st.slice.Err = nil
	}
	out := cloneSlice(st.slice)
	a.mu.Unlock()

	if err != nil {
		metrics.IncFetch(string(src), "failed")
		telemetry.Warn("recommendations.fetch_failed", map[string]any{"source": string(src), "sequence": seq, "err": err})
	} else {
		metrics.IncFetch(string(src), "ok")
		telemetry.Info("recommendations.updated", map[string]any{"source": string(src), "sequence": seq, "count": len(out.Results)})
	}
	a.publish(out)
	return out, err
}

func (a *Aggregator) slice(src Source) Slice {
	a.mu.Lock()
	defer a.mu.Unlock()
	return cloneSlice(a.sources[src].slice)
}

func (a *Aggregator) publish(s Slice) {
	if a.bus == nil {
		return
	}
	evt := events.RecommendationsUpdated{
		Source:   string(s.Source),
		Sequence: s.Sequence,
		Count:    len(s.Results),
		Failed:   s.Failed,
		At:       s.UpdatedAt,
	}
	if err := a.bus.Publish(events.TopicRecommendationsUpdated, evt); err != nil {
		telemetry.Error("recommendations.publish_failed", map[string]any{"err": err})
	}
}

func cloneSlice(s Slice) Slice {
	s.Results = append([]Result{}, s.Results...)
	return s
}
