// Package gateway sends every backend call on behalf of the client and owns
// the reaction to an expired session.
package gateway

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"saintplus-client/internal/events"
	"saintplus-client/internal/session"
	"saintplus-client/internal/shared/metrics"
	"saintplus-client/internal/shared/telemetry"
)

// Observer is told about a session expiry before the failing Send returns.
type Observer func(events.SessionExpired)

// Gateway attaches the bearer credential and invalidates the session on 401.
type Gateway struct {
	baseURL string
	client  *http.Client
	state   *session.State
	bus     *events.Bus
	tracer  trace.Tracer
	now     func() time.Time

	mu        sync.Mutex
	observers map[int]Observer
	nextID    int
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(g *Gateway) { g.client = c }
}

// WithBus publishes session-expired events on bus.
func WithBus(bus *events.Bus) Option {
	return func(g *Gateway) { g.bus = bus }
}

// New returns a gateway for the API at baseURL.
func New(baseURL string, state *session.State, opts ...Option) *Gateway {
	g := &Gateway{
		baseURL:   strings.TrimRight(baseURL, "/"),
		client:    &http.Client{},
		state:     state,
		tracer:    otel.Tracer("saintplus-client/gateway"),
		now:       time.Now,
		observers: map[int]Observer{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// BaseURL returns the API base URL.
func (g *Gateway) BaseURL() string {
	return g.baseURL
}

// OnSessionExpired registers an observer and returns its unsubscribe func.
func (g *Gateway) OnSessionExpired(fn Observer) func() {
	g.mu.Lock()
	id := g.nextID
	g.nextID++
	g.observers[id] = fn
	g.mu.Unlock()
	return func() {
		g.mu.Lock()
		delete(g.observers, id)
		g.mu.Unlock()
	}
}

// Establish installs a freshly issued session.
func (g *Gateway) Establish(ctx context.Context, s session.Session) error {
	if _, err := g.state.Begin(ctx, s); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	telemetry.Info("session.established", map[string]any{"user_id": s.Principal.ID})
	return nil
}

// EndSession destroys the session on explicit logout. Observers are not
// notified; logout is not an expiry.
func (g *Gateway) EndSession(ctx context.Context) error {
	if _, err := g.state.EndCurrent(ctx); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// Session returns the active session, if any.
func (g *Gateway) Session() (session.Session, bool) {
	s, _, ok := g.state.Snapshot()
	return s, ok
}

// Send performs req. Non-2xx responses are returned as *StatusError. A 401
// on a request that carried the session ends that session exactly once per
// epoch and notifies observers before Send returns; the error still
// propagates.
func (g *Gateway) Send(ctx context.Context, req Request) (*Response, error) {
	ctx, span := g.tracer.Start(ctx, "gateway.send", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("http.request.method", req.Method),
		attribute.String("url.path", req.Path),
	)

	body, contentType, err := req.body()
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.url(g.baseURL), body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-Id", uuid.NewString())
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(httpReq.Header))

	var (
		current  session.Session
		epoch    session.Epoch
		attached bool
	)
	if !req.Anonymous {
		current, epoch, attached = g.state.Snapshot()
		if attached {
			httpReq.Header.Set("Authorization", "Bearer "+current.Token)
		}
	}
	span.SetAttributes(attribute.Bool("session.attached", attached))

	start := time.Now()
	resp, err := g.client.Do(httpReq)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport")
		telemetry.Warn("gateway.transport_failed", map[string]any{
			"method": req.Method,
			"path":   req.Path,
			"err":    err,
		})
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.Path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%s %s: read body: %w", req.Method, req.Path, err)
	}
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	telemetry.Debug("gateway.response", map[string]any{
		"method":      req.Method,
		"path":        req.Path,
		"status":      resp.StatusCode,
		"duration_ms": metrics.SinceMillis(start),
		"request_id":  httpReq.Header.Get("X-Request-Id"),
	})

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := newStatusError(req, resp.StatusCode, raw, attached)
		span.SetStatus(codes.Error, se.Error())
		if resp.StatusCode == http.StatusUnauthorized && attached {
			g.expire(ctx, epoch, current, req)
		}
		return nil, se
	}

	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: raw}, nil
}

func (g *Gateway) expire(ctx context.Context, epoch session.Epoch, s session.Session, req Request) {
	// Teardown is not cancelled with the request that discovered the expiry.
	ended, err := g.state.End(context.WithoutCancel(ctx), epoch)
	if err != nil {
		telemetry.Error("session.clear_failed", map[string]any{"err": err})
	}
	if !ended {
		return
	}

	evt := events.SessionExpired{
		PrincipalID: s.Principal.ID,
		Method:      req.Method,
		Path:        req.Path,
		At:          g.now().UTC(),
	}
	metrics.IncSessionExpired()
	telemetry.Warn("session.expired", map[string]any{
		"user_id": evt.PrincipalID,
		"method":  evt.Method,
		"path":    evt.Path,
	})

	for _, fn := range g.snapshotObservers() {
		fn(evt)
	}
	if g.bus != nil {
		if err := g.bus.Publish(events.TopicSessionExpired, evt); err != nil {
			telemetry.Error("session.expired.publish_failed", map[string]any{"err": err})
		}
	}
}

func (g *Gateway) snapshotObservers() []Observer {
	g.mu.Lock()
	defer g.mu.Unlock()
	ids := make([]int, 0, len(g.observers))
	for id := range g.observers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]Observer, 0, len(ids))
	for _, id := range ids {
		out = append(out, g.observers[id])
	}
	return out
}
