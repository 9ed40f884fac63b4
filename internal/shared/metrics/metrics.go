// Package metrics records client and stand-in counters on an OpenTelemetry
// meter. A manual reader backs the Prometheus text dump served at /metrics
// and printed by the CLI.
package metrics

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

const meterName = "saintplus-client"

const (
	legTotalName       = "ingestion_leg_total"
	fetchTotalName     = "recommendation_fetch_total"
	sessionExpiredName = "session_expired_total"
	stubParseJobsName  = "stub_parse_jobs_total"
	legDurationName    = "ingestion_leg_duration_ms"
)

var (
	attrLeg     = attribute.Key("leg")
	attrOutcome = attribute.Key("outcome")
	attrSource  = attribute.Key("source")
)

var legBuckets = []float64{50, 100, 250, 500, 1000, 2000, 5000, 10000, 30000}

// descriptors fixes the dump order and keeps never-touched series visible.
var descriptors = []struct {
	name, help, kind string
	unlabeled        bool
}{
	{legTotalName, "Ingestion legs by outcome", "counter", false},
	{fetchTotalName, "Recommendation fetches by source and outcome", "counter", false},
	{sessionExpiredName, "Sessions invalidated by an authorization failure", "counter", true},
	{stubParseJobsName, "Parse jobs accepted by the stand-in backend", "counter", true},
	{legDurationName, "Ingestion leg duration in milliseconds", "histogram", false},
}

type instruments struct {
	reader         *sdkmetric.ManualReader
	legs           metric.Int64Counter
	fetches        metric.Int64Counter
	sessionExpired metric.Int64Counter
	parseJobs      metric.Int64Counter
	legDuration    metric.Float64Histogram
}

var current atomic.Pointer[instruments]

func init() {
	Reset()
}

func newInstruments() (*instruments, error) {
	reader := sdkmetric.NewManualReader()
	meter := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter(meterName)

	in := &instruments{reader: reader}
	var err error
	if in.legs, err = meter.Int64Counter(legTotalName, metric.WithDescription("Ingestion legs by outcome.")); err != nil {
		return nil, err
	}
	if in.fetches, err = meter.Int64Counter(fetchTotalName, metric.WithDescription("Recommendation fetches by source and outcome.")); err != nil {
		return nil, err
	}
	if in.sessionExpired, err = meter.Int64Counter(sessionExpiredName, metric.WithDescription("Sessions invalidated by an authorization failure.")); err != nil {
		return nil, err
	}
	if in.parseJobs, err = meter.Int64Counter(stubParseJobsName, metric.WithDescription("Parse jobs accepted by the stand-in backend.")); err != nil {
		return nil, err
	}
	in.legDuration, err = meter.Float64Histogram(legDurationName,
		metric.WithDescription("Ingestion leg duration in milliseconds."),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(legBuckets...),
	)
	if err != nil {
		return nil, err
	}
	return in, nil
}

// Reset installs a fresh meter provider, dropping every recorded value.
func Reset() {
	in, err := newInstruments()
	if err != nil {
		// Only reachable with invalid instrument options.
		panic(fmt.Sprintf("metrics: %v", err))
	}
	current.Store(in)
}

// IncLeg counts an ingestion leg outcome ("ok", "failed", "abandoned").
func IncLeg(leg, outcome string) {
	current.Load().legs.Add(context.Background(), 1, metric.WithAttributes(attrLeg.String(leg), attrOutcome.String(outcome)))
}

// IncFetch counts a recommendation fetch outcome ("ok", "failed", "discarded").
func IncFetch(source, outcome string) {
	current.Load().fetches.Add(context.Background(), 1, metric.WithAttributes(attrSource.String(source), attrOutcome.String(outcome)))
}

func IncSessionExpired() {
	current.Load().sessionExpired.Add(context.Background(), 1)
}

// IncStubParseJobs counts parse jobs accepted by the stand-in backend.
func IncStubParseJobs() {
	current.Load().parseJobs.Add(context.Background(), 1)
}

// ObserveLegDurationMs records an ingestion leg duration in milliseconds.
func ObserveLegDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	current.Load().legDuration.Record(context.Background(), value)
}

// SinceMillis returns the milliseconds elapsed since start.
func SinceMillis(start time.Time) float64 {
	return float64(time.Since(start)) / float64(time.Millisecond)
}

// LegCount returns the current count for a leg/outcome pair.
func LegCount(leg, outcome string) uint64 {
	return sumOf(collect(), legTotalName, attrLeg.String(leg), attrOutcome.String(outcome))
}

// FetchCount returns the current count for a source/outcome pair.
func FetchCount(source, outcome string) uint64 {
	return sumOf(collect(), fetchTotalName, attrSource.String(source), attrOutcome.String(outcome))
}

func SessionExpiredCount() uint64 {
	return sumOf(collect(), sessionExpiredName)
}

func StubParseJobsCount() uint64 {
	return sumOf(collect(), stubParseJobsName)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render collects from the reader and writes Prometheus text.
func Render() string {
	byName := collect()
	var buf bytes.Buffer
	for _, d := range descriptors {
		fmt.Fprintf(&buf, "# HELP %s %s\n", d.name, d.help)
		fmt.Fprintf(&buf, "# TYPE %s %s\n", d.name, d.kind)
		switch data := byName[d.name].Data.(type) {
		case metricdata.Sum[int64]:
			writeSum(&buf, d.name, data)
		case metricdata.Histogram[float64]:
			writeHistogram(&buf, d.name, data)
		default:
			if d.unlabeled {
				fmt.Fprintf(&buf, "%s 0\n", d.name)
			}
		}
	}
	return buf.String()
}

func collect() map[string]metricdata.Metrics {
	var rm metricdata.ResourceMetrics
	out := map[string]metricdata.Metrics{}
	if err := current.Load().reader.Collect(context.Background(), &rm); err != nil {
		return out
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumOf(byName map[string]metricdata.Metrics, name string, attrs ...attribute.KeyValue) uint64 {
	data, ok := byName[name].Data.(metricdata.Sum[int64])
	if !ok {
		return 0
	}
	want := attribute.NewSet(attrs...)
	for _, dp := range data.DataPoints {
		if dp.Attributes.Equals(&want) {
			return uint64(dp.Value)
		}
	}
	return 0
}

func writeSum(buf *bytes.Buffer, name string, data metricdata.Sum[int64]) {
	lines := make([]string, 0, len(data.DataPoints))
	for _, dp := range data.DataPoints {
		lines = append(lines, fmt.Sprintf("%s%s %d", name, labels(dp.Attributes), dp.Value))
	}
	sort.Strings(lines)
	for _, l := range lines {
		buf.WriteString(l + "\n")
	}
}

func writeHistogram(buf *bytes.Buffer, name string, data metricdata.Histogram[float64]) {
	for _, dp := range data.DataPoints {
		var cumulative uint64
		for i, bound := range dp.Bounds {
			cumulative += dp.BucketCounts[i]
			fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
		}
		fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, dp.Count)
		fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(dp.Sum))
		fmt.Fprintf(buf, "%s_count %d\n", name, dp.Count)
	}
}

// labels renders an attribute set in key order.
func labels(set attribute.Set) string {
	if set.Len() == 0 {
		return ""
	}
	pairs := make([]string, 0, set.Len())
	iter := set.Iter()
	for iter.Next() {
		kv := iter.Attribute()
		pairs = append(pairs, fmt.Sprintf("%s=%q", kv.Key, kv.Value.Emit()))
	}
	return "{" + strings.Join(pairs, ",") + "}"
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}
