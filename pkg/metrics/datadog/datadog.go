// Package datadog implements a buffered Datadog backend for pkg/metrics.
//
// Metrics are buffered in memory and submitted on a ticker (default once per
// minute) plus one final Flush on Close. Flush snapshots and resets the
// buffers under the lock, then submits outside it.
package datadog

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	dd "github.com/DataDog/datadog-api-client-go/v2/api/datadog"
	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-keyscout/pkg/metrics"
)

// Options controls Datadog backend configuration.
type Options struct {
	// JobName becomes tag "job:<name>" on every metric. Defaults to "keyscout".
	JobName string

	// Tags are extra Datadog tags (e.g. "service:keyscout").
	Tags []string

	// FlushEvery defaults to 60 seconds when <= 0.
	FlushEvery time.Duration

	Logger *zap.Logger

	// Test seams.
	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker
	submitter metricsSubmitter
}

// metricsSubmitter is the subset of *datadogV2.MetricsApi used by Backend.
type metricsSubmitter interface {
	SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error)
}

// Backend implements metrics.Backend for Datadog.
type Backend struct {
	api    metricsSubmitter
	ctx    context.Context
	logger *zap.Logger

	flushEvery time.Duration
	stopCh     chan struct{}
	doneCh     chan struct{}
	closeOnce  sync.Once

	baseTags []string

	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker

	mu sync.Mutex

	stepCounts      map[string]float64 // step\x00status -> count
	durationSamples map[string][]float64
	rowsLoaded      map[string]float64 // table -> rows
	combinations    map[string]float64 // outcome -> count
	truncatedRuns   map[string]float64 // table -> runs
	keyDecisions    map[string]float64 // outcome -> count
}

func resolveEnvTag() string {
	if v := strings.TrimSpace(os.Getenv("ENV")); v != "" {
		return "env:" + v
	}
	if v := strings.TrimSpace(os.Getenv("DD_ENV")); v != "" {
		return "env:" + v
	}
	return "env:unknown"
}

// NewBackend constructs a Datadog backend using the official client. API key
// and site come from DD_API_KEY and DD_SITE through the client's default
// context. Network errors surface from Flush, never from construction.
func NewBackend(parent context.Context, opts Options) (*Backend, error) {
	if parent == nil {
		return nil, wrapInitErr(fmt.Errorf("nil context"))
	}

	job := opts.JobName
	if job == "" {
		job = "keyscout"
	}

	flushEvery := opts.FlushEvery
	if flushEvery <= 0 {
		flushEvery = 60 * time.Second
	}

	baseTags := make([]string, 0, 2+len(opts.Tags))
	baseTags = append(baseTags, resolveEnvTag(), "job:"+job)
	baseTags = append(baseTags, opts.Tags...)

	nowFn := opts.now
	if nowFn == nil {
		nowFn = time.Now
	}
	newTicker := opts.newTicker
	if newTicker == nil {
		newTicker = time.NewTicker
	}

	submitter := opts.submitter
	if submitter == nil {
		client := dd.NewAPIClient(dd.NewConfiguration())
		submitter = datadogV2.NewMetricsApi(client)
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	b := &Backend{
		api:        submitter,
		ctx:        dd.NewDefaultContext(parent),
		logger:     logger.Named("datadog"),
		flushEvery: flushEvery,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
		baseTags:   baseTags,
		now:        nowFn,
		newTicker:  newTicker,
	}
	b.resetLocked()

	go b.loop()
	return b, nil
}

func (b *Backend) resetLocked() {
	b.stepCounts = make(map[string]float64)
	b.durationSamples = make(map[string][]float64)
	b.rowsLoaded = make(map[string]float64)
	b.combinations = make(map[string]float64)
	b.truncatedRuns = make(map[string]float64)
	b.keyDecisions = make(map[string]float64)
}

func (b *Backend) loop() {
	defer close(b.doneCh)

	t := b.newTicker(b.flushEvery)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			if err := b.Flush(); err != nil {
				b.logger.Warn("Failed to submit metrics", zap.Error(err))
			}
		case <-b.stopCh:
			return
		}
	}
}

// Close stops the flush loop and performs one final Flush. Subsequent calls
// only flush.
func (b *Backend) Close() error {
	b.closeOnce.Do(func() {
		close(b.stopCh)
		<-b.doneCh
	})
	return b.Flush()
}

// IncCounter implements metrics.Backend. Unknown names are ignored.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if delta <= 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch name {
	case metrics.StepTotal:
		b.stepCounts[stepStatusKey(labels["step"], labels["status"])] += delta
	case metrics.RowsLoadedTotal:
		b.rowsLoaded[labelOr(labels, "table")] += delta
	case metrics.CombinationsTotal:
		b.combinations[labelOr(labels, "outcome")] += delta
	case metrics.TruncatedRunsTotal:
		b.truncatedRuns[labelOr(labels, "table")] += delta
	case metrics.KeyDecisionsTotal:
		b.keyDecisions[labelOr(labels, "outcome")] += delta
	}
}

// ObserveHistogram implements metrics.Backend. Unknown names are ignored.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if value < 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if name == metrics.StepDurationSeconds {
		k := stepStatusKey(labels["step"], labels["status"])
		b.durationSamples[k] = append(b.durationSamples[k], value)
	}
}

type snapshot struct {
	stepCounts      map[string]float64
	durationSamples map[string][]float64
	rowsLoaded      map[string]float64
	combinations    map[string]float64
	truncatedRuns   map[string]float64
	keyDecisions    map[string]float64
}

func (b *Backend) snapshotAndReset() snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := snapshot{
		stepCounts:      b.stepCounts,
		durationSamples: b.durationSamples,
		rowsLoaded:      b.rowsLoaded,
		combinations:    b.combinations,
		truncatedRuns:   b.truncatedRuns,
		keyDecisions:    b.keyDecisions,
	}
	b.resetLocked()
	return s
}

func (s snapshot) isEmpty() bool {
	return len(s.stepCounts) == 0 &&
		len(s.durationSamples) == 0 &&
		len(s.rowsLoaded) == 0 &&
		len(s.combinations) == 0 &&
		len(s.truncatedRuns) == 0 &&
		len(s.keyDecisions) == 0
}

// Flush submits buffered metrics and resets local buffers, even when the
// submission fails. It returns nil when there is nothing to submit.
func (b *Backend) Flush() error {
	snap := b.snapshotAndReset()
	if snap.isEmpty() {
		return nil
	}

	series := b.buildSeries(snap, b.now().Unix())
	payload := datadogV2.MetricPayload{Series: series}

	_, _, err := b.api.SubmitMetrics(b.ctx, payload, *datadogV2.NewSubmitMetricsOptionalParameters())
	if err != nil {
		return fmt.Errorf("failed to submit %d series: %w", len(series), err)
	}
	return nil
}

// buildSeries converts a snapshot into Datadog series at a fixed timestamp.
// Series are emitted in a stable order.
func (b *Backend) buildSeries(s snapshot, nowUnix int64) []datadogV2.MetricSeries {
	series := make([]datadogV2.MetricSeries, 0, len(s.stepCounts)+6*len(s.durationSamples)+8)

	for _, k := range sortedKeys(s.stepCounts) {
		step, status := splitStepStatusKey(k)
		series = append(series, countSeries("keyscout.step.total", s.stepCounts[k], withTags(b.baseTags, "step:"+step, "status:"+status), nowUnix))
	}
	for _, k := range sortedKeys(s.durationSamples) {
		step, status := splitStepStatusKey(k)
		addPercentiles(&series, withTags(b.baseTags, "step:"+step, "status:"+status), "keyscout.step.duration_seconds", s.durationSamples[k], nowUnix)
	}
	for _, table := range sortedKeys(s.rowsLoaded) {
		series = append(series, countSeries("keyscout.rows_loaded.total", s.rowsLoaded[table], withTags(b.baseTags, "table:"+table), nowUnix))
	}
	for _, outcome := range sortedKeys(s.combinations) {
		series = append(series, countSeries("keyscout.combinations.total", s.combinations[outcome], withTags(b.baseTags, "outcome:"+outcome), nowUnix))
	}
	for _, table := range sortedKeys(s.truncatedRuns) {
		series = append(series, countSeries("keyscout.profile.truncated.total", s.truncatedRuns[table], withTags(b.baseTags, "table:"+table), nowUnix))
	}
	for _, outcome := range sortedKeys(s.keyDecisions) {
		series = append(series, countSeries("keyscout.key_decisions.total", s.keyDecisions[outcome], withTags(b.baseTags, "outcome:"+outcome), nowUnix))
	}

	return series
}

// addPercentiles appends p50/p90/p95/p99/max/samples gauges for a sample set.
// It sorts a copy of samples.
func addPercentiles(series *[]datadogV2.MetricSeries, tags []string, metricPrefix string, samples []float64, nowUnix int64) {
	if len(samples) == 0 {
		return
	}
	cp := append([]float64(nil), samples...)
	sort.Float64s(cp)

	*series = append(*series,
		gaugeSeries(metricPrefix+".p50", percentileNearestRank(cp, 0.50), tags, nowUnix),
		gaugeSeries(metricPrefix+".p90", percentileNearestRank(cp, 0.90), tags, nowUnix),
		gaugeSeries(metricPrefix+".p95", percentileNearestRank(cp, 0.95), tags, nowUnix),
		gaugeSeries(metricPrefix+".p99", percentileNearestRank(cp, 0.99), tags, nowUnix),
		gaugeSeries(metricPrefix+".max", cp[len(cp)-1], tags, nowUnix),
		gaugeSeries(metricPrefix+".samples", float64(len(cp)), tags, nowUnix),
	)
}

func countSeries(metric string, value float64, tags []string, nowUnix int64) datadogV2.MetricSeries {
	return datadogV2.MetricSeries{
		Metric: metric,
		Type:   datadogV2.METRICINTAKETYPE_COUNT.Ptr(),
		Points: []datadogV2.MetricPoint{
			{Timestamp: dd.PtrInt64(nowUnix), Value: dd.PtrFloat64(value)},
		},
		Tags: tags,
	}
}

func gaugeSeries(metric string, value float64, tags []string, nowUnix int64) datadogV2.MetricSeries {
	return datadogV2.MetricSeries{
		Metric: metric,
		Type:   datadogV2.METRICINTAKETYPE_GAUGE.Ptr(),
		Points: []datadogV2.MetricPoint{
			{Timestamp: dd.PtrInt64(nowUnix), Value: dd.PtrFloat64(value)},
		},
		Tags: tags,
	}
}

func stepStatusKey(step, status string) string {
	if step == "" {
		step = "unknown"
	}
	if status == "" {
		status = "unknown"
	}
	return step + "\x00" + status
}

func splitStepStatusKey(k string) (step, status string) {
	parts := strings.SplitN(k, "\x00", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return k, "unknown"
}

func labelOr(labels metrics.Labels, key string) string {
	if v := labels[key]; v != "" {
		return v
	}
	return "unknown"
}

func withTags(base []string, extras ...string) []string {
	out := make([]string, 0, len(base)+len(extras))
	out = append(out, base...)
	out = append(out, extras...)
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// percentileNearestRank expects s sorted ascending.
func percentileNearestRank(s []float64, p float64) float64 {
	n := len(s)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return s[0]
	}
	if p >= 1 {
		return s[n-1]
	}
	idx := int(p*float64(n-1) + 0.5)
	if idx >= n {
		idx = n - 1
	}
	return s[idx]
}

var _ metrics.Backend = (*Backend)(nil)

func wrapInitErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("datadog metrics init: %w", err)
}
