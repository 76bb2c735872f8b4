package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type captureAuditRecorder struct {
	mu      sync.Mutex
	entries []AuditEntry
}

func (c *captureAuditRecorder) Record(_ context.Context, entry AuditEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, entry)
}

func (c *captureAuditRecorder) all() []AuditEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]AuditEntry(nil), c.entries...)
}

func (c *captureAuditRecorder) has(op string, status AuditStatus) bool {
	for _, e := range c.all() {
		if e.Operation == op && e.Status == status {
			return true
		}
	}
	return false
}

type captureMetrics struct {
	mu    sync.Mutex
	calls map[string][]bool
}

func (c *captureMetrics) Observe(_ context.Context, op string, success bool, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.calls == nil {
		c.calls = make(map[string][]bool)
	}
	c.calls[op] = append(c.calls[op], success)
}

type captureLogger struct {
	mu    sync.Mutex
	warns []string
	errs  []string
}

func (l *captureLogger) Debug(string, ...any) {}
func (l *captureLogger) Info(string, ...any)  {}
func (l *captureLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}
func (l *captureLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errs = append(l.errs, msg)
}

func TestRunRecordsAuditEntries(t *testing.T) {
	ctx := context.Background()
	audit := &captureAuditRecorder{}
	metrics := &captureMetrics{}
	logger := &captureLogger{}
	svc := newService(t, WithAuditRecorder(audit), WithMetricsRecorder(metrics), WithLogger(logger))

	_, err := svc.AddCard(ctx, "bears", 2)
	require.NoError(t, err)
	_, err = svc.AddCard(ctx, "missing", 1)
	require.Error(t, err)

	entries := audit.all()
	require.Len(t, entries, 2)
	ok := entries[0]
	assert.Equal(t, OpAddCard, ok.Operation)
	assert.Equal(t, "alpha", ok.DeckID)
	assert.Equal(t, "bears", ok.Key)
	assert.Equal(t, AuditStatusSuccess, ok.Status)
	assert.Equal(t, 1, ok.Changes)
	assert.Equal(t, fixed, ok.Timestamp)
	assert.NotEmpty(t, ok.ID)

	failed := entries[1]
	assert.Equal(t, AuditStatusError, failed.Status)
	assert.Contains(t, failed.Error, "missing")
	assert.Zero(t, failed.Changes)
	assert.NotEqual(t, ok.ID, failed.ID)

	assert.Equal(t, []bool{true, false}, metrics.calls[OpAddCard])
	assert.Equal(t, []string{"deck operation failed"}, logger.warns)
}

func TestAuditReportsBlockingViolations(t *testing.T) {
	ctx := context.Background()
	logger := &captureLogger{}
	svc := newService(t, WithLogger(logger))
	_, err := svc.AddCard(ctx, "forest", 3)
	require.NoError(t, err)

	res, err := svc.Audit(ctx)
	require.NoError(t, err)
	assert.False(t, res.HasBlocking())
	assert.Empty(t, logger.errs)
}

func TestConcurrentOperations(t *testing.T) {
	ctx := context.Background()
	audit := &captureAuditRecorder{}
	svc := newService(t, WithAuditRecorder(audit))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				_, _ = svc.AddCard(ctx, "bolt", 1)
				_ = svc.Stats("type")
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 80, svc.Deck().Count("bolt"))
	assert.Len(t, audit.all(), 80)
}

func TestPrometheusMetricsRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := NewPrometheusMetricsRecorder(reg, "test")
	svc := newService(t, WithMetricsRecorder(rec))
	ctx := context.Background()

	_, _ = svc.AddCard(ctx, "bears", 1)
	_, _ = svc.AddCard(ctx, "bears", 1)
	_, _ = svc.AddCard(ctx, "nope", 1)

	assert.Equal(t, 2.0, testutil.ToFloat64(rec.operations.WithLabelValues(OpAddCard, "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.operations.WithLabelValues(OpAddCard, "error")))
	assert.Equal(t, 1, testutil.CollectAndCount(rec.latency, "test_deck_operation_duration_seconds"))

	families, err := reg.Gather()
	require.NoError(t, err)
	var names []string
	for _, mf := range families {
		names = append(names, mf.GetName())
	}
	assert.Contains(t, names, "test_deck_operations_total")
}

func TestSlogAuditRecorder(t *testing.T) {
	var buf bytes.Buffer
	rec := NewSlogAuditRecorder(slog.New(slog.NewJSONHandler(&buf, nil)))
	svc := newService(t, WithAuditRecorder(rec))
	ctx := context.Background()
	_, _ = svc.AddCard(ctx, "elves", 1)
	_, _ = svc.RemoveCard(ctx, "nope", 1)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "audit", first["msg"])
	assert.Equal(t, "INFO", first["level"])
	assert.Equal(t, OpAddCard, first["operation"])
	assert.Equal(t, "elves", first["key"])

	var second map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "WARN", second["level"])
	assert.Contains(t, second["error"], "nope")

	assert.NotNil(t, NewSlogAuditRecorder(nil).logger)
}

func TestOTelTracer(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	svc := newService(t, WithTracer(NewOTelTracer(provider.Tracer("deckcore-test"))))
	ctx := context.Background()
	_, _ = svc.AddCard(ctx, "bears", 1)
	_, _ = svc.AddCard(ctx, "nope", 1)

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "deck."+OpAddCard, spans[0].Name())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	require.NotEmpty(t, spans[1].Events())
	assert.Equal(t, "exception", spans[1].Events()[0].Name)

	var found bool
	for _, attr := range spans[0].Attributes() {
		if string(attr.Key) == "deck.operation" {
			found = attr.Value.AsString() == OpAddCard
		}
	}
	assert.True(t, found)
}

func TestExpvarMetricsRecorder(t *testing.T) {
	rec := NewExpvarMetricsRecorder("")
	assert.True(t, strings.HasPrefix(rec.Name(), "deckcore_metrics_"))
	assert.NotNil(t, expvar.Get(rec.Name()))

	ctx := context.Background()
	rec.Observe(ctx, OpDraw, true, 2*time.Millisecond)
	rec.Observe(ctx, OpDraw, false, time.Millisecond)
	rec.Observe(ctx, "", true, time.Second)

	snap := rec.Snapshot()
	assert.InDelta(t, 3.0, snap.DurationsMS[OpDraw], 0.001)
	assert.Equal(t, int64(1), snap.Results[OpDraw]["success"])
	assert.Equal(t, int64(1), snap.Results[OpDraw]["error"])
	assert.Len(t, snap.Results, 1)

	var published ExpvarMetricsSnapshot
	require.NoError(t, json.Unmarshal([]byte(expvar.Get(rec.Name()).String()), &published))
	assert.Equal(t, snap, published)
}

func TestJSONTracer(t *testing.T) {
	var buf bytes.Buffer
	tracer := NewJSONTracer(&buf)
	svc := newService(t, WithTracer(tracer))
	ctx := context.Background()
	_, _ = svc.AddCard(ctx, "bolt", 1)
	_, _ = svc.Draw(ctx)

	entries := tracer.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, OpAddCard, entries[0].Operation)
	assert.Equal(t, "success", entries[0].Status)
	assert.Equal(t, OpDraw, entries[1].Operation)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 2)

	retained := NewJSONTracer(nil)
	_, span := retained.Start(ctx, OpSave)
	span.End(errors.New("boom"))
	require.Len(t, retained.Entries(), 1)
	assert.Equal(t, "boom", retained.Entries()[0].Error)
}

func TestNoopImplementations(t *testing.T) {
	ctx := context.Background()
	noopLogger{}.Info("ignored")
	noopAuditRecorder{}.Record(ctx, AuditEntry{})
	noopMetricsRecorder{}.Observe(ctx, OpDraw, true, 0)
	got, span := noopTracer{}.Start(ctx, OpDraw)
	span.End(nil)
	assert.Equal(t, ctx, got)

	for op, meta := range operations {
		if meta.mutates {
			assert.NotEmpty(t, meta.kind, op)
		}
	}
}
