package core

import (
	"time"

	"deckcore/internal/blob"
	"deckcore/pkg/domain"
)

type serviceOptions struct {
	clock      Clock
	logger     Logger
	audit      AuditRecorder
	metrics    MetricsRecorder
	tracer     Tracer
	store      domain.SnapshotStore
	archive    blob.Store
	invariants bool
	seed       *uint64
	deckID     string
}

func defaultServiceOptions() serviceOptions {
	return serviceOptions{
		clock:   ClockFunc(func() time.Time { return time.Now().UTC() }),
		logger:  noopLogger{},
		audit:   noopAuditRecorder{},
		metrics: noopMetricsRecorder{},
		tracer:  noopTracer{},
		deckID:  "default",
	}
}

// Option configures a Service.
type Option func(*serviceOptions)

// WithLogger routes service logs to logger.
func WithLogger(logger Logger) Option {
	return func(o *serviceOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock overrides the clock used for entry dates, snapshots and audit
// timestamps.
func WithClock(clock Clock) Option {
	return func(o *serviceOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithAuditRecorder installs an audit sink.
func WithAuditRecorder(recorder AuditRecorder) Option {
	return func(o *serviceOptions) {
		if recorder != nil {
			o.audit = recorder
		}
	}
}

// WithMetricsRecorder installs a metrics sink.
func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(o *serviceOptions) {
		if recorder != nil {
			o.metrics = recorder
		}
	}
}

// WithTracer installs a tracer.
func WithTracer(tracer Tracer) Option {
	return func(o *serviceOptions) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// WithStore persists a snapshot after every successful mutation.
func WithStore(store domain.SnapshotStore) Option {
	return func(o *serviceOptions) { o.store = store }
}

// WithArchive enables Export, Import, Exports and ShareExport.
func WithArchive(store blob.Store) Option {
	return func(o *serviceOptions) { o.archive = store }
}

// WithInvariantChecks makes the deck evaluate its invariant rules after every
// mutation and panic on a violation.
func WithInvariantChecks(enabled bool) Option {
	return func(o *serviceOptions) { o.invariants = enabled }
}

// WithHandSeed makes hand shuffles reproducible.
func WithHandSeed(seed uint64) Option {
	return func(o *serviceOptions) { o.seed = &seed }
}

// WithDeckID names the deck for persistence and archiving.
func WithDeckID(id string) Option {
	return func(o *serviceOptions) {
		if id != "" {
			o.deckID = id
		}
	}
}
