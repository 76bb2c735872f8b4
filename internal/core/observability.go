package core

import (
	"context"
	"time"

	"deckcore/pkg/domain"
)

// Logger is the structured logging surface the service writes to. *slog.Logger
// satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Clock supplies timestamps for audit entries and snapshots.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// AuditStatus is the outcome recorded for an operation.
type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusError   AuditStatus = "error"
)

// AuditEntry describes one service operation for the audit trail.
type AuditEntry struct {
	ID        string            `json:"id"`
	Operation string            `json:"operation"`
	Kind      domain.ChangeKind `json:"kind,omitempty"`
	Action    domain.Action     `json:"action,omitempty"`
	DeckID    string            `json:"deck_id"`
	Key       string            `json:"key,omitempty"`
	Changes   int               `json:"changes"`
	Status    AuditStatus       `json:"status"`
	Error     string            `json:"error,omitempty"`
	Duration  time.Duration     `json:"duration"`
	Timestamp time.Time         `json:"timestamp"`
}

// AuditRecorder receives audit entries. Implementations must be safe for
// concurrent use.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

// MetricsRecorder observes operation outcomes and latency.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// Tracer starts a span per operation.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// TraceSpan is ended exactly once with the operation error, if any.
type TraceSpan interface {
	End(err error)
}

type noopAuditRecorder struct{}

func (noopAuditRecorder) Record(context.Context, AuditEntry) {}

type noopMetricsRecorder struct{}

func (noopMetricsRecorder) Observe(context.Context, string, bool, time.Duration) {}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}

// operation describes how an operation shows up in the audit trail.
type operation struct {
	kind    domain.ChangeKind
	action  domain.Action
	mutates bool
}

// Operation names. They double as metric labels and span names.
const (
	OpAddCard           = "add_card"
	OpRemoveCard        = "remove_card"
	OpSetCard           = "set_card"
	OpAddCards          = "add_cards"
	OpRemoveCards       = "remove_cards"
	OpClear             = "clear"
	OpSort              = "sort"
	OpAddCategory       = "add_category"
	OpUpdateCategory    = "update_category"
	OpRemoveCategory    = "remove_category"
	OpSwapCategoryRanks = "swap_category_ranks"
	OpInclude           = "include"
	OpExclude           = "exclude"
	OpNewHand           = "new_hand"
	OpMulligan          = "mulligan"
	OpDraw              = "draw"
	OpSave              = "save"
	OpLoad              = "load"
	OpDelete            = "delete"
	OpExport            = "export"
	OpImport            = "import"
	OpShareExport       = "share_export"
	OpAudit             = "audit"
)

var operations = map[string]operation{
	OpAddCard:           {kind: domain.ChangeEntry, action: domain.ActionCreate, mutates: true},
	OpRemoveCard:        {kind: domain.ChangeEntry, action: domain.ActionDelete, mutates: true},
	OpSetCard:           {kind: domain.ChangeEntry, action: domain.ActionUpdate, mutates: true},
	OpAddCards:          {kind: domain.ChangeEntry, action: domain.ActionCreate, mutates: true},
	OpRemoveCards:       {kind: domain.ChangeEntry, action: domain.ActionDelete, mutates: true},
	OpClear:             {kind: domain.ChangeEntry, action: domain.ActionDelete, mutates: true},
	OpSort:              {kind: domain.ChangeEntry, action: domain.ActionReorder, mutates: true},
	OpAddCategory:       {kind: domain.ChangeCategory, action: domain.ActionCreate, mutates: true},
	OpUpdateCategory:    {kind: domain.ChangeCategory, action: domain.ActionUpdate, mutates: true},
	OpRemoveCategory:    {kind: domain.ChangeCategory, action: domain.ActionDelete, mutates: true},
	OpSwapCategoryRanks: {kind: domain.ChangeCategory, action: domain.ActionReorder, mutates: true},
	OpInclude:           {kind: domain.ChangeCategory, action: domain.ActionUpdate, mutates: true},
	OpExclude:           {kind: domain.ChangeCategory, action: domain.ActionUpdate, mutates: true},
	OpNewHand:           {},
	OpMulligan:          {},
	OpDraw:              {},
	OpSave:              {},
	OpLoad:              {kind: domain.ChangeEntry, action: domain.ActionUpdate},
	OpDelete:            {},
	OpExport:            {},
	OpImport:            {kind: domain.ChangeEntry, action: domain.ActionUpdate, mutates: true},
	OpShareExport:       {},
	OpAudit:             {},
}
