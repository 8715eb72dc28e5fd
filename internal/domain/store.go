package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and time filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// PositionStore persists the position ledger. The core hands a Position value
// to the store at open time and expects the same value back unchanged for
// every later re-evaluation.
type PositionStore interface {
	Create(ctx context.Context, pos Position) error
	Close(ctx context.Context, id string, closedAt time.Time) error
	GetByID(ctx context.Context, id string) (Position, error)
	ListOpen(ctx context.Context) ([]Position, error)
	ListHistory(ctx context.Context, opts ListOpts) ([]Position, error)
}

// EvaluationStore persists screening history.
type EvaluationStore interface {
	Insert(ctx context.Context, ev EvalResult) error
	GetByID(ctx context.Context, id string) (EvalResult, error)
	ListRecent(ctx context.Context, limit int) ([]EvalResult, error)
	ListBefore(ctx context.Context, before time.Time) ([]EvalResult, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
