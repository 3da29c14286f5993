// Package session manages the lifecycle of streaming sessions: creation,
// lookup, activity bookkeeping, and expiry. Two backends implement Store —
// an in-memory map for single-process deployments and a PostgreSQL-backed
// store for deployments that want session state to survive a restart.
package session

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a session ID has no matching record.
var ErrNotFound = errors.New("session not found")

// Store is the storage contract every session backend implements.
//
// UpdateActivity on a missing session returns ErrNotFound rather than
// silently creating one — callers that don't care (the stream engine's
// best-effort bookkeeping after a publish) can discard the error.
type Store interface {
	Create(ctx context.Context, id, userID, request string, sessionCtx map[string]any) (*Data, error)
	Get(ctx context.Context, id string) (*Data, error)
	UpdateActivity(ctx context.Context, id string, at time.Time, currentStep string) error
	SetStatus(ctx context.Context, id string, status Status) error
	Delete(ctx context.Context, id string) error
	ActiveCount(ctx context.Context) (int, error)
	Close() error
}
