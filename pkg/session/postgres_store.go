package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is a Store backed by PostgreSQL, for deployments that want
// session state to survive a process restart. Expiry is enforced the same
// way the in-memory store does it — a periodic sweep — rather than native
// row TTL, since Postgres has none; the sweep just runs as a DELETE.
type PostgresStore struct {
	pool    *pgxpool.Pool
	timeout time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewPostgresStore wraps an already-connected pool. Migrations are applied
// separately, by pkg/storage.Open from pkg/storage/migrations, before this
// is constructed.
func NewPostgresStore(pool *pgxpool.Pool, timeout, sweep time.Duration) *PostgresStore {
	s := &PostgresStore{
		pool:    pool,
		timeout: timeout,
		stopCh:  make(chan struct{}),
	}
	s.wg.Add(1)
	go s.sweepLoop(sweep)
	return s
}

func (s *PostgresStore) sweepLoop(interval time.Duration) {
	defer s.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			n, err := s.sweepExpired(context.Background())
			if err != nil {
				slog.Error("session sweep failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("cleaned up expired sessions", "count", n)
			}
		}
	}
}

func (s *PostgresStore) sweepExpired(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-s.timeout)
	tag, err := s.pool.Exec(ctx, `DELETE FROM streamweaver_sessions WHERE last_activity < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) Create(ctx context.Context, id, userID, request string, sessionCtx map[string]any) (*Data, error) {
	ctxJSON, err := json.Marshal(sessionCtx)
	if err != nil {
		return nil, fmt.Errorf("marshal session context: %w", err)
	}

	now := time.Now()
	_, err = s.pool.Exec(ctx, `
		INSERT INTO streamweaver_sessions
			(id, user_id, request, context, status, created_at, last_activity, total_steps, completed_steps, current_step)
		VALUES ($1, $2, $3, $4, $5, $6, $6, 0, 0, '')
		ON CONFLICT (id) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			request = EXCLUDED.request,
			context = EXCLUDED.context,
			status = EXCLUDED.status,
			created_at = EXCLUDED.created_at,
			last_activity = EXCLUDED.created_at,
			total_steps = 0,
			completed_steps = 0,
			current_step = ''
	`, id, userID, request, ctxJSON, string(StatusActive), now)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}

	return New(id, request, sessionCtx, userID), nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Data, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT user_id, request, context, status, created_at, last_activity, total_steps, completed_steps, current_step
		FROM streamweaver_sessions WHERE id = $1
	`, id)

	var (
		userID, request, currentStep string
		contextJSON                  []byte
		status                       string
		createdAt, lastActivity      time.Time
		totalSteps, completedSteps   int
	)
	if err := row.Scan(&userID, &request, &contextJSON, &status, &createdAt, &lastActivity, &totalSteps, &completedSteps, &currentStep); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query session: %w", err)
	}

	var sessionCtx map[string]any
	if len(contextJSON) > 0 {
		if err := json.Unmarshal(contextJSON, &sessionCtx); err != nil {
			return nil, fmt.Errorf("unmarshal session context: %w", err)
		}
	}

	data := New(id, request, sessionCtx, userID)
	data.CreatedAt = createdAt
	data.Touch(lastActivity, currentStep)
	data.SetStatus(Status(status))
	data.IncrementSteps(totalSteps, completedSteps)
	return data, nil
}

func (s *PostgresStore) UpdateActivity(ctx context.Context, id string, at time.Time, currentStep string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE streamweaver_sessions SET last_activity = $2, current_step = COALESCE(NULLIF($3, ''), current_step)
		WHERE id = $1
	`, id, at, currentStep)
	if err != nil {
		return fmt.Errorf("update session activity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) SetStatus(ctx context.Context, id string, status Status) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE streamweaver_sessions SET status = $2, last_activity = now() WHERE id = $1
	`, id, string(status))
	if err != nil {
		return fmt.Errorf("update session status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM streamweaver_sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ActiveCount(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM streamweaver_sessions WHERE status = $1`, string(StatusActive)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count active sessions: %w", err)
	}
	return count, nil
}

// Close stops the sweeper and closes the pool. Safe to call more than once.
func (s *PostgresStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
	s.pool.Close()
	return nil
}
