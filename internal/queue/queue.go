// Package queue is an at-least-once background task queue stored in the
// SQLite metastore. Tasks are claimed atomically, retried with backoff, and
// returned to the queue when a worker holds them past the lease timeout.
package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"govreport/internal/domain"
)

var _ domain.TaskQueue = (*Queue)(nil)

// Status is the lifecycle state of a task.
type Status string

// Task statuses. Dead tasks exhausted their attempts.
const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusDead       Status = "dead"
)

// Task is one queued unit of background work.
type Task struct {
	ID           string
	Name         string
	Args         json.RawMessage
	Status       Status
	AttemptCount int
	MaxAttempts  int
	LastError    *string
	ScheduledAt  time.Time
	StartedAt    *time.Time
}

// Decode unmarshals the task arguments into v.
func (t *Task) Decode(v any) error {
	if err := json.Unmarshal(t.Args, v); err != nil {
		return fmt.Errorf("decode %s args: %w", t.Name, err)
	}
	return nil
}

// Config tunes retry and lease behaviour.
type Config struct {
	MaxAttempts    int
	BaseRetryDelay time.Duration
	MaxRetryDelay  time.Duration
	LeaseTimeout   time.Duration
}

// DefaultConfig returns the queue defaults. The lease must outlive the longest
// task, so it is longer than the export job timeout.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    5,
		BaseRetryDelay: 30 * time.Second,
		MaxRetryDelay:  time.Hour,
		LeaseTimeout:   90 * time.Minute,
	}
}

// Queue stores tasks in the tasks table.
type Queue struct {
	db     *sql.DB
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Queue over the metastore write pool.
func New(db *sql.DB, cfg Config, logger *slog.Logger) *Queue {
	def := DefaultConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.BaseRetryDelay <= 0 {
		cfg.BaseRetryDelay = def.BaseRetryDelay
	}
	if cfg.MaxRetryDelay <= 0 {
		cfg.MaxRetryDelay = def.MaxRetryDelay
	}
	if cfg.LeaseTimeout <= 0 {
		cfg.LeaseTimeout = def.LeaseTimeout
	}
	return &Queue{db: db, cfg: cfg, logger: logger.With("component", "queue"), now: time.Now}
}

// Enqueue stores a task for immediate delivery and returns its id.
func (q *Queue) Enqueue(ctx context.Context, name string, args any) (string, error) {
	body, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("marshal %s args: %w", name, err)
	}
	id := domain.NewID()
	now := q.now().UTC()
	_, err = q.db.ExecContext(ctx, `
		INSERT INTO tasks (id, name, args, status, max_attempts, scheduled_at, created_at, updated_at)
		VALUES (?, ?, ?, 'pending', ?, ?, ?, ?)`,
		id, name, string(body), q.cfg.MaxAttempts, now, now, now)
	if err != nil {
		return "", fmt.Errorf("enqueue %s: %w", name, err)
	}
	q.logger.Debug("task enqueued", "task_id", id, "task", name)
	return id, nil
}

// Claim moves up to limit due tasks to processing and returns them. The
// selection and the updates share one immediate transaction, so two workers
// never claim the same task.
func (q *Queue) Claim(ctx context.Context, limit int) ([]*Task, error) {
	if limit <= 0 {
		limit = 1
	}
	now := q.now().UTC()

	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin claim: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `
		SELECT id FROM tasks
		WHERE status = 'pending' AND scheduled_at <= ?
		ORDER BY scheduled_at, created_at
		LIMIT ?`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("select due tasks: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan task id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("select due tasks: %w", err)
	}

	tasks := make([]*Task, 0, len(ids))
	for _, id := range ids {
		_, err := tx.ExecContext(ctx, `
			UPDATE tasks
			SET status = 'processing', started_at = ?, attempt_count = attempt_count + 1, updated_at = ?
			WHERE id = ? AND status = 'pending'`, now, now, id)
		if err != nil {
			return nil, fmt.Errorf("claim task %s: %w", id, err)
		}
		t, err := scanTask(tx.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id))
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit claim: %w", err)
	}
	return tasks, nil
}

// Get returns a task by id.
func (q *Queue) Get(ctx context.Context, id string) (*Task, error) {
	t, err := scanTask(q.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound("task %s not found", id)
	}
	return t, err
}

const taskColumns = `id, name, args, status, attempt_count, max_attempts, last_error, scheduled_at, started_at`

func scanTask(row *sql.Row) (*Task, error) {
	var (
		t         Task
		args      string
		status    string
		lastError sql.NullString
		startedAt sql.NullTime
	)
	err := row.Scan(&t.ID, &t.Name, &args, &status, &t.AttemptCount, &t.MaxAttempts,
		&lastError, &t.ScheduledAt, &startedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan task: %w", err)
	}
	t.Args = json.RawMessage(args)
	t.Status = Status(status)
	if lastError.Valid {
		msg := lastError.String
		t.LastError = &msg
	}
	if startedAt.Valid {
		st := startedAt.Time
		t.StartedAt = &st
	}
	return &t, nil
}

// Complete marks a claimed task done.
func (q *Queue) Complete(ctx context.Context, id string) error {
	now := q.now().UTC()
	_, err := q.db.ExecContext(ctx, `
		UPDATE tasks SET status = 'completed', last_error = NULL, completed_at = ?, updated_at = ?
		WHERE id = ?`, now, now, id)
	if err != nil {
		return fmt.Errorf("complete task %s: %w", id, err)
	}
	return nil
}

// Fail records a task failure. The task is rescheduled with quadratic backoff
// until it exhausts its attempts, then it is dead.
func (q *Queue) Fail(ctx context.Context, id string, taskErr error) error {
	var attempts, maxAttempts int
	err := q.db.QueryRowContext(ctx, `SELECT attempt_count, max_attempts FROM tasks WHERE id = ?`, id).
		Scan(&attempts, &maxAttempts)
	if errors.Is(err, sql.ErrNoRows) {
		q.logger.Warn("failed task not found", "task_id", id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load task %s: %w", id, err)
	}

	msg := "task failed"
	if taskErr != nil {
		msg = truncate(taskErr.Error(), 1000)
	}
	now := q.now().UTC()

	if attempts >= maxAttempts {
		_, err = q.db.ExecContext(ctx, `
			UPDATE tasks SET status = 'dead', last_error = ?, completed_at = ?, updated_at = ?
			WHERE id = ?`, msg, now, now, id)
		if err != nil {
			return fmt.Errorf("bury task %s: %w", id, err)
		}
		q.logger.Error("task exhausted its attempts", "task_id", id, "attempts", attempts, "error", msg)
		return nil
	}

	delay := q.Backoff(attempts)
	_, err = q.db.ExecContext(ctx, `
		UPDATE tasks SET status = 'pending', last_error = ?, started_at = NULL, scheduled_at = ?, updated_at = ?
		WHERE id = ?`, msg, now.Add(delay), now, id)
	if err != nil {
		return fmt.Errorf("requeue task %s: %w", id, err)
	}
	q.logger.Warn("task failed, retrying", "task_id", id, "attempt", attempts, "retry_delay", delay, "error", msg)
	return nil
}

// Backoff returns the retry delay after the given attempt: base * attempt²,
// clamped to [base, max].
func (q *Queue) Backoff(attempt int) time.Duration {
	delay := q.cfg.BaseRetryDelay * time.Duration(attempt*attempt)
	if delay < q.cfg.BaseRetryDelay {
		delay = q.cfg.BaseRetryDelay
	}
	if delay > q.cfg.MaxRetryDelay {
		delay = q.cfg.MaxRetryDelay
	}
	return delay
}

// RecoverStale returns tasks held longer than the lease timeout to pending.
func (q *Queue) RecoverStale(ctx context.Context) (int, error) {
	now := q.now().UTC()
	res, err := q.db.ExecContext(ctx, `
		UPDATE tasks SET status = 'pending', started_at = NULL, scheduled_at = ?, updated_at = ?
		WHERE status = 'processing' AND started_at < ?`, now, now, now.Add(-q.cfg.LeaseTimeout))
	if err != nil {
		return 0, fmt.Errorf("recover stale tasks: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		q.logger.Warn("recovered stale tasks", "count", n, "lease", q.cfg.LeaseTimeout)
	}
	return int(n), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
