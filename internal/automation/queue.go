package automation

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MaxAttempts is the retry cap before a job is dead-lettered.
const MaxAttempts = 5

// retryDelay is the reschedule delay applied to a failed job.
const retryDelay = 2 * time.Minute

// lockTimeout is how long a claimed job may sit in running state before
// another worker may reclaim it (crash recovery).
const lockTimeout = 5 * time.Minute

// Queue is the durable automation job queue backed by PostgreSQL.
type Queue struct {
	db *sql.DB
}

// NewQueue creates a queue over the given database handle.
func NewQueue(db *sql.DB) *Queue {
	return &Queue{db: db}
}

// Enqueue inserts jobs in queued state, scheduled immediately.
func (q *Queue) Enqueue(ctx context.Context, jobs ...*Job) error {
	for _, j := range jobs {
		if j.ID == uuid.Nil {
			j.ID = uuid.New()
		}
		_, err := q.db.ExecContext(ctx, `
			INSERT INTO growth_automation_jobs
				(id, kind, person_id, segment_id, direction, payload, status, attempts, scheduled_at, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, 'queued', 0, NOW(), NOW())
		`, j.ID, j.Kind, j.PersonID, j.SegmentID, j.Direction, []byte(j.Payload))
		if err != nil {
			return fmt.Errorf("enqueue %s job: %w", j.Kind, err)
		}
	}
	return nil
}

// ClaimBatch atomically claims up to limit runnable jobs for the given
// worker. Jobs stuck in running state past the lock timeout are reclaimable.
func (q *Queue) ClaimBatch(ctx context.Context, workerID string, limit int) ([]Job, error) {
	rows, err := q.db.QueryContext(ctx, `
		WITH claimed AS (
			UPDATE growth_automation_jobs
			SET status = 'running', worker_id = $1, locked_at = NOW()
			WHERE id IN (
				SELECT id FROM growth_automation_jobs
				WHERE status IN ('queued', 'failed')
				  AND scheduled_at <= NOW()
				  AND (locked_at IS NULL OR locked_at < NOW() - ($3 * INTERVAL '1 second'))
				ORDER BY scheduled_at ASC
				LIMIT $2
				FOR UPDATE SKIP LOCKED
			)
			RETURNING id, kind, person_id, segment_id, direction, payload, attempts, scheduled_at, created_at
		)
		SELECT id, kind, person_id, segment_id, direction, payload, attempts, scheduled_at, created_at
		FROM claimed
	`, workerID, limit, int(lockTimeout.Seconds()))
	if err != nil {
		return nil, fmt.Errorf("claim jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var j Job
		var payload []byte
		if err := rows.Scan(&j.ID, &j.Kind, &j.PersonID, &j.SegmentID, &j.Direction,
			&payload, &j.Attempts, &j.ScheduledAt, &j.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		j.Payload = payload
		j.Status = StatusRunning
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// MarkDone marks a job completed.
func (q *Queue) MarkDone(ctx context.Context, jobID uuid.UUID) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE growth_automation_jobs
		SET status = 'done', completed_at = NOW()
		WHERE id = $1
	`, jobID)
	return err
}

// MarkFailed records a failed attempt: the job is rescheduled with a delay,
// or dead-lettered once attempts reach the cap.
func (q *Queue) MarkFailed(ctx context.Context, jobID uuid.UUID, errMsg string) error {
	var attempts int
	if err := q.db.QueryRowContext(ctx, `
		SELECT COALESCE(attempts, 0) FROM growth_automation_jobs WHERE id = $1
	`, jobID).Scan(&attempts); err != nil {
		return fmt.Errorf("read attempts: %w", err)
	}

	if attempts+1 >= MaxAttempts {
		_, err := q.db.ExecContext(ctx, `
			UPDATE growth_automation_jobs
			SET status = 'dead_letter', error_message = $2, attempts = attempts + 1, last_attempt_at = NOW()
			WHERE id = $1
		`, jobID, errMsg)
		return err
	}

	_, err := q.db.ExecContext(ctx, `
		UPDATE growth_automation_jobs
		SET status = 'failed', error_message = $2, attempts = attempts + 1,
		    last_attempt_at = NOW(), scheduled_at = NOW() + ($3 * INTERVAL '1 second')
		WHERE id = $1
	`, jobID, errMsg, int(retryDelay.Seconds()))
	return err
}

// PendingCount returns the number of runnable jobs, for health endpoints.
func (q *Queue) PendingCount(ctx context.Context) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM growth_automation_jobs WHERE status IN ('queued', 'failed')
	`).Scan(&n)
	return n, err
}
