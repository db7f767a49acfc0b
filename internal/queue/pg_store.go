package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/devarispbrown/gtsd-sub009/internal/domain"
)

type pgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore returns a Store backed by PostgreSQL.
func NewPgStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

func (s *pgStore) Insert(ctx context.Context, job *domain.Job) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO notification_jobs
			(id, user_id, message_type, local_day, forced, skip_idempotency,
			 attempt, max_attempts, status, run_at, enqueued_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (user_id, message_type, local_day) WHERE status IN ('pending', 'leased')
		DO NOTHING`,
		job.ID, job.UserID, job.MessageType, job.LocalDay, job.Force, job.SkipIdempotency,
		job.Attempt, job.MaxAttempts, job.Status, job.RunAt, job.EnqueuedAt, job.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert job: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *pgStore) ClaimDue(ctx context.Context, now time.Time, leaseTTL time.Duration, limit int) ([]*domain.Job, error) {
	// FOR UPDATE SKIP LOCKED: concurrent pollers never hand the same row
	// to two workers.
	rows, err := s.pool.Query(ctx, `
		UPDATE notification_jobs
		SET status = 'leased', lease_expires_at = $1, updated_at = $2
		WHERE id IN (
			SELECT id FROM notification_jobs
			WHERE (status = 'pending' AND run_at <= $2)
			   OR (status = 'leased' AND lease_expires_at <= $2)
			ORDER BY run_at
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, user_id, message_type, local_day, forced, skip_idempotency,
		          attempt, max_attempts, status, run_at, lease_expires_at,
		          error_detail, enqueued_at, updated_at`,
		now.Add(leaseTTL), now, limit)
	if err != nil {
		return nil, fmt.Errorf("claim due jobs: %w", err)
	}
	defer rows.Close()
	return scanJobs(rows)
}

func (s *pgStore) Release(ctx context.Context, jobID string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE notification_jobs
		SET status = 'pending', lease_expires_at = NULL, updated_at = NOW()
		WHERE id = $1`, jobID)
	return err
}

func (s *pgStore) Complete(ctx context.Context, jobID string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE notification_jobs
		SET status = 'done', lease_expires_at = NULL, updated_at = NOW()
		WHERE id = $1`, jobID)
	return err
}

func (s *pgStore) RetryAt(ctx context.Context, jobID string, attempt int, runAt time.Time, errDetail string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE notification_jobs
		SET status = 'pending', attempt = $1, run_at = $2, error_detail = $3,
		    lease_expires_at = NULL, updated_at = NOW()
		WHERE id = $4`, attempt, runAt, errDetail, jobID)
	return err
}

func (s *pgStore) Reschedule(ctx context.Context, jobID string, runAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE notification_jobs
		SET status = 'pending', run_at = $1, lease_expires_at = NULL, updated_at = NOW()
		WHERE id = $2`, runAt, jobID)
	return err
}

func (s *pgStore) MarkDead(ctx context.Context, jobID, errDetail string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE notification_jobs
		SET status = 'dead', error_detail = $1, lease_expires_at = NULL, updated_at = NOW()
		WHERE id = $2`, errDetail, jobID)
	return err
}

func (s *pgStore) Sweep(ctx context.Context, doneBefore, deadBefore time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM notification_jobs
		WHERE (status = 'done' AND updated_at < $1)
		   OR (status = 'dead' AND updated_at < $2)`, doneBefore, deadBefore)
	if err != nil {
		return 0, fmt.Errorf("sweep jobs: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *pgStore) CountActive(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM notification_jobs WHERE status IN ('pending', 'leased')`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count active jobs: %w", err)
	}
	return count, nil
}

func scanJobs(rows pgx.Rows) ([]*domain.Job, error) {
	var jobs []*domain.Job
	for rows.Next() {
		var j domain.Job
		err := rows.Scan(
			&j.ID, &j.UserID, &j.MessageType, &j.LocalDay, &j.Force, &j.SkipIdempotency,
			&j.Attempt, &j.MaxAttempts, &j.Status, &j.RunAt, &j.LeaseExpiresAt,
			&j.ErrorDetail, &j.EnqueuedAt, &j.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, &j)
	}
	return jobs, rows.Err()
}
