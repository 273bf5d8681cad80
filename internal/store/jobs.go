package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// jobOrder keeps publication in original submission order even when jobs are
// appended out of order after a restart re-derives sequence numbers.
const jobOrder = ` ORDER BY row_index ASC, seq ASC, created_at ASC, job_id ASC`

const jobColumns = "job_id, seq, row_index, track_keys, posted_track_keys, response_key, headers, row, created_at, attempts, last_attempt_at, last_error"

// AppendJob allocates the next job id and inserts the job. The sequence is
// monotonically increasing for the lifetime of the store; ids are the
// zero-padded sequence number.
func (s *Store) AppendJob(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append job: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO counters (name, value) VALUES ('job_seq', 1)
         ON CONFLICT (name) DO UPDATE SET value = value + 1`,
	); err != nil {
		return fmt.Errorf("advance job sequence: %w", err)
	}
	row := tx.QueryRowContext(ctx, `SELECT value FROM counters WHERE name = 'job_seq'`)
	if err := row.Scan(&job.Seq); err != nil {
		return fmt.Errorf("read job sequence: %w", err)
	}
	job.JobID = fmt.Sprintf("%06d", job.Seq)
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}

	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO post_jobs (`+jobColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.JobID,
		job.Seq,
		job.RowIndex,
		marshalJSON(job.TrackKeys),
		marshalJSON(job.PostedTracks),
		nullableString(job.ResponseKey),
		marshalJSON(job.Headers),
		marshalJSON(job.Row),
		job.CreatedAt.Format(time.RFC3339Nano),
		job.Attempts,
		nullableTime(job.LastAttemptAt),
		nullableString(job.LastError),
	); err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return tx.Commit()
}

// UpdateJob persists mutable job fields (posted tracks, attempts, errors).
func (s *Store) UpdateJob(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE post_jobs
         SET track_keys = ?, posted_track_keys = ?, attempts = ?, last_attempt_at = ?, last_error = ?
         WHERE job_id = ?`,
		marshalJSON(job.TrackKeys),
		marshalJSON(job.PostedTracks),
		job.Attempts,
		nullableTime(job.LastAttemptAt),
		nullableString(job.LastError),
		job.JobID,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return nil
}

// RemoveJob deletes a completed job from the queue.
func (s *Store) RemoveJob(ctx context.Context, jobID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM post_jobs WHERE job_id = ?`, jobID); err != nil {
		return fmt.Errorf("remove job: %w", err)
	}
	return nil
}

// ClearJobs removes every queued job and returns the number removed.
func (s *Store) ClearJobs(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM post_jobs`)
	if err != nil {
		return 0, fmt.Errorf("clear jobs: %w", err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clear jobs: %w", err)
	}
	return removed, nil
}

// RetryJobs resets attempt counters and errors on failed jobs so the next
// drain reattempts them. Returns the number of jobs reset.
func (s *Store) RetryJobs(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(
		ctx,
		`UPDATE post_jobs SET attempts = 0, last_attempt_at = NULL, last_error = NULL
         WHERE attempts > 0 OR last_error IS NOT NULL`,
	)
	if err != nil {
		return 0, fmt.Errorf("retry jobs: %w", err)
	}
	updated, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("retry jobs: %w", err)
	}
	return updated, nil
}

// HeadJob returns the first job in publication order, or nil when the queue
// is empty.
func (s *Store) HeadJob(ctx context.Context) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM post_jobs`+jobOrder+` LIMIT 1`)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("head job: %w", err)
	}
	return job, nil
}

// ListJobs returns all queued jobs in publication order.
func (s *Store) ListJobs(ctx context.Context) ([]*Job, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM post_jobs`+jobOrder)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// CountJobs returns the queue depth.
func (s *Store) CountJobs(ctx context.Context) (int, error) {
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM post_jobs`)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count jobs: %w", err)
	}
	return count, nil
}

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		jobID         string
		seq           int64
		rowIndex      int
		trackKeys     sql.NullString
		postedKeys    sql.NullString
		responseKey   sql.NullString
		headers       sql.NullString
		rowValues     sql.NullString
		createdRaw    sql.NullString
		attempts      int
		lastAttemptAt sql.NullString
		lastError     sql.NullString
	)

	if err := scanner.Scan(
		&jobID,
		&seq,
		&rowIndex,
		&trackKeys,
		&postedKeys,
		&responseKey,
		&headers,
		&rowValues,
		&createdRaw,
		&attempts,
		&lastAttemptAt,
		&lastError,
	); err != nil {
		return nil, err
	}

	job := &Job{
		JobID:         jobID,
		Seq:           seq,
		RowIndex:      rowIndex,
		ResponseKey:   responseKey.String,
		Attempts:      attempts,
		LastError:     lastError.String,
		LastAttemptAt: scanTimePtr(lastAttemptAt),
	}
	unmarshalJSON(trackKeys, &job.TrackKeys)
	unmarshalJSON(postedKeys, &job.PostedTracks)
	unmarshalJSON(headers, &job.Headers)
	unmarshalJSON(rowValues, &job.Row)
	if created, err := parseTimeString(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	return job, nil
}
