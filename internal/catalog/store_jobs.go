package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const jobColumns = `id, file_id, status, progress, error_message, temp_path, created_at, started_at, completed_at`

func scanJob(row interface{ Scan(...any) error }) (*Job, error) {
	var (
		job          Job
		errorMessage sql.NullString
		tempPath     sql.NullString
		createdAt    sql.NullString
		startedAt    sql.NullString
		completedAt  sql.NullString
	)
	if err := row.Scan(
		&job.ID, &job.FileID, &job.Status, &job.Progress,
		&errorMessage, &tempPath, &createdAt, &startedAt, &completedAt,
	); err != nil {
		return nil, err
	}

	job.ErrorMessage = errorMessage.String
	job.TempPath = tempPath.String

	var err error
	if job.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if job.StartedAt, err = parseTimePtr(startedAt); err != nil {
		return nil, err
	}
	if job.CompletedAt, err = parseTimePtr(completedAt); err != nil {
		return nil, err
	}
	return &job, nil
}

// JobByID fetches a single job.
func (s *Store) JobByID(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// JobsByStatus lists jobs, oldest first. With no statuses it lists everything.
func (s *Store) JobsByStatus(ctx context.Context, statuses ...JobStatus) ([]Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + placeholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

// ActiveJobForFile returns the file's queued or processing job, or ErrNotFound.
func (s *Store) ActiveJobForFile(ctx context.Context, fileID int64) (*Job, error) {
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT `+jobColumns+` FROM jobs WHERE file_id = ? AND status IN (?, ?) LIMIT 1`,
		fileID, JobQueued, JobProcessing,
	)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get active job: %w", err)
	}
	return job, nil
}

// HasActiveJob reports whether the file has a queued or processing job.
func (s *Store) HasActiveJob(ctx context.Context, fileID int64) (bool, error) {
	_, err := s.ActiveJobForFile(ctx, fileID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// EnqueueJob creates a queued job for the file and marks the file queued.
// A file can only carry one queued or processing job at a time; enforcing
// that inside the transaction keeps concurrent enqueues single-flight.
func (s *Store) EnqueueJob(ctx context.Context, fileID int64) (*Job, error) {
	var jobID int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		txCtx := ensureContext(ctx)
		var existing int
		err := tx.QueryRowContext(
			txCtx,
			`SELECT COUNT(*) FROM jobs WHERE file_id = ? AND status IN (?, ?)`,
			fileID, JobQueued, JobProcessing,
		).Scan(&existing)
		if err != nil {
			return fmt.Errorf("check active jobs: %w", err)
		}
		if existing > 0 {
			return ErrActiveJobExists
		}

		ts := now()
		result, err := tx.ExecContext(
			txCtx,
			`INSERT INTO jobs (file_id, status, progress, created_at) VALUES (?, ?, 0, ?)`,
			fileID, JobQueued, ts,
		)
		if err != nil {
			return fmt.Errorf("insert job: %w", err)
		}
		if jobID, err = result.LastInsertId(); err != nil {
			return fmt.Errorf("job id: %w", err)
		}
		if _, err := tx.ExecContext(
			txCtx,
			`UPDATE media_files SET process_status = ?, updated_at = ? WHERE id = ?`,
			ProcessQueued, ts, fileID,
		); err != nil {
			return fmt.Errorf("mark file queued: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.JobByID(ctx, jobID)
}

// NextQueuedJob returns the oldest queued job, or ErrNotFound when the queue
// is empty.
func (s *Store) NextQueuedJob(ctx context.Context) (*Job, error) {
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT `+jobColumns+` FROM jobs WHERE status = ? ORDER BY created_at, id LIMIT 1`,
		JobQueued,
	)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("next queued job: %w", err)
	}
	return job, nil
}

// ClaimJob transitions a queued job to processing. The status guard in the
// UPDATE means only one claimer wins; losers get ErrNotFound.
func (s *Store) ClaimJob(ctx context.Context, jobID int64) (*Job, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		txCtx := ensureContext(ctx)
		ts := now()
		result, err := tx.ExecContext(
			txCtx,
			`UPDATE jobs SET status = ?, progress = 0, started_at = ?, error_message = NULL WHERE id = ? AND status = ?`,
			JobProcessing, ts, jobID, JobQueued,
		)
		if err != nil {
			return fmt.Errorf("claim job: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("claim job rows: %w", err)
		}
		if affected == 0 {
			return ErrNotFound
		}
		if _, err := tx.ExecContext(
			txCtx,
			`UPDATE media_files SET process_status = ?, updated_at = ?
             WHERE id = (SELECT file_id FROM jobs WHERE id = ?)`,
			ProcessProcessing, ts, jobID,
		); err != nil {
			return fmt.Errorf("mark file processing: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.JobByID(ctx, jobID)
}

// UpdateJobProgress records worker progress for a running job.
func (s *Store) UpdateJobProgress(ctx context.Context, jobID int64, progress float64) error {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	_, err := s.execWithRetry(
		ensureContext(ctx),
		`UPDATE jobs SET progress = ? WHERE id = ?`,
		progress, jobID,
	)
	return err
}

// SetJobTempPath records the worker scratch directory so crash recovery can
// report what was left behind.
func (s *Store) SetJobTempPath(ctx context.Context, jobID int64, tempPath string) error {
	_, err := s.execWithRetry(
		ensureContext(ctx),
		`UPDATE jobs SET temp_path = ? WHERE id = ?`,
		nullableString(tempPath), jobID,
	)
	return err
}

// CompleteJob finishes a job: progress 100, the file completed, and the
// applied track edits cleared, all in one transaction.
func (s *Store) CompleteJob(ctx context.Context, jobID int64, appliedTrackIDs []int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		txCtx := ensureContext(ctx)
		ts := now()
		result, err := tx.ExecContext(
			txCtx,
			`UPDATE jobs SET status = ?, progress = 100, completed_at = ?, temp_path = NULL WHERE id = ? AND status = ?`,
			JobCompleted, ts, jobID, JobProcessing,
		)
		if err != nil {
			return fmt.Errorf("complete job: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("complete job rows: %w", err)
		}
		if affected == 0 {
			return ErrNotFound
		}
		if _, err := tx.ExecContext(
			txCtx,
			`UPDATE media_files SET process_status = ?, updated_at = ?
             WHERE id = (SELECT file_id FROM jobs WHERE id = ?)`,
			ProcessCompleted, ts, jobID,
		); err != nil {
			return fmt.Errorf("mark file completed: %w", err)
		}
		return clearTrackEditsTx(txCtx, tx, appliedTrackIDs)
	})
}

// FailJob records a failure message on the job and marks the file errored.
// Staged edits stay in place so the job can be retried.
func (s *Store) FailJob(ctx context.Context, jobID int64, message string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		txCtx := ensureContext(ctx)
		ts := now()
		result, err := tx.ExecContext(
			txCtx,
			`UPDATE jobs SET status = ?, error_message = ?, completed_at = ? WHERE id = ? AND status IN (?, ?)`,
			JobFailed, nullableString(message), ts, jobID, JobQueued, JobProcessing,
		)
		if err != nil {
			return fmt.Errorf("fail job: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("fail job rows: %w", err)
		}
		if affected == 0 {
			return ErrNotFound
		}
		if _, err := tx.ExecContext(
			txCtx,
			`UPDATE media_files SET process_status = ?, updated_at = ?
             WHERE id = (SELECT file_id FROM jobs WHERE id = ?)`,
			ProcessError, ts, jobID,
		); err != nil {
			return fmt.Errorf("mark file errored: %w", err)
		}
		return nil
	})
}

// RetryJob requeues a failed job and marks its file queued again.
func (s *Store) RetryJob(ctx context.Context, jobID int64) (*Job, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		txCtx := ensureContext(ctx)
		ts := now()
		result, err := tx.ExecContext(
			txCtx,
			`UPDATE jobs SET status = ?, progress = 0, error_message = NULL, temp_path = NULL,
                 started_at = NULL, completed_at = NULL
             WHERE id = ? AND status = ?`,
			JobQueued, jobID, JobFailed,
		)
		if err != nil {
			return fmt.Errorf("retry job: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("retry job rows: %w", err)
		}
		if affected == 0 {
			return ErrNotFound
		}
		if _, err := tx.ExecContext(
			txCtx,
			`UPDATE media_files SET process_status = ?, updated_at = ?
             WHERE id = (SELECT file_id FROM jobs WHERE id = ?)`,
			ProcessQueued, ts, jobID,
		); err != nil {
			return fmt.Errorf("mark file queued: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.JobByID(ctx, jobID)
}

// RequeueOrphans resets processing jobs back to queued. Callers invoke it
// after a restart, before any job has been claimed, so every processing row
// is known to belong to a dead worker. Returns the jobs that were reset,
// still carrying the temp_path the dead worker recorded.
func (s *Store) RequeueOrphans(ctx context.Context) ([]Job, error) {
	orphans, err := s.JobsByStatus(ctx, JobProcessing)
	if err != nil {
		return nil, err
	}
	if len(orphans) == 0 {
		return nil, nil
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		txCtx := ensureContext(ctx)
		ts := now()
		for _, job := range orphans {
			if _, err := tx.ExecContext(
				txCtx,
				`UPDATE jobs SET status = ?, progress = 0, started_at = NULL, temp_path = NULL
                 WHERE id = ? AND status = ?`,
				JobQueued, job.ID, JobProcessing,
			); err != nil {
				return fmt.Errorf("requeue job %d: %w", job.ID, err)
			}
			if _, err := tx.ExecContext(
				txCtx,
				`UPDATE media_files SET process_status = ?, updated_at = ? WHERE id = ?`,
				ProcessQueued, ts, job.FileID,
			); err != nil {
				return fmt.Errorf("requeue file %d: %w", job.FileID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return orphans, nil
}

// DeleteJob removes a terminal job row.
func (s *Store) DeleteJob(ctx context.Context, jobID int64) error {
	result, err := s.db.ExecContext(
		ensureContext(ctx),
		`DELETE FROM jobs WHERE id = ? AND status IN (?, ?)`,
		jobID, JobCompleted, JobFailed,
	)
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete job rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func collectJobs(rows *sql.Rows) ([]Job, error) {
	var jobs []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job row: %w", err)
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	out := make([]byte, 0, n*3)
	for i := 0; i < n; i++ {
		if i > 0 {
			out = append(out, ',', ' ')
		}
		out = append(out, '?')
	}
	return string(out)
}
