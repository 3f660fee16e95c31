package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Retry delays double per failed attempt and are capped.
const (
	baseRetryDelay = 2 * time.Second
	maxRetryDelay  = 5 * time.Minute
)

const jobColumns = `id, type, payload_json, status, attempts, max_attempts, run_after, created_at, updated_at, last_error, result_json`

// EnqueueJob inserts a pending job. A zero RunAfter makes it runnable now,
// a zero MaxAttempts means one attempt and an empty payload is stored as {}.
func (s *Store) EnqueueJob(job Job) error {
	now := time.Now().UTC()
	if job.RunAfter.IsZero() {
		job.RunAfter = now
	}
	if job.MaxAttempts <= 0 {
		job.MaxAttempts = 1
	}
	if job.PayloadJSON == "" {
		job.PayloadJSON = "{}"
	}

	_, err := s.db.Exec(`
		INSERT INTO jobs (id, type, payload_json, status, attempts, max_attempts, run_after, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, ?, ?, ?, ?)`,
		job.ID, job.Type, job.PayloadJSON, JobPending, job.MaxAttempts,
		formatTime(job.RunAfter), formatTime(now), formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("inserting job %s: %w", job.ID, err)
	}
	return nil
}

// ClaimNextJob marks the oldest runnable pending job of one of types as
// running and returns it. It returns nil when nothing is runnable.
func (s *Store) ClaimNextJob(types []string) (*Job, error) {
	if len(types) == 0 {
		return nil, nil
	}

	now := formatTime(time.Now().UTC())
	args := []any{JobRunning, now, JobPending, now}
	for _, t := range types {
		args = append(args, t)
	}

	query := `UPDATE jobs SET status = ?, updated_at = ?
		WHERE id = (
			SELECT id FROM jobs
			WHERE status = ? AND run_after <= ? AND type IN (?` + strings.Repeat(",?", len(types)-1) + `)
			ORDER BY run_after, created_at
			LIMIT 1
		)
		RETURNING ` + jobColumns

	j, err := scanJob(s.db.QueryRow(query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claiming next job: %w", err)
	}
	return &j, nil
}

// CompleteJob marks a job completed and records its JSON result.
func (s *Store) CompleteJob(id string, resultJSON string) error {
	res, err := s.db.Exec(`UPDATE jobs SET status = ?, result_json = ?, updated_at = ? WHERE id = ?`,
		JobCompleted, resultJSON, formatTime(time.Now().UTC()), id)
	if err != nil {
		return fmt.Errorf("completing job %s: %w", id, err)
	}
	return expectOneRow(res)
}

// FailJob records a failed attempt. The job goes back to pending after a
// retry delay until it has used max_attempts, then it is marked failed.
func (s *Store) FailJob(id string, errMsg string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning fail transaction: %w", err)
	}
	defer tx.Rollback()

	var attempts, maxAttempts int
	err = tx.QueryRow(`SELECT attempts, max_attempts FROM jobs WHERE id = ?`, id).Scan(&attempts, &maxAttempts)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("reading job %s: %w", id, err)
	}

	now := time.Now().UTC()
	attempts++
	status, runAfter := JobFailed, now
	if attempts < maxAttempts {
		status, runAfter = JobPending, now.Add(retryDelay(attempts))
	}

	if _, err := tx.Exec(`UPDATE jobs SET status = ?, attempts = ?, last_error = ?, run_after = ?, updated_at = ? WHERE id = ?`,
		status, attempts, errMsg, formatTime(runAfter), formatTime(now), id); err != nil {
		return fmt.Errorf("failing job %s: %w", id, err)
	}
	return tx.Commit()
}

// retryDelay returns the wait before retry number attempt (1-based).
func retryDelay(attempt int) time.Duration {
	d := baseRetryDelay
	for i := 1; i < attempt && d < maxRetryDelay; i++ {
		d *= 2
	}
	return min(d, maxRetryDelay)
}

// GetJob returns a job by ID, or ErrNotFound.
func (s *Store) GetJob(id string) (Job, error) {
	j, err := scanJob(s.db.QueryRow(`SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Job{}, ErrNotFound
	}
	if err != nil {
		return Job{}, fmt.Errorf("reading job %s: %w", id, err)
	}
	return j, nil
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanJob(r rowScanner) (Job, error) {
	var j Job
	var runAfter, createdAt, updatedAt string
	var lastError, result sql.NullString
	if err := r.Scan(
		&j.ID, &j.Type, &j.PayloadJSON, &j.Status, &j.Attempts, &j.MaxAttempts,
		&runAfter, &createdAt, &updatedAt, &lastError, &result,
	); err != nil {
		return Job{}, err
	}
	j.LastError = lastError.String
	j.ResultJSON = result.String

	for _, f := range []struct {
		dst *time.Time
		src string
	}{
		{&j.RunAfter, runAfter},
		{&j.CreatedAt, createdAt},
		{&j.UpdatedAt, updatedAt},
	} {
		t, err := parseTime(f.src)
		if err != nil {
			return Job{}, fmt.Errorf("job %s: %w", j.ID, err)
		}
		*f.dst = t
	}
	return j, nil
}
