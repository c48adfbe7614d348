package dial

import (
	"database/sql"
	"time"

	"github.com/hirevox/hirevox/errors"
)

// Ledger persists batches and jobs so call outcomes survive for export
// within the campaign session.
type Ledger struct {
	db *sql.DB
}

// NewLedger creates a ledger over an open database.
func NewLedger(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

// CreateBatch inserts a batch and all of its jobs in one transaction.
func (l *Ledger) CreateBatch(b *Batch) error {
	params, err := marshalParams(b.TemplateParams)
	if err != nil {
		return err
	}

	tx, err := l.db.Begin()
	if err != nil {
		return errors.Wrap(err, "begin batch insert")
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO call_batches (id, interval_ms, template_name, script_text, template_params, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		b.ID,
		b.Interval.Milliseconds(),
		sql.NullString{String: b.TemplateName, Valid: b.TemplateName != ""},
		sql.NullString{String: b.Text, Valid: b.Text != ""},
		sql.NullString{String: params, Valid: params != ""},
		b.CreatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to create batch")
	}

	for _, j := range b.Jobs {
		if err := insertJob(tx, j); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "commit batch insert")
	}
	return nil
}

func insertJob(tx *sql.Tx, j *Job) error {
	_, err := tx.Exec(`
		INSERT INTO call_jobs (
			id, batch_id, position, phone, candidate_phone,
			state, attempts, last_error, audio_handle,
			scheduled_at, dial_started_at, completed_at,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.ID, j.BatchID, j.Position, j.Phone,
		sql.NullString{String: j.CandidatePhone, Valid: j.CandidatePhone != ""},
		j.State, j.Attempts,
		sql.NullString{String: j.LastError, Valid: j.LastError != ""},
		sql.NullString{String: j.AudioHandle, Valid: j.AudioHandle != ""},
		j.ScheduledAt, j.DialStartedAt, j.CompletedAt,
		j.CreatedAt, j.UpdatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to create job %s", j.ID)
	}
	return nil
}

// UpdateJob writes the job's mutable columns back.
func (l *Ledger) UpdateJob(j *Job) error {
	_, err := l.db.Exec(`
		UPDATE call_jobs
		SET state = ?,
		    attempts = ?,
		    last_error = ?,
		    audio_handle = ?,
		    scheduled_at = ?,
		    dial_started_at = ?,
		    completed_at = ?,
		    updated_at = ?
		WHERE id = ?`,
		j.State, j.Attempts,
		sql.NullString{String: j.LastError, Valid: j.LastError != ""},
		sql.NullString{String: j.AudioHandle, Valid: j.AudioHandle != ""},
		j.ScheduledAt, j.DialStartedAt, j.CompletedAt,
		j.UpdatedAt, j.ID,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to update job %s", j.ID)
	}
	return nil
}

// CompleteBatch stamps the batch's completion time.
func (l *Ledger) CompleteBatch(batchID string, at time.Time) error {
	res, err := l.db.Exec(`UPDATE call_batches SET completed_at = ? WHERE id = ?`, at, batchID)
	if err != nil {
		return errors.Wrapf(err, "failed to complete batch %s", batchID)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return errors.Wrapf(errors.ErrNotFound, "batch %s", batchID)
	}
	return nil
}

// GetBatch loads a batch with its jobs in position order.
func (l *Ledger) GetBatch(batchID string) (*Batch, error) {
	row := l.db.QueryRow(`
		SELECT id, interval_ms, template_name, script_text, template_params, created_at, completed_at
		FROM call_batches WHERE id = ?`, batchID)

	var (
		b          Batch
		intervalMS int64
		name       sql.NullString
		text       sql.NullString
		params     sql.NullString
	)
	err := row.Scan(&b.ID, &intervalMS, &name, &text, &params, &b.CreatedAt, &b.CompletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(errors.ErrNotFound, "batch %s", batchID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get batch")
	}
	b.Interval = time.Duration(intervalMS) * time.Millisecond
	b.TemplateName = name.String
	b.Text = text.String
	if b.TemplateParams, err = unmarshalParams(params.String); err != nil {
		return nil, err
	}

	if b.Jobs, err = l.ListJobs(batchID); err != nil {
		return nil, err
	}
	return &b, nil
}

// ListJobs returns a batch's jobs in position order.
func (l *Ledger) ListJobs(batchID string) ([]*Job, error) {
	rows, err := l.db.Query(`
		SELECT id, batch_id, position, phone, candidate_phone,
		       state, attempts, last_error, audio_handle,
		       scheduled_at, dial_started_at, completed_at,
		       created_at, updated_at
		FROM call_jobs
		WHERE batch_id = ?
		ORDER BY position ASC`, batchID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list jobs")
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		var (
			j         Job
			candidate sql.NullString
			lastError sql.NullString
			handle    sql.NullString
		)
		err := rows.Scan(
			&j.ID, &j.BatchID, &j.Position, &j.Phone, &candidate,
			&j.State, &j.Attempts, &lastError, &handle,
			&j.ScheduledAt, &j.DialStartedAt, &j.CompletedAt,
			&j.CreatedAt, &j.UpdatedAt,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan job")
		}
		if !IsValidState(string(j.State)) {
			return nil, errors.Newf("job %s has unknown state %q", j.ID, j.State)
		}
		j.CandidatePhone = candidate.String
		j.LastError = lastError.String
		j.AudioHandle = handle.String
		jobs = append(jobs, &j)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating jobs")
	}
	return jobs, nil
}

// ListBatches returns recent batches, newest first, without their jobs.
func (l *Ledger) ListBatches(limit int) ([]*Batch, error) {
	rows, err := l.db.Query(`
		SELECT id, interval_ms, template_name, script_text, template_params, created_at, completed_at
		FROM call_batches
		ORDER BY created_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list batches")
	}
	defer rows.Close()

	var batches []*Batch
	for rows.Next() {
		var (
			b          Batch
			intervalMS int64
			name       sql.NullString
			text       sql.NullString
			params     sql.NullString
		)
		if err := rows.Scan(&b.ID, &intervalMS, &name, &text, &params, &b.CreatedAt, &b.CompletedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan batch")
		}
		b.Interval = time.Duration(intervalMS) * time.Millisecond
		b.TemplateName = name.String
		b.Text = text.String
		if b.TemplateParams, err = unmarshalParams(params.String); err != nil {
			return nil, err
		}
		batches = append(batches, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating batches")
	}
	return batches, nil
}
