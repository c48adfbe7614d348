// Package dial runs outbound call batches: a persistent job ledger, a
// retry controller for provider failures, and a scheduler that paces the
// calls.
package dial

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/hirevox/hirevox/errors"
)

// JobState represents where a call job is in its lifecycle.
type JobState string

const (
	JobStatePending   JobState = "pending"
	JobStateRendering JobState = "rendering"
	JobStateDialing   JobState = "dialing"
	JobStateSucceeded JobState = "succeeded"
	JobStateFailed    JobState = "failed"
	JobStateSkipped   JobState = "skipped"
)

// IsValidState returns true if the string is a known JobState.
func IsValidState(s string) bool {
	switch JobState(s) {
	case JobStatePending, JobStateRendering, JobStateDialing,
		JobStateSucceeded, JobStateFailed, JobStateSkipped:
		return true
	default:
		return false
	}
}

// Terminal reports whether a state admits no further transitions.
func (s JobState) Terminal() bool {
	switch s {
	case JobStateSucceeded, JobStateFailed, JobStateSkipped:
		return true
	default:
		return false
	}
}

// Job is one outbound call within a batch.
type Job struct {
	ID             string     `json:"id"`
	BatchID        string     `json:"batch_id"`
	Position       int        `json:"position"` // input order, scheduler drains ascending
	Phone          string     `json:"phone"`    // normalized dial target
	CandidatePhone string     `json:"candidate_phone,omitempty"`
	State          JobState   `json:"state"`
	Attempts       int        `json:"attempts"`
	LastError      string     `json:"last_error,omitempty"`
	AudioHandle    string     `json:"audio_handle,omitempty"`
	ScheduledAt    *time.Time `json:"scheduled_at,omitempty"`
	DialStartedAt  *time.Time `json:"dial_started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Batch groups the jobs of one campaign run. The call script is either a
// named template expanded with the params, literal text, or neither, in
// which case the provider synthesizes from its own configured script.
type Batch struct {
	ID             string            `json:"id"`
	Interval       time.Duration     `json:"interval"`
	TemplateName   string            `json:"template_name,omitempty"`
	Text           string            `json:"text,omitempty"`
	TemplateParams map[string]string `json:"template_params,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	CompletedAt    *time.Time        `json:"completed_at,omitempty"`
	Jobs           []*Job            `json:"jobs,omitempty"`
}

// NewBatch builds a batch with one pending job per phone, in input order.
// Phones must already be normalized.
func NewBatch(phones []string, interval time.Duration, templateName, text string, params map[string]string) (*Batch, error) {
	if len(phones) == 0 {
		return nil, errors.NewValidationError("batch needs at least one phone number")
	}
	if interval < 0 {
		return nil, errors.NewValidationError("interval must not be negative")
	}
	if templateName != "" && text != "" {
		return nil, errors.NewValidationError("batch takes a template or literal text, not both")
	}

	now := time.Now()
	b := &Batch{
		ID:             uuid.New().String(),
		Interval:       interval,
		TemplateName:   templateName,
		Text:           text,
		TemplateParams: params,
		CreatedAt:      now,
	}
	for i, phone := range phones {
		b.Jobs = append(b.Jobs, &Job{
			ID:             uuid.New().String(),
			BatchID:        b.ID,
			Position:       i,
			Phone:          phone,
			CandidatePhone: phone,
			State:          JobStatePending,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
	}
	return b, nil
}

// StartRendering marks the job as rendering its call script.
func (j *Job) StartRendering() {
	now := time.Now()
	j.State = JobStateRendering
	j.ScheduledAt = &now
	j.UpdatedAt = now
}

// StartDialing marks the moment the provider call begins. The scheduler
// paces batches off this timestamp.
func (j *Job) StartDialing() {
	now := time.Now()
	j.State = JobStateDialing
	j.DialStartedAt = &now
	j.UpdatedAt = now
}

// Succeed marks the job completed, keeping the audio handle for export.
func (j *Job) Succeed(audioHandle string) {
	now := time.Now()
	j.State = JobStateSucceeded
	j.AudioHandle = audioHandle
	j.LastError = ""
	j.CompletedAt = &now
	j.UpdatedAt = now
}

// Fail marks the job failed with its final error.
func (j *Job) Fail(err error) {
	now := time.Now()
	j.State = JobStateFailed
	j.LastError = err.Error()
	j.CompletedAt = &now
	j.UpdatedAt = now
}

// Skip marks the job as never attempted, with the reason.
func (j *Job) Skip(reason string) {
	now := time.Now()
	j.State = JobStateSkipped
	j.LastError = reason
	j.CompletedAt = &now
	j.UpdatedAt = now
}

// RecordAttempt bumps the attempt counter before a provider call.
func (j *Job) RecordAttempt() {
	j.Attempts++
	j.UpdatedAt = time.Now()
}

// marshalParams serializes template params for storage.
func marshalParams(params map[string]string) (string, error) {
	if len(params) == 0 {
		return "", nil
	}
	data, err := json.Marshal(params)
	if err != nil {
		return "", errors.Wrap(err, "marshal template params")
	}
	return string(data), nil
}

// unmarshalParams deserializes stored template params.
func unmarshalParams(data string) (map[string]string, error) {
	if data == "" {
		return nil, nil
	}
	var params map[string]string
	if err := json.Unmarshal([]byte(data), &params); err != nil {
		return nil, errors.Wrap(err, "unmarshal template params")
	}
	return params, nil
}
