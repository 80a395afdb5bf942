package model

import (
	"time"

	"son1k-dispatch/internal/domain"
)

type JobStatus string

const (
	JobStatusPending JobStatus = "pending"
	// JobStatusProcessing marks a job claimed by a processor so no other
	// worker picks it up.
	JobStatusProcessing JobStatus = "processing"
	JobStatusSubmitted  JobStatus = "submitted"
	JobStatusFailed     JobStatus = "failed"
	// JobStatusExhausted means no account was ever eligible for the job.
	JobStatusExhausted JobStatus = "exhausted"
)

// JobPayload is the opaque generation request. The dispatch core forwards it
// untouched; only the enhancer fills in missing lyrics.
type JobPayload struct {
	Lyrics       string `json:"lyrics"`
	StylePrompt  string `json:"style_prompt"`
	Title        string `json:"title"`
	Instrumental bool   `json:"instrumental"`
}

// GenerationJob is one music-generation request moving through the queue.
type GenerationJob struct {
	ID                string
	Payload           JobPayload
	UserPlan          Plan
	PriorityScore     int // derived from UserPlan, immutable once set
	Status            JobStatus
	AssignedAccountID string
	Attempts          int
	TrackURL          string
	LastError         string
	SubmittedAt       time.Time
	UpdatedAt         time.Time
}

// NewGenerationJob validates and constructs a pending job with its priority
// score fixed at creation.
func NewGenerationJob(id string, payload JobPayload, plan Plan) (*GenerationJob, error) {
	if id == "" || !plan.Valid() {
		return nil, domain.ErrInvalidArgument
	}
	if payload.StylePrompt == "" && payload.Lyrics == "" {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &GenerationJob{
		ID:            id,
		Payload:       payload,
		UserPlan:      plan,
		PriorityScore: plan.PriorityScore(),
		Status:        JobStatusPending,
		SubmittedAt:   now,
		UpdatedAt:     now,
	}, nil
}

// Terminal reports whether the job has reached a final state.
func (j *GenerationJob) Terminal() bool {
	switch j.Status {
	case JobStatusSubmitted, JobStatusFailed, JobStatusExhausted:
		return true
	}
	return false
}
