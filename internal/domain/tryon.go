package domain

import "time"

// JobStatus enumerates try-on job lifecycle states.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusSubmitted JobStatus = "submitted"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// Terminal reports whether the status is an end state.
func (s JobStatus) Terminal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed
}

// Job is a single try-on generation attempt. Jobs live in memory only; the
// two input images are never persisted beyond the job-scoped scratch handles.
type Job struct {
	ID        string
	UserID    string
	Status    JobStatus
	StartedAt time.Time
}

// Result is the immutable output of a successful job. Both images are
// self-contained data URIs so they stay renderable and downloadable after the
// backend's short-lived result URL expires. Never a bare remote URL.
type Result struct {
	PrimaryImage    string
	ComparisonImage string
	LowQuality      bool
}

// HasComparison reports whether a before/after composite was produced.
func (r Result) HasComparison() bool {
	return r.ComparisonImage != ""
}
