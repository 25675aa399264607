package models

import "time"

// BuildRequest is one scheduled build of a builder
type BuildRequest struct {
	ID          int64     `json:"id" db:"id" binding:"required"`
	Branch      string    `json:"branch" db:"branch" binding:"required"`
	BuilderName string    `json:"buildername" db:"buildername" binding:"required"`
	Revision    string    `json:"revision,omitempty" db:"revision"`
	Status      JobStatus `json:"status" db:"status"`
	Result      Result    `json:"result" db:"result"`
	SubmittedAt int64     `json:"submitted_at" db:"submitted_at"`
	StartTime   int64     `json:"start_time,omitempty" db:"start_time"`
	CompleteAt  int64     `json:"complete_at,omitempty" db:"complete_at"`
}

// RevisionLength is the number of significant revision characters
const RevisionLength = 12

// Normalize trims the revision and derives the status from the timestamps
// when it is not a known status
func (br *BuildRequest) Normalize() {
	if len(br.Revision) > RevisionLength {
		br.Revision = br.Revision[:RevisionLength]
	}
	switch br.Status {
	case JobStatusPending, JobStatusRunning, JobStatusComplete:
	default:
		switch {
		case br.CompleteAt != 0:
			br.Status = JobStatusComplete
		case br.StartTime != 0:
			br.Status = JobStatusRunning
		default:
			br.Status = JobStatusPending
		}
	}
	if br.Result == "" {
		br.Result = ResultNoResult
	}
}

// Duration is the time from submission to completion, in seconds
func (br *BuildRequest) Duration() int64 {
	if br.CompleteAt == 0 || br.SubmittedAt == 0 {
		return 0
	}
	return br.CompleteAt - br.SubmittedAt
}

// WaitTime is the time from submission to start, in seconds
func (br *BuildRequest) WaitTime() int64 {
	if br.StartTime == 0 || br.SubmittedAt == 0 {
		return 0
	}
	return br.StartTime - br.SubmittedAt
}

// RunTime is the time spent running, in seconds
func (br *BuildRequest) RunTime() int64 {
	return br.Duration() - br.WaitTime()
}

// IsFinished reports whether the request is neither pending nor running
func (br *BuildRequest) IsFinished() bool {
	return br.Status != JobStatusPending && br.Status != JobStatusRunning
}

// Submitted returns the submission time
func (br *BuildRequest) Submitted() time.Time {
	return time.Unix(br.SubmittedAt, 0).UTC()
}
