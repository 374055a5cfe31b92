// File: internal/domain/model/job.go
package model

import "time"

type JobStatus string

const (
	JobStatusSubmitted JobStatus = "submitted"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

func (s JobStatus) Terminal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed
}

// BackendStatus is the compute backend's own view of a job, decoded from the
// raw integer codes the RPC returns.
type BackendStatus string

const (
	BackendPending    BackendStatus = "pending"
	BackendRunning    BackendStatus = "running"
	BackendFinished   BackendStatus = "finished"
	BackendFailed     BackendStatus = "failed"
	BackendScheduling BackendStatus = "scheduling"
	BackendStopped    BackendStatus = "stopped"
	BackendWait       BackendStatus = "wait"
	BackendUnknown    BackendStatus = "unknown"
)

var backendCodes = map[int]BackendStatus{
	-1: BackendFailed,
	0:  BackendPending,
	1:  BackendRunning,
	2:  BackendFinished,
	3:  BackendScheduling,
	5:  BackendStopped,
	9:  BackendWait,
}

// MapBackendCode decodes a raw status code. Unmapped codes come back as
// BackendUnknown, which is non-terminal so callers keep polling.
func MapBackendCode(code int) BackendStatus {
	if s, ok := backendCodes[code]; ok {
		return s
	}
	return BackendUnknown
}

func (s BackendStatus) Terminal() bool {
	switch s {
	case BackendFinished, BackendFailed, BackendStopped:
		return true
	}
	return false
}

// JobStatus maps a terminal backend status onto the record lifecycle.
// Non-terminal statuses all read as running.
func (s BackendStatus) JobStatus() JobStatus {
	switch s {
	case BackendFinished:
		return JobStatusSucceeded
	case BackendFailed, BackendStopped:
		return JobStatusFailed
	}
	return JobStatusRunning
}

// JobRecord tracks one submitted long-running job. Records are created on a
// successful submit, mutated only by the lifecycle tracker during
// reconciliation, and never deleted (kept for history/audit).
type JobRecord struct {
	OriginJobID  string      `json:"origin_job_id"`
	BackendJobID string      `json:"backend_job_id"`
	Tool         string      `json:"tool"`
	Status       JobStatus   `json:"status"`
	Result       ResultItems `json:"result,omitempty"`

	// InContext is set once the result has been surfaced to the model's
	// memory; together with LastInvocationID it makes reconciliation a
	// no-op for the rest of the turn.
	InContext        bool   `json:"in_context"`
	LastInvocationID string `json:"last_invocation_id"`

	SubmittedAt time.Time `json:"submitted_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func NewJobRecord(originID, backendID, tool string) *JobRecord {
	now := time.Now()
	return &JobRecord{
		OriginJobID:  originID,
		BackendJobID: backendID,
		Tool:         tool,
		Status:       JobStatusSubmitted,
		SubmittedAt:  now,
		UpdatedAt:    now,
	}
}
