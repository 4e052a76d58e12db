package model

import "time"

// TaskState is the lifecycle status of a task.
type TaskState string

const (
	TaskStatusQueued              TaskState = "queued"
	TaskStatusProcessing          TaskState = "processing"
	TaskStatusCompleted           TaskState = "completed"
	TaskStatusFailed              TaskState = "failed"
	TaskStatusCompletedWithErrors TaskState = "completed_with_errors"
)

// Terminal reports whether no further transition is expected for the state.
func (s TaskState) Terminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusCompletedWithErrors:
		return true
	}
	return false
}

// Per-step outcome statuses.
const (
	StepStatusSuccess            = "success"
	StepStatusFailed             = "failed"
	StepStatusSkipped            = "skipped"
	StepStatusSkippedUnknownType = "skipped_unknown_type"
	StepStatusFailedCritical     = "failed_critical"
)

// StepOutcome is what a single step reported about itself.
type StepOutcome struct {
	Status string                 `json:"status"`
	Detail map[string]interface{} `json:"detail,omitempty"`
}

// TaskStatus is the lightweight record queried more often than the full
// result.
type TaskStatus struct {
	TaskID       string     `json:"taskId"`
	Status       TaskState  `json:"status"`
	CreatedAt    time.Time  `json:"createdAt"`
	StartedAt    *time.Time `json:"startedAt,omitempty"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
	ErrorMessage *string    `json:"errorMessage,omitempty"`
}

// ResultRecord is the durable, terminal artifact of a pipeline run. Exactly
// one exists per task; writing it twice is an idempotent last-write-wins
// upsert, because queue redelivery may process a task more than once.
type ResultRecord struct {
	TaskID                string                 `json:"taskId"`
	OverallStatus         TaskState              `json:"overallStatus"`
	ProcessingTimeSeconds float64                `json:"processingTimeSeconds"`
	ErrorDetails          string                 `json:"errorDetails,omitempty"`
	StepOutcomes          map[string]StepOutcome `json:"stepOutcomes"`
	Metadata              map[string]interface{} `json:"metadata,omitempty"`
	CompletedAt           time.Time              `json:"completedAt"`
}
