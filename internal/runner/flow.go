package runner

import (
	"context"
	"time"

	"flowreplay/internal/engine"
)

// Status is the run-level state machine. Idle and running are the normal
// path; suspended covers full page navigations, where execution pauses until
// the new document settles.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusSuspended Status = "suspended_for_navigation"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusStopped   Status = "stopped"
)

// Terminal reports whether a run in this status is finished.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusStopped
}

// BugKind separates fatal findings from advisory ones.
type BugKind string

const (
	// BugError ends the run at the step that raised it.
	BugError BugKind = "error"
	// BugNuance records detected drift without affecting the outcome.
	BugNuance BugKind = "nuance"
)

// Bug is one finding attributed to a step.
type Bug struct {
	StepIndex int     `json:"step_index"`
	Kind      BugKind `json:"kind"`
	Message   string  `json:"message"`
}

// RunState is the persisted checkpoint of an in-flight run, saved before
// every step so an interrupted run can be resumed at the step it died on.
type RunState struct {
	FlowID      uint      `json:"flow_id"`
	ExecutionID uint      `json:"execution_id"`
	StepIndex   int       `json:"step_index"`
	Status      Status    `json:"status"`
	Bugs        []Bug     `json:"bugs,omitempty"`
	StartTime   time.Time `json:"start_time"`
}

// Report is the final outcome of a run.
type Report struct {
	FlowID       uint          `json:"flow_id"`
	ExecutionID  uint          `json:"execution_id"`
	Status       Status        `json:"status"`
	Duration     time.Duration `json:"duration"`
	StepsTotal   int           `json:"steps_total"`
	StepsDone    int           `json:"steps_done"`
	Bugs         []Bug         `json:"bugs,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
	// PageSnapshot is the serialized page captured at the failure point;
	// empty for successful runs.
	PageSnapshot string `json:"page_snapshot,omitempty"`
}

// Flow is the replayable unit: an ordered step list plus its entry URL.
type Flow struct {
	ID       uint
	Name     string
	StartURL string
	Steps    []engine.Step
}

// Store is what the runner needs from persistence. The gorm implementation
// lives in internal/storage.
type Store interface {
	GetFlow(ctx context.Context, id uint) (*Flow, error)
	ReportExecution(ctx context.Context, report *Report) error
	SaveRunState(ctx context.Context, state *RunState) error
	ClearRunState(ctx context.Context, flowID uint) error
}
