package engine

import (
	"fmt"

	"flowreplay/internal/locator"
)

// NotFoundError means no strategy resolved a visible element in this
// execution context. Recoverable at run level: another context (a different
// frame of the same page) may still resolve the step, so the runner absorbs
// it rather than failing immediately.
type NotFoundError struct {
	StepIndex int
	Detail    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("step %d: element not found (%s)", e.StepIndex, e.Detail)
}

func (e *NotFoundError) Unwrap() error { return locator.ErrNotFound }

// ActionError wraps an exception raised while performing the side-effecting
// action. Fatal for the step, never retried.
type ActionError struct {
	StepIndex int
	Action    Action
	Err       error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("step %d: %s failed: %v", e.StepIndex, e.Action, e.Err)
}

func (e *ActionError) Unwrap() error { return e.Err }

// AssertionError carries expected-vs-actual text for diagnostics. Fatal for
// the step.
type AssertionError struct {
	StepIndex int
	Expected  string
	Actual    string
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("step %d: assertion failed: expected %q, got %q",
		e.StepIndex, e.Expected, e.Actual)
}

// TimeoutError marks a step that exhausted its wall-clock budget.
type TimeoutError struct {
	StepIndex int
	Detail    string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("step %d: timed out: %s", e.StepIndex, e.Detail)
}
