package models

import "time"

// Outcome is the terminal state of a run.
type Outcome string

const (
	OutcomeCompleted   Outcome = "completed"
	OutcomeCancelled   Outcome = "cancelled"
	OutcomeNothingToDo Outcome = "nothing_to_do"
)

// Run is a recorded run of the action list.
type Run struct {
	ID              int64
	StartedAt       time.Time
	FinishedAt      time.Time
	LoopCount       int
	EffectiveLoops  int
	Iterations      int
	ActionsExecuted int
	FailureCount    int
	Outcome         Outcome
	Reason          string
}

// ActionFailure is one isolated per-action failure within a run.
type ActionFailure struct {
	ID         int64
	RunID      int64
	Iteration  int
	Target     string
	ActionID   int64
	ActionName string
	Kind       Kind
	Reason     string
}
