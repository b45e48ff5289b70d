package engine

import (
	"time"

	"github.com/loveplay1983/pydirector-cn/internal/interpreter"
	"github.com/loveplay1983/pydirector-cn/internal/models"
)

// FailureRecord ties a per-action failure to the iteration it happened in.
type FailureRecord struct {
	Iteration int
	Target    string
	*interpreter.Failure
}

// Result is the explicit outcome of one run.
type Result struct {
	RunID           int64
	Outcome         models.Outcome
	Reason          string
	LoopCount       int
	EffectiveLoops  int
	Iterations      int
	ActionsExecuted int
	Failures        []FailureRecord
	StartedAt       time.Time
	FinishedAt      time.Time
}

// Message is the user-facing status line for the outcome.
func (r Result) Message() string {
	switch r.Outcome {
	case models.OutcomeCompleted:
		return "Automation completed!"
	case models.OutcomeCancelled:
		return "Automation interrupted by user."
	case models.OutcomeNothingToDo:
		return "No targets or actions to process."
	}
	return string(r.Outcome)
}

// Run converts r into a history row.
func (r Result) Run() *models.Run {
	return &models.Run{
		ID:              r.RunID,
		StartedAt:       r.StartedAt,
		FinishedAt:      r.FinishedAt,
		LoopCount:       r.LoopCount,
		EffectiveLoops:  r.EffectiveLoops,
		Iterations:      r.Iterations,
		ActionsExecuted: r.ActionsExecuted,
		FailureCount:    len(r.Failures),
		Outcome:         r.Outcome,
		Reason:          r.Reason,
	}
}

// ActionFailures converts the failure records into history rows.
func (r Result) ActionFailures() []models.ActionFailure {
	out := make([]models.ActionFailure, 0, len(r.Failures))
	for _, f := range r.Failures {
		out = append(out, models.ActionFailure{
			RunID:      r.RunID,
			Iteration:  f.Iteration,
			Target:     f.Target,
			ActionID:   f.ActionID,
			ActionName: f.ActionName,
			Kind:       f.Kind,
			Reason:     f.Cause.Error(),
		})
	}
	return out
}
