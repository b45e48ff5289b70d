package interpreter

import (
	"context"
	"fmt"
	"time"

	"github.com/loveplay1983/pydirector-cn/internal/logger"
	"github.com/loveplay1983/pydirector-cn/internal/models"
)

// Failure is a per-action error. It never aborts a run.
type Failure struct {
	ActionID   int64
	ActionName string
	Kind       models.Kind
	Cause      error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("action %q failed: %v", f.ActionName, f.Cause)
}

func (f *Failure) Unwrap() error {
	return f.Cause
}

// Interpreter maps one Action to an Input primitive.
type Interpreter struct {
	input           Input
	screenshots     ScreenshotSink
	logger          logger.Logger
	pollInterval    time.Duration
	pointerDuration time.Duration
	now             func() time.Time
}

type Option func(*Interpreter)

func WithScreenshotSink(s ScreenshotSink) Option {
	return func(r *Interpreter) { r.screenshots = s }
}

func WithLogger(l logger.Logger) Option {
	return func(r *Interpreter) { r.logger = l }
}

// WithPollInterval sets the wait slice, which bounds cancellation latency
// during wait actions.
func WithPollInterval(d time.Duration) Option {
	return func(r *Interpreter) {
		if d > 0 {
			r.pollInterval = d
		}
	}
}

// WithPointerDuration sets how long move and drag take.
func WithPointerDuration(d time.Duration) Option {
	return func(r *Interpreter) {
		if d >= 0 {
			r.pointerDuration = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Interpreter) { r.now = now }
}

func New(in Input, opts ...Option) *Interpreter {
	r := &Interpreter{
		input:           in,
		logger:          logger.Nop(),
		pollInterval:    100 * time.Millisecond,
		pointerDuration: 500 * time.Millisecond,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Execute runs a single action. target is the current iteration's
// substitution value; empty means none. Any error, including a panic in
// the Input implementation, comes back as a *Failure.
func (r *Interpreter) Execute(ctx context.Context, action models.Action, target string) (failure *Failure) {
	fail := func(err error) *Failure {
		return &Failure{
			ActionID:   action.ID,
			ActionName: action.Name,
			Kind:       action.Kind,
			Cause:      err,
		}
	}

	defer func() {
		if p := recover(); p != nil {
			failure = fail(fmt.Errorf("panic: %v", p))
		}
	}()

	kind, err := models.ParseKind(string(action.Kind))
	if err != nil {
		return fail(err)
	}

	step, err := Parse(kind, action.Parameters, target)
	if err != nil {
		return fail(err)
	}

	r.logger.Debug("Executing action",
		logger.F("id", action.ID),
		logger.F("name", action.Name),
		logger.F("kind", kind),
	)

	if err := step.apply(ctx, r); err != nil {
		return fail(err)
	}
	return nil
}

// Check parses action without executing it.
func Check(action models.Action) error {
	kind, err := models.ParseKind(string(action.Kind))
	if err != nil {
		return err
	}
	_, err = Parse(kind, action.Parameters, "")
	return err
}
