package engine

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/loveplay1983/pydirector-cn/internal/interpreter"
	"github.com/loveplay1983/pydirector-cn/internal/logger"
	"github.com/loveplay1983/pydirector-cn/internal/models"
)

type ActionLister interface {
	ListActions() ([]models.Action, error)
}

type TargetProvider interface {
	Targets() ([]string, error)
}

// Executor runs one action. A nil return means success.
type Executor interface {
	Execute(ctx context.Context, action models.Action, target string) *interpreter.Failure
}

// Engine replays the action list once per iteration.
type Engine struct {
	actions ActionLister
	targets TargetProvider
	exec    Executor
	logger  logger.Logger
	settle  time.Duration
	now     func() time.Time
}

type Option func(*Engine)

func WithLogger(l logger.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithSettleDelay sets the pause after every action. The pause is not
// interruptible; cancellation is seen at the next action boundary.
func WithSettleDelay(d time.Duration) Option {
	return func(e *Engine) {
		if d >= 0 {
			e.settle = d
		}
	}
}

func New(actions ActionLister, targets TargetProvider, exec Executor, opts ...Option) *Engine {
	e := &Engine{
		actions: actions,
		targets: targets,
		exec:    exec,
		logger:  logger.Nop(),
		settle:  500 * time.Millisecond,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// EffectiveLoops resolves the iteration count: the target list length
// when loopCount is 0, loopCount itself when positive, 0 otherwise.
func EffectiveLoops(loopCount, targets int) int {
	switch {
	case loopCount == 0:
		return targets
	case loopCount > 0:
		return loopCount
	default:
		return 0
	}
}

// runContext is the run-local snapshot. Store edits made after it is
// taken are not observed.
type runContext struct {
	actions   []models.Action
	targets   []string
	loopCount int
	loops     int
}

// target is the substitution value for iteration i (0-based): the i-th
// target in list mode, the 1-based iteration number in count mode.
// The two modes disagree on what the current target means; existing
// macros rely on both.
func (rc *runContext) target(i int) string {
	if rc.loopCount == 0 {
		return rc.targets[i]
	}
	return strconv.Itoa(i + 1)
}

func (e *Engine) snapshot(loopCount int) (*runContext, string) {
	if loopCount < 0 {
		return nil, fmt.Sprintf("invalid loop count %d", loopCount)
	}

	actions, err := e.actions.ListActions()
	if err != nil {
		e.logger.Error("Failed to load actions", logger.F("error", err))
		return nil, fmt.Sprintf("failed to load actions: %v", err)
	}
	targets, err := e.targets.Targets()
	if err != nil {
		e.logger.Error("Failed to load targets", logger.F("error", err))
		return nil, fmt.Sprintf("failed to load targets: %v", err)
	}

	if len(actions) == 0 || len(targets) == 0 {
		return nil, fmt.Sprintf("%d actions, %d targets", len(actions), len(targets))
	}

	return &runContext{
		actions:   append([]models.Action(nil), actions...),
		targets:   append([]string(nil), targets...),
		loopCount: loopCount,
		loops:     EffectiveLoops(loopCount, len(targets)),
	}, ""
}

// Run executes the whole run on the calling goroutine and always returns
// one of the three outcomes. Cancelling ctx stops the run at the next
// action boundary or wait slice.
func (e *Engine) Run(ctx context.Context, loopCount int) (res Result) {
	res = Result{LoopCount: loopCount, StartedAt: e.now()}
	defer func() { res.FinishedAt = e.now() }()

	e.logger.Debug("Starting automation", logger.F("loops", loopCount))

	rc, reason := e.snapshot(loopCount)
	if rc == nil {
		e.logger.Warn("No targets or actions to process.", logger.F("reason", reason))
		res.Outcome = models.OutcomeNothingToDo
		res.Reason = reason
		return res
	}
	res.EffectiveLoops = rc.loops
	e.logger.Debug("Effective loops", logger.F("effective_loops", rc.loops))

	for i := 0; i < rc.loops; i++ {
		if ctx.Err() != nil {
			return e.interrupted(res)
		}

		target := rc.target(i)
		res.Iterations++
		log := e.logger.WithFields(logger.F("iteration", i+1), logger.F("target", target))
		log.Info("Processing target")

		for _, action := range rc.actions {
			if ctx.Err() != nil {
				return e.interrupted(res)
			}

			if f := e.execute(ctx, action, target); f != nil {
				log.Error(f.Error(), logger.F("action_id", f.ActionID))
				res.Failures = append(res.Failures, FailureRecord{
					Iteration: i + 1,
					Target:    target,
					Failure:   f,
				})
			}
			res.ActionsExecuted++

			if e.settle > 0 {
				time.Sleep(e.settle)
			}
		}
	}

	// A stop that lands during the final action has no next boundary.
	if ctx.Err() != nil {
		return e.interrupted(res)
	}

	e.logger.Info("Automation completed successfully",
		logger.F("iterations", res.Iterations),
		logger.F("actions", res.ActionsExecuted),
		logger.F("failures", len(res.Failures)),
	)
	res.Outcome = models.OutcomeCompleted
	return res
}

// execute isolates one action, including Executors that panic.
func (e *Engine) execute(ctx context.Context, action models.Action, target string) (f *interpreter.Failure) {
	defer func() {
		if p := recover(); p != nil {
			f = &interpreter.Failure{
				ActionID:   action.ID,
				ActionName: action.Name,
				Kind:       action.Kind,
				Cause:      fmt.Errorf("panic: %v", p),
			}
		}
	}()
	return e.exec.Execute(ctx, action, target)
}

func (e *Engine) interrupted(res Result) Result {
	e.logger.Info("Automation interrupted by user",
		logger.F("iterations", res.Iterations),
		logger.F("actions", res.ActionsExecuted),
	)
	res.Outcome = models.OutcomeCancelled
	res.Reason = "stop requested"
	return res
}
