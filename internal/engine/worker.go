package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/loveplay1983/pydirector-cn/internal/logger"
	"github.com/loveplay1983/pydirector-cn/internal/models"
)

// RunRecorder persists finished runs.
type RunRecorder interface {
	RecordRun(run *models.Run, failures []models.ActionFailure) (int64, error)
}

// Worker runs the Engine on a background goroutine, one run at a time.
type Worker struct {
	engine     *Engine
	logger     logger.Logger
	recorder   RunRecorder
	onFinished func(Result)

	stopRequested atomic.Bool

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

type WorkerOption func(*Worker)

// WithOnFinished registers the callback fired exactly once per run, on
// the worker goroutine, after the worker is idle again.
func WithOnFinished(fn func(Result)) WorkerOption {
	return func(w *Worker) { w.onFinished = fn }
}

func WithRecorder(r RunRecorder) WorkerOption {
	return func(w *Worker) { w.recorder = r }
}

func WithWorkerLogger(l logger.Logger) WorkerOption {
	return func(w *Worker) { w.logger = l }
}

func NewWorker(e *Engine, opts ...WorkerOption) *Worker {
	w := &Worker{engine: e, logger: logger.Nop()}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start launches a run and returns immediately. It returns false, and
// does nothing, when a run is already active.
func (w *Worker) Start(ctx context.Context, loopCount int) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		w.logger.Info("Start ignored, automation already running")
		return false
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	w.running = true
	w.cancel = cancel
	w.done = done
	w.stopRequested.Store(false)

	w.logger.Debug("Starting automation", logger.F("loops", loopCount))
	go w.run(runCtx, cancel, loopCount, done)
	return true
}

func (w *Worker) run(ctx context.Context, cancel context.CancelFunc, loopCount int, done chan struct{}) {
	defer close(done)

	res := w.runEngine(ctx, loopCount)
	cancel()

	if w.recorder != nil {
		id, err := w.recorder.RecordRun(res.Run(), res.ActionFailures())
		if err != nil {
			w.logger.Error("Failed to record run", logger.F("error", err))
		} else {
			res.RunID = id
		}
	}

	w.mu.Lock()
	w.running = false
	w.cancel = nil
	w.mu.Unlock()

	w.logger.Debug("Automation finished", logger.F("outcome", res.Outcome))
	if w.onFinished != nil {
		w.onFinished(res)
	}
}

// runEngine turns a panic outside per-action execution, such as in the
// action or target source, into a NothingToDo result.
func (w *Worker) runEngine(ctx context.Context, loopCount int) (res Result) {
	started := time.Now()
	defer func() {
		if p := recover(); p != nil {
			w.logger.Error("Automation aborted", logger.F("panic", p))
			res = Result{
				Outcome:    models.OutcomeNothingToDo,
				Reason:     fmt.Sprintf("panic: %v", p),
				LoopCount:  loopCount,
				StartedAt:  started,
				FinishedAt: time.Now(),
			}
		}
	}()
	return w.engine.Run(ctx, loopCount)
}

// RequestCancel asks the active run to stop. It is idempotent and does
// nothing when idle.
func (w *Worker) RequestCancel() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}
	if w.stopRequested.CompareAndSwap(false, true) {
		w.logger.Info("Stop requested")
	}
	w.cancel()
}

// Running reports whether a run is active.
func (w *Worker) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// StopRequested reports whether RequestCancel was called for the current
// or most recent run.
func (w *Worker) StopRequested() bool {
	return w.stopRequested.Load()
}

// Wait blocks until the current run, if any, has fired OnFinished.
func (w *Worker) Wait() {
	w.mu.Lock()
	done := w.done
	w.mu.Unlock()

	if done != nil {
		<-done
	}
}
