package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/loveplay1983/pydirector-cn/internal/config"
	"github.com/loveplay1983/pydirector-cn/internal/engine"
	"github.com/loveplay1983/pydirector-cn/internal/hotkey"
	"github.com/loveplay1983/pydirector-cn/internal/input/robot"
	"github.com/loveplay1983/pydirector-cn/internal/interpreter"
	"github.com/loveplay1983/pydirector-cn/internal/logger"
	"github.com/loveplay1983/pydirector-cn/internal/macro"
	"github.com/loveplay1983/pydirector-cn/internal/models"
	"github.com/loveplay1983/pydirector-cn/internal/storage"
	"github.com/loveplay1983/pydirector-cn/internal/targets"
	"github.com/loveplay1983/pydirector-cn/internal/tui"
	"github.com/loveplay1983/pydirector-cn/internal/workspace"
)

var (
	dataDir  string
	verbose  bool
	noHotkey bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "pydirector",
		Short: "Desktop macro automation",
		Long:  "PyDirector replays a recorded list of mouse and keyboard actions, once per target id or a fixed number of times.",
		RunE:  runTUI,
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Data directory (default $PYDIRECTOR_DATA_DIR or ~/.pydirector)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Also log to stdout")
	rootCmd.PersistentFlags().BoolVar(&noHotkey, "no-hotkey", false, "Do not register the global Esc hotkey")

	rootCmd.AddCommand(newAddCommand())
	rootCmd.AddCommand(newListCommand())
	rootCmd.AddCommand(newEditCommand())
	rootCmd.AddCommand(newDeleteCommand())
	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newHistoryCommand())
	rootCmd.AddCommand(newStatusCommand())
	rootCmd.AddCommand(newImportCommand())
	rootCmd.AddCommand(newExportCommand())
	rootCmd.AddCommand(newCheckCommand())
	rootCmd.AddCommand(newKindsCommand())
	rootCmd.AddCommand(newWhereCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// env holds what every command needs: config, log and the store.
type env struct {
	cfg   *config.Config
	log   logger.Logger
	file  *logger.FileLogger
	store *storage.Storage
}

func openEnv(logToStdout bool) (*env, error) {
	var cfg *config.Config
	var err error
	if dataDir != "" {
		cfg, err = config.Load(dataDir)
	} else {
		cfg, err = config.New()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	level := logger.ParseLevel(cfg.LogLevel)
	file, err := logger.NewFile(cfg.LogPath, level)
	if err != nil {
		return nil, err
	}

	var log logger.Logger = file
	if logToStdout {
		log = logger.Tee(file, logger.NewStdout(logger.LevelDebug))
	}

	store, err := storage.New(cfg.DBPath)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &env{cfg: cfg, log: log, file: file, store: store}, nil
}

func (e *env) Close() {
	e.store.Close()
	e.file.Close()
}

// newWorker assembles the run pipeline: robot input, interpreter, engine
// and the background worker that records each run.
func (e *env) newWorker(onFinished func(engine.Result)) (*engine.Worker, error) {
	ws, err := workspace.Open(e.cfg.ScreenshotDir)
	if err != nil {
		return nil, err
	}

	interp := interpreter.New(robot.New(),
		interpreter.WithScreenshotSink(ws),
		interpreter.WithLogger(e.log),
		interpreter.WithPollInterval(e.cfg.WaitPoll),
		interpreter.WithPointerDuration(e.cfg.PointerDuration),
	)

	eng := engine.New(e.store, targets.NewFile(e.cfg.TargetsFile), interp,
		engine.WithLogger(e.log),
		engine.WithSettleDelay(e.cfg.SettleDelay),
	)

	return engine.NewWorker(eng,
		engine.WithRecorder(e.store),
		engine.WithWorkerLogger(e.log),
		engine.WithOnFinished(onFinished),
	), nil
}

func runTUI(cmd *cobra.Command, args []string) error {
	e, err := openEnv(false)
	if err != nil {
		return err
	}
	defer e.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	results := make(chan engine.Result, 1)
	worker, err := e.newWorker(func(r engine.Result) { results <- r })
	if err != nil {
		return err
	}

	var changes <-chan struct{}
	if w, err := targets.NewWatcher(e.cfg.TargetsFile); err != nil {
		e.log.Warn("Target file watcher unavailable", logger.F("error", err))
	} else {
		defer w.Close()
		if err := w.Start(ctx); err != nil {
			e.log.Warn("Target file watcher unavailable", logger.F("error", err))
		} else {
			changes = w.Changes()
		}
	}

	if !noHotkey {
		go hotkey.ListenEscape(ctx, worker.RequestCancel)
	}

	app := tui.NewApp(tui.Options{
		Context:       ctx,
		Store:         e.store,
		Runner:        worker,
		Targets:       targets.NewFile(e.cfg.TargetsFile),
		Finished:      results,
		TargetChanges: changes,
	})
	p := tea.NewProgram(app, tea.WithAltScreen())

	_, err = p.Run()

	worker.RequestCancel()
	worker.Wait()
	return err
}

func newAddCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "add <name> <kind> [params]",
		Short: "Append an action",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, params, err := parseActionArgs(args[1:])
			if err != nil {
				return err
			}

			e, err := openEnv(verbose)
			if err != nil {
				return err
			}
			defer e.Close()

			id, err := e.store.CreateAction(args[0], kind, params)
			if err != nil {
				return fmt.Errorf("failed to add action: %w", err)
			}

			fmt.Printf("Added action #%d\n", id)
			warnMalformed(models.Action{ID: id, Name: args[0], Kind: kind, Parameters: params})
			return nil
		},
	}
}

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List actions in execution order",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(verbose)
			if err != nil {
				return err
			}
			defer e.Close()

			actions, err := e.store.ListActions()
			if err != nil {
				return err
			}

			if len(actions) == 0 {
				fmt.Println("No actions found.")
				return nil
			}

			for _, a := range actions {
				fmt.Printf("#%d %s [%s] %s\n", a.ID, a.Name, a.Kind, truncate(a.Parameters, 50))
			}
			return nil
		},
	}
}

func newEditCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "edit <id> <name> <kind> [params]",
		Short: "Replace an action's name, kind and parameters",
		Args:  cobra.RangeArgs(3, 4),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid action ID: %w", err)
			}

			kind, params, err := parseActionArgs(args[2:])
			if err != nil {
				return err
			}

			e, err := openEnv(verbose)
			if err != nil {
				return err
			}
			defer e.Close()

			if err := e.store.UpdateAction(id, args[1], kind, params); err != nil {
				if errors.Is(err, storage.ErrNotFound) {
					return fmt.Errorf("action #%d not found", id)
				}
				return fmt.Errorf("failed to update action: %w", err)
			}

			fmt.Printf("Updated action #%d\n", id)
			warnMalformed(models.Action{ID: id, Name: args[1], Kind: kind, Parameters: params})
			return nil
		},
	}
}

func newDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an action",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid action ID: %w", err)
			}

			e, err := openEnv(verbose)
			if err != nil {
				return err
			}
			defer e.Close()

			if err := e.store.DeleteAction(id); err != nil {
				if errors.Is(err, storage.ErrNotFound) {
					return fmt.Errorf("action #%d not found", id)
				}
				return fmt.Errorf("failed to delete action: %w", err)
			}

			fmt.Printf("Deleted action #%d\n", id)
			return nil
		},
	}
}

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the action list until done or stopped",
		Long: "With --loops 0 (the default) runs every action once per id in the target file.\n" +
			"With --loops N > 0 runs N passes, substituting the pass number for the target.\n" +
			"Press Esc anywhere, or Ctrl+C here, to stop.",
		RunE: func(cmd *cobra.Command, args []string) error {
			loops, _ := cmd.Flags().GetInt("loops")

			e, err := openEnv(verbose)
			if err != nil {
				return err
			}
			defer e.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			results := make(chan engine.Result, 1)
			worker, err := e.newWorker(func(r engine.Result) { results <- r })
			if err != nil {
				return err
			}

			if !noHotkey {
				hotkeyCtx, cancelHotkey := context.WithCancel(ctx)
				defer cancelHotkey()
				go hotkey.ListenEscape(hotkeyCtx, worker.RequestCancel)
				fmt.Println("Press Esc to stop.")
			}

			worker.Start(context.Background(), loops)

			var res engine.Result
			select {
			case res = <-results:
			case <-ctx.Done():
				fmt.Println("Stopping...")
				worker.RequestCancel()
				res = <-results
			}

			printResult(res)
			return nil
		},
	}

	cmd.Flags().IntP("loops", "n", 0, "0 = one pass per target id; N > 0 = N passes, substituting the pass number")
	return cmd
}

func printResult(res engine.Result) {
	fmt.Println(res.Message())
	if res.Reason != "" && res.Outcome == models.OutcomeNothingToDo {
		fmt.Printf("Reason: %s\n", res.Reason)
	}
	if res.RunID > 0 {
		fmt.Printf("Run #%d: %d/%d iterations, %d actions, %s\n",
			res.RunID, res.Iterations, res.EffectiveLoops, res.ActionsExecuted,
			res.FinishedAt.Sub(res.StartedAt).Round(time.Millisecond))
	}

	for _, f := range res.Failures {
		target := f.Target
		if target == "" {
			target = "-"
		}
		fmt.Printf("  iteration %d target %s: %v\n", f.Iteration, target, f.Failure)
	}
}

func newHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")

			e, err := openEnv(verbose)
			if err != nil {
				return err
			}
			defer e.Close()

			runs, err := e.store.ListRuns(limit)
			if err != nil {
				return err
			}

			if len(runs) == 0 {
				fmt.Println("No runs found.")
				return nil
			}

			for _, run := range runs {
				fmt.Printf("#%d [%s] %d iterations, %d actions, %d failed, %s\n",
					run.ID, run.Outcome, run.Iterations, run.ActionsExecuted, run.FailureCount,
					storage.FormatTimeAgo(run.StartedAt))
			}
			return nil
		},
	}

	cmd.Flags().Int("limit", 20, "Maximum runs to show")
	return cmd
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status <run-id>",
		Short: "Show a recorded run and its failures",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid run ID: %w", err)
			}

			e, err := openEnv(verbose)
			if err != nil {
				return err
			}
			defer e.Close()

			run, err := e.store.GetRun(runID)
			if err != nil {
				return fmt.Errorf("failed to get run: %w", err)
			}

			fmt.Printf("Run #%d: %s\n", run.ID, run.Outcome)
			fmt.Printf("Started: %s\n", run.StartedAt.Format(time.DateTime))
			fmt.Printf("Duration: %s\n", run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
			fmt.Printf("Loops: %d requested, %d effective, %d run\n", run.LoopCount, run.EffectiveLoops, run.Iterations)
			fmt.Printf("Actions executed: %d\n", run.ActionsExecuted)
			if run.Reason != "" {
				fmt.Printf("Reason: %s\n", run.Reason)
			}

			failures, err := e.store.GetFailuresForRun(runID)
			if err != nil {
				return err
			}

			if len(failures) > 0 {
				fmt.Println("\nFailures:")
				for _, f := range failures {
					target := f.Target
					if target == "" {
						target = "-"
					}
					fmt.Printf("  [%d] target %s, #%d %s (%s): %s\n",
						f.Iteration, target, f.ActionID, f.ActionName, f.Kind, f.Reason)
				}
			}
			return nil
		},
	}
}

func newImportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Append actions from a YAML or Lua macro",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := macro.Load(args[0])
			if err != nil {
				return err
			}

			e, err := openEnv(verbose)
			if err != nil {
				return err
			}
			defer e.Close()

			for _, msg := range m.Logs {
				e.log.Info(msg, logger.F("macro", m.Name))
			}

			ids, err := macro.Import(e.store, m)
			if err != nil {
				return err
			}

			e.log.Info("Imported macro", logger.F("name", m.Name), logger.F("actions", len(ids)))
			fmt.Printf("Imported %d actions from %q\n", len(ids), m.Name)
			return nil
		},
	}
}

func newExportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "export <file>",
		Short: "Write the action list to a YAML macro",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(verbose)
			if err != nil {
				return err
			}
			defer e.Close()

			actions, err := e.store.ListActions()
			if err != nil {
				return err
			}

			name := strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
			if err := macro.Write(args[0], macro.FromActions(name, actions)); err != nil {
				return err
			}

			fmt.Printf("Exported %d actions to %s\n", len(actions), args[0])
			return nil
		},
	}
}

func newCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Parse every action without running anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(verbose)
			if err != nil {
				return err
			}
			defer e.Close()

			actions, err := e.store.ListActions()
			if err != nil {
				return err
			}

			bad := 0
			for _, a := range actions {
				if err := interpreter.Check(a); err != nil {
					bad++
					fmt.Printf("#%d %s [%s]: %v\n", a.ID, a.Name, a.Kind, err)
				}
			}

			if bad > 0 {
				return fmt.Errorf("%d of %d actions would fail", bad, len(actions))
			}
			fmt.Printf("All %d actions parse.\n", len(actions))
			return nil
		},
	}
}

func newKindsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "kinds",
		Short: "List action kinds and their parameters",
		Run: func(cmd *cobra.Command, args []string) {
			for _, k := range models.Kinds {
				fmt.Printf("%-13s %s\n", k, k.Usage())
			}
		},
	}
}

func newWhereCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "where",
		Short: "Print the pointer position, for filling in move and drag",
		RunE: func(cmd *cobra.Command, args []string) error {
			follow, _ := cmd.Flags().GetBool("follow")
			in := robot.New()

			if !follow {
				x, y := in.Position()
				fmt.Printf("%d,%d\n", x, y)
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			ticker := time.NewTicker(200 * time.Millisecond)
			defer ticker.Stop()

			lastX, lastY := -1, -1
			for {
				select {
				case <-ctx.Done():
					fmt.Println()
					return nil
				case <-ticker.C:
					x, y := in.Position()
					if x != lastX || y != lastY {
						fmt.Printf("\r%d,%d      ", x, y)
						lastX, lastY = x, y
					}
				}
			}
		},
	}

	cmd.Flags().BoolP("follow", "f", false, "Keep printing until Ctrl+C")
	return cmd
}

// parseActionArgs resolves the kind and optional parameters of add/edit.
func parseActionArgs(args []string) (models.Kind, string, error) {
	kind, err := models.ParseKind(args[0])
	if err != nil {
		return "", "", fmt.Errorf("%w (see 'pydirector kinds')", err)
	}

	params := ""
	if len(args) > 1 {
		params = args[1]
	}
	return kind, params, nil
}

// warnMalformed reports parameters that will fail at run time. The action
// is stored regardless, matching how runs treat it.
func warnMalformed(a models.Action) {
	if err := interpreter.Check(a); err != nil {
		fmt.Printf("Warning: %v\nExpected parameters: %s\n", err, a.Kind.Usage())
	}
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
