package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/loveplay1983/pydirector-cn/internal/engine"
	"github.com/loveplay1983/pydirector-cn/internal/models"
	"github.com/loveplay1983/pydirector-cn/internal/storage"
)

type View int

const (
	ViewActions View = iota
	ViewLoopPrompt
	ViewHistory
	ViewRunDetail
)

// Store is the persistence the control panel reads and edits.
type Store interface {
	ListActions() ([]models.Action, error)
	DeleteAction(id int64) error
	ListRuns(limit int) ([]*models.Run, error)
	GetFailuresForRun(runID int64) ([]models.ActionFailure, error)
}

// Runner starts and stops automation runs.
type Runner interface {
	Start(ctx context.Context, loopCount int) bool
	RequestCancel()
	Running() bool
}

// Options wires the control panel to the rest of the program. Finished
// must receive every Result the Runner produces. TargetChanges is optional.
type Options struct {
	Context       context.Context
	Store         Store
	Runner        Runner
	Targets       engine.TargetProvider
	Finished      <-chan engine.Result
	TargetChanges <-chan struct{}
}

type App struct {
	ctx      context.Context
	store    Store
	runner   Runner
	targets  engine.TargetProvider
	finished <-chan engine.Result
	changes  <-chan struct{}

	view        View
	actions     []models.Action
	selectedIdx int
	targetCount int

	runs           []*models.Run
	selectedRunIdx int
	selectedRun    *models.Run
	failures       []models.ActionFailure

	loopInput  textinput.Model
	spinner    spinner.Model
	running    bool
	cancelling bool
	status     string

	width  int
	height int
	err    error
}

func NewApp(opts Options) *App {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}

	in := textinput.New()
	in.Placeholder = "0"
	in.CharLimit = 6
	in.Width = 8
	in.SetValue("0")

	sp := spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(statusRunning))

	return &App{
		ctx:       ctx,
		store:     opts.Store,
		runner:    opts.Runner,
		targets:   opts.Targets,
		finished:  opts.Finished,
		changes:   opts.TargetChanges,
		view:      ViewActions,
		loopInput: in,
		spinner:   sp,
	}
}

func (a *App) Init() tea.Cmd {
	cmds := []tea.Cmd{a.loadActions, a.loadTargets, a.spinner.Tick}
	if a.finished != nil {
		cmds = append(cmds, a.waitForResult)
	}
	if a.changes != nil {
		cmds = append(cmds, a.waitForTargetChange)
	}
	return tea.Batch(cmds...)
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return a.handleKey(msg)

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		return a, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case actionsLoadedMsg:
		a.actions = msg.actions
		a.err = msg.err
		if a.selectedIdx >= len(a.actions) {
			a.selectedIdx = max(len(a.actions)-1, 0)
		}
		return a, nil

	case targetsLoadedMsg:
		a.targetCount = msg.count
		if msg.err != nil {
			a.err = msg.err
		}
		return a, nil

	case targetsChangedMsg:
		return a, tea.Batch(a.loadTargets, a.waitForTargetChange)

	case runFinishedMsg:
		a.running = false
		a.cancelling = false
		a.status = summarize(msg.result)
		return a, tea.Batch(a.waitForResult, a.loadRuns)

	case actionDeletedMsg:
		a.err = msg.err
		return a, a.loadActions

	case runsLoadedMsg:
		a.runs = msg.runs
		a.err = msg.err
		if a.selectedRunIdx >= len(a.runs) {
			a.selectedRunIdx = max(len(a.runs)-1, 0)
		}
		return a, nil

	case runDetailMsg:
		a.selectedRun = msg.run
		a.failures = msg.failures
		a.err = msg.err
		if a.err == nil {
			a.view = ViewRunDetail
		}
		return a, nil
	}

	return a, nil
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		a.stop()
		return a, tea.Quit
	}

	switch a.view {
	case ViewActions:
		return a.handleActionsKey(msg)
	case ViewLoopPrompt:
		return a.handleLoopPromptKey(msg)
	case ViewHistory:
		return a.handleHistoryKey(msg)
	case ViewRunDetail:
		return a.handleRunDetailKey(msg)
	}
	return a, nil
}

func (a *App) handleActionsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		a.stop()
		return a, tea.Quit

	case "up", "k":
		if a.selectedIdx > 0 {
			a.selectedIdx--
		}

	case "down", "j":
		if a.selectedIdx < len(a.actions)-1 {
			a.selectedIdx++
		}

	case "s", "enter":
		if a.running {
			a.status = "Automation already running."
			return a, nil
		}
		a.err = nil
		a.view = ViewLoopPrompt
		return a, a.loopInput.Focus()

	case "esc", "x":
		a.stop()

	case "d":
		if a.running {
			a.status = "Stop the automation before deleting actions."
			return a, nil
		}
		if len(a.actions) > 0 && a.selectedIdx < len(a.actions) {
			return a, a.deleteAction(a.actions[a.selectedIdx].ID)
		}

	case "r":
		return a, tea.Batch(a.loadActions, a.loadTargets)

	case "h":
		a.view = ViewHistory
		return a, a.loadRuns
	}

	return a, nil
}

func (a *App) handleLoopPromptKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		a.loopInput.Blur()
		a.view = ViewActions
		return a, nil

	case "enter":
		a.loopInput.Blur()
		a.view = ViewActions

		loops, err := strconv.Atoi(strings.TrimSpace(a.loopInput.Value()))
		if err != nil {
			a.err = fmt.Errorf("loop count must be a whole number")
			return a, nil
		}

		if !a.runner.Start(a.ctx, loops) {
			a.status = "Automation already running."
			return a, nil
		}
		a.running = true
		a.status = ""
		return a, nil
	}

	var cmd tea.Cmd
	a.loopInput, cmd = a.loopInput.Update(msg)
	return a, cmd
}

func (a *App) handleHistoryKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc":
		a.view = ViewActions

	case "up", "k":
		if a.selectedRunIdx > 0 {
			a.selectedRunIdx--
		}

	case "down", "j":
		if a.selectedRunIdx < len(a.runs)-1 {
			a.selectedRunIdx++
		}

	case "enter":
		if len(a.runs) > 0 && a.selectedRunIdx < len(a.runs) {
			return a, a.loadRunDetail(a.runs[a.selectedRunIdx])
		}

	case "r":
		return a, a.loadRuns

	case "x":
		a.stop()
	}

	return a, nil
}

func (a *App) handleRunDetailKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc":
		a.view = ViewHistory
		a.selectedRun = nil
		a.failures = nil

	case "x":
		a.stop()
	}

	return a, nil
}

func (a *App) stop() {
	if !a.running {
		return
	}
	a.runner.RequestCancel()
	a.cancelling = true
}

func (a *App) View() string {
	switch a.view {
	case ViewActions:
		return a.viewActions()
	case ViewLoopPrompt:
		return a.viewLoopPrompt()
	case ViewHistory:
		return a.viewHistory()
	case ViewRunDetail:
		return a.viewRunDetail()
	}
	return ""
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("229")).
			Background(lipgloss.Color("57"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	statusRunning   = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	statusComplete  = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	statusFailed    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	statusCancelled = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))
)

func (a *App) header() string {
	s := titleStyle.Render("PyDirector") + "  "
	s += labelStyle.Render("targets: ") + strconv.Itoa(a.targetCount) + "  "

	switch {
	case a.cancelling:
		s += statusCancelled.Render(a.spinner.View() + " stopping")
	case a.running:
		s += statusRunning.Render(a.spinner.View() + " running")
	default:
		s += dimStyle.Render("idle")
	}
	s += "\n\n"

	if a.err != nil {
		s += statusFailed.Render(fmt.Sprintf("Error: %v", a.err)) + "\n"
	}
	if a.status != "" {
		s += a.status + "\n"
	}
	if a.err != nil || a.status != "" {
		s += "\n"
	}
	return s
}

func (a *App) viewActions() string {
	s := a.header()

	if len(a.actions) == 0 {
		s += "No actions yet. Add some with 'pydirector add' or 'pydirector import'.\n"
	} else {
		s += "Actions\n"
		s += "───────\n"

		for i, action := range a.actions {
			line := formatActionLine(action)
			if i == a.selectedIdx {
				line = selectedStyle.Render("▶ " + line)
			} else {
				line = "  " + line
			}
			s += line + "\n"
		}
	}

	help := "[s] start  [d] delete  [h] history  [r] refresh  [q] quit"
	if a.running {
		help = "[esc/x] stop  [h] history  [q] quit"
	}
	s += "\n" + helpStyle.Render(help)

	return s
}

func formatActionLine(a models.Action) string {
	kind := string(a.Kind)
	if !a.Kind.Valid() {
		kind = statusFailed.Render(kind)
	}
	return fmt.Sprintf("#%-3d %-20s %-12s %s", a.ID, truncate(a.Name, 20), kind, truncate(a.Parameters, 30))
}

func (a *App) viewLoopPrompt() string {
	s := a.header()
	s += "Loop count\n\n"
	s += a.loopInput.View() + "\n\n"
	s += dimStyle.Render("0 = one pass per target id; N > 0 = N passes, substituting the pass number.") + "\n"
	s += "\n" + helpStyle.Render("[enter] start  [esc] cancel")
	return s
}

func (a *App) viewHistory() string {
	s := a.header()

	if len(a.runs) == 0 {
		s += "No runs recorded yet.\n"
	} else {
		s += "Recent Runs\n"
		s += "───────────\n"

		for i, run := range a.runs {
			line := formatRunLine(run)
			if i == a.selectedRunIdx {
				line = selectedStyle.Render("▶ " + line)
			} else {
				line = "  " + line
			}
			s += line + "\n"
		}
	}

	s += "\n" + helpStyle.Render("[enter] view  [r] refresh  [esc] back")
	return s
}

func formatRunLine(run *models.Run) string {
	age := storage.FormatTimeAgo(run.StartedAt)
	failures := ""
	if run.FailureCount > 0 {
		failures = statusFailed.Render(fmt.Sprintf("%d failed", run.FailureCount))
	}
	return fmt.Sprintf("#%-3d %s  %3d iter  %4d actions  %-8s %s",
		run.ID, formatOutcome(run.Outcome), run.Iterations, run.ActionsExecuted, age, failures)
}

func formatOutcome(o models.Outcome) string {
	switch o {
	case models.OutcomeCompleted:
		return statusComplete.Render("✓ completed    ")
	case models.OutcomeCancelled:
		return statusCancelled.Render("■ cancelled    ")
	case models.OutcomeNothingToDo:
		return dimStyle.Render("○ nothing to do")
	default:
		return string(o)
	}
}

func (a *App) viewRunDetail() string {
	run := a.selectedRun
	if run == nil {
		return "No run selected"
	}

	s := titleStyle.Render(fmt.Sprintf("Run #%d", run.ID)) + "  " + formatOutcome(run.Outcome) + "\n\n"

	s += labelStyle.Render("Started:    ") + run.StartedAt.Format(time.DateTime) + "\n"
	s += labelStyle.Render("Duration:   ") + formatDuration(run.FinishedAt.Sub(run.StartedAt)) + "\n"
	s += labelStyle.Render("Loops:      ") + fmt.Sprintf("%d requested, %d effective, %d run", run.LoopCount, run.EffectiveLoops, run.Iterations) + "\n"
	s += labelStyle.Render("Actions:    ") + strconv.Itoa(run.ActionsExecuted) + "\n"
	if run.Reason != "" {
		s += labelStyle.Render("Reason:     ") + run.Reason + "\n"
	}

	s += "\nFailures\n"
	s += "────────\n"
	if len(a.failures) == 0 {
		s += dimStyle.Render("(none)") + "\n"
	} else {
		for _, f := range a.failures {
			target := f.Target
			if target == "" {
				target = "-"
			}
			s += fmt.Sprintf("  %3d  %-10s #%-3d %-16s %s\n",
				f.Iteration, truncate(target, 10), f.ActionID, truncate(f.ActionName, 16), statusFailed.Render(f.Reason))
		}
	}

	s += "\n" + helpStyle.Render("[esc] back")
	return s
}

func summarize(res engine.Result) string {
	msg := res.Message()
	switch res.Outcome {
	case models.OutcomeCompleted:
		msg = statusComplete.Render(msg)
	case models.OutcomeCancelled:
		msg = statusCancelled.Render(msg)
	}

	if n := len(res.Failures); n > 0 {
		msg += statusFailed.Render(fmt.Sprintf(" %d action(s) failed, see history.", n))
	}
	if res.Reason != "" && res.Outcome == models.OutcomeNothingToDo {
		msg += dimStyle.Render(" (" + res.Reason + ")")
	}
	return msg
}

// Messages

type actionsLoadedMsg struct {
	actions []models.Action
	err     error
}

type targetsLoadedMsg struct {
	count int
	err   error
}

type targetsChangedMsg struct{}

type runFinishedMsg struct {
	result engine.Result
}

type actionDeletedMsg struct {
	id  int64
	err error
}

type runsLoadedMsg struct {
	runs []*models.Run
	err  error
}

type runDetailMsg struct {
	run      *models.Run
	failures []models.ActionFailure
	err      error
}

// Commands

func (a *App) loadActions() tea.Msg {
	actions, err := a.store.ListActions()
	return actionsLoadedMsg{actions: actions, err: err}
}

func (a *App) loadTargets() tea.Msg {
	if a.targets == nil {
		return targetsLoadedMsg{}
	}
	ids, err := a.targets.Targets()
	return targetsLoadedMsg{count: len(ids), err: err}
}

func (a *App) waitForTargetChange() tea.Msg {
	if _, ok := <-a.changes; !ok {
		return nil
	}
	return targetsChangedMsg{}
}

func (a *App) waitForResult() tea.Msg {
	return runFinishedMsg{result: <-a.finished}
}

func (a *App) deleteAction(id int64) tea.Cmd {
	return func() tea.Msg {
		return actionDeletedMsg{id: id, err: a.store.DeleteAction(id)}
	}
}

func (a *App) loadRuns() tea.Msg {
	runs, err := a.store.ListRuns(20)
	return runsLoadedMsg{runs: runs, err: err}
}

func (a *App) loadRunDetail(run *models.Run) tea.Cmd {
	return func() tea.Msg {
		failures, err := a.store.GetFailuresForRun(run.ID)
		return runDetailMsg{run: run, failures: failures, err: err}
	}
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}
