package interpreter

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/loveplay1983/pydirector-cn/internal/logger"
	"github.com/loveplay1983/pydirector-cn/internal/models"
)

var ErrMalformedParameters = errors.New("malformed parameters")

// Placeholders are replaced by the current target in type_text actions.
var Placeholders = []string{"{target_id}", "{target}"}

var quoteStripper = strings.NewReplacer(`"`, "", "'", "")

// Step is a parsed action, ready to apply.
type Step interface {
	apply(ctx context.Context, r *Interpreter) error
}

type grammar func(params, target string) (Step, error)

// grammars holds one parser per kind. TestEveryKindHasGrammar keeps it in
// step with models.Kinds.
var grammars = map[models.Kind]grammar{
	models.KindMove:        parseMove,
	models.KindClick:       parseClick(false),
	models.KindDoubleClick: parseClick(true),
	models.KindRightClick:  parseRightClick,
	models.KindDrag:        parseDrag,
	models.KindHotkey:      parseHotkey,
	models.KindTypeText:    parseTypeText,
	models.KindWait:        parseWait,
	models.KindScroll:      parseScroll,
	models.KindScreenshot:  parseScreenshot,
	models.KindKeyPress:    parseKeyPress,
}

// Parse turns kind and its raw parameters into a Step. target, when
// non-empty, is substituted into type_text placeholders.
func Parse(kind models.Kind, params, target string) (Step, error) {
	g, ok := grammars[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", models.ErrUnknownKind, kind)
	}
	return g(params, target)
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedParameters, fmt.Sprintf(format, args...))
}

func clean(params string) string {
	return strings.TrimSpace(quoteStripper.Replace(params))
}

func parseInts(params string, n int) ([]int, error) {
	parts := strings.Split(clean(params), ",")
	if len(parts) != n {
		return nil, malformed("expected %d comma-separated integers, got %q", n, params)
	}

	out := make([]int, n)
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, malformed("%q is not an integer", strings.TrimSpace(p))
		}
		out[i] = v
	}
	return out, nil
}

type MoveStep struct{ X, Y int }

func parseMove(params, _ string) (Step, error) {
	xy, err := parseInts(params, 2)
	if err != nil {
		return nil, err
	}
	return MoveStep{X: xy[0], Y: xy[1]}, nil
}

func (s MoveStep) apply(_ context.Context, r *Interpreter) error {
	return r.input.MoveTo(s.X, s.Y, r.pointerDuration)
}

type ClickStep struct {
	Button Button
	Double bool
}

func parseClick(double bool) grammar {
	return func(params, _ string) (Step, error) {
		switch b := strings.ToLower(clean(params)); b {
		case "", "left":
			return ClickStep{Button: ButtonLeft, Double: double}, nil
		case "right":
			return ClickStep{Button: ButtonRight, Double: double}, nil
		default:
			return nil, malformed("button must be left or right, got %q", b)
		}
	}
}

func parseRightClick(_, _ string) (Step, error) {
	return ClickStep{Button: ButtonRight}, nil
}

func (s ClickStep) apply(_ context.Context, r *Interpreter) error {
	return r.input.Click(s.Button, s.Double)
}

type DragStep struct{ X, Y int }

func parseDrag(params, _ string) (Step, error) {
	xy, err := parseInts(params, 2)
	if err != nil {
		return nil, err
	}
	return DragStep{X: xy[0], Y: xy[1]}, nil
}

func (s DragStep) apply(_ context.Context, r *Interpreter) error {
	return r.input.DragTo(s.X, s.Y, r.pointerDuration)
}

type HotkeyStep struct{ Keys []string }

func parseHotkey(params, _ string) (Step, error) {
	var keys []string
	for _, k := range strings.Split(clean(params), ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, strings.ToLower(k))
		}
	}
	if len(keys) == 0 {
		return nil, malformed("hotkey needs at least one key")
	}
	return HotkeyStep{Keys: keys}, nil
}

func (s HotkeyStep) apply(_ context.Context, r *Interpreter) error {
	return r.input.Hotkey(s.Keys)
}

type TypeTextStep struct{ Text string }

// parseTypeText keeps the text verbatim; quotes are content here.
func parseTypeText(params, target string) (Step, error) {
	text := params
	if target != "" {
		for _, p := range Placeholders {
			text = strings.ReplaceAll(text, p, target)
		}
	}
	return TypeTextStep{Text: text}, nil
}

func (s TypeTextStep) apply(_ context.Context, r *Interpreter) error {
	return r.input.TypeText(s.Text)
}

type WaitStep struct{ Duration time.Duration }

// maxWaitSeconds is the longest wait a time.Duration can hold.
var maxWaitSeconds = float64(math.MaxInt64) / float64(time.Second)

func parseWait(params, _ string) (Step, error) {
	p := clean(params)
	seconds, err := strconv.ParseFloat(p, 64)
	if err != nil || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return nil, malformed("%q is not a number of seconds", p)
	}
	if seconds < 0 {
		return nil, malformed("wait cannot be negative: %s", p)
	}
	if seconds > maxWaitSeconds {
		return nil, malformed("wait of %s seconds is too long", p)
	}
	return WaitStep{Duration: time.Duration(seconds * float64(time.Second))}, nil
}

// apply sleeps in poll-sized slices so a cancellation lands within one
// slice. An interrupted wait is not a failure.
func (s WaitStep) apply(ctx context.Context, r *Interpreter) error {
	remaining := s.Duration
	for remaining > 0 {
		slice := r.pollInterval
		if remaining < slice {
			slice = remaining
		}

		timer := time.NewTimer(slice)
		select {
		case <-ctx.Done():
			timer.Stop()
			r.logger.Info("Wait interrupted", logger.F("remaining", remaining))
			return nil
		case <-timer.C:
		}
		remaining -= slice
	}
	return nil
}

type ScrollStep struct{ Notches int }

func parseScroll(params, _ string) (Step, error) {
	p := clean(params)
	n, err := strconv.Atoi(p)
	if err != nil {
		return nil, malformed("%q is not an integer", p)
	}
	return ScrollStep{Notches: n}, nil
}

func (s ScrollStep) apply(_ context.Context, r *Interpreter) error {
	return r.input.Scroll(s.Notches)
}

type ScreenshotStep struct{ Region *Rect }

func parseScreenshot(params, _ string) (Step, error) {
	if clean(params) == "" {
		return ScreenshotStep{}, nil
	}

	v, err := parseInts(params, 4)
	if err != nil {
		return nil, err
	}
	if v[2] <= 0 || v[3] <= 0 {
		return nil, malformed("region width and height must be positive")
	}
	return ScreenshotStep{Region: &Rect{X: v[0], Y: v[1], W: v[2], H: v[3]}}, nil
}

func (s ScreenshotStep) apply(_ context.Context, r *Interpreter) error {
	if r.screenshots == nil {
		return errors.New("no screenshot directory configured")
	}

	img, err := r.input.Capture(s.Region)
	if err != nil {
		return fmt.Errorf("capture failed: %w", err)
	}

	path, err := r.screenshots.SaveScreenshot(img, r.now())
	if err != nil {
		return fmt.Errorf("failed to save screenshot: %w", err)
	}
	r.logger.Info("Screenshot saved", logger.F("path", path))
	return nil
}

type KeyPressStep struct{ Key string }

func parseKeyPress(params, _ string) (Step, error) {
	key := strings.ToLower(clean(params))
	if key == "" {
		return nil, malformed("key_press needs a key")
	}
	if strings.Contains(key, ",") {
		return nil, malformed("key_press takes a single key, use hotkey for %q", key)
	}
	return KeyPressStep{Key: key}, nil
}

func (s KeyPressStep) apply(_ context.Context, r *Interpreter) error {
	return r.input.KeyPress(s.Key)
}
