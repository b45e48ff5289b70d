package interpreter

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/loveplay1983/pydirector-cn/internal/models"
)

type fakeInput struct {
	mu      sync.Mutex
	calls   []string
	failOn  string
	panicOn string
}

func (f *fakeInput) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	if f.panicOn != "" && strings.HasPrefix(call, f.panicOn) {
		panic("input exploded")
	}
	if f.failOn != "" && strings.HasPrefix(call, f.failOn) {
		return errors.New("input refused")
	}
	return nil
}

func (f *fakeInput) MoveTo(x, y int, d time.Duration) error {
	return f.record(fmt.Sprintf("move %d,%d %s", x, y, d))
}

func (f *fakeInput) Click(b Button, double bool) error {
	return f.record(fmt.Sprintf("click %s double=%t", b, double))
}

func (f *fakeInput) DragTo(x, y int, d time.Duration) error {
	return f.record(fmt.Sprintf("drag %d,%d %s", x, y, d))
}

func (f *fakeInput) Hotkey(keys []string) error {
	return f.record("hotkey " + strings.Join(keys, "+"))
}

func (f *fakeInput) TypeText(text string) error {
	return f.record("type " + text)
}

func (f *fakeInput) Scroll(notches int) error {
	return f.record(fmt.Sprintf("scroll %d", notches))
}

func (f *fakeInput) KeyPress(key string) error {
	return f.record("key " + key)
}

func (f *fakeInput) Capture(region *Rect) (image.Image, error) {
	call := "capture full"
	if region != nil {
		call = fmt.Sprintf("capture %d,%d,%d,%d", region.X, region.Y, region.W, region.H)
	}
	if err := f.record(call); err != nil {
		return nil, err
	}
	return image.NewRGBA(image.Rect(0, 0, 2, 2)), nil
}

func (f *fakeInput) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type fakeSink struct {
	saved []time.Time
	err   error
}

func (s *fakeSink) SaveScreenshot(_ image.Image, at time.Time) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.saved = append(s.saved, at)
	return "screenshot.png", nil
}

func act(kind models.Kind, params string) models.Action {
	return models.Action{ID: 1, Name: string(kind) + " step", Kind: kind, Parameters: params}
}

func TestExecuteDispatch(t *testing.T) {
	tests := []struct {
		kind   models.Kind
		params string
		target string
		want   string
	}{
		{models.KindMove, "100,200", "", "move 100,200 500ms"},
		{models.KindMove, `"100, 200"`, "", "move 100,200 500ms"},
		{models.KindClick, "left", "", "click left double=false"},
		{models.KindClick, "RIGHT", "", "click right double=false"},
		{models.KindClick, "", "", "click left double=false"},
		{models.KindDoubleClick, "'left'", "", "click left double=true"},
		{models.KindRightClick, "ignored", "", "click right double=false"},
		{models.KindDrag, "400,300", "", "drag 400,300 500ms"},
		{models.KindHotkey, "ctrl, c", "", "hotkey ctrl+c"},
		{models.KindTypeText, "Hello {target}", "A", "type Hello A"},
		{models.KindTypeText, "id={target_id}", "42", "type id=42"},
		{models.KindTypeText, "Hello {target}", "", "type Hello {target}"},
		{models.KindTypeText, `say "hi"`, "", `type say "hi"`},
		{models.KindScroll, "-10", "", "scroll -10"},
		{models.KindScroll, "5", "", "scroll 5"},
		{models.KindKeyPress, "Enter", "", "key enter"},
		{models.Kind("移动"), "1,2", "", "move 1,2 500ms"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%s", tt.kind, tt.params), func(t *testing.T) {
			in := &fakeInput{}
			r := New(in)

			if f := r.Execute(context.Background(), act(tt.kind, tt.params), tt.target); f != nil {
				t.Fatalf("unexpected failure: %v", f)
			}

			calls := in.Calls()
			if len(calls) != 1 || calls[0] != tt.want {
				t.Fatalf("expected [%s], got %v", tt.want, calls)
			}
		})
	}
}

func TestExecuteMalformedParameters(t *testing.T) {
	tests := []struct {
		kind   models.Kind
		params string
	}{
		{models.KindMove, "abc"},
		{models.KindMove, "1,2,3"},
		{models.KindDrag, "10"},
		{models.KindClick, "middle"},
		{models.KindHotkey, " , "},
		{models.KindWait, "soon"},
		{models.KindWait, "-1"},
		{models.KindWait, "1e11"},
		{models.KindScroll, "1.5"},
		{models.KindScreenshot, "1,2,3"},
		{models.KindScreenshot, "0,0,0,10"},
		{models.KindKeyPress, ""},
		{models.KindKeyPress, "ctrl,c"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%s", tt.kind, tt.params), func(t *testing.T) {
			in := &fakeInput{}
			r := New(in)

			f := r.Execute(context.Background(), act(tt.kind, tt.params), "")
			if f == nil {
				t.Fatal("expected failure")
			}
			if !errors.Is(f, ErrMalformedParameters) {
				t.Fatalf("expected ErrMalformedParameters, got %v", f)
			}
			if f.ActionName != string(tt.kind)+" step" {
				t.Fatalf("failure lost action name: %q", f.ActionName)
			}
			if len(in.Calls()) != 0 {
				t.Fatalf("malformed action reached input: %v", in.Calls())
			}
		})
	}
}

func TestExecuteUnknownKind(t *testing.T) {
	r := New(&fakeInput{})
	f := r.Execute(context.Background(), act(models.Kind("teleport"), ""), "")
	if f == nil || !errors.Is(f, models.ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind failure, got %v", f)
	}
}

func TestExecuteInputErrorAndPanic(t *testing.T) {
	r := New(&fakeInput{failOn: "click"})
	if f := r.Execute(context.Background(), act(models.KindClick, "left"), ""); f == nil {
		t.Fatal("expected failure from input error")
	}

	r = New(&fakeInput{panicOn: "key"})
	f := r.Execute(context.Background(), act(models.KindKeyPress, "tab"), "")
	if f == nil || !strings.Contains(f.Error(), "panic") {
		t.Fatalf("expected recovered panic failure, got %v", f)
	}
}

func TestWaitCompletes(t *testing.T) {
	r := New(&fakeInput{}, WithPollInterval(10*time.Millisecond))

	start := time.Now()
	if f := r.Execute(context.Background(), act(models.KindWait, "0.05"), ""); f != nil {
		t.Fatalf("unexpected failure: %v", f)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Fatalf("wait returned early after %s", elapsed)
	}
}

func TestWaitObservesCancellationWithinOneSlice(t *testing.T) {
	r := New(&fakeInput{}, WithPollInterval(100*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	start := time.Now()
	if f := r.Execute(ctx, act(models.KindWait, "10"), ""); f != nil {
		t.Fatalf("interrupted wait must not fail: %v", f)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("wait ignored cancellation for %s", elapsed)
	}
}

func TestScreenshot(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	sink := &fakeSink{}
	in := &fakeInput{}
	r := New(in, WithScreenshotSink(sink), WithClock(func() time.Time { return at }))

	if f := r.Execute(context.Background(), act(models.KindScreenshot, ""), ""); f != nil {
		t.Fatalf("full capture failed: %v", f)
	}
	if f := r.Execute(context.Background(), act(models.KindScreenshot, "100,200,300,400"), ""); f != nil {
		t.Fatalf("region capture failed: %v", f)
	}

	calls := in.Calls()
	if len(calls) != 2 || calls[0] != "capture full" || calls[1] != "capture 100,200,300,400" {
		t.Fatalf("unexpected captures: %v", calls)
	}
	if len(sink.saved) != 2 || !sink.saved[0].Equal(at) {
		t.Fatalf("unexpected saves: %v", sink.saved)
	}
}

func TestScreenshotWriteFailureIsFailure(t *testing.T) {
	r := New(&fakeInput{}, WithScreenshotSink(&fakeSink{err: errors.New("disk full")}))
	f := r.Execute(context.Background(), act(models.KindScreenshot, ""), "")
	if f == nil || !strings.Contains(f.Error(), "disk full") {
		t.Fatalf("expected write failure, got %v", f)
	}

	r = New(&fakeInput{})
	if f := r.Execute(context.Background(), act(models.KindScreenshot, ""), ""); f == nil {
		t.Fatal("expected failure without a sink")
	}
}

func TestEveryKindHasGrammar(t *testing.T) {
	for _, k := range models.Kinds {
		if _, ok := grammars[k]; !ok {
			t.Errorf("kind %q has no grammar", k)
		}
	}
	if len(grammars) != len(models.Kinds) {
		t.Errorf("grammars has %d entries, kinds has %d", len(grammars), len(models.Kinds))
	}
}

func TestCheck(t *testing.T) {
	if err := Check(act(models.KindMove, "1,2")); err != nil {
		t.Fatalf("valid action rejected: %v", err)
	}
	if err := Check(act(models.KindMove, "abc")); !errors.Is(err, ErrMalformedParameters) {
		t.Fatalf("expected malformed error, got %v", err)
	}
}
