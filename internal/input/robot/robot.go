// Package robot implements interpreter.Input on top of robotgo.
package robot

import (
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/go-vgo/robotgo"

	"github.com/loveplay1983/pydirector-cn/internal/interpreter"
)

// glideStep is the pointer update interval while moving over a duration.
const glideStep = 10 * time.Millisecond

type Input struct{}

var _ interpreter.Input = (*Input)(nil)

func New() *Input {
	return &Input{}
}

// Position returns the current pointer position.
func (in *Input) Position() (int, int) {
	return robotgo.Location()
}

func (in *Input) MoveTo(x, y int, d time.Duration) error {
	glide(x, y, d)
	return nil
}

// glide moves the pointer in a straight line so the whole move takes d.
func glide(x, y int, d time.Duration) {
	steps := int(d / glideStep)
	if steps <= 1 {
		robotgo.Move(x, y)
		return
	}

	sx, sy := robotgo.Location()
	for i := 1; i <= steps; i++ {
		robotgo.Move(sx+(x-sx)*i/steps, sy+(y-sy)*i/steps)
		time.Sleep(glideStep)
	}
}

func (in *Input) Click(b interpreter.Button, double bool) error {
	robotgo.Click(string(b), double)
	return nil
}

func (in *Input) DragTo(x, y int, d time.Duration) error {
	if err := robotgo.Toggle("left"); err != nil {
		return fmt.Errorf("mouse down: %w", err)
	}
	glide(x, y, d)
	if err := robotgo.Toggle("left", "up"); err != nil {
		return fmt.Errorf("mouse up: %w", err)
	}
	return nil
}

// Hotkey presses the last key with every earlier key held as a modifier.
func (in *Input) Hotkey(keys []string) error {
	if len(keys) == 0 {
		return fmt.Errorf("no keys")
	}

	mods := make([]interface{}, 0, len(keys)-1)
	for _, k := range keys[:len(keys)-1] {
		mods = append(mods, normalizeKey(k))
	}
	return robotgo.KeyTap(normalizeKey(keys[len(keys)-1]), mods...)
}

func (in *Input) TypeText(text string) error {
	robotgo.TypeStr(text)
	return nil
}

func (in *Input) Scroll(notches int) error {
	switch {
	case notches > 0:
		robotgo.ScrollDir(notches, "up")
	case notches < 0:
		robotgo.ScrollDir(-notches, "down")
	}
	return nil
}

func (in *Input) KeyPress(key string) error {
	return robotgo.KeyTap(normalizeKey(key))
}

func (in *Input) Capture(region *interpreter.Rect) (image.Image, error) {
	if region == nil {
		return robotgo.CaptureImg()
	}
	return robotgo.CaptureImg(region.X, region.Y, region.W, region.H)
}

// normalizeKey maps the key names people commonly type onto robotgo's.
func normalizeKey(k string) string {
	switch k = strings.ToLower(strings.TrimSpace(k)); k {
	case "ctrl":
		return "control"
	case "cmd", "super", "win":
		return "command"
	case "option":
		return "alt"
	case "esc":
		return "escape"
	case "return":
		return "enter"
	case "del":
		return "delete"
	case "pgup", "pageup":
		return "pageup"
	case "pgdn", "pagedown":
		return "pagedown"
	}
	return k
}
