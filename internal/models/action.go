package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind identifies what an Action does. The set is closed; see Kinds.
type Kind string

const (
	KindMove        Kind = "move"
	KindClick       Kind = "click"
	KindDoubleClick Kind = "double_click"
	KindRightClick  Kind = "right_click"
	KindDrag        Kind = "drag"
	KindHotkey      Kind = "hotkey"
	KindTypeText    Kind = "type_text"
	KindWait        Kind = "wait"
	KindScroll      Kind = "scroll"
	KindScreenshot  Kind = "screenshot"
	KindKeyPress    Kind = "key_press"
)

// Kinds lists every Kind in display order.
var Kinds = []Kind{
	KindMove,
	KindClick,
	KindDoubleClick,
	KindRightClick,
	KindDrag,
	KindHotkey,
	KindTypeText,
	KindWait,
	KindScroll,
	KindScreenshot,
	KindKeyPress,
}

var ErrUnknownKind = errors.New("unknown action kind")

// legacyLabels maps the Chinese labels found in older
// actions.db files onto canonical kinds.
var legacyLabels = map[string]Kind{
	"移动":   KindMove,
	"单击":   KindClick,
	"双击":   KindDoubleClick,
	"右击":   KindRightClick,
	"拖动":   KindDrag,
	"热键":   KindHotkey,
	"输入文本": KindTypeText,
	"等等":   KindWait,
	"滚动":   KindScroll,
	"截屏":   KindScreenshot,
	"按下":   KindKeyPress,
}

// ParseKind resolves a canonical name (case-insensitive, "-" and "_"
// interchangeable) or a legacy label to a Kind.
func ParseKind(s string) (Kind, error) {
	s = strings.TrimSpace(s)
	if k, ok := legacyLabels[s]; ok {
		return k, nil
	}

	norm := strings.ReplaceAll(strings.ToLower(s), "-", "_")
	switch norm {
	case "doubleclick":
		norm = string(KindDoubleClick)
	case "rightclick":
		norm = string(KindRightClick)
	case "typetext", "type":
		norm = string(KindTypeText)
	case "keypress", "key", "press":
		norm = string(KindKeyPress)
	}

	for _, k := range Kinds {
		if string(k) == norm {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Valid reports whether k is one of Kinds.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// Usage describes the parameter grammar for k.
func (k Kind) Usage() string {
	switch k {
	case KindMove:
		return "x,y (e.g. 100,200)"
	case KindClick, KindDoubleClick:
		return "left or right"
	case KindRightClick:
		return "none (current position)"
	case KindDrag:
		return "x,y to drag to (e.g. 400,300)"
	case KindHotkey:
		return "comma-separated keys (e.g. ctrl,c)"
	case KindTypeText:
		return "text; {target} or {target_id} is replaced by the current target"
	case KindWait:
		return "seconds (e.g. 2.5)"
	case KindScroll:
		return "notches, positive scrolls up (e.g. -10)"
	case KindScreenshot:
		return "empty for full screen, or x,y,width,height"
	case KindKeyPress:
		return "single key (e.g. enter, tab, down)"
	}
	return ""
}

// Action is one step of the macro. Execution order is ascending ID.
type Action struct {
	ID         int64
	Name       string
	Kind       Kind
	Parameters string
	RecordedAt time.Time
}
