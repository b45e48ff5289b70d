package interpreter

import (
	"image"
	"time"
)

type Button string

const (
	ButtonLeft  Button = "left"
	ButtonRight Button = "right"
)

// Rect is a screen region in absolute pixels.
type Rect struct {
	X, Y, W, H int
}

// Input is the OS-level automation capability the interpreter drives.
// Implementations may block for the duration of the primitive; calls are
// never interrupted once issued.
type Input interface {
	MoveTo(x, y int, d time.Duration) error
	Click(b Button, double bool) error
	DragTo(x, y int, d time.Duration) error
	Hotkey(keys []string) error
	TypeText(text string) error
	// Scroll moves the wheel by notches; positive scrolls up.
	Scroll(notches int) error
	KeyPress(key string) error
	// Capture grabs the full screen when region is nil.
	Capture(region *Rect) (image.Image, error)
}

// ScreenshotSink persists captured images and returns where they went.
type ScreenshotSink interface {
	SaveScreenshot(img image.Image, at time.Time) (string, error)
}
