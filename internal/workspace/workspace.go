package workspace

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"time"
)

// Workspace owns the side files a run produces.
type Workspace struct {
	ScreenshotDir string
}

func Open(screenshotDir string) (*Workspace, error) {
	if err := os.MkdirAll(screenshotDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create screenshot directory: %w", err)
	}
	return &Workspace{ScreenshotDir: screenshotDir}, nil
}

// SaveScreenshot writes img as screenshot_YYYYMMDD_HHMMSS.png. When that
// name is taken within the same second a numeric suffix is added.
func (w *Workspace) SaveScreenshot(img image.Image, at time.Time) (string, error) {
	base := "screenshot_" + at.Format("20060102_150405")

	path := filepath.Join(w.ScreenshotDir, base+".png")
	for n := 1; ; n++ {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			break
		}
		path = filepath.Join(w.ScreenshotDir, fmt.Sprintf("%s_%d.png", base, n))
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}

	if err := png.Encode(f, img); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to encode screenshot: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to write screenshot: %w", err)
	}

	return path, nil
}
