package workspace

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSaveScreenshot(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "screenshots")
	ws, err := Open(dir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	at := time.Date(2026, 10, 18, 14, 5, 9, 0, time.UTC)
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))

	first, err := ws.SaveScreenshot(img, at)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if filepath.Base(first) != "screenshot_20261018_140509.png" {
		t.Fatalf("unexpected name: %s", first)
	}

	second, err := ws.SaveScreenshot(img, at)
	if err != nil {
		t.Fatalf("second save failed: %v", err)
	}
	if filepath.Base(second) != "screenshot_20261018_140509_1.png" {
		t.Fatalf("same-second capture overwrote or misnamed: %s", second)
	}

	f, err := os.Open(first)
	if err != nil {
		t.Fatalf("open saved file: %v", err)
	}
	defer f.Close()
	decoded, err := png.Decode(f)
	if err != nil {
		t.Fatalf("saved file is not a PNG: %v", err)
	}
	if decoded.Bounds().Dx() != 4 || decoded.Bounds().Dy() != 3 {
		t.Fatalf("unexpected bounds: %v", decoded.Bounds())
	}
}

func TestSaveScreenshotMissingDirFails(t *testing.T) {
	ws := &Workspace{ScreenshotDir: filepath.Join(t.TempDir(), "gone", "deeper")}
	if _, err := ws.SaveScreenshot(image.NewRGBA(image.Rect(0, 0, 1, 1)), time.Now()); err == nil {
		t.Fatal("expected error writing into a missing directory")
	}
}
