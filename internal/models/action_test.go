package models

import (
	"errors"
	"testing"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		in   string
		want Kind
	}{
		{"move", KindMove},
		{"Move", KindMove},
		{"double-click", KindDoubleClick},
		{"DoubleClick", KindDoubleClick},
		{"RightClick", KindRightClick},
		{"TypeText", KindTypeText},
		{"KeyPress", KindKeyPress},
		{" wait ", KindWait},
		{"移动", KindMove},
		{"输入文本", KindTypeText},
		{"等等", KindWait},
		{"截屏", KindScreenshot},
		{"按下", KindKeyPress},
	}

	for _, tt := range tests {
		got, err := ParseKind(tt.in)
		if err != nil {
			t.Fatalf("ParseKind(%q) failed: %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseKind(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseKindUnknown(t *testing.T) {
	if _, err := ParseKind("teleport"); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
}

func TestEveryKindHasUsage(t *testing.T) {
	for _, k := range Kinds {
		if !k.Valid() {
			t.Errorf("kind %q not valid", k)
		}
		if k.Usage() == "" {
			t.Errorf("kind %q has no usage text", k)
		}
	}
	if Kind("bogus").Valid() {
		t.Error("bogus kind reported valid")
	}
}
