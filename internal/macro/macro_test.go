package macro

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/loveplay1983/pydirector-cn/internal/models"
	"github.com/loveplay1983/pydirector-cn/internal/storage"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestParseYAML(t *testing.T) {
	path := writeFile(t, "login.yaml", `
description: log into the portal
actions:
  - name: focus field
    kind: click
    params: left
  - name: enter id
    kind: type_text
    params: "{target_id}"
  - name: pause
    kind: wait
    params: 1.5
  - name: confirm
    kind: 热键
    params: ctrl,enter
`)

	m, err := Parse(path)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if m.Name != "login" {
		t.Errorf("name should default to file stem, got %q", m.Name)
	}
	if len(m.Actions) != 4 {
		t.Fatalf("expected 4 actions, got %d", len(m.Actions))
	}
	if m.Actions[2].Params != "1.5" {
		t.Errorf("numeric params should decode as text, got %q", m.Actions[2].Params)
	}
	if err := Validate(m); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestValidateRejectsUnknownKind(t *testing.T) {
	m := &Macro{Name: "bad", Actions: []Entry{{Name: "x", Kind: "teleport"}}}
	if err := Validate(m); !errors.Is(err, models.ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}

	if err := Validate(&Macro{Name: "empty"}); err == nil {
		t.Fatal("expected error for empty macro")
	}
}

func TestImportAndExportRoundTrip(t *testing.T) {
	store, err := storage.New(filepath.Join(t.TempDir(), "actions.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	m := &Macro{Name: "demo", Actions: []Entry{
		{Name: "go", Kind: "move", Params: "10,20"},
		{Name: "", Kind: "doubleclick", Params: "left"},
		{Name: "say", Kind: "type_text", Params: `"quoted"`},
	}}

	ids, err := Import(store, m)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if len(ids) != 3 || !(ids[0] < ids[1] && ids[1] < ids[2]) {
		t.Fatalf("expected three ascending ids, got %v", ids)
	}

	actions, err := store.ListActions()
	if err != nil {
		t.Fatalf("ListActions: %v", err)
	}
	if actions[1].Name != "double_click" || actions[1].Kind != models.KindDoubleClick {
		t.Errorf("alias kind should be canonicalised, got %+v", actions[1])
	}

	out := filepath.Join(t.TempDir(), "export.yaml")
	if err := Write(out, FromActions("demo", actions)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	back, err := Load(out)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	want := []Entry{
		{Name: "go", Kind: "move", Params: "10,20"},
		{Name: "double_click", Kind: "double_click", Params: "left"},
		{Name: "say", Kind: "type_text", Params: `"quoted"`},
	}
	if !reflect.DeepEqual(back.Actions, want) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", back.Actions, want)
	}
}

func TestFromActionsNormalisesLegacyLabels(t *testing.T) {
	m := FromActions("legacy", []models.Action{{ID: 1, Name: "old", Kind: models.Kind("移动"), Parameters: "1,2"}})
	if m.Actions[0].Kind != "move" {
		t.Fatalf("expected legacy label to map to move, got %q", m.Actions[0].Kind)
	}
}
