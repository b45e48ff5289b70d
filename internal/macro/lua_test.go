package macro

import (
	"reflect"
	"strings"
	"testing"
)

func TestLuaHelpersBuildActions(t *testing.T) {
	rt := NewRuntime()
	m, err := rt.ExecuteString(`
name = "checkout"
description = "fill the form"

move(100, 200, "to field")
click()
double_click("left")
right_click()
drag(300, 400)
hotkey("ctrl", "a")
type_text("{target}")
wait(2.5)
scroll(-3)
screenshot()
screenshot(0, 0, 640, 480)
key("enter")
action("raw", "等等", 1)
log("built " .. 13 .. " actions")
`)
	if err != nil {
		t.Fatalf("ExecuteString failed: %v", err)
	}

	if m.Name != "checkout" || m.Description != "fill the form" {
		t.Errorf("unexpected header: %q / %q", m.Name, m.Description)
	}

	want := []Entry{
		{Name: "to field", Kind: "move", Params: "100,200"},
		{Name: "click left", Kind: "click", Params: "left"},
		{Name: "double_click left", Kind: "double_click", Params: "left"},
		{Name: "right_click", Kind: "right_click", Params: ""},
		{Name: "drag 300,400", Kind: "drag", Params: "300,400"},
		{Name: "hotkey ctrl,a", Kind: "hotkey", Params: "ctrl,a"},
		{Name: "type_text {target}", Kind: "type_text", Params: "{target}"},
		{Name: "wait 2.5", Kind: "wait", Params: "2.5"},
		{Name: "scroll -3", Kind: "scroll", Params: "-3"},
		{Name: "screenshot", Kind: "screenshot", Params: ""},
		{Name: "screenshot 0,0,640,480", Kind: "screenshot", Params: "0,0,640,480"},
		{Name: "key_press enter", Kind: "key_press", Params: "enter"},
		{Name: "raw", Kind: "wait", Params: "1"},
	}
	if !reflect.DeepEqual(m.Actions, want) {
		t.Fatalf("actions mismatch:\n got %+v\nwant %+v", m.Actions, want)
	}

	if logs := rt.Logs(); len(logs) != 1 || logs[0] != "built 13 actions" {
		t.Errorf("unexpected logs: %v", logs)
	}
	if !reflect.DeepEqual(m.Logs, rt.Logs()) {
		t.Errorf("macro should carry script logs, got %v", m.Logs)
	}
	if err := Validate(m); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLuaSandbox(t *testing.T) {
	for _, script := range []string{
		`dofile("/etc/passwd")`,
		`os.execute("true")`,
		`io.open("x", "w")`,
		`require("os")`,
	} {
		if _, err := NewRuntime().ExecuteString(script); err == nil {
			t.Errorf("expected %q to fail in sandbox", script)
		}
	}
}

func TestLuaUnknownKind(t *testing.T) {
	_, err := NewRuntime().ExecuteString(`action("x", "teleport", "")`)
	if err == nil || !strings.Contains(err.Error(), "unknown") {
		t.Fatalf("expected unknown kind error, got %v", err)
	}
}

func TestLoadLuaFileUsesStemAsName(t *testing.T) {
	path := writeFile(t, "nightly.lua", `wait(1) log("ready")`)
	m, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if m.Name != "nightly" || len(m.Actions) != 1 {
		t.Fatalf("unexpected macro: %+v", m)
	}
	if len(m.Logs) != 1 || m.Logs[0] != "ready" {
		t.Fatalf("Load dropped script logs: %v", m.Logs)
	}
}
