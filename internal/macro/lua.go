package macro

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/loveplay1983/pydirector-cn/internal/models"
)

// Runtime evaluates Lua macro scripts in a sandboxed environment. Scripts
// build the action list by calling action() or one of the kind helpers.
type Runtime struct {
	entries []Entry
	logs    []string
}

func NewRuntime() *Runtime {
	return &Runtime{}
}

// Execute runs the script at scriptPath and returns the macro it built.
func (r *Runtime) Execute(scriptPath string) (*Macro, error) {
	script, err := os.ReadFile(scriptPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}

	m, err := r.ExecuteString(string(script))
	if err != nil {
		return nil, err
	}
	if m.Name == "" {
		m.Name = strings.TrimSuffix(filepath.Base(scriptPath), filepath.Ext(scriptPath))
	}
	return m, nil
}

// ExecuteString runs script source directly.
func (r *Runtime) ExecuteString(script string) (*Macro, error) {
	r.entries = nil
	r.logs = nil

	L := lua.NewState(lua.Options{
		SkipOpenLibs: true,
	})
	defer L.Close()

	r.openSafeLibs(L)
	r.registerAPI(L)

	if err := L.DoString(script); err != nil {
		return nil, fmt.Errorf("macro script failed: %w", err)
	}

	m := &Macro{
		Name:        globalString(L, "name"),
		Description: globalString(L, "description"),
		Actions:     r.entries,
		Logs:        r.logs,
	}
	return m, nil
}

// Logs returns messages passed to log() during the last execution.
func (r *Runtime) Logs() []string {
	return r.logs
}

// openSafeLibs loads base, table, string and math with file access and
// dynamic loading removed.
func (r *Runtime) openSafeLibs(L *lua.LState) {
	lua.OpenBase(L)

	L.SetGlobal("loadfile", lua.LNil)
	L.SetGlobal("dofile", lua.LNil)
	L.SetGlobal("load", lua.LNil)
	L.SetGlobal("loadstring", lua.LNil)
	L.SetGlobal("print", lua.LNil)
	L.SetGlobal("require", lua.LNil)
	L.SetGlobal("module", lua.LNil)

	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
}

func (r *Runtime) registerAPI(L *lua.LState) {
	L.SetGlobal("action", L.NewFunction(r.luaAction))
	L.SetGlobal("log", L.NewFunction(r.luaLog))

	L.SetGlobal("move", L.NewFunction(r.pointHelper(models.KindMove)))
	L.SetGlobal("drag", L.NewFunction(r.pointHelper(models.KindDrag)))
	L.SetGlobal("click", L.NewFunction(r.buttonHelper(models.KindClick)))
	L.SetGlobal("double_click", L.NewFunction(r.buttonHelper(models.KindDoubleClick)))
	L.SetGlobal("right_click", L.NewFunction(r.luaRightClick))
	L.SetGlobal("hotkey", L.NewFunction(r.luaHotkey))
	L.SetGlobal("type_text", L.NewFunction(r.luaTypeText))
	L.SetGlobal("wait", L.NewFunction(r.luaWait))
	L.SetGlobal("scroll", L.NewFunction(r.luaScroll))
	L.SetGlobal("screenshot", L.NewFunction(r.luaScreenshot))
	L.SetGlobal("key", L.NewFunction(r.luaKey))
}

func (r *Runtime) add(name string, kind models.Kind, params string) {
	if name == "" {
		name = strings.TrimSpace(string(kind) + " " + params)
	}
	r.entries = append(r.entries, Entry{Name: name, Kind: string(kind), Params: params})
}

// luaAction implements action(name, kind, params?).
func (r *Runtime) luaAction(L *lua.LState) int {
	name := L.CheckString(1)
	kind, err := models.ParseKind(L.CheckString(2))
	if err != nil {
		L.ArgError(2, err.Error())
		return 0
	}

	params := ""
	if v := L.Get(3); v != lua.LNil {
		params = lua.LVAsString(v)
	}

	r.add(name, kind, params)
	return 0
}

func (r *Runtime) pointHelper(kind models.Kind) lua.LGFunction {
	return func(L *lua.LState) int {
		x := L.CheckInt(1)
		y := L.CheckInt(2)
		r.add(L.OptString(3, ""), kind, fmt.Sprintf("%d,%d", x, y))
		return 0
	}
}

func (r *Runtime) buttonHelper(kind models.Kind) lua.LGFunction {
	return func(L *lua.LState) int {
		button := L.OptString(1, "left")
		r.add(L.OptString(2, ""), kind, button)
		return 0
	}
}

func (r *Runtime) luaRightClick(L *lua.LState) int {
	r.add(L.OptString(1, ""), models.KindRightClick, "")
	return 0
}

// luaHotkey implements hotkey(k1, k2, ...).
func (r *Runtime) luaHotkey(L *lua.LState) int {
	n := L.GetTop()
	if n == 0 {
		L.ArgError(1, "hotkey needs at least one key")
		return 0
	}

	keys := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		keys = append(keys, L.CheckString(i))
	}
	r.add("", models.KindHotkey, strings.Join(keys, ","))
	return 0
}

func (r *Runtime) luaTypeText(L *lua.LState) int {
	text := L.CheckString(1)
	r.add(L.OptString(2, ""), models.KindTypeText, text)
	return 0
}

func (r *Runtime) luaWait(L *lua.LState) int {
	seconds := float64(L.CheckNumber(1))
	r.add(L.OptString(2, ""), models.KindWait, strconv.FormatFloat(seconds, 'f', -1, 64))
	return 0
}

func (r *Runtime) luaScroll(L *lua.LState) int {
	r.add(L.OptString(2, ""), models.KindScroll, strconv.Itoa(L.CheckInt(1)))
	return 0
}

// luaScreenshot implements screenshot() and screenshot(x, y, w, h).
func (r *Runtime) luaScreenshot(L *lua.LState) int {
	if L.GetTop() == 0 {
		r.add("", models.KindScreenshot, "")
		return 0
	}

	x, y, w, h := L.CheckInt(1), L.CheckInt(2), L.CheckInt(3), L.CheckInt(4)
	r.add("", models.KindScreenshot, fmt.Sprintf("%d,%d,%d,%d", x, y, w, h))
	return 0
}

func (r *Runtime) luaKey(L *lua.LState) int {
	r.add(L.OptString(2, ""), models.KindKeyPress, L.CheckString(1))
	return 0
}

func (r *Runtime) luaLog(L *lua.LState) int {
	r.logs = append(r.logs, L.CheckString(1))
	return 0
}

func globalString(L *lua.LState, name string) string {
	if s, ok := L.GetGlobal(name).(lua.LString); ok {
		return string(s)
	}
	return ""
}

// IsLuaScript reports whether path names a Lua macro.
func IsLuaScript(path string) bool {
	return filepath.Ext(path) == ".lua"
}
