package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"slices"

	lua "github.com/yuin/gopher-lua"
	"go.trai.ch/rootconf/internal/core/domain"
	"go.trai.ch/rootconf/internal/core/session"
	"go.trai.ch/zerr"
)

// luaLibs are the only standard libraries opened in a config state.
var luaLibs = []struct {
	name string
	open lua.LGFunction
}{
	{lua.BaseLibName, lua.OpenBase},
	{lua.TabLibName, lua.OpenTable},
	{lua.StringLibName, lua.OpenString},
	{lua.MathLibName, lua.OpenMath},
}

// luaUnsafeGlobals are base library functions that reach the filesystem.
var luaUnsafeGlobals = []string{"dofile", "loadfile", "load", "loadstring", "require"}

// Lua returns the executor for .lua files. Each file runs in a fresh sandboxed
// state exposing the project table and the config.set / config.get functions.
// A table returned by the chunk is merged into the session data.
func (x *Executors) Lua() session.Executor {
	return session.ExecutorFunc(x.applyLua)
}

func (x *Executors) applyLua(ctx context.Context, s *session.Session, path string) error {
	entry, err := x.read(s, path)
	if err != nil {
		return err
	}

	L := newLuaState(ctx, s)
	defer L.Close()

	fn, err := L.Load(bytes.NewReader(entry.Content), path)
	if err != nil {
		return zerr.With(domain.Wrap(err, domain.ErrLuaFailed), "path", path)
	}
	top := L.GetTop()
	L.Push(fn)
	if err := L.PCall(0, lua.MultRet, nil); err != nil {
		return zerr.With(domain.Wrap(err, domain.ErrLuaFailed), "path", path)
	}
	if L.GetTop() <= top {
		return nil
	}

	switch ret := L.Get(top + 1).(type) {
	case *lua.LTable:
		m, ok := fromLua(ret).(map[string]any)
		if !ok {
			return domain.With(domain.ErrNotAnObject, "path", path)
		}
		s.Data().Merge(m)
	case *lua.LNilType:
	default:
		return zerr.With(domain.With(domain.ErrNotAnObject, "path", path), "type", ret.Type().String())
	}
	return nil
}

func newLuaState(ctx context.Context, s *session.Session) *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	L.SetContext(ctx)

	for _, lib := range luaLibs {
		L.Push(L.NewFunction(lib.open))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}
	for _, name := range luaUnsafeGlobals {
		L.SetGlobal(name, lua.LNil)
	}

	configDir, _ := s.ConfigDir()
	project := L.NewTable()
	L.SetField(project, "root", lua.LString(s.Root()))
	L.SetField(project, "name", lua.LString(s.ProjectName()))
	L.SetField(project, "config_dir", lua.LString(configDir))
	L.SetGlobal("project", project)

	config := L.NewTable()
	L.SetFuncs(config, map[string]lua.LGFunction{
		"set": func(L *lua.LState) int {
			s.Data().SetDotted(L.CheckString(1), fromLua(L.CheckAny(2)))
			return 0
		},
		"get": func(L *lua.LState) int {
			v, ok := s.Data().GetDotted(L.CheckString(1))
			if !ok {
				L.Push(lua.LNil)
				return 1
			}
			L.Push(toLua(L, v))
			return 1
		},
	})
	L.SetGlobal("config", config)
	return L
}

// fromLua converts a Lua value to its plain Go form. Tables with keys 1..n
// become lists, other tables become objects. Functions and userdata become nil.
func fromLua(v lua.LValue) any {
	switch t := v.(type) {
	case lua.LBool:
		return bool(t)
	case lua.LNumber:
		return float64(t)
	case lua.LString:
		return string(t)
	case *lua.LTable:
		return fromLuaTable(t)
	default:
		return nil
	}
}

func fromLuaTable(t *lua.LTable) any {
	count := 0
	t.ForEach(func(lua.LValue, lua.LValue) { count++ })

	if n := t.MaxN(); n > 0 && n == count {
		list := make([]any, n)
		for i := 1; i <= n; i++ {
			list[i-1] = fromLua(t.RawGetInt(i))
		}
		return list
	}

	m := make(map[string]any, count)
	t.ForEach(func(k, v lua.LValue) {
		m[k.String()] = fromLua(v)
	})
	return m
}

func toLua(L *lua.LState, v any) lua.LValue {
	switch t := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(t)
	case float64:
		return lua.LNumber(t)
	case int:
		return lua.LNumber(t)
	case int64:
		return lua.LNumber(t)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return lua.LString(t.String())
		}
		return lua.LNumber(f)
	case string:
		return lua.LString(t)
	case []any:
		tbl := L.NewTable()
		for _, e := range t {
			tbl.Append(toLua(L, e))
		}
		return tbl
	case map[string]any:
		tbl := L.NewTable()
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			tbl.RawSetString(k, toLua(L, t[k]))
		}
		return tbl
	default:
		return lua.LNil
	}
}
