package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/criticalpoint/syncbridge/internal/dispatch"
	"github.com/criticalpoint/syncbridge/internal/fault"
	"github.com/criticalpoint/syncbridge/internal/generation"
	"github.com/criticalpoint/syncbridge/internal/id"
	"github.com/criticalpoint/syncbridge/internal/model"
)

// Engine wraps a single gopher-lua VM running factory scripts.
// Single-goroutine access only (tick loop).
type Engine struct {
	vm  *lua.LState
	log *zap.Logger
}

// NewEngine creates a Lua engine and loads every script in scriptsDir, then
// the ones in its factories subdirectory.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})

	vm.SetGlobal("API_VERSION", lua.LNumber(1))
	vm.SetGlobal("factories", vm.NewTable())
	openPayloadLib(vm)

	e := &Engine{vm: vm, log: log}

	for _, dir := range []string{scriptsDir, filepath.Join(scriptsDir, "factories")} {
		if err := e.loadDir(dir); err != nil {
			vm.Close()
			return nil, fmt.Errorf("load scripts: %w", err)
		}
	}
	return e, nil
}

// loadDir loads all .lua files in a directory, in name order.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// DoString runs a chunk in the engine's VM.
func (e *Engine) DoString(src string) error {
	return e.vm.DoString(src)
}

// scripted is one entry of the factories table. An entry is either a
// function or a table {size = n, build = function}; size is how many
// payload bytes the function receives.
type scripted struct {
	class id.ClassTag
	fn    *lua.LFunction
	size  int
}

// Factories lists the scripted factories, ordered by class.
func (e *Engine) Factories() ([]id.ClassTag, error) {
	entries, err := e.entries()
	if err != nil {
		return nil, err
	}
	out := make([]id.ClassTag, len(entries))
	for i, s := range entries {
		out[i] = s.class
	}
	return out, nil
}

func (e *Engine) entries() ([]scripted, error) {
	tbl, ok := e.vm.GetGlobal("factories").(*lua.LTable)
	if !ok {
		return nil, fault.Configuration("scripting", "factories", "global factories is not a table")
	}

	var out []scripted
	var ferr error
	tbl.ForEach(func(k, v lua.LValue) {
		if ferr != nil {
			return
		}
		class, err := id.ParseClassTag(lua.LVAsString(k))
		if err != nil {
			ferr = fault.Configuration("scripting", "factories", "factory key %q: %v", k.String(), err)
			return
		}
		switch fv := v.(type) {
		case *lua.LFunction:
			out = append(out, scripted{class: class, fn: fv})
		case *lua.LTable:
			fn, ok := fv.RawGetString("build").(*lua.LFunction)
			if !ok {
				ferr = fault.Configuration("scripting", "factories", "factory %s has no build function", class)
				return
			}
			size := lInt(fv, "size")
			if size < 0 {
				ferr = fault.Configuration("scripting", "factories", "factory %s has negative size", class)
				return
			}
			out = append(out, scripted{class: class, fn: fn, size: size})
		default:
			ferr = fault.Configuration("scripting", "factories", "factory %s is a %s", class, v.Type())
		}
	})
	if ferr != nil {
		return nil, ferr
	}
	sort.Slice(out, func(i, j int) bool { return out[i].class < out[j].class })
	return out, nil
}

// RegisterFactories installs every scripted factory into d. A class that
// already has a factory is a configuration error.
func (e *Engine) RegisterFactories(d *dispatch.Dispatcher[model.Actor]) error {
	entries, err := e.entries()
	if err != nil {
		return err
	}
	for _, s := range entries {
		if err := d.Register(s.class, e.factory(s)); err != nil {
			return err
		}
		e.log.Info("scripted factory registered", zap.Stringer("class", s.class), zap.Int("payload_size", s.size))
	}
	return nil
}

// factory calls the script with an object table {id, class, payload}. A
// returned table becomes an Actor; nil or false means no representation.
// Script errors are logged and treated as no representation.
func (e *Engine) factory(s scripted) dispatch.Factory[model.Actor] {
	return func(gen *generation.Generation, p generation.Prop) (model.Actor, bool, error) {
		var payload []byte
		if s.size > 0 {
			b, err := gen.PropPayload(p, s.size)
			if err != nil {
				return model.Actor{}, false, err
			}
			payload = b
		}

		obj := e.vm.NewTable()
		obj.RawSetString("id", lua.LNumber(p.ObjectID))
		obj.RawSetString("class", lua.LString(p.Class.String()))
		obj.RawSetString("payload", lua.LString(payload))
		obj.RawSetString("generation", lua.LNumber(gen.Seq()))

		if err := e.vm.CallByParam(lua.P{
			Fn:      s.fn,
			NRet:    1,
			Protect: true,
		}, obj); err != nil {
			e.log.Error("lua factory error", zap.Stringer("class", s.class), zap.Error(err))
			return model.Actor{}, false, nil
		}

		result := e.vm.Get(-1)
		e.vm.Pop(1)

		rt, ok := result.(*lua.LTable)
		if !ok {
			if result != lua.LNil && result != lua.LFalse {
				e.log.Error("lua factory returned non-table", zap.Stringer("class", s.class), zap.String("type", result.Type().String()))
			}
			return model.Actor{}, false, nil
		}

		actor := model.Actor{
			ObjectID: p.ObjectID,
			Class:    p.Class,
			Name:     lStr(rt, "name"),
		}
		if attrs, ok := rt.RawGetString("attrs").(*lua.LTable); ok {
			actor.Attrs = toMap(attrs)
		}
		return actor, true, nil
	}
}

// --- Lua helpers ---

// lInt reads an integer field from a Lua table.
func lInt(t *lua.LTable, key string) int {
	return int(lua.LVAsNumber(t.RawGetString(key)))
}

// lStr reads a string field from a Lua table.
func lStr(t *lua.LTable, key string) string {
	return lua.LVAsString(t.RawGetString(key))
}

// toMap converts the string-keyed scalar fields of a table.
func toMap(t *lua.LTable) map[string]any {
	m := make(map[string]any)
	t.ForEach(func(k, v lua.LValue) {
		key, ok := k.(lua.LString)
		if !ok {
			return
		}
		switch lv := v.(type) {
		case lua.LNumber:
			m[string(key)] = float64(lv)
		case lua.LString:
			m[string(key)] = string(lv)
		case lua.LBool:
			m[string(key)] = bool(lv)
		}
	})
	return m
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.vm.Close()
}
