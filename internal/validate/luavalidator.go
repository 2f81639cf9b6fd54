package validate

import (
	"fmt"
	"sort"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// LuaValidator runs a single Lua predicate function against a component's
// override table. The function receives one table argument (the overrides,
// keyed the same as the Go map) and must return two values: a boolean ok,
// and either nil or a table of string error messages.
//
// One VM per LuaValidator; it is not safe for concurrent use from multiple
// goroutines.
type LuaValidator struct {
	vm     *lua.LState
	fnName string
	log    *zap.Logger
}

// NewLuaValidator loads source (a Lua chunk defining fnName) into a fresh
// VM dedicated to this validator.
func NewLuaValidator(source, fnName string, log *zap.Logger) (*LuaValidator, error) {
	vm := lua.NewState(lua.Options{SkipOpenLibs: false})
	if err := vm.DoString(source); err != nil {
		vm.Close()
		return nil, fmt.Errorf("load validator script: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &LuaValidator{vm: vm, fnName: fnName, log: log}, nil
}

// Close releases the underlying Lua VM.
func (v *LuaValidator) Close() { v.vm.Close() }

// Validate marshals overrides into a Lua table, calls fnName, and unpacks
// the (ok, errs) result.
func (v *LuaValidator) Validate(overrides map[string]any) (bool, []string) {
	fn := v.vm.GetGlobal(v.fnName)
	if fn == lua.LNil {
		v.log.Error("lua validator function not found", zap.String("fn", v.fnName))
		return false, []string{"validator function not found: " + v.fnName}
	}

	t := v.vm.NewTable()
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		t.RawSetString(k, toLuaValue(v.vm, overrides[k]))
	}

	if err := v.vm.CallByParam(lua.P{Fn: fn, NRet: 2, Protect: true}, t); err != nil {
		v.log.Error("lua validator call error", zap.Error(err))
		return false, []string{err.Error()}
	}

	errsVal := v.vm.Get(-1)
	okVal := v.vm.Get(-2)
	v.vm.Pop(2)

	ok := okVal == lua.LTrue
	if ok {
		return true, nil
	}
	var errs []string
	if tbl, isTable := errsVal.(*lua.LTable); isTable {
		tbl.ForEach(func(_, value lua.LValue) {
			errs = append(errs, value.String())
		})
	} else if errsVal != lua.LNil {
		errs = append(errs, errsVal.String())
	}
	return false, errs
}

func toLuaValue(vm *lua.LState, v any) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(val)
	case string:
		return lua.LString(val)
	case float64:
		return lua.LNumber(val)
	case int:
		return lua.LNumber(val)
	case []float64:
		t := vm.NewTable()
		for i, f := range val {
			t.RawSetInt(i+1, lua.LNumber(f))
		}
		return t
	default:
		return lua.LNil
	}
}
