package luaplugin

import (
	"errors"
	"fmt"
	"math"

	lua "github.com/yuin/gopher-lua"
)

// MaxTableDepth limits how deeply nested a table handed back to Go may be.
const MaxTableDepth = 64

var errTableCycle = errors.New("table refers to itself")

// luaToGo converts a Lua value to a Go value. Tables whose keys are positive
// integers dense enough to fill at least half of a slice become slices,
// everything else becomes a map. Cyclic or too deeply nested tables are
// rejected.
func luaToGo(val lua.LValue) (any, error) {
	return convertValue(val, make(map[*lua.LTable]bool), 0)
}

// visiting holds the tables on the current path only, so a table shared by
// two fields converts fine.
func convertValue(val lua.LValue, visiting map[*lua.LTable]bool, depth int) (any, error) {
	switch v := val.(type) {
	case lua.LBool:
		return bool(v), nil
	case lua.LNumber:
		f := float64(v)
		if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			return int64(f), nil
		}
		return f, nil
	case lua.LString:
		return string(v), nil
	case *lua.LTable:
		if visiting[v] {
			return nil, errTableCycle
		}
		if depth >= MaxTableDepth {
			return nil, fmt.Errorf("table nested deeper than %d levels", MaxTableDepth)
		}
		visiting[v] = true
		defer delete(visiting, v)
		return convertTable(v, visiting, depth+1)
	default:
		return nil, nil
	}
}

func convertTable(v *lua.LTable, visiting map[*lua.LTable]bool, depth int) (any, error) {
	count, maxIndex := 0, 0
	isArray := true
	v.ForEach(func(k, _ lua.LValue) {
		count++
		num, ok := k.(lua.LNumber)
		f := float64(num)
		if !ok || f != math.Trunc(f) || f < 1 || f > math.MaxInt32 {
			isArray = false
			return
		}
		if int(f) > maxIndex {
			maxIndex = int(f)
		}
	})

	var err error
	if isArray && maxIndex > 0 && maxIndex <= 2*count {
		arr := make([]any, maxIndex)
		v.ForEach(func(k, item lua.LValue) {
			if err != nil {
				return
			}
			arr[int(k.(lua.LNumber))-1], err = convertValue(item, visiting, depth)
		})
		return arr, err
	}

	m := make(map[string]any, count)
	v.ForEach(func(k, item lua.LValue) {
		if err != nil {
			return
		}
		m[k.String()], err = convertValue(item, visiting, depth)
	})
	return m, err
}

// goToLua converts decoded JSON-like Go values to Lua values.
func goToLua(L *lua.LState, val any) lua.LValue {
	switch v := val.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(v)
	case float64:
		return lua.LNumber(v)
	case int:
		return lua.LNumber(v)
	case int64:
		return lua.LNumber(v)
	case string:
		return lua.LString(v)
	case []any:
		tbl := L.NewTable()
		for i, item := range v {
			tbl.RawSetInt(i+1, goToLua(L, item))
		}
		return tbl
	case map[string]any:
		tbl := L.NewTable()
		for k, item := range v {
			tbl.RawSetString(k, goToLua(L, item))
		}
		return tbl
	case map[string]string:
		tbl := L.NewTable()
		for k, item := range v {
			tbl.RawSetString(k, lua.LString(item))
		}
		return tbl
	default:
		return lua.LNil
	}
}
