package luaplugin

import (
	"github.com/rs/zerolog"
	lua "github.com/yuin/gopher-lua"
)

// newState creates a Lua state with only the safe standard libraries and
// the plugin APIs installed.
func newState(log zerolog.Logger, httpAPI *HTTPAPI) *lua.LState {
	L := lua.NewState(lua.Options{
		SkipOpenLibs: true,
	})

	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	// No file or code loading from inside a plugin.
	L.SetGlobal("dofile", lua.LNil)
	L.SetGlobal("loadfile", lua.LNil)
	L.SetGlobal("load", lua.LNil)
	L.SetGlobal("loadstring", lua.LNil)
	L.SetGlobal("collectgarbage", lua.LNil)

	NewUtilsAPI(log).Register(L)
	NewHTMLAPI().Register(L)
	httpAPI.Register(L)
	return L
}
