package luaplugin

import (
	"encoding/base64"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"
	lua "github.com/yuin/gopher-lua"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// MaxSleep caps a single sleep() call from plugin code.
const MaxSleep = 60 * time.Second

// UtilsAPI provides log, json, base64 and sleep to plugins.
type UtilsAPI struct {
	log zerolog.Logger
}

func NewUtilsAPI(log zerolog.Logger) *UtilsAPI {
	return &UtilsAPI{log: log}
}

// Register adds the utility globals to the Lua state.
func (u *UtilsAPI) Register(L *lua.LState) {
	L.SetGlobal("log", L.NewFunction(u.logFn))
	L.SetGlobal("print", L.NewFunction(u.printFn))
	L.SetGlobal("sleep", L.NewFunction(u.sleepFn))

	jsonMod := L.NewTable()
	jsonMod.RawSetString("encode", L.NewFunction(u.jsonEncode))
	jsonMod.RawSetString("decode", L.NewFunction(u.jsonDecode))
	L.SetGlobal("json", jsonMod)

	b64Mod := L.NewTable()
	b64Mod.RawSetString("encode", L.NewFunction(u.base64Encode))
	b64Mod.RawSetString("decode", L.NewFunction(u.base64Decode))
	L.SetGlobal("base64", b64Mod)
}

func (u *UtilsAPI) logFn(L *lua.LState) int {
	u.log.Info().Msg(L.CheckString(1))
	return 0
}

func (u *UtilsAPI) printFn(L *lua.LState) int {
	parts := make([]string, 0, L.GetTop())
	for i := 1; i <= L.GetTop(); i++ {
		parts = append(parts, L.Get(i).String())
	}
	u.log.Debug().Msg(strings.Join(parts, "\t"))
	return 0
}

// sleepFn blocks for the given number of seconds or until the dispatch
// context is done, whichever comes first.
func (u *UtilsAPI) sleepFn(L *lua.LState) int {
	d := time.Duration(float64(L.CheckNumber(1)) * float64(time.Second))
	if d > MaxSleep {
		d = MaxSleep
	}
	if d <= 0 {
		return 0
	}
	t := time.NewTimer(d)
	defer t.Stop()
	ctx := L.Context()
	if ctx == nil {
		<-t.C
		return 0
	}
	select {
	case <-t.C:
	case <-ctx.Done():
		L.RaiseError("sleep interrupted: %v", ctx.Err())
	}
	return 0
}

func (u *UtilsAPI) jsonEncode(L *lua.LState) int {
	goVal, err := luaToGo(L.Get(1))
	if err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	data, err := json.Marshal(goVal)
	if err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	L.Push(lua.LString(string(data)))
	return 1
}

func (u *UtilsAPI) jsonDecode(L *lua.LState) int {
	var goVal any
	if err := json.Unmarshal([]byte(L.CheckString(1)), &goVal); err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	L.Push(goToLua(L, goVal))
	return 1
}

func (u *UtilsAPI) base64Encode(L *lua.LState) int {
	L.Push(lua.LString(base64.StdEncoding.EncodeToString([]byte(L.CheckString(1)))))
	return 1
}

func (u *UtilsAPI) base64Decode(L *lua.LState) int {
	data, err := base64.StdEncoding.DecodeString(L.CheckString(1))
	if err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	L.Push(lua.LString(string(data)))
	return 1
}
