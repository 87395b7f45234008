package luaplugin

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"

	"github.com/pyromancer/verifikator/internal/verifier"
)

// Loader compiles Lua plugin files. The compiled proto is immutable, so a
// cached module can be executed by many dispatches at once; each Exec gets
// its own LState.
type Loader struct {
	log       zerolog.Logger
	userAgent string
}

type LoaderOption func(*Loader)

func WithLogger(log zerolog.Logger) LoaderOption {
	return func(l *Loader) { l.log = log }
}

// WithUserAgent sets the User-Agent sent by the plugin http module.
func WithUserAgent(ua string) LoaderOption {
	return func(l *Loader) { l.userAgent = ua }
}

func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{log: zerolog.Nop(), userAgent: "verifikator"}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Loader) Load(src verifier.Source) (verifier.Module, error) {
	chunk, err := parse.Parse(bytes.NewReader(src.Code), src.Path)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", src.Path, err)
	}
	proto, err := lua.Compile(chunk, src.Path)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", src.Path, err)
	}
	return &module{proto: proto, loader: l}, nil
}

type module struct {
	proto  *lua.FunctionProto
	loader *Loader
}

func (m *module) Exec(ctx context.Context, namespace string) (verifier.Namespace, error) {
	log := m.loader.log.With().Str("plugin", namespace).Logger()
	httpAPI := NewHTTPAPI(m.loader.userAgent)
	L := newState(log, httpAPI)
	L.SetContext(ctx)
	L.SetGlobal("__name__", lua.LString(namespace))

	ns := &pluginState{L: L, name: namespace, http: httpAPI}

	L.Push(L.NewFunctionFromProto(m.proto))
	if err := L.PCall(0, lua.MultRet, nil); err != nil {
		ns.Close()
		return nil, scriptError(ctx, "load", err)
	}
	L.SetTop(0)
	return ns, nil
}

// pluginState is one executed copy of a plugin file.
type pluginState struct {
	L    *lua.LState
	name string
	http *HTTPAPI
}

// Lookup finds the entry global. It may be a constructor function or a
// table with a new function.
func (n *pluginState) Lookup(entry string) (verifier.Factory, error) {
	switch v := n.L.GetGlobal(entry).(type) {
	case *lua.LFunction:
		return &factory{ns: n, ctor: v}, nil
	case *lua.LTable:
		ctor, ok := n.L.GetField(v, "new").(*lua.LFunction)
		if !ok {
			return nil, fmt.Errorf("%s: entry %s has no new function", n.name, entry)
		}
		return &factory{ns: n, ctor: ctor, class: v}, nil
	default:
		return nil, fmt.Errorf("%s: entry %s not defined", n.name, entry)
	}
}

func (n *pluginState) Close() {
	n.http.Close()
	n.L.Close()
}

type factory struct {
	ns    *pluginState
	ctor  *lua.LFunction
	class *lua.LTable
}

// AcceptsProxy honors an explicit accepts_proxy flag on the entry table and
// otherwise looks for a parameter named proxy on the constructor.
func (f *factory) AcceptsProxy() bool {
	if f.class != nil {
		if flag, ok := f.class.RawGetString("accepts_proxy").(lua.LBool); ok {
			return bool(flag)
		}
	}
	for _, name := range paramNames(f.ctor) {
		if name == "proxy" {
			return true
		}
	}
	return false
}

func (f *factory) New(ctx context.Context, url string, proxy *string) (verifier.Instance, error) {
	var args []lua.LValue
	params := paramNames(f.ctor)
	if len(params) > 0 && params[0] == "self" && f.class != nil {
		args = append(args, f.class)
	}
	args = append(args, lua.LString(url))
	if f.AcceptsProxy() {
		if proxy != nil {
			args = append(args, lua.LString(*proxy))
		} else {
			args = append(args, lua.LNil)
		}
	}

	L := f.ns.L
	if err := L.CallByParam(lua.P{Fn: f.ctor, NRet: 1, Protect: true}, args...); err != nil {
		return nil, scriptError(ctx, "constructor", err)
	}
	obj := L.Get(-1)
	L.Pop(1)

	tbl, ok := obj.(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("%s: constructor returned %s, not an object", f.ns.name, obj.Type())
	}
	inst := &instance{ns: f.ns, obj: tbl}
	if _, ok := L.GetField(tbl, "check_link").(*lua.LFunction); ok {
		return &checkingInstance{instance: inst}, nil
	}
	return inst, nil
}

// paramNames returns the declared parameter names of a Lua function.
// Go functions have none that can be read.
func paramNames(fn *lua.LFunction) []string {
	if fn == nil || fn.IsG || fn.Proto == nil {
		return nil
	}
	n := int(fn.Proto.NumParameters)
	if n > len(fn.Proto.DbgLocals) {
		n = len(fn.Proto.DbgLocals)
	}
	names := make([]string, 0, n)
	for _, local := range fn.Proto.DbgLocals[:n] {
		names = append(names, local.Name)
	}
	return names
}

type instance struct {
	ns  *pluginState
	obj *lua.LTable
}

func (i *instance) call(ctx context.Context, method string) (lua.LValue, error) {
	L := i.ns.L
	fn, ok := L.GetField(i.obj, method).(*lua.LFunction)
	if !ok {
		return nil, fmt.Errorf("%s: object has no %s method", i.ns.name, method)
	}
	if err := L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, i.obj); err != nil {
		return nil, scriptError(ctx, method, err)
	}
	ret := L.Get(-1)
	L.Pop(1)
	return ret, nil
}

func (i *instance) Verify(ctx context.Context) (any, error) {
	ret, err := i.call(ctx, "verify")
	if err != nil {
		return nil, err
	}
	payload, err := luaToGo(ret)
	if err != nil {
		return nil, fmt.Errorf("%s: verify result: %w", i.ns.name, err)
	}
	return payload, nil
}

type checkingInstance struct {
	*instance
}

// CheckLink rejects only on an explicit false. A nil return counts as
// "no objection".
func (c *checkingInstance) CheckLink(ctx context.Context) (bool, error) {
	ret, err := c.call(ctx, "check_link")
	if err != nil {
		return false, err
	}
	return ret != lua.LFalse, nil
}

// scriptError strips the Lua traceback from a script error so users see
// only the message raised by the plugin.
func scriptError(ctx context.Context, step string, err error) error {
	if ctx != nil && ctx.Err() != nil {
		return fmt.Errorf("%s interrupted: %w", step, ctx.Err())
	}
	var apiErr *lua.ApiError
	if errors.As(err, &apiErr) && apiErr.Object != nil {
		return &ScriptError{Message: apiErr.Object.String(), Trace: apiErr.StackTrace, cause: err}
	}
	return err
}

// ScriptError is an error raised by plugin code.
type ScriptError struct {
	Message string
	Trace   string
	cause   error
}

func (e *ScriptError) Error() string { return e.Message }

func (e *ScriptError) Unwrap() error { return e.cause }
