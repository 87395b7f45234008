package luaplugin

import (
	"context"
	"strings"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"
	"resty.dev/v3"
)

const (
	// HTTPTimeout is the default timeout for plugin HTTP requests.
	HTTPTimeout = 30 * time.Second
	// HTTPMaxResponseSize is the largest response body handed to a plugin (10MB).
	HTTPMaxResponseSize = 10 * 1024 * 1024
)

// HTTPAPI gives plugins an HTTP client. Plugins that take a proxy create
// their own client with http.client{proxy = proxy}.
type HTTPAPI struct {
	userAgent string

	mu      sync.Mutex
	clients []*resty.Client
}

func NewHTTPAPI(userAgent string) *HTTPAPI {
	return &HTTPAPI{userAgent: userAgent}
}

// Register adds the http module to the Lua state.
func (h *HTTPAPI) Register(L *lua.LState) {
	mod := h.clientTable(L, h.newClient("", HTTPTimeout))
	mod.RawSetString("client", L.NewFunction(h.clientFn))
	L.SetGlobal("http", mod)
}

// Close releases every client created for this state.
func (h *HTTPAPI) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.clients {
		c.Close()
	}
	h.clients = nil
}

func (h *HTTPAPI) newClient(proxy string, timeout time.Duration) *resty.Client {
	c := resty.New().
		SetTimeout(timeout).
		SetResponseBodyLimit(HTTPMaxResponseSize)
	if h.userAgent != "" {
		c.SetHeader("User-Agent", h.userAgent)
	}
	if proxy != "" {
		c.SetProxy(proxy)
	}

	h.mu.Lock()
	h.clients = append(h.clients, c)
	h.mu.Unlock()
	return c
}

// clientFn implements http.client{proxy = "...", timeout = seconds}.
func (h *HTTPAPI) clientFn(L *lua.LState) int {
	opts := L.OptTable(1, L.NewTable())
	proxy := ""
	if v, ok := opts.RawGetString("proxy").(lua.LString); ok {
		proxy = string(v)
	}
	timeout := HTTPTimeout
	if v, ok := opts.RawGetString("timeout").(lua.LNumber); ok && v > 0 {
		timeout = time.Duration(float64(v) * float64(time.Second))
	}
	L.Push(h.clientTable(L, h.newClient(proxy, timeout)))
	return 1
}

func (h *HTTPAPI) clientTable(L *lua.LState, c *resty.Client) *lua.LTable {
	tbl := L.NewTable()
	for _, method := range []string{"GET", "POST", "PUT", "PATCH", "DELETE"} {
		tbl.RawSetString(strings.ToLower(method), L.NewFunction(makeRequest(c, method)))
	}
	return tbl
}

// makeRequest returns a Lua function (url, opts) -> response | nil, err.
// opts may carry body (string or table, tables are sent as JSON), headers
// and query.
func makeRequest(c *resty.Client, method string) lua.LGFunction {
	return func(L *lua.LState) int {
		url := L.CheckString(1)

		ctx := L.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		req := c.R().SetContext(ctx)

		if L.GetTop() >= 2 {
			if opts, ok := L.Get(2).(*lua.LTable); ok {
				switch body := opts.RawGetString("body").(type) {
				case lua.LString:
					req.SetBody(string(body))
				case *lua.LTable:
					goVal, err := luaToGo(body)
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
					req.SetHeader("Content-Type", "application/json")
					req.SetBody(data)
				}
				if headers, ok := opts.RawGetString("headers").(*lua.LTable); ok {
					headers.ForEach(func(k, v lua.LValue) {
						req.SetHeader(k.String(), v.String())
					})
				}
				if query, ok := opts.RawGetString("query").(*lua.LTable); ok {
					query.ForEach(func(k, v lua.LValue) {
						req.SetQueryParam(k.String(), v.String())
					})
				}
			}
		}

		resp, err := req.Execute(method, url)
		if err != nil {
			L.Push(lua.LNil)
			L.Push(lua.LString(err.Error()))
			return 2
		}

		result := L.NewTable()
		result.RawSetString("status", lua.LNumber(resp.StatusCode()))
		result.RawSetString("body", lua.LString(resp.String()))

		respHeaders := L.NewTable()
		for k, v := range resp.Header() {
			if len(v) > 0 {
				respHeaders.RawSetString(k, lua.LString(v[0]))
			}
		}
		result.RawSetString("headers", respHeaders)

		L.Push(result)
		return 1
	}
}
