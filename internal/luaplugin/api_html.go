package luaplugin

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	lua "github.com/yuin/gopher-lua"
)

// HTMLAPI lets plugins pick values out of HTML pages with CSS selectors.
type HTMLAPI struct{}

func NewHTMLAPI() *HTMLAPI {
	return &HTMLAPI{}
}

// Register adds the html module to the Lua state.
func (h *HTMLAPI) Register(L *lua.LState) {
	mod := L.NewTable()
	mod.RawSetString("select", L.NewFunction(h.selectFn))
	mod.RawSetString("attr", L.NewFunction(h.attrFn))
	L.SetGlobal("html", mod)
}

// selectFn returns a list of {text=, html=, attrs={}} for every match.
func (h *HTMLAPI) selectFn(L *lua.LState) int {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(L.CheckString(1)))
	if err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}

	out := L.NewTable()
	doc.Find(L.CheckString(2)).Each(func(i int, s *goquery.Selection) {
		item := L.NewTable()
		item.RawSetString("text", lua.LString(strings.TrimSpace(s.Text())))
		if inner, err := s.Html(); err == nil {
			item.RawSetString("html", lua.LString(inner))
		}
		attrs := L.NewTable()
		if node := s.Get(0); node != nil {
			for _, a := range node.Attr {
				attrs.RawSetString(a.Key, lua.LString(a.Val))
			}
		}
		item.RawSetString("attrs", attrs)
		out.Append(item)
	})

	L.Push(out)
	return 1
}

// attrFn returns the named attribute of the first match, or nil.
func (h *HTMLAPI) attrFn(L *lua.LState) int {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(L.CheckString(1)))
	if err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	val, ok := doc.Find(L.CheckString(2)).First().Attr(L.CheckString(3))
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LString(val))
	return 1
}
