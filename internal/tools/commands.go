package tools

import (
	"context"
	"time"

	"github.com/pyromancer/verifikator/internal/tools/base"
	"github.com/pyromancer/verifikator/internal/verifier"
)

// Dispatcher is the verification backend used by the commands.
type Dispatcher interface {
	ListTools() []string
	Verify(ctx context.Context, req verifier.Request) verifier.Result
}

// Maintainer is implemented by backends whose plugin cache can be inspected
// and emptied from the bot.
type Maintainer interface {
	CacheMode() verifier.CacheMode
	CachedModules() int
	Flush() int
}

// NewCommandSet returns every bot command keyed by name. The status and
// reload commands are only added when d is also a Maintainer.
func NewCommandSet(d Dispatcher, timeout time.Duration) map[string]base.Tool {
	set := make(map[string]base.Tool)
	for _, t := range []base.Tool{
		NewHelpTool("start", d),
		NewHelpTool("help", d),
		NewListTool(d),
		NewVerifyTool(d, timeout),
	} {
		set[t.Name()] = t
	}
	if m, ok := d.(Maintainer); ok {
		for _, t := range []base.Tool{NewStatusTool(d, m), NewReloadTool(m)} {
			set[t.Name()] = t
		}
	}
	return set
}
