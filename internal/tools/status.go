package tools

import (
	"context"
	"fmt"
	"time"
)

// StatusTool reports uptime and the plugin cache state.
type StatusTool struct {
	d       Dispatcher
	m       Maintainer
	started time.Time
}

func NewStatusTool(d Dispatcher, m Maintainer) *StatusTool {
	return &StatusTool{d: d, m: m, started: time.Now()}
}

func (s *StatusTool) Name() string { return "status" }

func (s *StatusTool) Description() string {
	return "Status bot dan cache plugin"
}

func (s *StatusTool) Execute(ctx context.Context, input string) (string, error) {
	return fmt.Sprintf("🟢 Bot aktif sejak %s (%s)\nTool: %d\nMode cache: %s\nModul di cache: %d",
		s.started.Format(time.DateTime),
		time.Since(s.started).Truncate(time.Second),
		len(s.d.ListTools()),
		s.m.CacheMode(),
		s.m.CachedModules(),
	), nil
}

// ReloadTool empties the plugin cache so edited plugins are picked up.
type ReloadTool struct {
	m Maintainer
}

func NewReloadTool(m Maintainer) *ReloadTool {
	return &ReloadTool{m: m}
}

func (r *ReloadTool) Name() string { return "reload" }

func (r *ReloadTool) Description() string {
	return "Muat ulang semua plugin"
}

func (r *ReloadTool) Execute(ctx context.Context, input string) (string, error) {
	n := r.m.Flush()
	return fmt.Sprintf("♻️ Cache plugin dikosongkan (%d modul).", n), nil
}
