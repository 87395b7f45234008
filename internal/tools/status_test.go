package tools

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pyromancer/verifikator/internal/verifier"
)

type fakeMaintainer struct {
	*fakeDispatcher
	cached  int
	flushes int
}

func (f *fakeMaintainer) CacheMode() verifier.CacheMode { return verifier.CacheOnce }
func (f *fakeMaintainer) CachedModules() int            { return f.cached }
func (f *fakeMaintainer) Flush() int {
	f.flushes++
	n := f.cached
	f.cached = 0
	return n
}

func TestCommandSetWithMaintainer(t *testing.T) {
	set := NewCommandSet(&fakeMaintainer{fakeDispatcher: newFake()}, time.Minute)
	assert.Len(t, set, 6)
	assert.Contains(t, set, "status")
	assert.Contains(t, set, "reload")
}

func TestStatusTool(t *testing.T) {
	m := &fakeMaintainer{fakeDispatcher: newFake(), cached: 3}
	out, err := NewStatusTool(m, m).Execute(context.Background(), "")
	require.NoError(t, err)
	assert.Contains(t, out, "Tool: 6")
	assert.Contains(t, out, "Mode cache: once")
	assert.Contains(t, out, "Modul di cache: 3")
}

func TestReloadTool(t *testing.T) {
	m := &fakeMaintainer{fakeDispatcher: newFake(), cached: 2}
	out, err := NewReloadTool(m).Execute(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "♻️ Cache plugin dikosongkan (2 modul).", out)
	assert.Equal(t, 1, m.flushes)
	assert.Zero(t, m.cached)
}
