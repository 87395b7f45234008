package verifier

import (
	"testing"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type recordingInvalidator struct {
	paths []string
}

func (r *recordingInvalidator) Invalidate(path string) bool {
	r.paths = append(r.paths, path)
	return true
}

func TestWatcherInvalidatesOnChange(t *testing.T) {
	inv := &recordingInvalidator{}
	w := &Watcher{target: inv, log: zerolog.Nop()}

	w.handle(fsnotify.Event{Name: "/srv/tools/k12-verify-tool/./main.lua", Op: fsnotify.Write})
	w.handle(fsnotify.Event{Name: "/srv/tools/k12-verify-tool/main.lua", Op: fsnotify.Remove})
	w.handle(fsnotify.Event{Name: "/srv/tools/k12-verify-tool/main.lua", Op: fsnotify.Chmod})

	assert.Equal(t, []string{
		"/srv/tools/k12-verify-tool/main.lua",
		"/srv/tools/k12-verify-tool/main.lua",
	}, inv.paths)
}

func TestWatcherDropsCachedModule(t *testing.T) {
	h := newHarness(t)
	h.register("k12", false, nil, nil)
	d := h.dispatcher(WithCacheMode(CacheOnce))
	d.Verify(t.Context(), Request{Tool: "k12", URL: "https://x"})
	assert.Equal(t, 1, d.cache.len())

	w := &Watcher{target: d, log: zerolog.Nop()}
	w.handle(fsnotify.Event{Name: baseDir + "/k12-verify-tool/main.lua", Op: fsnotify.Rename})
	assert.Equal(t, 0, d.cache.len())
}
