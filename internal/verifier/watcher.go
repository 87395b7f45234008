package verifier

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Invalidator drops cached plugin modules by file path.
type Invalidator interface {
	Invalidate(path string) bool
}

// Watcher invalidates cached plugin modules when their files change on disk.
type Watcher struct {
	fw     *fsnotify.Watcher
	target Invalidator
	log    zerolog.Logger
}

func NewWatcher(target Invalidator, log zerolog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{fw: fw, target: target, log: log}, nil
}

// AddDirs watches each directory, skipping (and logging) ones that cannot
// be watched. It returns how many were added.
func (w *Watcher) AddDirs(dirs []string) int {
	added := 0
	for _, dir := range dirs {
		if err := w.fw.Add(dir); err != nil {
			w.log.Warn().Err(err).Str("dir", dir).Msg("cannot watch plugin directory")
			continue
		}
		added++
	}
	return added
}

// Run handles events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.log.Warn().Err(err).Msg("plugin watcher error")
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) &&
		!ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return
	}
	path := filepath.Clean(ev.Name)
	if w.target.Invalidate(path) {
		w.log.Info().Str("path", path).Str("op", ev.Op.String()).Msg("plugin changed, dropped from cache")
	}
}

func (w *Watcher) Close() error {
	return w.fw.Close()
}
