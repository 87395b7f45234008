package verifier

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	goerrors "github.com/go-errors/errors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/pyromancer/verifikator/internal/registry"
)

// Dispatcher resolves tools, loads their plugins and runs them. It is safe
// for concurrent use; every call executes the plugin in its own namespace.
type Dispatcher struct {
	registry *registry.Registry
	loader   Loader
	baseDir  string
	fs       afero.Fs
	cache    *moduleCache
	log      zerolog.Logger
}

type Option func(*Dispatcher)

// WithFs replaces the filesystem plugins are read from.
func WithFs(fs afero.Fs) Option {
	return func(d *Dispatcher) { d.fs = fs }
}

func WithCacheMode(mode CacheMode) Option {
	return func(d *Dispatcher) { d.cache = newModuleCache(mode) }
}

func WithLogger(log zerolog.Logger) Option {
	return func(d *Dispatcher) { d.log = log }
}

func NewDispatcher(reg *registry.Registry, loader Loader, baseDir string, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		registry: reg,
		loader:   loader,
		baseDir:  baseDir,
		fs:       afero.NewOsFs(),
		cache:    newModuleCache(CacheReload),
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// ListTools returns the registered tool identifiers in lexical order.
func (d *Dispatcher) ListTools() []string {
	return d.registry.ListTools()
}

// Resolve looks up the registry entry of a tool.
func (d *Dispatcher) Resolve(tool string) (registry.ToolSpec, error) {
	return d.registry.Resolve(tool)
}

// PluginPath returns where the plugin for a tool is expected on disk.
func (d *Dispatcher) PluginPath(spec registry.ToolSpec) string {
	return filepath.Clean(filepath.Join(d.baseDir, filepath.FromSlash(spec.ModulePath)))
}

// PluginDirs returns the directory of every registered plugin file.
func (d *Dispatcher) PluginDirs() []string {
	seen := make(map[string]bool)
	var dirs []string
	for _, tool := range d.registry.ListTools() {
		spec, err := d.registry.Resolve(tool)
		if err != nil {
			continue
		}
		dir := filepath.Dir(d.PluginPath(spec))
		if !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}
	return dirs
}

// Invalidate drops a cached module so the next call reloads it.
func (d *Dispatcher) Invalidate(path string) bool {
	return d.cache.invalidate(path)
}

// Flush drops every cached module and returns how many were dropped.
func (d *Dispatcher) Flush() int {
	return d.cache.flush()
}

// CachedModules reports how many compiled modules are held in the cache.
func (d *Dispatcher) CachedModules() int {
	return d.cache.len()
}

// CacheMode reports how plugin modules are cached.
func (d *Dispatcher) CacheMode() CacheMode {
	return d.cache.mode
}

// Verify runs one verification. It never panics and never returns an
// error: every failure is reported through the Result.
func (d *Dispatcher) Verify(ctx context.Context, req Request) (res Result) {
	tool := registry.Normalize(req.Tool)
	log := d.log.With().
		Str("request", uuid.New().String()[:8]).
		Str("tool", tool).
		Logger()

	spec, err := d.registry.Resolve(tool)
	if err != nil {
		log.Warn().Str("requested", req.Tool).Msg("unknown tool")
		return failure(StageUnknownTool, fmt.Sprintf("Tool tidak dikenal: %s", req.Tool), err)
	}

	path := d.PluginPath(spec)
	if _, err := d.fs.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Error().Str("path", path).Msg("plugin file missing")
			return failure(StageNotFound, fmt.Sprintf("Module tool tidak ditemukan: %s", path),
				fmt.Errorf("%w: %s", ErrPluginNotFound, path))
		}
		log.Error().Err(err).Str("path", path).Msg("cannot stat plugin file")
		return failure(StageException, err.Error(), fmt.Errorf("%w: %w", ErrPluginLoad, err))
	}

	defer func() {
		if r := recover(); r != nil {
			perr := goerrors.Wrap(r, 2)
			log.Error().Str("stack", string(perr.Stack())).Msgf("plugin panicked: %v", r)
			res = failure(StageException, fmt.Sprintf("panic: %v", r), fmt.Errorf("%w: %w", ErrPluginRuntime, perr))
		}
	}()

	res = d.run(ctx, log, tool, spec, path, req)
	if res.OK {
		log.Info().Msg("verification finished")
	} else {
		log.Info().Str("stage", string(res.Stage)).Str("detail", res.Detail).Msg("verification failed")
	}
	return res
}

func (d *Dispatcher) run(ctx context.Context, log zerolog.Logger, tool string, spec registry.ToolSpec, path string, req Request) Result {
	mod, err := d.module(tool, spec, path)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("cannot load plugin")
		return failure(StageException, err.Error(), fmt.Errorf("%w: %w", ErrPluginLoad, err))
	}

	ns, err := mod.Exec(ctx, namespaceName(tool))
	if err != nil {
		log.Error().Err(err).Msg("plugin top-level code failed")
		return failure(StageException, err.Error(), fmt.Errorf("%w: %w", ErrPluginLoad, err))
	}
	defer ns.Close()

	factory, err := ns.Lookup(spec.EntryType)
	if err != nil {
		log.Error().Err(err).Str("entry", spec.EntryType).Msg("entry type missing")
		return failure(StageException, err.Error(), fmt.Errorf("%w: %w", ErrPluginLoad, err))
	}

	var proxy *string
	if factory.AcceptsProxy() {
		proxy = req.Proxy
	} else if req.Proxy != nil {
		log.Debug().Msg("plugin does not take a proxy, ignoring it")
	}

	inst, err := factory.New(ctx, req.URL, proxy)
	if err != nil {
		return pluginFailure(log, "construct", err)
	}
	if closer, ok := inst.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	if checker, ok := inst.(LinkChecker); ok {
		valid, err := checker.CheckLink(ctx)
		if err != nil {
			return pluginFailure(log, "check_link", err)
		}
		if !valid {
			return failure(StageCheckLink, InvalidLinkDetail, ErrCheckFailed)
		}
	}

	payload, err := inst.Verify(ctx)
	if err != nil {
		return pluginFailure(log, "verify", err)
	}
	return success(payload)
}

func (d *Dispatcher) module(tool string, spec registry.ToolSpec, path string) (Module, error) {
	if mod, ok := d.cache.get(path); ok {
		return mod, nil
	}
	code, err := afero.ReadFile(d.fs, path)
	if err != nil {
		return nil, err
	}
	mod, err := d.loader.Load(Source{
		Tool:       tool,
		ModulePath: spec.ModulePath,
		Path:       path,
		Code:       code,
	})
	if err != nil {
		return nil, err
	}
	d.cache.put(path, mod)
	return mod, nil
}

func pluginFailure(log zerolog.Logger, step string, err error) Result {
	log.Error().Err(err).Str("step", step).Msg("plugin raised an error")
	detail := err.Error()
	if detail == "" {
		detail = fmt.Sprintf("%s failed", step)
	}
	return failure(StageException, detail, fmt.Errorf("%w: %w", ErrPluginRuntime, err))
}

func namespaceName(tool string) string {
	return fmt.Sprintf("tools_%s_module", tool)
}
