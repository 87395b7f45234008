package verifier

import (
	"context"
	"fmt"
	"sync"
)

// StaticFactory is a compiled-in entry type.
type StaticFactory struct {
	Proxy     bool
	Construct func(ctx context.Context, url string, proxy *string) (Instance, error)
}

func (f StaticFactory) AcceptsProxy() bool { return f.Proxy }

func (f StaticFactory) New(ctx context.Context, url string, proxy *string) (Instance, error) {
	if f.Construct == nil {
		return nil, fmt.Errorf("entry has no constructor")
	}
	return f.Construct(ctx, url, proxy)
}

// StaticModule maps entry type names to factories.
type StaticModule map[string]StaticFactory

func (m StaticModule) Exec(ctx context.Context, namespace string) (Namespace, error) {
	return staticNamespace{name: namespace, entries: m}, nil
}

type staticNamespace struct {
	name    string
	entries StaticModule
}

func (n staticNamespace) Lookup(entry string) (Factory, error) {
	f, ok := n.entries[entry]
	if !ok {
		return nil, fmt.Errorf("%s has no entry %q", n.name, entry)
	}
	return f, nil
}

func (n staticNamespace) Close() {}

// StaticLoader serves Go verifiers linked into the binary, keyed by the
// module path they are registered under. The file on disk still has to
// exist; its contents are ignored.
type StaticLoader struct {
	mu      sync.RWMutex
	modules map[string]StaticModule
}

func NewStaticLoader() *StaticLoader {
	return &StaticLoader{modules: make(map[string]StaticModule)}
}

// Register adds an entry type under a module path.
func (l *StaticLoader) Register(modulePath, entry string, f StaticFactory) {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.modules[modulePath]
	if !ok {
		m = make(StaticModule)
		l.modules[modulePath] = m
	}
	m[entry] = f
}

func (l *StaticLoader) Load(src Source) (Module, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	m, ok := l.modules[src.ModulePath]
	if !ok {
		return nil, fmt.Errorf("no compiled-in module for %s", src.ModulePath)
	}
	return m, nil
}
