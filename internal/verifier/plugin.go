package verifier

import "context"

// Source is a plugin file handed to a Loader.
type Source struct {
	Tool       string
	ModulePath string
	Path       string
	Code       []byte
}

// Loader turns plugin source into a Module. Implementations must not keep
// per-call state in the Module: a cached Module is executed concurrently.
type Loader interface {
	Load(src Source) (Module, error)
}

// Module is loaded plugin code that has not run yet.
type Module interface {
	// Exec runs the module's top-level code in a fresh namespace.
	Exec(ctx context.Context, namespace string) (Namespace, error)
}

// Namespace is one executed copy of a module, owned by a single dispatch.
type Namespace interface {
	Lookup(entry string) (Factory, error)
	Close()
}

// Factory constructs verifier instances from an entry type.
type Factory interface {
	// AcceptsProxy reports whether the constructor takes a proxy argument.
	// It returns false when that cannot be determined.
	AcceptsProxy() bool
	New(ctx context.Context, url string, proxy *string) (Instance, error)
}

// Instance is a constructed verifier.
type Instance interface {
	Verify(ctx context.Context) (any, error)
}

// LinkChecker is implemented by instances that can reject a URL before the
// full verification runs.
type LinkChecker interface {
	CheckLink(ctx context.Context) (bool, error)
}
