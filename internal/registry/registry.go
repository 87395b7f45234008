package registry

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnknownTool is returned when a tool identifier is not registered.
var ErrUnknownTool = errors.New("unknown tool")

// ToolSpec locates a plugin: the file relative to the tools directory and
// the name of the entry type defined inside it.
type ToolSpec struct {
	ModulePath string
	EntryType  string
}

// Registry is the fixed set of tools the bot is allowed to run.
// It is never modified after New returns, so it needs no locking.
type Registry struct {
	specs map[string]ToolSpec
}

// New builds a registry from the given table. Keys are normalized.
func New(specs map[string]ToolSpec) *Registry {
	r := &Registry{specs: make(map[string]ToolSpec, len(specs))}
	for id, spec := range specs {
		r.specs[Normalize(id)] = spec
	}
	return r
}

// Default returns the compiled-in SheerID tool table.
func Default() *Registry {
	return New(map[string]ToolSpec{
		"spotify":    {ModulePath: "spotify-verify-tool/main.lua", EntryType: "SpotifyVerifier"},
		"youtube":    {ModulePath: "youtube-verify-tool/main.lua", EntryType: "YouTubeVerifier"},
		"gemini":     {ModulePath: "one-verify-tool/main.lua", EntryType: "GeminiVerifier"},
		"perplexity": {ModulePath: "perplexity-verify-tool/main.lua", EntryType: "PerplexityVerifier"},
		"boltnew":    {ModulePath: "boltnew-verify-tool/main.lua", EntryType: "BoltnewVerifier"},
		"k12":        {ModulePath: "k12-verify-tool/main.lua", EntryType: "K12Verifier"},
	})
}

// Normalize trims and lower-cases a tool identifier.
func Normalize(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// ListTools returns every registered identifier in lexical order.
func (r *Registry) ListTools() []string {
	names := make([]string, 0, len(r.specs))
	for name := range r.specs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve looks up a tool ignoring case and surrounding whitespace.
func (r *Registry) Resolve(id string) (ToolSpec, error) {
	spec, ok := r.specs[Normalize(id)]
	if !ok {
		return ToolSpec{}, fmt.Errorf("%w: %s", ErrUnknownTool, id)
	}
	return spec, nil
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	return len(r.specs)
}
