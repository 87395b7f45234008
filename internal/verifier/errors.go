package verifier

import (
	"errors"

	"github.com/pyromancer/verifikator/internal/registry"
)

var (
	ErrUnknownTool    = registry.ErrUnknownTool
	ErrPluginNotFound = errors.New("plugin file not found")
	ErrPluginLoad     = errors.New("plugin load failed")
	ErrCheckFailed    = errors.New("link rejected by plugin")
	ErrPluginRuntime  = errors.New("plugin raised an error")
)

// InvalidLinkDetail is reported to users when check_link rejects a URL.
const InvalidLinkDetail = "Link tidak valid"
