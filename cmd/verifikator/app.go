package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/pyromancer/verifikator/internal/config"
	"github.com/pyromancer/verifikator/internal/logging"
	"github.com/pyromancer/verifikator/internal/luaplugin"
	"github.com/pyromancer/verifikator/internal/registry"
	"github.com/pyromancer/verifikator/internal/verifier"
)

// app is everything the subcommands share.
type app struct {
	settings   config.Settings
	log        zerolog.Logger
	dispatcher *verifier.Dispatcher
}

func newApp(configPath string) (*app, error) {
	conf, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	settings, err := conf.Settings()
	if err != nil {
		return nil, err
	}

	log := logging.New(settings.LogLevel, settings.LogFormat, os.Stderr)

	mode, err := verifier.ParseCacheMode(settings.PluginCache)
	if err != nil {
		return nil, fmt.Errorf("PLUGIN_CACHE: %w", err)
	}

	loader := luaplugin.NewLoader(
		luaplugin.WithLogger(log.With().Str("component", "plugin").Logger()),
		luaplugin.WithUserAgent(settings.HTTPUserAgent),
	)
	d := verifier.NewDispatcher(registry.Default(), loader, settings.ToolsDir,
		verifier.WithCacheMode(mode),
		verifier.WithLogger(log.With().Str("component", "dispatcher").Logger()),
	)

	log.Debug().
		Str("tools_dir", settings.ToolsDir).
		Stringer("cache", mode).
		Int("tools", len(d.ListTools())).
		Msg("dispatcher ready")

	return &app{settings: settings, log: log, dispatcher: d}, nil
}
