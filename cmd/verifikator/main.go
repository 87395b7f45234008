package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/cobra"

	"github.com/pyromancer/verifikator/internal/config"
	"github.com/pyromancer/verifikator/internal/scheduler"
	"github.com/pyromancer/verifikator/internal/server"
	"github.com/pyromancer/verifikator/internal/telegram"
	"github.com/pyromancer/verifikator/internal/tools"
	"github.com/pyromancer/verifikator/internal/verifier"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "verifikator",
		Short:         "Telegram bot that runs link verification plugins",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultFile, "KEY=VALUE config file")

	root.AddCommand(serveCmd(), toolsCmd(), verifyCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Telegram bot and, when SERVER_ADDR is set, the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(configPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	s := a.settings
	if s.BotToken == "" && s.ServerAddr == "" {
		return errors.New("BOT_TOKEN is not set and the HTTP API is disabled, nothing to serve")
	}

	if s.PluginWatch {
		w, err := verifier.NewWatcher(a.dispatcher, a.log.With().Str("component", "watcher").Logger())
		if err != nil {
			return err
		}
		defer w.Close()
		a.log.Info().Int("dirs", w.AddDirs(a.dispatcher.PluginDirs())).Msg("watching plugin directories")
		go w.Run(ctx)
	}

	if s.CacheFlush != "" {
		sch := scheduler.New(a.log.With().Str("component", "scheduler").Logger())
		if err := sch.ScheduleFlush(s.CacheFlush, a.dispatcher); err != nil {
			return err
		}
		sch.Start()
		defer func() { <-sch.Stop().Done() }()
	}

	p := pool.New().WithErrors().WithContext(ctx).WithCancelOnError()

	if s.BotToken != "" {
		commands := tools.NewCommandSet(a.dispatcher, s.VerifyTimeout)
		bridge := telegram.NewBridge(s.BotToken, commands, s.AllowedUsers, s.VerifyWorkers,
			a.log.With().Str("component", "telegram").Logger())
		p.Go(bridge.Start)
	} else {
		a.log.Warn().Msg("BOT_TOKEN not set, telegram bot disabled")
	}

	if s.ServerAddr != "" {
		srv := server.NewServer(a.dispatcher, s.ServerAPIKey, s.VerifyTimeout,
			a.log.With().Str("component", "server").Logger())
		p.Go(func(ctx context.Context) error {
			return srv.StartSecure(s.ServerAddr, s.TLSCertFile, s.TLSKeyFile)
		})
		p.Go(func(ctx context.Context) error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	a.log.Info().Msg("verifikator running")
	err := p.Wait()
	a.log.Info().Msg("verifikator stopped")
	return err
}

func toolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the available verification tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(configPath)
			if err != nil {
				return err
			}
			for _, t := range a.dispatcher.ListTools() {
				spec, _ := a.dispatcher.Resolve(t)
				fmt.Fprintf(cmd.OutOrStdout(), "%-10s %s\n", t, a.dispatcher.PluginPath(spec))
			}
			return nil
		},
	}
}

func verifyCmd() *cobra.Command {
	var proxy string
	cmd := &cobra.Command{
		Use:   "verify <tool> <url>",
		Short: "Run one verification and print the result as JSON",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(configPath)
			if err != nil {
				return err
			}

			req := verifier.Request{Tool: args[0], URL: args[1]}
			if cmd.Flags().Changed("proxy") {
				req.Proxy = &proxy
			}

			ctx := cmd.Context()
			if a.settings.VerifyTimeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, a.settings.VerifyTimeout)
				defer cancel()
			}

			res := a.dispatcher.Verify(ctx, req)
			out, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(res, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			if !res.OK {
				return fmt.Errorf("verification failed at stage %s", res.Stage)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&proxy, "proxy", "", "proxy URL handed to plugins that accept one")
	return cmd
}
