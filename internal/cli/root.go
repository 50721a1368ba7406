// Package cli implements the caseprefetch command line.
package cli

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	prefetch "github.com/bragbook2/brag-book-gallery-sub005"
	"github.com/bragbook2/brag-book-gallery-sub005/internal/config"
	"github.com/bragbook2/brag-book-gallery-sub005/internal/render"
	"github.com/bragbook2/brag-book-gallery-sub005/internal/transport"
)

// app is the state shared by subcommands for one invocation.
type app struct {
	cfg      *config.Config
	logger   zerolog.Logger
	session  *prefetch.Session[string]
	terminal *render.Terminal
}

// NewRootCmd creates the root command for the caseprefetch CLI.
func NewRootCmd(ver string) *cobra.Command {
	return NewRootCmdWithEnv(ver, os.LookupEnv)
}

// NewRootCmdWithEnv creates the root command with an explicit env lookup for testability.
func NewRootCmdWithEnv(ver string, lookupEnv func(string) (string, bool)) *cobra.Command {
	cmd, _ := newRootCmd(ver, lookupEnv)
	return cmd
}

func newRootCmd(ver string, lookupEnv func(string) (string, bool)) (*cobra.Command, *app) {
	a := &app{}

	cmd := &cobra.Command{
		Use:           "caseprefetch",
		Short:         "Prefetch and display gallery case details",
		Long:          "caseprefetch loads case detail views through a prioritized prefetch session.",
		Version:       ver,
		Example:       rootCmdExample,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd, lookupEnv)
		},
	}

	cmd.PersistentFlags().String("config", "", "path to a YAML or TOML config file")
	cmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	cmd.PersistentFlags().Bool("strict", false, "panic on render cache contract violations")
	cmd.PersistentFlags().Bool("plain", false, "never animate the loading placeholder")
	cmd.AddCommand(newShowCmd(a), newWarmCmd(a), newReplayCmd(a))

	return cmd, a
}

const rootCmdExample = `  # Show one case
  caseprefetch show 1234 --config prefetch.yaml

  # Preload a set of cases and report the outcome
  caseprefetch warm 1 2 3 4 --config prefetch.toml

  # Replay a scripted browsing session
  caseprefetch replay session.txt --debug`

func (a *app) setup(cmd *cobra.Command, lookupEnv func(string) (string, bool)) error {
	path, _ := cmd.Flags().GetString("config")
	debug, _ := cmd.Flags().GetBool("debug")
	plain, _ := cmd.Flags().GetBool("plain")
	strict, _ := cmd.Flags().GetBool("strict")

	cfg, err := config.LoadWithEnv(path, lookupEnv)
	if err != nil {
		return err
	}

	if err := cfg.RequireBackend(); err != nil {
		return err
	}

	if strict {
		cfg.Debug = true
	}

	a.cfg = cfg
	a.logger = cfg.Logging.NewLogger(cmd.ErrOrStderr(), debug)

	direct, err := transport.NewDirect(cfg.Backend.BaseURL, nil, cfg.Backend.RequestTimeout)
	if err != nil {
		return fmt.Errorf("primary transport: %w", err)
	}

	proxy, err := transport.NewProxy(
		cfg.Backend.ProxyURL,
		cfg.Backend.ProxyAction,
		cfg.Backend.SessionToken,
		nil,
		cfg.Backend.RequestTimeout,
	)
	if err != nil {
		return fmt.Errorf("secondary transport: %w", err)
	}

	opts := cfg.Options(a.logger)

	loader, err := prefetch.NewLoader[string](direct, proxy, opts...)
	if err != nil {
		return err
	}

	a.session, err = prefetch.NewSession[string](cmd.Context(), loader, opts...)
	if err != nil {
		return err
	}

	a.terminal = render.New(render.Options{
		Writer:     cmd.OutOrStdout(),
		ForcePlain: plain,
	})

	a.logger.Debug().
		Str("component", "cli").
		Str("base_url", cfg.Backend.BaseURL).
		Int("concurrency", cfg.Concurrency).
		Msg("session ready")

	return nil
}

// runE wraps a subcommand so the session is closed even when it fails;
// cobra skips post-run hooks after an error.
func (a *app) runE(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		defer a.close()
		return fn(cmd, args)
	}
}

func (a *app) close() {
	if a.session != nil {
		a.session.Close()
	}
}

func (a *app) navigator() *prefetch.Navigator[string] {
	return prefetch.NewNavigator[string](a.session, a.terminal, a.terminal)
}
