// Package main implements the continuum CLI: import assistant sessions into
// a plain-text archive with noise filtered out and loops flagged.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/continuum/internal/adapters"
	"github.com/fyrsmithlabs/continuum/internal/archive"
	"github.com/fyrsmithlabs/continuum/internal/config"
	"github.com/fyrsmithlabs/continuum/internal/importer"
	"github.com/fyrsmithlabs/continuum/internal/logging"
)

// Set via -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// app holds state shared by all commands once the root pre-run has loaded
// configuration.
type app struct {
	configPath string
	logLevel   string
	logFormat  string

	cfg    *config.Config
	logger *logging.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "continuum",
		Short: "Archive AI assistant sessions as plain text",
		Long: `continuum imports Claude Code, Codex and Goose sessions into
~/Assistants/continuum-logs as session.json + messages.jsonl.

Pleasantries, acknowledgements and injected boilerplate are filtered out
before writing, and sessions are checked for runaway loops.`,
		Version:       fmt.Sprintf("%s (%s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file (default ~/.config/continuum/config.yaml)")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: trace, debug, info, warn, error")
	flags.StringVar(&a.logFormat, "log-format", "", "log format: console or json")

	root.AddCommand(
		newImportCmd(a),
		newAnalyzeCmd(a),
		newStatsCmd(a),
		newWatchCmd(a),
	)

	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("%w\nRun '%s --help' for usage", err, cmd.CommandPath())
	})
	return root
}

// setup loads configuration and builds the logger.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.LoadWithFile(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Logging.Format = a.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	lcfg, err := logging.FromConfig(cfg.Logging)
	if err != nil {
		return err
	}
	logger, err := logging.NewLogger(lcfg)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}

	a.cfg = cfg
	a.logger = logger
	cmd.SetContext(logging.WithLogger(cmd.Context(), logger))
	return nil
}

// newService builds the import pipeline, writing to outputDir when set.
func (a *app) newService(outputDir string, metrics *importer.Metrics) (*importer.Service, error) {
	if outputDir == "" {
		outputDir = a.cfg.Archive.Dir
	}
	writer, err := archive.NewWriter(outputDir)
	if err != nil {
		return nil, err
	}
	return importer.NewService(importer.Config{
		Adapters: a.cfg.Adapters,
		Detector: a.cfg.Detector.LoopConfig(),
	}, writer, metrics, a.logger)
}

// addAssistantFlag registers the required --assistant flag.
func addAssistantFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVarP(target, "assistant", "a", "",
		"assistant to read: "+strings.Join(adapters.Names(), ", "))
	_ = cmd.MarkFlagRequired("assistant")
}
