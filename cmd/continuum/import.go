package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/continuum/internal/importer"
)

func newImportCmd(a *app) *cobra.Command {
	var (
		opts        importer.Options
		output      string
		metricsFile string
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a session into the archive",
		Long: `Import an assistant session into the archive.

Without --session the most recently updated session is imported. Loop
warnings are printed to stderr but never stop the import.

Examples:
  # Import the latest Claude Code session
  continuum import --assistant claude-code

  # Import a specific Codex rollout
  continuum import -a codex --session ~/.codex/sessions/2025/11/09/rollout-abc.jsonl

  # Import a Claude Code session piped on stdin
  cat session.jsonl | continuum import -a claude-code --session -

  # Import a Goose session and export metrics for node-exporter
  continuum import -a goose --session 20251109_2 --metrics-file /var/lib/node_exporter/continuum.prom`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if metricsFile == "" {
				metricsFile = a.cfg.Metrics.Textfile
			}
			metrics := importer.NewMetrics()
			svc, err := a.newService(output, metrics)
			if err != nil {
				return err
			}

			res, importErr := svc.Import(cmd.Context(), opts)
			if metricsFile != "" {
				if err := metrics.WriteTextfile(metricsFile); err != nil {
					a.logger.Warn(cmd.Context(), "metrics export failed", zap.Error(err))
				}
			}
			if importErr != nil {
				return importErr
			}

			if err := importer.RenderFindings(cmd.ErrOrStderr(), res.Findings); err != nil {
				return err
			}
			return importer.RenderResult(cmd.OutOrStdout(), res)
		},
	}

	addAssistantFlag(cmd, &opts.Assistant)
	cmd.Flags().StringVarP(&opts.Session, "session", "s", "", "session path, id, or - for stdin (default: latest)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "archive directory (default from config)")
	cmd.Flags().StringVar(&metricsFile, "metrics-file", "", "write Prometheus metrics to this textfile")
	return cmd
}
