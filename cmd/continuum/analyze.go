package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/continuum/internal/importer"
)

func newAnalyzeCmd(a *app) *cobra.Command {
	var (
		opts   importer.Options
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Check a session for loops and noise without writing",
		Long: `Run loop detection and noise filtering on a session and print a
report. Nothing is written to the archive.

Examples:
  continuum analyze --assistant codex
  continuum analyze -a claude-code --session 6f1c2a7e --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := a.newService("", nil)
			if err != nil {
				return err
			}
			res, err := svc.Analyze(cmd.Context(), opts)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			if err := importer.RenderFindings(cmd.OutOrStdout(), res.Findings); err != nil {
				return err
			}
			return importer.RenderResult(cmd.OutOrStdout(), res)
		},
	}

	addAssistantFlag(cmd, &opts.Assistant)
	cmd.Flags().StringVarP(&opts.Session, "session", "s", "", "session path, id, or - for stdin (default: latest)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}
