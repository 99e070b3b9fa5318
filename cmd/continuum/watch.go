package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/continuum/internal/config"
	"github.com/fyrsmithlabs/continuum/internal/importer"
	"github.com/fyrsmithlabs/continuum/internal/watcher"
)

func newWatchCmd(a *app) *cobra.Command {
	var (
		assistant string
		output    string
		debounce  config.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-import sessions whenever they change",
		Long: `Watch an assistant's native logs and re-import a session once it has
been quiet for the debounce interval. Re-imports replace the archived
messages, so a session is never duplicated. Sessions stay "active" while
watched and are marked closed when watching stops.

Stop with Ctrl-C.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if !cmd.Flags().Changed("debounce") {
				debounce = a.cfg.Watch.Debounce
			}

			metrics := importer.NewMetrics()
			svc, err := a.newService(output, metrics)
			if err != nil {
				return err
			}
			adapter, err := svc.Adapter(assistant)
			if err != nil {
				return err
			}

			w, err := watcher.New(a.logger, debounce.Duration())
			if err != nil {
				return err
			}
			defer w.Close()

			for _, path := range adapter.WatchPaths() {
				if err := w.Add(path); err != nil {
					return err
				}
			}
			a.logger.Info(ctx, "watching for changes",
				zap.String("assistant", adapter.Name()),
				zap.Strings("paths", adapter.WatchPaths()),
				zap.Stringer("debounce", debounce))
			fmt.Fprintf(cmd.ErrOrStderr(), "Watching %s sessions (Ctrl-C to stop)\n", adapter.Name())

			// Latest result per archive dir, closed on exit.
			live := make(map[string]*importer.Result)
			runErr := w.Run(ctx, func(ctx context.Context, path string) error {
				ref, ok, err := adapter.SessionRef(ctx, path)
				if err != nil || !ok {
					return err
				}
				res, err := svc.Import(ctx, importer.Options{Assistant: adapter.Name(), Session: ref, Live: true})
				if textfile := a.cfg.Metrics.Textfile; textfile != "" {
					if werr := metrics.WriteTextfile(textfile); werr != nil {
						a.logger.Warn(ctx, "metrics export failed", zap.Error(werr))
					}
				}
				if err != nil {
					return err
				}
				if res.ArchiveDir != "" {
					live[res.ArchiveDir] = res
				}
				if err := importer.RenderFindings(cmd.ErrOrStderr(), res.Findings); err != nil {
					return err
				}
				return importer.RenderResult(cmd.OutOrStdout(), res)
			})

			closeCtx := context.WithoutCancel(ctx)
			errs := []error{runErr}
			for _, res := range live {
				errs = append(errs, svc.MarkClosed(closeCtx, res))
			}
			return errors.Join(errs...)
		},
	}

	addAssistantFlag(cmd, &assistant)
	cmd.Flags().StringVarP(&output, "output", "o", "", "archive directory (default from config)")
	cmd.Flags().Var(&debounce, "debounce", "quiet period before re-importing (default from config, 2s)")
	return cmd
}
