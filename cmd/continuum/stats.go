package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/continuum/internal/archive"
)

func newStatsCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show archive totals per assistant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if output == "" {
				output = a.cfg.Archive.Dir
			}
			writer, err := archive.NewWriter(output)
			if err != nil {
				return err
			}
			stats, err := writer.Stats(cmd.Context())
			if err != nil {
				return err
			}
			return renderStats(cmd.OutOrStdout(), stats)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "archive directory (default from config)")
	return cmd
}

func renderStats(w io.Writer, stats *archive.Stats) error {
	r := lipgloss.NewRenderer(w)
	header := r.NewStyle().Foreground(lipgloss.Color("51")).Bold(true).Padding(0, 1)
	cell := r.NewStyle().Padding(0, 1)
	dim := r.NewStyle().Foreground(lipgloss.Color("245"))

	if stats.Sessions == 0 {
		_, err := fmt.Fprintf(w, "No sessions archived in %s\n", stats.BaseDir)
		return err
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(r.NewStyle().Foreground(lipgloss.Color("238"))).
		Headers("ASSISTANT", "SESSIONS", "MESSAGES", "FIRST", "LAST").
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			return cell
		})
	for _, as := range stats.Assistants {
		t.Row(as.Assistant, strconv.Itoa(as.Sessions), strconv.Itoa(as.Messages), as.FirstDate, as.LastDate)
	}
	t.Row("total", strconv.Itoa(stats.Sessions), strconv.Itoa(stats.Messages), "", "")

	if _, err := fmt.Fprintln(w, t.Render()); err != nil {
		return err
	}
	if stats.Unreadable > 0 {
		if _, err := fmt.Fprintln(w, dim.Render(fmt.Sprintf("%d session directories without a readable session.json", stats.Unreadable))); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, dim.Render("Archive: "+stats.BaseDir))
	return err
}
