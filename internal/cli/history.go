package cli

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fmueller/whisperdesk/internal/history"
	"github.com/spf13/cobra"
)

const historyExcerptLen = 60

func newHistoryCmd(app *appState) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently finished transcription jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !app.cfg.History.Enabled {
				return errors.New("job history is disabled; enable it with --history or history.enabled in the config file")
			}
			if limit <= 0 {
				limit = app.cfg.History.Limit
			}

			store, err := app.openHistory(cmd.Context())
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			defer store.Close()

			entries, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No transcriptions recorded yet.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "FINISHED\tMODEL\tOUTCOME\tELAPSED\tSOURCE\tTEXT")
			for _, entry := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					entry.FinishedAt.Local().Format(time.DateTime),
					entry.Model,
					entry.Outcome,
					entry.FinishedAt.Sub(entry.StartedAt).Round(time.Millisecond),
					entry.Source,
					excerpt(entry),
				)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Number of entries to show (default: history.limit)")
	return cmd
}

func excerpt(entry history.Entry) string {
	text := entry.Text
	if entry.Message != "" {
		text = entry.Message
	}
	text = strings.Join(strings.Fields(text), " ")
	if len([]rune(text)) > historyExcerptLen {
		text = string([]rune(text)[:historyExcerptLen-3]) + "..."
	}
	return text
}
