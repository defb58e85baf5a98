package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/fmueller/whisperdesk/internal/whisper"
	"github.com/spf13/cobra"
)

func newModelsCmd(app *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List model sizes and whether they are installed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			modelDir, err := app.modelStorageDir()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SIZE\tSTATUS\tPATH")
			for _, size := range whisper.ModelSizes() {
				resolved, err := whisper.ResolveModel(size, modelDir)
				if err != nil {
					return err
				}

				status := "missing"
				if !resolved.NeedsDownload {
					status = "installed"
				}
				name := size.String()
				if size == app.resolvedModel {
					name += " *"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", name, status, resolved.Path)
			}
			return w.Flush()
		},
	}
}

func joinSizes() string {
	return strings.Join(whisper.SizeNames(), "|")
}
