package cli

import (
	"fmt"

	"github.com/fmueller/whisperdesk/internal/version"
	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		// Printing the version needs neither config nor logger.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "whisperdesk v%s\n", version.Resolve())
			return nil
		},
	}
}
