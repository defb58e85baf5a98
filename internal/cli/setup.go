package cli

import (
	"fmt"

	"github.com/fmueller/whisperdesk/internal/download"
	"github.com/fmueller/whisperdesk/internal/whisper"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newSetupCmd(app *appState) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Download and verify speech model assets",
		Long: `Download the selected model (or every model with --all) into the model
directory. Models already present are verified against their pinned SHA-256
and downloaded again when the checksum does not match.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			modelDir, err := app.modelStorageDir()
			if err != nil {
				return err
			}

			sizes := []whisper.ModelSize{app.resolvedModel}
			if all {
				sizes = whisper.ModelSizes()
			}

			for _, size := range sizes {
				resolved, err := whisper.ResolveModel(size, modelDir)
				if err != nil {
					return err
				}

				if !resolved.NeedsDownload && resolved.SHA256 != "" {
					if err := download.VerifyFileChecksum(resolved.Path, resolved.SHA256); err != nil {
						app.log().Warn("model checksum verification failed; downloading fresh copy", zap.String("model", size.String()), zap.Error(err))
						resolved.NeedsDownload = true
					}
				}

				if !resolved.NeedsDownload {
					app.log().Info("model already present", zap.String("model", size.String()), zap.String("path", resolved.Path))
					fmt.Fprintf(cmd.OutOrStdout(), "Model %s already present at %s\n", size, resolved.Path)
					continue
				}

				app.log().Info("downloading model", zap.String("model", size.String()), zap.String("path", resolved.Path))
				if err := app.downloadFn()(cmd.Context(), download.Options{
					URL:            resolved.URL,
					Destination:    resolved.Path,
					ExpectedSHA256: resolved.SHA256,
					NoProgress:     !app.progressEnabled(),
					Logger:         app.log(),
				}); err != nil {
					return fmt.Errorf("download model %s: %w", size, err)
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Model %s installed at %s\n", size, resolved.Path)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Download every model size")
	return cmd
}
