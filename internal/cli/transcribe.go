package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fmueller/whisperdesk/internal/audio"
	"github.com/fmueller/whisperdesk/internal/clipboard"
	"github.com/fmueller/whisperdesk/internal/job"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newTranscribeCmd(app *appState) *cobra.Command {
	var copyToClipboard bool

	cmd := &cobra.Command{
		Use:   "transcribe <audio-file>",
		Short: "Transcribe an audio file",
		Long: `Transcribe one audio file in the background and print the transcript.

Interrupting with Ctrl-C cancels the running job.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			source, err := audio.CheckSource(args[0])
			if err != nil {
				return err
			}

			res, err := app.transcribeFile(ctx, source)
			if err != nil {
				return err
			}
			if !res.Succeeded() {
				return errors.New(res.Message)
			}

			transcript := res.Text
			fmt.Fprintln(cmd.OutOrStdout(), transcript)
			if isBlankTranscript(transcript) {
				app.log().Warn(noSpeechHint())
			}
			if !copyToClipboard {
				return nil
			}
			if isBlankTranscript(transcript) && !app.copyEmpty {
				return nil
			}
			return app.copyTranscript(ctx, transcript)
		},
	}

	cmd.Flags().BoolVar(&copyToClipboard, "copy", false, "Copy transcript to clipboard")
	return cmd
}

// transcribeFile submits one job and polls until its result is in. A
// cancelled ctx cancels the job; the cancellation result is still returned.
func (a *appState) transcribeFile(ctx context.Context, source string) (job.Result, error) {
	rt, err := a.openRuntime(ctx)
	if err != nil {
		return job.Result{}, err
	}
	defer rt.Close(ctx)

	id, err := rt.runner.Submit(context.WithoutCancel(ctx), job.Request{Source: source, Model: a.resolvedModel})
	if err != nil {
		return job.Result{}, err
	}
	a.log().Info("transcribing...", zap.String("job_id", id), zap.String("audio", source), zap.String("model", a.resolvedModel.String()), zap.String("language", a.cfg.Language))

	spinner := newStageSpinner(a.progressEnabled())
	defer spinner.Stop()

	ticker := time.NewTicker(a.cfg.PollInterval())
	defer ticker.Stop()

	done := ctx.Done()
	for {
		select {
		case <-done:
			done = nil
			if err := rt.runner.Cancel(); err == nil {
				a.log().Info("interrupt received; cancelling transcription", zap.String("job_id", id))
			}
		case <-ticker.C:
			if res, ok := rt.runner.Poll(); ok {
				spinner.Stop()
				return res, nil
			}
			spinner.Update(rt.runner.State().Stage)
		}
	}
}

func (a *appState) copyTranscript(ctx context.Context, transcript string) error {
	copyFn := a.copyFn
	if copyFn == nil {
		copyFn = clipboard.CopyText
	}

	if err := copyFn(ctx, transcript); err != nil {
		if errors.Is(err, clipboard.ErrUnavailable) {
			a.log().Warn("clipboard tool unavailable; transcript left on stdout")
			return nil
		}
		return fmt.Errorf("copy transcript: %w", err)
	}
	a.log().Info("transcript copied to clipboard")
	return nil
}
