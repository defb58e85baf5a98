package cli

import (
	"os"
	"time"

	"github.com/fmueller/whisperdesk/internal/job"
	"github.com/schollz/progressbar/v3"
)

// stageSpinner is advanced by the caller's poll loop; it owns no goroutine.
type stageSpinner struct {
	bar   *progressbar.ProgressBar
	stage job.Stage
}

func newStageSpinner(enabled bool) *stageSpinner {
	if !enabled {
		return &stageSpinner{}
	}

	bar := progressbar.NewOptions(
		-1,
		progressbar.OptionSetDescription(stageLabel(job.StageNone)),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionThrottle(80*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
	return &stageSpinner{bar: bar}
}

func (s *stageSpinner) Update(stage job.Stage) {
	if s.bar == nil {
		return
	}
	if stage != s.stage {
		s.stage = stage
		s.bar.Describe(stageLabel(stage))
	}
	_ = s.bar.Add(1)
}

func (s *stageSpinner) Stop() {
	if s.bar == nil {
		return
	}
	_ = s.bar.Finish()
	s.bar = nil
}

func stageLabel(stage job.Stage) string {
	switch stage {
	case job.StageLoadingModel:
		return "Loading model"
	case job.StageTranscribing:
		return "Transcribing"
	default:
		return "Starting"
	}
}
