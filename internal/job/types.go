package job

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fmueller/whisperdesk/internal/whisper"
)

var (
	// ErrInvalidRequest is returned by Submit before any work starts.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrBusy is returned by Submit while a job runs or its result is unpolled.
	ErrBusy = errors.New("a transcription job is already in progress")
	// ErrNoRunningJob is returned by Cancel when nothing is in flight.
	ErrNoRunningJob = errors.New("no running job")
	// ErrClosed is returned by Submit after Close.
	ErrClosed = errors.New("runner closed")
	// ErrCancelled is the failure reported for a cancelled job.
	ErrCancelled = errors.New("job cancelled")
)

// Status is the runner-level view of the current job.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Stage narrows StatusRunning down to the step the worker is in.
type Stage string

const (
	StageNone         Stage = ""
	StageLoadingModel Stage = "loading-model"
	StageTranscribing Stage = "transcribing"
)

type Kind string

const (
	KindSuccess Kind = "success"
	KindFailure Kind = "failure"
)

// Request describes one transcription job. It is copied on submit.
type Request struct {
	Source string
	Model  whisper.ModelSize
}

func (r Request) Validate() error {
	if strings.TrimSpace(r.Source) == "" {
		return fmt.Errorf("%w: no audio source selected", ErrInvalidRequest)
	}
	if strings.TrimSpace(string(r.Model)) == "" {
		return fmt.Errorf("%w: no model size selected", ErrInvalidRequest)
	}
	if !r.Model.Valid() {
		return fmt.Errorf("%w: unknown model size %q", ErrInvalidRequest, r.Model)
	}
	return nil
}

// Result is the single terminal event of a job: Text is set on success,
// Message on failure.
type Result struct {
	JobID      string
	Kind       Kind
	Text       string
	Message    string
	Request    Request
	StartedAt  time.Time
	FinishedAt time.Time
}

func (r Result) Succeeded() bool {
	return r.Kind == KindSuccess
}

func (r Result) Elapsed() time.Duration {
	if r.FinishedAt.Before(r.StartedAt) {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// State is a point-in-time snapshot of a Runner.
type State struct {
	JobID  string
	Status Status
	Stage  Stage
}
