// Package ui is the interactive front-end: a line-driven rendition of a
// small transcription window with a file picker, a model selector, a status
// label and a transcript area.
//
// All visible state is owned by the Session loop goroutine. The background
// job never writes to it; the loop polls the runner on a fixed interval and
// applies results itself.
package ui

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/fmueller/whisperdesk/internal/audio"
	"github.com/fmueller/whisperdesk/internal/job"
	"github.com/fmueller/whisperdesk/internal/whisper"
	"go.uber.org/zap"
)

const DefaultPollInterval = 100 * time.Millisecond

const selectionWarning = "Please select an audio file and a model size."

// Runner is the part of job.Runner the session drives.
type Runner interface {
	Submit(ctx context.Context, req job.Request) (string, error)
	Poll() (job.Result, bool)
	Cancel() error
	State() job.State
}

type Options struct {
	In           io.Reader
	Out          io.Writer
	Runner       Runner
	Filter       audio.Filter
	Model        whisper.ModelSize
	PollInterval time.Duration
	// Installed reports whether a model is already on disk; optional.
	Installed func(whisper.ModelSize) bool
	Logger    *zap.Logger
}

type Session struct {
	in        io.Reader
	out       io.Writer
	runner    Runner
	filter    audio.Filter
	interval  time.Duration
	installed func(whisper.ModelSize) bool
	logger    *zap.Logger

	file       string
	model      whisper.ModelSize
	status     string
	transcript string
	stage      job.Stage
	candidates []string
}

func NewSession(opts Options) *Session {
	s := &Session{
		in:        opts.In,
		out:       opts.Out,
		runner:    opts.Runner,
		filter:    opts.Filter,
		interval:  opts.PollInterval,
		installed: opts.Installed,
		logger:    opts.Logger,
		model:     opts.Model,
	}
	if s.interval <= 0 {
		s.interval = DefaultPollInterval
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if len(s.filter.Extensions()) == 0 {
		s.filter = audio.NewFilter(nil)
	}
	if s.in == nil {
		s.in = strings.NewReader("")
	}
	if s.out == nil {
		s.out = io.Discard
	}
	return s
}

// Run processes commands until quit, ctx cancellation or end of input. At
// end of input a job that is still running is awaited so piped scripts see
// their transcript; quit and cancellation abort it instead.
func (s *Session) Run(ctx context.Context) error {
	done := make(chan struct{})
	defer close(done)
	lines := s.readLines(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	defer s.abortRunning()

	s.printf("whisperdesk: select an audio file (%s) and a model size, then type 'transcribe'. 'help' lists commands.\n", s.filter.Pattern())

	draining := false
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				lines = nil
				draining = true
				if !s.busy() {
					return nil
				}
				continue
			}
			if quit := s.handle(ctx, line); quit {
				return nil
			}
		case <-ticker.C:
			s.tick()
			if draining && !s.busy() {
				return nil
			}
		}
	}
}

func (s *Session) readLines(done <-chan struct{}) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(s.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
		if err := scanner.Err(); err != nil {
			s.logger.Warn("reading commands failed", zap.Error(err))
		}
	}()
	return lines
}

func (s *Session) handle(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	cmd := strings.ToLower(fields[0])
	arg := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), fields[0]))

	switch cmd {
	case "open", "o":
		s.open(arg)
	case "ls", "browse":
		s.browse(arg)
	case "model", "m":
		s.selectModel(arg)
	case "models":
		s.listModels()
	case "transcribe", "t":
		s.submit(ctx)
	case "cancel":
		if err := s.runner.Cancel(); err != nil {
			s.printf("Nothing to cancel.\n")
		}
	case "status":
		s.printState()
	case "show":
		s.showTranscript()
	case "help", "?":
		s.printHelp()
	case "quit", "exit", "q":
		return true
	default:
		s.printf("Unknown command %q. Type 'help' for the list of commands.\n", cmd)
	}
	return false
}

func (s *Session) open(arg string) {
	if strings.HasPrefix(arg, "#") {
		n, err := strconv.Atoi(strings.TrimPrefix(arg, "#"))
		if err != nil || n < 1 || n > len(s.candidates) {
			s.warn(fmt.Sprintf("No listed file %s; run 'ls' first.", arg))
			return
		}
		arg = s.candidates[n-1]
	}

	path, err := audio.CheckSource(arg)
	if err != nil {
		if errors.Is(err, audio.ErrNoSource) {
			s.warn("Usage: open <audio-file>")
			return
		}
		s.warn(err.Error())
		return
	}

	s.file = path
	s.printf("Selected: %s\n", path)
	if !s.filter.Allows(path) {
		s.printf("Note: supported formats are %s; the engine may not read this file.\n", strings.Join(s.filter.Extensions(), ", "))
	}
}

func (s *Session) browse(dir string) {
	if dir == "" {
		dir = "."
	}
	files, err := s.filter.ListCandidates(dir)
	if err != nil {
		s.warn(err.Error())
		return
	}
	s.candidates = files
	if len(files) == 0 {
		s.printf("No audio files (%s) in %s.\n", s.filter.Pattern(), dir)
		return
	}
	for i, f := range files {
		s.printf("  #%d  %s\n", i+1, f)
	}
	s.printf("Pick one with 'open #N'.\n")
}

func (s *Session) selectModel(arg string) {
	size, err := whisper.ParseModelSize(arg)
	if err != nil {
		s.warn(fmt.Sprintf("Choose one of: %s.", strings.Join(whisper.SizeNames(), ", ")))
		return
	}
	s.model = size
	s.printf("Model: %s\n", size)
}

func (s *Session) listModels() {
	for _, size := range whisper.ModelSizes() {
		marker := " "
		if size == s.model {
			marker = "*"
		}
		line := fmt.Sprintf(" %s %s", marker, size)
		if s.installed != nil && s.installed(size) {
			line += "  (installed)"
		}
		s.printf("%s\n", line)
	}
}

func (s *Session) submit(ctx context.Context) {
	if s.file == "" || s.model == "" {
		s.warn(selectionWarning)
		return
	}

	_, err := s.runner.Submit(ctx, job.Request{Source: s.file, Model: s.model})
	switch {
	case errors.Is(err, job.ErrInvalidRequest):
		s.warn(selectionWarning)
		return
	case errors.Is(err, job.ErrBusy):
		s.warn("A transcription is already running; wait for it or type 'cancel'.")
		return
	case err != nil:
		s.warn(err.Error())
		return
	}

	s.stage = job.StageNone
	s.setStatus("Starting...")
}

// tick is the periodic poll: apply a finished result, or mirror the
// worker's stage in the status label.
func (s *Session) tick() {
	if res, ok := s.runner.Poll(); ok {
		s.apply(res)
		return
	}

	state := s.runner.State()
	if state.Status != job.StatusRunning || state.Stage == s.stage {
		return
	}
	s.stage = state.Stage
	switch state.Stage {
	case job.StageLoadingModel:
		s.setStatus("Loading model...")
	case job.StageTranscribing:
		s.setStatus("Transcribing...")
	}
}

func (s *Session) apply(res job.Result) {
	s.stage = job.StageNone
	if !res.Succeeded() {
		s.printf("Error: %s\n", res.Message)
		s.status = ""
		return
	}

	s.transcript = res.Text
	s.showTranscript()
	s.setStatus("Done.")
	s.logger.Debug("transcript displayed", zap.String("job_id", res.JobID), zap.Duration("elapsed", res.Elapsed()))
}

func (s *Session) busy() bool {
	return s.runner.State().Status != job.StatusIdle
}

func (s *Session) abortRunning() {
	if err := s.runner.Cancel(); err == nil {
		s.logger.Info("cancelled running transcription on exit")
	}
}

func (s *Session) setStatus(status string) {
	if status == s.status {
		return
	}
	s.status = status
	if status != "" {
		s.printf("[%s]\n", status)
	}
}

func (s *Session) showTranscript() {
	s.printf("----- transcript -----\n%s\n----------------------\n", s.transcript)
}

func (s *Session) printState() {
	file := s.file
	if file == "" {
		file = "(none)"
	}
	model := string(s.model)
	if model == "" {
		model = "(none)"
	}
	status := s.status
	if status == "" {
		status = "idle"
	}
	s.printf("File:   %s\nModel:  %s\nStatus: %s\n", file, model, status)
}

func (s *Session) printHelp() {
	s.printf(`Commands:
  open <path> | open #N   select an audio file (%s)
  ls [dir]                list audio files in dir
  model <size>            select the model size (%s)
  models                  list model sizes
  transcribe | t          start transcribing the selected file
  cancel                  abort the running transcription
  status                  show the current selection and status
  show                    print the last transcript again
  quit                    leave
`, s.filter.Pattern(), strings.Join(whisper.SizeNames(), "|"))
}

func (s *Session) warn(message string) {
	s.printf("Warning: %s\n", message)
}

func (s *Session) printf(format string, args ...any) {
	fmt.Fprintf(s.out, format, args...)
}
