package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fmueller/whisperdesk/internal/audio"
	"github.com/fmueller/whisperdesk/internal/clipboard"
	"github.com/fmueller/whisperdesk/internal/config"
	"github.com/fmueller/whisperdesk/internal/download"
	"github.com/fmueller/whisperdesk/internal/history"
	"github.com/fmueller/whisperdesk/internal/job"
	"github.com/fmueller/whisperdesk/internal/logging"
	"github.com/fmueller/whisperdesk/internal/platform"
	"github.com/fmueller/whisperdesk/internal/telemetry"
	"github.com/fmueller/whisperdesk/internal/ui"
	"github.com/fmueller/whisperdesk/internal/version"
	"github.com/fmueller/whisperdesk/internal/whisper"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/spf13/cobra"
)

type appState struct {
	verbose      bool
	jsonLogs     bool
	noProgress   bool
	configPath   string
	model        string
	modelDir     string
	language     string
	engine       string
	autoDownload bool
	pollInterval time.Duration
	timeout      time.Duration
	history      bool
	trace        bool
	copyEmpty    bool

	cfg    config.Config
	logger *zap.Logger

	// loader replaces the whisper backend; tests use it to avoid the engine.
	loader        whisper.Loader
	copyFn        func(ctx context.Context, value string) error
	downloadFile  func(ctx context.Context, opts download.Options) error
	isTerminalFn  func() bool
	traceWriter   io.Writer
	resolvedModel whisper.ModelSize
}

func newAppState() *appState {
	defaults := config.Default()
	return &appState{
		model:        defaults.Model,
		language:     defaults.Language,
		engine:       defaults.Engine,
		autoDownload: defaults.AutoDownload,
		pollInterval: defaults.PollInterval(),
		history:      defaults.History.Enabled,
		copyFn:       clipboard.CopyText,
		cfg:          defaults,
	}
}

func NewRootCmd() *cobra.Command {
	return newRootCmd(newAppState())
}

func newRootCmd(app *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "whisperdesk",
		Short: "Transcribe audio files with a local whisper model",
		Long: `whisperdesk transcribes audio files offline with whisper.cpp models.

Without a subcommand it starts an interactive session: pick a file and a
model size, start a transcription and keep working while it runs.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version.Resolve(),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return app.prepare(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.runSession(cmd)
		},
	}

	cmd.SetVersionTemplate("{{.Name}} v{{.Version}}\n")

	bindLoggingFlags(cmd, app)
	bindProgressFlag(cmd, app)
	bindModelFlags(cmd, app)
	bindLanguageAndModelDownloadFlags(cmd, app)
	bindJobFlags(cmd, app)

	cmd.AddCommand(newTranscribeCmd(app))
	cmd.AddCommand(newModelsCmd(app))
	cmd.AddCommand(newSetupCmd(app))
	cmd.AddCommand(newHistoryCmd(app))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func bindLoggingFlags(cmd *cobra.Command, app *appState) {
	cmd.PersistentFlags().BoolVar(&app.verbose, "verbose", app.verbose, "Enable verbose logs")
	cmd.PersistentFlags().BoolVar(&app.jsonLogs, "json", app.jsonLogs, "Enable JSON logging")
	cmd.PersistentFlags().BoolVar(&app.trace, "trace", app.trace, "Print job spans and a metrics summary to stderr")
	cmd.PersistentFlags().StringVar(&app.configPath, "config", app.configPath, "Config file (default: per-user config dir; \"\" disables)")
}

func bindProgressFlag(cmd *cobra.Command, app *appState) {
	cmd.PersistentFlags().BoolVar(&app.noProgress, "no-progress", app.noProgress, "Disable progress indicators")
}

func bindModelFlags(cmd *cobra.Command, app *appState) {
	cmd.PersistentFlags().StringVar(&app.model, "model", app.model, "Model size: "+joinSizes())
	cmd.PersistentFlags().StringVar(&app.modelDir, "model-dir", app.modelDir, "Directory where models are stored")
	cmd.PersistentFlags().StringVar(&app.engine, "engine", app.engine, "Whisper engine: bundled|native")
}

func bindLanguageAndModelDownloadFlags(cmd *cobra.Command, app *appState) {
	cmd.PersistentFlags().StringVar(&app.language, "language", app.language, "Language code (auto|en|de|...) for transcription")
	cmd.PersistentFlags().BoolVar(&app.autoDownload, "auto-download", app.autoDownload, "Automatically download missing models")
}

func bindJobFlags(cmd *cobra.Command, app *appState) {
	cmd.PersistentFlags().DurationVar(&app.pollInterval, "poll-interval", app.pollInterval, "How often the result slot is polled")
	cmd.PersistentFlags().DurationVar(&app.timeout, "timeout", app.timeout, "Abort a transcription after this long; 0 disables")
	cmd.PersistentFlags().BoolVar(&app.history, "history", app.history, "Record finished jobs in the local history database")
	cmd.PersistentFlags().BoolVar(&app.copyEmpty, "copy-empty", app.copyEmpty, "Copy blank transcripts to clipboard")
}

// prepare builds the logger and the effective config: defaults, then the
// config file, then WHISPERDESK_* variables, then explicitly set flags.
func (a *appState) prepare(cmd *cobra.Command) error {
	a.logger = logging.New(logging.Options{Verbose: a.verbose, JSON: a.jsonLogs})

	flags := cmd.Flags()
	path := ""
	required := false
	switch {
	case flags.Changed("config"):
		path = a.configPath
		required = path != ""
	default:
		resolved, err := platform.ResolveConfigPath("")
		if err != nil {
			a.logger.Debug("no default config location", zap.Error(err))
		} else {
			path = resolved
		}
	}

	cfg, err := config.Load(path, required)
	if err != nil {
		return err
	}

	if flags.Changed("model") {
		cfg.Model = a.model
	}
	if flags.Changed("model-dir") {
		cfg.ModelDir = a.modelDir
	}
	if flags.Changed("engine") {
		cfg.Engine = a.engine
	}
	if flags.Changed("language") {
		cfg.Language = a.language
	}
	if flags.Changed("auto-download") {
		cfg.AutoDownload = a.autoDownload
	}
	if flags.Changed("poll-interval") {
		cfg.PollIntervalMS = int(a.pollInterval / time.Millisecond)
	}
	if flags.Changed("timeout") {
		cfg.JobTimeoutMS = int(a.timeout / time.Millisecond)
	}
	if flags.Changed("history") {
		cfg.History.Enabled = a.history
	}
	if flags.Changed("trace") {
		cfg.Telemetry.Trace = a.trace
	}
	cfg.Language = sanitizeLanguage(cfg.Language)

	if err := cfg.Validate(); err != nil {
		return err
	}
	size, err := whisper.ParseModelSize(cfg.Model)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.resolvedModel = size
	a.logger.Debug("configuration loaded",
		zap.String("config", path),
		zap.String("model", cfg.Model),
		zap.String("engine", cfg.Engine),
		zap.String("language", cfg.Language),
		zap.Duration("poll_interval", cfg.PollInterval()),
		zap.Duration("timeout", cfg.JobTimeout()),
	)
	return nil
}

// runtime bundles what a transcription needs: the runner with its loader,
// the optional history store and the telemetry pipeline.
type runtime struct {
	runner   *job.Runner
	backend  *whisper.Backend
	store    *history.Store
	shutdown telemetry.ShutdownFunc
	logger   *zap.Logger
}

func (a *appState) openRuntime(ctx context.Context) (*runtime, error) {
	shutdown, err := telemetry.Setup(ctx, telemetry.Options{
		Trace:   a.cfg.Telemetry.Trace,
		Version: version.Resolve(),
		Writer:  a.traceWriter,
		Logger:  a.log(),
	})
	if err != nil {
		return nil, fmt.Errorf("initialize telemetry: %w", err)
	}
	rt := &runtime{shutdown: shutdown, logger: a.log()}

	loader := a.loader
	if loader == nil {
		modelDir, err := a.modelStorageDir()
		if err != nil {
			_ = shutdown(ctx)
			return nil, err
		}
		rt.backend = whisper.NewBackend(whisper.BackendOptions{
			ModelDir:     modelDir,
			Language:     a.cfg.Language,
			EngineKind:   a.cfg.Engine,
			AutoDownload: a.cfg.AutoDownload,
			NoProgress:   !a.progressEnabled(),
			Logger:       a.log(),
			DownloadFn:   a.downloadFn(),
		})
		loader = rt.backend
	}

	opts := []job.Option{
		job.WithLogger(a.log()),
		job.WithTimeout(a.cfg.JobTimeout()),
	}
	if a.cfg.History.Enabled {
		store, err := a.openHistory(ctx)
		if err != nil {
			a.log().Warn("job history unavailable; continuing without it", zap.Error(err))
		} else {
			rt.store = store
			opts = append(opts, job.WithCompletionHook(store.Hook(context.WithoutCancel(ctx))))
		}
	}

	rt.runner = job.NewRunner(loader, opts...)
	return rt, nil
}

// Close stops the runner first so the completion hook has finished writing
// before the store goes away.
func (rt *runtime) Close(ctx context.Context) {
	rt.runner.Close()
	if rt.store != nil {
		if err := rt.store.Close(); err != nil {
			rt.logger.Warn("failed to close history", zap.Error(err))
		}
	}
	if rt.backend != nil {
		if err := rt.backend.Close(); err != nil {
			rt.logger.Warn("failed to close whisper engine", zap.Error(err))
		}
	}
	if err := rt.shutdown(context.WithoutCancel(ctx)); err != nil {
		rt.logger.Warn("failed to flush telemetry", zap.Error(err))
	}
}

func (a *appState) runSession(cmd *cobra.Command) error {
	ctx := cmd.Context()
	rt, err := a.openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	session := ui.NewSession(ui.Options{
		In:           cmd.InOrStdin(),
		Out:          cmd.OutOrStdout(),
		Runner:       rt.runner,
		Filter:       audio.NewFilter(a.cfg.Extensions),
		Model:        a.resolvedModel,
		PollInterval: a.cfg.PollInterval(),
		Installed:    a.modelInstalled,
		Logger:       a.log(),
	})
	return session.Run(ctx)
}

func (a *appState) openHistory(ctx context.Context) (*history.Store, error) {
	path, err := platform.ResolveHistoryPath(a.cfg.History.Path)
	if err != nil {
		return nil, err
	}
	return history.Open(ctx, path, a.cfg.History.Limit, a.log())
}

func (a *appState) modelStorageDir() (string, error) {
	dir, err := platform.ResolveModelDir(a.cfg.ModelDir)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create model directory %s: %w", dir, err)
	}
	return dir, nil
}

func (a *appState) modelInstalled(size whisper.ModelSize) bool {
	dir, err := platform.ResolveModelDir(a.cfg.ModelDir)
	if err != nil {
		return false
	}
	resolved, err := whisper.ResolveModel(size, dir)
	return err == nil && !resolved.NeedsDownload
}

func (a *appState) downloadFn() func(ctx context.Context, opts download.Options) error {
	if a.downloadFile == nil {
		return download.DownloadFile
	}
	return a.downloadFile
}

func (a *appState) log() *zap.Logger {
	if a.logger == nil {
		return zap.NewNop()
	}
	return a.logger
}

func (a *appState) progressEnabled() bool {
	if a.noProgress {
		return false
	}
	if a.isTerminalFn != nil {
		return a.isTerminalFn()
	}
	return term.IsTerminal(int(os.Stderr.Fd()))
}
