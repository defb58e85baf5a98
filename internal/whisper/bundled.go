package whisper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"go.uber.org/zap"
)

const EnginePathEnv = "WHISPERDESK_WHISPER_PATH"

type BundledEngine struct {
	Executable string
	Logger     *zap.Logger
}

func NewBundledEngine(logger *zap.Logger) (*BundledEngine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if override := strings.TrimSpace(os.Getenv(EnginePathEnv)); override != "" {
		if err := ensureExecutable(override); err != nil {
			return nil, fmt.Errorf("%s is not executable: %w", EnginePathEnv, err)
		}
		return &BundledEngine{Executable: override, Logger: logger}, nil
	}

	self, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("resolve whisperdesk executable path: %w", err)
	}

	enginePath, err := ResolveEnginePath(self, exec.LookPath)
	if err != nil {
		return nil, err
	}

	return &BundledEngine{Executable: enginePath, Logger: logger}, nil
}

// ResolveEnginePath looks for whisper-cli next to the binary first and then
// on PATH.
func ResolveEnginePath(selfExecutable string, lookPath func(string) (string, error)) (string, error) {
	for _, candidate := range EnginePathCandidates(selfExecutable) {
		if err := ensureExecutable(candidate); err == nil {
			return candidate, nil
		}
	}

	if lookPath != nil {
		if found, err := lookPath(engineBinaryName()); err == nil {
			return found, nil
		}
	}

	return "", fmt.Errorf("whisper engine not found near %s or on PATH; install whisper.cpp or set %s to a %s binary", selfExecutable, EnginePathEnv, engineBinaryName())
}

func EnginePathCandidates(selfExecutable string) []string {
	binDir := filepath.Dir(selfExecutable)
	name := engineBinaryName()

	return []string{
		filepath.Join(binDir, "..", "libexec", "whisper", name),
		filepath.Join(binDir, "libexec", "whisper", name),
		filepath.Join(binDir, name),
	}
}

func (b *BundledEngine) Transcribe(ctx context.Context, req TranscriptionRequest) (string, error) {
	if strings.TrimSpace(req.AudioPath) == "" {
		return "", errors.New("audio path is required")
	}
	if strings.TrimSpace(req.ModelPath) == "" {
		return "", errors.New("model path is required")
	}
	if err := ensureExecutable(b.Executable); err != nil {
		return "", fmt.Errorf("whisper engine missing or not executable: %w", err)
	}

	outDir, err := os.MkdirTemp("", "whisperdesk-")
	if err != nil {
		return "", fmt.Errorf("create engine output directory: %w", err)
	}
	defer os.RemoveAll(outDir)
	outBase := filepath.Join(outDir, "transcript")

	args := []string{"-m", req.ModelPath, "-f", req.AudioPath, "-nt", "-otxt", "-of", outBase}
	if lang := strings.TrimSpace(req.Language); lang != "" && lang != "auto" {
		args = append(args, "-l", lang)
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, b.Executable, args...)
	cmd.Stdout = io.Discard
	cmd.Stderr = &stderr

	b.log().Debug("running whisper engine", zap.String("engine", b.Executable), zap.Strings("args", args))
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", classifyEngineFailure(b.Executable, err, strings.TrimSpace(stderr.String()))
	}

	content, err := os.ReadFile(outBase + ".txt")
	if err != nil {
		return "", fmt.Errorf("read whisper output: %w", err)
	}

	return strings.TrimSpace(string(content)), nil
}

func (b *BundledEngine) log() *zap.Logger {
	if b.Logger == nil {
		return zap.NewNop()
	}
	return b.Logger
}

func classifyEngineFailure(executable string, runErr error, stderr string) error {
	lowered := strings.ToLower(stderr)
	switch {
	case containsAny(lowered, "error while loading shared libraries", "cannot open shared object file", "dyld: library not loaded", "image not found"):
		return fmt.Errorf("whisper engine at %s is missing required shared libraries (%s)", executable, stderr)
	case containsAny(lowered, "illegal instruction") || containsAny(strings.ToLower(runErr.Error()), "illegal instruction"):
		return fmt.Errorf("whisper engine crashed with an illegal CPU instruction; set %s to a whisper-cli built for this CPU", EnginePathEnv)
	case stderr == "":
		return fmt.Errorf("whisper transcribe failed: %w", runErr)
	default:
		return fmt.Errorf("whisper transcribe failed: %w (%s)", runErr, lastLine(stderr))
	}
}

func containsAny(value string, patterns ...string) bool {
	for _, pattern := range patterns {
		if strings.Contains(value, pattern) {
			return true
		}
	}
	return false
}

func lastLine(value string) string {
	lines := strings.Split(strings.TrimSpace(value), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

func engineBinaryName() string {
	if runtime.GOOS == "windows" {
		return "whisper-cli.exe"
	}
	return "whisper-cli"
}

func ensureExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	if runtime.GOOS != "windows" && info.Mode()&0o111 == 0 {
		return fmt.Errorf("%s is not executable", path)
	}
	return nil
}
