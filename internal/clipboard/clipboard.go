package clipboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

var ErrUnavailable = errors.New("no clipboard command available")

const copyTimeout = 4 * time.Second

type tool struct {
	name string
	args []string
	// detach leaves the process running; xclip keeps serving the selection
	// until another client takes it.
	detach bool
}

// CopyText puts value on the system clipboard with the first available tool.
func CopyText(ctx context.Context, value string) error {
	t, err := detect(runtime.GOOS, exec.LookPath)
	if err != nil {
		return err
	}
	if t.detach {
		return copyDetached(t, value)
	}
	return copyAndWait(ctx, t, value)
}

func detect(goos string, lookPath func(string) (string, error)) (tool, error) {
	var candidates []tool
	switch goos {
	case "darwin":
		candidates = []tool{{name: "pbcopy"}}
	case "windows":
		candidates = []tool{{name: "clip.exe"}}
	default:
		candidates = []tool{
			{name: "wl-copy"},
			{name: "xclip", args: []string{"-selection", "clipboard", "-in", "-silent"}, detach: true},
			{name: "xsel", args: []string{"--clipboard", "--input"}},
		}
	}

	for _, candidate := range candidates {
		if _, err := lookPath(candidate.name); err == nil {
			return candidate, nil
		}
	}
	return tool{}, ErrUnavailable
}

func copyAndWait(ctx context.Context, t tool, value string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, copyTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, t.name, t.args...)
	cmd.Stdin = strings.NewReader(value)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("copy to clipboard timed out: %w", ctx.Err())
		}
		return fmt.Errorf("copy to clipboard with %s: %w", t.name, err)
	}
	return nil
}

func copyDetached(t tool, value string) error {
	cmd := exec.Command(t.name, t.args...)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("open clipboard stdin: %w", err)
	}
	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		return fmt.Errorf("start %s: %w", t.name, err)
	}

	_, writeErr := io.WriteString(stdin, value)
	closeErr := stdin.Close()
	if err := errors.Join(writeErr, closeErr); err != nil {
		_ = cmd.Process.Kill()
		return fmt.Errorf("write clipboard data: %w", err)
	}

	return cmd.Process.Release()
}
