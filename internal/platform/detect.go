package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

const appName = "whisperdesk"

// Env carries the inputs of directory resolution so it can be tested for
// any OS.
type Env struct {
	GOOS          string
	Home          string
	XDGDataHome   string
	XDGConfigHome string
	LocalAppData  string
	AppData       string
}

func CurrentEnv() (Env, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Env{}, fmt.Errorf("resolve user home: %w", err)
	}
	return Env{
		GOOS:          runtime.GOOS,
		Home:          home,
		XDGDataHome:   os.Getenv("XDG_DATA_HOME"),
		XDGConfigHome: os.Getenv("XDG_CONFIG_HOME"),
		LocalAppData:  os.Getenv("LOCALAPPDATA"),
		AppData:       os.Getenv("APPDATA"),
	}, nil
}

func (e Env) DataDir() (string, error) {
	if e.Home == "" {
		return "", errors.New("home directory is empty")
	}

	switch e.GOOS {
	case "linux", "freebsd", "openbsd":
		if e.XDGDataHome != "" {
			return filepath.Join(e.XDGDataHome, appName), nil
		}
		return filepath.Join(e.Home, ".local", "share", appName), nil
	case "darwin":
		return filepath.Join(e.Home, "Library", "Application Support", appName), nil
	case "windows":
		if e.LocalAppData != "" {
			return filepath.Join(e.LocalAppData, appName), nil
		}
		return filepath.Join(e.Home, "AppData", "Local", appName), nil
	default:
		return "", fmt.Errorf("unsupported OS: %s", e.GOOS)
	}
}

func (e Env) ConfigDir() (string, error) {
	if e.Home == "" {
		return "", errors.New("home directory is empty")
	}

	switch e.GOOS {
	case "linux", "freebsd", "openbsd":
		if e.XDGConfigHome != "" {
			return filepath.Join(e.XDGConfigHome, appName), nil
		}
		return filepath.Join(e.Home, ".config", appName), nil
	case "darwin":
		return filepath.Join(e.Home, "Library", "Application Support", appName), nil
	case "windows":
		if e.AppData != "" {
			return filepath.Join(e.AppData, appName), nil
		}
		return filepath.Join(e.Home, "AppData", "Roaming", appName), nil
	default:
		return "", fmt.Errorf("unsupported OS: %s", e.GOOS)
	}
}

func (e Env) ModelDir() (string, error) {
	return e.under(e.DataDir, "models")
}

func (e Env) HistoryPath() (string, error) {
	return e.under(e.DataDir, "history.db")
}

func (e Env) ConfigPath() (string, error) {
	return e.under(e.ConfigDir, "config.yaml")
}

func (e Env) under(base func() (string, error), name string) (string, error) {
	dir, err := base()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// ResolveModelDir returns override when set, otherwise the per-user default.
func ResolveModelDir(override string) (string, error) {
	if override != "" {
		return filepath.Clean(override), nil
	}
	env, err := CurrentEnv()
	if err != nil {
		return "", err
	}
	return env.ModelDir()
}

func ResolveHistoryPath(override string) (string, error) {
	if override != "" {
		return filepath.Clean(override), nil
	}
	env, err := CurrentEnv()
	if err != nil {
		return "", err
	}
	return env.HistoryPath()
}

func ResolveConfigPath(override string) (string, error) {
	if override != "" {
		return filepath.Clean(override), nil
	}
	env, err := CurrentEnv()
	if err != nil {
		return "", err
	}
	return env.ConfigPath()
}
