package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fmueller/whisperdesk/internal/audio"
	"github.com/fmueller/whisperdesk/internal/whisper"
	"gopkg.in/yaml.v3"
)

type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	Limit   int    `yaml:"limit"`
}

type TelemetryConfig struct {
	Trace bool `yaml:"trace"`
}

type Config struct {
	Model          string          `yaml:"model"`
	ModelDir       string          `yaml:"model_dir"`
	Language       string          `yaml:"language"`
	Engine         string          `yaml:"engine"`
	AutoDownload   bool            `yaml:"auto_download"`
	PollIntervalMS int             `yaml:"poll_interval_ms"`
	JobTimeoutMS   int             `yaml:"job_timeout_ms"`
	Extensions     []string        `yaml:"extensions"`
	History        HistoryConfig   `yaml:"history"`
	Telemetry      TelemetryConfig `yaml:"telemetry"`
}

func Default() Config {
	return Config{
		Model:          string(whisper.DefaultModel),
		Language:       "auto",
		Engine:         whisper.EngineBundled,
		AutoDownload:   true,
		PollIntervalMS: 100,
		Extensions:     append([]string(nil), audio.DefaultExtensions...),
		History: HistoryConfig{
			Enabled: true,
			Limit:   20,
		},
	}
}

// Load reads path over the defaults. A missing file is not an error unless
// required is set.
func Load(path string, required bool) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist) && !required:
		case err != nil:
			return cfg, fmt.Errorf("read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config file %s: %w", path, err)
			}
		}
	}

	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if _, err := whisper.ParseModelSize(c.Model); err != nil {
		return fmt.Errorf("config model: %w", err)
	}
	switch c.Engine {
	case whisper.EngineBundled, whisper.EngineNative:
	default:
		return fmt.Errorf("config engine must be %s or %s, got %q", whisper.EngineBundled, whisper.EngineNative, c.Engine)
	}
	if c.PollIntervalMS <= 0 {
		return fmt.Errorf("config poll_interval_ms must be positive, got %d", c.PollIntervalMS)
	}
	if c.JobTimeoutMS < 0 {
		return fmt.Errorf("config job_timeout_ms must not be negative, got %d", c.JobTimeoutMS)
	}
	if c.History.Limit <= 0 {
		return fmt.Errorf("config history.limit must be positive, got %d", c.History.Limit)
	}
	return nil
}

func (c Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

func (c Config) JobTimeout() time.Duration {
	return time.Duration(c.JobTimeoutMS) * time.Millisecond
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.Model, "WHISPERDESK_MODEL")
	overrideString(&cfg.ModelDir, "WHISPERDESK_MODEL_DIR")
	overrideString(&cfg.Language, "WHISPERDESK_LANGUAGE")
	overrideString(&cfg.Engine, "WHISPERDESK_ENGINE")
	overrideBool(&cfg.AutoDownload, "WHISPERDESK_AUTO_DOWNLOAD")
	overrideInt(&cfg.PollIntervalMS, "WHISPERDESK_POLL_INTERVAL_MS")
	overrideInt(&cfg.JobTimeoutMS, "WHISPERDESK_JOB_TIMEOUT_MS")
	overrideBool(&cfg.History.Enabled, "WHISPERDESK_HISTORY")
	overrideString(&cfg.History.Path, "WHISPERDESK_HISTORY_PATH")
}

func overrideString(target *string, key string) {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		*target = strings.TrimSpace(v)
	}
}

func overrideBool(target *bool, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			*target = parsed
		}
	}
}

func overrideInt(target *int, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			*target = parsed
		}
	}
}
