package config

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix prefixes environment overrides: TASKSYNC_FIREBASE_API_KEY -> firebase.api_key.
	EnvPrefix = "TASKSYNC_"

	maxSettingsFileSize = 1024 * 1024 // 1MB
)

// Settings are the tunable values of the client.
type Settings struct {
	Firebase FirebaseSettings `koanf:"firebase"`
	Backend  BackendSettings  `koanf:"backend"`
	Log      LogSettings      `koanf:"log"`
	Metrics  MetricsSettings  `koanf:"metrics"`
}

// FirebaseSettings identify the Firebase project.
type FirebaseSettings struct {
	APIKey     string `koanf:"api_key"`
	ProjectID  string `koanf:"project_id"`
	DatabaseID string `koanf:"database_id"`
}

// BackendSettings bound and throttle remote calls.
type BackendSettings struct {
	Timeout           time.Duration `koanf:"timeout"`
	RequestsPerSecond float64       `koanf:"requests_per_second"`
	Burst             int           `koanf:"burst"`
}

// LogSettings control the logger.
type LogSettings struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// MetricsSettings control the prometheus endpoint. Empty Addr disables it.
type MetricsSettings struct {
	Addr string `koanf:"addr"`
}

// DefaultSettings returns the built-in defaults.
func DefaultSettings() Settings {
	return Settings{
		Firebase: FirebaseSettings{DatabaseID: "(default)"},
		Backend: BackendSettings{
			Timeout:           10 * time.Second,
			RequestsPerSecond: 5,
			Burst:             5,
		},
		Log: LogSettings{Level: "warn", Format: "console"},
	}
}

// LoadSettings loads settings from a YAML file, then overrides with
// environment variables.
//
// Precedence (highest to lowest):
//  1. Environment variables (TASKSYNC_BACKEND_TIMEOUT, TASKSYNC_LOG_LEVEL, ...)
//  2. YAML file at path, if it exists
//  3. DefaultSettings
func LoadSettings(path string) (Settings, error) {
	s := DefaultSettings()
	k := koanf.New(".")

	if f, err := os.Open(path); err == nil {
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return s, fmt.Errorf("failed to stat %s: %w", path, err)
		}
		if info.Size() > maxSettingsFileSize {
			return s, fmt.Errorf("%s exceeds %d bytes", path, maxSettingsFileSize)
		}
		content, err := io.ReadAll(f)
		if err != nil {
			return s, fmt.Errorf("failed to read %s: %w", path, err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return s, fmt.Errorf("invalid %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return s, fmt.Errorf("failed to open %s: %w", path, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return s, fmt.Errorf("failed to load environment: %w", err)
	}

	if err := k.Unmarshal("", &s); err != nil {
		return s, fmt.Errorf("invalid settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return s, err
	}
	return s, nil
}

// envKey maps TASKSYNC_SECTION_SOME_KEY to section.some_key.
// Only the first underscore after the prefix separates the section.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	section, key, ok := strings.Cut(s, "_")
	if !ok {
		return s
	}
	return section + "." + key
}

// Validate rejects settings the client cannot run with.
func (s Settings) Validate() error {
	if s.Backend.Timeout <= 0 {
		return fmt.Errorf("backend.timeout must be positive")
	}
	if s.Backend.RequestsPerSecond < 0 {
		return fmt.Errorf("backend.requests_per_second must not be negative")
	}
	switch s.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("log.format must be console or json, got %q", s.Log.Format)
	}
	return nil
}

// RequireFirebase reports which Firebase settings are missing.
func (s Settings) RequireFirebase() error {
	var missing []string
	if s.Firebase.APIKey == "" {
		missing = append(missing, "firebase.api_key")
	}
	if s.Firebase.ProjectID == "" {
		missing = append(missing, "firebase.project_id")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing settings: %s", strings.Join(missing, ", "))
	}
	return nil
}
