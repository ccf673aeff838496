package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Transports selectable with ATTENDANCE_TRANSPORT or api.transport.
const (
	TransportHTTP   = "http"
	TransportScript = "script"
)

// Features is the capability set assembled once at startup.
type Features struct {
	Sync                 bool
	Autocomplete         bool
	AutocompleteMinChars int
	Templates            bool
}

// Config is the resolved application configuration.
type Config struct {
	Endpoint         string
	Transport        string
	Timeout          time.Duration
	RetryAttempts    int
	RetryDelay       time.Duration
	DataDir          string
	AutosaveInterval time.Duration
	ListenAddr       string
	CORSOrigins      []string
	LogLevel         string
	TokenFile        string

	GoogleClientID     string
	GoogleClientSecret string

	Features Features
}

const (
	defaultConfigPath       = "~/.config/attendance/config.toml"
	defaultDataDir          = "~/.local/share/attendance"
	defaultTokenFile        = "~/.config/attendance/token.json"
	defaultListenAddr       = "127.0.0.1:8787"
	defaultTimeout          = 30 * time.Second
	defaultRetryAttempts    = 3
	defaultRetryDelay       = time.Second
	defaultAutosaveInterval = 5 * time.Minute
	defaultMinChars         = 2
)

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Transport:        TransportHTTP,
		Timeout:          defaultTimeout,
		RetryAttempts:    defaultRetryAttempts,
		RetryDelay:       defaultRetryDelay,
		DataDir:          mustExpand(defaultDataDir),
		AutosaveInterval: defaultAutosaveInterval,
		ListenAddr:       defaultListenAddr,
		CORSOrigins:      []string{"http://localhost:5173"},
		LogLevel:         "info",
		TokenFile:        mustExpand(defaultTokenFile),
		Features: Features{
			Sync:                 true,
			Autocomplete:         true,
			AutocompleteMinChars: defaultMinChars,
			Templates:            true,
		},
	}
}

type rawConfig struct {
	LogLevel  string `toml:"log_level"`
	TokenFile string `toml:"token_file"`
	API       struct {
		URL           string `toml:"url"`
		Transport     string `toml:"transport"`
		TimeoutMS     int    `toml:"timeout_ms"`
		RetryAttempts *int   `toml:"retry_attempts"`
		RetryDelayMS  *int   `toml:"retry_delay_ms"`
	} `toml:"api"`
	Storage struct {
		DataDir            string `toml:"data_dir"`
		AutosaveIntervalMS int    `toml:"autosave_interval_ms"`
	} `toml:"storage"`
	Server struct {
		Listen      string   `toml:"listen"`
		CORSOrigins []string `toml:"cors_origins"`
	} `toml:"server"`
	Features struct {
		Sync                 *bool `toml:"sync"`
		Autocomplete         *bool `toml:"autocomplete"`
		AutocompleteMinChars int   `toml:"autocomplete_min_chars"`
		Templates            *bool `toml:"templates"`
	} `toml:"features"`
}

// Load reads the TOML file at path (or the default location), falling back
// to defaults when it is missing, then applies environment overrides.
func Load(path string) (Config, error) {
	cfg, err := loadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string) (Config, error) {
	cfg := Default()

	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}
	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw rawConfig
	if err := toml.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if v := strings.TrimSpace(raw.LogLevel); v != "" {
		cfg.LogLevel = v
	}
	if v := strings.TrimSpace(raw.TokenFile); v != "" {
		cfg.TokenFile = mustExpand(v)
	}
	cfg.Endpoint = strings.TrimSpace(raw.API.URL)
	if v := strings.TrimSpace(raw.API.Transport); v != "" {
		cfg.Transport = v
	}
	if raw.API.TimeoutMS > 0 {
		cfg.Timeout = time.Duration(raw.API.TimeoutMS) * time.Millisecond
	}
	if raw.API.RetryAttempts != nil && *raw.API.RetryAttempts >= 0 {
		cfg.RetryAttempts = *raw.API.RetryAttempts
	}
	if raw.API.RetryDelayMS != nil && *raw.API.RetryDelayMS >= 0 {
		cfg.RetryDelay = time.Duration(*raw.API.RetryDelayMS) * time.Millisecond
	}
	if v := strings.TrimSpace(raw.Storage.DataDir); v != "" {
		cfg.DataDir = mustExpand(v)
	}
	if raw.Storage.AutosaveIntervalMS > 0 {
		cfg.AutosaveInterval = time.Duration(raw.Storage.AutosaveIntervalMS) * time.Millisecond
	}
	if v := strings.TrimSpace(raw.Server.Listen); v != "" {
		cfg.ListenAddr = v
	}
	if raw.Server.CORSOrigins != nil {
		cfg.CORSOrigins = raw.Server.CORSOrigins
	}
	if raw.Features.Sync != nil {
		cfg.Features.Sync = *raw.Features.Sync
	}
	if raw.Features.Autocomplete != nil {
		cfg.Features.Autocomplete = *raw.Features.Autocomplete
	}
	if raw.Features.AutocompleteMinChars > 0 {
		cfg.Features.AutocompleteMinChars = raw.Features.AutocompleteMinChars
	}
	if raw.Features.Templates != nil {
		cfg.Features.Templates = *raw.Features.Templates
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}
	if v, ok := get("ATTENDANCE_API_URL"); ok {
		cfg.Endpoint = v
	}
	if v, ok := get("ATTENDANCE_DATA_DIR"); ok {
		cfg.DataDir = mustExpand(v)
	}
	if v, ok := get("ATTENDANCE_TRANSPORT"); ok {
		cfg.Transport = v
	}
	if v, ok := get("ATTENDANCE_TIMEOUT_MS"); ok {
		ms, err := strconv.Atoi(v)
		if err != nil || ms <= 0 {
			return fmt.Errorf("invalid ATTENDANCE_TIMEOUT_MS %q", v)
		}
		cfg.Timeout = time.Duration(ms) * time.Millisecond
	}
	if v, ok := get("ATTENDANCE_CORS_ORIGINS"); ok {
		cfg.CORSOrigins = splitList(v)
	}
	if v, ok := get("LOG_LEVEL"); ok {
		cfg.LogLevel = v
	}
	if v, ok := get("GOOGLE_CLIENT_ID"); ok {
		cfg.GoogleClientID = v
	}
	if v, ok := get("GOOGLE_CLIENT_SECRET"); ok {
		cfg.GoogleClientSecret = v
	}
	return cfg.validate()
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c Config) validate() error {
	switch c.Transport {
	case TransportHTTP, TransportScript:
	default:
		return fmt.Errorf("unknown transport %q, want %q or %q", c.Transport, TransportHTTP, TransportScript)
	}
	return nil
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
