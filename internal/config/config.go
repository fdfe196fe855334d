// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/chatdesk/internal/util"
)

// =============================================================================
// CONFIG TYPES
// =============================================================================

// Config is the top-level chatdesk configuration.
type Config struct {
	API     APIConfig     `toml:"api" json:"api"`
	Storage StorageConfig `toml:"storage" json:"storage"`
	UI      UIConfig      `toml:"ui" json:"ui"`
	Audio   AudioConfig   `toml:"audio" json:"audio"`
	Logging LoggingConfig `toml:"logging" json:"logging"`
}

// APIConfig describes how to reach the assistant backend.
type APIConfig struct {
	// BaseURL is the backend root, e.g. http://localhost:8000.
	BaseURL string `toml:"base_url" json:"base_url"`

	// TimeoutSecs bounds every request. Chat replies can be slow.
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs"`

	// RequestsPerSecond throttles outgoing requests. Zero disables the limiter.
	RequestsPerSecond float64 `toml:"requests_per_second" json:"requests_per_second"`
	Burst             int     `toml:"burst" json:"burst"`
}

// StorageConfig selects the key/value backend holding the token and theme.
type StorageConfig struct {
	// Backend is one of "file", "sqlite" or "memory".
	Backend string `toml:"backend" json:"backend"`

	// Path is the file or database location. Empty means a file under ConfigDir.
	Path string `toml:"path" json:"path"`
}

// UIConfig holds front-end settings.
type UIConfig struct {
	TypingPlaceholder string `toml:"typing_placeholder" json:"typing_placeholder"`
	SidebarOpen       bool   `toml:"sidebar_open" json:"sidebar_open"`
	RenderMarkdown    bool   `toml:"render_markdown" json:"render_markdown"`
}

// AudioConfig controls what happens with synthesized speech.
type AudioConfig struct {
	// Player is a command line that receives the downloaded file as its last
	// argument, e.g. "mpv --no-video". Empty only saves the file.
	Player string `toml:"player" json:"player"`

	// Dir is where audio files are written. Empty means ConfigDir/audio.
	Dir string `toml:"dir" json:"dir"`
}

// LoggingConfig configures the zerolog sink.
type LoggingConfig struct {
	Level  string `toml:"level" json:"level"`
	Format string `toml:"format" json:"format"` // "text" or "json"
	File   string `toml:"file" json:"file"`
}

// Storage backends.
const (
	StorageFile   = "file"
	StorageSQLite = "sqlite"
	StorageMemory = "memory"
)

// DefaultBaseURL is used when nothing else is configured.
const DefaultBaseURL = "http://localhost:8000"

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns a configuration with all defaults filled in.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:           DefaultBaseURL,
			TimeoutSecs:       120,
			RequestsPerSecond: 5,
			Burst:             10,
		},
		Storage: StorageConfig{
			Backend: StorageFile,
		},
		UI: UIConfig{
			TypingPlaceholder: "Assistant is typing...",
			SidebarOpen:       true,
			RenderMarkdown:    true,
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "text",
		},
	}
}

// fillDefaults fills in values that were explicitly blanked.
// Booleans are left alone since files are decoded on top of Default().
func fillDefaults(cfg *Config) {
	defaults := Default()

	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = defaults.API.BaseURL
	}
	if cfg.API.TimeoutSecs == 0 {
		cfg.API.TimeoutSecs = defaults.API.TimeoutSecs
	}
	if cfg.API.Burst == 0 {
		cfg.API.Burst = defaults.API.Burst
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = defaults.Storage.Backend
	}
	if cfg.UI.TypingPlaceholder == "" {
		cfg.UI.TypingPlaceholder = defaults.UI.TypingPlaceholder
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = defaults.Logging.Level
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = defaults.Logging.Format
	}
	cfg.API.BaseURL = strings.TrimRight(cfg.API.BaseURL, "/")
}

// =============================================================================
// PATH HELPERS
// =============================================================================

// ConfigDir returns the chatdesk configuration directory.
// CHATDESK_HOME overrides the default of ~/.chatdesk.
func ConfigDir() (string, error) {
	if dir := os.Getenv("CHATDESK_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".chatdesk"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// StoragePath resolves the key/value location for the configured backend.
func (c *Config) StoragePath() (string, error) {
	if c.Storage.Path != "" {
		return c.Storage.Path, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	if c.Storage.Backend == StorageSQLite {
		return filepath.Join(dir, "state.db"), nil
	}
	return filepath.Join(dir, "state.json"), nil
}

// AudioDir resolves where synthesized speech is saved.
func (c *Config) AudioDir() (string, error) {
	if c.Audio.Dir != "" {
		return c.Audio.Dir, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "audio"), nil
}

// ensureSecurePermissions tightens config file permissions to 0600.
// SECURITY: config may point at credential storage.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD / SAVE
// =============================================================================

// Load reads the default config location. TOML wins over JSON; with neither
// present the defaults are returned. Environment overrides always apply.
func Load() (*Config, error) {
	tomlPath, err := ConfigPathTOML()
	if err == nil {
		if _, statErr := os.Stat(tomlPath); statErr == nil {
			return LoadFromPath(tomlPath)
		}
	}

	jsonPath, err := ConfigPathJSON()
	if err == nil {
		if _, statErr := os.Stat(jsonPath); statErr == nil {
			return LoadFromPath(jsonPath)
		}
	}

	cfg := Default()
	cfg.ApplyEnvOverrides()
	fillDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFromPath loads a specific file. Files ending in .json are decoded as
// JSON, anything else as TOML.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if err := ensureSecurePermissions(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	if strings.HasSuffix(path, ".json") {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read JSON config from %s: %w", path, err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode JSON config from %s: %w", path, err)
		}
	} else {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode TOML config from %s: %w", path, err)
		}
	}

	cfg.ApplyEnvOverrides()
	fillDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SaveTOML writes cfg to path with 0600 permissions.
// RELIABILITY: atomic write so a crash never leaves a truncated config.
func SaveTOML(cfg *Config, path string) error {
	var b strings.Builder
	b.WriteString("# chatdesk configuration file\n")
	b.WriteString("# Environment variables prefixed with CHATDESK_ override these values.\n\n")

	if err := toml.NewEncoder(&b).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, []byte(b.String()), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - CHATDESK_API_URL: overrides api.base_url
//   - CHATDESK_STORAGE: overrides storage.backend
//   - CHATDESK_STORAGE_PATH: overrides storage.path
//   - CHATDESK_LOG_LEVEL: overrides logging.level
//   - CHATDESK_LOG_FORMAT: overrides logging.format
//   - CHATDESK_LOG_FILE: overrides logging.file
//   - CHATDESK_AUDIO_PLAYER: overrides audio.player
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("CHATDESK_API_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("CHATDESK_STORAGE"); v != "" {
		c.Storage.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("CHATDESK_STORAGE_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("CHATDESK_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("CHATDESK_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("CHATDESK_LOG_FILE"); v != "" {
		c.Logging.File = v
	}
	if v := os.Getenv("CHATDESK_AUDIO_PLAYER"); v != "" {
		c.Audio.Player = v
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the configuration and returns every problem found.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if u, err := url.Parse(c.API.BaseURL); err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		errs = append(errs, ValidationError{
			Field:   "api.base_url",
			Message: fmt.Sprintf("must be an absolute http(s) URL, got %q", c.API.BaseURL),
		})
	}
	if c.API.TimeoutSecs < 0 {
		errs = append(errs, ValidationError{Field: "api.timeout_secs", Message: "must not be negative"})
	}
	if c.API.RequestsPerSecond < 0 {
		errs = append(errs, ValidationError{Field: "api.requests_per_second", Message: "must not be negative"})
	}
	if c.API.Burst < 0 {
		errs = append(errs, ValidationError{Field: "api.burst", Message: "must not be negative"})
	}

	switch c.Storage.Backend {
	case StorageFile, StorageSQLite, StorageMemory:
	default:
		errs = append(errs, ValidationError{
			Field:   "storage.backend",
			Message: fmt.Sprintf("must be one of file, sqlite, memory, got %q", c.Storage.Backend),
		})
	}

	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "error", "fatal", "panic", "disabled":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("unknown level %q", c.Logging.Level),
		})
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("must be text or json, got %q", c.Logging.Format),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// DOT NOTATION ACCESS
// =============================================================================

// Get retrieves a value by its dotted key, e.g. "api.base_url".
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set assigns a value by its dotted key, converting from string as needed.
func (c *Config) Set(key, value string) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%s: invalid integer %q", key, value)
		}
		field.SetInt(int64(n))
	case reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("%s: invalid number %q", key, value)
		}
		field.SetFloat(f)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%s: invalid boolean %q", key, value)
		}
		field.SetBool(b)
	default:
		return fmt.Errorf("%s: unsupported type %s", key, field.Type())
	}
	return nil
}

// Keys lists every dotted key in a stable order.
func Keys() []string {
	var keys []string
	t := reflect.TypeOf(Config{})
	for i := 0; i < t.NumField(); i++ {
		section := t.Field(i)
		for j := 0; j < section.Type.NumField(); j++ {
			keys = append(keys, tomlName(section)+"."+tomlName(section.Type.Field(j)))
		}
	}
	sort.Strings(keys)
	return keys
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	parts := strings.Split(key, ".")
	if len(parts) != 2 {
		return reflect.Value{}, fmt.Errorf("invalid key %q: expected section.name", key)
	}

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		next, ok := fieldByTOMLName(v, part)
		if !ok {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		v = next
	}
	return v, nil
}

func fieldByTOMLName(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		if tomlName(t.Field(i)) == name {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

func tomlName(f reflect.StructField) string {
	tag := f.Tag.Get("toml")
	if tag == "" {
		return strings.ToLower(f.Name)
	}
	return strings.Split(tag, ",")[0]
}
