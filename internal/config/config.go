// Package config resolves client settings from defaults, the YAML config
// file, the environment and command-line flags, in that order.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/asynkron/openx/internal/logging"
)

const (
	DefaultBaseURL = "http://127.0.0.1:8000"
	DefaultTimeout = 120 * time.Second
)

// Environment variables understood by the client.
const (
	EnvBaseURL        = "OPENX_BASE_URL"
	EnvTimeout        = "OPENX_TIMEOUT"
	EnvConversationID = "OPENX_CONVERSATION_ID"
	EnvLogFile        = "OPENX_LOG_FILE"
	EnvLogLevel       = "OPENX_LOG_LEVEL"
)

// Options is the resolved client configuration.
type Options struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"-"`

	// ConversationID pins the chat conversation. Empty means a fresh tui-<uuid>.
	ConversationID string `yaml:"conversation_id"`

	// LogFile receives structured logs. Empty disables logging since the TUI owns the terminal.
	LogFile  string `yaml:"log_file"`
	LogLevel string `yaml:"log_level"`
}

// Defaults returns the built-in settings.
func Defaults() Options {
	o := Options{}
	o.setDefaults()
	return o
}

func (o *Options) setDefaults() {
	if strings.TrimSpace(o.BaseURL) == "" {
		o.BaseURL = DefaultBaseURL
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if strings.TrimSpace(o.LogLevel) == "" {
		o.LogLevel = string(logging.LogLevelInfo)
	}
}

// Validate checks the resolved options.
func (o *Options) Validate() error {
	parsed, err := url.Parse(o.BaseURL)
	if err != nil {
		return fmt.Errorf("config: base URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("config: base URL %q must use http or https", o.BaseURL)
	}
	if parsed.Host == "" {
		return fmt.Errorf("config: base URL %q has no host", o.BaseURL)
	}
	if o.Timeout < time.Second {
		return fmt.Errorf("config: timeout %s is below one second", o.Timeout)
	}
	if _, err := logging.ParseLevel(o.LogLevel); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Level returns the parsed log level, falling back to INFO.
func (o *Options) Level() logging.LogLevel {
	level, err := logging.ParseLevel(o.LogLevel)
	if err != nil {
		return logging.LogLevelInfo
	}
	return level
}

// DefaultPath is ~/.openx/config.yaml, or empty when no home directory is known.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ""
	}
	return filepath.Join(home, ".openx", "config.yaml")
}

// LoadDotEnv loads .env files into the process environment. A missing file is
// fine; anything else is reported.
func LoadDotEnv(files ...string) error {
	if err := godotenv.Load(files...); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return fmt.Errorf("config: load .env: %w", err)
		}
	}
	return nil
}

// Load resolves defaults, then the YAML file at path, then the environment
// seen through lookup. A missing file is ignored unless required is set.
func Load(path string, required bool, lookup func(string) (string, bool)) (Options, error) {
	var o Options
	o.setDefaults()

	if path != "" {
		if err := o.mergeFile(path, required); err != nil {
			return Options{}, err
		}
	}
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if err := o.mergeEnv(lookup); err != nil {
		return Options{}, err
	}
	o.setDefaults()
	return o, nil
}

func (o *Options) mergeFile(path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	var raw fileOptions
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	fromFile := raw.Options
	if strings.TrimSpace(raw.Timeout) != "" {
		d, err := ParseTimeout(raw.Timeout)
		if err != nil {
			return fmt.Errorf("config: %s: timeout: %w", path, err)
		}
		fromFile.Timeout = d
	}
	o.overlay(fromFile)
	return nil
}

// fileOptions reads timeout as text so the file accepts the same forms as
// OPENX_TIMEOUT ("90", "90s", "2m").
type fileOptions struct {
	Options `yaml:",inline"`
	Timeout string `yaml:"timeout"`
}

func (o *Options) mergeEnv(lookup func(string) (string, bool)) error {
	var fromEnv Options
	if v, ok := lookup(EnvBaseURL); ok {
		fromEnv.BaseURL = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvTimeout); ok && strings.TrimSpace(v) != "" {
		d, err := ParseTimeout(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", EnvTimeout, err)
		}
		fromEnv.Timeout = d
	}
	if v, ok := lookup(EnvConversationID); ok {
		fromEnv.ConversationID = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvLogFile); ok {
		fromEnv.LogFile = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvLogLevel); ok {
		fromEnv.LogLevel = strings.TrimSpace(v)
	}
	o.overlay(fromEnv)
	return nil
}

// overlay copies every non-zero field of src onto o.
func (o *Options) overlay(src Options) {
	if src.BaseURL != "" {
		o.BaseURL = src.BaseURL
	}
	if src.Timeout > 0 {
		o.Timeout = src.Timeout
	}
	if src.ConversationID != "" {
		o.ConversationID = src.ConversationID
	}
	if src.LogFile != "" {
		o.LogFile = src.LogFile
	}
	if src.LogLevel != "" {
		o.LogLevel = src.LogLevel
	}
}

// Apply overlays flag values; zero values leave the current setting alone.
func (o *Options) Apply(flags Options) {
	o.overlay(flags)
}

// ParseTimeout accepts a Go duration ("90s", "2m") or whole seconds ("90").
func ParseTimeout(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if secs, err := strconv.Atoi(raw); err == nil {
		if secs <= 0 {
			return 0, fmt.Errorf("timeout must be positive, got %q", raw)
		}
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", raw, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("timeout must be positive, got %q", raw)
	}
	return d, nil
}
