package config

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/autostand/internal/logger"
)

// ConfirmMode selects when commands are corroborated by the watcher.
type ConfirmMode string

const (
	// ConfirmAuto confirms when the endpoint host matches a confirm host pattern.
	ConfirmAuto ConfirmMode = "auto"
	// ConfirmAlways always confirms.
	ConfirmAlways ConfirmMode = "always"
	// ConfirmNever never confirms.
	ConfirmNever ConfirmMode = "never"
)

// Config holds the client settings.
type Config struct {
	// Endpoint is the controller address: host:port or an https URL.
	Endpoint string `yaml:"endpoint"`
	// StandID is the stand every command targets.
	StandID int `yaml:"stand_id"`
	// Timeout bounds each operation.
	Timeout time.Duration `yaml:"timeout"`
	// LogLevel is the zap level name.
	LogLevel string `yaml:"log_level"`
	// TokenSecret signs bearer tokens; empty sends none.
	TokenSecret string `yaml:"token_secret,omitempty"`
	// ResponseLog configures the response log file.
	ResponseLog ResponseLog `yaml:"response_log"`
	// Confirm configures out-of-band confirmation.
	Confirm Confirm `yaml:"confirm"`
	// Watch configures the event source of the confirmation watcher.
	Watch Watch `yaml:"watch"`
}

// ResponseLog configures the append-only response log.
type ResponseLog struct {
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// Confirm configures when and how commands are confirmed.
type Confirm struct {
	Mode ConfirmMode `yaml:"mode"`
	// HostPatterns are path.Match patterns of externally confirmable hosts.
	HostPatterns []string `yaml:"host_patterns"`
	// Timeout bounds the wait for a confirmation event.
	Timeout time.Duration `yaml:"timeout"`
	// URLFilter must be contained in a matching event's URL; defaults to the endpoint host.
	URLFilter string `yaml:"url_filter"`
}

// Watch configures the event source: a command to run or a file to follow.
type Watch struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args,flow"`
	File    string   `yaml:"file"`
	// LogLevel overrides the log level of the watcher only.
	LogLevel string `yaml:"log_level,omitempty"`
}

// Enabled reports whether an event source is configured.
func (w Watch) Enabled() bool {
	return strings.TrimSpace(w.Command) != "" || strings.TrimSpace(w.File) != ""
}

const (
	// DefaultConfigFilename is the default filename for client settings.
	DefaultConfigFilename = "autostand-settings.yaml"

	// DefaultEnvFilename is the default .env overlay.
	DefaultEnvFilename = ".env"

	// DefaultResponseLogFilename is the default response log path.
	DefaultResponseLogFilename = "autostand-responses.log"

	// DefaultTimeout is the default operation timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultConfirmTimeout is the default confirmation wait.
	DefaultConfirmTimeout = 20 * time.Second

	// DefaultLogLevel is the default zap level.
	DefaultLogLevel = "info"

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

// DefaultHostPatterns are the hosts whose webhooks are observable out of band.
func DefaultHostPatterns() []string {
	return []string{"*.workers.dev"}
}

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errEndpointRequired is returned when the endpoint is missing.
	errEndpointRequired = errors.New("endpoint must be provided")
	// errStandIDRequired is returned for a non-positive stand id.
	errStandIDRequired = errors.New("stand_id must be positive")
	// errUnknownConfirmMode is returned for a confirm mode other than auto, always or never.
	errUnknownConfirmMode = errors.New("unknown confirm mode")
	// errUnknownLogLevel is returned for an unparseable log level.
	errUnknownLogLevel = errors.New("unknown log level")
)

// Load reads client settings from path, overlays the environment and the
// env file, and validates the result. A missing file at the default path is
// treated as empty settings.
func Load(path, envPath string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFilename
	}

	var cfg Config

	contents, err := os.ReadFile(filepath.Clean(path))
	switch {
	case err == nil:
		if err = yaml.Unmarshal(contents, &cfg); err != nil {
			return nil, fmt.Errorf("unmarshal settings: %w", err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("read settings: %w", err)
	}

	if err = applyEnv(&cfg, envPath); err != nil {
		return nil, err
	}

	if err = Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes settings to path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions: the file may hold the token secret.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate fills defaults and checks required fields.
func Validate(settings *Config) error {
	if settings == nil {
		return errConfigIsNotSet
	}

	settings.Endpoint = strings.TrimSpace(settings.Endpoint)
	if settings.Endpoint == "" {
		return errEndpointRequired
	}

	if settings.StandID <= 0 {
		return errStandIDRequired
	}

	if settings.Timeout <= 0 {
		settings.Timeout = DefaultTimeout
	}

	if settings.LogLevel == "" {
		settings.LogLevel = DefaultLogLevel
	}

	if _, ok := logger.ParseLogLevel(settings.LogLevel); !ok {
		return fmt.Errorf("%w: %q", errUnknownLogLevel, settings.LogLevel)
	}

	if settings.Watch.LogLevel != "" {
		if _, ok := logger.ParseLogLevel(settings.Watch.LogLevel); !ok {
			return fmt.Errorf("%w: watch %q", errUnknownLogLevel, settings.Watch.LogLevel)
		}
	}

	if settings.ResponseLog.Path == "" {
		settings.ResponseLog.Path = DefaultResponseLogFilename
	}

	return validateConfirm(&settings.Confirm)
}

func validateConfirm(confirm *Confirm) error {
	if confirm.Mode == "" {
		confirm.Mode = ConfirmAuto
	}

	mode, err := ParseConfirmMode(string(confirm.Mode))
	if err != nil {
		return err
	}

	confirm.Mode = mode

	if confirm.HostPatterns == nil {
		confirm.HostPatterns = DefaultHostPatterns()
	}

	for _, pattern := range confirm.HostPatterns {
		if _, err := path.Match(pattern, ""); err != nil {
			return fmt.Errorf("invalid host pattern %q: %w", pattern, err)
		}
	}

	if confirm.Timeout <= 0 {
		confirm.Timeout = DefaultConfirmTimeout
	}

	return nil
}

// ParseConfirmMode parses auto, always or never.
func ParseConfirmMode(s string) (ConfirmMode, error) {
	switch mode := ConfirmMode(strings.ToLower(strings.TrimSpace(s))); mode {
	case ConfirmAuto, ConfirmAlways, ConfirmNever:
		return mode, nil
	default:
		return "", fmt.Errorf("%w: %q", errUnknownConfirmMode, s)
	}
}
