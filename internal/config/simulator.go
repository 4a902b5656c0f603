package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Simulator holds the settings of the simulated stand controller.
type Simulator struct {
	// ListenAddress is the gRPC listen address.
	ListenAddress string `yaml:"listen_addr"`
	// Profile selects the method surface: v1, v2 or v3.
	Profile string `yaml:"profile"`
	// StandID is the only stand the controller knows.
	StandID int `yaml:"stand_id"`
	// MotionDuration is how long a raise or lower takes.
	MotionDuration time.Duration `yaml:"motion_duration"`
	// StateFile persists the stand state between runs.
	StateFile string `yaml:"state_file"`
	// EventsFile receives one webhook line per completed actuation.
	EventsFile string `yaml:"events_file"`
	// WebhookURL is printed in event lines.
	WebhookURL string `yaml:"webhook_url"`
	// Obstructed makes every lowering fail with ULTRASONIC_BLOCKED.
	Obstructed bool `yaml:"obstructed"`
	// TokenSecret enables bearer token verification.
	TokenSecret string `yaml:"token_secret,omitempty"`
	// LogLevel is the zap level name.
	LogLevel string `yaml:"log_level"`
}

const (
	// DefaultSimulatorConfigFilename is the default filename for simulator settings.
	DefaultSimulatorConfigFilename = "autostand-sim.yaml"
	// DefaultListenAddress is the default simulator listen address.
	DefaultListenAddress = "127.0.0.1:50061"
	// DefaultProfile is the default simulator profile.
	DefaultProfile = "v3"
	// DefaultMotionDuration is the default simulated motion time.
	DefaultMotionDuration = 2 * time.Second
	// DefaultStateFilename is the default simulator state file.
	DefaultStateFilename = "autostand-sim-state.json"
	// DefaultWebhookURL is the default URL printed in event lines.
	DefaultWebhookURL = "https://autostand.workers.dev/api/autostand-webhook"
)

var errUnknownProfile = errors.New("unknown simulator profile")

// LoadSimulator reads simulator settings. A missing file at the default path
// yields the defaults.
func LoadSimulator(path string) (*Simulator, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultSimulatorConfigFilename
	}

	var cfg Simulator

	contents, err := os.ReadFile(filepath.Clean(path))
	switch {
	case err == nil:
		if err = yaml.Unmarshal(contents, &cfg); err != nil {
			return nil, fmt.Errorf("unmarshal simulator settings: %w", err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("read simulator settings: %w", err)
	}

	if err = ValidateSimulator(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ValidateSimulator fills defaults and checks the profile.
func ValidateSimulator(cfg *Simulator) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.ListenAddress == "" {
		cfg.ListenAddress = DefaultListenAddress
	}

	if cfg.Profile == "" {
		cfg.Profile = DefaultProfile
	}

	switch cfg.Profile {
	case "v1", "v2", "v3":
	default:
		return fmt.Errorf("%w: %q", errUnknownProfile, cfg.Profile)
	}

	if cfg.StandID <= 0 {
		cfg.StandID = 1
	}

	if cfg.MotionDuration <= 0 {
		cfg.MotionDuration = DefaultMotionDuration
	}

	if cfg.StateFile == "" {
		cfg.StateFile = DefaultStateFilename
	}

	if cfg.WebhookURL == "" {
		cfg.WebhookURL = DefaultWebhookURL
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}

	return nil
}
