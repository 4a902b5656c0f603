package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment keys overriding client settings.
const (
	EnvEndpoint    = "AUTOSTAND_ENDPOINT"
	EnvStandID     = "AUTOSTAND_STAND_ID"
	EnvTokenSecret = "AUTOSTAND_TOKEN_SECRET"
)

// readDotEnv reads variables from path. Missing files are ignored.
func readDotEnv(path string) (map[string]string, error) {
	if path == "" {
		path = DefaultEnvFilename
	}

	values, err := godotenv.Read(path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}

	if err != nil {
		return nil, fmt.Errorf("read env file: %w", err)
	}

	return values, nil
}

// applyEnv overrides settings from the process environment, falling back to
// the env file. The process environment wins, as with godotenv.Load.
func applyEnv(cfg *Config, envPath string) error {
	file, err := readDotEnv(envPath)
	if err != nil {
		return err
	}

	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}

		v, ok := file[key]

		return v, ok
	}

	if v, ok := lookup(EnvEndpoint); ok && strings.TrimSpace(v) != "" {
		cfg.Endpoint = v
	}

	if v, ok := lookup(EnvStandID); ok && strings.TrimSpace(v) != "" {
		id, convErr := strconv.Atoi(strings.TrimSpace(v))
		if convErr != nil {
			return fmt.Errorf("parse %s: %w", EnvStandID, convErr)
		}

		cfg.StandID = id
	}

	if v, ok := lookup(EnvTokenSecret); ok {
		cfg.TokenSecret = v
	}

	return nil
}
