// Package config loads, validates and saves the YAML settings of the
// autostand client and simulator.
//
// Client settings may be overridden from the environment or a .env file.
package config
