// Package config loads the notifier configuration from a YAML file, overlays
// values from the environment (and an optional .env file), applies defaults
// and validates the result.
package config
