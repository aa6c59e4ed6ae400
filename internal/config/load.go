package config

import (
	"fmt"
	"os"

	flags "github.com/jessevdk/go-flags"
	"gopkg.in/yaml.v3"
)

// LoadConfig parses CLI args into a fresh Config, then layers a YAML file
// over the defaults when --configfile is given, then re-applies the CLI
// args so flags passed on the command line take precedence over the file.
func LoadConfig(args []string) (*Config, error) {
	cfg := NewConfig()

	parser := flags.NewParser(cfg, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		return nil, fmt.Errorf("parsing command line flags: %w", err)
	}

	if cfg.ConfigFile != "" {
		raw, err := os.ReadFile(cfg.ConfigFile)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}

		if _, err := parser.ParseArgs(args); err != nil {
			return nil, fmt.Errorf("reapplying command line flags: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// DefaultConfigFilename is switchgeard's conventional config file name.
// LoadConfig does not fall back to it: no file is read unless
// --configfile is given.
func DefaultConfigFilename() string {
	return defaultConfigFilename
}
