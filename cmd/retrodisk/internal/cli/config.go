// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package cli

import (
	"errors"
	"fmt"
	"slices"

	"github.com/spf13/viper"
)

// Output formats.
const (
	OutputTable = "table"
	OutputJSON  = "json"
	OutputYAML  = "yaml"
)

// Config is the retrodisk configuration.
//
// Values come from flags, RETRODISK_* environment variables and retrodisk.yaml, in that order.
type Config struct {
	Output   string `mapstructure:"output"`
	LogLevel string `mapstructure:"log_level"`

	// ReadOnly opens images without write access.
	ReadOnly bool `mapstructure:"read_only"`
	// Analyze looks for a filesystem in every partition.
	Analyze bool `mapstructure:"analyze"`

	SkipSchemes []string `mapstructure:"skip_schemes"`
}

func loadConfig(v *viper.Viper, path string) (Config, error) {
	v.SetDefault("output", OutputTable)
	v.SetDefault("log_level", "warn")
	v.SetDefault("read_only", true)
	v.SetDefault("analyze", false)

	v.SetEnvPrefix("RETRODISK")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("retrodisk")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/retrodisk")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError

		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("error decoding config: %w", err)
	}

	if !slices.Contains([]string{OutputTable, OutputJSON, OutputYAML}, cfg.Output) {
		return Config{}, fmt.Errorf("unknown output format %q", cfg.Output)
	}

	return cfg, nil
}
