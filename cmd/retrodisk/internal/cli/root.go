// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package cli implements the retrodisk commands.
package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

type app struct {
	v      *viper.Viper
	cfg    Config
	logger *zap.Logger

	configFile string
	verbose    bool
}

// NewCommand builds the root command.
func NewCommand() *cobra.Command {
	a := &app{
		v:      viper.New(),
		logger: zap.NewNop(),
	}

	root := &cobra.Command{
		Use:   "retrodisk",
		Short: "Inspect the partitions of retro computer disk images",
		Long: `retrodisk finds the partition scheme of an Apple II or classic Macintosh
disk image (APM, CFFA, MicroDrive, FocusDrive, DOS-800, MacTS, PPM) and
lists its partitions, optionally recognizing the filesystem in each.

Images ending in .zst are decompressed in memory and opened read-only.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(*cobra.Command, []string) {
			a.logger.Sync() //nolint:errcheck
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "config file (default is ./retrodisk.yaml or $HOME/.config/retrodisk/retrodisk.yaml)")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	flags.StringP("output", "o", "table", "output format (table, json, yaml)")
	flags.String("log-level", "warn", "log level (debug, info, warn, error)")

	a.v.BindPFlag("output", flags.Lookup("output"))       //nolint:errcheck
	a.v.BindPFlag("log_level", flags.Lookup("log-level")) //nolint:errcheck

	root.AddCommand(
		a.probeCommand(),
		a.schemesCommand(),
	)

	return root
}

func (a *app) setup(*cobra.Command, []string) error {
	cfg, err := loadConfig(a.v, a.configFile)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel, a.verbose)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = logger

	return nil
}

func newLogger(level string, verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()

	if verbose {
		cfg = zap.NewDevelopmentConfig()
		level = "debug"
	}

	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}

	cfg.Level = lvl

	return cfg.Build()
}
