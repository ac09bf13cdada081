// Package commands implements the inkpet command line.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BeatGlow/inkpet/internal/config"
	"github.com/BeatGlow/inkpet/internal/printer"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "inkpet",
	Short: "inkpet - e-ink pet clock",
	Long: `inkpet drives a Waveshare 2.13" e-paper pet clock: a clock, a virtual pet,
a message inbox and three buttons.

Without a subcommand it runs the display process, same as "inkpet run".
Other processes talk to it through flag files, see "inkpet send".`,
	RunE: runDisplay,
}

// Execute runs the root command.
func Execute() error {
	// Errors are printed by the printer package.
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

// SetVersionInfo sets the version reported by --version.
func SetVersionInfo(version, commit string) {
	rootCmd.Version = fmt.Sprintf("%s (commit: %s)", version, commit)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to inkpet.yml (defaults when empty)")
}

// loadConfig loads the configuration selected with --config.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		source := configPath
		if source == "" {
			source = "the built-in defaults"
		}
		return nil, printer.Error("Invalid configuration", err.Error(),
			fmt.Sprintf("Fix %s", source),
			"Check the INKPET_* and DEVICE_* environment variables",
		)
	}
	return cfg, nil
}
