package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var configDir string

var rootCmd = &cobra.Command{
	Use:   "luminakraft-launcher",
	Short: "Installs, updates and launches LuminaKraft modpacks",
	Long: `Manages local instances of the modpacks published in the LuminaKraft
catalog and keeps the launcher itself up to date.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config", ".", "directory containing the .env file")
}
