package cmd

import (
	"github.com/spf13/cobra"
)

// defaultCmd represents the command that runs when no subcommand is specified
var defaultCmd = &cobra.Command{
	Use:    "default",
	Short:  "Default command when no subcommand is provided",
	Long:   `Lists the catalog and the local status of every modpack.`,
	Hidden: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return listCmd.RunE(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(defaultCmd)
	// Run defaultCmd when no subcommand is provided
	rootCmd.Args = cobra.NoArgs
	rootCmd.RunE = defaultCmd.RunE
}
