package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"luminakraft-launcher/logger"
	"luminakraft-launcher/model"
	"luminakraft-launcher/ui"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Lists catalog modpacks and their local status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a := bootstrap(configDir)
		defer a.close()
		return listModpacks(cmd, a)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status <modpack>",
	Short: "Shows the status of one modpack",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := bootstrap(configDir)
		defer a.close()

		st, err := a.controller.Status(args[0])
		if err != nil {
			return errors.New(describeError(err))
		}
		d, _ := a.catalog.Get(args[0])
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s (%s)\n", ui.Bold.Render(d.Name), d.ID)
		fmt.Fprintf(out, "  Status:    %s\n", ui.RenderStatus(st.Status, 0))
		fmt.Fprintf(out, "  Catalog:   %s\n", d.Version)
		if inst, ok, err := a.instances.Get(d.ID); err == nil && ok {
			fmt.Fprintf(out, "  Installed: %s (%s)\n", inst.Version, inst.InstalledAt.Format("2006-01-02 15:04"))
		}
		if d.ServerIP != "" {
			fmt.Fprintf(out, "  Server:    %s\n", d.ServerIP)
		}
		if st.ErrorKind != "" {
			fmt.Fprintf(out, "  Error:     %s (%s)\n", st.ErrorMessage, st.ErrorKind)
		}
		return nil
	},
}

// lifecycleCommand builds one of the install/update/repair commands, which
// all render progress the same way.
func lifecycleCommand(use, short, verb string, action func(a *app) func(context.Context, string, func(model.Progress)) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <modpack>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := bootstrap(configDir)
			defer a.close()

			id := args[0]
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			logger.Log.Infow("Running lifecycle command", zap.String("command", use), zap.String("modpack", id))
			run := action(a)
			return runWithProgress(fmt.Sprintf("%s %s", verb, id), fmt.Sprintf("%s is ready to play.", id), func(onProgress func(model.Progress)) error {
				return run(ctx, id, onProgress)
			})
		},
	}
}

var (
	installCmd = lifecycleCommand("install", "Downloads and installs a modpack", "Installing",
		func(a *app) func(context.Context, string, func(model.Progress)) error { return a.controller.Install })
	updateCmd = lifecycleCommand("update", "Updates an installed modpack to the catalog version", "Updating",
		func(a *app) func(context.Context, string, func(model.Progress)) error { return a.controller.Update })
	repairCmd = lifecycleCommand("repair", "Deletes and reinstalls a modpack", "Repairing",
		func(a *app) func(context.Context, string, func(model.Progress)) error { return a.controller.Repair })
)

var launchCmd = &cobra.Command{
	Use:   "launch <modpack>",
	Short: "Starts the game for an installed modpack",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := bootstrap(configDir)
		defer a.close()

		if err := a.controller.Launch(cmd.Context(), args[0], nil); err != nil {
			return errors.New(describeError(err))
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.Success.Render("Game started."))
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <modpack>",
	Short: "Removes an installed modpack",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := bootstrap(configDir)
		defer a.close()

		if err := a.controller.Delete(cmd.Context(), args[0]); err != nil {
			return errors.New(describeError(err))
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.Success.Render("Deleted "+args[0]+"."))
		return nil
	},
}

func listModpacks(cmd *cobra.Command, a *app) error {
	out := cmd.OutOrStdout()
	entries := a.catalog.List()
	if len(entries) == 0 {
		fmt.Fprintln(out, "The catalog is empty.")
		return nil
	}

	fmt.Fprintln(out, ui.Header.Render(fmt.Sprintf("%-20s %-32s %-12s %-15s", "ID", "Name", "Version", "Status")))
	for _, d := range entries {
		st, err := a.controller.Status(d.ID)
		if err != nil {
			logger.Log.Warnw("Failed to read modpack status", zap.String("modpack", d.ID), zap.Error(err))
			continue
		}
		fmt.Fprintf(out, " %-20s %-32s %-12s %s\n", truncate(d.ID, 20), truncate(d.Name, 32), truncate(d.Version, 12), ui.RenderStatus(st.Status, 15))
	}
	return nil
}

func truncate(s string, maxLen int) string {
	if len(s) > maxLen {
		return s[:maxLen-3] + "..."
	}
	return s
}

func init() {
	rootCmd.AddCommand(listCmd, statusCmd, installCmd, updateCmd, repairCmd, launchCmd, deleteCmd)
}
