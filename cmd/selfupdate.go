package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"luminakraft-launcher/logger"
	"luminakraft-launcher/model"
	"luminakraft-launcher/progress"
	"luminakraft-launcher/ui"
	"luminakraft-launcher/updater"
)

var selfUpdateCmd = &cobra.Command{
	Use:   "self-update",
	Short: "Checks for and installs launcher updates",
}

var selfUpdateCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Checks the active release channel for a newer launcher",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a := bootstrap(configDir)
		defer a.close()

		cached, _ := cmd.Flags().GetBool("cached")
		var info *updater.UpdateInfo
		if cached {
			info = a.resolver.CachedUpdateInfo()
			if info == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "No recent update check is cached.")
				return nil
			}
		} else {
			var err error
			info, err = a.resolver.CheckForUpdates(cmd.Context())
			if err != nil {
				return errors.New(describeError(err))
			}
		}
		printUpdateInfo(cmd.OutOrStdout(), info)
		return nil
	},
}

var selfUpdateInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Installs the newest launcher for the active channel and restarts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a := bootstrap(configDir)
		defer a.close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		var info *updater.UpdateInfo
		err := runWithProgress("Updating launcher", "Update installed, restarting...", func(onProgress func(model.Progress)) error {
			var err error
			info, err = a.installer.InstallLatest(ctx, a.resolver, func(s progress.Snapshot) {
				onProgress(s.Progress())
			})
			return err
		})
		if err != nil {
			return err
		}
		if info != nil && !info.HasUpdate {
			fmt.Fprintf(cmd.OutOrStdout(), "Already up to date (%s).\n", info.CurrentVersion)
		}
		return nil
	},
}

var channelCmd = &cobra.Command{
	Use:       "channel [stable|experimental]",
	Short:     "Shows or switches the launcher release channel",
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{string(updater.ChannelStable), string(updater.ChannelExperimental)},
	RunE: func(cmd *cobra.Command, args []string) error {
		a := bootstrap(configDir)
		defer a.close()

		if len(args) == 1 {
			enabled := updater.Channel(args[0]) == updater.ChannelExperimental
			if err := a.prefs.SetExperimentalUpdates(enabled); err != nil {
				return fmt.Errorf("failed to save channel: %w", err)
			}
			// A cached result from the other channel no longer applies.
			if err := a.kv.Remove(updater.CacheKey); err != nil {
				logger.Log.Warnw("Failed to clear update cache", zap.Error(err))
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Release channel: %s\n", ui.Bold.Render(string(a.resolver.Channel())))
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Runs the background update checker until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a := bootstrap(configDir)
		defer a.close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		events, cancel := a.controller.Subscribe()
		defer cancel()

		a.resolver.Start(ctx)
		fmt.Fprintf(cmd.OutOrStdout(), "Watching for updates on the %s channel. Press Ctrl+C to stop.\n", a.resolver.Channel())
		for {
			select {
			case <-ctx.Done():
				return nil
			case ev := <-events:
				if ev.Terminal {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", ev.ModpackID, ev.State.Status)
				}
			}
		}
	},
}

func printUpdateInfo(out io.Writer, info *updater.UpdateInfo) {
	fmt.Fprintf(out, "Channel:  %s\n", info.Channel)
	fmt.Fprintf(out, "Current:  %s\n", info.CurrentVersion)
	latest := info.LatestVersion
	if info.IsPrerelease {
		latest += " " + ui.Warning.Render("(prerelease)")
	}
	fmt.Fprintf(out, "Latest:   %s\n", latest)
	if !info.HasUpdate {
		fmt.Fprintln(out, ui.Success.Render("The launcher is up to date."))
		return
	}
	switch u := info.Resolved.(type) {
	case updater.NativeArtifact:
		fmt.Fprintln(out, ui.Warning.Render("An update is available. Run 'self-update install' to install it."))
	case updater.RegistryRelease:
		fmt.Fprintf(out, "%s\n", ui.Warning.Render("An update is available at "+u.URL))
	}
	if info.ReleaseNotes != "" {
		fmt.Fprintf(out, "\n%s\n", info.ReleaseNotes)
	}
}

func init() {
	selfUpdateCheckCmd.Flags().Bool("cached", false, "show the last cached result instead of checking")
	selfUpdateCmd.AddCommand(selfUpdateCheckCmd, selfUpdateInstallCmd)
	rootCmd.AddCommand(selfUpdateCmd, channelCmd, watchCmd)
}
