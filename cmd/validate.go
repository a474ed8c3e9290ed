package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"luminakraft-launcher/manifest"
	"luminakraft-launcher/ui"
)

var validateCmd = &cobra.Command{
	Use:   "validate <archive.zip>",
	Short: "Checks a modpack archive for mods that must be added manually",
	Long: `Reads the archive manifest, resolves every declared mod file through
CurseForge and reports the mods without a download URL that are also
missing from the archive overrides.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := bootstrap(configDir)
		defer a.close()

		res, err := a.validator.Validate(cmd.Context(), args[0])
		if err != nil {
			return errors.New(describeError(err))
		}
		printValidation(cmd.OutOrStdout(), res)
		if !res.CanContinue() {
			return fmt.Errorf("%d mod(s) must be resolved before continuing", len(res.TrulyMissing()))
		}
		return nil
	},
}

func printValidation(out io.Writer, res *manifest.ValidationResult) {
	m := res.Manifest
	fmt.Fprintf(out, "%s %s (Minecraft %s, %s)\n", ui.Bold.Render(m.Name), m.Version, m.Minecraft.Version, m.PrimaryLoader())
	fmt.Fprintf(out, "  Declared mods:      %d\n", len(m.Files))
	fmt.Fprintf(out, "  Without URL:        %d\n", len(res.ModsWithoutURL))
	fmt.Fprintf(out, "  Bundled overrides:  %d\n", len(res.ModsInOverrides))

	if res.PartialFailure != nil {
		fmt.Fprintln(out, ui.Warning.Render("  Some metadata could not be fetched; affected mods are treated as unavailable."))
	}

	missing := res.TrulyMissing()
	if len(missing) == 0 {
		fmt.Fprintln(out, ui.Success.Render("All mods can be installed."))
		return
	}
	fmt.Fprintln(out, ui.Failure.Render("Mods to add manually:"))
	for _, mod := range missing {
		line := "  • " + mod.String()
		if mod.WebsiteURL != "" {
			line += "  " + mod.WebsiteURL
		}
		fmt.Fprintln(out, line)
	}
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
