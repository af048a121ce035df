package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kennyg/folio/internal/app"
	"github.com/kennyg/folio/internal/ui"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration, access and workspace state",
	Long: `Verify that folio can reach the configured catalogue and write to this workspace.

Checks the configuration files in effect, the allowlist, GitHub credentials,
the remote repository and ref, the index cache and the install receipt.`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func runDoctor(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out)
	fmt.Fprintln(out, ui.SectionHeader("Diagnosing"))
	fmt.Fprintln(out)

	checks := a.Doctor(cmd.Context())
	for _, c := range checks {
		badge := ui.StatusOK()
		switch c.Level {
		case app.LevelWarn:
			badge = ui.StatusWarn()
		case app.LevelFail:
			badge = ui.StatusError()
		}
		fmt.Fprintf(out, "  %s %-10s %s\n", badge, c.Name, ui.RenderMuted(c.Detail))
	}
	fmt.Fprint(out, ui.PageFooter())

	if !app.Healthy(checks) {
		return errReported
	}
	return nil
}
