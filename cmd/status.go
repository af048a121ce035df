package cmd

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kennyg/folio/internal/artifact"
	"github.com/kennyg/folio/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	Aliases: []string{"installed"},
	Short:   "Show what is installed in this workspace",
	Args:    cobra.NoArgs,
	RunE:    runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	r, err := a.ReadManifest()
	if err != nil {
		if !errors.Is(err, artifact.ErrManifestReadFailure) {
			return err
		}
		logger.Warn("receipt ignored", zap.String("path", a.Receipts.Path()), zap.Error(err))
		fmt.Fprintln(out, ui.WarningLine(artifact.Describe(err)))
	}

	if r == nil || len(r.Entries) == 0 {
		fmt.Fprint(out, ui.NothingInstalled())
		return nil
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, ui.SectionHeader("Installed"))
	fmt.Fprintln(out, ui.RenderMuted(fmt.Sprintf("  from %s @ %s, updated %s", r.Repo, r.Ref, humanize.Time(r.UpdatedAt))))
	fmt.Fprintln(out)

	for _, e := range r.Entries {
		version := ""
		if e.Version != "" {
			version = " " + ui.RenderDim("v"+e.Version)
		}
		fmt.Fprintf(out, "  %s %s%s\n", ui.KindBadge(e.Kind), ui.RenderHighlight(e.ID), version)
		fmt.Fprintf(out, "    %s %s\n", ui.RenderCode(e.DestPath), ui.RenderDim(humanize.Time(e.InstalledAt)))
	}
	fmt.Fprint(out, ui.PageFooter())
	return nil
}
