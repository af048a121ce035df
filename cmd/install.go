package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"github.com/kennyg/folio/internal/app"
	"github.com/kennyg/folio/internal/artifact"
	"github.com/kennyg/folio/internal/catalog"
	"github.com/kennyg/folio/internal/install"
	"github.com/kennyg/folio/internal/ui"
)

var installCmd = &cobra.Command{
	Use:     "install [id...]",
	Aliases: []string{"add", "i"},
	Short:   "Install catalogue items into .github",
	Long: `Install catalogue items into the workspace's .github folder.

Items are chosen by id, or by --kind/--tag, or all at once with --all.
When a destination already exists, --on-conflict decides what happens:
  ask        prompt for each file (default on a terminal)
  overwrite  replace the existing file
  rename     keep both, writing <name>.copy-<n>
  skip       leave the existing file alone (default otherwise)

Installing requires a trusted workspace: pass --trust or add the
workspace root to trustedWorkspaces in your user config.

Examples:
  folio install code-review
  folio install --kind prompt --tag go --on-conflict rename
  folio install --all --trust`,
	RunE: runInstall,
}

var (
	installKinds      []string
	installTags       []string
	installAll        bool
	installOnConflict string
	installTrust      bool
	installOffline    bool
)

func init() {
	installCmd.Flags().StringSliceVarP(&installKinds, "kind", "k", nil, "Install every item of these kinds")
	installCmd.Flags().StringSliceVarP(&installTags, "tag", "t", nil, "Install every item carrying one of these tags")
	installCmd.Flags().BoolVar(&installAll, "all", false, "Install the whole catalogue")
	installCmd.Flags().StringVar(&installOnConflict, "on-conflict", "", "ask, overwrite, rename or skip")
	installCmd.Flags().BoolVar(&installTrust, "trust", false, "Trust this workspace for this run")
	installCmd.Flags().BoolVar(&installOffline, "offline", false, "Use the cached index")
}

func interactive() bool {
	return ui.IsTTY && term.IsTerminal(os.Stdin.Fd())
}

func conflictResolver(mode string) (install.Resolver, error) {
	if mode == "" {
		mode = "skip"
		if interactive() {
			mode = "ask"
		}
	}
	if mode == "ask" {
		if !interactive() {
			logger.Warn("not a terminal, conflicts will be skipped")
			return install.FixedResolver(install.DecisionSkip), nil
		}
		return &ui.PromptResolver{}, nil
	}
	d, err := install.ParseDecision(mode)
	if err != nil {
		return nil, err
	}
	return install.FixedResolver(d), nil
}

func runInstall(cmd *cobra.Command, args []string) error {
	kinds, err := parseKinds(installKinds)
	if err != nil {
		return err
	}
	filter := catalog.Filter{IDs: args, Kinds: kinds, Tags: installTags}
	if filter.IsZero() && !installAll {
		return errors.New("nothing selected; name item ids or use --kind, --tag or --all")
	}
	resolver, err := conflictResolver(installOnConflict)
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	idx, err := a.LoadIndex(cmd.Context(), installOffline)
	if err != nil {
		return err
	}
	items, err := app.SelectItems(idx.Doc, filter)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(items) == 0 {
		fmt.Fprint(out, ui.NoResults(""))
		return nil
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, ui.SectionHeader("Installing"))
	fmt.Fprintln(out, ui.InfoLine(fmt.Sprintf("%d items from %s @ %s", len(items), a.Repo, cfg.Ref)))
	fmt.Fprintln(out)

	report, err := a.InstallItems(cmd.Context(), items, app.InstallOptions{Resolver: resolver, Trust: installTrust})
	printReport(cmd, report)
	if err != nil {
		return err
	}
	if report.Err() != nil {
		return errReported
	}
	return nil
}

func printReport(cmd *cobra.Command, report *install.Report) {
	if report == nil {
		return
	}
	out := cmd.OutOrStdout()
	for _, e := range report.Installed {
		fmt.Fprintf(out, "  %s %s %s\n", ui.StatusOK(), ui.KindBadge(e.Kind), ui.RenderCode(e.DestPath))
	}
	for _, s := range report.Skipped {
		fmt.Fprintf(out, "  %s %s %s\n", ui.StatusSkip(), s.ItemID, ui.RenderDim("("+s.Dest+" exists)"))
	}
	for _, f := range report.Failed {
		fmt.Fprintf(out, "  %s %s %s\n", ui.StatusError(), f.ItemID, ui.RenderError(artifact.Describe(f.Err)))
		if flagDebug {
			fmt.Fprintf(out, "      %s\n", ui.RenderDim(f.Err.Error()))
		}
	}
	if len(report.Installed)+len(report.Skipped)+len(report.Failed) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, ui.ConflictSummary(len(report.Installed), len(report.Skipped), len(report.Failed)))
	}
}
