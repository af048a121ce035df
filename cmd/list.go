package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kennyg/folio/internal/app"
	"github.com/kennyg/folio/internal/artifact"
	"github.com/kennyg/folio/internal/catalog"
	"github.com/kennyg/folio/internal/ui"
)

var listCmd = &cobra.Command{
	Use:     "list [query]",
	Aliases: []string{"ls", "search"},
	Short:   "Browse the catalogue",
	Long: `List catalogue items, optionally narrowed by kind, tag or a search term.

Examples:
  folio list
  folio list --kind prompt --tag go
  folio list review`,
	RunE: runList,
}

var (
	listKinds   []string
	listTags    []string
	listOffline bool
	listShort   bool
)

func init() {
	listCmd.Flags().StringSliceVarP(&listKinds, "kind", "k", nil, "Only these kinds (agent, prompt, instruction, always-on-instruction)")
	listCmd.Flags().StringSliceVarP(&listTags, "tag", "t", nil, "Only items carrying one of these tags")
	listCmd.Flags().BoolVar(&listOffline, "offline", false, "Use the cached index without contacting the remote")
	listCmd.Flags().BoolVar(&listShort, "short", false, "Truncate descriptions to one line")
}

func parseKinds(raw []string) ([]artifact.Kind, error) {
	var kinds []artifact.Kind
	for _, s := range raw {
		k := artifact.Kind(strings.ToLower(strings.TrimSpace(s)))
		if !k.Valid() {
			return nil, fmt.Errorf("%w: %q", artifact.ErrUnsupportedKind, s)
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

func runList(cmd *cobra.Command, args []string) error {
	kinds, err := parseKinds(listKinds)
	if err != nil {
		return err
	}
	a, err := newApp()
	if err != nil {
		return err
	}
	idx, err := a.LoadIndex(cmd.Context(), listOffline)
	if err != nil {
		return err
	}

	query := strings.Join(args, " ")
	items := catalog.Select(idx.Doc, catalog.Filter{Kinds: kinds, Tags: listTags, Query: query})

	out := cmd.OutOrStdout()
	if len(items) == 0 {
		fmt.Fprint(out, ui.NoResults(query))
		return nil
	}

	installed := installedIDs(a)

	fmt.Fprintln(out)
	fmt.Fprintln(out, ui.SectionHeader("Catalogue"))
	fmt.Fprintln(out)

	byKind := make(map[artifact.Kind][]artifact.CatalogItem)
	for _, item := range items {
		byKind[item.Kind] = append(byKind[item.Kind], item)
	}

	descWidth := ui.DescriptionWidth() - 4
	for _, k := range artifact.Kinds() {
		group := byKind[k]
		if len(group) == 0 {
			continue
		}

		count := ui.Render(lipgloss.NewStyle().Foreground(ui.DarkGray), fmt.Sprintf("(%d)", len(group)))
		fmt.Fprintf(out, "  %s %s\n\n", ui.KindBadge(k), count)

		for _, item := range group {
			name := ui.Render(lipgloss.NewStyle().Foreground(ui.White).Bold(true), item.ID)
			tag := ""
			if installed[item.ID] {
				tag = " " + ui.Render(lipgloss.NewStyle().Foreground(ui.Green), "[installed]")
			}
			fmt.Fprintf(out, "    %s %s%s\n", name, ui.RenderDim(item.Name), tag)

			if item.Description != "" {
				if listShort {
					fmt.Fprintf(out, "    %s\n", ui.RenderMuted(ui.Truncate(item.Description, descWidth)))
				} else {
					for _, line := range ui.WrapText(item.Description, descWidth) {
						fmt.Fprintf(out, "    %s\n", ui.RenderMuted(line))
					}
				}
			}
			fmt.Fprintln(out)
		}
	}

	footer := fmt.Sprintf("  %d of %d items", len(items), len(idx.Doc.Items))
	if idx.FromCache {
		footer += " (cached)"
	}
	fmt.Fprintln(out, ui.RenderMuted(footer))
	fmt.Fprint(out, ui.PageFooter())
	return nil
}

// installedIDs is best effort; listing works without a workspace
func installedIDs(a *app.App) map[string]bool {
	ids := make(map[string]bool)
	if a.Paths.WorkspaceRoot == "" {
		return ids
	}
	r, err := a.ReadManifest()
	if err != nil {
		logger.Warn("receipt ignored", zap.Error(err))
	}
	if r != nil {
		for _, e := range r.Entries {
			ids[e.ID] = true
		}
	}
	return ids
}
