package cmd

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/kennyg/folio/internal/artifact"
	"github.com/kennyg/folio/internal/ui"
)

var refreshCmd = &cobra.Command{
	Use:     "refresh",
	Aliases: []string{"update"},
	Short:   "Fetch the catalogue index",
	Long: `Download the catalogue index from the configured repository.

The last good index is cached and revalidated with If-None-Match, so an
unchanged catalogue costs a single 304 response.`,
	Args: cobra.NoArgs,
	RunE: runRefresh,
}

func runRefresh(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	idx, err := a.RefreshIndex(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	state := "updated"
	if idx.NotModified {
		state = "unchanged since " + humanize.Time(idx.FetchedAt)
	}
	fmt.Fprintln(out, ui.SuccessLine(fmt.Sprintf("%s @ %s: %d items, %s (%s)",
		a.Repo, cfg.Ref, len(idx.Doc.Items), humanize.IBytes(uint64(idx.Bytes)), state)))

	counts := make(map[artifact.Kind]int)
	for _, item := range idx.Doc.Items {
		counts[item.Kind]++
	}
	for _, k := range artifact.Kinds() {
		if counts[k] > 0 {
			fmt.Fprintf(out, "    %s %d\n", ui.KindBadge(k), counts[k])
		}
	}
	return nil
}
