package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kennyg/folio/internal/artifact"
	"github.com/kennyg/folio/internal/ui"
)

var removeCmd = &cobra.Command{
	Use:     "remove <id...>",
	Aliases: []string{"rm", "uninstall"},
	Short:   "Remove installed items",
	Long: `Delete the files installed for the given ids and drop them from the receipt.

Only files recorded in the receipt and still inside .github are deleted.
Receipt entries pointing anywhere else are dropped and their files left alone.

Examples:
  folio remove code-review
  folio rm reviewer house-style`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRemove,
}

func runRemove(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	res, err := a.RemoveItems(cmd.Context(), args)
	if errors.Is(err, artifact.ErrNoWorkspace) {
		return err
	}
	out := cmd.OutOrStdout()
	seen := make(map[string]bool)
	for _, e := range res.Removed {
		seen[e.ID] = true
		fmt.Fprintln(out, ui.SuccessLine("removed "+e.DestPath))
	}
	for _, r := range res.Refused {
		seen[r.Entry.ID] = true
		logger.Warn("receipt entry refused", zap.String("item", r.Entry.ID), zap.Error(r.Err))
		fmt.Fprintln(out, ui.ErrorLine(fmt.Sprintf("%s is outside .github; dropped from the receipt, file left alone", r.Entry.DestPath)))
	}
	for _, id := range args {
		if !seen[id] {
			fmt.Fprintln(out, ui.WarningLine(fmt.Sprintf("%s is not installed", id)))
		}
	}

	if err != nil {
		return err
	}
	if len(res.Refused) > 0 {
		return errReported
	}
	return nil
}
