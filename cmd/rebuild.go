package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Recompute representatives from the face ledger",
	Long: `Re-derive every identity's history and representative from the faces
recorded for it. Use this after manual edits or interrupted runs.`,
	Args: cobra.NoArgs,
	RunE: runRebuild,
}

func init() {
	rootCmd.AddCommand(rebuildCmd)
}

func runRebuild(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	res, err := a.engine.Rebuild(ctx)
	if err != nil {
		return fmt.Errorf("rebuild failed: %w", err)
	}
	fmt.Printf("Rebuilt %d, kept %d, dropped %d representative(s)\n", res.Rebuilt, res.Kept, res.Dropped)
	return nil
}
