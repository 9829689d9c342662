package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var mergeCmd = &cobra.Command{
	Use:   "merge A B",
	Short: "Merge two identities",
	Long: `Merge identity A into identity B. When only A has a registered name the
direction flips so the named identity survives.`,
	Args: cobra.ExactArgs(2),
	RunE: runMerge,
}

func init() {
	rootCmd.AddCommand(mergeCmd)

	mergeCmd.Flags().Bool("json", false, "Output as JSON")
}

func runMerge(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	res, err := a.engine.Merge(ctx, args[0], args[1])
	if err != nil {
		return fmt.Errorf("merge failed: %w", err)
	}
	if mustGetBool(cmd, "json") {
		return printJSON(res)
	}
	fmt.Printf("Merged %s into %s (%d face(s) relabeled)\n", res.SourceID, res.TargetID, res.Relabeled)
	return nil
}
