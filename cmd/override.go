package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var overrideCmd = &cobra.Command{
	Use:   "override FACE_ID PERSON_ID",
	Short: "Reassign a face to another identity",
	Long: `Record a manual correction: the face now belongs to PERSON_ID, and every
future face matching the face's original identity is redirected there.`,
	Args: cobra.ExactArgs(2),
	RunE: runOverride,
}

func init() {
	rootCmd.AddCommand(overrideCmd)
}

func runOverride(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.engine.Override(ctx, args[0], args[1]); err != nil {
		return fmt.Errorf("override failed: %w", err)
	}
	fmt.Printf("Face %s now belongs to %s\n", args[0], args[1])
	return nil
}
