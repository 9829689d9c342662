package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show face and identity counts",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	stats, err := a.engine.Stats(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Backend:    %s\n", a.cfg.Database.Backend)
	fmt.Printf("Faces:      %d\n", stats.Faces)
	fmt.Printf("Identities: %d\n", stats.Identities)
	fmt.Printf("Users:      %d\n", len(a.enrollment.Users()))
	return nil
}
