package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-clusterer/internal/constants"
)

var similarCmd = &cobra.Command{
	Use:   "similar FACE_ID",
	Short: "Find faces similar to a face",
	Args:  cobra.ExactArgs(1),
	RunE:  runSimilar,
}

func init() {
	rootCmd.AddCommand(similarCmd)

	similarCmd.Flags().Int("limit", constants.DefaultSimilarLimit, "Maximum number of faces to return")
	similarCmd.Flags().Bool("json", false, "Output as JSON")
}

func runSimilar(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	limit := min(mustGetInt(cmd, "limit"), constants.MaxSimilarLimit)

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	matches, err := a.engine.SimilarFaces(ctx, args[0], limit)
	if err != nil {
		return fmt.Errorf("similar faces: %w", err)
	}
	if mustGetBool(cmd, "json") {
		return printJSON(matches)
	}

	if len(matches) == 0 {
		fmt.Println("No similar faces found.")
		return nil
	}
	for _, m := range matches {
		fmt.Printf("%s  %-12s %.3f  %s\n", m.FaceID, m.PersonID, m.Similarity, m.FileName)
	}
	return nil
}
