package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var attendanceCmd = &cobra.Command{
	Use:   "attendance PHOTO",
	Short: "Check which enrolled users appear in a group photo",
	Long: `Detect every face in a group photo and match faces to enrolled users.
Each face and each user is matched at most once, strongest pairs first.`,
	Args: cobra.ExactArgs(1),
	RunE: runAttendance,
}

func init() {
	rootCmd.AddCommand(attendanceCmd)

	attendanceCmd.Flags().Bool("json", false, "Output as JSON")
}

func runAttendance(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	img, err := readImage(args[0])
	if err != nil {
		return err
	}
	res, err := a.enrollment.CheckAttendance(ctx, img)
	if err != nil {
		return fmt.Errorf("attendance check failed: %w", err)
	}

	if mustGetBool(cmd, "json") {
		return printJSON(res)
	}
	fmt.Printf("%d face(s) detected, %d attendee(s) in %.2fs\n", res.FacesDetected, res.Count, res.Duration)
	for _, at := range res.Attendees {
		label := at.UserID
		if at.Name != "" {
			label = fmt.Sprintf("%s (%s)", at.Name, at.UserID)
		}
		fmt.Printf("  %s: %.3f\n", label, at.Similarity)
	}
	return nil
}
