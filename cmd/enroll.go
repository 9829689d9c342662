package cmd

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-clusterer/internal/cluster"
	"github.com/kozaktomas/face-clusterer/internal/enrollment"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll USER_ID FILES...",
	Short: "Register face photos for a user",
	Long: `Add the faces of single-person photos to a user's enrollment. Photos with
no face or more than one face are skipped and reported.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().Bool("json", false, "Output as JSON")
}

func runEnroll(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	var images []enrollmentImage
	for _, p := range args[1:] {
		img, err := readImage(p)
		images = append(images, enrollmentImage{path: p, img: img, err: err})
	}

	res, err := a.enrollment.Register(ctx, args[0], validImages(images))
	if err != nil && !errors.Is(err, enrollment.ErrNoUsableFaces) {
		return fmt.Errorf("enrollment failed: %w", err)
	}
	if res != nil {
		res.Skipped = append(unreadable(images), res.Skipped...)
	}

	if mustGetBool(cmd, "json") {
		if perr := printJSON(res); perr != nil {
			return perr
		}
		return err
	}

	if res != nil {
		for _, s := range res.Skipped {
			fmt.Printf("Skipped %s: %s\n", s.FileName, s.Reason)
		}
		fmt.Printf("User %s: added %d of %d photo(s), %d vector(s) total", res.UserID, res.Added, res.Submitted, res.Total)
		if res.Clustered {
			fmt.Print(", clustered")
		}
		fmt.Println()
		for _, sim := range res.Similarities {
			fmt.Printf("  similarity to %s: %.3f\n", sim.UserID, sim.Similarity)
		}
	}
	return err
}

// enrollmentImage is one CLI argument with its read outcome.
type enrollmentImage struct {
	path string
	img  cluster.Image
	err  error
}

func validImages(images []enrollmentImage) []cluster.Image {
	out := make([]cluster.Image, 0, len(images))
	for _, ei := range images {
		if ei.err == nil {
			out = append(out, ei.img)
		}
	}
	return out
}

// unreadable reports files that never reached face detection.
func unreadable(images []enrollmentImage) []enrollment.SkippedImage {
	var out []enrollment.SkippedImage
	for _, ei := range images {
		if ei.err != nil {
			out = append(out, enrollment.SkippedImage{
				FileName: filepath.Base(ei.path),
				Reason:   ei.err.Error(),
			})
		}
	}
	return out
}
