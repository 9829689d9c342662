package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"

	"github.com/kozaktomas/face-clusterer/internal/cluster"
)

// printJSON writes v as indented JSON to stdout.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("photos"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)
}

func printFileResults(results []cluster.FileResult) {
	for _, fr := range results {
		if fr.Error != "" {
			fmt.Printf("%s: error: %s\n", fr.FileName, fr.Error)
			continue
		}
		fmt.Printf("%s: %d face(s)\n", fr.FileName, fr.FacesDetected)
		for _, f := range fr.Faces {
			fmt.Printf("  %s\n", describeFace(f))
		}
	}
}

func describeFace(f cluster.FaceResult) string {
	switch {
	case f.Skipped != "":
		return "skipped: " + f.Skipped
	case f.Duplicate:
		return fmt.Sprintf("%s duplicate of %s", f.FaceID, f.PersonID)
	}

	s := fmt.Sprintf("%s -> %s (%.3f)", f.FaceID, f.PersonID, f.Similarity)
	if f.NewIdentity {
		s += " new"
	}
	if f.RedirectedFrom != "" {
		s += " via " + f.RedirectedFrom
	}
	if f.TooSmall {
		s += " too small"
	}
	return s
}
