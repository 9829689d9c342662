package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-clusterer/internal/cluster"
)

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap FILES...",
	Short: "Seed identities from a first batch of photos",
	Long: `Cluster the faces of an unlabeled batch of photos into initial identities.
Faces that do not belong to any cluster are recorded as noise.

Bootstrap refuses to run when identities already exist. Use --force to
replace them.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBootstrap,
}

func init() {
	rootCmd.AddCommand(bootstrapCmd)

	bootstrapCmd.Flags().Bool("force", false, "Replace existing identities")
	bootstrapCmd.Flags().Bool("json", false, "Output as JSON")
}

func runBootstrap(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	force := mustGetBool(cmd, "force")
	jsonOutput := mustGetBool(cmd, "json")

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	images := a.loadImages(args)
	if len(images) == 0 {
		return fmt.Errorf("no readable photos among %d file(s)", len(args))
	}

	res, err := a.engine.Bootstrap(ctx, images, force)
	if err != nil {
		if errors.Is(err, cluster.ErrAlreadyBootstrapped) {
			for _, img := range images {
				_ = a.uploads.Delete(img.Name)
			}
		}
		return fmt.Errorf("bootstrap failed: %w", err)
	}

	if jsonOutput {
		return printJSON(res)
	}

	printFileResults(res.Files)
	fmt.Printf("\nIdentities: %d", len(res.Identities))
	if len(res.Identities) > 0 {
		fmt.Printf(" (%s)", strings.Join(res.Identities, ", "))
	}
	fmt.Printf("\nNoise faces: %d\n", res.Noise)
	return nil
}
