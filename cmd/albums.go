package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-clusterer/internal/cluster"
)

var albumsCmd = &cobra.Command{
	Use:   "albums [ALBUM_ID]",
	Short: "List person albums or show one album",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAlbums,
}

func init() {
	rootCmd.AddCommand(albumsCmd)

	albumsCmd.Flags().Bool("json", false, "Output as JSON")
}

func runAlbums(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	jsonOutput := mustGetBool(cmd, "json")

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if len(args) == 1 {
		detail, err := a.engine.AlbumFaces(ctx, args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(detail)
		}
		printAlbumDetail(detail)
		return nil
	}

	albums, err := a.engine.Albums(ctx)
	if err != nil {
		return fmt.Errorf("listing albums: %w", err)
	}
	if jsonOutput {
		return printJSON(albums)
	}

	if len(albums) == 0 {
		fmt.Println("No albums found.")
		return nil
	}
	fmt.Printf("%-20s %-8s %-6s %s\n", "ID", "TYPE", "COUNT", "TITLE")
	for _, al := range albums {
		fmt.Printf("%-20s %-8s %-6d %s\n", al.ID, al.Type, al.Count, al.Title)
	}
	return nil
}

func printAlbumDetail(d *cluster.AlbumDetail) {
	fmt.Printf("%s (%s): %d\n", d.Title, d.Type, d.Count)
	for _, f := range d.Faces {
		marker := ""
		if f.TooSmall {
			marker = " (too small)"
		}
		if f.Override != "" {
			marker += " override"
		}
		fmt.Printf("  %s  %s%s\n", f.FaceID, f.FileName, marker)
	}
	for _, p := range d.Photos {
		fmt.Printf("  %s\n", p)
	}
}
