package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	debugLog bool
	jsonLog  bool
)

var rootCmd = &cobra.Command{
	Use:   "face-clusterer",
	Short: "Group photos into person albums by face",
	Long: `Face Clusterer detects faces in uploaded photos and groups them into
per-person albums. New faces are matched against a rolling representative
of every known identity; manual overrides and merges correct mistakes, and
enrolled users can be checked for attendance on group photos.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().BoolVar(&debugLog, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonLog, "json-log", false, "Log as JSON")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
