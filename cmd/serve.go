package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-clusterer/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the Face Clusterer HTTP API.
The API accepts photo uploads, keeps person albums up to date, and exposes
overrides, merges, enrollment and attendance checks.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides WEB_PORT)")
	serveCmd.Flags().String("host", "", "Host to bind to (overrides WEB_HOST)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}

	if port := mustGetInt(cmd, "port"); port > 0 {
		a.cfg.Web.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		a.cfg.Web.Host = host
	}

	server := web.NewServer(a.cfg, web.Deps{
		Engine:     a.engine,
		Enrollment: a.enrollment,
		Storage:    a.uploads,
		Log:        a.log,
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	fmt.Printf("Starting Face Clusterer API on http://%s:%d\n", a.cfg.Web.Host, a.cfg.Web.Port)
	fmt.Println("Press Ctrl+C to stop")

	var startErr error
	select {
	case startErr = <-errCh:
	case <-sigChan:
		fmt.Println("\nShutting down...")
		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
		if err := server.Shutdown(shutdownCtx); err != nil {
			a.log.Error("error during shutdown", "error", err)
		}
		shutdownCancel()
		startErr = <-errCh
	}

	// In-flight requests are done, flush the ledger and the index.
	if err := a.close(); err != nil {
		a.log.Error("closing stores", "error", err)
	}
	if startErr != nil {
		return fmt.Errorf("starting server: %w", startErr)
	}
	return nil
}
