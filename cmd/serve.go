package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/docpipe/docpipe/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the read-only ops API",
	Long:  `Exposes processing jobs and knowledge assets over HTTP for inspection. Ingestion and retrieval stay on the task engine path.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().Int("port", 0, "listen port (defaults to config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger()
	p, err := openPipeline(cfg, logger)
	if err != nil {
		return err
	}
	defer p.Close()

	port, _ := cmd.Flags().GetInt("port")
	if port == 0 {
		port = cfg.Server.Port
	}

	srv := server.New(server.Config{Port: port, AllowAll: cfg.Server.AllowAll},
		p.jobs, p.assets, p.vectors, p.collection, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case <-ctx.Done():
		return srv.Shutdown(context.Background())
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
