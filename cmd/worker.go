package cmd

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/docpipe/docpipe/internal/server"
	"github.com/docpipe/docpipe/internal/taskengine"
	"github.com/docpipe/docpipe/internal/worker"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Poll the task engine and serve pipeline stages",
	Long: `Starts the stage worker: it polls the external task engine for leased
tasks on the configured topics, runs the matching pipeline stage, and
reports completion or failure. Retry policy lives in the engine.`,
	RunE: runWorker,
}

func init() {
	workerCmd.Flags().String("engine-url", "", "task engine base URL (overrides config)")
	workerCmd.Flags().String("worker-id", "", "worker identity (overrides config)")
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if v, _ := cmd.Flags().GetString("engine-url"); v != "" {
		cfg.Worker.EngineURL = v
	}
	if v, _ := cmd.Flags().GetString("worker-id"); v != "" {
		cfg.Worker.WorkerID = v
	}
	if cfg.Worker.EngineURL == "" {
		return errors.New("worker.engine_url is not configured")
	}

	logger := newLogger()
	p, err := openPipeline(cfg, logger)
	if err != nil {
		return err
	}
	defer p.Close()

	engine := taskengine.NewClient(cfg.Worker.EngineURL, cfg.Worker.WorkerID)
	w, err := worker.New(engine, p.stages.Registry(), cfg.Worker, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Server.Enabled {
		srv := server.New(server.Config{Port: cfg.Server.Port, AllowAll: cfg.Server.AllowAll},
			p.jobs, p.assets, p.vectors, p.collection, logger)
		go func() {
			if err := srv.Start(); err != nil {
				logger.Error("ops server stopped", "error", err)
			}
		}()
		defer srv.Shutdown(context.Background())
	}

	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
