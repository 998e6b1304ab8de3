package admin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cloo-solutions/ragbot/internal/api/handlers"
	"github.com/cloo-solutions/ragbot/internal/jobs"
	"github.com/cloo-solutions/ragbot/internal/server"
)

const shutdownTimeout = 30 * time.Second

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the ragbot API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "", "Port to listen on (overrides RAGBOT_PORT)")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")
	cmd.Flags().Duration("reindex-every", 0, "Rebuild all namespaces on this interval while serving (0 disables)")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, log, cleanup, err := bootstrap()
	if err != nil {
		return err
	}
	defer cleanup()

	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.Port = port
	}
	noMigrate, _ := cmd.Flags().GetBool("no-migrate")

	d, err := newDeps(ctx, cfg, log, depsOptions{migrate: !noMigrate})
	if err != nil {
		return err
	}
	defer d.Close()

	chatSvc, err := d.chatService()
	if err != nil {
		return err
	}

	var reindexWorker *jobs.Worker
	if every, _ := cmd.Flags().GetDuration("reindex-every"); every > 0 {
		corpus, err := d.corpus()
		if err != nil {
			return err
		}
		job := jobs.NewIngestJob(d.indexBuilder(), corpus, log)
		reindexWorker = jobs.NewWorker(job, every, jobs.WithLogger(log))
		go reindexWorker.Start(ctx)
	}

	router := server.NewRouter(server.RouterConfig{
		Logger:      log,
		APIKeys:     cfg.APIKeys,
		ChatHandler: handlers.NewChatHandler(chatSvc),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Generation may sleep through several rate-limit backoffs.
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  2 * time.Minute,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("starting server", zap.String("port", cfg.Port), zap.String("backend", cfg.IndexBackend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}
	log.Info("shutting down")

	if reindexWorker != nil {
		reindexWorker.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("server exited")
	return nil
}
