package main

import (
	"context"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/forecast/internal/config"
	"github.com/YuminosukeSato/forecast/internal/demand"
	"github.com/YuminosukeSato/forecast/internal/price"
	"github.com/YuminosukeSato/forecast/internal/server"
	"github.com/YuminosukeSato/forecast/pkg/log"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the forecast HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log.Setup(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Startup is all-or-nothing: a missing or unparseable artifact
	// refuses to serve rather than answering with a partial model.
	demandPipeline, err := demand.LoadPipeline(cfg.DemandModelDir, cfg.DemandEncoderDir)
	if err != nil {
		slog.Error("loading demand pipeline", log.ErrAttr(err))
		return err
	}
	pricePipeline, err := price.LoadPipeline(cfg.PriceDatasetDir, cfg.PriceModelDir, cfg.PriceDefaultStrategy)
	if err != nil {
		slog.Error("loading price pipeline", log.ErrAttr(err))
		return err
	}

	srv := &http.Server{
		Addr: cfg.ListenAddr,
		Handler: server.New(server.Deps{
			Demand: demandPipeline,
			Price:  pricePipeline,
		}),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("forecast server listening", slog.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
