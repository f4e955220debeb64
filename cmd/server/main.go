package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kdimtricp/breedid/internal/api"
	"github.com/kdimtricp/breedid/internal/camera"
	"github.com/kdimtricp/breedid/internal/capture"
	"github.com/kdimtricp/breedid/internal/catalog"
	"github.com/kdimtricp/breedid/internal/config"
	"github.com/kdimtricp/breedid/internal/connectivity"
	"github.com/kdimtricp/breedid/internal/identification"
	"github.com/kdimtricp/breedid/internal/inference"
	"github.com/kdimtricp/breedid/internal/logging"
	"github.com/kdimtricp/breedid/internal/metrics"
)

func main() {
	configPath := flag.String("config", "", "Configuration file path")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, resolved, found, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if found {
		logger.Info("configuration loaded", slog.String("path", resolved))
	} else {
		logger.Info("no configuration file, using defaults", slog.String("path", resolved))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	device, err := camera.NewDevice(cfg.Camera, logger)
	if err != nil {
		return fmt.Errorf("init camera: %w", err)
	}

	sessions := capture.NewRegistry(capture.Options{
		Device: device,
		Constraints: camera.Constraints{
			Facing: camera.FacingEnvironment,
			Width:  cfg.Camera.Width,
			Height: cfg.Camera.Height,
		},
		JPEGQuality:        cfg.Camera.JPEGQuality,
		MaxImportDimension: cfg.Imaging.MaxImportDimension,
		MaxImportPixels:    cfg.Imaging.MaxImportPixels,
		MaxImportSize:      cfg.Server.MaxUploadSize,
		Logger:             logger,
		Metrics:            m,
	})
	defer sessions.Close()

	prober := connectivity.NewProber(cfg.Connectivity.ProbeAddress, cfg.ProbeTimeout())
	monitor := connectivity.NewMonitor(connectivity.NewSource(cfg, logger), prober.Probe(ctx), logger, m)
	if err := monitor.Start(ctx); err != nil {
		return fmt.Errorf("start connectivity monitor: %w", err)
	}
	defer monitor.Stop()

	svc := inference.New(cfg, logger)

	mailbox := identification.NewMailbox()
	app := &api.App{
		Sessions:      sessions,
		Pipeline:      identification.NewPipeline(svc, monitor, mailbox, logger, m),
		Mailbox:       mailbox,
		Catalog:       catalog.Default(),
		Monitor:       monitor,
		Metrics:       m,
		Logger:        logger,
		MaxUploadSize: cfg.Server.MaxUploadSize,
	}

	srv := &http.Server{
		Addr:              cfg.Server.Bind,
		Handler:           api.NewRouter(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("server starting",
			slog.String("bind", cfg.Server.Bind),
			slog.String("camera_driver", cfg.Camera.Driver),
			slog.Int64("max_upload_size", cfg.Server.MaxUploadSize),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		sessions.RunSweeper(gctx, cfg.SessionTTL(), 0)
		return nil
	})

	g.Go(func() error {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if n := mailbox.Prune(cfg.SessionTTL()); n > 0 {
					logger.Debug("pruned unclaimed results", slog.Int("count", n))
				}
			}
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
