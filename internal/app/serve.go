package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/DeividasMat/deal-website-sub000/internal/cli"
	"github.com/DeividasMat/deal-website-sub000/internal/httpapi"
	"github.com/DeividasMat/deal-website-sub000/internal/ingest"
)

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	host := fs.String("host", "", "Host interface to bind (default HTTP_HOST)")
	port := fs.Int("port", 0, "HTTP port (default HTTP_PORT)")
	noScheduler := fs.Bool("no-scheduler", false, "Serve the API without periodic ingestion and sweeps")
	runOnStart := fs.Bool("run-on-start", false, "Start an ingestion run for today immediately")
	shutdownTimeout := fs.Duration("shutdown-timeout", 10*time.Second, "Graceful shutdown timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *port < 0 || *port > 65535 {
		fmt.Fprintln(os.Stderr, "--port must be between 1 and 65535")
		return 2
	}

	cfg, logger, err := loadConfigAndLogger(envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if *host != "" {
		cfg.HTTPHost = *host
	}
	if *port != 0 {
		cfg.HTTPPort = *port
	}

	setupCtx, setupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	rt, err := buildRuntime(setupCtx, cfg, logger)
	setupCancel()
	if err != nil {
		logger.Error().Err(err).Msg("serve setup failed")
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer rt.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := httpapi.NewServer(rt.coordinator, rt.pool, logger, httpapi.Options{
		Host:            cfg.HTTPHost,
		Port:            cfg.HTTPPort,
		AllowedOrigins:  cfg.CORSAllowedOriginsList(),
		ShutdownTimeout: *shutdownTimeout,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(gctx)
	})
	if !*noScheduler {
		scheduler := ingest.NewScheduler(rt.coordinator, logger, ingest.SchedulerOptions{
			IngestEvery: cfg.IngestScheduleInterval,
			SweepEvery:  cfg.SweepScheduleInterval,
			RunOnStart:  *runOnStart,
		})
		g.Go(func() error {
			if err := scheduler.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	err = g.Wait()
	rt.coordinator.Wait()
	if err != nil {
		logger.Error().Err(err).Str("host", cfg.HTTPHost).Int("port", cfg.HTTPPort).Msg("server failed")
		fmt.Fprintf(os.Stderr, "Server failed: %v\n", err)
		return 1
	}
	return 0
}
