package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/DeividasMat/deal-website-sub000/internal/cli"
	"github.com/DeividasMat/deal-website-sub000/internal/ingest"
)

func runSweep(args []string) int {
	fs := flag.NewFlagSet("sweep", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 20*time.Minute, "Command timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "sweep does not accept positional arguments")
		return 2
	}

	cfg, logger, err := loadConfigAndLogger(envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	rt, err := buildRuntime(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("sweep setup failed")
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer rt.Close()

	result, err := rt.coordinator.Sweep(ctx)
	switch {
	case errors.Is(err, ingest.ErrBusy):
		fmt.Fprintln(os.Stderr, "Another ingestion run or sweep is in progress")
		return 1
	case err != nil:
		fmt.Fprintf(os.Stderr, "Sweep failed: %v\n", err)
		return 1
	}
	if err := printJSON(result); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
		return 1
	}
	return 0
}
