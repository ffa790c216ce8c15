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

func runIngest(args []string) int {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	date := fs.String("date", defaultUTCDayString(), "Target date in YYYY-MM-DD (UTC)")
	timeout := fs.Duration("timeout", 45*time.Minute, "Command timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "ingest does not accept positional arguments")
		return 2
	}
	target, err := parseUTCDate(*date)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid --date: %v\n", err)
		return 2
	}
	if *timeout <= 0 {
		fmt.Fprintln(os.Stderr, "--timeout must be > 0")
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
		logger.Error().Err(err).Msg("ingest setup failed")
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer rt.Close()

	summary, err := rt.coordinator.Run(ctx, target)
	if errors.Is(err, ingest.ErrBusy) {
		fmt.Fprintln(os.Stderr, "Another ingestion run or sweep is in progress")
		return 1
	}
	if printErr := printJSON(summary); printErr != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", printErr)
		return 1
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ingestion run failed: %v\n", err)
		return 1
	}
	return 0
}
