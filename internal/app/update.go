package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/DeividasMat/deal-website-sub000/internal/cli"
	"github.com/DeividasMat/deal-website-sub000/internal/db"
)

func runUpdateDate(args []string) int {
	fs := flag.NewFlagSet("update-date", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	id := fs.Int64("id", 0, "Article ID")
	date := fs.String("date", "", "New date in YYYY-MM-DD (UTC)")
	reason := fs.String("reason", "", "Why the date is being corrected")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *id <= 0 {
		fmt.Fprintln(os.Stderr, "--id must be > 0")
		return 2
	}
	newDate, err := parseUTCDate(*date)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid --date: %v\n", err)
		return 2
	}
	if strings.TrimSpace(*reason) == "" {
		fmt.Fprintln(os.Stderr, "--reason is required")
		return 2
	}

	ctx, cancel, pool, err := connectReadPool(*timeout, envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer cancel()
	defer pool.Close()

	previous, err := pool.UpdateDate(ctx, *id, newDate, *reason)
	if err != nil {
		if db.IsNoRows(err) {
			fmt.Fprintf(os.Stderr, "Article %d not found\n", *id)
			return 1
		}
		fmt.Fprintf(os.Stderr, "Failed to update date: %v\n", err)
		return 1
	}
	fmt.Printf("article %d moved from %s to %s\n", *id, previous.Format(time.DateOnly), newDate.Format(time.DateOnly))
	return 0
}

func runDelete(args []string) int {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	id := fs.Int64("id", 0, "Article ID")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *id <= 0 {
		fmt.Fprintln(os.Stderr, "--id must be > 0")
		return 2
	}

	ctx, cancel, pool, err := connectReadPool(*timeout, envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer cancel()
	defer pool.Close()

	article, err := pool.GetByID(ctx, *id)
	if err != nil {
		if db.IsNoRows(err) {
			fmt.Fprintf(os.Stderr, "Article %d not found\n", *id)
			return 1
		}
		fmt.Fprintf(os.Stderr, "Failed to load article: %v\n", err)
		return 1
	}
	if err := pool.Delete(ctx, article.ID); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to delete article: %v\n", err)
		return 1
	}
	fmt.Printf("deleted article %d (%s)\n", article.ID, truncateForTable(article.Title, 80))
	return 0
}
