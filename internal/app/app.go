package app

import (
	"fmt"
	"os"
	"strings"
)

// Run executes the CLI command and returns a process exit code.
func Run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 2
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "help", "--help", "-h":
		printUsage()
		return 0
	case "health":
		return runHealth(args[1:])
	case "ingest":
		return runIngest(args[1:])
	case "sweep":
		return runSweep(args[1:])
	case "articles":
		return runArticles(args[1:])
	case "runs":
		return runRuns(args[1:])
	case "update-date":
		return runUpdateDate(args[1:])
	case "delete":
		return runDelete(args[1:])
	case "serve":
		return runServe(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		return 2
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "dealflow CLI")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  dealflow <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  health       Verify database connectivity")
	fmt.Fprintln(os.Stderr, "  ingest       Run one search, extract and dedup pass for a date")
	fmt.Fprintln(os.Stderr, "  sweep        Remove duplicates from the recent article window")
	fmt.Fprintln(os.Stderr, "  articles     List stored articles for a date")
	fmt.Fprintln(os.Stderr, "  runs         List recent ingestion runs")
	fmt.Fprintln(os.Stderr, "  update-date  Move an article to another date")
	fmt.Fprintln(os.Stderr, "  delete       Delete an article")
	fmt.Fprintln(os.Stderr, "  serve        Start the ops API and the scheduler")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Use \"dealflow <command> -h\" for command-specific flags.")
}
