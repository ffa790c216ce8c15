package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/DeividasMat/deal-website-sub000/internal/cli"
	"github.com/DeividasMat/deal-website-sub000/internal/deal"
)

func runArticles(args []string) int {
	fs := flag.NewFlagSet("articles", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	date := fs.String("date", defaultUTCDayString(), "Date in YYYY-MM-DD (UTC)")
	all := fs.Bool("all", false, "List every stored article instead of one date")
	limit := fs.Int("limit", 200, "Maximum articles to return with --all")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "articles does not accept positional arguments")
		return 2
	}
	if *limit <= 0 {
		fmt.Fprintln(os.Stderr, "--limit must be > 0")
		return 2
	}
	outputFormat, err := parseOutputFormat(*format, outputFormatTable)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid format: %v\n", err)
		return 2
	}
	day, err := parseUTCDate(*date)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid --date: %v\n", err)
		return 2
	}

	ctx, cancel, pool, err := connectReadPool(*timeout, envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer cancel()
	defer pool.Close()

	var articles []deal.Article
	if *all {
		articles, err = pool.GetAll(ctx, *limit)
	} else {
		articles, err = pool.GetByDate(ctx, day)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to query articles: %v\n", err)
		return 1
	}

	if outputFormat == outputFormatJSON {
		if articles == nil {
			articles = []deal.Article{}
		}
		if err := printJSON(articles); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}

	if err := writeTable(
		[]string{"id", "date", "category", "title", "source", "upvotes"},
		articleRows(articles),
	); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render table: %v\n", err)
		return 1
	}
	return 0
}

func articleRows(articles []deal.Article) [][]string {
	rows := make([][]string, 0, len(articles))
	for _, a := range articles {
		source := a.SourceName
		if source == "" {
			source = deal.URLDomain(a.SourceURL)
		}
		rows = append(rows, []string{
			strconv.FormatInt(a.ID, 10),
			a.Date.Format(time.DateOnly),
			a.Category,
			truncateForTable(a.Title, 80),
			truncateForTable(source, 30),
			strconv.Itoa(a.Upvotes),
		})
	}
	return rows
}
