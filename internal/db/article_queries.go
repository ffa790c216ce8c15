package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/DeividasMat/deal-website-sub000/internal/deal"
)

const articleColumns = `
	a.article_id,
	a.article_date,
	a.title,
	a.summary,
	a.content,
	a.source_name,
	a.source_url,
	a.category,
	a.upvotes,
	a.created_at`

// Save inserts an article and returns its new ID. The caller has already
// pinned Date to the run's target day.
func (p *Pool) Save(ctx context.Context, article deal.Article) (int64, error) {
	title := strings.TrimSpace(article.Title)
	if title == "" {
		return 0, fmt.Errorf("article title is required")
	}
	if article.Date.IsZero() {
		return 0, fmt.Errorf("article date is required")
	}
	category := strings.TrimSpace(article.Category)
	if category == "" {
		category = deal.CategoryOther
	}

	const q = `
INSERT INTO deals.articles (
	article_date,
	title,
	title_key,
	summary,
	content,
	source_name,
	source_url,
	url_key,
	category,
	upvotes
)
VALUES ($1::date, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING article_id
`
	var id int64
	if err := p.QueryRow(ctx, q,
		dayParam(article.Date),
		title,
		deal.TitleKey(title),
		strings.TrimSpace(article.Summary),
		article.Content,
		strings.TrimSpace(article.SourceName),
		strings.TrimSpace(article.SourceURL),
		deal.URLKey(article.SourceURL),
		category,
		max(article.Upvotes, 0),
	).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert article: %w", err)
	}
	return id, nil
}

func (p *Pool) GetByID(ctx context.Context, id int64) (deal.Article, error) {
	q := `SELECT` + articleColumns + `
FROM deals.articles a
WHERE a.article_id = $1
`
	article, err := scanArticle(p.QueryRow(ctx, q, id))
	if err != nil {
		if IsNoRows(err) {
			return deal.Article{}, ErrNoRows
		}
		return deal.Article{}, fmt.Errorf("get article: %w", err)
	}
	return article, nil
}

func (p *Pool) GetByDate(ctx context.Context, date time.Time) ([]deal.Article, error) {
	q := `SELECT` + articleColumns + `
FROM deals.articles a
WHERE a.article_date = $1::date
ORDER BY a.article_id ASC
`
	return p.queryArticles(ctx, "query articles by date", q, dayParam(date))
}

// GetAll lists every stored article, newest day first, capped at limit when
// limit is positive.
func (p *Pool) GetAll(ctx context.Context, limit int) ([]deal.Article, error) {
	q := `SELECT` + articleColumns + `
FROM deals.articles a
ORDER BY a.article_date DESC, a.article_id DESC
LIMIT NULLIF($1, 0)
`
	return p.queryArticles(ctx, "query all articles", q, max(limit, 0))
}

// ListByDateRange returns articles dated from..to inclusive.
func (p *Pool) ListByDateRange(ctx context.Context, from, to time.Time) ([]deal.Article, error) {
	if deal.DayOf(to).Before(deal.DayOf(from)) {
		return nil, fmt.Errorf("from must not be after to")
	}
	q := `SELECT` + articleColumns + `
FROM deals.articles a
WHERE a.article_date >= $1::date
  AND a.article_date <= $2::date
ORDER BY a.article_date ASC, a.article_id ASC
`
	return p.queryArticles(ctx, "query articles by date range", q, dayParam(from), dayParam(to))
}

// FindDuplicateCandidates returns articles within a day of date whose
// normalized title shares the stored title-key prefix.
func (p *Pool) FindDuplicateCandidates(ctx context.Context, title string, date time.Time) ([]deal.Article, error) {
	key := deal.TitleKey(title)
	if key == "" {
		return nil, nil
	}
	q := `SELECT` + articleColumns + `
FROM deals.articles a
WHERE a.article_date BETWEEN ($1::date - 1) AND ($1::date + 1)
  AND a.title_key = $2
ORDER BY a.article_date ASC, a.article_id ASC
`
	return p.queryArticles(ctx, "query duplicate candidates", q, dayParam(date), key)
}

func (p *Pool) queryArticles(ctx context.Context, label, q string, args ...any) ([]deal.Article, error) {
	rows, err := p.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", label, err)
	}
	defer rows.Close()

	var out []deal.Article
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		out = append(out, article)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate articles: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanArticle(row scanner) (deal.Article, error) {
	var a deal.Article
	if err := row.Scan(
		&a.ID,
		&a.Date,
		&a.Title,
		&a.Summary,
		&a.Content,
		&a.SourceName,
		&a.SourceURL,
		&a.Category,
		&a.Upvotes,
		&a.CreatedAt,
	); err != nil {
		return deal.Article{}, err
	}
	a.Date = deal.DayOf(a.Date)
	a.CreatedAt = a.CreatedAt.UTC()
	return a, nil
}

func dayParam(t time.Time) string {
	return deal.DayOf(t).Format(time.DateOnly)
}
