package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/DeividasMat/deal-website-sub000/internal/deal"
)

// UpdateSourceAttribution fills the source URL and/or name of an article.
// Empty arguments leave the stored value unchanged.
func (p *Pool) UpdateSourceAttribution(ctx context.Context, id int64, url, name string) error {
	url = strings.TrimSpace(url)
	name = strings.TrimSpace(name)
	if url == "" && name == "" {
		return nil
	}

	const q = `
UPDATE deals.articles
SET
	source_url = CASE WHEN $2 = '' THEN source_url ELSE $2 END,
	url_key = CASE WHEN $2 = '' THEN url_key ELSE $3 END,
	source_name = CASE WHEN $4 = '' THEN source_name ELSE $4 END,
	updated_at = now()
WHERE article_id = $1
`
	tag, err := p.Exec(ctx, q, id, url, deal.URLKey(url), name)
	if err != nil {
		return fmt.Errorf("update source attribution: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNoRows
	}
	return nil
}

// UpdateDate moves an article to newDate and records the correction in the
// same transaction. Returns the previous date.
func (p *Pool) UpdateDate(ctx context.Context, id int64, newDate time.Time, reason string) (time.Time, error) {
	if newDate.IsZero() {
		return time.Time{}, fmt.Errorf("new date is required")
	}

	tx, err := p.beginTx(ctx)
	if err != nil {
		return time.Time{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	const lockQuery = `
SELECT article_date
FROM deals.articles
WHERE article_id = $1
FOR UPDATE
`
	var previous time.Time
	if err := tx.QueryRow(ctx, lockQuery, id).Scan(&previous); err != nil {
		if errors.Is(err, ErrNoRows) {
			return time.Time{}, ErrNoRows
		}
		return time.Time{}, fmt.Errorf("lock article: %w", err)
	}
	previous = deal.DayOf(previous)

	const updateQuery = `
UPDATE deals.articles
SET
	article_date = $2::date,
	updated_at = now()
WHERE article_id = $1
`
	if _, err := tx.Exec(ctx, updateQuery, id, dayParam(newDate)); err != nil {
		return time.Time{}, fmt.Errorf("update article date: %w", err)
	}

	const auditQuery = `
INSERT INTO deals.date_corrections (article_id, previous_date, new_date, reason)
VALUES ($1, $2::date, $3::date, $4)
`
	if _, err := tx.Exec(ctx, auditQuery, id, dayParam(previous), dayParam(newDate), strings.TrimSpace(reason)); err != nil {
		return time.Time{}, fmt.Errorf("insert date correction: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return time.Time{}, fmt.Errorf("commit transaction: %w", err)
	}
	return previous, nil
}
