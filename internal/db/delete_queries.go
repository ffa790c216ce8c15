package db

import (
	"context"
	"fmt"
)

// Delete removes an article permanently. Deleting a missing article is not
// an error, so concurrent sweeps can race on the same loser.
func (p *Pool) Delete(ctx context.Context, id int64) error {
	const q = `
DELETE FROM deals.articles
WHERE article_id = $1
`
	if _, err := p.Exec(ctx, q, id); err != nil {
		return fmt.Errorf("delete article: %w", err)
	}
	return nil
}
