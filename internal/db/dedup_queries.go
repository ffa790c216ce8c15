package db

import (
	"context"
	"fmt"

	"github.com/samber/lo"

	"github.com/DeividasMat/deal-website-sub000/internal/dedup"
)

func (p *Pool) RecordDedupDecision(ctx context.Context, decision dedup.Decision) error {
	pair := dedup.NewPairKey(decision.Pair.Low, decision.Pair.High)
	if pair.Low == pair.High {
		return fmt.Errorf("dedup decision needs two distinct articles")
	}

	const q = `
INSERT INTO deals.dedup_decisions (
	first_article_id,
	second_article_id,
	kept_article_id,
	removed_article_id,
	is_duplicate,
	stage,
	similarity,
	confidence,
	reason,
	origin
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
`
	if _, err := p.Exec(ctx, q,
		pair.Low,
		pair.High,
		nullableID(decision.KeptID),
		nullableID(decision.RemovedID),
		decision.Duplicate,
		string(decision.Stage),
		decision.Similarity,
		string(decision.Confidence),
		decision.Reason,
		decision.Origin,
	); err != nil {
		return fmt.Errorf("insert dedup decision: %w", err)
	}
	return nil
}

// ListPairVerdicts returns the latest semantic verdict for every recorded
// pair whose members are both in ids.
func (p *Pool) ListPairVerdicts(ctx context.Context, ids []int64) (map[dedup.PairKey]bool, error) {
	out := make(map[dedup.PairKey]bool)
	if len(ids) < 2 {
		return out, nil
	}
	wanted := lo.Associate(ids, func(id int64) (int64, struct{}) { return id, struct{}{} })

	const q = `
SELECT DISTINCT ON (d.first_article_id, d.second_article_id)
	d.first_article_id,
	d.second_article_id,
	d.is_duplicate
FROM deals.dedup_decisions d
WHERE d.stage = $1
  AND d.first_article_id >= $2
  AND d.second_article_id <= $3
ORDER BY d.first_article_id, d.second_article_id, d.created_at DESC, d.decision_id DESC
`
	rows, err := p.Query(ctx, q, string(dedup.StageSemantic), lo.Min(ids), lo.Max(ids))
	if err != nil {
		return nil, fmt.Errorf("query pair verdicts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			key       dedup.PairKey
			duplicate bool
		)
		if err := rows.Scan(&key.Low, &key.High, &duplicate); err != nil {
			return nil, fmt.Errorf("scan pair verdict: %w", err)
		}
		_, lowOK := wanted[key.Low]
		_, highOK := wanted[key.High]
		if lowOK && highOK {
			out[key] = duplicate
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pair verdicts: %w", err)
	}
	return out, nil
}

func nullableID(id int64) *int64 {
	if id <= 0 {
		return nil
	}
	return &id
}
