package dedup

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/DeividasMat/deal-website-sub000/internal/deal"
)

// PairKey identifies an unordered pair of stored articles.
type PairKey struct {
	Low  int64
	High int64
}

func NewPairKey(a, b int64) PairKey {
	if b < a {
		a, b = b, a
	}
	return PairKey{Low: a, High: b}
}

// Decision is one audited duplicate verdict.
type Decision struct {
	Pair       PairKey
	KeptID     int64
	RemovedID  int64
	Duplicate  bool
	Stage      Stage
	Similarity float64
	Confidence Confidence
	Reason     string
	Origin     string
}

const (
	OriginSweep  = "sweep"
	OriginInline = "inline"
)

// SweepStore is the persistence surface used by Sweep.
type SweepStore interface {
	ListByDateRange(ctx context.Context, from, to time.Time) ([]deal.Article, error)
	Delete(ctx context.Context, id int64) error
	UpdateSourceAttribution(ctx context.Context, id int64, url, name string) error
	// ListPairVerdicts returns prior semantic verdicts among ids, keyed by
	// pair, valued by whether the pair was judged duplicate.
	ListPairVerdicts(ctx context.Context, ids []int64) (map[PairKey]bool, error)
	RecordDedupDecision(ctx context.Context, decision Decision) error
}

type SweepOptions struct {
	// Anchor is the last day of the window. Zero means today.
	Anchor time.Time
	// WindowDays and MaxSemantic default to the policy values when zero.
	// A negative MaxSemantic disables the semantic stage.
	WindowDays  int
	MaxSemantic int
}

type SweepResult struct {
	From            time.Time     `json:"from"`
	To              time.Time     `json:"to"`
	Examined        int           `json:"examined"`
	Compared        int           `json:"compared"`
	Duplicates      int           `json:"duplicates"`
	Deleted         int           `json:"deleted"`
	Patched         int           `json:"patched"`
	SemanticCalls   int           `json:"semantic_calls"`
	SemanticSkipped int           `json:"semantic_skipped"`
	Errors          int           `json:"errors"`
	ByStage         map[Stage]int `json:"by_stage,omitempty"`
	Passes          int           `json:"passes"`
}

const maxSweepPasses = 5

const reasonBudgetExhausted = "semantic budget exhausted"

type sweepState struct {
	articles []deal.Article
	removed  map[int64]bool
	judged   map[PairKey]bool
	semantic int
	maxSem   int
	result   *SweepResult
	changed  bool
}

// Sweep re-examines stored articles in the trailing window and deletes the
// lower-scoring member of every duplicate pair, patching the survivor with
// attribution it lacks. Every semantic-eligible pair leaves a persisted
// verdict, so repeated sweeps without new data delete nothing.
func (e *Engine) Sweep(ctx context.Context, store SweepStore, opts SweepOptions) (SweepResult, error) {
	windowDays := opts.WindowDays
	if windowDays <= 0 {
		windowDays = e.policy.SweepWindowDays
	}
	maxSemantic := opts.MaxSemantic
	switch {
	case maxSemantic == 0:
		maxSemantic = e.policy.SweepMaxSemantic
	case maxSemantic < 0:
		maxSemantic = 0
	}
	if e.adjudicator == nil {
		maxSemantic = 0
	}

	anchor := opts.Anchor
	if anchor.IsZero() {
		anchor = e.now()
	}
	to := deal.DayOf(anchor)
	from := to.AddDate(0, 0, -(windowDays - 1))
	result := SweepResult{From: from, To: to, ByStage: make(map[Stage]int)}

	articles, err := store.ListByDateRange(ctx, from, to)
	if err != nil {
		return result, fmt.Errorf("list articles for sweep: %w", err)
	}
	sort.SliceStable(articles, func(i, j int) bool {
		if !articles[i].Date.Equal(articles[j].Date) {
			return articles[i].Date.Before(articles[j].Date)
		}
		return articles[i].ID < articles[j].ID
	})
	result.Examined = len(articles)

	judged := make(map[PairKey]bool)
	if maxSemantic > 0 && len(articles) > 1 {
		ids := lo.Map(articles, func(a deal.Article, _ int) int64 { return a.ID })
		prior, err := store.ListPairVerdicts(ctx, ids)
		if err != nil {
			result.Errors++
			e.logger.Warn().Err(err).Msg("load prior semantic verdicts failed")
		}
		for k, v := range prior {
			judged[k] = v
		}
	}

	state := &sweepState{
		articles: articles,
		removed:  make(map[int64]bool),
		judged:   judged,
		maxSem:   maxSemantic,
		result:   &result,
	}
	for result.Passes < maxSweepPasses {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Passes++
		state.changed = false
		e.sweepPass(ctx, store, state)
		if !state.changed {
			break
		}
	}

	e.logger.Info().
		Time("from", from).
		Time("to", to).
		Int("examined", result.Examined).
		Int("compared", result.Compared).
		Int("deleted", result.Deleted).
		Int("patched", result.Patched).
		Int("semantic_calls", result.SemanticCalls).
		Int("errors", result.Errors).
		Msg("dedup sweep finished")
	return result, nil
}

func (e *Engine) sweepPass(ctx context.Context, store SweepStore, s *sweepState) {
	for i := 0; i < len(s.articles); i++ {
		if s.removed[s.articles[i].ID] {
			continue
		}
		for j := i + 1; j < len(s.articles); j++ {
			if ctx.Err() != nil {
				return
			}
			if s.removed[s.articles[i].ID] {
				break
			}
			if s.removed[s.articles[j].ID] {
				continue
			}
			a, b := s.articles[i], s.articles[j]
			s.result.Compared++

			if analysis := e.sweepCompare(ctx, store, s, a, b); analysis.Duplicate {
				e.resolveSweepPair(ctx, store, s, i, j, analysis)
			}
		}
	}
}

// sweepCompare returns the pair analysis. A semantic-eligible pair that
// cannot be judged (failed call or spent budget) is recorded as keep-both.
func (e *Engine) sweepCompare(ctx context.Context, store SweepStore, s *sweepState, a, b deal.Article) Analysis {
	analysis := e.cheap(a, b)
	if analysis.Duplicate || s.maxSem == 0 || !e.semanticEligible(a, b, analysis.lexical) {
		return analysis
	}

	key := NewPairKey(a.ID, b.ID)
	if prior, seen := s.judged[key]; seen {
		if !prior {
			return analysis
		}
		return Analysis{Duplicate: true, Similarity: 1, Confidence: ConfidenceMedium, Stage: StageSemantic, Reason: "prior semantic verdict"}
	}
	if s.semantic >= s.maxSem {
		s.result.SemanticSkipped++
		return e.keepBoth(ctx, store, s, key, Analysis{
			Confidence: ConfidenceLow,
			Stage:      StageSemantic,
			Reason:     reasonBudgetExhausted,
			lexical:    analysis.lexical,
		})
	}

	s.semantic++
	s.result.SemanticCalls++
	analysis = e.adjudicate(ctx, a, b, analysis.lexical)
	if analysis.Stage != StageSemantic {
		s.result.Errors++
		if ctx.Err() != nil {
			return analysis
		}
		analysis.Stage = StageSemantic
	}
	if analysis.Duplicate {
		s.judged[key] = true
		return analysis
	}
	return e.keepBoth(ctx, store, s, key, analysis)
}

// keepBoth settles a pair as not duplicate for this and every later sweep.
func (e *Engine) keepBoth(ctx context.Context, store SweepStore, s *sweepState, key PairKey, analysis Analysis) Analysis {
	analysis.Duplicate = false
	s.judged[key] = false
	e.record(ctx, store, Decision{
		Pair:       key,
		Stage:      StageSemantic,
		Similarity: analysis.Similarity,
		Confidence: analysis.Confidence,
		Reason:     analysis.Reason,
		Origin:     OriginSweep,
	})
	return analysis
}

func (e *Engine) resolveSweepPair(ctx context.Context, store SweepStore, s *sweepState, i, j int, analysis Analysis) {
	a, b := s.articles[i], s.articles[j]
	winner, loser := e.Survivor(a, b)
	s.result.Duplicates++
	s.result.ByStage[analysis.Stage]++

	if url, name, ok := winner.MissingAttribution(loser); ok {
		if err := store.UpdateSourceAttribution(ctx, winner.ID, url, name); err != nil {
			s.result.Errors++
			e.logger.Warn().Err(err).Int64("id", winner.ID).Msg("patch survivor attribution failed")
		} else {
			if url != "" {
				winner.SourceURL = url
			}
			if name != "" {
				winner.SourceName = name
			}
			s.result.Patched++
		}
	}

	if err := store.Delete(ctx, loser.ID); err != nil {
		s.result.Errors++
		e.logger.Warn().Err(err).Int64("id", loser.ID).Msg("delete duplicate failed")
		return
	}
	s.removed[loser.ID] = true
	s.changed = true
	s.result.Deleted++
	if winner.ID == a.ID {
		s.articles[i] = winner
	} else {
		s.articles[j] = winner
	}

	e.logger.Info().
		Int64("kept_id", winner.ID).
		Int64("removed_id", loser.ID).
		Str("stage", string(analysis.Stage)).
		Float64("similarity", analysis.Similarity).
		Msg("removed duplicate article")

	e.record(ctx, store, Decision{
		Pair:       NewPairKey(a.ID, b.ID),
		KeptID:     winner.ID,
		RemovedID:  loser.ID,
		Duplicate:  true,
		Stage:      analysis.Stage,
		Similarity: analysis.Similarity,
		Confidence: analysis.Confidence,
		Reason:     analysis.Reason,
		Origin:     OriginSweep,
	})
}

func (e *Engine) record(ctx context.Context, store SweepStore, decision Decision) {
	if err := store.RecordDedupDecision(ctx, decision); err != nil {
		e.logger.Warn().Err(err).Int64("first_id", decision.Pair.Low).Int64("second_id", decision.Pair.High).Msg("record dedup decision failed")
	}
}
