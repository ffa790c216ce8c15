package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/DeividasMat/deal-website-sub000/internal/deal"
	"github.com/DeividasMat/deal-website-sub000/internal/globaltime"
)

type Stage string

const (
	StageNone     Stage = "none"
	StageExact    Stage = "exact"
	StageLexical  Stage = "lexical"
	StageEntity   Stage = "entity"
	StageSemantic Stage = "semantic"
)

type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

type Action string

const (
	ActionKeepFirst  Action = "keep-first"
	ActionKeepSecond Action = "keep-second"
	ActionMerge      Action = "merge"
	ActionKeepBoth   Action = "keep-both"
)

// Analysis is the outcome of comparing two articles.
type Analysis struct {
	Duplicate  bool       `json:"duplicate"`
	Similarity float64    `json:"similarity"`
	Confidence Confidence `json:"confidence"`
	Stage      Stage      `json:"stage"`
	Action     Action     `json:"action"`
	Reason     string     `json:"reason,omitempty"`

	lexical float64
}

type Engine struct {
	policy      Policy
	adjudicator Adjudicator
	logger      zerolog.Logger
	now         func() time.Time
}

// NewEngine builds an engine. A nil adjudicator disables the semantic stage.
func NewEngine(policy Policy, adjudicator Adjudicator, logger zerolog.Logger) *Engine {
	return &Engine{
		policy:      policy,
		adjudicator: adjudicator,
		logger:      logger.With().Str("component", "dedup").Logger(),
		now:         globaltime.Now,
	}
}

func (e *Engine) Policy() Policy {
	return e.policy
}

func (e *Engine) Score(a deal.Article) float64 {
	return e.policy.Score(a, e.now())
}

func (e *Engine) Survivor(a, b deal.Article) (winner, loser deal.Article) {
	return e.policy.Survivor(a, b, e.now())
}

// CompareInline runs the exact, lexical and entity stages.
func (e *Engine) CompareInline(a, b deal.Article) Analysis {
	return e.withAction(e.cheap(a, b), a, b)
}

// Compare runs the full cascade. The semantic stage is reached only for
// borderline pairs and only when an adjudicator is configured.
func (e *Engine) Compare(ctx context.Context, a, b deal.Article) Analysis {
	analysis := e.cheap(a, b)
	if analysis.Duplicate || e.adjudicator == nil || !e.semanticEligible(a, b, analysis.lexical) {
		return e.withAction(analysis, a, b)
	}
	return e.withAction(e.adjudicate(ctx, a, b, analysis.lexical), a, b)
}

// FindMatch returns the first of existing that duplicates candidate under
// the inline stages.
func (e *Engine) FindMatch(candidate deal.Article, existing []deal.Article) (deal.Article, Analysis, bool) {
	for _, stored := range existing {
		if stored.ID != 0 && stored.ID == candidate.ID {
			continue
		}
		analysis := e.CompareInline(candidate, stored)
		if analysis.Duplicate {
			return stored, analysis, true
		}
	}
	return deal.Article{}, Analysis{}, false
}

func (e *Engine) cheap(a, b deal.Article) Analysis {
	p := e.policy

	if ka, kb := deal.URLKey(a.SourceURL), deal.URLKey(b.SourceURL); ka != "" && ka == kb && len(ka) > p.ExactURLMinLength {
		return Analysis{Duplicate: true, Similarity: 1, Confidence: ConfidenceHigh, Stage: StageExact, Reason: "identical source URL", lexical: 1}
	}
	if ta, tb := deal.NormalizeTitle(a.Title), deal.NormalizeTitle(b.Title); ta != "" && ta == tb {
		return Analysis{Duplicate: true, Similarity: 1, Confidence: ConfidenceHigh, Stage: StageExact, Reason: "identical normalized title", lexical: 1}
	}

	lexical := Jaccard(TitleWords(a.Title, p.LexicalMinWordLength), TitleWords(b.Title, p.LexicalMinWordLength))
	threshold := p.LexicalDuplicate
	if sameSource(a, b) {
		threshold = p.LexicalDuplicateSameSource
	}
	if lexical >= threshold {
		confidence := ConfidenceMedium
		if lexical >= 0.95 {
			confidence = ConfidenceHigh
		}
		return Analysis{
			Duplicate:  true,
			Similarity: lexical,
			Confidence: confidence,
			Stage:      StageLexical,
			Reason:     fmt.Sprintf("title word overlap %.2f", lexical),
			lexical:    lexical,
		}
	}

	overlap := Jaccard(Entities(a.Title, a.Summary), Entities(b.Title, b.Summary))
	if overlap > p.EntityOverlap && SharesDealFamily(a.Title+" "+a.Summary, b.Title+" "+b.Summary) {
		return Analysis{
			Duplicate:  true,
			Similarity: overlap,
			Confidence: ConfidenceMedium,
			Stage:      StageEntity,
			Reason:     fmt.Sprintf("entity overlap %.2f with shared deal type", overlap),
			lexical:    lexical,
		}
	}

	return Analysis{
		Similarity: max(lexical, overlap),
		Confidence: ConfidenceLow,
		Stage:      StageNone,
		lexical:    lexical,
	}
}

// semanticEligible selects borderline pairs: moderate title overlap, the
// same publisher, or close dates with at least one shared entity.
func (e *Engine) semanticEligible(a, b deal.Article, lexical float64) bool {
	p := e.policy
	if lexical >= p.LexicalBorderline {
		return true
	}
	if sameSource(a, b) {
		return true
	}
	if absDuration(a.Date.Sub(b.Date)) > p.SemanticWindow {
		return false
	}
	shared := Jaccard(Entities(a.Title, a.Summary), Entities(b.Title, b.Summary))
	return shared > 0
}

func (e *Engine) adjudicate(ctx context.Context, a, b deal.Article, lexical float64) Analysis {
	verdict, err := e.adjudicator.Adjudicate(ctx, a, b)
	if err != nil {
		e.logger.Warn().Err(err).Int64("first_id", a.ID).Int64("second_id", b.ID).Msg("semantic adjudication failed; keeping both")
		return Analysis{Confidence: ConfidenceLow, Stage: StageNone, Reason: "adjudication failed", lexical: lexical}
	}

	analysis := Analysis{
		Similarity: verdict.Similarity,
		Confidence: Confidence(verdict.Confidence),
		Stage:      StageSemantic,
		Reason:     verdict.Reason,
		lexical:    lexical,
	}
	analysis.Duplicate = verdict.IsDuplicate && verdict.Similarity >= e.policy.SemanticMinSimilarity
	return analysis
}

func (e *Engine) withAction(analysis Analysis, a, b deal.Article) Analysis {
	if !analysis.Duplicate {
		analysis.Action = ActionKeepBoth
		return analysis
	}
	winner, loser := e.Survivor(a, b)
	switch {
	case hasMissingAttribution(winner, loser):
		analysis.Action = ActionMerge
	case sameArticle(winner, a):
		analysis.Action = ActionKeepFirst
	default:
		analysis.Action = ActionKeepSecond
	}
	return analysis
}

func hasMissingAttribution(winner, loser deal.Article) bool {
	_, _, ok := winner.MissingAttribution(loser)
	return ok
}

func sameArticle(x, y deal.Article) bool {
	if x.ID != 0 || y.ID != 0 {
		return x.ID == y.ID
	}
	return x.Title == y.Title && x.SourceURL == y.SourceURL && x.Summary == y.Summary
}
