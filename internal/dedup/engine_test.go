package dedup

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/DeividasMat/deal-website-sub000/internal/deal"
	"github.com/DeividasMat/deal-website-sub000/internal/payloadschema"
)

var (
	testDay = time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	testNow = time.Date(2025, 3, 14, 18, 0, 0, 0, time.UTC)
)

type stubAdjudicator struct {
	mu      sync.Mutex
	verdict payloadschema.Verdict
	err     error
	calls   int
}

func (s *stubAdjudicator) Adjudicate(_ context.Context, _, _ deal.Article) (payloadschema.Verdict, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.verdict, s.err
}

func newTestEngine(adjudicator Adjudicator) *Engine {
	engine := NewEngine(DefaultPolicy(), adjudicator, zerolog.Nop())
	engine.now = func() time.Time { return testNow }
	return engine
}

func apolloA() deal.Article {
	return deal.Article{ID: 1, Date: testDay, Title: "Apollo Provides $500M Credit Facility to TechCorp", SourceURL: "https://bloomberg.com/x"}
}

func apolloB() deal.Article {
	return deal.Article{ID: 2, Date: testDay, Title: "Apollo's $500M TechCorp Financing Deal", SourceURL: "https://wsj.com/y", SourceName: "Wall Street Journal"}
}

func TestApolloPairIsEntityDuplicate(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(nil)
	analysis := engine.CompareInline(apolloA(), apolloB())
	if !analysis.Duplicate {
		t.Fatalf("expected duplicate, got %+v", analysis)
	}
	if analysis.Stage != StageEntity {
		t.Fatalf("expected entity stage, got %q", analysis.Stage)
	}
	// The survivor lacks the source name the loser carries.
	if analysis.Action != ActionMerge {
		t.Fatalf("expected merge, got %q", analysis.Action)
	}
}

func TestSameAmountDifferentCompaniesIsNotDuplicate(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(nil)
	others := []deal.Article{
		{ID: 3, Date: testDay, Title: "Blackstone Provides $500M Term Loan to HealthCo"},
		{ID: 4, Date: testDay, Title: "Apollo Provides $500M Term Loan to HealthCo"},
	}
	for _, other := range others {
		analysis := engine.CompareInline(apolloA(), other)
		if analysis.Duplicate {
			t.Fatalf("did not expect duplicate for %q: %+v", other.Title, analysis)
		}
		if analysis.Action != ActionKeepBoth {
			t.Fatalf("expected keep-both, got %q", analysis.Action)
		}
	}
}

func TestExactURLMatchIgnoresTracking(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(nil)
	a := deal.Article{ID: 1, Title: "Alpha raises money", SourceURL: "https://www.reuters.com/markets/deals/alpha-2025?utm_source=feed"}
	b := deal.Article{ID: 2, Title: "Completely different wording", SourceURL: "http://reuters.com/markets/deals/alpha-2025/"}
	analysis := engine.CompareInline(a, b)
	if !analysis.Duplicate || analysis.Stage != StageExact {
		t.Fatalf("expected exact duplicate, got %+v", analysis)
	}

	short := engine.CompareInline(
		deal.Article{Title: "One thing", SourceURL: "https://a.io/x"},
		deal.Article{Title: "Another thing", SourceURL: "https://a.io/x"},
	)
	if short.Duplicate {
		t.Fatalf("short URLs must not match exactly: %+v", short)
	}
}

func TestSurvivorIsDeterministic(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(nil)
	for i := 0; i < 5; i++ {
		winner, loser := engine.Survivor(apolloA(), apolloB())
		if winner.ID != 1 || loser.ID != 2 {
			t.Fatalf("iteration %d: unexpected winner %d", i, winner.ID)
		}
		winner, _ = engine.Survivor(apolloB(), apolloA())
		if winner.ID != 1 {
			t.Fatalf("iteration %d: argument order changed the winner", i)
		}
	}
}

func TestSurvivorTieBreaks(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(nil)
	stored := deal.Article{ID: 7, Title: "Same title here", CreatedAt: testNow}
	candidate := deal.Article{Title: "Same title here"}
	if winner, _ := engine.Survivor(candidate, stored); winner.ID != 7 {
		t.Fatalf("expected stored record to win a tie")
	}

	older := deal.Article{ID: 3, Title: "Same title here", CreatedAt: testNow}
	if winner, _ := engine.Survivor(stored, older); winner.ID != 3 {
		t.Fatalf("expected lower ID to win a tie")
	}
}

func TestScoreRanksSourcesAndUpvotes(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(nil)
	base := deal.Article{Title: "Acme update", CreatedAt: testNow.Add(-72 * time.Hour)}
	major := base
	major.SourceURL = "https://www.reuters.com/a"
	paywalled := base
	paywalled.SourceURL = "https://www.wsj.com/a"
	none := base
	upvoted := base
	upvoted.Upvotes = 3

	if !(engine.Score(major) > engine.Score(paywalled) && engine.Score(paywalled) > engine.Score(none)) {
		t.Fatalf("expected major > paywalled > none")
	}
	if got := engine.Score(upvoted) - engine.Score(none); got != 6 {
		t.Fatalf("expected +6 for three upvotes, got %v", got)
	}
}

func acmePair() (deal.Article, deal.Article) {
	a := deal.Article{ID: 3, Date: testDay, Title: "Acme Robotics secures growth capital", SourceURL: "https://www.pehub.com/acme-growth"}
	b := deal.Article{ID: 4, Date: testDay, Title: "Robotics maker Acme lands new backing", SourceURL: "https://www.pehub.com/robotics-backing"}
	return a, b
}

func TestCompareUsesAdjudicatorForBorderlinePairs(t *testing.T) {
	t.Parallel()

	a, b := acmePair()
	if inline := newTestEngine(nil).CompareInline(a, b); inline.Duplicate {
		t.Fatalf("inline stages should not match: %+v", inline)
	}

	cases := []struct {
		name    string
		verdict payloadschema.Verdict
		err     error
		want    bool
	}{
		{name: "confident duplicate", verdict: payloadschema.Verdict{IsDuplicate: true, Similarity: 0.9, Confidence: "high"}, want: true},
		{name: "below similarity floor", verdict: payloadschema.Verdict{IsDuplicate: true, Similarity: 0.6, Confidence: "medium"}},
		{name: "collaborator error", err: errors.New("timeout")},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			judge := &stubAdjudicator{verdict: tc.verdict, err: tc.err}
			analysis := newTestEngine(judge).Compare(context.Background(), a, b)
			if analysis.Duplicate != tc.want {
				t.Fatalf("expected duplicate=%v, got %+v", tc.want, analysis)
			}
			if judge.calls != 1 {
				t.Fatalf("expected one adjudication call, got %d", judge.calls)
			}
		})
	}
}

type fakeSweepStore struct {
	mu        sync.Mutex
	articles  map[int64]deal.Article
	decisions []Decision
	deleted   []int64
}

func newFakeSweepStore(articles ...deal.Article) *fakeSweepStore {
	s := &fakeSweepStore{articles: make(map[int64]deal.Article)}
	for _, a := range articles {
		s.articles[a.ID] = a
	}
	return s
}

func (s *fakeSweepStore) ListByDateRange(_ context.Context, from, to time.Time) ([]deal.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []deal.Article
	for _, a := range s.articles {
		if !a.Date.Before(from) && !a.Date.After(to) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *fakeSweepStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.articles, id)
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *fakeSweepStore) UpdateSourceAttribution(_ context.Context, id int64, url, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.articles[id]
	if url != "" {
		a.SourceURL = url
	}
	if name != "" {
		a.SourceName = name
	}
	s.articles[id] = a
	return nil
}

func (s *fakeSweepStore) ListPairVerdicts(_ context.Context, _ []int64) (map[PairKey]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[PairKey]bool)
	for _, d := range s.decisions {
		if d.Stage == StageSemantic {
			out[d.Pair] = d.Duplicate
		}
	}
	return out, nil
}

func (s *fakeSweepStore) RecordDedupDecision(_ context.Context, decision Decision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decisions = append(s.decisions, decision)
	return nil
}

func TestSweepDeletesLoserPatchesWinnerAndConverges(t *testing.T) {
	t.Parallel()

	acmeA, acmeB := acmePair()
	store := newFakeSweepStore(
		apolloA(),
		apolloB(),
		acmeA,
		acmeB,
		deal.Article{ID: 5, Date: testDay.AddDate(0, 0, -1), Title: "Blackstone Provides $500M Term Loan to HealthCo", SourceURL: "https://www.reuters.com/healthco"},
		deal.Article{ID: 6, Date: testDay.AddDate(0, 0, -30), Title: "Apollo Provides $500M Credit Facility to TechCorp"},
	)
	judge := &stubAdjudicator{verdict: payloadschema.Verdict{IsDuplicate: false, Similarity: 0.2, Confidence: "high"}}
	engine := newTestEngine(judge)

	first, err := engine.Sweep(context.Background(), store, SweepOptions{Anchor: testDay})
	if err != nil {
		t.Fatalf("first sweep: %v", err)
	}
	if first.Examined != 5 {
		t.Fatalf("expected 5 articles in the 7-day window, got %d", first.Examined)
	}
	if first.Deleted != 1 || len(store.deleted) != 1 || store.deleted[0] != 2 {
		t.Fatalf("expected only article 2 deleted, got %+v (deleted %v)", first, store.deleted)
	}
	if first.Patched != 1 || store.articles[1].SourceName != "Wall Street Journal" {
		t.Fatalf("expected survivor patched with source name, got %+v", store.articles[1])
	}
	if first.SemanticCalls == 0 {
		t.Fatalf("expected the same-source pair to be adjudicated")
	}

	callsAfterFirst := judge.calls
	second, err := engine.Sweep(context.Background(), store, SweepOptions{Anchor: testDay})
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if second.Deleted != 0 {
		t.Fatalf("expected no deletions on the second sweep, got %d", second.Deleted)
	}
	if judge.calls != callsAfterFirst {
		t.Fatalf("expected judged pairs to be skipped, got %d new calls", judge.calls-callsAfterFirst)
	}
}

func TestSweepRespectsSemanticCap(t *testing.T) {
	t.Parallel()

	acmeA, acmeB := acmePair()
	store := newFakeSweepStore(acmeA, acmeB)
	judge := &stubAdjudicator{verdict: payloadschema.Verdict{IsDuplicate: true, Similarity: 0.95, Confidence: "high"}}

	result, err := newTestEngine(judge).Sweep(context.Background(), store, SweepOptions{Anchor: testDay, MaxSemantic: -1})
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if judge.calls != 0 || result.Deleted != 0 {
		t.Fatalf("expected semantic stage disabled, got calls=%d deleted=%d", judge.calls, result.Deleted)
	}

	result, err = newTestEngine(judge).Sweep(context.Background(), store, SweepOptions{Anchor: testDay})
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if result.Deleted != 1 || result.ByStage[StageSemantic] != 1 {
		t.Fatalf("expected one semantic deletion, got %+v", result)
	}
}

func TestSweepFailedAdjudicationKeepsBothForGood(t *testing.T) {
	t.Parallel()

	acmeA, acmeB := acmePair()
	store := newFakeSweepStore(acmeA, acmeB)
	judge := &stubAdjudicator{err: errors.New("timeout")}
	engine := newTestEngine(judge)

	first, err := engine.Sweep(context.Background(), store, SweepOptions{Anchor: testDay})
	if err != nil {
		t.Fatalf("first sweep: %v", err)
	}
	if first.Deleted != 0 || first.Errors != 1 || judge.calls != 1 {
		t.Fatalf("expected failed call to keep both, got %+v calls=%d", first, judge.calls)
	}
	if len(store.decisions) != 1 || store.decisions[0].Duplicate || store.decisions[0].Pair != NewPairKey(3, 4) {
		t.Fatalf("expected a recorded keep-both verdict, got %+v", store.decisions)
	}

	judge.err = nil
	judge.verdict = payloadschema.Verdict{IsDuplicate: true, Similarity: 0.95, Confidence: "high"}
	second, err := engine.Sweep(context.Background(), store, SweepOptions{Anchor: testDay})
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if second.Deleted != 0 || judge.calls != 1 {
		t.Fatalf("expected no new deletions or calls, got %+v calls=%d", second, judge.calls)
	}
}

func TestSweepBudgetSkippedPairsStaySettled(t *testing.T) {
	t.Parallel()

	acmeA, acmeB := acmePair()
	acmeC := deal.Article{ID: 7, Date: testDay, Title: "Acme Robotics welcomes strategic investors", SourceURL: "https://www.pehub.com/acme-investors"}
	store := newFakeSweepStore(acmeA, acmeB, acmeC)
	judge := &stubAdjudicator{verdict: payloadschema.Verdict{IsDuplicate: true, Similarity: 0.95, Confidence: "high"}}
	engine := newTestEngine(judge)

	first, err := engine.Sweep(context.Background(), store, SweepOptions{Anchor: testDay, MaxSemantic: 1})
	if err != nil {
		t.Fatalf("first sweep: %v", err)
	}
	if first.Deleted != 1 || first.SemanticCalls != 1 || first.SemanticSkipped != 1 {
		t.Fatalf("expected one deletion and one skipped pair, got %+v", first)
	}

	second, err := engine.Sweep(context.Background(), store, SweepOptions{Anchor: testDay, MaxSemantic: 1})
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if second.Deleted != 0 || second.SemanticCalls != 0 || judge.calls != 1 {
		t.Fatalf("expected the second sweep to change nothing, got %+v calls=%d", second, judge.calls)
	}
	if len(store.articles) != 2 {
		t.Fatalf("expected two articles kept, got %d", len(store.articles))
	}
}

func TestLoadPolicyFileOverlaysDefaults(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	body := "lexical_duplicate: 0.92\nsemantic_window: 24h\nweights:\n  per_upvote: 3\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write policy: %v", err)
	}

	policy, err := LoadPolicyFile(path)
	if err != nil {
		t.Fatalf("LoadPolicyFile: %v", err)
	}
	if policy.LexicalDuplicate != 0.92 || policy.SemanticWindow != 24*time.Hour || policy.Weights.PerUpvote != 3 {
		t.Fatalf("overrides not applied: %+v", policy)
	}
	if policy.EntityOverlap != 0.60 || policy.Weights.URLMajor != 30 {
		t.Fatalf("defaults not kept: %+v", policy)
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("lexical_borderline: 0.95\n"), 0o600); err != nil {
		t.Fatalf("write policy: %v", err)
	}
	if _, err := LoadPolicyFile(bad); err == nil {
		t.Fatalf("expected validation error")
	}
}
