package ingest

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/DeividasMat/deal-website-sub000/internal/deal"
	"github.com/DeividasMat/deal-website-sub000/internal/dedup"
	"github.com/DeividasMat/deal-website-sub000/internal/extract"
	"github.com/DeividasMat/deal-website-sub000/internal/llm"
	"github.com/DeividasMat/deal-website-sub000/internal/lock"
	"github.com/DeividasMat/deal-website-sub000/internal/search"
)

var targetDay = time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)

type memoryStore struct {
	mu        sync.Mutex
	nextID    int64
	articles  map[int64]deal.Article
	decisions []dedup.Decision
	saves     int
}

func newMemoryStore(seed ...deal.Article) *memoryStore {
	s := &memoryStore{articles: make(map[int64]deal.Article)}
	for _, a := range seed {
		s.nextID++
		a.ID = s.nextID
		s.articles[a.ID] = a
	}
	return s
}

func (s *memoryStore) Save(_ context.Context, a deal.Article) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	a.ID = s.nextID
	a.CreatedAt = targetDay.Add(12 * time.Hour)
	s.articles[a.ID] = a
	s.saves++
	return a.ID, nil
}

func (s *memoryStore) sorted(keep func(deal.Article) bool) []deal.Article {
	var out []deal.Article
	for _, a := range s.articles {
		if keep(a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *memoryStore) GetByDate(_ context.Context, date time.Time) ([]deal.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sorted(func(a deal.Article) bool { return a.Date.Equal(deal.DayOf(date)) }), nil
}

func (s *memoryStore) FindDuplicateCandidates(_ context.Context, title string, date time.Time) ([]deal.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := deal.TitleKey(title)
	day := deal.DayOf(date)
	return s.sorted(func(a deal.Article) bool {
		diff := a.Date.Sub(day)
		return diff >= -24*time.Hour && diff <= 24*time.Hour && deal.TitleKey(a.Title) == key
	}), nil
}

func (s *memoryStore) ListByDateRange(_ context.Context, from, to time.Time) ([]deal.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sorted(func(a deal.Article) bool { return !a.Date.Before(from) && !a.Date.After(to) }), nil
}

func (s *memoryStore) UpdateSourceAttribution(_ context.Context, id int64, url, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.articles[id]
	if !ok {
		return errors.New("not found")
	}
	if url != "" {
		a.SourceURL = url
	}
	if name != "" {
		a.SourceName = name
	}
	s.articles[id] = a
	return nil
}

func (s *memoryStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.articles, id)
	return nil
}

func (s *memoryStore) ListPairVerdicts(_ context.Context, _ []int64) (map[dedup.PairKey]bool, error) {
	return map[dedup.PairKey]bool{}, nil
}

func (s *memoryStore) RecordDedupDecision(_ context.Context, d dedup.Decision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decisions = append(s.decisions, d)
	return nil
}

func (s *memoryStore) all() []deal.Article {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sorted(func(deal.Article) bool { return true })
}

type stubSearcher struct {
	text  string
	err   error
	block chan struct{}
}

func (s *stubSearcher) Search(ctx context.Context, _ time.Time, _ []string) (string, error) {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return s.text, s.err
}

type stubExtractor struct {
	candidates []deal.Candidate
	err        error
	panicMsg   string
	// cancel, when set, cancels the run mid-extraction.
	cancel context.CancelFunc
}

func (s *stubExtractor) Extract(ctx context.Context, _ deal.Section) ([]deal.Candidate, error) {
	if s.panicMsg != "" {
		panic(s.panicMsg)
	}
	if s.cancel != nil {
		s.cancel()
		return nil, ctx.Err()
	}
	return append([]deal.Candidate(nil), s.candidates...), s.err
}

type recorder struct {
	mu       sync.Mutex
	started  []string
	finished []RunSummary
}

func (r *recorder) StartIngestRun(_ context.Context, runUUID string, _, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, runUUID)
	return nil
}

func (r *recorder) FinishIngestRun(_ context.Context, summary RunSummary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = append(r.finished, summary)
	return nil
}

const sectionText = "Apollo provided a $500 million credit facility to TechCorp on March 2, 2024, according to people familiar with the matter."

func oneSection(string) []deal.Section {
	return []deal.Section{{Category: deal.CategoryCreditFacility, Content: sectionText}}
}

func newTestCoordinator(searcher Searcher, extractor Extractor, store Store, runs RunRecorder, locker lock.Locker) *Coordinator {
	return NewCoordinator(Dependencies{
		Searcher:  searcher,
		Extractor: extractor,
		Engine:    dedup.NewEngine(dedup.DefaultPolicy(), nil, zerolog.Nop()),
		Store:     store,
		Parse:     oneSection,
		Runs:      runs,
		Locker:    locker,
	}, zerolog.Nop(), Options{})
}

func TestRunPinsDateToTarget(t *testing.T) {
	t.Parallel()

	store := newMemoryStore()
	runs := &recorder{}
	extractor := &stubExtractor{candidates: []deal.Candidate{
		{Title: "Apollo Provides $500M Credit Facility to TechCorp", Summary: "Announced March 2, 2024.", SourceURL: "https://www.reuters.com/markets/apollo-techcorp"},
		{Title: "KKR Closes $2B Fund VII", Summary: "KKR closed Fund VII on January 5, 2023.", SourceURL: "https://www.pehub.com/kkr-fund-vii"},
	}}
	c := newTestCoordinator(&stubSearcher{text: "raw"}, extractor, store, runs, nil)

	summary, err := c.Run(context.Background(), time.Date(2025, 3, 14, 22, 30, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.Inserted != 2 || summary.Status != RunStatusCompleted {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	for _, a := range store.all() {
		if !a.Date.Equal(targetDay) {
			t.Fatalf("article %q dated %v, want %v", a.Title, a.Date, targetDay)
		}
	}
	if len(runs.started) != 1 || len(runs.finished) != 1 || runs.finished[0].RunUUID != runs.started[0] {
		t.Fatalf("expected run audit start and finish, got %+v", runs)
	}
	if status := c.Status(); status.State != StateIdle || status.Running || status.LastRun == nil {
		t.Fatalf("unexpected status after run: %+v", status)
	}
}

func TestRunInsertsIdenticalURLOnce(t *testing.T) {
	t.Parallel()

	store := newMemoryStore()
	url := "https://www.reuters.com/markets/deals/apollo-techcorp-2025"
	extractor := &stubExtractor{candidates: []deal.Candidate{
		{Title: "Apollo Provides $500M Credit Facility to TechCorp", Summary: "First wording of the deal.", SourceURL: url},
		{Title: "TechCorp lands new lender backing", Summary: "Second wording of the same deal.", SourceURL: url + "?utm_source=x"},
	}}
	c := newTestCoordinator(&stubSearcher{text: "raw"}, extractor, store, nil, nil)

	summary, err := c.Run(context.Background(), targetDay)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.Inserted != 1 || summary.Skipped != 1 {
		t.Fatalf("expected 1 insert and 1 skip, got %+v", summary)
	}

	again, err := c.Run(context.Background(), targetDay)
	if err != nil {
		t.Fatalf("second Run returned error: %v", err)
	}
	if again.Inserted != 0 || len(store.all()) != 1 {
		t.Fatalf("expected no new articles on rerun, got %+v", again)
	}
}

func TestRunPatchesExistingArticleMissingURL(t *testing.T) {
	t.Parallel()

	store := newMemoryStore(deal.Article{Date: targetDay, Title: "Apollo Provides $500M Credit Facility to TechCorp", Summary: "Stored without a link."})
	extractor := &stubExtractor{candidates: []deal.Candidate{
		{Title: "Apollo provides $500M credit facility to TechCorp!", Summary: "Now with a link.", SourceURL: "https://www.reuters.com/apollo-techcorp", SourceName: "Reuters"},
	}}
	c := newTestCoordinator(&stubSearcher{text: "raw"}, extractor, store, nil, nil)

	summary, err := c.Run(context.Background(), targetDay)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.Patched != 1 || summary.Inserted != 0 {
		t.Fatalf("expected a patch and no insert, got %+v", summary)
	}
	got := store.all()
	if len(got) != 1 || got[0].SourceURL != "https://www.reuters.com/apollo-techcorp" || got[0].SourceName != "Reuters" {
		t.Fatalf("expected patched attribution, got %+v", got)
	}
}

func TestRunMalformedExtractionStillPersistsFallback(t *testing.T) {
	t.Parallel()

	store := newMemoryStore()
	client := &sequenceClient{responses: []string{"this is not json", "neither is this"}}
	extractor := extract.New(client, zerolog.Nop(), extract.Options{})
	c := newTestCoordinator(&stubSearcher{text: "raw"}, extractor, store, nil, nil)

	summary, err := c.Run(context.Background(), targetDay)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.FallbackSections != 1 || summary.Inserted != 1 {
		t.Fatalf("expected one fallback record, got %+v", summary)
	}
	if got := store.all(); len(got) != 1 || !got[0].Date.Equal(targetDay) {
		t.Fatalf("unexpected stored articles: %+v", got)
	}
}

func TestRunExtractorErrorStoresMinimalRecord(t *testing.T) {
	t.Parallel()

	store := newMemoryStore()
	c := newTestCoordinator(&stubSearcher{text: "raw"}, &stubExtractor{err: errors.New("boom")}, store, nil, nil)

	summary, err := c.Run(context.Background(), targetDay)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.SectionErrors != 1 || summary.Inserted != 1 {
		t.Fatalf("expected minimal record after section error, got %+v", summary)
	}
}

func TestRunCancelledExtractionSkipsFallback(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := newMemoryStore()
	c := newTestCoordinator(&stubSearcher{text: "raw"}, &stubExtractor{cancel: cancel}, store, nil, nil)

	summary, err := c.Run(ctx, targetDay)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if summary.SectionErrors != 0 || summary.FallbackSections != 0 || summary.Inserted != 0 {
		t.Fatalf("cancelled extraction must not fall back, got %+v", summary)
	}
	if store.saves != 0 {
		t.Fatalf("expected no saves after cancellation, got %d", store.saves)
	}
	if summary.Status != RunStatusFailed {
		t.Fatalf("expected failed status, got %q", summary.Status)
	}
}

func TestRunNoContentStillCompletes(t *testing.T) {
	t.Parallel()

	store := newMemoryStore()
	c := newTestCoordinator(&stubSearcher{err: search.ErrNoContent}, &stubExtractor{}, store, nil, nil)

	summary, err := c.Run(context.Background(), targetDay)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if !summary.NoContent || summary.Status != RunStatusNoContent || summary.Sweep.Passes == 0 {
		t.Fatalf("unexpected no-content summary: %+v", summary)
	}
}

func TestRunRecoversPanicAndReleasesGuard(t *testing.T) {
	t.Parallel()

	store := newMemoryStore()
	c := newTestCoordinator(&stubSearcher{text: "raw"}, &stubExtractor{panicMsg: "bad index"}, store, nil, nil)

	summary, err := c.Run(context.Background(), targetDay)
	if err == nil || summary.Status != RunStatusFailed {
		t.Fatalf("expected failed run, got %+v err=%v", summary, err)
	}
	if _, err := c.Sweep(context.Background()); err != nil {
		t.Fatalf("guard should be released after a panic: %v", err)
	}
}

func TestRunRejectsWhileBusy(t *testing.T) {
	t.Parallel()

	store := newMemoryStore()
	searcher := &stubSearcher{text: "raw", block: make(chan struct{})}
	c := newTestCoordinator(searcher, &stubExtractor{}, store, nil, nil)

	runUUID, err := c.Launch(context.Background(), targetDay)
	if err != nil || runUUID == "" {
		t.Fatalf("Launch: uuid=%q err=%v", runUUID, err)
	}
	if _, err := c.Run(context.Background(), targetDay); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy from Run, got %v", err)
	}
	if err := c.LaunchSweep(context.Background()); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy from LaunchSweep, got %v", err)
	}
	if status := c.Status(); !status.Running || status.CurrentRun != runUUID {
		t.Fatalf("unexpected status while running: %+v", status)
	}

	close(searcher.block)
	c.Wait()

	if _, err := c.Run(context.Background(), targetDay); err != nil {
		t.Fatalf("expected run after release, got %v", err)
	}
}

func TestRunRejectsWhenDistributedLockHeld(t *testing.T) {
	t.Parallel()

	locker := lock.NewLocal()
	unlock, err := locker.TryLock(context.Background(), defaultLockKey, time.Minute)
	if err != nil {
		t.Fatalf("pre-lock: %v", err)
	}
	c := newTestCoordinator(&stubSearcher{text: "raw"}, &stubExtractor{}, newMemoryStore(), nil, locker)

	if _, err := c.Run(context.Background(), targetDay); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	_ = unlock(context.Background())
	if _, err := c.Run(context.Background(), targetDay); err != nil {
		t.Fatalf("expected run after unlock, got %v", err)
	}
}

type sequenceClient struct {
	mu        sync.Mutex
	responses []string
	calls     int
}

func (s *sequenceClient) Name() string { return "sequence" }

func (s *sequenceClient) Complete(_ context.Context, _ llm.Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { s.calls++ }()
	if s.calls < len(s.responses) {
		return s.responses[s.calls], nil
	}
	return "", llm.ErrEmptyResponse
}
