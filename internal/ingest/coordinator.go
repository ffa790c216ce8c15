// Package ingest sequences one ingestion run: search, parse, extract,
// resolve duplicates, persist, then sweep the recent corpus.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/DeividasMat/deal-website-sub000/internal/deal"
	"github.com/DeividasMat/deal-website-sub000/internal/dedup"
	"github.com/DeividasMat/deal-website-sub000/internal/extract"
	"github.com/DeividasMat/deal-website-sub000/internal/globaltime"
	"github.com/DeividasMat/deal-website-sub000/internal/lock"
	"github.com/DeividasMat/deal-website-sub000/internal/logging"
	"github.com/DeividasMat/deal-website-sub000/internal/search"
	"github.com/DeividasMat/deal-website-sub000/internal/sections"
)

// ErrBusy is returned when a run or sweep is requested while another one
// holds the single-flight guard.
var ErrBusy = errors.New("ingestion already in progress")

type State string

const (
	StateIdle       State = "idle"
	StateFetching   State = "fetching"
	StateParsing    State = "parsing"
	StateExtracting State = "extracting"
	StateResolving  State = "resolving"
	StateCleaning   State = "cleaning"
)

const (
	RunStatusCompleted = "completed"
	RunStatusNoContent = "no_content"
	RunStatusFailed    = "failed"
)

const (
	defaultPersistGroupSize = 3
	defaultLockKey          = "ingest"
	defaultLockTTL          = 2 * time.Hour
)

type Searcher interface {
	Search(ctx context.Context, targetDate time.Time, categories []string) (string, error)
}

type Extractor interface {
	Extract(ctx context.Context, section deal.Section) ([]deal.Candidate, error)
}

// Store is the persistence gateway surface used by the coordinator.
type Store interface {
	dedup.SweepStore
	Save(ctx context.Context, article deal.Article) (int64, error)
	GetByDate(ctx context.Context, date time.Time) ([]deal.Article, error)
	FindDuplicateCandidates(ctx context.Context, title string, date time.Time) ([]deal.Article, error)
}

// RunRecorder persists the run audit trail. Failures are logged only.
type RunRecorder interface {
	StartIngestRun(ctx context.Context, runUUID string, targetDate, startedAt time.Time) error
	FinishIngestRun(ctx context.Context, summary RunSummary) error
}

type Dependencies struct {
	Searcher  Searcher
	Extractor Extractor
	Engine    *dedup.Engine
	Store     Store
	// Parse defaults to sections.Parse.
	Parse func(raw string) []deal.Section
	// Runs and Locker are optional.
	Runs   RunRecorder
	Locker lock.Locker
}

type Options struct {
	Categories       []string
	PersistGroupSize int
	LockKey          string
	LockTTL          time.Duration
	SweepWindowDays  int
	SweepMaxSemantic int
}

// RunSummary reports what one run did. Per-article detail stays in logs.
type RunSummary struct {
	RunUUID          string            `json:"run_uuid"`
	TargetDate       time.Time         `json:"target_date"`
	Status           string            `json:"status"`
	Error            string            `json:"error,omitempty"`
	NoContent        bool              `json:"no_content"`
	Sections         int               `json:"sections"`
	Candidates       int               `json:"candidates"`
	Inserted         int               `json:"inserted"`
	Patched          int               `json:"patched"`
	Skipped          int               `json:"skipped"`
	FallbackSections int               `json:"fallback_sections"`
	EmptySections    int               `json:"empty_sections"`
	SectionErrors    int               `json:"section_errors"`
	ArticleErrors    int               `json:"article_errors"`
	Sweep            dedup.SweepResult `json:"sweep"`
	SweepError       string            `json:"sweep_error,omitempty"`
	StartedAt        time.Time         `json:"started_at"`
	FinishedAt       time.Time         `json:"finished_at"`
}

type Status struct {
	State         State              `json:"state"`
	Running       bool               `json:"running"`
	CurrentRun    string             `json:"current_run,omitempty"`
	CurrentTarget *time.Time         `json:"current_target,omitempty"`
	LastRun       *RunSummary        `json:"last_run,omitempty"`
	LastSweep     *dedup.SweepResult `json:"last_sweep,omitempty"`
}

type Coordinator struct {
	deps   Dependencies
	opts   Options
	logger zerolog.Logger

	running atomic.Bool
	wg      sync.WaitGroup

	mu            sync.RWMutex
	state         State
	currentRun    string
	currentTarget time.Time
	lastRun       *RunSummary
	lastSweep     *dedup.SweepResult
}

func NewCoordinator(deps Dependencies, logger zerolog.Logger, opts Options) *Coordinator {
	if deps.Parse == nil {
		deps.Parse = sections.Parse
	}
	if opts.PersistGroupSize <= 0 {
		opts.PersistGroupSize = defaultPersistGroupSize
	}
	if strings.TrimSpace(opts.LockKey) == "" {
		opts.LockKey = defaultLockKey
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = defaultLockTTL
	}
	return &Coordinator{
		deps:   deps,
		opts:   opts,
		logger: logging.Component(logger, "ingest"),
		state:  StateIdle,
	}
}

// Run executes one ingestion run for targetDate and blocks until it and the
// follow-up sweep finish. Returns ErrBusy without side effects when another
// run or sweep is in progress.
func (c *Coordinator) Run(ctx context.Context, targetDate time.Time) (RunSummary, error) {
	release, err := c.begin(ctx)
	if err != nil {
		return RunSummary{}, err
	}
	defer release()
	return c.run(ctx, targetDate, uuid.NewString())
}

// Launch starts a run in the background and returns its UUID. Busy
// rejection is still synchronous.
func (c *Coordinator) Launch(ctx context.Context, targetDate time.Time) (string, error) {
	release, err := c.begin(ctx)
	if err != nil {
		return "", err
	}
	runUUID := uuid.NewString()
	runCtx := context.WithoutCancel(ctx)

	c.mu.Lock()
	c.currentRun = runUUID
	c.currentTarget = deal.DayOf(targetDate)
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer release()
		if _, err := c.run(runCtx, targetDate, runUUID); err != nil {
			c.logger.Error().Err(err).Str("run_uuid", runUUID).Msg("background ingestion run failed")
		}
	}()
	return runUUID, nil
}

// Sweep runs only the cleanup sweep, anchored at today, behind the same
// guard as ingestion runs.
func (c *Coordinator) Sweep(ctx context.Context) (dedup.SweepResult, error) {
	release, err := c.begin(ctx)
	if err != nil {
		return dedup.SweepResult{}, err
	}
	defer release()
	return c.sweep(ctx, globaltime.Today())
}

func (c *Coordinator) LaunchSweep(ctx context.Context) error {
	release, err := c.begin(ctx)
	if err != nil {
		return err
	}
	sweepCtx := context.WithoutCancel(ctx)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer release()
		if _, err := c.sweep(sweepCtx, globaltime.Today()); err != nil {
			c.logger.Error().Err(err).Msg("background sweep failed")
		}
	}()
	return nil
}

// Wait blocks until launched background work has finished.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

func (c *Coordinator) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	status := Status{
		State:      c.state,
		Running:    c.running.Load(),
		CurrentRun: c.currentRun,
		LastRun:    c.lastRun,
		LastSweep:  c.lastSweep,
	}
	if !c.currentTarget.IsZero() {
		target := c.currentTarget
		status.CurrentTarget = &target
	}
	return status
}

func (c *Coordinator) begin(ctx context.Context) (func(), error) {
	if !c.running.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}

	var unlock lock.Unlock
	if c.deps.Locker != nil {
		u, err := c.deps.Locker.TryLock(ctx, c.opts.LockKey, c.opts.LockTTL)
		if err != nil {
			c.running.Store(false)
			if errors.Is(err, lock.ErrNotAcquired) {
				return nil, ErrBusy
			}
			return nil, fmt.Errorf("acquire run lock: %w", err)
		}
		unlock = u
	}

	return func() {
		if unlock != nil {
			if err := unlock(context.Background()); err != nil {
				c.logger.Warn().Err(err).Msg("release run lock failed")
			}
		}
		c.mu.Lock()
		c.state = StateIdle
		c.currentRun = ""
		c.currentTarget = time.Time{}
		c.mu.Unlock()
		c.running.Store(false)
	}, nil
}

func (c *Coordinator) setState(state State) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
}

func (c *Coordinator) run(ctx context.Context, targetDate time.Time, runUUID string) (summary RunSummary, err error) {
	target := deal.DayOf(targetDate)
	summary = RunSummary{
		RunUUID:    runUUID,
		TargetDate: target,
		StartedAt:  globaltime.UTC(),
	}
	logger := c.logger.With().
		Str("run_uuid", runUUID).
		Str("target_date", target.Format(time.DateOnly)).
		Logger()

	c.mu.Lock()
	c.currentRun = runUUID
	c.currentTarget = target
	c.mu.Unlock()

	if c.deps.Runs != nil {
		if recErr := c.deps.Runs.StartIngestRun(ctx, runUUID, target, summary.StartedAt); recErr != nil {
			logger.Warn().Err(recErr).Msg("record ingest run start failed")
		}
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("ingestion run panicked: %v", r)
		}
		summary.FinishedAt = globaltime.UTC()
		switch {
		case err != nil:
			summary.Status = RunStatusFailed
			summary.Error = err.Error()
		case summary.NoContent:
			summary.Status = RunStatusNoContent
		default:
			summary.Status = RunStatusCompleted
		}
		c.finish(ctx, logger, summary)
	}()

	logger.Info().Msg("ingestion run started")

	c.setState(StateFetching)
	raw, searchErr := c.deps.Searcher.Search(ctx, target, c.opts.Categories)
	switch {
	case errors.Is(searchErr, search.ErrNoContent):
		summary.NoContent = true
		logger.Warn().Msg("search returned no usable content")
	case searchErr != nil:
		return summary, fmt.Errorf("search: %w", searchErr)
	default:
		c.setState(StateParsing)
		parsed := c.deps.Parse(raw)
		summary.Sections = len(parsed)
		logger.Info().Int("sections", len(parsed)).Msg("parsed search output")

		for i, section := range parsed {
			if err := ctx.Err(); err != nil {
				return summary, err
			}
			sectionLogger := logger.With().Int("section", i).Str("category", section.Category).Logger()

			c.setState(StateExtracting)
			candidates := c.extractSection(ctx, sectionLogger, section, &summary)

			c.setState(StateResolving)
			c.resolve(ctx, sectionLogger, target, candidates, &summary)
		}
	}
	if err := ctx.Err(); err != nil {
		return summary, err
	}

	c.setState(StateCleaning)
	result, sweepErr := c.sweep(ctx, target)
	summary.Sweep = result
	if sweepErr != nil {
		summary.SweepError = sweepErr.Error()
		logger.Warn().Err(sweepErr).Msg("post-run sweep failed")
	}
	return summary, nil
}

func (c *Coordinator) finish(ctx context.Context, logger zerolog.Logger, summary RunSummary) {
	if c.deps.Runs != nil {
		if err := c.deps.Runs.FinishIngestRun(context.WithoutCancel(ctx), summary); err != nil {
			logger.Warn().Err(err).Msg("record ingest run finish failed")
		}
	}

	c.mu.Lock()
	last := summary
	c.lastRun = &last
	c.mu.Unlock()

	event := logger.Info()
	if summary.Status == RunStatusFailed {
		event = logger.Error().Str("error", summary.Error)
	}
	event.
		Str("status", summary.Status).
		Int("sections", summary.Sections).
		Int("candidates", summary.Candidates).
		Int("inserted", summary.Inserted).
		Int("patched", summary.Patched).
		Int("skipped", summary.Skipped).
		Int("fallback_sections", summary.FallbackSections).
		Int("section_errors", summary.SectionErrors).
		Int("article_errors", summary.ArticleErrors).
		Int("sweep_deleted", summary.Sweep.Deleted).
		Dur("duration", summary.FinishedAt.Sub(summary.StartedAt)).
		Msg("ingestion run finished")
}

func (c *Coordinator) extractSection(ctx context.Context, logger zerolog.Logger, section deal.Section, summary *RunSummary) []deal.Candidate {
	candidates, err := c.deps.Extractor.Extract(ctx, section)
	switch {
	case err != nil && ctx.Err() != nil:
		logger.Warn().Err(err).Msg("extraction interrupted by run cancellation")
		return nil
	case errors.Is(err, extract.ErrNoArticles):
		summary.EmptySections++
		logger.Debug().Err(err).Msg("section yielded no articles")
		return nil
	case err != nil:
		summary.SectionErrors++
		summary.FallbackSections++
		logger.Warn().Err(err).Msg("extraction failed; storing minimal section summary")
		candidates = []deal.Candidate{extract.Minimal(section)}
	case len(candidates) == 0:
		summary.EmptySections++
		return nil
	case lo.SomeBy(candidates, func(c deal.Candidate) bool { return c.Fallback }):
		summary.FallbackSections++
	}
	summary.Candidates += len(candidates)
	return candidates
}

// resolve checks each candidate against same-date and near-date records,
// patches matches that lack attribution, and saves the rest with their date
// pinned to target. All reads finish before any write of the batch starts.
func (c *Coordinator) resolve(ctx context.Context, logger zerolog.Logger, target time.Time, candidates []deal.Candidate, summary *RunSummary) {
	if len(candidates) == 0 {
		return
	}
	batch := extract.MergeBatch(candidates)
	summary.Skipped += len(candidates) - len(batch)

	existing, err := c.deps.Store.GetByDate(ctx, target)
	if err != nil {
		summary.ArticleErrors += len(batch)
		logger.Warn().Err(err).Msg("load same-date articles failed; skipping section")
		return
	}

	pending := make([]deal.Article, 0, len(batch))
	for _, candidate := range batch {
		article := deal.FromCandidate(candidate, target)

		pool := existing
		if near, err := c.deps.Store.FindDuplicateCandidates(ctx, article.Title, target); err != nil {
			logger.Warn().Err(err).Str("title", article.Title).Msg("near-date duplicate lookup failed")
		} else if len(near) > 0 {
			pool = lo.UniqBy(append(append([]deal.Article(nil), existing...), near...), func(a deal.Article) int64 { return a.ID })
		}

		if match, analysis, ok := c.deps.Engine.FindMatch(article, pool); ok {
			if url, name, missing := match.MissingAttribution(article); missing {
				if err := c.deps.Store.UpdateSourceAttribution(ctx, match.ID, url, name); err != nil {
					summary.ArticleErrors++
					logger.Warn().Err(err).Int64("id", match.ID).Msg("patch existing article failed")
					continue
				}
				summary.Patched++
				existing = patchLocal(existing, match.ID, url, name)
			} else {
				summary.Skipped++
			}
			logger.Debug().
				Str("title", article.Title).
				Int64("existing_id", match.ID).
				Str("stage", string(analysis.Stage)).
				Msg("candidate matches stored article")
			continue
		}

		if idx := c.pendingMatch(article, pending); idx >= 0 {
			if url, name, missing := pending[idx].MissingAttribution(article); missing {
				pending[idx] = withAttribution(pending[idx], url, name)
			}
			summary.Skipped++
			continue
		}
		pending = append(pending, article)
	}

	c.persist(ctx, logger, pending, summary)
}

func (c *Coordinator) pendingMatch(article deal.Article, pending []deal.Article) int {
	for i, other := range pending {
		if c.deps.Engine.CompareInline(article, other).Duplicate {
			return i
		}
	}
	return -1
}

func (c *Coordinator) persist(ctx context.Context, logger zerolog.Logger, articles []deal.Article, summary *RunSummary) {
	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(c.opts.PersistGroupSize)
	for _, article := range articles {
		g.Go(func() error {
			id, err := c.deps.Store.Save(ctx, article)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				summary.ArticleErrors++
				logger.Warn().Err(err).Str("title", article.Title).Msg("save article failed")
				return nil
			}
			summary.Inserted++
			logger.Debug().Int64("id", id).Str("title", article.Title).Msg("saved article")
			return nil
		})
	}
	_ = g.Wait()
}

func (c *Coordinator) sweep(ctx context.Context, anchor time.Time) (dedup.SweepResult, error) {
	c.setState(StateCleaning)
	result, err := c.deps.Engine.Sweep(ctx, c.deps.Store, dedup.SweepOptions{
		Anchor:      anchor,
		WindowDays:  c.opts.SweepWindowDays,
		MaxSemantic: c.opts.SweepMaxSemantic,
	})
	if err != nil {
		return result, err
	}

	c.mu.Lock()
	last := result
	c.lastSweep = &last
	c.mu.Unlock()
	return result, nil
}

func patchLocal(articles []deal.Article, id int64, url, name string) []deal.Article {
	out := make([]deal.Article, len(articles))
	for i, a := range articles {
		if a.ID == id {
			a = withAttribution(a, url, name)
		}
		out[i] = a
	}
	return out
}

func withAttribution(a deal.Article, url, name string) deal.Article {
	if url != "" {
		a.SourceURL = url
	}
	if name != "" {
		a.SourceName = name
	}
	return a
}
