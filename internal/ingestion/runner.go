package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/internal/ingestion/canonical"
	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/internal/ingestion/classifier"
	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/internal/ingestion/lock"
	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/internal/ingestion/scorer"
	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/internal/signal"
	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/pkg/tracing"
)

const (
	DateLayout        = "2006-01-02"
	DefaultMaxItems   = 60
	noSignalsMessage  = "No signals were created."
	finalizeTimeout   = 10 * time.Second
	defaultSourceWait = 12 * time.Second
)

// Store is the persistence the runner needs.
type Store interface {
	CreateRun(ctx context.Context, triggeredBy string, startedAt time.Time) (string, error)
	ListEnabledSources(ctx context.Context) ([]signal.Source, error)
	MarkSourceFetched(ctx context.Context, sourceID string, at time.Time) error
	MarkSourceFailed(ctx context.Context, sourceID, message string) error
	ReplaceEdition(ctx context.Context, snap signal.EditionSnapshot) (string, error)
	FinalizeRun(ctx context.Context, runID string, final signal.RunFinal) error
}

// Fetcher fetches raw items for one source.
type Fetcher interface {
	Fetch(ctx context.Context, src signal.Source, maxItems int) ([]signal.RawItem, error)
}

// EventPublisher announces finished runs.
type EventPublisher interface {
	PublishRun(ctx context.Context, event RunCompletedEvent, drafts []signal.Draft) error
}

// Invalidator drops cached reads of an edition.
type Invalidator interface {
	Invalidate(ctx context.Context, date string) error
}

type Config struct {
	MaxItems       int
	SourceTimeout  time.Duration
	HeadlinerCount int
	LogDir         string
	Trace          bool
}

// Deps are the runner's collaborators. Publisher, Cache, Locker and Metrics
// are optional.
type Deps struct {
	Store      Store
	Sources    Fetcher
	Classifier classifier.Classifier
	Publisher  EventPublisher
	Cache      Invalidator
	Locker     lock.Locker
	Metrics    *metrics.Metrics
	Now        func() time.Time
}

// Runner executes ingestion runs.
type Runner struct {
	cfg    Config
	deps   Deps
	logger *slog.Logger
}

func NewRunner(cfg Config, deps Deps) *Runner {
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = DefaultMaxItems
	}
	if cfg.SourceTimeout <= 0 {
		cfg.SourceTimeout = defaultSourceWait
	}
	if cfg.HeadlinerCount <= 0 {
		cfg.HeadlinerCount = scorer.DefaultHeadliners
	}
	if cfg.LogDir == "" {
		cfg.LogDir = "logs"
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Locker == nil {
		deps.Locker = lock.NewLocal()
	}
	return &Runner{
		cfg:    cfg,
		deps:   deps,
		logger: slog.Default().With("component", "ingestion-runner"),
	}
}

// Trigger runs req while holding the lock for its date. It fails with
// ErrRunInProgress when another run holds the lock; otherwise the error is
// always nil and the outcome is in the Result.
func (r *Runner) Trigger(ctx context.Context, req Request) (Result, error) {
	req = r.withDefaults(req)
	release, err := r.deps.Locker.Acquire(ctx, req.Date)
	if err != nil {
		return Result{}, err
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
		defer cancel()
		if err := release(releaseCtx); err != nil {
			r.logger.Warn("failed to release run lock", "date", req.Date, "error", err)
		}
	}()
	return r.Run(ctx, req), nil
}

func (r *Runner) withDefaults(req Request) Request {
	if strings.TrimSpace(req.Date) == "" {
		req.Date = r.deps.Now().UTC().Format(DateLayout)
	}
	req.TriggeredBy = strings.TrimSpace(req.TriggeredBy)
	if req.TriggeredBy == "" {
		req.TriggeredBy = DefaultTriggeredBy
	}
	if req.MaxItems <= 0 {
		req.MaxItems = r.cfg.MaxItems
	}
	return req
}

// run holds the mutable state of one execution.
type run struct {
	id          string
	date        string
	triggeredBy string
	maxItems    int
	startedAt   time.Time
	log         runLog

	itemsFetched         int
	sourceErrors         int
	classificationErrors int
	drafts               []signal.Draft
	editionID            string
	counts               HeatCounts
}

// Run executes one ingestion run. It never returns an error: failures are
// recorded on the run and reflected in Result.Status.
func (r *Runner) Run(ctx context.Context, req Request) Result {
	req = r.withDefaults(req)
	st := &run{
		date:        req.Date,
		triggeredBy: req.TriggeredBy,
		maxItems:    req.MaxItems,
		startedAt:   r.deps.Now().UTC(),
	}

	id, err := r.deps.Store.CreateRun(ctx, st.triggeredBy, st.startedAt)
	if err != nil {
		r.logger.Error("failed to create run", "date", st.date, "error", err)
		st.log.Printf("Fatal error: %s", err)
		return r.finish(ctx, st, signal.RunFailed, err.Error(), false)
	}
	st.id = id
	ctx = logger.WithRunID(ctx, id)

	var span *tracing.Span
	ctx, span = tracing.StartSpan(ctx, "ingestion.run", id)
	span.SetAttr("date", st.date)
	defer func() {
		span.End()
		if r.cfg.Trace {
			span.Log(logger.FromContext(ctx))
		}
	}()

	if err := r.execute(ctx, st); err != nil {
		span.Fail(err)
		logger.FromContext(ctx).Error("ingestion run failed", "date", st.date, "error", err)
		st.log.Printf("Fatal error: %s", err)
		return r.finish(ctx, st, signal.RunFailed, err.Error(), true)
	}

	status, message := deriveStatus(len(st.drafts), st.sourceErrors+st.classificationErrors)
	return r.finish(ctx, st, status, message, true)
}

func deriveStatus(created, errs int) (signal.RunStatus, string) {
	switch {
	case created == 0:
		return signal.RunFailed, noSignalsMessage
	case errs > 0:
		return signal.RunPartial, ""
	default:
		return signal.RunSuccess, ""
	}
}

// execute performs steps from source loading through persistence. Panics
// are converted to errors.
func (r *Runner) execute(ctx context.Context, st *run) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic during ingestion: %v", p)
		}
	}()

	st.log.Printf("[run:%s] Starting ingestion for %s", st.id, st.date)

	date, err := time.Parse(DateLayout, st.date)
	if err != nil {
		return fmt.Errorf("parsing edition date %q: %w", st.date, err)
	}

	sources, err := r.deps.Store.ListEnabledSources(ctx)
	if err != nil {
		return fmt.Errorf("loading sources: %w", err)
	}
	st.log.Printf("Enabled sources: %d", len(sources))

	items := r.fetchAll(ctx, st, sources)
	st.itemsFetched = len(items)

	_, dedupeSpan := tracing.StartChildSpan(ctx, "dedupe")
	deduped := canonical.Dedupe(items)
	if len(deduped) > st.maxItems {
		deduped = deduped[:st.maxItems]
	}
	dedupeSpan.SetAttr("items", len(deduped))
	dedupeSpan.End()
	st.log.Printf("After canonical dedupe: %d", len(deduped))

	classifyCtx, classifySpan := tracing.StartChildSpan(ctx, "classify")
	drafts := r.classifyAll(classifyCtx, st, deduped)
	classifySpan.SetAttr("errors", st.classificationErrors)
	classifySpan.End()

	_, scoreSpan := tracing.StartChildSpan(ctx, "score")
	st.drafts = scorer.Assign(drafts, r.cfg.HeadlinerCount)
	st.counts = countHeat(st.drafts)
	scoreSpan.End()

	snap := signal.EditionSnapshot{
		Date:         st.date,
		TotalCount:   len(st.drafts),
		HotCount:     st.counts.Hot,
		NotableCount: st.counts.Notable,
		QuietCount:   st.counts.Quiet,
		MorningNote:  MorningNote(date, st.drafts),
		GeneratedAt:  r.deps.Now().UTC(),
		Drafts:       st.drafts,
	}

	persistCtx, persistSpan := tracing.StartChildSpan(ctx, "persist")
	editionID, err := r.deps.Store.ReplaceEdition(persistCtx, snap)
	persistSpan.End()
	if err != nil {
		persistSpan.Fail(err)
		// nothing was written; report zero created
		st.drafts = nil
		return fmt.Errorf("replacing edition %s: %w", st.date, err)
	}
	st.editionID = editionID
	st.log.Printf("Signals persisted: %d", len(st.drafts))
	return nil
}

type fetchOutcome struct {
	items []signal.RawItem
	err   error
}

// fetchAll fetches every source concurrently and waits for all of them.
// Results keep source order.
func (r *Runner) fetchAll(ctx context.Context, st *run, sources []signal.Source) []signal.RawItem {
	ctx, span := tracing.StartChildSpan(ctx, "fetch")
	defer span.End()
	span.SetAttr("sources", len(sources))

	perSource := int(math.Ceil(float64(st.maxItems)/float64(max(1, len(sources))))) + 2
	outcomes := make([]fetchOutcome, len(sources))

	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		go func(i int, src signal.Source) {
			defer wg.Done()
			outcomes[i] = r.fetchOne(ctx, st, src, perSource)
		}(i, src)
	}
	wg.Wait()

	var items []signal.RawItem
	for _, o := range outcomes {
		if o.err != nil {
			st.sourceErrors++
			continue
		}
		items = append(items, o.items...)
	}
	span.SetAttr("items", len(items))
	span.SetAttr("errors", st.sourceErrors)
	return items
}

func (r *Runner) fetchOne(ctx context.Context, st *run, src signal.Source, limit int) fetchOutcome {
	log := logger.FromContext(ctx).With("source", src.Name, "type", src.Type)
	start := time.Now()

	items, err := resilience.Call(ctx, r.cfg.SourceTimeout, "fetch:"+src.Name, func(ctx context.Context) (items []signal.RawItem, err error) {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("adapter panic: %v", p)
			}
		}()
		return r.deps.Sources.Fetch(ctx, src, limit)
	})
	r.observeFetch(src.Type, time.Since(start), err)

	if err != nil {
		msg := err.Error()
		st.log.Printf("%s: fetch failed (%s)", src.Name, msg)
		log.Warn("source fetch failed", "error", err)
		if markErr := r.deps.Store.MarkSourceFailed(ctx, src.ID, signal.Clip(msg, signal.MaxLastError)); markErr != nil {
			log.Error("failed to record source error", "error", markErr)
		}
		return fetchOutcome{err: err}
	}

	st.log.Printf("%s: fetched %d items", src.Name, len(items))
	if markErr := r.deps.Store.MarkSourceFetched(ctx, src.ID, r.deps.Now().UTC()); markErr != nil {
		log.Error("failed to record source fetch", "error", markErr)
	}
	return fetchOutcome{items: items}
}

func (r *Runner) classifyAll(ctx context.Context, st *run, items []signal.RawItem) []signal.Draft {
	drafts := make([]signal.Draft, 0, len(items))
	for _, item := range items {
		c, err := r.classifyOne(ctx, item)
		if err != nil {
			st.classificationErrors++
			st.log.Printf("Classify failed for %s: %s", item.SourceURL, err)
			continue
		}
		c.Citations = classifier.MergeCitations(item.SourceURL, c.Citations)
		drafts = append(drafts, signal.Draft{
			Classification: c,
			SourceURL:      item.SourceURL,
			SourceDomain:   item.SourceDomain,
			ProviderKey:    item.ProviderKey,
			ProviderLabel:  item.ProviderLabel,
			OccurredAt:     item.PublishedAt,
		})
	}
	return drafts
}

func (r *Runner) classifyOne(ctx context.Context, item signal.RawItem) (c signal.Classification, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("classifier panic: %v", p)
		}
	}()
	return r.deps.Classifier.Classify(ctx, item)
}

// finish writes the run log, finalizes the run row and emits the run event.
// finalize is false when the run row was never created.
func (r *Runner) finish(ctx context.Context, st *run, status signal.RunStatus, message string, finalize bool) Result {
	// bookkeeping must survive a cancelled trigger
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()
	log := logger.FromContext(ctx)
	finishedAt := r.deps.Now().UTC()

	text := st.log.Text()
	logPath, err := writeLogFile(r.cfg.LogDir, LogFileName(st.date, finishedAt), text)
	if err != nil {
		log.Error("failed to write run log", "error", err)
	}

	res := Result{
		RunID:                st.id,
		EditionDate:          st.date,
		Status:               status,
		ItemsFetched:         st.itemsFetched,
		ItemsCreated:         len(st.drafts),
		SourceErrors:         st.sourceErrors,
		ClassificationErrors: st.classificationErrors,
		LogPath:              logPath,
		ErrorMessage:         message,
	}
	if !finalize {
		return res
	}

	err = r.deps.Store.FinalizeRun(ctx, st.id, signal.RunFinal{
		Status:       status,
		FinishedAt:   finishedAt,
		ItemsFetched: res.ItemsFetched,
		ItemsCreated: res.ItemsCreated,
		ErrorMessage: message,
		LogText:      text,
		LogPath:      logPath,
		EditionID:    st.editionID,
	})
	if err != nil {
		log.Error("failed to finalize run", "error", err)
	}

	r.observeRun(res, finishedAt.Sub(st.startedAt))
	log.Info("ingestion run finished",
		"date", st.date,
		"status", status,
		"fetched", res.ItemsFetched,
		"created", res.ItemsCreated,
		"source_errors", res.SourceErrors,
		"classification_errors", res.ClassificationErrors,
	)

	if st.editionID != "" && r.deps.Cache != nil {
		if err := r.deps.Cache.Invalidate(ctx, st.date); err != nil {
			log.Warn("failed to invalidate edition cache", "date", st.date, "error", err)
		}
	}
	if r.deps.Publisher != nil {
		event := RunCompletedEvent{
			RunID:                st.id,
			EditionDate:          st.date,
			EditionID:            st.editionID,
			Status:               status,
			TriggeredBy:          st.triggeredBy,
			ItemsFetched:         res.ItemsFetched,
			ItemsCreated:         res.ItemsCreated,
			SourceErrors:         res.SourceErrors,
			ClassificationErrors: res.ClassificationErrors,
			HotCount:             st.counts.Hot,
			NotableCount:         st.counts.Notable,
			QuietCount:           st.counts.Quiet,
			TopTracks:            TopTracks(st.drafts, 3),
			StartedAt:            st.startedAt,
			FinishedAt:           finishedAt,
			DurationMs:           finishedAt.Sub(st.startedAt).Milliseconds(),
		}
		if err := r.deps.Publisher.PublishRun(ctx, event, st.drafts); err != nil {
			log.Warn("failed to publish run event", "error", err)
		}
	}
	return res
}

func (r *Runner) observeFetch(t signal.SourceType, d time.Duration, err error) {
	m := r.deps.Metrics
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
		if errors.Is(err, context.DeadlineExceeded) {
			result = "timeout"
		}
	}
	m.SourceFetchTotal.WithLabelValues(string(t), result).Inc()
	m.SourceFetchDuration.WithLabelValues(string(t)).Observe(d.Seconds())
}

func (r *Runner) observeRun(res Result, d time.Duration) {
	m := r.deps.Metrics
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(string(res.Status)).Inc()
	m.RunDuration.Observe(d.Seconds())
	m.ItemsFetchedTotal.Add(float64(res.ItemsFetched))
	m.SignalsCreatedTotal.Add(float64(res.ItemsCreated))
}
