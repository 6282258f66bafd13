package ingestion

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/internal/ingestion/classifier"
	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/internal/ingestion/lock"
	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/internal/signal"
	apperrors "github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/pkg/errors"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var testNow = time.Date(2025, 3, 14, 7, 30, 0, 123_000_000, time.UTC)

type memStore struct {
	mu         sync.Mutex
	sources    []signal.Source
	runs       map[string]signal.Run
	finals     map[string][]signal.RunFinal
	editions   map[string]signal.EditionSnapshot
	editionIDs map[string]string
	fetched    map[string]time.Time
	failed     map[string]string
	replaceErr error
	nextRun    int
}

func newMemStore(sources ...signal.Source) *memStore {
	return &memStore{
		sources:    sources,
		runs:       make(map[string]signal.Run),
		finals:     make(map[string][]signal.RunFinal),
		editions:   make(map[string]signal.EditionSnapshot),
		editionIDs: make(map[string]string),
		fetched:    make(map[string]time.Time),
		failed:     make(map[string]string),
	}
}

func (s *memStore) CreateRun(_ context.Context, triggeredBy string, startedAt time.Time) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextRun++
	id := fmt.Sprintf("run-%d", s.nextRun)
	s.runs[id] = signal.Run{ID: id, Status: signal.RunRunning, StartedAt: startedAt, TriggeredBy: triggeredBy}
	return id, nil
}

func (s *memStore) ListEnabledSources(context.Context) ([]signal.Source, error) {
	return s.sources, nil
}

func (s *memStore) MarkSourceFetched(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetched[id] = at
	delete(s.failed, id)
	return nil
}

func (s *memStore) MarkSourceFailed(_ context.Context, id, msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed[id] = msg
	return nil
}

func (s *memStore) ReplaceEdition(_ context.Context, snap signal.EditionSnapshot) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.replaceErr != nil {
		return "", s.replaceErr
	}
	id, ok := s.editionIDs[snap.Date]
	if !ok {
		id = "edition-" + snap.Date
		s.editionIDs[snap.Date] = id
	}
	s.editions[snap.Date] = snap
	return id, nil
}

func (s *memStore) FinalizeRun(_ context.Context, id string, final signal.RunFinal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finals[id] = append(s.finals[id], final)
	run := s.runs[id]
	run.Status = final.Status
	s.runs[id] = run
	return nil
}

type fakeSources struct {
	mu     sync.Mutex
	items  map[string][]signal.RawItem
	errs   map[string]error
	block  map[string]bool
	limits map[string]int
}

func (f *fakeSources) Fetch(ctx context.Context, src signal.Source, maxItems int) ([]signal.RawItem, error) {
	f.mu.Lock()
	if f.limits == nil {
		f.limits = make(map[string]int)
	}
	f.limits[src.ID] = maxItems
	f.mu.Unlock()

	if f.block[src.ID] {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err := f.errs[src.ID]; err != nil {
		return nil, err
	}
	return f.items[src.ID], nil
}

type scriptedClassifier struct {
	fail  map[string]bool
	panic map[string]bool
}

func (c scriptedClassifier) Classify(ctx context.Context, item signal.RawItem) (signal.Classification, error) {
	if c.panic[item.SourceURL] {
		panic("boom")
	}
	if c.fail[item.SourceURL] {
		return signal.Classification{}, errors.New("classifier unavailable")
	}
	return classifier.Heuristic(item), nil
}

func src(id, name string, tier int) signal.Source {
	return signal.Source{ID: id, Name: name, Type: signal.SourceRSS, ProviderLabel: name, Tier: tier, Enabled: true}
}

func item(srcID, url, title string, tier int) signal.RawItem {
	return signal.RawItem{
		SourceID:      srcID,
		SourceURL:     url,
		SourceDomain:  "example.com",
		Title:         title,
		Snippet:       "Release notes with new features and breaking API changes for builders.",
		PublishedAt:   testNow.Add(-time.Hour),
		ProviderLabel: "Example",
		ProviderKey:   "example",
		Tier:          tier,
	}
}

func newTestRunner(t *testing.T, store *memStore, sources *fakeSources, cls classifier.Classifier) *Runner {
	t.Helper()
	return NewRunner(Config{
		MaxItems:      60,
		SourceTimeout: 200 * time.Millisecond,
		LogDir:        t.TempDir(),
	}, Deps{
		Store:      store,
		Sources:    sources,
		Classifier: cls,
		Now:        func() time.Time { return testNow },
	})
}

func TestRunSuccess(t *testing.T) {
	store := newMemStore(src("a", "Alpha", 1), src("b", "Beta", 2))
	sources := &fakeSources{items: map[string][]signal.RawItem{
		"a": {
			item("a", "https://example.com/one?utm_source=rss", "Alpha launches v1 API", 1),
			item("a", "https://example.com/two", "Alpha SDK update", 1),
		},
		"b": {
			item("b", "https://EXAMPLE.com/one#frag", "Duplicate of one", 2),
			item("b", "https://example.com/three/", "Beta benchmark paper", 2),
		},
	}}
	r := newTestRunner(t, store, sources, scriptedClassifier{})

	res := r.Run(context.Background(), Request{Date: "2025-03-14", TriggeredBy: "cron"})

	if res.Status != signal.RunSuccess {
		t.Fatalf("expected SUCCESS, got %s (%s)", res.Status, res.ErrorMessage)
	}
	if res.ItemsFetched != 4 || res.ItemsCreated != 3 {
		t.Errorf("expected 4 fetched / 3 created, got %d / %d", res.ItemsFetched, res.ItemsCreated)
	}

	snap := store.editions["2025-03-14"]
	if snap.TotalCount != 3 || snap.HotCount+snap.NotableCount+snap.QuietCount != snap.TotalCount {
		t.Errorf("heat counts do not sum to total: %+v", snap)
	}
	if snap.Drafts[0].SourceURL != "https://example.com/one" {
		t.Errorf("first draft should keep canonical first-seen url, got %s", snap.Drafts[0].SourceURL)
	}
	for _, d := range snap.Drafts {
		if len(d.Citations) == 0 || d.Citations[0] != d.SourceURL {
			t.Errorf("citations must start with source url: %v", d.Citations)
		}
	}
	if !strings.HasPrefix(snap.MorningNote, "Today leans toward ") {
		t.Errorf("unexpected morning note %q", snap.MorningNote)
	}

	finals := store.finals[res.RunID]
	if len(finals) != 1 {
		t.Fatalf("run should be finalized exactly once, got %d", len(finals))
	}
	if finals[0].EditionID != "edition-2025-03-14" || finals[0].LogPath != res.LogPath {
		t.Errorf("unexpected final %+v", finals[0])
	}
	if store.runs[res.RunID].TriggeredBy != "cron" {
		t.Errorf("triggeredBy not recorded")
	}
	if _, ok := store.fetched["a"]; !ok {
		t.Errorf("lastFetchedAt should be recorded for source a")
	}

	text, err := os.ReadFile(res.LogPath)
	if err != nil {
		t.Fatalf("reading run log: %v", err)
	}
	for _, want := range []string{
		"[run:" + res.RunID + "] Starting ingestion for 2025-03-14",
		"Enabled sources: 2",
		"Alpha: fetched 2 items",
		"After canonical dedupe: 3",
		"Signals persisted: 3",
	} {
		if !strings.Contains(string(text), want) {
			t.Errorf("run log missing %q:\n%s", want, text)
		}
	}
	if !strings.HasSuffix(res.LogPath, "ingestion-2025-03-14-2025-03-14T07-30-00-123Z.log") {
		t.Errorf("unexpected log path %s", res.LogPath)
	}
}

func TestRunPartialOnSourceErrors(t *testing.T) {
	store := newMemStore(src("a", "Alpha", 1), src("b", "Beta", 2), src("c", "Slow", 3))
	sources := &fakeSources{
		items: map[string][]signal.RawItem{"a": {item("a", "https://example.com/one", "Alpha launches v1 API", 1)}},
		errs:  map[string]error{"b": errors.New(strings.Repeat("x", 600))},
		block: map[string]bool{"c": true},
	}
	r := newTestRunner(t, store, sources, scriptedClassifier{})

	res := r.Run(context.Background(), Request{Date: "2025-03-14"})

	if res.Status != signal.RunPartial {
		t.Fatalf("expected PARTIAL, got %s", res.Status)
	}
	if res.SourceErrors != 2 {
		t.Errorf("expected 2 source errors, got %d", res.SourceErrors)
	}
	if got := len([]rune(store.failed["b"])); got != signal.MaxLastError {
		t.Errorf("lastError should be clipped to %d, got %d", signal.MaxLastError, got)
	}
	if !strings.Contains(store.failed["c"], "deadline exceeded") {
		t.Errorf("slow source should fail with a timeout, got %q", store.failed["c"])
	}
	if store.runs[res.RunID].TriggeredBy != DefaultTriggeredBy {
		t.Errorf("expected default trigger, got %q", store.runs[res.RunID].TriggeredBy)
	}
}

func TestRunClassificationErrors(t *testing.T) {
	store := newMemStore(src("a", "Alpha", 1))
	sources := &fakeSources{items: map[string][]signal.RawItem{"a": {
		item("a", "https://example.com/one", "One launches", 1),
		item("a", "https://example.com/two", "Two fails", 1),
		item("a", "https://example.com/three", "Three panics", 1),
	}}}
	cls := scriptedClassifier{
		fail:  map[string]bool{"https://example.com/two": true},
		panic: map[string]bool{"https://example.com/three": true},
	}
	r := newTestRunner(t, store, sources, cls)

	res := r.Run(context.Background(), Request{Date: "2025-03-14"})
	if res.Status != signal.RunPartial {
		t.Fatalf("expected PARTIAL, got %s", res.Status)
	}
	if res.ClassificationErrors != 2 || res.ItemsCreated != 1 {
		t.Errorf("expected 2 classification errors and 1 created, got %d / %d", res.ClassificationErrors, res.ItemsCreated)
	}
	text, _ := os.ReadFile(res.LogPath)
	if !strings.Contains(string(text), "Classify failed for https://example.com/two: classifier unavailable") {
		t.Errorf("missing classify failure line:\n%s", text)
	}
}

func TestRunFailsWithoutSignals(t *testing.T) {
	store := newMemStore(src("a", "Alpha", 1))
	r := newTestRunner(t, store, &fakeSources{}, scriptedClassifier{})

	res := r.Run(context.Background(), Request{Date: "2025-03-14"})
	if res.Status != signal.RunFailed || res.ErrorMessage != "No signals were created." {
		t.Fatalf("unexpected result %+v", res)
	}
	snap := store.editions["2025-03-14"]
	if !strings.HasPrefix(snap.MorningNote, "Signal Nook found no eligible signals for March 14, 2025.") {
		t.Errorf("unexpected empty note %q", snap.MorningNote)
	}
}

func TestRunRejectsBadDateBeforeFetching(t *testing.T) {
	store := newMemStore(src("a", "Alpha", 1))
	sources := &fakeSources{items: map[string][]signal.RawItem{"a": {item("a", "https://example.com/one", "Alpha launches", 1)}}}
	r := newTestRunner(t, store, sources, scriptedClassifier{})

	res := r.Run(context.Background(), Request{Date: "2025-02-30"})
	if res.Status != signal.RunFailed || !strings.Contains(res.ErrorMessage, "2025-02-30") {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(sources.limits) != 0 {
		t.Errorf("no source should be fetched for an invalid date, got %v", sources.limits)
	}
	if len(store.editions) != 0 {
		t.Errorf("no edition should be written, got %d", len(store.editions))
	}
	if !store.runs[res.RunID].Status.Terminal() {
		t.Errorf("run must be finalized, got %s", store.runs[res.RunID].Status)
	}
}

func TestRunPersistenceFailure(t *testing.T) {
	store := newMemStore(src("a", "Alpha", 1))
	store.replaceErr = errors.New("connection reset")
	sources := &fakeSources{items: map[string][]signal.RawItem{"a": {item("a", "https://example.com/one", "Alpha launches", 1)}}}
	r := newTestRunner(t, store, sources, scriptedClassifier{})

	res := r.Run(context.Background(), Request{Date: "2025-03-14"})
	if res.Status != signal.RunFailed {
		t.Fatalf("expected FAILED, got %s", res.Status)
	}
	if !strings.Contains(res.ErrorMessage, "connection reset") {
		t.Errorf("error message should carry the cause, got %q", res.ErrorMessage)
	}
	if !store.runs[res.RunID].Status.Terminal() {
		t.Errorf("run must not be left RUNNING")
	}
	text, _ := os.ReadFile(res.LogPath)
	if !strings.Contains(string(text), "Fatal error: ") {
		t.Errorf("log should record the fatal error:\n%s", text)
	}
}

func TestRunReplacesEdition(t *testing.T) {
	store := newMemStore(src("a", "Alpha", 1))
	sources := &fakeSources{items: map[string][]signal.RawItem{"a": {
		item("a", "https://example.com/one", "Alpha launches", 1),
		item("a", "https://example.com/two", "Alpha again", 1),
	}}}
	r := newTestRunner(t, store, sources, scriptedClassifier{})

	first := r.Run(context.Background(), Request{Date: "2025-03-14"})
	second := r.Run(context.Background(), Request{Date: "2025-03-14"})

	if first.RunID == second.RunID {
		t.Fatalf("each run needs its own id")
	}
	if len(store.editions) != 1 || store.editions["2025-03-14"].TotalCount != 2 {
		t.Errorf("rerun should replace the edition, got %+v", store.editions)
	}
	if store.finals[first.RunID][0].EditionID != store.finals[second.RunID][0].EditionID {
		t.Errorf("rerun should reuse the edition id")
	}
}

func TestRunPerSourceCap(t *testing.T) {
	store := newMemStore(src("a", "A", 1), src("b", "B", 1), src("c", "C", 1))
	sources := &fakeSources{}
	r := newTestRunner(t, store, sources, scriptedClassifier{})

	r.Run(context.Background(), Request{Date: "2025-03-14", MaxItems: 10})
	for _, id := range []string{"a", "b", "c"} {
		if sources.limits[id] != 6 {
			t.Errorf("source %s: expected limit ceil(10/3)+2 = 6, got %d", id, sources.limits[id])
		}
	}
}

func TestTriggerRejectsConcurrentRun(t *testing.T) {
	locker := lock.NewLocal()
	release, err := locker.Acquire(context.Background(), "2025-03-14")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer release(context.Background())

	r := NewRunner(Config{LogDir: t.TempDir()}, Deps{
		Store:      newMemStore(),
		Sources:    &fakeSources{},
		Classifier: scriptedClassifier{},
		Locker:     locker,
		Now:        func() time.Time { return testNow },
	})
	if _, err := r.Trigger(context.Background(), Request{}); !errors.Is(err, apperrors.ErrRunInProgress) {
		t.Fatalf("expected ErrRunInProgress for today's date, got %v", err)
	}
	res, err := r.Trigger(context.Background(), Request{Date: "2025-03-13"})
	if err != nil || res.EditionDate != "2025-03-13" {
		t.Fatalf("other dates should run, got %+v, %v", res, err)
	}
}

func TestDeriveStatus(t *testing.T) {
	tests := []struct {
		created, errs int
		want          signal.RunStatus
	}{
		{0, 0, signal.RunFailed},
		{0, 3, signal.RunFailed},
		{5, 1, signal.RunPartial},
		{5, 0, signal.RunSuccess},
	}
	for _, tt := range tests {
		if got, _ := deriveStatus(tt.created, tt.errs); got != tt.want {
			t.Errorf("deriveStatus(%d, %d) = %s, want %s", tt.created, tt.errs, got, tt.want)
		}
	}
}
