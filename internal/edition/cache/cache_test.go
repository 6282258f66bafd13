package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	goredis "github.com/redis/go-redis/v9"

	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/internal/signal"
	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/pkg/metrics"
)

type memKV struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemKV() *memKV { return &memKV{data: make(map[string]string)} }

func (m *memKV) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", goredis.Nil
	}
	return v, nil
}

func (m *memKV) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		m.data[key] = string(v)
	case string:
		m.data[key] = v
	default:
		return errors.New("unsupported value")
	}
	return nil
}

func (m *memKV) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memKV) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	var n int64
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			delete(m.data, k)
			n++
		}
	}
	return n, nil
}

func (m *memKV) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}

func TestEditionReadThrough(t *testing.T) {
	kv := newMemKV()
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	c := New(kv, time.Minute, m)
	ctx := context.Background()

	var loads atomic.Int32
	load := func() (*signal.Edition, error) {
		loads.Add(1)
		return &signal.Edition{ID: "ed-1", Date: "2025-03-14", TotalCount: 3}, nil
	}

	e, hit, err := c.Edition(ctx, "2025-03-14", load)
	if err != nil {
		t.Fatalf("first read: %v", err)
	}
	if hit || e.ID != "ed-1" {
		t.Fatalf("expected miss with loaded edition, got hit=%v %+v", hit, e)
	}

	e, hit, err = c.Edition(ctx, "2025-03-14", load)
	if err != nil {
		t.Fatalf("second read: %v", err)
	}
	if !hit || e.TotalCount != 3 {
		t.Errorf("expected cached edition, got hit=%v %+v", hit, e)
	}
	if loads.Load() != 1 {
		t.Errorf("expected one load, got %d", loads.Load())
	}
	if got := testutil.ToFloat64(m.EditionCacheHitsTotal); got != 1 {
		t.Errorf("expected 1 hit, got %v", got)
	}
}

func TestLoadErrorIsNotCached(t *testing.T) {
	kv := newMemKV()
	c := New(kv, time.Minute, nil)
	ctx := context.Background()

	_, _, err := c.Latest(ctx, func() (*signal.Edition, error) {
		return nil, errors.New("db down")
	})
	if err == nil {
		t.Fatal("expected load error")
	}
	if kv.has(latestKey) {
		t.Error("failed load must not be cached")
	}
}

func TestInvalidate(t *testing.T) {
	kv := newMemKV()
	c := New(kv, time.Minute, nil)
	ctx := context.Background()

	edition := func() (*signal.Edition, error) { return &signal.Edition{ID: "ed-1", Date: "2025-03-14"}, nil }
	other := func() (*signal.Edition, error) { return &signal.Edition{ID: "ed-0", Date: "2025-03-13"}, nil }
	list := func() ([]signal.EditionSummary, error) { return []signal.EditionSummary{{ID: "ed-1"}}, nil }

	c.Edition(ctx, "2025-03-14", edition)
	c.Edition(ctx, "2025-03-13", other)
	c.Latest(ctx, edition)
	c.List(ctx, 30, list)

	if err := c.Invalidate(ctx, "2025-03-14"); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if kv.has(dateKey("2025-03-14")) || kv.has(latestKey) || kv.has(listPrefix+"30") {
		t.Error("expected date, latest and list entries to be dropped")
	}
	if !kv.has(dateKey("2025-03-13")) {
		t.Error("other dates must stay cached")
	}
}

func TestConcurrentMissesLoadOnce(t *testing.T) {
	kv := newMemKV()
	c := New(kv, time.Minute, nil)
	ctx := context.Background()

	var loads atomic.Int32
	release := make(chan struct{})
	load := func() ([]signal.EditionSummary, error) {
		loads.Add(1)
		<-release
		return []signal.EditionSummary{{ID: "ed-1"}}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := c.List(ctx, 10, load); err != nil {
				t.Errorf("List: %v", err)
			}
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := loads.Load(); n != 1 {
		t.Errorf("expected a single load, got %d", n)
	}
}
