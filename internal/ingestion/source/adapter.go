// Package source fetches raw items from upstream feeds. Each source type has
// an Adapter; the Registry dispatches on Source.Type.
package source

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/internal/signal"
)

// DefaultPerSourceCap bounds how many items one source may contribute.
const DefaultPerSourceCap = 25

// Adapter fetches up to maxItems normalized items for a source.
type Adapter interface {
	Fetch(ctx context.Context, src signal.Source, maxItems int) ([]signal.RawItem, error)
}

// AdapterFunc lets ordinary functions act as adapters.
type AdapterFunc func(ctx context.Context, src signal.Source, maxItems int) ([]signal.RawItem, error)

func (f AdapterFunc) Fetch(ctx context.Context, src signal.Source, maxItems int) ([]signal.RawItem, error) {
	return f(ctx, src, maxItems)
}

// Registry routes a source to the adapter for its type.
type Registry struct {
	adapters map[signal.SourceType]Adapter
	cap      int
	logger   *slog.Logger
}

// Options configures the adapters built by NewRegistry.
type Options struct {
	Fetcher      *HTTPFetcher
	PerSourceCap int
	Now          func() time.Time
	GitHubBase   string
	RedditBase   string
	NPMRegistry  string
	NPMPackage   string
}

// NewRegistry wires the default adapter for every source type.
func NewRegistry(opts Options) *Registry {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	feed := &FeedAdapter{fetcher: opts.Fetcher, now: opts.Now}
	r := NewEmptyRegistry(opts.PerSourceCap)
	r.Register(signal.SourceRSS, feed)
	r.Register(signal.SourceCustomRSS, feed)
	r.Register(signal.SourceGitHubReleases, &GitHubAdapter{feed: feed, baseURL: opts.GitHubBase})
	r.Register(signal.SourceRedditRSS, &RedditAdapter{feed: feed, baseURL: opts.RedditBase})
	r.Register(signal.SourceNPMUpdates, &NPMAdapter{
		fetcher:     opts.Fetcher,
		registryURL: opts.NPMRegistry,
		packageURL:  opts.NPMPackage,
		now:         opts.Now,
	})
	return r
}

// NewEmptyRegistry returns a registry with no adapters.
func NewEmptyRegistry(perSourceCap int) *Registry {
	if perSourceCap <= 0 {
		perSourceCap = DefaultPerSourceCap
	}
	return &Registry{
		adapters: make(map[signal.SourceType]Adapter),
		cap:      perSourceCap,
		logger:   slog.Default().With("component", "source-registry"),
	}
}

// Register installs or replaces the adapter for t.
func (r *Registry) Register(t signal.SourceType, a Adapter) {
	r.adapters[t] = a
}

// Fetch clamps maxItems to [1, cap] and delegates to the source's adapter.
func (r *Registry) Fetch(ctx context.Context, src signal.Source, maxItems int) ([]signal.RawItem, error) {
	adapter, ok := r.adapters[src.Type]
	if !ok {
		return nil, fmt.Errorf("unsupported source type %q", src.Type)
	}
	limit := Limit(maxItems, r.cap)
	items, err := adapter.Fetch(ctx, src, limit)
	if err != nil {
		return nil, err
	}
	if len(items) > limit {
		items = items[:limit]
	}
	r.logger.Debug("source fetched", "source", src.Name, "type", src.Type, "items", len(items))
	return items, nil
}

// Limit clamps n into [1, cap].
func Limit(n, cap int) int {
	if n > cap {
		n = cap
	}
	if n < 1 {
		n = 1
	}
	return n
}
