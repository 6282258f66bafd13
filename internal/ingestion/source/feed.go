package source

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/internal/signal"
	"github.com/mmcdole/gofeed"
)

const feedAccept = "application/rss+xml, application/atom+xml, application/xml;q=0.9, text/xml;q=0.8, */*;q=0.5"

// FeedAdapter reads RSS and Atom feeds from Source.Identifier.
type FeedAdapter struct {
	fetcher *HTTPFetcher
	now     func() time.Time
}

// NewFeedAdapter returns a FeedAdapter using fetcher.
func NewFeedAdapter(fetcher *HTTPFetcher, now func() time.Time) *FeedAdapter {
	if now == nil {
		now = time.Now
	}
	return &FeedAdapter{fetcher: fetcher, now: now}
}

func (a *FeedAdapter) Fetch(ctx context.Context, src signal.Source, maxItems int) ([]signal.RawItem, error) {
	return a.fetchURL(ctx, src, strings.TrimSpace(src.Identifier), maxItems)
}

func (a *FeedAdapter) fetchURL(ctx context.Context, src signal.Source, feedURL string, maxItems int) ([]signal.RawItem, error) {
	body, err := a.fetcher.Get(ctx, feedURL, feedAccept)
	if err != nil {
		return nil, err
	}
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parsing feed %s: %w", feedURL, err)
	}

	now := a.now()
	items := make([]signal.RawItem, 0, maxItems)
	for i, entry := range feed.Items {
		if i >= maxItems {
			break
		}
		link := strings.TrimSpace(entry.Link)
		if link == "" {
			continue
		}
		items = append(items, toRawItem(src, rawFields{
			title:       plainText(entry.Title),
			link:        link,
			snippet:     entrySnippet(entry),
			publishedAt: entryTime(entry),
		}, now))
	}
	return items, nil
}

func entrySnippet(entry *gofeed.Item) string {
	for _, candidate := range []string{entry.Description, entry.Content} {
		if text := strings.TrimSpace(plainText(candidate)); text != "" {
			return text
		}
	}
	return ""
}

func entryTime(entry *gofeed.Item) *time.Time {
	if entry.PublishedParsed != nil {
		return entry.PublishedParsed
	}
	return entry.UpdatedParsed
}

// GitHubAdapter reads the releases Atom feed of an owner/repo identifier.
// Identifiers that are already URLs are fetched as-is.
type GitHubAdapter struct {
	feed    *FeedAdapter
	baseURL string
}

func (a *GitHubAdapter) Fetch(ctx context.Context, src signal.Source, maxItems int) ([]signal.RawItem, error) {
	id := strings.TrimSpace(src.Identifier)
	feedURL := id
	if !strings.HasPrefix(id, "http") {
		base := a.baseURL
		if base == "" {
			base = "https://github.com"
		}
		feedURL = fmt.Sprintf("%s/%s/releases.atom", strings.TrimRight(base, "/"), strings.Trim(id, "/"))
	}
	return a.feed.fetchURL(ctx, src, feedURL, maxItems)
}

// RedditAdapter reads a subreddit feed from "name" or "r/name".
type RedditAdapter struct {
	feed    *FeedAdapter
	baseURL string
}

func (a *RedditAdapter) Fetch(ctx context.Context, src signal.Source, maxItems int) ([]signal.RawItem, error) {
	id := strings.TrimSpace(src.Identifier)
	feedURL := id
	if !strings.HasPrefix(id, "http") {
		base := a.baseURL
		if base == "" {
			base = "https://www.reddit.com"
		}
		feedURL = fmt.Sprintf("%s/r/%s/.rss", strings.TrimRight(base, "/"), strings.TrimPrefix(id, "r/"))
	}
	return a.feed.fetchURL(ctx, src, feedURL, maxItems)
}
