package source

import (
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/internal/ingestion/canonical"
	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/internal/signal"
	"github.com/PuerkitoBio/goquery"
)

const (
	untitled       = "Untitled signal"
	maxSnippetRune = 700
)

type rawFields struct {
	title       string
	link        string
	snippet     string
	publishedAt *time.Time
}

func toRawItem(src signal.Source, f rawFields, now time.Time) signal.RawItem {
	published := now
	if f.publishedAt != nil && !f.publishedAt.IsZero() {
		published = *f.publishedAt
	}
	title := strings.TrimSpace(f.title)
	if title == "" {
		title = untitled
	}
	return signal.RawItem{
		SourceID:      src.ID,
		SourceURL:     strings.TrimSpace(f.link),
		SourceDomain:  canonical.SourceDomain(f.link),
		Title:         signal.Clip(title, signal.MaxTitleLen),
		Snippet:       clipSnippet(f.snippet),
		PublishedAt:   published.UTC(),
		ProviderLabel: src.ProviderLabel,
		ProviderKey:   signal.Slug(src.ProviderLabel),
		Tier:          src.Tier,
	}
}

func clipSnippet(s string) string {
	normalized := signal.CollapseSpace(s)
	if len([]rune(normalized)) < signal.MinSnippetLen {
		return signal.EmptySnippet
	}
	return signal.Ellipsize(normalized, maxSnippetRune)
}

// plainText strips markup from feed HTML bodies.
func plainText(html string) string {
	if !strings.ContainsAny(html, "<&") {
		return html
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	return doc.Text()
}
