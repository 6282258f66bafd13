package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/internal/signal"
)

type npmDocument struct {
	DistTags    map[string]string `json:"dist-tags"`
	Time        map[string]string `json:"time"`
	Description string            `json:"description"`
	Repository  json.RawMessage   `json:"repository"`
}

// NPMAdapter turns the registry document of a package into a single item
// describing its latest published version.
type NPMAdapter struct {
	fetcher     *HTTPFetcher
	registryURL string
	packageURL  string
	now         func() time.Time
}

func (a *NPMAdapter) Fetch(ctx context.Context, src signal.Source, _ int) ([]signal.RawItem, error) {
	name := strings.TrimSpace(src.Identifier)
	registry := a.registryURL
	if registry == "" {
		registry = "https://registry.npmjs.org"
	}
	body, err := a.fetcher.Get(ctx, strings.TrimRight(registry, "/")+"/"+url.QueryEscape(name), "application/json")
	if err != nil {
		return nil, fmt.Errorf("npm registry request failed: %w", err)
	}
	var doc npmDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decoding npm document for %s: %w", name, err)
	}

	latest := doc.DistTags["latest"]
	var published *time.Time
	if latest != "" {
		if ts, err := time.Parse(time.RFC3339, doc.Time[latest]); err == nil {
			published = &ts
		}
	}

	link := repositoryURL(doc.Repository)
	if link == "" {
		base := a.packageURL
		if base == "" {
			base = "https://www.npmjs.com/package/"
		}
		link = base + name
	}

	title := name + " package registry update"
	if latest != "" {
		title = fmt.Sprintf("%s published %s", name, latest)
	}
	snippet := doc.Description
	if strings.TrimSpace(snippet) == "" {
		snippet = name + " posted a new npm update. Inspect changelog and dependency impact for downstream apps."
	}

	now := time.Now
	if a.now != nil {
		now = a.now
	}
	return []signal.RawItem{toRawItem(src, rawFields{
		title:       title,
		link:        link,
		snippet:     snippet,
		publishedAt: published,
	}, now())}, nil
}

// repositoryURL accepts both the object and the shorthand string forms of
// the repository field and strips git+ and .git decorations.
func repositoryURL(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var u string
	var obj struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		u = obj.URL
	} else if err := json.Unmarshal(raw, &u); err != nil {
		return ""
	}
	u = strings.TrimPrefix(strings.TrimSpace(u), "git+")
	u = strings.TrimSuffix(u, ".git")
	if !signal.IsHTTPURL(u) {
		return ""
	}
	return u
}
