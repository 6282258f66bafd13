package classifier

import (
	"strings"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/internal/signal"
)

const untitled = "Untitled signal"

// Heuristic classifies an item from keyword and domain hints alone. It is
// total: every item gets a valid track, stream and heat.
func Heuristic(item signal.RawItem) signal.Classification {
	text := strings.ToLower(item.Title + " " + item.Snippet)
	track := inferTrack(text, strings.ToLower(item.SourceDomain))
	heat := inferHeat(text, item.Tier)

	return signal.Classification{
		Title:       heuristicTitle(item),
		Summary:     heuristicSummary(item),
		Rationale:   signal.Rationales[heat],
		Heat:        heat,
		TrackKey:    track.Key,
		TrackLabel:  track.Label,
		StreamKey:   track.Stream,
		StreamLabel: signal.StreamLabel(track.Stream),
		Confidence:  signal.ConfidenceUnverified,
		Tier:        item.Tier,
		Citations:   []string{item.SourceURL},
	}
}

// heuristicTitle lengthens titles like "v2.1" with the provider label so
// they pass validation.
func heuristicTitle(item signal.RawItem) string {
	title := signal.CollapseSpace(item.Title)
	if title == "" {
		title = untitled
	}
	if provider := signal.CollapseSpace(item.ProviderLabel); tooShort(title, signal.MinTitleLen) && provider != "" {
		title = provider + ": " + title
	}
	if tooShort(title, signal.MinTitleLen) {
		title = "Update: " + signal.CollapseSpace(item.Title)
	}
	return signal.Clip(title, signal.MaxTitleLen)
}

// heuristicSummary uses the snippet, prefixed with the title when the
// snippet alone is too short to summarize.
func heuristicSummary(item signal.RawItem) string {
	summary := signal.CollapseSpace(item.Snippet)
	if tooShort(summary, signal.MinSummaryLen) {
		summary = strings.TrimSpace(heuristicTitle(item) + ". " + summary)
	}
	if tooShort(summary, signal.MinSummaryLen) {
		summary = signal.EmptySnippet
	}
	return signal.Ellipsize(summary, signal.MaxSummaryLen)
}

func tooShort(s string, min int) bool {
	return utf8.RuneCountInString(strings.TrimSpace(s)) < min
}

func inferTrack(text, domain string) signal.Track {
	best, bestScore := -1, 0
	for i, t := range signal.Tracks {
		score := 2 * countHits(text, t.Keywords)
		if countHits(domain, t.DomainHints) > 0 {
			score += 3
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 {
		fallback, _ := signal.TrackByKey(signal.FallbackTrackKey)
		return fallback
	}
	return signal.Tracks[best]
}

func inferHeat(text string, tier int) signal.Heat {
	hot := countHits(text, signal.HotHints)
	notable := countHits(text, signal.NotableHints)
	switch {
	case hot >= 2 || (hot >= 1 && tier == 1):
		return signal.HeatHot
	case notable >= 1 || tier <= 2:
		return signal.HeatNotable
	default:
		return signal.HeatQuiet
	}
}

// countHits counts hints that occur as substrings of s.
func countHits(s string, hints []string) int {
	n := 0
	for _, h := range hints {
		if strings.Contains(s, h) {
			n++
		}
	}
	return n
}
