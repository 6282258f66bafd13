package classifier

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/internal/signal"
)

var systemPrompt = strings.Join([]string{
	"You classify AI ecosystem updates into a strict schema for a daily signal digest.",
	"Return compact JSON only. No markdown, no prose.",
	fmt.Sprintf("Summaries must be <= %d chars and rationale must be 1-%d sentences.", signal.MaxSummaryLen, signal.MaxSentences),
	"Citations must include the input sourceUrl at minimum.",
	"Tracks and streams must map to the provided enum values.",
}, " ")

var taxonomyPrompt = func() string {
	labels := make([]string, len(signal.Tracks))
	for i, t := range signal.Tracks {
		labels[i] = fmt.Sprintf("%s=%q", t.Key, t.Label)
	}
	streams := make([]string, len(signal.Streams))
	for i, s := range signal.Streams {
		streams[i] = string(s)
	}
	return strings.Join([]string{
		"Allowed heat values: HOT, NOTABLE, QUIET.",
		"Allowed stream keys: " + strings.Join(streams, ", ") + ".",
		"Allowed track keys: " + strings.Join(signal.TrackKeys(), ", ") + ".",
		"Track labels must match the official labels for those keys: " + strings.Join(labels, ", ") + ".",
		"Confidence must be VERIFIED only when the source is clearly official and specific, otherwise UNVERIFIED.",
		"Tier must be integer 1..3.",
	}, " ")
}()

const (
	defaultNotes = "Classify and summarize this signal. Keep output operational and concise."
	strictNotes  = "Return exact JSON object matching required keys. Keep wording short."
)

type promptInput struct {
	SourceURL     string `json:"sourceUrl"`
	SourceDomain  string `json:"sourceDomain"`
	ProviderLabel string `json:"providerLabel"`
	ProviderKey   string `json:"providerKey"`
	SourceTier    int    `json:"sourceTier"`
	Title         string `json:"title"`
	Snippet       string `json:"snippet"`
	PublishedAt   string `json:"publishedAt"`
	OutputNotes   string `json:"outputNotes"`
}

func userPrompt(item signal.RawItem, strict bool) string {
	notes := defaultNotes
	if strict {
		notes = strictNotes
	}
	b, _ := json.Marshal(promptInput{
		SourceURL:     item.SourceURL,
		SourceDomain:  item.SourceDomain,
		ProviderLabel: item.ProviderLabel,
		ProviderKey:   item.ProviderKey,
		SourceTier:    item.Tier,
		Title:         item.Title,
		Snippet:       item.Snippet,
		PublishedAt:   item.PublishedAt.UTC().Format(time.RFC3339Nano),
		OutputNotes:   notes,
	})
	return string(b)
}
