package classifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/internal/signal"
)

// ErrNoJSON is returned when the model response holds no JSON object.
var ErrNoJSON = errors.New("model response contains no JSON object")

// modelOutput is both the response schema sent to the model and the shape
// decoded from its reply.
type modelOutput struct {
	Title       string   `json:"title"`
	Summary     string   `json:"summary"`
	Rationale   string   `json:"rationale"`
	Heat        string   `json:"heat" jsonschema:"enum=HOT,enum=NOTABLE,enum=QUIET"`
	TrackKey    string   `json:"trackKey"`
	TrackLabel  string   `json:"trackLabel"`
	StreamKey   string   `json:"streamKey" jsonschema:"enum=HEADLINERS,enum=TOOLCHAIN,enum=MODELS_METHODS,enum=OPS_RUNTIME,enum=WILDS"`
	StreamLabel string   `json:"streamLabel"`
	Confidence  string   `json:"confidence" jsonschema:"enum=VERIFIED,enum=UNVERIFIED"`
	Tier        *int     `json:"tier"`
	Citations   []string `json:"citations"`
}

// decodeResult is the outcome of decoding one model reply. Exactly one of
// classification and err is meaningful.
type decodeResult struct {
	classification signal.Classification
	err            error
}

func (r decodeResult) ok() bool { return r.err == nil }

var fenced = regexp.MustCompile("(?is)```(?:json)?\\s*(.*?)```")

// extractJSON pulls the JSON object out of a reply that may be wrapped in a
// markdown fence or surrounded by prose.
func extractJSON(raw string) (string, error) {
	if m := fenced.FindStringSubmatch(raw); m != nil && strings.TrimSpace(m[1]) != "" {
		return strings.TrimSpace(m[1]), nil
	}
	first := strings.Index(raw, "{")
	last := strings.LastIndex(raw, "}")
	if first >= 0 && last > first {
		return strings.TrimSpace(raw[first : last+1]), nil
	}
	return "", ErrNoJSON
}

// decode parses and validates a model reply for item. The source URL is
// always the first citation and the item's tier fills a missing tier.
func decode(raw string, item signal.RawItem) decodeResult {
	text, err := extractJSON(raw)
	if err != nil {
		return decodeResult{err: err}
	}
	var out modelOutput
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return decodeResult{err: fmt.Errorf("decoding model output: %w", err)}
	}

	tier := item.Tier
	if out.Tier != nil {
		tier = *out.Tier
	}
	c := signal.Classification{
		Title:       strings.TrimSpace(out.Title),
		Summary:     strings.TrimSpace(out.Summary),
		Rationale:   strings.TrimSpace(out.Rationale),
		Heat:        signal.Heat(strings.ToUpper(strings.TrimSpace(out.Heat))),
		TrackKey:    strings.TrimSpace(out.TrackKey),
		TrackLabel:  strings.TrimSpace(out.TrackLabel),
		StreamKey:   signal.StreamKey(strings.ToUpper(strings.TrimSpace(out.StreamKey))),
		StreamLabel: strings.TrimSpace(out.StreamLabel),
		Confidence:  signal.Confidence(strings.ToUpper(strings.TrimSpace(out.Confidence))),
		Tier:        tier,
		Citations:   MergeCitations(item.SourceURL, out.Citations),
	}
	normalizeLabels(&c)

	if err := signal.Validate(c); err != nil {
		return decodeResult{err: err}
	}
	return decodeResult{classification: c}
}

// normalizeLabels replaces labels with the canonical ones for known keys.
func normalizeLabels(c *signal.Classification) {
	if label := signal.TrackLabel(c.TrackKey); label != "" {
		c.TrackLabel = label
	}
	if label := signal.StreamLabel(c.StreamKey); label != "" {
		c.StreamLabel = label
	}
}

// MergeCitations returns sourceURL followed by the distinct non-blank
// entries of extra, capped at signal.MaxCitations.
func MergeCitations(sourceURL string, extra []string) []string {
	seen := make(map[string]struct{}, len(extra)+1)
	out := make([]string, 0, len(extra)+1)
	for _, c := range append([]string{sourceURL}, extra...) {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
		if len(out) == signal.MaxCitations {
			break
		}
	}
	return out
}
