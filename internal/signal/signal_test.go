package signal

import (
	"errors"
	"strings"
	"testing"
)

func validClassification() Classification {
	return Classification{
		Title:       "SDK 2.0 ships streaming helpers",
		Summary:     "The TypeScript SDK adds streaming helpers and retries.",
		Rationale:   "Marked NOTABLE because it changes daily workflows.",
		Heat:        HeatNotable,
		TrackKey:    "sdks-tooling",
		TrackLabel:  "SDKs & Tooling",
		StreamKey:   StreamToolchain,
		StreamLabel: "Toolchain",
		Confidence:  ConfidenceUnverified,
		Tier:        2,
		Citations:   []string{"https://github.com/acme/sdk/releases/tag/v2.0.0"},
	}
}

func TestValidateAcceptsWellFormed(t *testing.T) {
	if err := Validate(validClassification()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Classification)
		field  string
	}{
		{"short title", func(c *Classification) { c.Title = "abc" }, "title"},
		{"long summary", func(c *Classification) { c.Summary = strings.Repeat("a", 241) }, "summary"},
		{"four sentences", func(c *Classification) { c.Rationale = "One is here. Two is here. Three is here. Four is here." }, "rationale"},
		{"bad heat", func(c *Classification) { c.Heat = "WARM" }, "heat"},
		{"unknown track", func(c *Classification) { c.TrackKey = "gardening" }, "trackKey"},
		{"mismatched track label", func(c *Classification) { c.TrackLabel = "Tooling" }, "trackLabel"},
		{"unknown stream", func(c *Classification) { c.StreamKey = "SPORTS" }, "streamKey"},
		{"tier out of range", func(c *Classification) { c.Tier = 4 }, "tier"},
		{"no citations", func(c *Classification) { c.Citations = nil }, "citations"},
		{"relative citation", func(c *Classification) { c.Citations = []string{"/news/1"} }, "citations"},
		{"too many citations", func(c *Classification) {
			c.Citations = make([]string, 9)
			for i := range c.Citations {
				c.Citations[i] = "https://example.com/a"
			}
		}, "citations"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validClassification()
			tt.mutate(&c)
			err := Validate(c)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %v", err)
			}
			if _, ok := verr.Fields[tt.field]; !ok {
				t.Errorf("expected field %q in %v", tt.field, verr.Fields)
			}
		})
	}
}

func TestSentenceCount(t *testing.T) {
	if n := SentenceCount("One. Two! Three?"); n != 3 {
		t.Errorf("expected 3, got %d", n)
	}
	if n := SentenceCount("v1.2 ships. Done..."); n != 3 {
		t.Errorf("terminators inside tokens still split, expected 3, got %d", n)
	}
}

func TestEllipsize(t *testing.T) {
	long := strings.Repeat("x", 250)
	got := Ellipsize(long, 240)
	if len(got) != 240 || !strings.HasSuffix(got, "...") {
		t.Fatalf("expected 237 chars plus ellipsis, got %d %q", len(got), got[len(got)-5:])
	}
	if Ellipsize("short", 240) != "short" {
		t.Error("short strings must be untouched")
	}
}

func TestSlug(t *testing.T) {
	if got := Slug("  OpenAI / Platform  "); got != "openai-platform" {
		t.Errorf("unexpected slug %q", got)
	}
	if got := Slug(strings.Repeat("ab ", 60)); len(got) > 80 {
		t.Errorf("slug must be capped at 80, got %d", len(got))
	}
}

func TestTaxonomyLookups(t *testing.T) {
	if len(Tracks) != 10 {
		t.Fatalf("expected 10 tracks, got %d", len(Tracks))
	}
	if TrackLabel("rag-retrieval") != "RAG & Retrieval" {
		t.Errorf("unexpected label %q", TrackLabel("rag-retrieval"))
	}
	if StreamLabel(StreamWilds) != "The Wilds" {
		t.Errorf("unexpected stream label %q", StreamLabel(StreamWilds))
	}
	if Tracks[len(Tracks)-1].Key != FallbackTrackKey {
		t.Errorf("fallback track should be declared last")
	}
}
