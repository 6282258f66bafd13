package signal

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"unicode/utf8"
)

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s:%s", k, e.Fields[k]))
	}
	return strings.Join(parts, "; ")
}

// Validate checks a classification against the taxonomy and length limits.
// Text fields are checked after trimming.
func Validate(c Classification) error {
	errs := make(map[string]string)

	checkLen(errs, "title", c.Title, MinTitleLen, MaxTitleLen)
	checkLen(errs, "summary", c.Summary, MinSummaryLen, MaxSummaryLen)
	checkLen(errs, "rationale", c.Rationale, MinRationaleLen, MaxRationaleLen)
	if _, ok := errs["rationale"]; !ok && SentenceCount(c.Rationale) > MaxSentences {
		errs["rationale"] = fmt.Sprintf("must be %d sentences or fewer", MaxSentences)
	}

	if !ValidHeat(c.Heat) {
		errs["heat"] = fmt.Sprintf("unknown heat %q", c.Heat)
	}
	if !ValidConfidence(c.Confidence) {
		errs["confidence"] = fmt.Sprintf("unknown confidence %q", c.Confidence)
	}
	if track, ok := TrackByKey(c.TrackKey); !ok {
		errs["trackKey"] = fmt.Sprintf("unknown track %q", c.TrackKey)
	} else if strings.TrimSpace(c.TrackLabel) != track.Label {
		errs["trackLabel"] = fmt.Sprintf("must be %q for track %s", track.Label, c.TrackKey)
	}
	if label := StreamLabel(c.StreamKey); label == "" {
		errs["streamKey"] = fmt.Sprintf("unknown stream %q", c.StreamKey)
	} else if strings.TrimSpace(c.StreamLabel) != label {
		errs["streamLabel"] = fmt.Sprintf("must be %q for stream %s", label, c.StreamKey)
	}
	if c.Tier < 1 || c.Tier > 3 {
		errs["tier"] = "must be between 1 and 3"
	}

	switch {
	case len(c.Citations) == 0:
		errs["citations"] = "at least one citation is required"
	case len(c.Citations) > MaxCitations:
		errs["citations"] = fmt.Sprintf("at most %d citations are allowed", MaxCitations)
	default:
		for i, cite := range c.Citations {
			if !IsHTTPURL(cite) {
				errs["citations"] = fmt.Sprintf("citation %d is not an absolute http(s) URL", i)
				break
			}
		}
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

// SentenceCount splits on sentence terminators and counts non-blank parts.
func SentenceCount(s string) int {
	n := 0
	for _, part := range strings.FieldsFunc(s, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	}) {
		if strings.TrimSpace(part) != "" {
			n++
		}
	}
	return n
}

// IsHTTPURL reports whether s parses as an absolute http or https URL.
func IsHTTPURL(s string) bool {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func checkLen(errs map[string]string, field, value string, min, max int) {
	n := utf8.RuneCountInString(strings.TrimSpace(value))
	switch {
	case n < min:
		errs[field] = fmt.Sprintf("must be at least %d characters", min)
	case n > max:
		errs[field] = fmt.Sprintf("must be at most %d characters", max)
	}
}
