// Package scorer ranks classified drafts and promotes the most important
// ones to the headliner stream.
package scorer

import (
	"sort"

	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/internal/signal"
)

// DefaultHeadliners is the number of drafts promoted per edition.
const DefaultHeadliners = 6

var (
	heatScore = map[signal.Heat]int{
		signal.HeatHot:     40,
		signal.HeatNotable: 20,
		signal.HeatQuiet:   8,
	}
	tierScore = map[int]int{1: 12, 2: 8}
)

// Importance scores a draft from heat, tier and confidence.
func Importance(c signal.Classification) int {
	score := heatScore[c.Heat]
	if t, ok := tierScore[c.Tier]; ok {
		score += t
	} else {
		score += 3
	}
	if c.Confidence == signal.ConfidenceVerified {
		score += 6
	} else {
		score += 2
	}
	return score
}

// Assign picks the n highest-scoring drafts (stable on ties) as headliners.
// Headliners move to the HEADLINERS stream and are ranked 1..n in input
// order; everyone else keeps their stream with a nil rank. The input slice
// is not modified.
func Assign(drafts []signal.Draft, n int) []signal.Draft {
	if n < 0 {
		n = 0
	}
	order := make([]int, len(drafts))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return Importance(drafts[order[a]].Classification) > Importance(drafts[order[b]].Classification)
	})
	if n > len(order) {
		n = len(order)
	}
	headliners := make(map[string]struct{}, n)
	for _, i := range order[:n] {
		headliners[drafts[i].SourceURL] = struct{}{}
	}

	out := make([]signal.Draft, len(drafts))
	rank := 1
	for i, d := range drafts {
		d.Rank = nil
		if _, ok := headliners[d.SourceURL]; ok {
			r := rank
			rank++
			d.Rank = &r
			d.StreamKey = signal.StreamHeadliners
			d.StreamLabel = signal.StreamLabel(signal.StreamHeadliners)
		}
		d.Citations = append([]string(nil), d.Citations...)
		out[i] = d
	}
	return out
}
