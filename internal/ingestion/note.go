package ingestion

import (
	"fmt"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/internal/signal"
)

const noteDateLayout = "January 2, 2006"

// HeatCounts tallies drafts per heat.
type HeatCounts struct {
	Hot, Notable, Quiet int
}

func countHeat(drafts []signal.Draft) HeatCounts {
	var c HeatCounts
	for _, d := range drafts {
		switch d.Heat {
		case signal.HeatHot:
			c.Hot++
		case signal.HeatNotable:
			c.Notable++
		default:
			c.Quiet++
		}
	}
	return c
}

// TopTracks returns up to n track labels ordered by frequency, ties broken
// by first appearance.
func TopTracks(drafts []signal.Draft, n int) []string {
	counts := make(map[string]int)
	var order []string
	for _, d := range drafts {
		if _, ok := counts[d.TrackLabel]; !ok {
			order = append(order, d.TrackLabel)
		}
		counts[d.TrackLabel]++
	}
	// insertion sort keeps first-appearance order among equal counts
	for i := 1; i < len(order); i++ {
		for j := i; j > 0 && counts[order[j]] > counts[order[j-1]]; j-- {
			order[j], order[j-1] = order[j-1], order[j]
		}
	}
	if len(order) > n {
		order = order[:n]
	}
	return order
}

// MorningNote writes the short editorial paragraph for an edition.
func MorningNote(date time.Time, drafts []signal.Draft) string {
	if len(drafts) == 0 {
		return fmt.Sprintf("Signal Nook found no eligible signals for %s. Check source health and rerun ingestion once feeds are restored.",
			date.Format(noteDateLayout))
	}

	lines := []string{
		fmt.Sprintf("Today leans toward %s with %d curated signals total.", strings.Join(TopTracks(drafts, 3), ", "), len(drafts)),
	}
	if top := firstHeadliner(drafts); top != nil {
		lines = append(lines, fmt.Sprintf("Top movement: %s.", top.Title))
	} else {
		lines = append(lines, "No headliner ranked today due to limited confidence signals.")
	}
	lines = append(lines,
		"Most items are incremental rather than disruptive, but several workflow updates are worth immediate review.",
		"Use stream filters to jump from broad context to implementation-ready changes.",
	)
	return strings.Join(lines, " ")
}

func firstHeadliner(drafts []signal.Draft) *signal.Draft {
	for i := range drafts {
		if drafts[i].Rank != nil && *drafts[i].Rank == 1 {
			return &drafts[i]
		}
	}
	return nil
}
