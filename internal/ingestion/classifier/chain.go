// Package classifier assigns each raw item a track, stream, heat and
// confidence. The Chain tries the model, retries once with a stricter
// instruction, and falls back to keyword heuristics.
package classifier

import (
	"context"

	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/internal/signal"
	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/pkg/metrics"
)

// Classification paths reported to metrics.
const (
	PathModel       = "model"
	PathModelStrict = "model_strict"
	PathHeuristic   = "heuristic"
)

type Classifier interface {
	Classify(ctx context.Context, item signal.RawItem) (signal.Classification, error)
}

// Chain is the production Classifier. A nil model runs heuristics only.
type Chain struct {
	model   *Model
	metrics *metrics.Metrics
}

func NewChain(model *Model, m *metrics.Metrics) *Chain {
	return &Chain{
		model:   model,
		metrics: m,
	}
}

// Classify never returns an error; model failures end in the heuristic.
func (c *Chain) Classify(ctx context.Context, item signal.RawItem) (signal.Classification, error) {
	if c.model == nil {
		c.record(PathHeuristic)
		return Heuristic(item), nil
	}
	log := logger.FromContext(ctx).With("component", "classifier", "url", item.SourceURL)

	out, err := c.model.Classify(ctx, item, false)
	if err == nil {
		c.record(PathModel)
		return out, nil
	}
	log.Debug("model classification failed, retrying strict", "error", err)

	out, err = c.model.Classify(ctx, item, true)
	if err == nil {
		c.record(PathModelStrict)
		return out, nil
	}
	log.Warn("strict model classification failed, using heuristic", "error", err)

	c.record(PathHeuristic)
	return Heuristic(item), nil
}

func (c *Chain) record(path string) {
	if c.metrics != nil {
		c.metrics.ClassificationsTotal.WithLabelValues(path).Inc()
	}
}
