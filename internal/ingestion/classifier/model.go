package classifier

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/internal/signal"
	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/pkg/llm"
	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/pkg/resilience"
)

const schemaName = "classified_signal"

// ModelConfig tunes the model path.
type ModelConfig struct {
	MaxTokens         int
	Temperature       float64
	StrictTemperature float64
	Timeout           time.Duration
	BreakerThreshold  int
	BreakerReset      time.Duration
	OnBreakerChange   func(name string, to resilience.State)
}

// Model classifies items through an LLM. Calls go through a circuit breaker
// so a failing provider degrades straight to the fallback.
type Model struct {
	client  llm.Client
	cfg     ModelConfig
	schema  any
	breaker *resilience.CircuitBreaker
	logger  *slog.Logger
}

func NewModel(client llm.Client, cfg ModelConfig) *Model {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 600
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	return &Model{
		client: client,
		cfg:    cfg,
		schema: llm.GenerateSchema[modelOutput](),
		breaker: resilience.NewCircuitBreaker("llm-classifier", resilience.CircuitBreakerConfig{
			FailureThreshold: cfg.BreakerThreshold,
			ResetTimeout:     cfg.BreakerReset,
			OnStateChange:    cfg.OnBreakerChange,
		}),
		logger: slog.Default().With("component", "model-classifier", "model", client.Model()),
	}
}

// Suspended reports whether the breaker is refusing provider calls, with a
// message naming when the next trial call is allowed.
func (m *Model) Suspended() (bool, string) {
	snap := m.breaker.Snapshot()
	if snap.State == resilience.StateClosed {
		return false, ""
	}
	if snap.State == resilience.StateHalfOpen {
		return true, "trial call in flight"
	}
	return true, fmt.Sprintf("suspended after %d failures, retry at %s", snap.Failures, snap.RetryAt.UTC().Format(time.RFC3339))
}

// Classify makes one model call. strict selects the tighter instruction and
// the strict temperature used for the retry.
func (m *Model) Classify(ctx context.Context, item signal.RawItem, strict bool) (signal.Classification, error) {
	temp := m.cfg.Temperature
	if strict {
		temp = m.cfg.StrictTemperature
	}
	req := llm.Request{
		Instructions: []string{systemPrompt, taxonomyPrompt},
		UserPrompt:   userPrompt(item, strict),
		SchemaName:   schemaName,
		Schema:       m.schema,
		MaxTokens:    m.cfg.MaxTokens,
		Temperature:  llm.Temp(temp),
	}

	var result decodeResult
	err := m.breaker.Execute(func() error {
		resp, err := resilience.Call(ctx, m.cfg.Timeout, "llm classify", func(ctx context.Context) (*llm.Response, error) {
			return m.client.Complete(ctx, req)
		})
		if err != nil {
			return err
		}
		result = decode(resp.Content, item)
		return result.err
	})
	if err != nil {
		return signal.Classification{}, fmt.Errorf("model classification of %s: %w", item.SourceURL, err)
	}
	return result.classification, nil
}
