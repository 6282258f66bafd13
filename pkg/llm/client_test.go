package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

type verdict struct {
	Heat string `json:"heat" jsonschema:"enum=HOT,enum=NOTABLE,enum=QUIET"`
	Tier int    `json:"tier"`
}

func TestNewRequiresAPIKey(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error without API key")
	}
	if _, err := New(Config{APIKey: "k", Provider: "anthropic"}); err == nil {
		t.Fatal("expected error for unsupported provider")
	}
}

func TestCompleteSendsInstructionsAndSchema(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(raw, &body); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"c1","object":"chat.completion","created":1,"model":"gpt-4.1-mini",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"{\"heat\":\"HOT\",\"tier\":1}"}}],
			"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}}`)
	}))
	defer srv.Close()

	c, err := New(Config{APIKey: "test", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	resp, err := c.Complete(context.Background(), Request{
		Instructions: []string{"system", "developer"},
		UserPrompt:   "classify",
		SchemaName:   "verdict",
		Schema:       GenerateSchema[verdict](),
		MaxTokens:    600,
		Temperature:  Temp(0),
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != `{"heat":"HOT","tier":1}` {
		t.Errorf("unexpected content %q", resp.Content)
	}
	if resp.PromptTokens != 10 || resp.CompletionTokens != 5 {
		t.Errorf("unexpected usage %+v", resp)
	}

	msgs, _ := body["messages"].([]any)
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	if body["temperature"] != float64(0) {
		t.Errorf("expected temperature 0, got %v", body["temperature"])
	}
	if _, ok := body["response_format"]; !ok {
		t.Error("expected response_format to be sent")
	}
}

func TestIsRetryable(t *testing.T) {
	if IsRetryable(nil) {
		t.Error("nil is not retryable")
	}
	if IsRetryable(context.DeadlineExceeded) {
		t.Error("deadline is not retryable")
	}
	if !IsRetryable(errors.New("connection reset")) {
		t.Error("transport errors are retryable")
	}
}
