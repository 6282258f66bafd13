package kafka

import (
	"testing"

	"github.com/segmentio/kafka-go"
)

type runEvent struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`
}

func TestEncodeRoundTripsThroughMessage(t *testing.T) {
	msg, err := encode(Event{Key: "2025-03-14", Type: "run.completed", Value: runEvent{RunID: "run-1", Status: "SUCCESS"}})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if string(msg.Key) != "2025-03-14" {
		t.Errorf("unexpected key %q", msg.Key)
	}

	got := toMessage(msg)
	if got.Type != "run.completed" {
		t.Errorf("expected type header to be decoded, got %q", got.Type)
	}
	ev, err := DecodeJSON[runEvent](got.Value)
	if err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
	if ev.RunID != "run-1" || ev.Status != "SUCCESS" {
		t.Errorf("unexpected event %+v", ev)
	}
}

func TestEncodeWithoutTypeOmitsHeader(t *testing.T) {
	msg, err := encode(Event{Key: "k", Value: map[string]int{"n": 1}})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(msg.Headers) != 0 {
		t.Errorf("expected no headers, got %v", msg.Headers)
	}
}

func TestEncodeRejectsUnmarshalable(t *testing.T) {
	if _, err := encode(Event{Key: "k", Value: make(chan int)}); err == nil {
		t.Fatal("expected marshal error")
	}
}

func TestDecodeJSONError(t *testing.T) {
	if _, err := DecodeJSON[runEvent]([]byte("{")); err == nil {
		t.Fatal("expected decode error")
	}
	if got := toMessage(kafka.Message{Value: []byte("x")}); got.Type != "" {
		t.Errorf("expected empty type, got %q", got.Type)
	}
}
