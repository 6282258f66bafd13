package validator

import (
	"errors"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/internal/ingestion"
)

func TestValidateRunRequest(t *testing.T) {
	tests := []struct {
		name      string
		req       ingestion.Request
		badFields []string
	}{
		{name: "empty request", req: ingestion.Request{}},
		{name: "full request", req: ingestion.Request{Date: "2025-03-14", TriggeredBy: "cron", MaxItems: 250}},
		{name: "bad date format", req: ingestion.Request{Date: "14/03/2025"}, badFields: []string{"date"}},
		{name: "impossible date", req: ingestion.Request{Date: "2025-02-30"}, badFields: []string{"date"}},
		{name: "short trigger", req: ingestion.Request{TriggeredBy: " x "}, badFields: []string{"triggeredBy"}},
		{name: "long trigger", req: ingestion.Request{TriggeredBy: strings.Repeat("a", 101)}, badFields: []string{"triggeredBy"}},
		{name: "too many items", req: ingestion.Request{MaxItems: 251}, badFields: []string{"maxItems"}},
		{name: "negative items", req: ingestion.Request{MaxItems: -1}, badFields: []string{"maxItems"}},
		{name: "several", req: ingestion.Request{Date: "x", MaxItems: 999}, badFields: []string{"date", "maxItems"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			err := ValidateRunRequest(&req)
			if len(tt.badFields) == 0 {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if len(verr.Fields) != len(tt.badFields) {
				t.Errorf("expected fields %v, got %v", tt.badFields, verr.Fields)
			}
			for _, f := range tt.badFields {
				if _, ok := verr.Fields[f]; !ok {
					t.Errorf("expected error for %s, got %v", f, verr.Fields)
				}
			}
		})
	}
}

func TestValidateRunRequestDefaultsTrigger(t *testing.T) {
	req := ingestion.Request{TriggeredBy: "   "}
	if err := ValidateRunRequest(&req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.TriggeredBy != ingestion.DefaultTriggeredBy {
		t.Errorf("expected default trigger, got %q", req.TriggeredBy)
	}
}
