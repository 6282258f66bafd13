package tracing

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestSpanTree(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "run", "run-1")
	_, fetch := StartChildSpan(ctx, "fetch")
	fetch.SetAttr("sources", 3)
	fetch.End()
	_, persist := StartChildSpan(ctx, "persist")
	persist.Fail(errors.New("tx aborted"))
	persist.End()
	root.End()

	if len(root.Children) != 2 {
		t.Fatalf("expected 2 children, got %d", len(root.Children))
	}
	if fetch.TraceID != "run-1" {
		t.Errorf("child must inherit trace id, got %q", fetch.TraceID)
	}

	var buf bytes.Buffer
	root.Log(slog.New(slog.NewTextHandler(&buf, nil)))
	out := buf.String()
	if strings.Count(out, "msg=span") != 3 {
		t.Errorf("expected 3 span lines, got:\n%s", out)
	}
	if !strings.Contains(out, `error="tx aborted"`) || !strings.Contains(out, "sources=3") {
		t.Errorf("missing attrs or error:\n%s", out)
	}
}

func TestDetachedChild(t *testing.T) {
	ctx, span := StartChildSpan(context.Background(), "orphan")
	if span.TraceID != "" {
		t.Errorf("expected empty trace id, got %q", span.TraceID)
	}
	if SpanFromContext(ctx) != span {
		t.Error("span must be stored in context")
	}
	if SpanFromContext(context.Background()) != nil {
		t.Error("expected nil span for bare context")
	}
}
