package lock

import (
	"context"
	"errors"
	"testing"

	apperrors "github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/pkg/errors"
)

func TestLocalLock(t *testing.T) {
	ctx := context.Background()
	l := NewLocal()

	release, err := l.Acquire(ctx, "2025-03-14")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if _, err := l.Acquire(ctx, "2025-03-14"); !errors.Is(err, apperrors.ErrRunInProgress) {
		t.Fatalf("expected ErrRunInProgress, got %v", err)
	}
	if _, err := l.Acquire(ctx, "2025-03-15"); err != nil {
		t.Fatalf("other dates should not be blocked: %v", err)
	}
	if apperrors.HTTPStatusCode(func() error { _, err := l.Acquire(ctx, "2025-03-14"); return err }()) != 409 {
		t.Errorf("held lock should map to 409")
	}

	if err := release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := release(ctx); err != nil {
		t.Fatalf("double release should be harmless: %v", err)
	}
	if _, err := l.Acquire(ctx, "2025-03-14"); err != nil {
		t.Fatalf("lock should be free after release: %v", err)
	}
}
