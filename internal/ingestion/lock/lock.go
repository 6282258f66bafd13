// Package lock provides the advisory per-date run lock that keeps two
// triggered runs from rebuilding the same edition at once.
package lock

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/pkg/redis"
)

const keyPrefix = "ingest:lock:"

// Release frees a held lock.
type Release func(ctx context.Context) error

// Locker acquires a named lock or fails with ErrRunInProgress.
type Locker interface {
	Acquire(ctx context.Context, name string) (Release, error)
}

// Redis is a Locker backed by SET NX with a TTL. Release only deletes the
// key while it still holds this holder's token, so an expired lock
// re-acquired by someone else is left alone.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Redis{
		client: client,
		ttl:    ttl,
		logger: slog.Default().With("component", "run-lock"),
	}
}

func (l *Redis) Acquire(ctx context.Context, name string) (Release, error) {
	key := keyPrefix + name
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, l.ttl)
	if err != nil {
		return nil, fmt.Errorf("acquiring lock %s: %w", key, err)
	}
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrRunInProgress, 409, "a run for %s is already in progress", name)
	}
	l.logger.Debug("lock acquired", "key", key, "ttl", l.ttl)
	return func(ctx context.Context) error {
		released, err := l.client.ReleaseIfOwner(ctx, key, token)
		if err != nil {
			return err
		}
		if !released {
			l.logger.Warn("lock expired before release", "key", key)
		}
		return nil
	}, nil
}

// Local is an in-process Locker used when Redis is disabled.
type Local struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewLocal() *Local {
	return &Local{held: make(map[string]struct{})}
}

func (l *Local) Acquire(_ context.Context, name string) (Release, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[name]; ok {
		return nil, apperrors.Newf(apperrors.ErrRunInProgress, 409, "a run for %s is already in progress", name)
	}
	l.held[name] = struct{}{}
	var once sync.Once
	return func(context.Context) error {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, name)
			l.mu.Unlock()
		})
		return nil
	}, nil
}
