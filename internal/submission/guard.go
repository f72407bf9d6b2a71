package submission

import (
	"context"
	"fmt"
	"sync"
	"time"

	pkgerrors "github.com/angelmondragon/viylo-storefront/pkg/errors"
	"github.com/angelmondragon/viylo-storefront/pkg/logger"
	"github.com/google/uuid"
)

// ReleaseFunc ends a pending submission.
type ReleaseFunc func(ctx context.Context)

// PendingGuard allows at most one in-flight submission per session.
type PendingGuard interface {
	Acquire(ctx context.Context, sessionID string) (ReleaseFunc, error)
}

func errPending(sessionID string) error {
	return pkgerrors.New(pkgerrors.CodeConflict, "an order submission is already in progress").
		WithDetails(map[string]any{"session_id": sessionID})
}

// MemoryGuard tracks pending submissions in process.
type MemoryGuard struct {
	mu      sync.Mutex
	pending map[string]struct{}
}

func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{pending: map[string]struct{}{}}
}

func (g *MemoryGuard) Acquire(_ context.Context, sessionID string) (ReleaseFunc, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.pending[sessionID]; busy {
		return nil, errPending(sessionID)
	}
	g.pending[sessionID] = struct{}{}

	var once sync.Once
	return func(context.Context) {
		once.Do(func() {
			g.mu.Lock()
			delete(g.pending, sessionID)
			g.mu.Unlock()
		})
	}, nil
}

type lockStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	ReleaseIfValue(ctx context.Context, key, value string) (bool, error)
	PendingSubmissionKey(sessionID string) string
}

// RedisGuard shares pending submissions across instances with SETNX and a TTL.
type RedisGuard struct {
	store lockStore
	ttl   time.Duration
	logg  *logger.Logger
}

func NewRedisGuard(store lockStore, ttl time.Duration, logg *logger.Logger) (*RedisGuard, error) {
	if store == nil {
		return nil, fmt.Errorf("redis store required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("submission lock ttl must be positive")
	}
	return &RedisGuard{store: store, ttl: ttl, logg: logg}, nil
}

func (g *RedisGuard) Acquire(ctx context.Context, sessionID string) (ReleaseFunc, error) {
	key := g.store.PendingSubmissionKey(sessionID)
	token := uuid.NewString()
	ok, err := g.store.SetNX(ctx, key, token, g.ttl)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire submission lock")
	}
	if !ok {
		return nil, errPending(sessionID)
	}

	var once sync.Once
	return func(ctx context.Context) {
		once.Do(func() {
			// release must outlive a canceled request context
			releaseCtx := context.WithoutCancel(ctx)
			if _, err := g.store.ReleaseIfValue(releaseCtx, key, token); err != nil && g.logg != nil {
				g.logg.Warn(g.logg.WithField(releaseCtx, "lock_key", key), "release submission lock failed")
			}
		})
	}, nil
}
