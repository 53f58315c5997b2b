package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-enrich/internal/model"
)

const outcomeSuffix = ":outcome"

// Release and refresh only touch a lock still held by the caller's token.
var (
	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

	refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)
)

// RedisGuard is a cross-process Guard. The holder of "SET key NX PX" runs the
// enrichment and publishes the outcome under key+":outcome"; other processes
// poll until it appears or the lock is released without one.
type RedisGuard struct {
	rdb          redis.UniversalClient
	lockTTL      time.Duration
	pollInterval time.Duration
}

// RedisOption configures a RedisGuard.
type RedisOption func(*RedisGuard)

// WithLockTTL sets the lock lifetime. The holder refreshes it while running.
func WithLockTTL(d time.Duration) RedisOption {
	return func(g *RedisGuard) {
		if d > 0 {
			g.lockTTL = d
		}
	}
}

// WithPollInterval sets how often waiters check for the outcome.
func WithPollInterval(d time.Duration) RedisOption {
	return func(g *RedisGuard) {
		if d > 0 {
			g.pollInterval = d
		}
	}
}

// NewRedisGuard creates a guard over an existing client.
func NewRedisGuard(rdb redis.UniversalClient, opts ...RedisOption) *RedisGuard {
	g := &RedisGuard{
		rdb:          rdb,
		lockTTL:      2 * time.Minute,
		pollInterval: 250 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// DialRedis parses a redis:// URL and pings the server.
func DialRedis(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, eris.Wrap(err, "idempotency: parse redis url")
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, eris.Wrap(err, "idempotency: ping redis")
	}
	return rdb, nil
}

// Run implements Guard.
func (g *RedisGuard) Run(ctx context.Context, key string, fn Func) (*model.EnrichmentOutcome, error) {
	token := uuid.NewString()
	ticker := time.NewTicker(g.pollInterval)
	defer ticker.Stop()

	waited := false
	for {
		// Once we have seen the lock held, the holder's outcome wins over a rerun.
		if waited {
			out, err := g.cached(ctx, key)
			if err != nil {
				return nil, err
			}
			if out != nil {
				zap.L().Debug("idempotency: joined run from another process", zap.String("key", key))
				return out, nil
			}
		}

		acquired, err := g.rdb.SetNX(ctx, key, token, g.lockTTL).Result()
		if err != nil {
			return nil, eris.Wrapf(err, "idempotency: acquire %s", key)
		}
		if acquired {
			return g.runLocked(ctx, key, token, fn)
		}
		waited = true

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (g *RedisGuard) runLocked(ctx context.Context, key, token string, fn Func) (*model.EnrichmentOutcome, error) {
	// A stale outcome from an earlier run must not satisfy this run's waiters.
	if err := g.rdb.Del(ctx, key+outcomeSuffix).Err(); err != nil {
		zap.L().Warn("idempotency: clear stale outcome", zap.String("key", key), zap.Error(err))
	}

	stop := g.keepAlive(ctx, key, token)
	out, runErr := fn(ctx)
	stop()

	// Publish and release even if the caller's context has ended.
	bg := context.WithoutCancel(ctx)
	if runErr == nil && out != nil {
		data, err := json.Marshal(out)
		if err == nil {
			err = g.rdb.Set(bg, key+outcomeSuffix, data, g.lockTTL).Err()
		}
		if err != nil {
			zap.L().Warn("idempotency: publish outcome", zap.String("key", key), zap.Error(err))
		}
	}
	if err := releaseScript.Run(bg, g.rdb, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		zap.L().Warn("idempotency: release lock", zap.String("key", key), zap.Error(err))
	}
	return out, runErr
}

func (g *RedisGuard) keepAlive(ctx context.Context, key, token string) func() {
	done := make(chan struct{})
	go func() {
		t := time.NewTicker(g.lockTTL / 3)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-t.C:
				if err := refreshScript.Run(ctx, g.rdb, []string{key}, token, g.lockTTL.Milliseconds()).Err(); err != nil && !errors.Is(err, redis.Nil) {
					zap.L().Warn("idempotency: refresh lock", zap.String("key", key), zap.Error(err))
				}
			}
		}
	}()
	return func() { close(done) }
}

func (g *RedisGuard) cached(ctx context.Context, key string) (*model.EnrichmentOutcome, error) {
	data, err := g.rdb.Get(ctx, key+outcomeSuffix).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "idempotency: read outcome %s", key)
	}
	var out model.EnrichmentOutcome
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, eris.Wrapf(err, "idempotency: decode outcome %s", key)
	}
	return &out, nil
}
