package commands

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/conduit-lang/waypoint/internal/cli/config"
	"github.com/conduit-lang/waypoint/internal/demo"
	"github.com/conduit-lang/waypoint/internal/dispatch"
	"github.com/conduit-lang/waypoint/internal/web/auth"
	"github.com/conduit-lang/waypoint/internal/web/cache"
	"github.com/conduit-lang/waypoint/internal/web/ratelimit"
)

// commandContext returns the command's context, or a background one when
// it runs outside Execute
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// newLogger builds the process logger from the log section
func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log.level: %w", err)
	}

	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// releaser collects the close functions of serve-time resources. release
// runs them newest first, once.
type releaser struct {
	mu  sync.Mutex
	fns []func() error
}

func (r *releaser) add(fn func() error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fns = append(r.fns, fn)
}

func (r *releaser) release() error {
	r.mu.Lock()
	fns := r.fns
	r.fns = nil
	r.mu.Unlock()

	var errs []error
	for i := len(fns) - 1; i >= 0; i-- {
		if err := fns[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// newLimiter selects the redis limiter when redis.addr is set and the
// in-memory token bucket otherwise. The returned func releases it.
func newLimiter(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (ratelimit.RateLimiter, func() error, error) {
	if cfg.Addr == "" {
		tb := ratelimit.NewTokenBucket(time.Minute)
		return tb, func() error { tb.Close(); return nil }, nil
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.Addr})
	if err := client.Ping(ctx).Err(); err != nil {
		if !cfg.FailOpen {
			client.Close()
			return nil, nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.Addr, err)
		}
		logger.Warn("redis unreachable, rate limits fail open", zap.String("addr", cfg.Addr), zap.Error(err))
	}
	limiter, err := ratelimit.NewRedisRateLimiter(client, cfg.Prefix)
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	return limiter, client.Close, nil
}

// newCacheStore builds the response cache named by cache.store. A nil
// store disables the cache stage.
func newCacheStore(ctx context.Context, cfg config.CacheConfig, rcfg config.RedisConfig) (cache.Store, func() error, error) {
	switch cfg.Store {
	case "", "none":
		return nil, func() error { return nil }, nil
	case "memory":
		m := cache.NewMemory(cfg.SweepInterval)
		return m, func() error { m.Close(); return nil }, nil
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: rcfg.Addr})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("failed to reach redis at %s: %w", rcfg.Addr, err)
		}
		store, err := cache.NewRedis(client, cfg.Prefix)
		if err != nil {
			client.Close()
			return nil, nil, err
		}
		return store, client.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown cache store %q", cfg.Store)
}

// newTokenService uses the configured secret. Without one a random secret
// is generated, so tokens do not survive a restart.
func newTokenService(cfg config.AuthConfig, logger *zap.Logger) (*auth.TokenService, error) {
	secret := cfg.JWTSecret
	if secret == "" {
		secret = uuid.NewString()
		logger.Warn("auth.jwt_secret not set, using an ephemeral secret")
	}
	return auth.NewTokenService(secret, cfg.TokenTTL)
}

// dispatchOptions maps the dispatch section onto dispatcher options
func dispatchOptions(cfg config.DispatchConfig, logger *zap.Logger) (dispatch.Options, error) {
	strategy, ok := dispatch.ParseStrategy(cfg.Strategy)
	if !ok {
		return dispatch.Options{}, fmt.Errorf("unknown dispatch strategy %q", cfg.Strategy)
	}
	return dispatch.Options{
		Strategy: strategy,
		Async:    cfg.Async,
		Timeout:  cfg.Timeout,
		Logger:   logger,
	}, nil
}

// compile builds the demo routing table and a dispatcher over it
func compile(cfg *config.Config, deps demo.Deps) (*dispatch.Dispatcher, error) {
	opts, err := dispatchOptions(cfg.Dispatch, deps.Logger)
	if err != nil {
		return nil, err
	}
	tbl, err := demo.Build("", deps)
	if err != nil {
		return nil, err
	}
	return dispatch.New(tbl, opts), nil
}
