// Package throttle rate-limits requests per client IP at the HTTP edge. The
// primary limiter is a Redis fixed window shared across instances; an
// in-process token bucket takes over when Redis is down so an outage degrades
// precision instead of dropping protection.
package throttle

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	dErrors "keyhaven/pkg/domain-errors"
	"keyhaven/pkg/platform/httputil"
	"keyhaven/pkg/requestcontext"
)

// Limiter decides whether one more request from key is allowed right now.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RedisLimiter implements a fixed-window counter shared across instances.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

func NewRedis(client *redis.Client, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, limit: limit, window: window}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	bucket := fmt.Sprintf("throttle:%s:%d", key, time.Now().Unix()/int64(l.window.Seconds()))

	pipe := l.client.TxPipeline()
	count := pipe.Incr(ctx, bucket)
	pipe.Expire(ctx, bucket, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("throttle incr: %w", err)
	}
	return count.Val() <= int64(l.limit), nil
}

// LocalLimiter is the in-process fallback: one token bucket per key, refilled
// at limit/window. Buckets for idle keys are dropped on a coarse sweep.
type LocalLimiter struct {
	mu      sync.Mutex
	buckets map[string]*localBucket
	rate    rate.Limit
	burst   int

	lastSweep time.Time
}

type localBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

const sweepInterval = 10 * time.Minute

func NewLocal(limit int, window time.Duration) *LocalLimiter {
	return &LocalLimiter{
		buckets:   make(map[string]*localBucket),
		rate:      rate.Limit(float64(limit) / window.Seconds()),
		burst:     limit,
		lastSweep: time.Now(),
	}
}

func (l *LocalLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.Sub(l.lastSweep) > sweepInterval {
		for k, b := range l.buckets {
			if now.Sub(b.lastSeen) > sweepInterval {
				delete(l.buckets, k)
			}
		}
		l.lastSweep = now
	}

	b, ok := l.buckets[key]
	if !ok {
		b = &localBucket{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter.Allow(), nil
}

// Middleware applies primary with fallback semantics: a primary error routes
// the decision to fallback rather than failing the request open or closed at
// random. primary may be nil, in which case fallback decides alone.
func Middleware(primary, fallback Limiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			key := requestcontext.ClientIP(ctx)
			if key == "" {
				key = r.RemoteAddr
			}

			allowed, err := allow(ctx, primary, fallback, key, logger)
			if err != nil {
				// Both limiters failing means local state corruption, not
				// load; let the request through rather than lock everyone out.
				logger.ErrorContext(ctx, "all throttle limiters failed", "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				logger.WarnContext(ctx, "request throttled",
					"request_id", requestcontext.RequestID(ctx),
					"client_ip", key,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeRateLimited, "too many requests"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func allow(ctx context.Context, primary, fallback Limiter, key string, logger *slog.Logger) (bool, error) {
	if primary != nil {
		allowed, err := primary.Allow(ctx, key)
		if err == nil {
			return allowed, nil
		}
		logger.WarnContext(ctx, "primary throttle unavailable, using fallback", "error", err)
	}
	if fallback == nil {
		return true, nil
	}
	return fallback.Allow(ctx, key)
}
