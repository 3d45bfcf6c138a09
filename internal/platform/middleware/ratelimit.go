package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/psiclinic/clinic/internal/platform/apperr"
)

type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
	// IdleTTL evicts buckets for keys not seen for this long.
	IdleTTL time.Duration
	// KeyFunc picks the bucket; defaults to the client IP.
	KeyFunc func(echo.Context) string
	// Skipper exempts matching requests from this limiter.
	Skipper func(echo.Context) bool
}

func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{RequestsPerSecond: 20, BurstSize: 40, IdleTTL: 10 * time.Minute}
}

// LoginRateLimitConfig throttles POST /auth/login to ten attempts a minute
// per client IP, with a burst of five. Every other request is skipped.
func LoginRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 10.0 / 60,
		BurstSize:         5,
		IdleTTL:           15 * time.Minute,
		Skipper: func(c echo.Context) bool {
			return c.Request().Method != http.MethodPost || c.Path() != "/auth/login"
		},
	}
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// buckets is a keyed set of token buckets with lazy idle eviction.
type buckets struct {
	mu        sync.Mutex
	byKey     map[string]*bucket
	rps       rate.Limit
	burst     int
	ttl       time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func newBuckets(cfg RateLimitConfig) *buckets {
	ttl := cfg.IdleTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &buckets{
		byKey:     map[string]*bucket{},
		rps:       rate.Limit(cfg.RequestsPerSecond),
		burst:     cfg.BurstSize,
		ttl:       ttl,
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

// take spends one token for key. When none is left it reports how many whole
// seconds the caller should wait.
func (b *buckets) take(key string) (ok bool, retryAfter int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	if now.Sub(b.lastSweep) > b.ttl {
		for k, v := range b.byKey {
			if now.Sub(v.seen) > b.ttl {
				delete(b.byKey, k)
			}
		}
		b.lastSweep = now
	}

	bk := b.byKey[key]
	if bk == nil {
		bk = &bucket{lim: rate.NewLimiter(b.rps, b.burst)}
		b.byKey[key] = bk
	}
	bk.seen = now

	if bk.lim.AllowN(now, 1) {
		return true, 0
	}
	r := bk.lim.ReserveN(now, 1)
	if !r.OK() {
		return false, 1
	}
	wait := r.DelayFrom(now)
	r.CancelAt(now)
	return false, int(math.Max(1, math.Ceil(wait.Seconds())))
}

func (b *buckets) size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.byKey)
}

// RateLimit answers 429 with Retry-After once a key's bucket is empty.
func RateLimit(cfg RateLimitConfig) echo.MiddlewareFunc {
	bs := newBuckets(cfg)
	key := cfg.KeyFunc
	if key == nil {
		key = func(c echo.Context) string { return c.RealIP() }
	}
	limit := strconv.FormatFloat(cfg.RequestsPerSecond, 'f', -1, 64)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.Skipper != nil && cfg.Skipper(c) {
				return next(c)
			}
			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", limit)
			ok, retry := bs.take(key(c))
			if !ok {
				h.Set("Retry-After", strconv.Itoa(retry))
				h.Set("X-RateLimit-Remaining", "0")
				return apperr.RateLimited()
			}
			return next(c)
		}
	}
}
