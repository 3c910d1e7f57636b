// Rate limiter for API endpoints that burn CPU (training).
// Simple in-memory token bucket per client IP.
package api

import (
	"context"
	"math"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// RateLimiter hands out rate tokens per second per IP, holding at most
// burst tokens.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    float64
	burst   float64
	now     func() time.Time
	done    chan struct{}
	once    sync.Once
}

type bucket struct {
	tokens float64
	last   time.Time
}

// NewRateLimiter creates a limiter and starts its background cleanup. Call
// Stop to end it.
func NewRateLimiter(rate float64, burst int) *RateLimiter {
	rl := &RateLimiter{
		buckets: make(map[string]*bucket),
		rate:    rate,
		burst:   float64(max(burst, 1)),
		now:     time.Now,
		done:    make(chan struct{}),
	}
	go func() {
		t := time.NewTicker(time.Hour)
		defer t.Stop()
		for {
			select {
			case <-rl.done:
				return
			case <-t.C:
				rl.cleanup()
			}
		}
	}()
	return rl
}

// Stop ends the cleanup goroutine.
func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.done) })
}

// Allow takes a token for ip if one is available.
func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, ok := rl.buckets[ip]
	if !ok {
		rl.buckets[ip] = &bucket{tokens: rl.burst - 1, last: now}
		return true
	}
	b.tokens = math.Min(rl.burst, b.tokens+now.Sub(b.last).Seconds()*rl.rate)
	b.last = now
	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// RetryAfter returns how many whole seconds until ip has a token again.
func (rl *RateLimiter) RetryAfter(ip string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[ip]
	if !ok || b.tokens >= 1 || rl.rate <= 0 {
		return 0
	}
	missing := 1 - b.tokens
	return int(math.Ceil(missing/rl.rate - 1e-9))
}

func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for ip, b := range rl.buckets {
		// Full again, so forgetting it changes nothing.
		if b.tokens+now.Sub(b.last).Seconds()*rl.rate >= rl.burst {
			delete(rl.buckets, ip)
		}
	}
}

// Middleware answers 429 with a Retry-After header once a client runs out
// of tokens.
func (rl *RateLimiter) Middleware() app.HandlerFunc {
	return func(c context.Context, ctx *app.RequestContext) {
		ip := clientIP(ctx)
		if !rl.Allow(ip) {
			ctx.Response.Header.Set("Retry-After", strconv.Itoa(rl.RetryAfter(ip)))
			writeErrorBody(ctx, consts.StatusTooManyRequests, "rate_limited", "rate limit exceeded")
			ctx.Abort()
			return
		}
		ctx.Next(c)
	}
}

// clientIP prefers the first X-Forwarded-For hop, then the peer address
// without its port.
func clientIP(ctx *app.RequestContext) string {
	if xff := strings.TrimSpace(string(ctx.GetHeader("X-Forwarded-For"))); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	addr := ctx.RemoteAddr().String()
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
