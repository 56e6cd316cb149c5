package server

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/54b3r/docrag-go/internal/logging"
)

const (
	defaultRateLimit = 10
	defaultRateBurst = 20

	// idleLimiterTTL is how long a client's buckets survive without traffic.
	idleLimiterTTL = 5 * time.Minute
)

// Buckets partition the limiter so a client that floods uploads can still ask
// questions, and the other way round.
const (
	bucketChat   = "chat"
	bucketUpload = "upload"
)

type limiterKey struct {
	client string
	bucket string
}

type bucketState struct {
	lim  *rate.Limiter
	seen time.Time
}

// rateLimiter hands out one token bucket per client and bucket name.
type rateLimiter struct {
	mu      sync.Mutex
	buckets map[limiterKey]*bucketState
	every   rate.Limit
	burst   int
	now     func() time.Time

	// onReject, when set, is told which bucket turned a request away.
	onReject func(bucket string)
}

// newRateLimiter returns a limiter and the function that stops its
// background sweeper.
func newRateLimiter(rps float64, burst int) (*rateLimiter, func()) {
	rl := &rateLimiter{
		buckets: make(map[limiterKey]*bucketState),
		every:   rate.Limit(rps),
		burst:   burst,
		now:     time.Now,
	}

	done := make(chan struct{})
	go func() {
		t := time.NewTicker(time.Minute)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-t.C:
				rl.sweep()
			}
		}
	}()

	var once sync.Once
	return rl, func() { once.Do(func() { close(done) }) }
}

// reserve takes a token for key. It returns zero when the request may
// proceed, otherwise how long the client should wait before retrying.
func (rl *rateLimiter) reserve(key limiterKey) time.Duration {
	rl.mu.Lock()
	st, ok := rl.buckets[key]
	if !ok {
		st = &bucketState{lim: rate.NewLimiter(rl.every, rl.burst)}
		rl.buckets[key] = st
	}
	now := rl.now()
	st.seen = now
	rl.mu.Unlock()

	r := st.lim.ReserveN(now, 1)
	if !r.OK() {
		return time.Minute
	}
	if d := r.DelayFrom(now); d > 0 {
		r.CancelAt(now)
		return d
	}
	return 0
}

// sweep forgets buckets that have been idle longer than idleLimiterTTL.
func (rl *rateLimiter) sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-idleLimiterTTL)
	for k, st := range rl.buckets {
		if st.seen.Before(cutoff) {
			delete(rl.buckets, k)
		}
	}
}

// limit guards next with the named bucket. Rejected requests get 429 and a
// Retry-After rounded up to whole seconds.
func (rl *rateLimiter) limit(bucket string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client := clientIP(r)
		wait := rl.reserve(limiterKey{client: client, bucket: bucket})
		if wait == 0 {
			next.ServeHTTP(w, r)
			return
		}

		if rl.onReject != nil {
			rl.onReject(bucket)
		}
		logging.FromContext(r.Context()).Warn("rate limit exceeded",
			slog.String("ip", client),
			slog.String("bucket", bucket),
			slog.Duration("retry_after", wait),
		)
		secs := int(math.Ceil(wait.Seconds()))
		w.Header().Set("Retry-After", strconv.Itoa(max(secs, 1)))
		writeError(r.Context(), w, http.StatusTooManyRequests, "rate limit exceeded")
	})
}

// clientIP is the host part of RemoteAddr. Forwarding headers are ignored.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
