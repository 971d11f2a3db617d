package middleware

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// RateLimit throttles requests per client address over a fixed window. It
// runs ahead of auth, so the key is the network peer rather than the user;
// RealIP has already rewritten RemoteAddr from the proxy headers by the time
// this executes. Preflight requests pass uncounted.
func RateLimit(limit int, per time.Duration) func(http.Handler) http.Handler {
	l := &limiter{limit: limit, per: per, windows: make(map[string]*window)}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			if retry, ok := l.take(remoteHost(r), time.Now()); !ok {
				w.Header().Set("Retry-After", strconv.Itoa(int(retry/time.Second)+1))
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type window struct {
	count int
	reset time.Time
}

type limiter struct {
	limit   int
	per     time.Duration
	mu      sync.Mutex
	windows map[string]*window
}

// take counts one request against key. When the window is full it returns
// the time until the window resets and false.
func (l *limiter) take(key string, now time.Time) (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	win, ok := l.windows[key]
	if !ok || now.After(win.reset) {
		l.prune(now)
		win = &window{reset: now.Add(l.per)}
		l.windows[key] = win
	}
	if win.count >= l.limit {
		return win.reset.Sub(now), false
	}
	win.count++
	return 0, true
}

// prune drops expired windows so idle addresses do not accumulate. Runs with
// l.mu held, only on the slow path that allocates a fresh window.
func (l *limiter) prune(now time.Time) {
	for key, win := range l.windows {
		if now.After(win.reset) {
			delete(l.windows, key)
		}
	}
}

// remoteHost strips the port from RemoteAddr. Addresses without a port, as
// some test clients set, pass through unchanged.
func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
