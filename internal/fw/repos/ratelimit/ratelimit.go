// Package ratelimit counts requests per client in fixed windows. Client state lives
// in a bounded LRU whose entries expire with their window.
package ratelimit

import (
	"errors"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/haukened/rr-fwmgr/internal/fw/common/clock"
)

var (
	ErrInvalidLimit  = errors.New("rate limit must be positive")
	ErrInvalidWindow = errors.New("rate limit window must be positive")
	ErrInvalidSize   = errors.New("rate limit client capacity must be positive")
)

type window struct {
	start time.Time
	count int
}

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	Reset     time.Time
}

// Limiter allows at most limit requests per key in each window. When more than
// capacity clients are active the least recently seen one is forgotten.
type Limiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	clock   clock.Clock
	clients *expirable.LRU[string, *window]
}

// New returns a Limiter. A nil clock uses wall time.
func New(limit int, win time.Duration, capacity int, clk clock.Clock) (*Limiter, error) {
	switch {
	case limit <= 0:
		return nil, ErrInvalidLimit
	case win <= 0:
		return nil, ErrInvalidWindow
	case capacity <= 0:
		return nil, ErrInvalidSize
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Limiter{
		limit:   limit,
		window:  win,
		clock:   clk,
		clients: expirable.NewLRU[string, *window](capacity, nil, win),
	}, nil
}

// Allow counts one request for key.
func (l *Limiter) Allow(key string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	w, ok := l.clients.Get(key)
	if !ok || now.Sub(w.start) >= l.window {
		w = &window{start: now}
		l.clients.Add(key, w)
	}
	w.count++

	d := Decision{
		Allowed: w.count <= l.limit,
		Limit:   l.limit,
		Reset:   w.start.Add(l.window),
	}
	if d.Allowed {
		d.Remaining = l.limit - w.count
	}
	return d
}

// Len returns the number of clients currently tracked.
func (l *Limiter) Len() int {
	return l.clients.Len()
}
