// Package clock abstracts wall-clock time so annotations and token expiry can be
// pinned in tests.
package clock

import (
	"sync"
	"time"
)

type Clock interface {
	Now() time.Time
}

// RealClock reports the current UTC time.
type RealClock struct{}

func (c RealClock) Now() time.Time {
	return time.Now().UTC()
}

// MockClock returns CurrentTime until advanced.
type MockClock struct {
	mu          sync.Mutex
	CurrentTime time.Time
}

func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.CurrentTime
}

func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.CurrentTime = c.CurrentTime.Add(d)
	c.mu.Unlock()
}
