// Package toast keeps the short-lived notifications shown by the UI.
package toast

import (
	"sync"
	"time"
)

// Level is the notification flavour.
type Level int

const (
	Info Level = iota
	Success
	Warning
	Error
)

func (l Level) String() string {
	switch l {
	case Success:
		return "success"
	case Warning:
		return "warning"
	case Error:
		return "error"
	default:
		return "info"
	}
}

const (
	DefaultTTL = 5 * time.Second
	MaxActive  = 5
)

// Toast is one notification.
type Toast struct {
	ID        uint64
	Level     Level
	Message   string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Center stores notifications. Safe for concurrent use.
type Center struct {
	mu     sync.Mutex
	nextID uint64
	toasts []Toast
	ttl    time.Duration
	now    func() time.Time
}

// NewCenter returns a center whose toasts live for ttl (zero uses
// DefaultTTL). now may be nil.
func NewCenter(ttl time.Duration, now func() time.Time) *Center {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Center{ttl: ttl, now: now}
}

// Push adds a notification and returns its ID. The oldest toasts are evicted
// beyond MaxActive.
func (c *Center) Push(level Level, message string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.pruneLocked(now)
	c.nextID++
	c.toasts = append(c.toasts, Toast{
		ID:        c.nextID,
		Level:     level,
		Message:   message,
		CreatedAt: now,
		ExpiresAt: now.Add(c.ttl),
	})
	if over := len(c.toasts) - MaxActive; over > 0 {
		c.toasts = append([]Toast(nil), c.toasts[over:]...)
	}
	return c.nextID
}

// Active returns unexpired toasts, oldest first.
func (c *Center) Active() []Toast {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pruneLocked(c.now())
	return append([]Toast(nil), c.toasts...)
}

// Dismiss removes the toast with id.
func (c *Center) Dismiss(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, t := range c.toasts {
		if t.ID == id {
			c.toasts = append(c.toasts[:i:i], c.toasts[i+1:]...)
			return
		}
	}
}

func (c *Center) pruneLocked(now time.Time) {
	kept := c.toasts[:0]
	for _, t := range c.toasts {
		if now.Before(t.ExpiresAt) {
			kept = append(kept, t)
		}
	}
	c.toasts = kept
}
