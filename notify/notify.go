// Package notify keeps the transient toast shown to each dashboard session.
package notify

import (
	"sync"
	"time"
)

type Severity string

const (
	Success Severity = "success"
	Error   Severity = "error"
	Info    Severity = "info"
	Warning Severity = "warning"
)

// DefaultTTL is how long a toast stays visible.
const DefaultTTL = 3 * time.Second

type Toast struct {
	Message   string    `json:"message"`
	Severity  Severity  `json:"severity"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Notifier is what callers that raise toasts depend on.
type Notifier interface {
	Notify(message string, severity Severity)
}

// Center holds at most one toast per session key. A newer toast replaces the
// older one; a toast disappears DefaultTTL after it was shown.
type Center struct {
	TTL time.Duration
	Now func() time.Time

	mu     sync.Mutex
	toasts map[string]Toast
}

func NewCenter() *Center {
	return &Center{TTL: DefaultTTL, Now: time.Now, toasts: make(map[string]Toast)}
}

func (c *Center) Show(key, message string, severity Severity) Toast {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.Now()
	c.sweep(now)
	t := Toast{Message: message, Severity: severity, ExpiresAt: now.Add(c.TTL)}
	c.toasts[key] = t
	return t
}

// Current returns the visible toast for key, if any.
func (c *Center) Current(key string) (Toast, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.toasts[key]
	if !ok {
		return Toast{}, false
	}
	if !c.Now().Before(t.ExpiresAt) {
		delete(c.toasts, key)
		return Toast{}, false
	}
	return t, true
}

// Dismiss hides the toast for key before it expires.
func (c *Center) Dismiss(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.toasts, key)
}

func (c *Center) sweep(now time.Time) {
	for k, t := range c.toasts {
		if !now.Before(t.ExpiresAt) {
			delete(c.toasts, k)
		}
	}
}

// For binds the center to one session key.
func (c *Center) For(key string) Notifier {
	return sessionNotifier{c: c, key: key}
}

type sessionNotifier struct {
	c   *Center
	key string
}

func (s sessionNotifier) Notify(message string, severity Severity) {
	s.c.Show(s.key, message, severity)
}

// Recorder collects toasts in memory. Handy for command line clients and
// tests.
type Recorder struct {
	mu     sync.Mutex
	Toasts []Toast
}

func (r *Recorder) Notify(message string, severity Severity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Toasts = append(r.Toasts, Toast{Message: message, Severity: severity})
}

// Last returns the most recent toast.
func (r *Recorder) Last() (Toast, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.Toasts) == 0 {
		return Toast{}, false
	}
	return r.Toasts[len(r.Toasts)-1], true
}

func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Toasts)
}
