package visitor

import (
	"sync"
	"time"
)

// DefaultNoticeDuration is how long a notice stays visible.
const DefaultNoticeDuration = 3 * time.Second

// Outbox holds what the visitor's browser must be told on its next response:
// at most one transient notice and at most one pending navigation.
type Outbox struct {
	ttl time.Duration
	now func() time.Time

	mu         sync.Mutex
	notice     string
	expires    time.Time
	navigation string
}

// NewOutbox creates an Outbox whose notices expire after ttl (DefaultNoticeDuration when <= 0).
func NewOutbox(ttl time.Duration) *Outbox {
	if ttl <= 0 {
		ttl = DefaultNoticeDuration
	}
	return &Outbox{ttl: ttl, now: time.Now}
}

// Notify replaces the current notice. Notices never stack.
func (o *Outbox) Notify(message string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.notice = message
	o.expires = o.now().Add(o.ttl)
}

// Navigate queues a navigation, replacing any pending one.
func (o *Outbox) Navigate(path string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.navigation = path
}

// Notice returns the current notice until it expires.
func (o *Outbox) Notice() (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.notice == "" {
		return "", false
	}
	if !o.now().Before(o.expires) {
		o.notice = ""
		return "", false
	}
	return o.notice, true
}

// PendingNavigation reports the queued navigation without consuming it.
func (o *Outbox) PendingNavigation() (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.navigation, o.navigation != ""
}

// TakeNavigation consumes the queued navigation.
func (o *Outbox) TakeNavigation() (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	nav := o.navigation
	o.navigation = ""
	return nav, nav != ""
}
