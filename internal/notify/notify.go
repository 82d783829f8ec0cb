// Package notify surfaces transient notices to the operator, showing each
// distinct problem once while it is still on screen.
package notify

import (
	"sync"
	"time"
)

const DefaultTTL = 5 * time.Second

const (
	LevelInfo  = "info"
	LevelError = "error"
)

type Notice struct {
	Key     string    `json:"key"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
	Shown   time.Time `json:"shown"`
}

// Notifier suppresses a notice whose key is already active. A key becomes
// free again when the notice is dismissed or its TTL has passed.
type Notifier struct {
	mu     sync.Mutex
	ttl    time.Duration
	now    func() time.Time
	sink   func(Notice)
	active map[string]Notice
}

type Options struct {
	TTL  time.Duration
	Now  func() time.Time
	Sink func(Notice)
}

func New(options Options) *Notifier {
	n := &Notifier{
		ttl:    options.TTL,
		now:    options.Now,
		sink:   options.Sink,
		active: make(map[string]Notice),
	}
	if n.ttl <= 0 {
		n.ttl = DefaultTTL
	}
	if n.now == nil {
		n.now = time.Now
	}
	return n
}

// Error shows msg under key and reports whether it was shown. An empty key
// falls back to the message itself.
func (n *Notifier) Error(key, msg string) bool {
	return n.show(key, LevelError, msg)
}

func (n *Notifier) Info(key, msg string) bool {
	return n.show(key, LevelInfo, msg)
}

func (n *Notifier) Dismiss(key string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.active, key)
}

// Active lists the notices still on screen.
func (n *Notifier) Active() []Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.expireLocked()
	notices := make([]Notice, 0, len(n.active))
	for _, notice := range n.active {
		notices = append(notices, notice)
	}
	return notices
}

func (n *Notifier) show(key, level, msg string) bool {
	if key == "" {
		key = msg
	}
	n.mu.Lock()
	n.expireLocked()
	if _, ok := n.active[key]; ok {
		n.mu.Unlock()
		return false
	}
	notice := Notice{Key: key, Level: level, Message: msg, Shown: n.now()}
	n.active[key] = notice
	sink := n.sink
	n.mu.Unlock()

	if sink != nil {
		sink(notice)
	}
	return true
}

func (n *Notifier) expireLocked() {
	now := n.now()
	for key, notice := range n.active {
		if now.Sub(notice.Shown) >= n.ttl {
			delete(n.active, key)
		}
	}
}
