package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// defaultNotificationTTL is how long a notification stays visible.
const defaultNotificationTTL = 4 * time.Second

// Notification levels.
const (
	LevelInfo    = "info"
	LevelSuccess = "success"
	LevelWarning = "warning"
)

// Notification is a short-lived message about a completed action.
type Notification struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Level     string    `json:"level"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NotificationCenter keeps the notifications that have not yet expired.
// Expired entries are dropped lazily on every read and write.
type NotificationCenter struct {
	mu     sync.Mutex
	items  []Notification
	ttl    time.Duration
	now    func() time.Time
	newID  func() string
	onPush func(Notification)
}

// NewNotificationCenter creates an empty feed whose entries live for ttl.
func NewNotificationCenter(ttl time.Duration) *NotificationCenter {
	if ttl <= 0 {
		ttl = defaultNotificationTTL
	}
	return &NotificationCenter{
		ttl:   ttl,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// SetOnPush registers a callback invoked after every Push.
func (c *NotificationCenter) SetOnPush(fn func(Notification)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onPush = fn
}

// Push adds a notification. An unknown level is recorded as info.
func (c *NotificationCenter) Push(message, level string) Notification {
	switch level {
	case LevelInfo, LevelSuccess, LevelWarning:
	default:
		level = LevelInfo
	}

	c.mu.Lock()
	now := c.now().UTC()
	n := Notification{
		ID:        c.newID(),
		Message:   message,
		Level:     level,
		CreatedAt: now,
		ExpiresAt: now.Add(c.ttl),
	}
	c.pruneLocked(now)
	c.items = append(c.items, n)
	onPush := c.onPush
	c.mu.Unlock()

	if onPush != nil {
		onPush(n)
	}
	return n
}

// List returns the live notifications, oldest first.
func (c *NotificationCenter) List() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pruneLocked(c.now())
	out := make([]Notification, len(c.items))
	copy(out, c.items)
	return out
}

// Dismiss removes a notification. It reports whether id was live.
func (c *NotificationCenter) Dismiss(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pruneLocked(c.now())
	for i := range c.items {
		if c.items[i].ID == id {
			c.items = append(c.items[:i], c.items[i+1:]...)
			return true
		}
	}
	return false
}

func (c *NotificationCenter) pruneLocked(now time.Time) {
	kept := c.items[:0]
	for _, n := range c.items {
		if now.Before(n.ExpiresAt) {
			kept = append(kept, n)
		}
	}
	c.items = kept
}

// handleListNotifications returns the live notifications.
func (s *Server) handleListNotifications(w http.ResponseWriter, _ *http.Request) {
	items := s.notifications.List()
	writeJSON(w, http.StatusOK, map[string]any{
		"notifications": items,
		"count":         len(items),
	})
}

// handleDismissNotification removes one notification.
func (s *Server) handleDismissNotification(w http.ResponseWriter, r *http.Request) {
	if !s.notifications.Dismiss(chi.URLParam(r, "id")) {
		writeNotFound(w, "notification not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
