package service

import (
	"log"
	"sync"
	"time"
)

type NotificationLevel string

const (
	LevelInfo    NotificationLevel = "info"
	LevelSuccess NotificationLevel = "success"
	LevelWarning NotificationLevel = "warning"
	LevelError   NotificationLevel = "error"
)

// Notification is a transient message for the UI layer.
type Notification struct {
	ID      uint64            `json:"id"`
	Level   NotificationLevel `json:"level"`
	Message string            `json:"message"`
	At      time.Time         `json:"at"`
}

type Notifier interface {
	Notify(level NotificationLevel, message string)
}

// NotificationFeed keeps the last notifications in a bounded buffer so the UI
// can poll for what it has not shown yet.
type NotificationFeed struct {
	mu     sync.Mutex
	items  []Notification
	limit  int
	nextID uint64
	logger *log.Logger
}

func NewNotificationFeed(limit int, lg *log.Logger) *NotificationFeed {
	if limit <= 0 {
		limit = 50
	}
	return &NotificationFeed{limit: limit, logger: lg}
}

func (f *NotificationFeed) Notify(level NotificationLevel, message string) {
	f.mu.Lock()
	f.nextID++
	n := Notification{ID: f.nextID, Level: level, Message: message, At: time.Now()}
	f.items = append(f.items, n)
	if len(f.items) > f.limit {
		f.items = f.items[len(f.items)-f.limit:]
	}
	f.mu.Unlock()

	if f.logger != nil {
		f.logger.Printf("[notify] %s: %s", level, message)
	}
}

// Since returns the buffered notifications newer than id.
func (f *NotificationFeed) Since(id uint64) []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]Notification, 0, len(f.items))
	for _, n := range f.items {
		if n.ID > id {
			out = append(out, n)
		}
	}
	return out
}

// Last returns the most recent notification.
func (f *NotificationFeed) Last() (Notification, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.items) == 0 {
		return Notification{}, false
	}
	return f.items[len(f.items)-1], true
}

type nopNotifier struct{}

func (nopNotifier) Notify(NotificationLevel, string) {}
