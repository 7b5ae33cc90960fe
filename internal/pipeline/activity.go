package pipeline

import (
	"log/slog"
	"sync"
	"time"
)

// EntryKind classifies activity log entries
type EntryKind string

const (
	EntryTranscript  EntryKind = "transcript"
	EntryTranslation EntryKind = "translation"
	EntryStatus      EntryKind = "status"
	EntryError       EntryKind = "error"
)

// DefaultActivityCapacity is the number of entries kept when none is configured
const DefaultActivityCapacity = 500

// Entry is one line of the visible activity log
type Entry struct {
	Seq       uint64    `json:"seq"`
	Time      time.Time `json:"time"`
	Kind      EntryKind `json:"kind"`
	Text      string    `json:"text"`
	SessionID string    `json:"session_id,omitempty"`
}

// ActivityLog is a bounded, concurrency-safe log of session activity.
// Subscribers receive entries as they are appended; a subscriber that falls
// behind misses entries instead of blocking the pipeline.
type ActivityLog struct {
	mu      sync.RWMutex
	entries []Entry
	start   int
	count   int
	seq     uint64
	subs    map[int]chan Entry
	nextSub int
	logger  *slog.Logger
}

// NewActivityLog creates a log that keeps the last capacity entries
func NewActivityLog(capacity int, logger *slog.Logger) *ActivityLog {
	if capacity <= 0 {
		capacity = DefaultActivityCapacity
	}
	return &ActivityLog{
		entries: make([]Entry, capacity),
		subs:    make(map[int]chan Entry),
		logger:  logger,
	}
}

// Append records an entry and publishes it to subscribers
func (l *ActivityLog) Append(sessionID string, kind EntryKind, text string) Entry {
	l.mu.Lock()
	l.seq++
	entry := Entry{
		Seq:       l.seq,
		Time:      time.Now(),
		Kind:      kind,
		Text:      text,
		SessionID: sessionID,
	}

	capacity := len(l.entries)
	if l.count < capacity {
		l.entries[(l.start+l.count)%capacity] = entry
		l.count++
	} else {
		l.entries[l.start] = entry
		l.start = (l.start + 1) % capacity
	}

	for _, ch := range l.subs {
		select {
		case ch <- entry:
		default:
		}
	}
	l.mu.Unlock()

	attrs := []any{slog.String("kind", string(kind)), slog.String("session_id", sessionID)}
	if kind == EntryError {
		l.logger.Error(text, attrs...)
	} else {
		l.logger.Info(text, attrs...)
	}

	return entry
}

// Recent returns up to limit of the newest entries, oldest first. A limit of
// zero or less returns everything retained.
func (l *ActivityLog) Recent(limit int) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	n := l.count
	if limit > 0 && limit < n {
		n = limit
	}

	out := make([]Entry, 0, n)
	capacity := len(l.entries)
	for i := l.count - n; i < l.count; i++ {
		out = append(out, l.entries[(l.start+i)%capacity])
	}
	return out
}

// Len returns the number of retained entries
func (l *ActivityLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.count
}

// Subscribe returns a channel receiving new entries and a cancel function
// that closes it
func (l *ActivityLog) Subscribe(buffer int) (<-chan Entry, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Entry, buffer)

	l.mu.Lock()
	id := l.nextSub
	l.nextSub++
	l.subs[id] = ch
	l.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.subs, id)
			l.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}
