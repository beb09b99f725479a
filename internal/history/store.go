// Package history keeps accepted translations and fans out pipeline events.
package history

import (
	"sync"
	"time"
)

// Event types.
const (
	EventTranslation  = "translation"
	EventNoText       = "no_text"
	EventStatus       = "status"
	EventJournalError = "journal_error"
	EventEngineError  = "engine_error"
)

// Event is one pipeline notification for subscribers.
type Event struct {
	Type       string    `json:"type"`
	SessionID  string    `json:"session_id,omitempty"`
	Text       string    `json:"text,omitempty"`
	SourceText string    `json:"source_text,omitempty"`
	State      string    `json:"state,omitempty"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Entry is a stored translation.
type Entry struct {
	Timestamp      time.Time `json:"timestamp"`
	SessionID      string    `json:"session_id"`
	SourceText     string    `json:"source_text"`
	Text           string    `json:"text"`
	SourceLanguage string    `json:"source_language"`
	TargetLanguage string    `json:"target_language"`
}

// MemoryStore keeps the most recent entries and a buffered event channel.
type MemoryStore struct {
	mu       sync.RWMutex
	entries  []Entry
	maxSize  int
	eventsCh chan Event
	dropped  int
}

// NewStore creates a store holding at most maxEntries.
func NewStore(maxEntries, eventBuffer int) *MemoryStore {
	return &MemoryStore{
		entries:  make([]Entry, 0, maxEntries),
		maxSize:  maxEntries,
		eventsCh: make(chan Event, eventBuffer),
	}
}

// Add stores an entry, evicting the oldest past capacity.
func (s *MemoryStore) Add(e Entry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, e)
	if len(s.entries) > s.maxSize {
		s.entries = s.entries[len(s.entries)-s.maxSize:]
	}
}

// Recent returns up to n entries, newest first. n <= 0 returns all.
func (s *MemoryStore) Recent(n int) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n <= 0 || n > len(s.entries) {
		n = len(s.entries)
	}
	result := make([]Entry, 0, n)
	for i := len(s.entries) - 1; i >= 0 && len(result) < n; i-- {
		result = append(result, s.entries[i])
	}
	return result
}

// Events returns the channel for pipeline events.
func (s *MemoryStore) Events() <-chan Event {
	return s.eventsCh
}

// Emit publishes an event without blocking; it is dropped when the buffer
// is full.
func (s *MemoryStore) Emit(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	select {
	case s.eventsCh <- event:
	default:
		s.mu.Lock()
		s.dropped++
		s.mu.Unlock()
	}
}

// Dropped returns how many events were discarded on a full buffer.
func (s *MemoryStore) Dropped() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dropped
}

// Entries returns a copy of all entries, oldest first.
func (s *MemoryStore) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]Entry, len(s.entries))
	copy(result, s.entries)
	return result
}
