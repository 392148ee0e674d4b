package demoapp

import (
	"sync"
	"time"
)

// LogEntry is one startup log record served by /logs.
type LogEntry struct {
	Timestamp     time.Time `json:"timestamp"`
	Level         string    `json:"level"`
	Message       string    `json:"message"`
	SecretsStatus string    `json:"secrets_status"`
}

// Logbook is an append-only, mutex-guarded sequence of entries. The zero
// value is ready to use.
type Logbook struct {
	mu      sync.Mutex
	entries []LogEntry
}

// Append adds e at the end of the logbook.
func (l *Logbook) Append(e LogEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
}

// Entries returns a copy of all entries in append order.
func (l *Logbook) Entries() []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]LogEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of entries.
func (l *Logbook) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
