package demoapp

import (
	"fmt"
	"sync"
	"testing"
)

func TestLogbook_ConcurrentAppend(t *testing.T) {
	var lb Logbook
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lb.Append(LogEntry{Level: levelInfo, Message: fmt.Sprintf("entry %d", i)})
		}()
	}
	wg.Wait()

	if got := lb.Len(); got != 50 {
		t.Fatalf("Len() = %d, want 50", got)
	}
}

func TestLogbook_EntriesIsACopy(t *testing.T) {
	var lb Logbook
	lb.Append(LogEntry{Message: "first"})

	entries := lb.Entries()
	entries[0].Message = "changed"
	lb.Append(LogEntry{Message: "second"})

	got := lb.Entries()
	if len(got) != 2 || got[0].Message != "first" || got[1].Message != "second" {
		t.Errorf("Entries() = %+v", got)
	}
	if len(entries) != 1 {
		t.Errorf("earlier snapshot changed length: %d", len(entries))
	}
}
