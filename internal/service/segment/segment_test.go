package segment

import (
	"fmt"
	"sync"
	"testing"
)

func TestGenerator_Next(t *testing.T) {
	gen := New()

	tests := []struct {
		session  string
		expected string
	}{
		{"sess-123", "sess-123-seg-1"},
		{"sess-123", "sess-123-seg-2"},
		{"sess-456", "sess-456-seg-1"},
		{"sess-123", "sess-123-seg-3"},
	}

	for _, tt := range tests {
		if got := gen.Next(tt.session); got != tt.expected {
			t.Errorf("expected '%s', got %s", tt.expected, got)
		}
	}
}

func TestGenerator_Forget(t *testing.T) {
	gen := New()

	gen.Next("sess-1")
	gen.Next("sess-1")
	gen.Forget("sess-1")

	if got := gen.Next("sess-1"); got != "sess-1-seg-1" {
		t.Errorf("expected numbering to restart, got %s", got)
	}
}

func TestGenerator_ThreadSafety(t *testing.T) {
	gen := New()
	numGoroutines := 50
	resultsPerGoroutine := 10

	var wg sync.WaitGroup
	results := make(chan string, numGoroutines*resultsPerGoroutine)

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < resultsPerGoroutine; j++ {
				results <- gen.Next("sess-concurrent")
			}
		}()
	}

	wg.Wait()
	close(results)

	seen := make(map[string]bool)
	for seg := range results {
		if seen[seg] {
			t.Errorf("duplicate segment ID generated: %s", seg)
		}
		seen[seg] = true
	}

	expectedCount := numGoroutines * resultsPerGoroutine
	if len(seen) != expectedCount {
		t.Errorf("expected %d unique segment IDs, got %d", expectedCount, len(seen))
	}
	last := fmt.Sprintf("sess-concurrent-seg-%d", expectedCount)
	if !seen[last] {
		t.Errorf("expected %s to be generated", last)
	}
}
