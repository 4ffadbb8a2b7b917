// Package segment numbers the finalized transcript segments of voice sessions.
package segment

import (
	"fmt"
	"sync"
)

// Generator hands out segment IDs of the form <session>-seg-N, numbered from
// 1 within each session.
type Generator struct {
	mu       sync.Mutex
	counters map[string]uint64
}

func New() *Generator {
	return &Generator{counters: make(map[string]uint64)}
}

func (g *Generator) Next(sessionId string) string {
	g.mu.Lock()
	g.counters[sessionId]++
	n := g.counters[sessionId]
	g.mu.Unlock()
	return fmt.Sprintf("%s-seg-%d", sessionId, n)
}

// Forget drops the counter of a closed session.
func (g *Generator) Forget(sessionId string) {
	g.mu.Lock()
	delete(g.counters, sessionId)
	g.mu.Unlock()
}
