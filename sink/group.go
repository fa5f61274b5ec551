package sink

import "sync"

// Group elects which of its workers advances the shared engine.
type Group struct {
	mu      sync.Mutex
	source  Source
	workers []*Worker
}

// NewGroup creates an empty group for source.
func NewGroup(source Source) *Group {
	return &Group{source: source}
}

func (g *Group) join(w *Worker) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.workers = append(g.workers, w)
}

func (g *Group) leave(w *Worker) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i, other := range g.workers {
		if other == w {
			g.workers = append(g.workers[:i], g.workers[i+1:]...)
			return
		}
	}
}

// leader must be called with mu held.
func (g *Group) leader() *Worker {
	if len(g.workers) == 0 {
		return nil
	}
	return g.workers[0]
}

// Batch returns the sentences w should send this cycle. The earliest
// registered worker advances the engine; the rest read the last batch.
func (g *Group) Batch(w *Worker) []string {
	g.mu.Lock()
	isLeader := g.leader() == w
	g.mu.Unlock()

	if isLeader {
		return g.source.Advance()
	}
	return g.source.Current()
}

// Len returns the number of active workers.
func (g *Group) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.workers)
}

// Names returns the transmitter names of the active workers in
// registration order.
func (g *Group) Names() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	names := make([]string, len(g.workers))
	for i, w := range g.workers {
		names[i] = w.tx.Name()
	}
	return names
}
