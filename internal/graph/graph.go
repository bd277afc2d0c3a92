// Package graph provides a dependency graph over the sub-tasks of a plan.
package graph

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ShayCichocki/waver/pkg/models"
)

var (
	// ErrCycleDetected indicates a circular dependency was found in the task graph.
	ErrCycleDetected = errors.New("circular dependency detected")
	// ErrUnknownDependency indicates a dependency id that names no task in the graph.
	ErrUnknownDependency = errors.New("unknown dependency")
	// ErrDuplicateID indicates two tasks share an id.
	ErrDuplicateID = errors.New("duplicate task id")
)

// DependencyGraph is a directed graph of sub-task dependencies.
// Tasks are nodes, and edges represent "blocked by" relationships.
// Construction never fails; Validate reports dangling references and cycles
// so callers can decide whether to reject the plan or let it stall.
type DependencyGraph struct {
	mu sync.RWMutex
	// nodes maps task ID to the task itself.
	nodes map[string]*models.SubTask
	// order is the insertion order of task IDs.
	order []string
	// edges maps task ID to IDs of tasks it depends on (is blocked by).
	edges map[string][]string
	// done tracks tasks that reached a terminal state.
	done map[string]bool
	// duplicates records ids seen more than once during construction.
	duplicates []string

	logger *slog.Logger
}

// Option configures a DependencyGraph.
type Option func(*DependencyGraph)

// WithLogger sets the logger used for debug records.
func WithLogger(l *slog.Logger) Option {
	return func(g *DependencyGraph) {
		if l != nil {
			g.logger = l
		}
	}
}

// New builds a graph from tasks, in order. The first task with an id wins;
// later repeats are ignored and reported by Validate.
func New(tasks []*models.SubTask, opts ...Option) *DependencyGraph {
	g := &DependencyGraph{
		nodes:  make(map[string]*models.SubTask, len(tasks)),
		edges:  make(map[string][]string, len(tasks)),
		done:   make(map[string]bool, len(tasks)),
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(g)
	}

	for _, task := range tasks {
		if _, exists := g.nodes[task.ID]; exists {
			g.duplicates = append(g.duplicates, task.ID)
			continue
		}
		g.order = append(g.order, task.ID)
		g.nodes[task.ID] = task
		g.edges[task.ID] = append([]string(nil), task.Dependencies...)
	}
	g.logger.Debug("built dependency graph", "tasks", len(g.order), "edges", g.edgeCount())
	return g
}

func (g *DependencyGraph) edgeCount() int {
	n := 0
	for _, deps := range g.edges {
		n += len(deps)
	}
	return n
}

// Validate returns an error wrapping ErrDuplicateID, ErrUnknownDependency
// or ErrCycleDetected when the graph cannot be fully executed.
func (g *DependencyGraph) Validate() error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if len(g.duplicates) > 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateID, g.duplicates[0])
	}
	for _, id := range g.order {
		for _, dep := range g.edges[id] {
			if _, exists := g.nodes[dep]; !exists {
				return fmt.Errorf("task %s depends on %s: %w", id, dep, ErrUnknownDependency)
			}
		}
	}
	if g.hasCycleLocked() {
		return ErrCycleDetected
	}
	return nil
}

// HasCycle returns true if the graph contains a circular dependency.
func (g *DependencyGraph) HasCycle() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.hasCycleLocked()
}

// hasCycleLocked runs a colored depth-first search; the lock must be held.
func (g *DependencyGraph) hasCycleLocked() bool {
	// 0 = unvisited, 1 = in progress, 2 = done.
	colors := make(map[string]int, len(g.nodes))

	var visit func(id string) bool
	visit = func(id string) bool {
		colors[id] = 1
		for _, dep := range g.edges[id] {
			if _, exists := g.nodes[dep]; !exists {
				continue
			}
			switch colors[dep] {
			case 1:
				return true
			case 0:
				if visit(dep) {
					return true
				}
			}
		}
		colors[id] = 2
		return false
	}

	for _, id := range g.order {
		if colors[id] == 0 && visit(id) {
			return true
		}
	}
	return false
}

// TopologicalSort returns task IDs so that every task follows its
// dependencies. Among independent tasks insertion order is kept.
// Dangling dependencies are ignored.
func (g *DependencyGraph) TopologicalSort() ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.hasCycleLocked() {
		return nil, ErrCycleDetected
	}

	placed := make(map[string]bool, len(g.order))
	result := make([]string, 0, len(g.order))
	for len(result) < len(g.order) {
		for _, id := range g.order {
			if placed[id] {
				continue
			}
			ready := true
			for _, dep := range g.edges[id] {
				if _, exists := g.nodes[dep]; exists && !placed[dep] {
					ready = false
					break
				}
			}
			if ready {
				placed[id] = true
				result = append(result, id)
			}
		}
	}
	return result, nil
}

// Ready returns, in insertion order, the tasks not yet done whose
// dependencies are all done.
func (g *DependencyGraph) Ready() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var ready []string
	for _, id := range g.order {
		if g.done[id] {
			continue
		}
		if g.satisfiedLocked(id) {
			ready = append(ready, id)
		}
	}
	return ready
}

func (g *DependencyGraph) satisfiedLocked(id string) bool {
	for _, dep := range g.edges[id] {
		if !g.done[dep] {
			return false
		}
	}
	return true
}

// MarkDone records that a task reached a terminal state. Tasks depending on
// it may become ready.
func (g *DependencyGraph) MarkDone(taskID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.done[taskID] = true
	g.logger.Debug("task done", "task", taskID, "done", len(g.done), "total", len(g.order))
}

// IsDone reports whether MarkDone was called for taskID.
func (g *DependencyGraph) IsDone(taskID string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.done[taskID]
}

// Pending returns the tasks not yet done, in insertion order.
func (g *DependencyGraph) Pending() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []string
	for _, id := range g.order {
		if !g.done[id] {
			out = append(out, id)
		}
	}
	return out
}

// Task returns the task for a given ID, or nil if not found.
func (g *DependencyGraph) Task(taskID string) *models.SubTask {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodes[taskID]
}

// Size returns the number of tasks in the graph.
func (g *DependencyGraph) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.order)
}

// Dependencies returns the IDs of tasks that the given task depends on.
func (g *DependencyGraph) Dependencies(taskID string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string(nil), g.edges[taskID]...)
}

// MissingDependencies returns the dependency IDs of taskID that name no task.
func (g *DependencyGraph) MissingDependencies(taskID string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []string
	for _, dep := range g.edges[taskID] {
		if _, exists := g.nodes[dep]; !exists {
			out = append(out, dep)
		}
	}
	return out
}

// Dependents returns the IDs of tasks that directly depend on the given task,
// in insertion order.
func (g *DependencyGraph) Dependents(taskID string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.dependentsLocked(taskID)
}

func (g *DependencyGraph) dependentsLocked(taskID string) []string {
	var dependents []string
	for _, id := range g.order {
		for _, dep := range g.edges[id] {
			if dep == taskID {
				dependents = append(dependents, id)
				break
			}
		}
	}
	return dependents
}

// Descendants returns every task that transitively depends on the given
// task, in breadth-first order.
func (g *DependencyGraph) Descendants(taskID string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	seen := map[string]bool{taskID: true}
	var out []string
	queue := []string{taskID}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, d := range g.dependentsLocked(cur) {
			if seen[d] {
				continue
			}
			seen[d] = true
			out = append(out, d)
			queue = append(queue, d)
		}
	}
	return out
}
