// Package graph provides a directed graph of named nodes used for class and
// property subsumption hierarchies.
package graph

import (
	"sort"
	"sync"
)

// Hierarchy is a directed graph where an edge child -> parent means "child is
// subsumed by parent". Cycles are allowed and denote equivalence.
type Hierarchy struct {
	mu sync.RWMutex
	// parents maps node ID to the IDs it is directly subsumed by.
	parents map[string]map[string]struct{}
	// children is the reverse adjacency of parents.
	children map[string]map[string]struct{}
}

// New creates an empty hierarchy.
func New() *Hierarchy {
	return &Hierarchy{
		parents:  make(map[string]map[string]struct{}),
		children: make(map[string]map[string]struct{}),
	}
}

// AddNode registers a node. Adding an existing node is a no-op.
func (h *Hierarchy) AddNode(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.addNodeLocked(id)
}

func (h *Hierarchy) addNodeLocked(id string) {
	if _, ok := h.parents[id]; !ok {
		h.parents[id] = make(map[string]struct{})
	}
	if _, ok := h.children[id]; !ok {
		h.children[id] = make(map[string]struct{})
	}
}

// AddEdge records child ⊑ parent, registering both nodes. Self edges are ignored.
// Returns true if the edge is new.
func (h *Hierarchy) AddEdge(child, parent string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.addNodeLocked(child)
	h.addNodeLocked(parent)
	if child == parent {
		return false
	}
	if _, ok := h.parents[child][parent]; ok {
		return false
	}
	h.parents[child][parent] = struct{}{}
	h.children[parent][child] = struct{}{}
	return true
}

// Has reports whether id is a node.
func (h *Hierarchy) Has(id string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.parents[id]
	return ok
}

// Size returns the number of nodes.
func (h *Hierarchy) Size() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.parents)
}

// Nodes returns all node IDs, sorted.
func (h *Hierarchy) Nodes() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]string, 0, len(h.parents))
	for id := range h.parents {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Parents returns the direct parents of id, sorted.
func (h *Hierarchy) Parents(id string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return sortedKeys(h.parents[id])
}

// Ancestors returns id and every node reachable from it by following parent
// edges (the reflexive-transitive closure), sorted.
func (h *Hierarchy) Ancestors(id string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return sortedKeys(h.reachLocked(id, h.parents))
}

// Descendants returns id and every node that reaches it, sorted.
func (h *Hierarchy) Descendants(id string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return sortedKeys(h.reachLocked(id, h.children))
}

// Subsumes reports whether parent is an ancestor of child.
func (h *Hierarchy) Subsumes(parent, child string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.reachLocked(child, h.parents)[parent]
	return ok
}

func (h *Hierarchy) reachLocked(start string, adj map[string]map[string]struct{}) map[string]struct{} {
	seen := map[string]struct{}{start: {}}
	stack := []string{start}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for next := range adj[id] {
			if _, ok := seen[next]; ok {
				continue
			}
			seen[next] = struct{}{}
			stack = append(stack, next)
		}
	}
	return seen
}

// HasCycle returns true if some node is (transitively) its own parent.
// Uses depth-first search with coloring to detect back edges.
func (h *Hierarchy) HasCycle() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	// Color states: 0 = white (unvisited), 1 = gray (in progress), 2 = black (done).
	colors := make(map[string]int, len(h.parents))

	var visit func(id string) bool
	visit = func(id string) bool {
		colors[id] = 1
		for next := range h.parents[id] {
			switch colors[next] {
			case 1:
				return true
			case 0:
				if visit(next) {
					return true
				}
			}
		}
		colors[id] = 2
		return false
	}

	for id := range h.parents {
		if colors[id] == 0 && visit(id) {
			return true
		}
	}
	return false
}

// Equivalents returns the nodes that are both ancestors and descendants of
// id, i.e. its equivalence class, sorted and including id.
func (h *Hierarchy) Equivalents(id string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	up := h.reachLocked(id, h.parents)
	down := h.reachLocked(id, h.children)
	out := make(map[string]struct{})
	for n := range up {
		if _, ok := down[n]; ok {
			out[n] = struct{}{}
		}
	}
	return sortedKeys(out)
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
