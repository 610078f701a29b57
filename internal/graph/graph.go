package graph

// Graph owns an ordered collection of nodes.
type Graph[T Node[T]] struct {
	Nodes []T
}

// New creates a graph over nodes, keeping their order.
func New[T Node[T]](nodes ...T) *Graph[T] {
	return &Graph[T]{Nodes: nodes}
}

// Len returns the number of nodes.
func (g *Graph[T]) Len() int {
	return len(g.Nodes)
}

// Find returns the first node whose String() is name.
func (g *Graph[T]) Find(name string) (T, bool) {
	for _, n := range g.Nodes {
		if n.String() == name {
			return n, true
		}
	}
	var zero T
	return zero, false
}

// SortNodes reorders the nodes so every node comes after all of its producers.
//
// Roots (nodes without incoming edges) are visited in their current order, consumers in
// edge order, so the result is deterministic for a deterministic input. A graph containing a
// cycle cannot be ordered: SortNodes panics with a *CycleError.
func (g *Graph[T]) SortNodes() {
	w := newWalker[T](len(g.Nodes))
	for _, n := range g.Nodes {
		if len(n.Links().incoming) == 0 {
			w.visit(n)
		}
	}
	if len(w.order) != len(g.Nodes) {
		panic(newCycleError(g.Nodes, w.done))
	}
	g.Nodes = w.order
}

// RemoveLonely drops every node that has neither incoming nor outgoing edges.
func (g *Graph[T]) RemoveLonely() {
	kept := g.Nodes[:0]
	for _, n := range g.Nodes {
		if !IsLonely(n) {
			kept = append(kept, n)
		}
	}
	clear(g.Nodes[len(kept):])
	g.Nodes = kept
}

// walker implements the "eligible once every producer is placed" traversal shared by
// SortNodes and DependencyList.
type walker[T Node[T]] struct {
	done  map[T]bool
	order []T
}

func newWalker[T Node[T]](capacity int) *walker[T] {
	return &walker[T]{
		done:  make(map[T]bool, capacity),
		order: make([]T, 0, capacity),
	}
}

func (w *walker[T]) visit(n T) {
	if w.done[n] {
		return
	}
	for _, producer := range n.Links().incoming {
		if !w.done[producer] {
			return
		}
	}
	w.done[n] = true
	w.order = append(w.order, n)
	for _, consumer := range n.Links().outgoing {
		w.visit(consumer)
	}
}
