package graph

// DependencyList returns the nodes reachable from roots in execution order: every node appears
// after all of its producers.
//
// Unlike Graph.SortNodes it does not need the full node set, it discovers nodes by following
// outgoing edges from the roots. A reachable node that can never be placed is a structural
// error: DependencyList panics with a *CycleError if a cycle blocks it, or with an
// *UnreachableError if one of its producers cannot be reached from the roots.
func DependencyList[T Node[T]](roots ...T) []T {
	reachable := reachableFrom(roots)
	w := newWalker[T](len(reachable))
	for _, root := range roots {
		w.visit(root)
	}
	if len(w.order) == len(reachable) {
		return w.order
	}

	if err := newCycleError(reachable, w.done); len(err.Cycles) > 0 {
		panic(err)
	}
	panic(newUnreachableError(reachable, w.done))
}

// reachableFrom lists the nodes reachable from roots, roots included, in discovery order.
func reachableFrom[T Node[T]](roots []T) []T {
	seen := make(map[T]bool)
	var nodes []T
	stack := append([]T(nil), roots...)
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[n] {
			continue
		}
		seen[n] = true
		nodes = append(nodes, n)
		out := n.Links().outgoing
		for i := len(out) - 1; i >= 0; i-- {
			stack = append(stack, out[i])
		}
	}
	return nodes
}
