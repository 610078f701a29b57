package graph

import (
	"fmt"
	"slices"
	"strings"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// CycleError reports a graph that cannot be put in dependency order.
type CycleError struct {
	// Cycles lists the members of every dependency cycle found, each sorted by name.
	Cycles [][]string
	// Blocked lists every node that could not be placed, sorted by name.
	Blocked []string
}

// Error implements the error interface.
func (e *CycleError) Error() string {
	if len(e.Cycles) == 0 {
		return fmt.Sprintf("graph: cannot order nodes %v", e.Blocked)
	}
	parts := make([]string, len(e.Cycles))
	for i, c := range e.Cycles {
		parts[i] = "[" + strings.Join(c, " ") + "]"
	}
	return fmt.Sprintf("graph: dependency cycle among %s (%d nodes blocked)", strings.Join(parts, ", "), len(e.Blocked))
}

// UnreachableError reports nodes whose producers are never computed because they cannot be
// reached from the roots of a DependencyList.
type UnreachableError struct {
	Blocked   []string
	Producers []string
}

// Error implements the error interface.
func (e *UnreachableError) Error() string {
	return fmt.Sprintf("graph: nodes %v depend on %v, which are not reachable from the roots", e.Blocked, e.Producers)
}

// newCycleError collects the nodes not marked done and finds the cycles among them.
func newCycleError[T Node[T]](nodes []T, done map[T]bool) *CycleError {
	var pending []T
	for _, n := range nodes {
		if !done[n] {
			pending = append(pending, n)
		}
	}
	err := &CycleError{Blocked: names(pending)}
	slices.Sort(err.Blocked)

	ids := make(map[T]int64, len(pending))
	dg := simple.NewDirectedGraph()
	for i, n := range pending {
		ids[n] = int64(i)
		dg.AddNode(simple.Node(i))
	}
	for _, n := range pending {
		for _, consumer := range n.Links().outgoing {
			to, ok := ids[consumer]
			if !ok {
				continue
			}
			if to == ids[n] {
				// simple graphs reject self edges; a self loop is a cycle of one.
				err.Cycles = append(err.Cycles, []string{n.String()})
				continue
			}
			dg.SetEdge(dg.NewEdge(simple.Node(ids[n]), simple.Node(to)))
		}
	}
	for _, component := range topo.TarjanSCC(dg) {
		if len(component) < 2 {
			continue
		}
		members := make([]string, len(component))
		for i, node := range component {
			members[i] = pending[node.ID()].String()
		}
		slices.Sort(members)
		err.Cycles = append(err.Cycles, members)
	}
	slices.SortFunc(err.Cycles, func(a, b []string) int { return strings.Compare(a[0], b[0]) })
	return err
}

func newUnreachableError[T Node[T]](reachable []T, done map[T]bool) *UnreachableError {
	inReach := make(map[T]bool, len(reachable))
	for _, n := range reachable {
		inReach[n] = true
	}
	err := &UnreachableError{}
	seen := make(map[string]bool)
	for _, n := range reachable {
		if done[n] {
			continue
		}
		err.Blocked = append(err.Blocked, n.String())
		for _, producer := range n.Links().incoming {
			if !inReach[producer] && !seen[producer.String()] {
				seen[producer.String()] = true
				err.Producers = append(err.Producers, producer.String())
			}
		}
	}
	slices.Sort(err.Blocked)
	slices.Sort(err.Producers)
	return err
}

func names[T Node[T]](nodes []T) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.String()
	}
	return out
}
