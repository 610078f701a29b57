// Package graph provides the directed-graph primitives shared by the import pipeline and the
// layer scheduler.
//
// Any vertex kind takes part in a graph by owning a [Links] value and implementing [Node].
// Edges are always added and removed as a pair: if A is in B's incoming set then B is in A's
// outgoing set, and vice versa.
//
// Key operations:
//   - Connect / Disconnect: add or remove one edge pair
//   - Strip: excise a node without rewiring its neighbours
//   - Remove: excise a node, connecting each former producer to each former consumer
//   - Graph.SortNodes: topological order over a full node set, fatal on cycles
//   - DependencyList: execution order discovered from explicit roots, fatal on cycles
//
// Structural failures (cycles, unreachable dependencies) are configuration errors, not
// recoverable conditions: they panic with a *CycleError or *UnreachableError. Public entry
// points of the module recover them into returned errors.
package graph
