package graph

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/gomlx/exceptions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testNode struct {
	name  string
	links Links[*testNode]
}

func (n *testNode) Links() *Links[*testNode] { return &n.links }
func (n *testNode) Same(o *testNode) bool    { return n == o }
func (n *testNode) String() string           { return n.name }

func nodes(names ...string) []*testNode {
	out := make([]*testNode, len(names))
	for i, name := range names {
		out[i] = &testNode{name: name}
	}
	return out
}

func nameList(list []*testNode) []string {
	out := make([]string, len(list))
	for i, n := range list {
		out[i] = n.name
	}
	return out
}

// requirePaired checks that every edge is recorded on both of its ends.
func requirePaired(t *testing.T, all []*testNode) {
	t.Helper()
	for _, a := range all {
		for _, b := range a.links.Outgoing() {
			assert.Contains(t, b.links.Incoming(), a, "%s -> %s missing on the consumer side", a, b)
		}
		for _, b := range a.links.Incoming() {
			assert.Contains(t, b.links.Outgoing(), a, "%s -> %s missing on the producer side", b, a)
		}
	}
}

// requireOrdered checks that every node comes after all of its producers.
func requireOrdered(t *testing.T, order []*testNode) {
	t.Helper()
	pos := make(map[*testNode]int, len(order))
	for i, n := range order {
		pos[n] = i
	}
	for i, n := range order {
		for _, producer := range n.links.Incoming() {
			p, ok := pos[producer]
			require.True(t, ok, "producer %s of %s missing from order", producer, n)
			assert.Less(t, p, i, "%s must come before %s", producer, n)
		}
	}
}

func TestConnectIsIdempotent(t *testing.T) {
	ns := nodes("a", "b")
	Connect(ns[0], ns[1])
	Connect(ns[0], ns[1])

	assert.Len(t, ns[1].links.Incoming(), 1)
	assert.Len(t, ns[0].links.Outgoing(), 1)
	requirePaired(t, ns)
}

func TestStripVersusRemove(t *testing.T) {
	t.Run("strip", func(t *testing.T) {
		ns := nodes("a", "b", "c")
		a, b, c := ns[0], ns[1], ns[2]
		Connect(a, b)
		Connect(b, c)

		Strip(b)

		assert.True(t, IsLonely(b))
		assert.Empty(t, a.links.Outgoing())
		assert.Empty(t, c.links.Incoming())
		requirePaired(t, ns)
	})

	t.Run("remove", func(t *testing.T) {
		ns := nodes("a", "b", "c")
		a, b, c := ns[0], ns[1], ns[2]
		Connect(a, b)
		Connect(b, c)

		Remove(b)

		assert.True(t, IsLonely(b))
		assert.Equal(t, []*testNode{c}, a.links.Outgoing())
		assert.Equal(t, []*testNode{a}, c.links.Incoming())
		requirePaired(t, ns)
	})
}

func TestRemoveKeepsInputPosition(t *testing.T) {
	ns := nodes("x", "identity", "y", "concat")
	x, identity, y, concat := ns[0], ns[1], ns[2], ns[3]
	Connect(x, identity)
	Connect(identity, concat)
	Connect(y, concat)

	Remove(identity)

	assert.Equal(t, []string{"x", "y"}, nameList(concat.links.Incoming()))
	requirePaired(t, ns)
}

func TestReplace(t *testing.T) {
	ns := nodes("read", "data", "matmul", "const")
	read, data, matmul, constant := ns[0], ns[1], ns[2], ns[3]
	Connect(data, matmul)
	Connect(read, matmul)

	Replace(matmul, read, constant)

	assert.Equal(t, []string{"data", "const"}, nameList(matmul.links.Incoming()))
	assert.Empty(t, read.links.Outgoing())
	requirePaired(t, ns)
}

func TestEdgePairingUnderRandomEdits(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	ns := nodes("n0", "n1", "n2", "n3", "n4", "n5", "n6", "n7")
	for step := 0; step < 500; step++ {
		a, b := ns[rng.IntN(len(ns))], ns[rng.IntN(len(ns))]
		switch rng.IntN(5) {
		case 0, 1:
			if a != b {
				Connect(a, b)
			}
		case 2:
			Disconnect(a, b)
		case 3:
			Strip(a)
		case 4:
			Remove(a)
		}
		requirePaired(t, ns)
	}
}

func TestSortNodes(t *testing.T) {
	// input -> conv -> add
	//       -> skip ----^
	// add -> softmax, declared out of order.
	ns := nodes("softmax", "add", "skip", "conv", "input")
	softmax, add, skip, conv, input := ns[0], ns[1], ns[2], ns[3], ns[4]
	Connect(input, conv)
	Connect(input, skip)
	Connect(conv, add)
	Connect(skip, add)
	Connect(add, softmax)

	g := New(ns...)
	g.SortNodes()

	require.Len(t, g.Nodes, 5)
	assert.Equal(t, input, g.Nodes[0])
	assert.Equal(t, softmax, g.Nodes[4])
	requireOrdered(t, g.Nodes)
}

func TestSortNodesCycleIsFatal(t *testing.T) {
	ns := nodes("input", "a", "b", "c")
	input, a, b, c := ns[0], ns[1], ns[2], ns[3]
	Connect(input, a)
	Connect(a, b)
	Connect(b, c)
	Connect(c, a)

	err := exceptions.TryCatch[error](func() { New(ns...).SortNodes() })
	require.Error(t, err)
	var cycle *CycleError
	require.True(t, errors.As(err, &cycle))
	assert.Equal(t, [][]string{{"a", "b", "c"}}, cycle.Cycles)
	assert.Equal(t, []string{"a", "b", "c"}, cycle.Blocked)
}

func TestRemoveLonely(t *testing.T) {
	ns := nodes("a", "b", "lonely")
	Connect(ns[0], ns[1])
	g := New(ns...)

	g.RemoveLonely()

	assert.Equal(t, []string{"a", "b"}, nameList(g.Nodes))
}

func TestDependencyList(t *testing.T) {
	ns := nodes("start", "left", "right", "join", "tail")
	start, left, right, join, tail := ns[0], ns[1], ns[2], ns[3], ns[4]
	Connect(start, left)
	Connect(start, right)
	Connect(right, join)
	Connect(left, join)
	Connect(join, tail)

	order := DependencyList(start)

	assert.Equal(t, []string{"start", "left", "right", "join", "tail"}, nameList(order))
	requireOrdered(t, order)
}

func TestDependencyListFailsLikeSortNodes(t *testing.T) {
	t.Run("cycle", func(t *testing.T) {
		ns := nodes("start", "a", "b")
		start, a, b := ns[0], ns[1], ns[2]
		Connect(start, a)
		Connect(a, b)
		Connect(b, a)

		err := exceptions.TryCatch[error](func() { DependencyList(start) })
		var cycle *CycleError
		require.True(t, errors.As(err, &cycle), "got %v", err)
		assert.Equal(t, [][]string{{"a", "b"}}, cycle.Cycles)
	})

	t.Run("self loop", func(t *testing.T) {
		ns := nodes("start", "a")
		start, a := ns[0], ns[1]
		Connect(start, a)
		Connect(a, a)

		err := exceptions.TryCatch[error](func() { DependencyList(start) })
		var cycle *CycleError
		require.True(t, errors.As(err, &cycle), "got %v", err)
		assert.Equal(t, [][]string{{"a"}}, cycle.Cycles)
	})

	t.Run("unreachable producer", func(t *testing.T) {
		ns := nodes("start", "orphan", "add")
		start, orphan, add := ns[0], ns[1], ns[2]
		Connect(start, add)
		Connect(orphan, add)

		err := exceptions.TryCatch[error](func() { DependencyList(start) })
		var unreachable *UnreachableError
		require.True(t, errors.As(err, &unreachable), "got %v", err)
		assert.Equal(t, []string{"add"}, unreachable.Blocked)
		assert.Equal(t, []string{"orphan"}, unreachable.Producers)
	})
}
