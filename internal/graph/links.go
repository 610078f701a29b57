package graph

// Node is implemented by every vertex kind that can be linked into a graph.
//
// Same reports structural equality as defined by the vertex kind; it is what makes
// Connect idempotent. String names the vertex in diagnostics.
type Node[T any] interface {
	comparable
	Links() *Links[T]
	Same(other T) bool
	String() string
}

// Links holds the ordered incoming and outgoing edge sets of a vertex.
// The zero value is an edgeless vertex.
type Links[T any] struct {
	incoming []T
	outgoing []T
}

// Incoming returns the producers this vertex depends on, in edge order.
// The returned slice must not be modified.
func (l *Links[T]) Incoming() []T {
	return l.incoming
}

// Outgoing returns the consumers of this vertex, in edge order.
// The returned slice must not be modified.
func (l *Links[T]) Outgoing() []T {
	return l.outgoing
}

// Connect adds the edge from -> to.
//
// It is a no-op if an equal producer is already among to's incoming edges.
func Connect[T Node[T]](from, to T) {
	in := to.Links()
	if indexOf(in.incoming, from) >= 0 {
		return
	}
	in.incoming = append(in.incoming, from)
	out := from.Links()
	if indexOf(out.outgoing, to) < 0 {
		out.outgoing = append(out.outgoing, to)
	}
}

// Disconnect removes the edge from -> to, if present.
func Disconnect[T Node[T]](from, to T) {
	in := to.Links()
	in.incoming = without(in.incoming, from)
	out := from.Links()
	out.outgoing = without(out.outgoing, to)
}

// Replace swaps the producer old of consumer for replacement, keeping its position among
// consumer's incoming edges.
func Replace[T Node[T]](consumer, old, replacement T) {
	in := consumer.Links()
	idx := indexOf(in.incoming, old)
	if idx < 0 {
		Connect(replacement, consumer)
		return
	}
	old.Links().outgoing = without(old.Links().outgoing, consumer)
	if indexOf(in.incoming, replacement) >= 0 {
		in.incoming = append(in.incoming[:idx:idx], in.incoming[idx+1:]...)
		return
	}
	in.incoming[idx] = replacement
	out := replacement.Links()
	if indexOf(out.outgoing, consumer) < 0 {
		out.outgoing = append(out.outgoing, consumer)
	}
}

// Strip excises n from the graph. Every neighbour forgets n, n forgets every neighbour,
// and nothing is rewired: a path that ran through n is lost.
func Strip[T Node[T]](n T) {
	l := n.Links()
	for _, consumer := range l.outgoing {
		cl := consumer.Links()
		cl.incoming = without(cl.incoming, n)
	}
	for _, producer := range l.incoming {
		pl := producer.Links()
		pl.outgoing = without(pl.outgoing, n)
	}
	l.incoming = nil
	l.outgoing = nil
}

// Remove excises n like Strip, but first connects every producer of n directly to every
// consumer of n, so the path through n survives. The producers take n's position among each
// consumer's incoming edges.
func Remove[T Node[T]](n T) {
	l := n.Links()
	producers := append([]T(nil), l.incoming...)
	consumers := append([]T(nil), l.outgoing...)
	positions := make([]int, len(consumers))
	for i, consumer := range consumers {
		positions[i] = indexOf(consumer.Links().incoming, n)
	}
	Strip(n)
	for i, consumer := range consumers {
		insertAt(consumer, positions[i], producers)
	}
}

// IsLonely reports whether n has no edges at all.
func IsLonely[T Node[T]](n T) bool {
	l := n.Links()
	return len(l.incoming) == 0 && len(l.outgoing) == 0
}

// insertAt connects each producer to consumer, inserting the new incoming edges at pos.
func insertAt[T Node[T]](consumer T, pos int, producers []T) {
	cl := consumer.Links()
	for _, producer := range producers {
		if indexOf(cl.incoming, producer) >= 0 {
			continue
		}
		if pos < 0 || pos > len(cl.incoming) {
			pos = len(cl.incoming)
		}
		cl.incoming = append(cl.incoming, producer)
		copy(cl.incoming[pos+1:], cl.incoming[pos:])
		cl.incoming[pos] = producer
		pos++
		pl := producer.Links()
		if indexOf(pl.outgoing, consumer) < 0 {
			pl.outgoing = append(pl.outgoing, consumer)
		}
	}
}

func indexOf[T Node[T]](list []T, n T) int {
	for i, x := range list {
		if x.Same(n) {
			return i
		}
	}
	return -1
}

func without[T Node[T]](list []T, n T) []T {
	out := list[:0]
	for _, x := range list {
		if !x.Same(n) {
			out = append(out, x)
		}
	}
	clear(list[len(out):])
	return out
}
