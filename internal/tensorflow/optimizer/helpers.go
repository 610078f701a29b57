package optimizer

import (
	"slices"

	"github.com/xmartlabs/Bender-sub000/internal/graph"
	"github.com/xmartlabs/Bender-sub000/internal/tensorflow"
)

// nodesOf returns a snapshot of the nodes whose op is one of ops. Passes iterate snapshots
// because rewrites change edge slices under them.
func nodesOf(g *tensorflow.Graph, ops ...string) []*tensorflow.Node {
	var out []*tensorflow.Node
	for _, n := range g.Nodes {
		if n.IsOp(ops...) {
			out = append(out, n)
		}
	}
	return out
}

// otherInput returns the producer of n that is not skip. n must have exactly two producers.
func otherInput(n, skip *tensorflow.Node) *tensorflow.Node {
	in := n.Incoming()
	tensorflow.Expect(len(in) == 2, n, "expected 2 inputs, found %d", len(in))
	if in[0] == skip {
		return in[1]
	}
	tensorflow.Expect(in[1] == skip, n, "%s is not an input", skip)
	return in[0]
}

// singleConsumer returns the only consumer of n, or nil.
func singleConsumer(n *tensorflow.Node) *tensorflow.Node {
	if out := n.Outgoing(); len(out) == 1 {
		return out[0]
	}
	return nil
}

// parameterOf resolves the producer p of consumer to a parameter node, looking through
// Identity reads. Bypassed reads are replaced by their source on consumer. Returns nil if p
// does not lead to a parameter.
func parameterOf(consumer, p *tensorflow.Node) *tensorflow.Node {
	for p.IsOp(tensorflow.OpIdentity) && len(p.Incoming()) == 1 {
		src := p.Incoming()[0]
		if !tensorflow.IsParameter(src) && !src.IsOp(tensorflow.OpIdentity) {
			return nil
		}
		graph.Replace(consumer, p, src)
		p = src
	}
	if tensorflow.IsParameter(p) {
		return p
	}
	return nil
}

// bypass moves every consumer of from onto to, keeping input positions, then strips from.
func bypass(from, to *tensorflow.Node) {
	for _, consumer := range slices.Clone(from.Outgoing()) {
		graph.Replace(consumer, from, to)
	}
	graph.Strip(from)
}

// fuseActivation folds a trailing single-consumer activation into n.
func fuseActivation(n *tensorflow.Node) {
	act := singleConsumer(n)
	if act == nil || !act.IsOp(tensorflow.Activations...) || len(act.Incoming()) != 1 {
		return
	}
	n.SetAttr(tensorflow.AttrActivation, tensorflow.StringAttr(act.Op()))
	bypass(act, n)
}
