package optimizer

import (
	"regexp"
	"slices"

	"k8s.io/klog/v2"

	"github.com/xmartlabs/Bender-sub000/internal/graph"
	"github.com/xmartlabs/Bender-sub000/internal/tensorflow"
)

// Subgraph is a group of nodes sharing a scope, as matched by a SubgraphDeleter.
type Subgraph struct {
	Scope   string
	Members []*tensorflow.Node
	inside  map[*tensorflow.Node]bool
}

// Contains reports whether n belongs to the subgraph.
func (s *Subgraph) Contains(n *tensorflow.Node) bool { return s.inside[n] }

// Sources returns the distinct external producers feeding the subgraph.
func (s *Subgraph) Sources() []*tensorflow.Node {
	var out []*tensorflow.Node
	for _, m := range s.Members {
		for _, in := range m.Incoming() {
			if !s.inside[in] && !slices.Contains(out, in) {
				out = append(out, in)
			}
		}
	}
	return out
}

// Exits returns the members that have external consumers.
func (s *Subgraph) Exits() []*tensorflow.Node {
	var out []*tensorflow.Node
	for _, m := range s.Members {
		if slices.ContainsFunc(m.Outgoing(), func(c *tensorflow.Node) bool { return !s.inside[c] }) {
			out = append(out, m)
		}
	}
	return out
}

// Policy decides how a matched subgraph is detached. The deleter strips every member
// afterwards, so a policy only has to rewire what must survive.
type Policy func(s *Subgraph)

// Discard keeps nothing: consumers of the subgraph lose those inputs.
func Discard(*Subgraph) {}

// RewireSingle connects the only external source to the consumers of the only exit, when
// the subgraph has exactly one of each. Otherwise the subgraph is discarded.
func RewireSingle(s *Subgraph) {
	sources, exits := s.Sources(), s.Exits()
	if len(sources) != 1 || len(exits) != 1 {
		klog.V(1).Infof("optimizer: %s has %d sources and %d exits, discarded", s.Scope, len(sources), len(exits))
		return
	}
	rewire(s, exits[0], sources[0])
}

// RewireDropout connects the tensor being dropped out to the consumers of the final multiply,
// making the subgraph an identity as it is at inference time. The tensor is the one whose
// shape the subgraph samples.
func RewireDropout(s *Subgraph) {
	var shape, mul *tensorflow.Node
	for _, m := range s.Exits() {
		if m.IsOp(tensorflow.OpMul) {
			mul = m
		}
	}
	for _, m := range s.Members {
		if m.IsOp(tensorflow.OpShape) {
			shape = m
		}
	}
	tensorflow.Expect(mul != nil, nil, "dropout %s: no final multiply", s.Scope)
	tensorflow.Expect(shape != nil && len(shape.Incoming()) == 1, shape, "dropout %s: expected a Shape of the input", s.Scope)
	input := shape.Incoming()[0]
	tensorflow.Expect(!s.Contains(input), shape, "dropout %s: input is inside the scope", s.Scope)
	rewire(s, mul, input)
}

func rewire(s *Subgraph, exit, source *tensorflow.Node) {
	for _, consumer := range slices.Clone(exit.Outgoing()) {
		if !s.Contains(consumer) {
			graph.Replace(consumer, exit, source)
		}
	}
}

// SubgraphDeleter removes every subgraph whose node names match Scope. The first capture
// group of Scope names the subgraph, so repeated scopes ("dropout", "dropout_1") are handled
// independently.
type SubgraphDeleter struct {
	Label  string
	Scope  *regexp.Regexp
	Policy Policy
}

// DropoutDeleter removes dropout, keeping the identity path.
func DropoutDeleter() *SubgraphDeleter {
	return &SubgraphDeleter{Label: "Dropout", Scope: regexp.MustCompile(`^(.*dropout[^/]*)/`), Policy: RewireDropout}
}

// SaveDeleter removes save/restore plumbing.
func SaveDeleter() *SubgraphDeleter {
	return &SubgraphDeleter{Label: "Save", Scope: regexp.MustCompile(`^(save[^/]*)/`), Policy: Discard}
}

// RegularizerDeleter removes weight regularization terms.
func RegularizerDeleter() *SubgraphDeleter {
	return &SubgraphDeleter{Label: "Regularizer", Scope: regexp.MustCompile(`(?i)^(.*regularizer[^/]*)/`), Policy: Discard}
}

// InitializerDeleter removes variable initializers.
func InitializerDeleter() *SubgraphDeleter {
	return &SubgraphDeleter{Label: "Initializer", Scope: regexp.MustCompile(`(?i)^(.*initializer[^/]*)/`), Policy: Discard}
}

// Name implements Pass.
func (d *SubgraphDeleter) Name() string { return d.Label + "Deleter" }

// Optimize implements Pass.
func (d *SubgraphDeleter) Optimize(g *tensorflow.Graph) {
	for _, s := range d.match(g) {
		d.Policy(s)
		for _, m := range s.Members {
			graph.Strip(m)
		}
		klog.V(1).Infof("optimizer: deleted %s (%d nodes)", s.Scope, len(s.Members))
	}
}

func (d *SubgraphDeleter) match(g *tensorflow.Graph) []*Subgraph {
	var subgraphs []*Subgraph
	byScope := make(map[string]*Subgraph)
	for _, n := range g.Nodes {
		m := d.Scope.FindStringSubmatch(n.Name())
		if m == nil {
			continue
		}
		scope := m[0]
		if len(m) > 1 {
			scope = m[1]
		}
		s := byScope[scope]
		if s == nil {
			s = &Subgraph{Scope: scope, inside: make(map[*tensorflow.Node]bool)}
			byScope[scope] = s
			subgraphs = append(subgraphs, s)
		}
		s.Members = append(s.Members, n)
		s.inside[n] = true
	}
	return subgraphs
}
