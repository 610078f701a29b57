package tensorflow

import (
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/xmartlabs/Bender-sub000/internal/graph"
)

// Graph is a graph of imported TensorFlow nodes.
type Graph = graph.Graph[*Node]

// LoadFile parses a model file and builds its node graph.
func LoadFile(path string) (*Graph, error) {
	def, err := ParseFile(path)
	if err != nil {
		return nil, err
	}
	return BuildGraph(def)
}

// BuildGraph creates one Node per NodeDef, in declaration order, and connects each node to
// the producers named by its data inputs. Control inputs ("^name") are not data dependencies
// and are dropped; an output index suffix ("name:1") is ignored.
//
// An input naming an unknown node, a node feeding itself and a duplicated node name are
// structural errors reported as *ImportError.
func BuildGraph(def *GraphDef) (g *Graph, err error) {
	err = exceptions.TryCatch[error](func() { g = buildGraph(def) })
	if err != nil {
		return nil, errors.WithMessage(err, "failed to build graph")
	}
	return g, nil
}

func buildGraph(def *GraphDef) *Graph {
	nodes := make([]*Node, len(def.Nodes))
	byName := make(map[string]*Node, len(def.Nodes))
	for i, d := range def.Nodes {
		n := NewNode(d)
		Expect(byName[d.Name] == nil, n, "duplicate node name")
		byName[d.Name] = n
		nodes[i] = n
	}

	control := 0
	for _, n := range nodes {
		for _, input := range n.Def.Inputs {
			name, isControl := InputName(input)
			if isControl {
				control++
				continue
			}
			producer := byName[name]
			Expect(producer != nil, n, "input %q references an unknown node", input)
			Expect(producer != n, n, "node consumes its own output")
			graph.Connect(producer, n)
		}
	}
	klog.V(1).Infof("tensorflow: loaded %d nodes (%d control inputs dropped)", len(nodes), control)
	return graph.New(nodes...)
}

// InputName resolves an input reference to the producing node name, and reports whether it
// is a control dependency.
func InputName(input string) (name string, control bool) {
	if strings.HasPrefix(input, "^") {
		return input[1:], true
	}
	if i := strings.LastIndexByte(input, ':'); i >= 0 {
		input = input[:i]
	}
	return input, false
}
