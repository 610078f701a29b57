// Package optimizer rewrites imported TensorFlow graphs into the shape the operator mapper
// expects: variables collapsed to constants, training-only subgraphs deleted, and known
// multi-node idioms fused into single nodes.
//
// Passes mutate the graph in place and run in a fixed, declared order: later passes rely on
// earlier ones (bias fusion expects variable reads to be resolved already). A pass that meets
// a node violating the structure it expects panics with a *tensorflow.ImportError; Pipeline.Run
// turns that into a returned error.
package optimizer

import (
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/xmartlabs/Bender-sub000/internal/tensorflow"
)

// Pass is one graph rewrite.
type Pass interface {
	// Name identifies the pass in logs.
	Name() string
	// Optimize rewrites g in place. Structural violations panic with *tensorflow.ImportError.
	Optimize(g *tensorflow.Graph)
}

// Pipeline runs passes in declared order.
type Pipeline struct {
	Passes []Pass
}

// DefaultPipeline returns the standard pass order.
func DefaultPipeline() *Pipeline {
	return &Pipeline{Passes: []Pass{
		VariableProcessor{},
		DropoutDeleter(),
		SaveDeleter(),
		RegularizerDeleter(),
		InitializerDeleter(),
		InstanceNormFusion{},
		IgnoredOpsDeleter{},
		DenseFusion{},
		ConvBiasFusion{},
		ReshapeElision{},
	}}
}

// Names lists the pass names in order.
func (p *Pipeline) Names() []string {
	names := make([]string, len(p.Passes))
	for i, pass := range p.Passes {
		names[i] = pass.Name()
	}
	return names
}

// Run applies every pass to g, dropping nodes left without edges after each one.
func (p *Pipeline) Run(g *tensorflow.Graph) error {
	var current string
	err := exceptions.TryCatch[error](func() {
		for _, pass := range p.Passes {
			current = pass.Name()
			before := g.Len()
			pass.Optimize(g)
			g.RemoveLonely()
			klog.V(1).Infof("optimizer: %s: %d -> %d nodes", current, before, g.Len())
		}
	})
	if err != nil {
		return errors.WithMessagef(err, "optimizer pass %s", current)
	}
	return nil
}
