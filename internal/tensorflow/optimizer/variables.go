package optimizer

import (
	"slices"

	"k8s.io/klog/v2"

	"github.com/xmartlabs/Bender-sub000/internal/graph"
	"github.com/xmartlabs/Bender-sub000/internal/tensorflow"
)

// VariableProcessor collapses variable plumbing: for every Assign of a constant initial value
// to a variable, the readers of the variable read the constant directly. The assign, the
// variable and its Identity reads are stripped.
type VariableProcessor struct{}

// Name implements Pass.
func (VariableProcessor) Name() string { return "VariableProcessor" }

// Optimize implements Pass.
func (VariableProcessor) Optimize(g *tensorflow.Graph) {
	for _, assign := range nodesOf(g, tensorflow.OpAssign) {
		variable := assign.IncomingOp(tensorflow.OpVariable, tensorflow.OpVariableV2)
		if variable == nil {
			continue
		}
		initial := otherInput(assign, variable)
		if !initial.IsOp(tensorflow.OpConst) {
			klog.V(1).Infof("optimizer: variable %s is not initialized from a constant, kept", variable)
			continue
		}

		var reads []*tensorflow.Node
		for _, consumer := range slices.Clone(variable.Outgoing()) {
			switch {
			case consumer == assign:
			case consumer.IsOp(tensorflow.OpIdentity):
				reads = append(reads, consumer)
				for _, reader := range slices.Clone(consumer.Outgoing()) {
					graph.Replace(reader, consumer, initial)
				}
			default:
				graph.Replace(consumer, variable, initial)
			}
		}

		graph.Strip(assign)
		graph.Strip(variable)
		for _, read := range reads {
			graph.Strip(read)
		}
	}
}
