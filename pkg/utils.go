package pkg

import (
	"fmt"

	"github.com/nlpodyssey/spago/pkg/mat"
	"github.com/nlpodyssey/spago/pkg/ml/ag"
	"github.com/nlpodyssey/spago/pkg/ml/nn"

	"hta/pkg/model"
)

func createInputNodes(g *ag.Graph, inputs []mat.Matrix) []ag.Node {
	xs := make([]ag.Node, len(inputs))
	for i := range inputs {
		xs[i] = g.NewVariable(inputs[i], false)
	}
	return xs
}

// forward runs m on inputs and checks that both heads produced one output per input.
func forward(g *ag.Graph, m Model, mode nn.ProcessingMode, inputs []mat.Matrix) (model.Outputs, error) {
	outputs := m.Forward(g, mode, createInputNodes(g, inputs))
	for _, head := range model.Heads {
		out, ok := outputs[head]
		if !ok {
			return nil, fmt.Errorf("%w %s", ErrMissingHead, head)
		}
		if len(out) != len(inputs) {
			return nil, fmt.Errorf("%w: head %s has %d outputs for %d inputs", ErrShapeMismatch, head, len(out), len(inputs))
		}
	}
	return outputs, nil
}

// meanLoss averages lossFunc over all positions.
func meanLoss(g *ag.Graph, lossFunc LossFunc, logits []ag.Node, targets []int) ag.Node {
	var loss ag.Node
	for i := range logits {
		loss = g.Add(loss, lossFunc(g, logits[i], targets[i]))
	}
	return g.Div(loss, g.NewScalar(float64(len(logits))))
}

func zeroGradients(params []*nn.Param) {
	for _, param := range params {
		param.ZeroGrad()
	}
}
