package model

import (
	"github.com/nlpodyssey/spago/pkg/mat/rand"
	"github.com/nlpodyssey/spago/pkg/ml/ag"
	"github.com/nlpodyssey/spago/pkg/ml/initializers"
	"github.com/nlpodyssey/spago/pkg/ml/nn"
	"github.com/nlpodyssey/spago/pkg/ml/nn/linear"
)

var (
	_ nn.Model     = &MultiHead{}
	_ nn.Processor = &MultiHeadProcessor{}
)

type Config struct {
	NumFeatures        int
	HiddenDimension    int
	NumATCCodes        int
	NumWaitTimes       int
	DropoutProbability float64
}

// MultiHead is a shared tanh trunk feeding two independent linear classification heads,
// one predicting the ATC code and one predicting the wait-time bucket of a contact.
type MultiHead struct {
	Config
	Hidden *linear.Model
	ATC    *linear.Model
	Wait   *linear.Model
}

func NewMultiHead(config Config) *MultiHead {
	return &MultiHead{
		Config: config,
		Hidden: linear.New(config.NumFeatures, config.HiddenDimension),
		ATC:    linear.New(config.HiddenDimension, config.NumATCCodes),
		Wait:   linear.New(config.HiddenDimension, config.NumWaitTimes),
	}
}

func (m *MultiHead) Init(generator *rand.LockedRand) {
	initializers.XavierUniform(m.Hidden.W.Value(), initializers.Gain(ag.OpTanh), generator)
	gain := initializers.Gain(ag.OpIdentity)
	initializers.XavierUniform(m.ATC.W.Value(), gain, generator)
	initializers.XavierUniform(m.Wait.W.Value(), gain, generator)
}

// ParamsList returns the trainable parameters in field order: trunk, ATC head,
// wait-time head, weights before biases.
func (m *MultiHead) ParamsList() []*nn.Param {
	return nn.NewDefaultParamsIterator(m).ParamsList()
}

// Forward computes the logits of both heads for every input vector.
func (m *MultiHead) Forward(g *ag.Graph, mode nn.ProcessingMode, xs []ag.Node) Outputs {
	proc := m.NewProc(nn.Context{Graph: g, Mode: mode}).(*MultiHeadProcessor)
	return proc.Predict(xs...)
}

type MultiHeadProcessor struct {
	nn.BaseProcessor
	dropoutProbability float64
	hiddenProcessor    nn.Processor
	atcProcessor       nn.Processor
	waitProcessor      nn.Processor
}

func (m *MultiHead) NewProc(ctx nn.Context) nn.Processor {
	return &MultiHeadProcessor{
		BaseProcessor: nn.BaseProcessor{
			Model:             m,
			Mode:              ctx.Mode,
			Graph:             ctx.Graph,
			FullSeqProcessing: false,
		},
		dropoutProbability: m.DropoutProbability,
		hiddenProcessor:    m.Hidden.NewProc(ctx),
		atcProcessor:       m.ATC.NewProc(ctx),
		waitProcessor:      m.Wait.NewProc(ctx),
	}
}

func (p *MultiHeadProcessor) Forward(xs ...ag.Node) []ag.Node {
	panic("Forward not implemented... please use Predict instead")
}

// Predict returns the logits of both heads. Dropout on the shared representation
// is only applied in training mode.
func (p *MultiHeadProcessor) Predict(xs ...ag.Node) Outputs {
	g := p.Graph
	hidden := p.hiddenProcessor.Forward(xs...)
	for i := range hidden {
		hidden[i] = g.Tanh(hidden[i])
		if p.Mode == nn.Training && p.dropoutProbability > 0 {
			hidden[i] = g.Dropout(hidden[i], p.dropoutProbability)
		}
	}
	return Outputs{
		ATCCode:  p.atcProcessor.Forward(hidden...),
		WaitTime: p.waitProcessor.Forward(hidden...),
	}
}
