package pkg

import (
	"fmt"
	"sort"

	"github.com/nlpodyssey/spago/pkg/mat/rand"
	"github.com/nlpodyssey/spago/pkg/ml/ag"
	"github.com/nlpodyssey/spago/pkg/ml/nn"
	"github.com/nlpodyssey/spago/pkg/ml/stats"
	"github.com/rs/zerolog/log"

	"hta/pkg/io"
	"hta/pkg/model"
)

// HeadEvaluation holds the metrics of one head.
type HeadEvaluation struct {
	Accuracy float64
	MacroF1  float64
	MicroF1  float64
}

type EvaluationResult map[model.Head]HeadEvaluation

// Evaluate runs m on data in inference mode and logs per-class metrics for both heads.
func Evaluate(m *model.Model, data *io.DataSet) (EvaluationResult, error) {
	batch, err := flatten(data)
	if err != nil {
		return nil, err
	}

	g := ag.NewGraph(ag.Rand(rand.NewLockedRand(42)))
	defer g.Clear()
	outputs, err := forward(g, m.Network, nn.Inference, batch.Inputs)
	if err != nil {
		return nil, err
	}

	result := EvaluationResult{}
	for _, head := range model.Heads {
		predicted := predictClasses(outputs[head])
		actual := batch.Labels.For(head)
		accuracy, err := Accuracy(predicted, actual)
		if err != nil {
			return nil, fmt.Errorf("head %s: %w", head, err)
		}

		evaluator := &classificationEvaluator{
			head:    head,
			labels:  m.MetaData.Labels(head),
			metrics: map[string]*stats.ClassMetrics{},
		}
		for i := range predicted {
			evaluator.EvaluatePrediction(predicted[i], actual[i])
		}
		evaluator.LogMetrics()

		macroF1, microF1 := computeOverallF1(evaluator.metrics)
		result[head] = HeadEvaluation{Accuracy: accuracy, MacroF1: macroF1, MicroF1: microF1}
		log.Info().Str("Head", string(head)).Float64("Accuracy", accuracy).
			Float64("MacroF1", macroF1).Float64("MicroF1", microF1).Msg("")
	}
	return result, nil
}

type classificationEvaluator struct {
	head    model.Head
	labels  model.NameMap
	metrics map[string]*stats.ClassMetrics
}

func (c *classificationEvaluator) EvaluatePrediction(predictedClass, labelClass int) {
	predicted := c.className(predictedClass)
	label := c.className(labelClass)

	labelClassMetrics := c.classMetrics(label)
	predictedClassMetrics := c.classMetrics(predicted)

	if label == predicted {
		labelClassMetrics.IncTruePos()
	} else {
		labelClassMetrics.IncFalseNeg()
		predictedClassMetrics.IncFalsePos()
	}
}

func (c *classificationEvaluator) classMetrics(class string) *stats.ClassMetrics {
	metrics, ok := c.metrics[class]
	if !ok {
		metrics = stats.NewMetricCounter()
		c.metrics[class] = metrics
	}
	return metrics
}

func (c *classificationEvaluator) className(index int) string {
	if name, ok := c.labels.IndexToName[index]; ok {
		return name
	}
	return fmt.Sprintf("#%d", index)
}

func (c *classificationEvaluator) LogMetrics() {
	// Sort class names for deterministic output
	for _, class := range sortClasses(c.metrics) {
		result := c.metrics[class]
		log.Info().Str("Head", string(c.head)).
			Str("Class", class).
			Int("TP", result.TruePos).
			Int("FP", result.FalsePos).
			Int("FN", result.FalseNeg).
			Float64("Precision", result.Precision()).
			Float64("Recall", result.Recall()).
			Float64("F1", result.F1Score()).
			Msg("")
	}
}

// computeOverallF1 returns the macro and the micro averaged F1 score.
func computeOverallF1(metrics map[string]*stats.ClassMetrics) (float64, float64) {
	if len(metrics) == 0 {
		return 0, 0
	}
	macroF1 := 0.0
	for _, metric := range metrics {
		macroF1 += metric.F1Score()
	}
	macroF1 /= float64(len(metrics))

	micro := stats.NewMetricCounter()
	for _, result := range metrics {
		micro.TruePos += result.TruePos
		micro.FalsePos += result.FalsePos
		micro.FalseNeg += result.FalseNeg
		micro.TrueNeg += result.TrueNeg
	}
	return macroF1, micro.F1Score()
}

func sortClasses(metrics map[string]*stats.ClassMetrics) []string {
	result := make([]string, 0, len(metrics))
	for class := range metrics {
		result = append(result, class)
	}
	sort.Strings(result)
	return result
}
