package pkg

import (
	"bytes"
	"math"
	"testing"

	"github.com/nlpodyssey/spago/pkg/mat/rand"
	"github.com/nlpodyssey/spago/pkg/ml/stats"
	"github.com/stretchr/testify/require"

	"hta/pkg/io"
	"hta/pkg/model"
)

func newSyntheticModel(t *testing.T) (*model.Model, *io.DataSet, *io.DataSet) {
	metaData, err := io.NewTaskMetadata(io.TaskParameters{ATCClasses: 4, WaitTimeBuckets: 6, TaskSeed: 7})
	require.NoError(t, err)
	data, err := io.Synthesize(io.SyntheticParameters{Patients: 60, MaxContacts: 8, Seed: 3}, metaData)
	require.NoError(t, err)
	validationSize := data.Size() / 5
	splits := data.RandomSplit(data.Size()-validationSize, validationSize)

	network := model.NewMultiHead(model.Config{
		NumFeatures:     metaData.FeatureCount(),
		HiddenDimension: 8,
		NumATCCodes:     metaData.ATCCodes.Size(),
		NumWaitTimes:    metaData.WaitTimes.Size(),
	})
	network.Init(rand.NewLockedRand(42))
	return &model.Model{MetaData: metaData, Network: network}, splits[0], splits[1]
}

func TestTrain_MultiHead(t *testing.T) {
	m, train, validation := newSyntheticModel(t)
	params := DefaultTrainingParameters()
	params.NumEpochs = 60
	params.LearningRate = 0.01

	history, err := Train(TrainingContext{
		Model:         m.Network,
		TrainSet:      train,
		ValidationSet: validation,
		Params:        params,
		Output:        &bytes.Buffer{},
	})
	require.NoError(t, err)
	require.Equal(t, 60, history.Epochs())

	first := history.Losses.ATC[0] + history.Losses.WaitTime[0]
	last := history.Losses.ATC[59] + history.Losses.WaitTime[59]
	require.False(t, math.IsNaN(last))
	require.True(t, last < first, "loss went from %f to %f", first, last)
	for _, accuracy := range history.ValidationAccuracy.ATC {
		require.True(t, accuracy >= 0 && accuracy <= 1)
	}

	result, err := Evaluate(m, validation)
	require.NoError(t, err)
	for _, head := range model.Heads {
		require.Contains(t, result, head)
		require.True(t, result[head].Accuracy >= 0 && result[head].Accuracy <= 1)
		// every mistake is one false positive and one false negative, so micro F1 equals accuracy
		require.InDelta(t, result[head].Accuracy, result[head].MicroF1, 1e-9)
	}
}

func TestClassificationEvaluator(t *testing.T) {
	evaluator := &classificationEvaluator{
		head:    model.ATCCode,
		labels:  model.NewNameMap("C09AA05", "C08CA01"),
		metrics: map[string]*stats.ClassMetrics{},
	}
	evaluator.EvaluatePrediction(0, 0)
	evaluator.EvaluatePrediction(0, 0)
	evaluator.EvaluatePrediction(1, 0)
	evaluator.EvaluatePrediction(1, 1)
	evaluator.EvaluatePrediction(2, 1)

	require.Equal(t, []string{"#2", "C08CA01", "C09AA05"}, sortClasses(evaluator.metrics))
	ramipril := evaluator.metrics["C09AA05"]
	require.Equal(t, 2, ramipril.TruePos)
	require.Equal(t, 1, ramipril.FalseNeg)
	amlodipine := evaluator.metrics["C08CA01"]
	require.Equal(t, 1, amlodipine.TruePos)
	require.Equal(t, 1, amlodipine.FalsePos)
	require.Equal(t, 1, amlodipine.FalseNeg)
	require.Equal(t, 1, evaluator.metrics["#2"].FalsePos)

	_, microF1 := computeOverallF1(evaluator.metrics)
	require.InDelta(t, 0.6, microF1, 1e-9)
}
