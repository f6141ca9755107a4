package pkg

import (
	"errors"
	"testing"

	"github.com/nlpodyssey/spago/pkg/mat"
	"github.com/nlpodyssey/spago/pkg/ml/ag"
	"github.com/stretchr/testify/require"
)

func TestAccuracy(t *testing.T) {
	accuracy, err := Accuracy([]int{2, 0, 1, 1}, []int{2, 0, 1, 3})
	require.NoError(t, err)
	require.Equal(t, 0.75, accuracy)

	_, err = Accuracy([]int{1}, []int{1, 2})
	require.True(t, errors.Is(err, ErrShapeMismatch))

	_, err = Accuracy(nil, nil)
	require.True(t, errors.Is(err, ErrEmptyDataSet))
}

func TestPredictClasses(t *testing.T) {
	g := ag.NewGraph()
	defer g.Clear()
	outputs := []ag.Node{
		g.NewVariable(mat.NewVecDense([]float64{0.1, 0.7, 0.2}), false),
		g.NewVariable(mat.NewVecDense([]float64{-1, -2, -0.5}), false),
		g.NewVariable(mat.NewVecDense([]float64{3, 3, 1}), false),
	}
	require.Equal(t, []int{1, 2, 0}, predictClasses(outputs))
}
