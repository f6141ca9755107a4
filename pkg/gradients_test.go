package pkg

import (
	"errors"
	"testing"

	"github.com/nlpodyssey/spago/pkg/mat"
	"github.com/stretchr/testify/require"
)

func TestCombineGradients(t *testing.T) {
	gradA := mat.NewVecDense([]float64{1, 2})
	gradB := mat.NewVecDense([]float64{-3, 0.5, 4})

	combined, err := CombineGradients(
		[]mat.Matrix{gradA, nil},
		[]mat.Matrix{nil, gradB},
	)
	require.NoError(t, err)
	require.Equal(t, 2, len(combined))
	require.Equal(t, []float64{1, 2}, combined[0].Data())
	require.Equal(t, []float64{-3, 0.5, 4}, combined[1].Data())

	// inputs are left untouched
	require.Equal(t, []float64{1, 2}, gradA.Data())
}

func TestCombineGradients_Sum(t *testing.T) {
	combined, err := CombineGradients(
		[]mat.Matrix{mat.NewVecDense([]float64{1, 2}), mat.NewDense(2, 2, []float64{1, 1, 1, 1})},
		[]mat.Matrix{mat.NewVecDense([]float64{0.5, -2}), mat.NewDense(2, 2, []float64{1, 2, 3, 4})},
	)
	require.NoError(t, err)
	require.Equal(t, []float64{1.5, 0}, combined[0].Data())
	require.Equal(t, []float64{2, 3, 4, 5}, combined[1].Data())
	require.Equal(t, 2, combined[1].Rows())
	require.Equal(t, 2, combined[1].Columns())
}

func TestCombineGradients_BothMissing(t *testing.T) {
	_, err := CombineGradients(
		[]mat.Matrix{mat.NewVecDense([]float64{1}), nil},
		[]mat.Matrix{nil, nil},
	)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrMissingGradient))
	require.Contains(t, err.Error(), "parameter 1")
}

func TestCombineGradients_LengthMismatch(t *testing.T) {
	_, err := CombineGradients(
		[]mat.Matrix{mat.NewVecDense([]float64{1})},
		[]mat.Matrix{mat.NewVecDense([]float64{1}), nil},
	)
	require.True(t, errors.Is(err, ErrGradientCount))
}

func TestCombineGradients_Empty(t *testing.T) {
	combined, err := CombineGradients(nil, nil)
	require.NoError(t, err)
	require.Empty(t, combined)
}
