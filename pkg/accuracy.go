package pkg

import (
	"errors"
	"fmt"

	"github.com/nlpodyssey/spago/pkg/ml/ag"
	"gonum.org/v1/gonum/floats"
)

var ErrShapeMismatch = errors.New("shape mismatch")

// Accuracy returns the fraction of positions where predicted equals actual.
func Accuracy(predicted, actual []int) (float64, error) {
	if len(predicted) != len(actual) {
		return 0, fmt.Errorf("%w: %d predictions for %d labels", ErrShapeMismatch, len(predicted), len(actual))
	}
	if len(actual) == 0 {
		return 0, ErrEmptyDataSet
	}
	matches := 0
	for i := range actual {
		if predicted[i] == actual[i] {
			matches++
		}
	}
	return float64(matches) / float64(len(actual)), nil
}

// predictClasses returns the highest scoring class of every output.
func predictClasses(outputs []ag.Node) []int {
	classes := make([]int, len(outputs))
	for i, output := range outputs {
		classes[i] = floats.MaxIdx(output.Value().Data())
	}
	return classes
}
