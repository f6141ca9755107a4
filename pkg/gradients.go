package pkg

import (
	"errors"
	"fmt"

	"github.com/nlpodyssey/spago/pkg/mat"
	"github.com/nlpodyssey/spago/pkg/ml/nn"
)

var (
	ErrGradientCount   = errors.New("gradient vectors differ in length")
	ErrMissingGradient = errors.New("no gradient for parameter")
)

// CombineGradients sums two gradient vectors aligned with the same parameter list.
// A nil entry means the corresponding loss does not depend on that parameter and
// counts as zeros shaped like the other side. At least one side must be present
// for every parameter.
func CombineGradients(a, b []mat.Matrix) ([]mat.Matrix, error) {
	if len(a) != len(b) {
		return nil, fmt.Errorf("%w: %d != %d", ErrGradientCount, len(a), len(b))
	}
	result := make([]mat.Matrix, len(a))
	for i := range a {
		ga, gb := a[i], b[i]
		switch {
		case ga == nil && gb == nil:
			return nil, fmt.Errorf("%w %d", ErrMissingGradient, i)
		case ga == nil:
			ga = gb.ZerosLike()
		case gb == nil:
			gb = ga.ZerosLike()
		}
		result[i] = ga.Add(gb)
	}
	return result, nil
}

// collectGradients copies the current gradient of every parameter (nil when the
// parameter received none) and clears it.
func collectGradients(params []*nn.Param) []mat.Matrix {
	grads := make([]mat.Matrix, len(params))
	for i, param := range params {
		if param.HasGrad() {
			grads[i] = param.Grad().Clone()
		}
		param.ZeroGrad()
	}
	return grads
}

// setGradients replaces the gradient of every parameter with grads.
func setGradients(params []*nn.Param, grads []mat.Matrix) {
	for i, param := range params {
		param.ZeroGrad()
		param.PropagateGrad(grads[i])
	}
}
