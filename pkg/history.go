package pkg

import (
	"encoding/json"
	"fmt"
	"io"

	"gonum.org/v1/gonum/stat"
)

// HeadSeries holds one value per epoch for each head.
type HeadSeries struct {
	ATC      []float64 `json:"atc"`
	WaitTime []float64 `json:"wt"`
}

func (s *HeadSeries) append(atc, waitTime float64) {
	s.ATC = append(s.ATC, atc)
	s.WaitTime = append(s.WaitTime, waitTime)
}

// History accumulates the per-epoch metrics of a training run. Series are only
// ever appended to.
type History struct {
	Losses             HeadSeries `json:"losses"`
	TrainAccuracy      HeadSeries `json:"trainAccuracy"`
	ValidationAccuracy HeadSeries `json:"validationAccuracy"`
}

// Epochs returns the number of completed epochs.
func (h *History) Epochs() int {
	return len(h.Losses.ATC)
}

// Summary averages the last window entries of every series.
func (h *History) Summary(window int) Summary {
	return Summary{
		Losses:             summarize(h.Losses, window),
		TrainAccuracy:      summarize(h.TrainAccuracy, window),
		ValidationAccuracy: summarize(h.ValidationAccuracy, window),
	}
}

func (h *History) WriteJSON(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(h); err != nil {
		return fmt.Errorf("error encoding history: %w", err)
	}
	return nil
}

type HeadMeans struct {
	ATC      float64
	WaitTime float64
}

type Summary struct {
	Losses             HeadMeans
	TrainAccuracy      HeadMeans
	ValidationAccuracy HeadMeans
}

func summarize(s HeadSeries, window int) HeadMeans {
	return HeadMeans{ATC: tailMean(s.ATC, window), WaitTime: tailMean(s.WaitTime, window)}
}

func tailMean(values []float64, window int) float64 {
	if len(values) == 0 {
		return 0
	}
	if window <= 0 || window > len(values) {
		window = len(values)
	}
	return stat.Mean(values[len(values)-window:], nil)
}
