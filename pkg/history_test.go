package pkg

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHistory_Summary(t *testing.T) {
	h := &History{}
	h.Losses.append(4, 8)
	h.Losses.append(2, 4)
	h.Losses.append(1, 2)
	h.TrainAccuracy.append(0.5, 0.25)

	summary := h.Summary(2)
	require.Equal(t, 1.5, summary.Losses.ATC)
	require.Equal(t, 3.0, summary.Losses.WaitTime)
	require.Equal(t, 0.5, summary.TrainAccuracy.ATC)
	require.Equal(t, 0.0, summary.ValidationAccuracy.ATC)
	require.Equal(t, 3, h.Epochs())

	require.InDelta(t, 7.0/3, h.Summary(0).Losses.ATC, 1e-9)
}

func TestHistory_WriteJSON(t *testing.T) {
	h := &History{}
	h.Losses.append(0.5, 0.25)

	var buf bytes.Buffer
	require.NoError(t, h.WriteJSON(&buf))

	var decoded map[string]map[string][]float64
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Equal(t, []float64{0.5}, decoded["losses"]["atc"])
	require.Equal(t, []float64{0.25}, decoded["losses"]["wt"])
}
