package model

import "github.com/nlpodyssey/spago/pkg/ml/ag"

// Head names one output of a multi-head model.
type Head string

const (
	ATCCode  Head = "ATC_CODE"
	WaitTime Head = "WAIT_TIME"
)

// Heads lists the outputs in reporting order.
var Heads = []Head{ATCCode, WaitTime}

// Outputs holds one logit vector per input position for every head.
type Outputs map[Head][]ag.Node

// Model is the unit saved after training.
type Model struct {
	MetaData *Metadata
	Network  *MultiHead
}
