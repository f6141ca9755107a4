package io

import (
	"math/rand"

	"github.com/nlpodyssey/spago/pkg/mat"

	"hta/pkg/model"
)

// LabelSet holds per-position class indexes for both model heads.
type LabelSet struct {
	ATC      []int `json:"atc"`
	WaitTime []int `json:"waitTime"`
}

// Len returns the number of labelled positions.
func (l LabelSet) Len() int {
	return len(l.ATC)
}

// For returns the labels of the given head.
func (l LabelSet) For(head model.Head) []int {
	if head == model.WaitTime {
		return l.WaitTime
	}
	return l.ATC
}

// DataRecord is the contact sequence of one patient.
type DataRecord struct {
	PatientID int
	Features  []mat.Matrix
	Labels    LabelSet
}

// Batch is a flattened view of a data set: one input vector and one label pair per contact.
type Batch struct {
	Inputs []mat.Matrix
	Labels LabelSet
}

func (b Batch) Size() int {
	return len(b.Inputs)
}

type DataSet struct {
	Data        []*DataRecord
	Rand        *rand.Rand
	dataIndices []int
}

func NewDataSet(data []*DataRecord, rnd *rand.Rand) *DataSet {
	dataIndices := make([]int, len(data))
	for i := range dataIndices {
		dataIndices[i] = i
	}
	return &DataSet{Data: data, Rand: rnd, dataIndices: dataIndices}
}

func newDataSetSplit(data []*DataRecord, rnd *rand.Rand, indices []int) *DataSet {
	return &DataSet{Data: data, Rand: rnd, dataIndices: indices}
}

// Size returns the number of patients.
func (d *DataSet) Size() int {
	return len(d.dataIndices)
}

// Records returns the patients of the data set in order.
func (d *DataSet) Records() []*DataRecord {
	result := make([]*DataRecord, len(d.dataIndices))
	for i, index := range d.dataIndices {
		result[i] = d.Data[index]
	}
	return result
}

// Flatten concatenates the contacts of every patient into a single batch.
func (d *DataSet) Flatten() Batch {
	var batch Batch
	for _, record := range d.Records() {
		batch.Inputs = append(batch.Inputs, record.Features...)
		batch.Labels.ATC = append(batch.Labels.ATC, record.Labels.ATC...)
		batch.Labels.WaitTime = append(batch.Labels.WaitTime, record.Labels.WaitTime...)
	}
	return batch
}

// RandomSplit shuffles the patients and partitions them into consecutive splits of the given sizes.
func (d *DataSet) RandomSplit(sizes ...int) []*DataSet {
	indices := make([]int, len(d.dataIndices))
	copy(indices, d.dataIndices)
	d.Rand.Shuffle(len(indices), func(i, j int) {
		indices[i], indices[j] = indices[j], indices[i]
	})
	splits := make([]*DataSet, len(sizes))
	idx := 0
	for i := range sizes {
		splitIndices := make([]int, sizes[i])
		for j := range splitIndices {
			splitIndices[j] = indices[idx]
			idx++
		}
		splits[i] = newDataSetSplit(d.Data, d.Rand, splitIndices)
	}
	return splits
}
