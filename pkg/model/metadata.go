package model

// NameMap implements a bidirectional mapping between a class name and a class index
type NameMap struct {
	NameToIndex map[string]int
	IndexToName map[int]string
}

func (f NameMap) Set(name string, index int) {
	f.NameToIndex[name] = index
	f.IndexToName[index] = name
}

func (f NameMap) Size() int {
	return len(f.IndexToName)
}

// ValueFor returns the index of name, adding it to the map if not present.
func (f NameMap) ValueFor(name string) int {
	index, ok := f.NameToIndex[name]
	if !ok {
		index = f.Size()
		f.Set(name, index)
	}
	return index
}

func NewNameMap(names ...string) NameMap {
	m := NameMap{
		NameToIndex: map[string]int{},
		IndexToName: map[int]string{},
	}
	for _, name := range names {
		m.ValueFor(name)
	}
	return m
}

type Metadata struct {
	// Features names the components of each per-contact input vector
	Features []string

	// ATCCodes maps ATC code names to the class indexes of the ATC_CODE head
	ATCCodes NameMap

	// WaitTimes maps wait-time bucket names to the class indexes of the WAIT_TIME head
	WaitTimes NameMap

	// WaitTimeUnit is the unit wait times are measured in before bucketing: weeks or months
	WaitTimeUnit string

	// TaskSeed identifies the synthetic labelling task the model was trained on
	TaskSeed int64
}

func NewMetadata() *Metadata {
	return &Metadata{
		ATCCodes:  NewNameMap(),
		WaitTimes: NewNameMap(),
	}
}

func (d *Metadata) FeatureCount() int {
	return len(d.Features)
}

// Labels returns the vocabulary of the given head.
func (d *Metadata) Labels(head Head) NameMap {
	if head == WaitTime {
		return d.WaitTimes
	}
	return d.ATCCodes
}
