package io

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/nlpodyssey/spago/pkg/mat"
	"gonum.org/v1/gonum/floats"

	"hta/pkg/model"
)

// MinContacts is the minimum number of contacts a patient needs to be kept.
const MinContacts = 4

// Wait-time units. Weeks are clipped to the last bucket; months are rounded to
// four-week months, anything longer than four months counting as five.
const (
	Weeks  = "weeks"
	Months = "months"
)

// ATCCodeNames are antihypertensive ATC codes used as ATC_CODE classes.
var ATCCodeNames = []string{
	"C09AA05", // ramipril
	"C08CA01", // amlodipine
	"C07AB07", // bisoprolol
	"C09CA01", // losartan
	"C03CA01", // furosemide
	"C03AA03", // hydrochlorothiazide
	"C09DA01", // losartan and diuretics
	"C02AC05", // moxonidine
}

var FeatureNames = []string{
	"age_presc",
	"gender_code",
	"tension_systolique",
	"tension_diastolique",
	"quantity",
	"duration",
	"previous_duration",
	"first_contact",
}

// prescription durations in days
var durations = []int{7, 14, 28, 30, 56, 84, 90}

var studyStart = time.Date(2017, time.January, 1, 0, 0, 0, 0, time.UTC)

// TaskParameters define the labelling task: the class vocabularies and the hidden
// projection deciding the ATC code of a contact.
type TaskParameters struct {
	ATCClasses      int
	WaitTimeBuckets int
	WaitTimeUnit    string // Weeks when empty
	TaskSeed        int64
}

type SyntheticParameters struct {
	Patients    int
	MaxContacts int
	Seed        int64
}

// NewTaskMetadata creates the metadata describing the inputs and both label vocabularies of a task.
func NewTaskMetadata(p TaskParameters) (*model.Metadata, error) {
	if p.ATCClasses < 2 || p.ATCClasses > len(ATCCodeNames) {
		return nil, fmt.Errorf("number of ATC classes must be between 2 and %d, got %d", len(ATCCodeNames), p.ATCClasses)
	}
	if p.WaitTimeBuckets < 2 {
		return nil, fmt.Errorf("number of wait time buckets must be at least 2, got %d", p.WaitTimeBuckets)
	}
	var suffix string
	switch p.WaitTimeUnit {
	case "", Weeks:
		p.WaitTimeUnit = Weeks
		suffix = "w"
	case Months:
		suffix = "m"
	default:
		return nil, fmt.Errorf("invalid wait time unit %q: expected %s or %s", p.WaitTimeUnit, Weeks, Months)
	}

	metaData := model.NewMetadata()
	metaData.Features = FeatureNames
	metaData.TaskSeed = p.TaskSeed
	metaData.WaitTimeUnit = p.WaitTimeUnit
	for _, name := range ATCCodeNames[:p.ATCClasses] {
		metaData.ATCCodes.ValueFor(name)
	}
	for i := 0; i < p.WaitTimeBuckets-1; i++ {
		metaData.WaitTimes.ValueFor(fmt.Sprintf("%d%s", i, suffix))
	}
	metaData.WaitTimes.ValueFor(fmt.Sprintf("%d%s+", p.WaitTimeBuckets-1, suffix))
	return metaData, nil
}

// Synthesize generates patient contact sequences labelled according to metaData.
// Patients with fewer than MinContacts contacts are dropped.
func Synthesize(p SyntheticParameters, metaData *model.Metadata) (*DataSet, error) {
	if p.Patients <= 0 {
		return nil, errors.New("number of patients must be > 0")
	}
	if p.MaxContacts < MinContacts {
		return nil, fmt.Errorf("max contacts must be at least %d, got %d", MinContacts, p.MaxContacts)
	}

	rnd := rand.New(rand.NewSource(p.Seed))
	projection := taskProjection(metaData)
	buckets := metaData.WaitTimes.Size()
	waitTime := WaitTimeWeeks
	if metaData.WaitTimeUnit == Months {
		waitTime = WaitTimeMonths
	}

	records := make([]*DataRecord, 0, p.Patients)
	for patient := 0; patient < p.Patients; patient++ {
		contacts := 1 + rnd.Intn(p.MaxContacts)
		age := 45 + rnd.Float64()*45
		gender := float64(rnd.Intn(2))
		date := studyStart.AddDate(0, 0, rnd.Intn(365))

		record := &DataRecord{
			PatientID: patient,
			Features:  make([]mat.Matrix, contacts),
			Labels:    LabelSet{ATC: make([]int, contacts)},
		}
		dates := make([]time.Time, contacts)
		previousDuration := 0
		for c := 0; c < contacts; c++ {
			firstContact := 1.0
			if c > 0 {
				firstContact = 0
				date = date.AddDate(0, 0, previousDuration+rnd.Intn(4))
			}
			dates[c] = date
			duration := durations[rnd.Intn(len(durations))]
			x := []float64{
				age / 100,
				gender,
				(140 + 15*rnd.NormFloat64()) / 200,
				(85 + 10*rnd.NormFloat64()) / 120,
				float64(1+rnd.Intn(3)) / 3,
				float64(duration) / 90,
				float64(previousDuration) / 90,
				firstContact,
			}
			record.Features[c] = mat.NewVecDense(x)
			record.Labels.ATC[c] = classify(projection, x)
			previousDuration = duration
		}
		record.Labels.WaitTime = Bucketize(waitTime(dates), buckets)
		records = append(records, record)
	}

	return NewDataSet(FilterPatients(records, MinContacts), rnd), nil
}

// WaitTimeWeeks returns, for each contact, the number of whole weeks elapsed since the
// previous contact. The first contact waits zero weeks.
func WaitTimeWeeks(dates []time.Time) []int {
	weeks := make([]int, len(dates))
	for i, days := range waitTimeDays(dates) {
		weeks[i] = days / 7
	}
	return weeks
}

// WaitTimeMonths returns, for each contact, the wait since the previous contact in
// four-week months rounded to the nearest month. Waits longer than four months are 5.
func WaitTimeMonths(dates []time.Time) []int {
	months := make([]int, len(dates))
	for i, days := range waitTimeDays(dates) {
		m := float64(days) / 28
		if m > 4 {
			months[i] = 5
		} else {
			months[i] = int(math.Round(m))
		}
	}
	return months
}

func waitTimeDays(dates []time.Time) []int {
	days := make([]int, len(dates))
	for i := 1; i < len(dates); i++ {
		days[i] = int(dates[i].Sub(dates[i-1]).Hours() / 24)
	}
	return days
}

// Bucketize clips weeks into [0, buckets-1].
func Bucketize(weeks []int, buckets int) []int {
	result := make([]int, len(weeks))
	for i, w := range weeks {
		switch {
		case w < 0:
			result[i] = 0
		case w >= buckets:
			result[i] = buckets - 1
		default:
			result[i] = w
		}
	}
	return result
}

// FilterPatients keeps the records having at least minContacts contacts.
func FilterPatients(records []*DataRecord, minContacts int) []*DataRecord {
	result := records[:0]
	for _, record := range records {
		if len(record.Features) >= minContacts {
			result = append(result, record)
		}
	}
	return result
}

func taskProjection(metaData *model.Metadata) [][]float64 {
	rnd := rand.New(rand.NewSource(metaData.TaskSeed))
	projection := make([][]float64, metaData.ATCCodes.Size())
	for i := range projection {
		projection[i] = make([]float64, metaData.FeatureCount())
		for j := range projection[i] {
			projection[i][j] = rnd.NormFloat64()
		}
	}
	return projection
}

func classify(projection [][]float64, x []float64) int {
	centered := make([]float64, len(x))
	copy(centered, x)
	floats.AddConst(-0.5, centered)
	scores := make([]float64, len(projection))
	for i, row := range projection {
		scores[i] = floats.Dot(row, centered)
	}
	return floats.MaxIdx(scores)
}
