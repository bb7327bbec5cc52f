package gan

import (
	"github.com/maybellin/generative/nnet"
)

// TrainData records the generator distribution and the discriminator output at each reported step.
type TrainData struct {
	Data  nnet.DatasetParams `json:"data"`
	Steps []StepData         `json:"steps"`
}

// StepData holds the state of the model at one step.
type StepData struct {
	Step          int64             `json:"step"`
	Generator     GeneratorData     `json:"generator"`
	Discriminator DiscriminatorData `json:"discriminator"`
}

// GeneratorData are the moments of the generated distribution.
type GeneratorData struct {
	Mean   float64 `json:"mean"`
	Stddev float64 `json:"stddev"`
}

// DiscriminatorData is the probability the input is real at each point of the probe grid.
type DiscriminatorData struct {
	Points []Point `json:"points"`
}

// Point on the discriminator curve.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NewTrainData returns a new empty recorder for the given data distribution.
func NewTrainData(data nnet.DatasetParams) *TrainData {
	return &TrainData{Data: data, Steps: []StepData{}}
}

// Add the state of the model from the last evaluation.
func (t *TrainData) Add(step int64, m *Model, metrics nnet.Metrics) {
	probe := m.Probe()
	points := make([]Point, len(probe))
	for i, y := range probe {
		points[i] = Point{X: m.Grid[i], Y: y}
	}
	t.Steps = append(t.Steps, StepData{
		Step:          step,
		Generator:     GeneratorData{Mean: metrics[GeneratorMean], Stddev: metrics[GeneratorStddev]},
		Discriminator: DiscriminatorData{Points: points},
	})
}

// Save as indented JSON.
func (t *TrainData) Save(filePath string) error {
	return nnet.SaveJSON(filePath, t)
}

// LoadTrainData reads back saved train data.
func LoadTrainData(filePath string) (*TrainData, error) {
	t := new(TrainData)
	err := nnet.LoadJSON(filePath, t)
	return t, err
}
