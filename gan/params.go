// Package gan trains a generative adversarial network to reproduce a mixture of normal distributions.
package gan

import (
	"github.com/maybellin/generative/nnet"
)

// Model name stored in checkpoints.
const ModelName = "gan_normal"

// ModelParams are the hyperparameters saved with the experiment.
type ModelParams struct {
	DLearningRate         float64 `json:"d_learning_rate"`
	GLearningRate         float64 `json:"g_learning_rate"`
	DL2Reg                float64 `json:"d_l2_reg"`
	GL2Reg                float64 `json:"g_l2_reg"`
	Dropout               float64 `json:"dropout"`
	NNGenerator           bool    `json:"nn_generator"`
	GeneratorFeatures     []int   `json:"generator_features"`
	DiscriminatorFeatures []int   `json:"discriminator_features"`
}

// DefaultModelParams returns the default hyperparameters.
func DefaultModelParams() ModelParams {
	return ModelParams{
		DLearningRate:         0.01,
		GLearningRate:         0.02,
		DL2Reg:                0.0005,
		Dropout:               0.5,
		GeneratorFeatures:     []int{256},
		DiscriminatorFeatures: []int{256},
	}
}

// TrainingParams control the training run and are not persisted.
type TrainingParams struct {
	BatchSize          int
	MaxSteps           int
	DiscriminatorSteps int
	GeneratorSteps     int
	Seed               int64
}

// DefaultTrainingParams returns the default training options.
func DefaultTrainingParams() TrainingParams {
	return TrainingParams{BatchSize: 32, MaxSteps: 2000, DiscriminatorSteps: 1, GeneratorSteps: 1}
}

// Schedule returns the number of optimizer steps per iteration.
func (p TrainingParams) Schedule() nnet.Schedule {
	return nnet.Schedule{DiscriminatorSteps: p.DiscriminatorSteps, GeneratorSteps: p.GeneratorSteps}
}

// DefaultDataset is a single normal distribution.
func DefaultDataset() nnet.DatasetParams {
	return nnet.DatasetParams{Means: []float64{15}, Stddevs: []float64{7}}
}

// Discriminator network: a relu layer with dropout for each of the feature sizes followed by a linear
// output giving the logit of the probability that the input is real.
func discriminatorConfig(features []int, dropout float64) nnet.Config {
	var conf nnet.Config
	for _, n := range features {
		conf = conf.AddLayers(nnet.Linear{Nout: n}, nnet.Activation{Atype: "relu"}, nnet.Dropout{Prob: dropout})
	}
	return conf.AddLayers(nnet.Linear{Nout: 1})
}

// Generator network: a relu layer for each of the feature sizes followed by a linear output.
func generatorConfig(features []int, dims int) nnet.Config {
	var conf nnet.Config
	for _, n := range features {
		conf = conf.AddLayers(nnet.Linear{Nout: n}, nnet.Activation{Atype: "relu"})
	}
	return conf.AddLayers(nnet.Linear{Nout: dims})
}
