package gan

import (
	"flag"

	"github.com/maybellin/generative/experiment"
	"github.com/maybellin/generative/nnet"
)

// Flags holds the command line options for the GAN training commands.
type Flags struct {
	Experiment *experiment.Flags
	Model      ModelParams
	Training   TrainingParams
	means      experiment.Floats
	stddevs    experiment.Floats
	gFeatures  experiment.Ints
	dFeatures  experiment.Ints
}

// AddFlags registers the options with the flag set. If repeated is set the feature sizes may be given
// more than once to add hidden layers, else each network has a single hidden layer.
func AddFlags(fs *flag.FlagSet, repeated bool) *Flags {
	f := &Flags{Model: DefaultModelParams(), Training: DefaultTrainingParams()}
	f.Experiment = experiment.AddFlags(fs)
	fs.IntVar(&f.Training.BatchSize, "batch_size", f.Training.BatchSize, "The size of the minibatch")
	fs.Float64Var(&f.Model.DLearningRate, "d_learning_rate", f.Model.DLearningRate, "The discriminator learning rate")
	fs.Float64Var(&f.Model.GLearningRate, "g_learning_rate", f.Model.GLearningRate, "The generator learning rate")
	fs.Float64Var(&f.Model.DL2Reg, "d_l2_reg", f.Model.DL2Reg, "The discriminator L2 regularization parameter")
	fs.Float64Var(&f.Model.GL2Reg, "g_l2_reg", f.Model.GL2Reg, "The generator L2 regularization parameter")
	fs.Var(&f.means, "input_mean", "The mean of the input dataset (repeatable)")
	fs.Var(&f.stddevs, "input_stddev", "The standard deviation of the input dataset (repeatable)")
	fs.IntVar(&f.Training.MaxSteps, "max_steps", f.Training.MaxSteps, "The maximum number of steps to train for")
	fs.Float64Var(&f.Model.Dropout, "dropout", f.Model.Dropout, "The dropout rate to use in the discriminator")
	fs.IntVar(&f.Training.DiscriminatorSteps, "discriminator_steps", f.Training.DiscriminatorSteps, "The number of steps to train the discriminator on each iteration")
	fs.IntVar(&f.Training.GeneratorSteps, "generator_steps", f.Training.GeneratorSteps, "The number of steps to train the generator on each iteration")
	fs.BoolVar(&f.Model.NNGenerator, "nn_generator", false, "Whether to use a neural network as a generator")
	fs.Int64Var(&f.Training.Seed, "seed", 0, "Random number seed, or random if <= 0. Runs only repeat exactly with --dropout 0")
	if repeated {
		fs.Var(&f.gFeatures, "generator_features", "The number of features in a generator hidden layer (repeatable)")
		fs.Var(&f.dFeatures, "discriminator_features", "The number of features in a discriminator hidden layer (repeatable)")
	} else {
		fs.IntVar(&f.Model.GeneratorFeatures[0], "generator_features", 256, "The number of features in the generator hidden layer")
		fs.IntVar(&f.Model.DiscriminatorFeatures[0], "discriminator_features", 256, "The number of features in the discriminator hidden layer")
	}
	return f
}

// Options returns the training options after the flags have been parsed.
func (f *Flags) Options(trainData bool) Options {
	def := DefaultDataset()
	model := f.Model
	if len(f.gFeatures) > 0 {
		model.GeneratorFeatures = f.gFeatures
	}
	if len(f.dFeatures) > 0 {
		model.DiscriminatorFeatures = f.dFeatures
	}
	return Options{
		Experiment: f.Experiment,
		Model:      model,
		Training:   f.Training,
		Data:       nnet.DatasetParams{Means: f.means.Or(def.Means...), Stddevs: f.stddevs.Or(def.Stddevs...)},
		TrainData:  trainData,
	}
}
