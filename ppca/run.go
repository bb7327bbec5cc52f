package ppca

import (
	"flag"
	"fmt"

	"github.com/maybellin/generative/experiment"
	"github.com/maybellin/generative/nnet"
	"github.com/sirupsen/logrus"
)

// TrainingParams control the training run and are not persisted.
type TrainingParams struct {
	BatchSize int
	MaxSteps  int
	Seed      int64
}

// Options for a training run.
type Options struct {
	Experiment *experiment.Flags
	Model      ModelParams
	Training   TrainingParams
	Data       nnet.DatasetParams
	Log        *logrus.Logger
}

// Flags holds the command line options for the ppca command.
type Flags struct {
	Experiment *experiment.Flags
	Model      ModelParams
	Training   TrainingParams
	means      experiment.Floats
	stddevs    experiment.Floats
}

// AddFlags registers the options with the flag set.
func AddFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{Model: DefaultModelParams(), Training: TrainingParams{BatchSize: 32, MaxSteps: 2000}}
	f.Experiment = experiment.AddFlags(fs)
	fs.IntVar(&f.Training.BatchSize, "batch_size", f.Training.BatchSize, "The size of the minibatch")
	fs.Float64Var(&f.Model.LearningRate, "learning_rate", f.Model.LearningRate, "The learning rate")
	fs.Float64Var(&f.Model.L2Reg, "l2_reg", f.Model.L2Reg, "The L2 regularization parameter")
	fs.IntVar(&f.Model.LatentSpaceSize, "latent_space_size", f.Model.LatentSpaceSize, "The latent space size")
	fs.Var(&f.means, "input_mean", "The mean of the input dataset (repeatable)")
	fs.Var(&f.stddevs, "input_stddev", "The standard deviation of the input dataset (repeatable)")
	fs.IntVar(&f.Training.MaxSteps, "max_steps", f.Training.MaxSteps, "The maximum number of steps to train for")
	fs.Int64Var(&f.Training.Seed, "seed", 0, "Random number seed, or random if <= 0")
	return f
}

// Options returns the training options after the flags have been parsed.
func (f *Flags) Options() Options {
	def := DefaultDataset()
	return Options{
		Experiment: f.Experiment,
		Model:      f.Model,
		Training:   f.Training,
		Data:       nnet.DatasetParams{Means: f.means.Or(def.Means...), Stddevs: f.stddevs.Or(def.Stddevs...)},
	}
}

// tester records the fitted distribution and logs the loss.
type tester struct {
	*nnet.TestLogger
	model *Model
	data  *TrainData
}

func (t *tester) Report(step int64, m nnet.Metrics) error {
	mean, cov, err := t.model.Distribution()
	if err != nil {
		return err
	}
	t.data.Add(mean, cov)
	return t.TestLogger.Report(step, m)
}

// Run trains the model in the experiment directory and returns the final global step. A checkpoint
// is saved at the end and the fitted distributions are written to train-data.txt.
func Run(opts Options) (int64, error) {
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	if err := opts.Data.Validate(); err != nil {
		return 0, err
	}
	if err := checkDims(len(opts.Data.Means)); err != nil {
		return 0, err
	}
	exp, err := opts.Experiment.Open()
	if err != nil {
		return 0, err
	}
	hparams := opts.Model
	if err = exp.LoadHparams(&hparams); err != nil {
		return 0, err
	}
	if err = exp.Override(&hparams, opts.Experiment.Overrides); err != nil {
		return 0, err
	}
	log.Infof("hparams:\n%s", nnet.Describe(hparams))

	rng := nnet.SetSeed(opts.Training.Seed)
	data, err := nnet.NewDataset(opts.Data, nnet.Independent, opts.Training.BatchSize, rng)
	if err != nil {
		return 0, err
	}
	var ckpt *experiment.Checkpoint
	path, err := exp.ResolveCheckpoint(opts.Experiment.LoadCheckpoint)
	if err != nil {
		return 0, err
	}
	if path != "" {
		if ckpt, err = experiment.LoadCheckpoint(path); err != nil {
			return 0, err
		}
	}
	model, err := New(hparams, data, ckpt, rng)
	if err != nil {
		return 0, err
	}
	defer model.Close()

	summaries, err := exp.NewSummaryWriter(hparams)
	if err != nil {
		return 0, err
	}
	defer summaries.Close()

	t := &tester{TestLogger: nnet.NewTestLogger(log, summaries, Loss), model: model, data: NewTrainData(opts.Data)}
	t.Format = func(step int64, m nnet.Metrics) string {
		return fmt.Sprintf("Model on step %d has loss = %f", step, m[Loss])
	}
	save := func(step int64) error {
		c, err := model.Checkpoint()
		if err != nil {
			return err
		}
		if _, err = exp.SaveCheckpoint(c); err != nil {
			return err
		}
		_, err = exp.Prune(opts.Experiment.KeepCheckpoints)
		return err
	}
	loop := &nnet.Loop{
		Model:           model,
		Plan:            []string{nnet.Likelihood},
		MaxSteps:        opts.Training.MaxSteps,
		Tester:          t,
		CheckpointEvery: opts.Experiment.CheckpointEvery,
		Checkpoint:      save,
	}
	step, err := loop.Run()
	if err != nil {
		return step, err
	}
	if err = save(step); err != nil {
		return step, err
	}
	path = exp.Path("train-data.txt")
	if err = t.data.Save(path); err != nil {
		return step, err
	}
	log.WithField("path", path).Info("saved train data")
	return step, nil
}
