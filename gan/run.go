package gan

import (
	"fmt"

	"github.com/maybellin/generative/experiment"
	"github.com/maybellin/generative/nnet"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Options for a training run.
type Options struct {
	Experiment *experiment.Flags
	Model      ModelParams
	Training   TrainingParams
	Data       nnet.DatasetParams
	// Write model/train-data.json with the per step generator and discriminator state.
	TrainData bool
	Log       *logrus.Logger
}

// tester logs the model state, records the train data and writes the summaries.
type tester struct {
	*nnet.TestLogger
	model *Model
	data  *TrainData
}

func (t *tester) Report(step int64, m nnet.Metrics) error {
	if t.data != nil {
		t.data.Add(step, t.model, m)
	}
	return t.TestLogger.Report(step, m)
}

func formatter(nnGenerator bool) func(step int64, m nnet.Metrics) string {
	return func(step int64, m nnet.Metrics) string {
		if nnGenerator {
			return fmt.Sprintf("Saved model with step %d; real = %f, fake = %f", step, m[ProbReal], m[ProbFake])
		}
		return fmt.Sprintf("Saved model with step %d; real = %f, fake = %f, mean = %f, stddev = %f",
			step, m[ProbReal], m[ProbFake], m[GeneratorMean], m[GeneratorStddev])
	}
}

// Run trains the model in the experiment directory and returns the final global step. The hyperparameters
// saved in the experiment take precedence over opts.Model. A checkpoint is always saved at the end.
func Run(opts Options) (int64, error) {
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	if err := opts.Data.Validate(); err != nil {
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
	data, err := nnet.NewDataset(opts.Data, nnet.Mixture, opts.Training.BatchSize, rng)
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
	log.Debugf("model:\n%s", model.Describe())
	for name, conf := range model.Networks() {
		if err = conf.Save(NetworkPath(exp, name)); err != nil {
			return 0, errors.Wrapf(err, "save %s config", name)
		}
	}

	summaries, err := exp.NewSummaryWriter(hparams)
	if err != nil {
		return 0, err
	}
	defer summaries.Close()

	t := &tester{TestLogger: nnet.NewTestLogger(log, summaries, ProbReal, ProbFake), model: model}
	t.Format = formatter(hparams.NNGenerator)
	if opts.TrainData {
		t.data = NewTrainData(opts.Data)
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
		Plan:            opts.Training.Schedule().Plan(),
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
	if t.data != nil {
		path := exp.Path("model", "train-data.json")
		if err = t.data.Save(path); err != nil {
			return step, errors.Wrap(err, "save train data")
		}
		log.WithField("path", path).Info("saved train data")
	}
	return step, nil
}
