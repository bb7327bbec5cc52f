package gan

import (
	"flag"
	"math/rand"
	"os"
	"reflect"
	"testing"

	"github.com/maybellin/generative/experiment"
	"github.com/maybellin/generative/nnet"
	"github.com/sirupsen/logrus"
)

func testParams(nnGenerator bool) ModelParams {
	p := DefaultModelParams()
	p.NNGenerator = nnGenerator
	p.GeneratorFeatures = []int{8}
	p.DiscriminatorFeatures = []int{16}
	return p
}

func testModel(t *testing.T, p ModelParams, ckpt *experiment.Checkpoint) *Model {
	rng := rand.New(rand.NewSource(42))
	data, err := nnet.NewDataset(DefaultDataset(), nnet.Mixture, 16, rng)
	if err != nil {
		t.Fatal(err)
	}
	m, err := New(p, data, ckpt, rng)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func checkMetrics(t *testing.T, m nnet.Metrics) {
	for _, key := range []string{ProbReal, ProbFake} {
		if !(m[key] >= 0 && m[key] <= 1) {
			t.Errorf("%s = %g out of range", key, m[key])
		}
	}
	for _, key := range []string{DLoss, GLoss} {
		if !(m[key] >= 0) {
			t.Errorf("%s = %g should be positive", key, m[key])
		}
	}
}

func TestEvaluate(t *testing.T) {
	m := testModel(t, testParams(false), nil)
	defer m.Close()
	t.Logf("\n%s", m.Describe())
	metrics, err := m.Evaluate()
	if err != nil {
		t.Fatal(err)
	}
	t.Log(metrics)
	checkMetrics(t, metrics)
	if metrics[GeneratorMean] != 0 || metrics[GeneratorStddev] != 1 {
		t.Errorf("generator should start at standard normal: %v", metrics)
	}
	if len(m.Grid) != 960 || len(m.Probe()) != len(m.Grid) {
		t.Errorf("grid %d probe %d", len(m.Grid), len(m.Probe()))
	}
	if m.Grid[0] != 3 {
		t.Errorf("grid should start 12 below the data mean: %g", m.Grid[0])
	}
	if err = m.Optimize("other"); err == nil {
		t.Error("expect error for invalid objective")
	}
}

func TestTrain(t *testing.T) {
	m := testModel(t, testParams(false), nil)
	defer m.Close()
	l := logrus.New()
	l.SetLevel(logrus.WarnLevel)
	tester := nnet.NewTestLogger(l, nil, ProbReal, ProbFake)
	step, err := nnet.Train(m, nnet.Schedule{DiscriminatorSteps: 1, GeneratorSteps: 1}.Plan(), 100, tester)
	if err != nil {
		t.Fatal(err)
	}
	if step != 100 || len(tester.Stats) != 100 {
		t.Fatalf("step %d stats %d", step, len(tester.Stats))
	}
	last := tester.Stats[99].Metrics
	t.Log(last)
	checkMetrics(t, last)
	if last[GeneratorMean] <= 0 {
		t.Errorf("generator mean should move towards the data: %g", last[GeneratorMean])
	}
	if _, ok := last["ema_"+ProbReal]; !ok {
		t.Error("missing moving average")
	}
}

func TestNNGenerator(t *testing.T) {
	m := testModel(t, testParams(true), nil)
	defer m.Close()
	for _, obj := range []string{nnet.Discriminator, nnet.Generator} {
		if err := m.Optimize(obj); err != nil {
			t.Fatal(err)
		}
	}
	metrics, err := m.Evaluate()
	if err != nil {
		t.Fatal(err)
	}
	checkMetrics(t, metrics)
	if metrics[GeneratorStddev] <= 0 {
		t.Errorf("expect batch moments: %v", metrics)
	}
	c, err := m.Checkpoint()
	if err != nil {
		t.Fatal(err)
	}
	if _, err = New(testParams(false), m.Data, c, nil); err == nil {
		t.Error("expect error restoring nn generator weights into linear generator")
	}
}

func TestCheckpoint(t *testing.T) {
	m := testModel(t, testParams(false), nil)
	defer m.Close()
	for i := 0; i < 5; i++ {
		m.Optimize(nnet.Discriminator)
		m.Optimize(nnet.Generator)
		m.Advance()
	}
	c, err := m.Checkpoint()
	if err != nil {
		t.Fatal(err)
	}
	m2 := testModel(t, testParams(false), c)
	defer m2.Close()
	if m2.Step() != 5 {
		t.Errorf("step %d", m2.Step())
	}
	p1, _ := m.Parameters()
	p2, _ := m2.Parameters()
	if !reflect.DeepEqual(p1, p2) {
		t.Error("restored parameters differ")
	}
	mean1, stddev1, _ := m.Generator()
	mean2, stddev2, _ := m2.Generator()
	if mean1 != mean2 || stddev1 != stddev2 {
		t.Errorf("generator %g %g vs %g %g", mean1, stddev1, mean2, stddev2)
	}
	c.Model = "ppca"
	if _, err = New(testParams(false), m.Data, c, nil); err == nil {
		t.Error("expect error for wrong model")
	}
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	l := logrus.New()
	l.SetLevel(logrus.WarnLevel)
	fs := flag.NewFlagSet("gan_normal", flag.ContinueOnError)
	f := AddFlags(fs, false)
	err := fs.Parse([]string{"--experiment_dir", dir, "--max_steps", "3", "--batch_size", "8", "--seed", "1",
		"--discriminator_features", "8", "--generator_features", "4", "--checkpoint_every", "2"})
	if err != nil {
		t.Fatal(err)
	}
	opts := f.Options(true)
	opts.Log = l
	step, err := Run(opts)
	if err != nil {
		t.Fatal(err)
	}
	if step != 3 {
		t.Errorf("step %d", step)
	}
	exp := &experiment.Experiment{Dir: dir}
	steps, err := exp.Checkpoints()
	if err != nil || !reflect.DeepEqual(steps, []int64{2, 3}) {
		t.Errorf("checkpoints %v %v", steps, err)
	}
	data, err := LoadTrainData(exp.Path("model", "train-data.json"))
	if err != nil {
		t.Fatal(err)
	}
	if len(data.Steps) != 3 || data.Steps[0].Step != 0 || len(data.Steps[2].Discriminator.Points) != 960 {
		t.Errorf("train data: %d steps", len(data.Steps))
	}
	if data.Data.Means[0] != 15 {
		t.Errorf("data params %+v", data.Data)
	}
	conf, err := nnet.LoadConfig(NetworkPath(exp, discriminatorName))
	if err != nil || len(conf.Layers) != 4 || conf.Layers[3].String() != "linear {Nout:1}" {
		t.Errorf("discriminator config %v %v", conf, err)
	}
	if _, err = os.Stat(NetworkPath(exp, generatorName)); !os.IsNotExist(err) {
		t.Errorf("linear generator config saved: %v", err)
	}

	// resume from the latest checkpoint, saved hparams win over the flags
	opts.Experiment.LoadCheckpoint = "latest"
	opts.Model.DiscriminatorFeatures = []int{32}
	opts.Training.MaxSteps = 2
	opts.TrainData = false
	opts.Experiment.Overrides = experiment.Settings{"g_learning_rate=0.002"}
	if step, err = Run(opts); err != nil {
		t.Fatal(err)
	}
	if step != 5 {
		t.Errorf("resumed step %d", step)
	}
	var saved ModelParams
	if err = nnet.LoadJSON(exp.HparamsPath(), &saved); err != nil {
		t.Fatal(err)
	}
	if saved.GLearningRate != 0.002 || !reflect.DeepEqual(saved.DiscriminatorFeatures, []int{8}) {
		t.Errorf("saved hparams %+v", saved)
	}
	s, err := exp.OpenSummaries()
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	runs, _ := s.Runs()
	points, _ := s.Series(ProbReal)
	if len(runs) != 2 || len(points) != 5 || points[4].Step != 5 {
		t.Errorf("summaries: %d runs %v", len(runs), points)
	}
}

func TestRunMismatch(t *testing.T) {
	opts := Options{
		Experiment: &experiment.Flags{Dir: t.TempDir()},
		Model:      DefaultModelParams(),
		Training:   DefaultTrainingParams(),
		Data:       nnet.DatasetParams{Means: []float64{1, 2}, Stddevs: []float64{1}},
	}
	if _, err := Run(opts); err != nnet.ErrMismatch {
		t.Errorf("got %v", err)
	}
	if _, err := os.Stat(opts.Experiment.Dir + "/hparams.json"); err == nil {
		t.Error("hparams should not be written for invalid options")
	}
}

func TestFlags(t *testing.T) {
	fs := flag.NewFlagSet("gan_data", flag.ContinueOnError)
	f := AddFlags(fs, true)
	err := fs.Parse([]string{"--experiment_dir", "x", "--generator_features", "16", "--generator_features", "8",
		"--input_mean", "1", "--input_mean", "5", "--input_stddev", "1", "--input_stddev", "2", "--nn_generator"})
	if err != nil {
		t.Fatal(err)
	}
	opts := f.Options(false)
	if !reflect.DeepEqual(opts.Model.GeneratorFeatures, []int{16, 8}) || !reflect.DeepEqual(opts.Model.DiscriminatorFeatures, []int{256}) {
		t.Errorf("features %v %v", opts.Model.GeneratorFeatures, opts.Model.DiscriminatorFeatures)
	}
	if !opts.Model.NNGenerator || len(opts.Data.Means) != 2 || opts.Data.Stddevs[1] != 2 {
		t.Errorf("options %+v", opts)
	}
	if opts.Training.BatchSize != 32 || opts.Training.MaxSteps != 2000 {
		t.Errorf("training defaults %+v", opts.Training)
	}
}

func TestSeedRepeatable(t *testing.T) {
	l := logrus.New()
	l.SetLevel(logrus.WarnLevel)
	var results []nnet.Metrics
	for i := 0; i < 2; i++ {
		p := DefaultModelParams()
		p.Dropout = 0
		p.DiscriminatorFeatures, p.GeneratorFeatures = []int{8}, []int{4}
		opts := Options{
			Experiment: &experiment.Flags{Dir: t.TempDir()},
			Model:      p,
			Training:   TrainingParams{BatchSize: 8, MaxSteps: 2, DiscriminatorSteps: 1, GeneratorSteps: 1, Seed: 4},
			Data:       DefaultDataset(),
			Log:        l,
		}
		if _, err := Run(opts); err != nil {
			t.Fatal(err)
		}
		exp := &experiment.Experiment{Dir: opts.Experiment.Dir}
		s, err := exp.OpenSummaries()
		if err != nil {
			t.Fatal(err)
		}
		_, m, err := s.Latest()
		s.Close()
		if err != nil {
			t.Fatal(err)
		}
		results = append(results, m)
	}
	if !reflect.DeepEqual(results[0], results[1]) {
		t.Errorf("runs with the same seed differ:\n%v\n%v", results[0], results[1])
	}
}
