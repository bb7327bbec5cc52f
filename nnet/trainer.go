package nnet

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/maybellin/generative/stats"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Objectives which can be optimised in a training iteration.
const (
	Discriminator = "discriminator"
	Generator     = "generator"
	Likelihood    = "likelihood"
)

// Number of steps used for the moving averages of smoothed metrics.
const emaN = 10

// Metrics are the named scalar values recorded at a training step.
type Metrics map[string]float64

// Keys returns the metric names in sorted order.
func (m Metrics) Keys() []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func (m Metrics) String() string {
	var s []string
	for _, key := range m.Keys() {
		s = append(s, fmt.Sprintf("%s = %f", key, m[key]))
	}
	return strings.Join(s, ", ")
}

// Fields converts the metrics to logrus fields.
func (m Metrics) Fields() logrus.Fields {
	f := logrus.Fields{}
	for key, val := range m {
		f[key] = val
	}
	return f
}

// Model is trained by the Loop. Evaluate computes the metrics on a fresh batch without updating any
// weights, Optimize applies one solver step for the named objective and Advance increments the global step.
type Model interface {
	Step() int64
	Evaluate() (Metrics, error)
	Optimize(objective string) error
	Advance()
}

// Schedule sets the number of optimizer steps per objective within one training iteration.
type Schedule struct {
	DiscriminatorSteps int
	GeneratorSteps     int
}

// Plan returns the order of the optimizer steps for one iteration: half the discriminator steps (at least
// one), then the generator steps, then the remaining discriminator steps.
func (s Schedule) Plan() []string {
	var plan []string
	first := s.DiscriminatorSteps / 2
	if first < 1 {
		first = 1
	}
	for i := 0; i < first; i++ {
		plan = append(plan, Discriminator)
	}
	for i := 0; i < s.GeneratorSteps; i++ {
		plan = append(plan, Generator)
	}
	for i := 0; i < s.DiscriminatorSteps/2; i++ {
		plan = append(plan, Discriminator)
	}
	return plan
}

// Tester interface is called from the training loop. Report is called with the metrics at the start of
// each iteration and Summary with the metrics after the global step has been incremented.
type Tester interface {
	Report(step int64, m Metrics) error
	Summary(step int64, m Metrics) error
}

// SummaryWriter persists the summary metrics for each step.
type SummaryWriter interface {
	Add(step int64, m Metrics) error
}

// Training statistics
type Stats struct {
	Step    int64
	Metrics Metrics
	Elapsed time.Duration
}

// TestLogger is a Tester which logs the reported metrics, adds moving averages for the Smooth metrics
// and writes the summaries.
type TestLogger struct {
	Log       *logrus.Logger
	Summaries SummaryWriter
	Smooth    []string
	LogEvery  int
	Format    func(step int64, m Metrics) string
	Stats     []Stats
	ema       map[string]stats.EMA
	start     time.Time
}

// Create a new tester which logs stats and writes summaries if w is not nil.
func NewTestLogger(l *logrus.Logger, w SummaryWriter, smooth ...string) *TestLogger {
	return &TestLogger{Log: l, Summaries: w, Smooth: smooth, LogEvery: 1, ema: map[string]stats.EMA{}, start: time.Now()}
}

func (t *TestLogger) Report(step int64, m Metrics) error {
	if t.LogEvery > 0 && step%int64(t.LogEvery) == 0 {
		msg := fmt.Sprintf("step %d: %s", step, m)
		if t.Format != nil {
			msg = t.Format(step, m)
		}
		t.Log.WithField("step", step).Info(msg)
	}
	return nil
}

func (t *TestLogger) Summary(step int64, m Metrics) error {
	for _, key := range t.Smooth {
		if val, ok := m[key]; ok {
			t.ema[key] = stats.EMA(t.ema[key].Add(val, emaN))
			m["ema_"+key] = float64(t.ema[key])
		}
	}
	t.Stats = append(t.Stats, Stats{Step: step, Metrics: m, Elapsed: time.Since(t.start)})
	if t.Summaries == nil {
		return nil
	}
	return t.Summaries.Add(step, m)
}

// Loop drives the training of a model.
type Loop struct {
	Model           Model
	Plan            []string
	MaxSteps        int
	Tester          Tester
	CheckpointEvery int
	Checkpoint      func(step int64) error
}

// Train the model for the given number of iterations, returns the final global step.
func Train(model Model, plan []string, maxSteps int, test Tester) (int64, error) {
	l := &Loop{Model: model, Plan: plan, MaxSteps: maxSteps, Tester: test}
	return l.Run()
}

// Run the training loop. On each iteration the metrics are reported, every objective in the plan is
// optimised in order, the global step is incremented and the summaries are written.
func (l *Loop) Run() (int64, error) {
	if len(l.Plan) == 0 {
		return l.Model.Step(), errors.New("train: empty plan")
	}
	start := time.Now()
	for i := 0; i < l.MaxSteps; i++ {
		step := l.Model.Step()
		m, err := l.Model.Evaluate()
		if err != nil {
			return step, errors.Wrapf(err, "evaluate step %d", step)
		}
		if err = l.Tester.Report(step, m); err != nil {
			return step, err
		}
		for _, obj := range l.Plan {
			if err = l.Model.Optimize(obj); err != nil {
				return step, errors.Wrapf(err, "optimize %s step %d", obj, step)
			}
		}
		l.Model.Advance()
		step = l.Model.Step()
		if m, err = l.Model.Evaluate(); err != nil {
			return step, errors.Wrapf(err, "evaluate step %d", step)
		}
		if err = l.Tester.Summary(step, m); err != nil {
			return step, err
		}
		if l.CheckpointEvery > 0 && l.Checkpoint != nil && step%int64(l.CheckpointEvery) == 0 && i < l.MaxSteps-1 {
			if err = l.Checkpoint(step); err != nil {
				return step, err
			}
		}
	}
	log.WithFields(logrus.Fields{"steps": l.MaxSteps, "step": l.Model.Step()}).
		Infof("run time: %s", time.Since(start).Round(10*time.Millisecond))
	return l.Model.Step(), nil
}
