package nnet

import (
	"reflect"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

func TestPlan(t *testing.T) {
	D, G := Discriminator, Generator
	tests := []struct {
		sched Schedule
		plan  []string
	}{
		{Schedule{1, 1}, []string{D, G}},
		{Schedule{2, 1}, []string{D, G, D}},
		{Schedule{3, 2}, []string{D, G, G, D}},
		{Schedule{4, 1}, []string{D, D, G, D, D}},
		{Schedule{0, 1}, []string{D, G}},
	}
	for _, test := range tests {
		if p := test.sched.Plan(); !reflect.DeepEqual(p, test.plan) {
			t.Errorf("%+v: got %v expect %v", test.sched, p, test.plan)
		}
	}
}

type fakeModel struct {
	step  int64
	calls []string
	fail  string
}

func (m *fakeModel) Step() int64 { return m.step }

func (m *fakeModel) Evaluate() (Metrics, error) {
	return Metrics{"value": float64(m.step)}, nil
}

func (m *fakeModel) Optimize(obj string) error {
	if obj == m.fail {
		return errors.New("failed")
	}
	m.calls = append(m.calls, obj)
	return nil
}

func (m *fakeModel) Advance() { m.step++ }

type recorder struct {
	reports, summaries []int64
	values             []float64
}

func (r *recorder) Report(step int64, m Metrics) error {
	r.reports = append(r.reports, step)
	return nil
}

func (r *recorder) Summary(step int64, m Metrics) error {
	r.summaries = append(r.summaries, step)
	r.values = append(r.values, m["value"])
	return nil
}

func TestLoop(t *testing.T) {
	model := &fakeModel{step: 10}
	rec := &recorder{}
	var saved []int64
	l := &Loop{
		Model:           model,
		Plan:            Schedule{2, 1}.Plan(),
		MaxSteps:        3,
		Tester:          rec,
		CheckpointEvery: 2,
		Checkpoint:      func(step int64) error { saved = append(saved, step); return nil },
	}
	step, err := l.Run()
	if err != nil {
		t.Fatal(err)
	}
	if step != 13 {
		t.Errorf("final step %d", step)
	}
	if !reflect.DeepEqual(rec.reports, []int64{10, 11, 12}) {
		t.Errorf("reports at %v", rec.reports)
	}
	if !reflect.DeepEqual(rec.summaries, []int64{11, 12, 13}) || !reflect.DeepEqual(rec.values, []float64{11, 12, 13}) {
		t.Errorf("summaries at %v values %v", rec.summaries, rec.values)
	}
	if !reflect.DeepEqual(saved, []int64{12}) {
		t.Errorf("checkpoints at %v", saved)
	}
	if len(model.calls) != 9 || model.calls[1] != Generator {
		t.Errorf("calls %v", model.calls)
	}
}

func TestLoopError(t *testing.T) {
	model := &fakeModel{fail: Generator}
	_, err := Train(model, Schedule{1, 1}.Plan(), 5, &recorder{})
	if err == nil || !strings.Contains(err.Error(), "optimize generator step 0") {
		t.Errorf("got %v", err)
	}
	if _, err = Train(model, nil, 5, &recorder{}); err == nil {
		t.Error("expect error for empty plan")
	}
}

type memWriter map[int64]Metrics

func (w memWriter) Add(step int64, m Metrics) error {
	w[step] = m
	return nil
}

func TestTestLoggerEMA(t *testing.T) {
	l := logrus.New()
	l.SetLevel(logrus.WarnLevel)
	w := memWriter{}
	tester := NewTestLogger(l, w, "p")
	for i, p := range []float64{1, 0, 0} {
		if err := tester.Report(int64(i), Metrics{"p": p}); err != nil {
			t.Fatal(err)
		}
		if err := tester.Summary(int64(i+1), Metrics{"p": p}); err != nil {
			t.Fatal(err)
		}
	}
	if len(w) != 3 || len(tester.Stats) != 3 {
		t.Fatalf("got %d summaries", len(w))
	}
	ema := w[3]["ema_p"]
	t.Logf("summaries: %v", w)
	if !(ema > 0 && ema < 1) || w[1]["ema_p"] != 1 {
		t.Errorf("moving average: %v", w)
	}
	if s := w[3].String(); !strings.HasPrefix(s, "ema_p = 0.") || !strings.HasSuffix(s, ", p = 0.000000") {
		t.Errorf("metrics string: %s", s)
	}
}
