package experiment

import (
	"flag"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/maybellin/generative/nnet"
)

type params struct {
	LearningRate float64 `json:"learning_rate"`
	Features     []int   `json:"features"`
	Neural       bool    `json:"neural"`
}

func TestNew(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exp")
	e, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, d := range []string{e.ModelDir(), e.SummariesDir()} {
		if info, err := os.Stat(d); err != nil || !info.IsDir() {
			t.Errorf("%s not created: %v", d, err)
		}
	}
	if e.Name() != "exp" {
		t.Errorf("name %s", e.Name())
	}
	if _, err = New(""); err == nil {
		t.Error("expect error for empty dir")
	}
	if _, err = Open(filepath.Join(dir, "missing")); err == nil {
		t.Error("expect error opening missing dir")
	}
}

func TestLoadHparams(t *testing.T) {
	e, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	p := &params{LearningRate: 0.01, Features: []int{256}}
	if err = e.LoadHparams(p); err != nil {
		t.Fatal(err)
	}
	if _, err = os.Stat(e.HparamsPath()); err != nil {
		t.Fatal("hparams not saved:", err)
	}
	p2 := &params{LearningRate: 0.5, Features: []int{8, 8}}
	if err = e.LoadHparams(p2); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(p, p2) {
		t.Errorf("saved hparams should win: got %+v", p2)
	}
	if err = e.LoadHparams(params{}); err == nil {
		t.Error("expect error for non pointer")
	}
}

func TestOverride(t *testing.T) {
	e, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	p := &params{LearningRate: 0.01, Features: []int{256}}
	if err = e.LoadHparams(p); err != nil {
		t.Fatal(err)
	}
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	f := AddFlags(fs)
	if err = fs.Parse([]string{"--hparam", "learning_rate=0.1", "--hparam", "features=8,16", "--hparam", "neural"}); err != nil {
		t.Fatal(err)
	}
	if err = e.Override(p, f.Overrides); err != nil {
		t.Fatal(err)
	}
	expect := &params{LearningRate: 0.1, Features: []int{8, 16}, Neural: true}
	if !reflect.DeepEqual(p, expect) {
		t.Errorf("got %+v", p)
	}
	saved := &params{}
	if err = e.LoadHparams(saved); err != nil || !reflect.DeepEqual(saved, expect) {
		t.Errorf("saved %+v %v", saved, err)
	}
	for _, s := range []string{"missing=1", "learning_rate=abc", "learning_rate"} {
		if err = e.Override(p, []string{s}); err == nil {
			t.Errorf("expect error for %s", s)
		}
	}
	if err = f.Overrides.Set("=1"); err == nil {
		t.Error("expect error for empty name")
	}
}

func TestFlags(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	f := AddFlags(fs)
	var means Floats
	var features Ints
	fs.Var(&means, "input_mean", "")
	fs.Var(&features, "features", "")
	err := fs.Parse([]string{"--experiment_dir", "/tmp/x", "--input_mean", "1", "--input_mean=2.5", "--features", "4,8",
		"--checkpoint_every", "100", "--load_checkpoint", "latest"})
	if err != nil {
		t.Fatal(err)
	}
	if f.Dir != "/tmp/x" || f.CheckpointEvery != 100 || f.LoadCheckpoint != "latest" {
		t.Errorf("flags %+v", f)
	}
	if !reflect.DeepEqual([]float64(means), []float64{1, 2.5}) || means.String() != "1,2.5" {
		t.Errorf("means %v", means)
	}
	if !reflect.DeepEqual(features.Or(256), []int{4, 8}) {
		t.Errorf("features %v", features)
	}
	var empty Floats
	if !reflect.DeepEqual(empty.Or(15), []float64{15}) {
		t.Errorf("defaults %v", empty.Or(15))
	}
	if err = means.Set("abc"); err == nil {
		t.Error("expect parse error")
	}
	if _, err = (&Flags{}).Open(); err == nil {
		t.Error("expect error without experiment dir")
	}
}

func TestCheckpoints(t *testing.T) {
	e, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if path, err := e.Latest(); err != nil || path != "" {
		t.Errorf("expect no checkpoints: %q %v", path, err)
	}
	if _, err = e.ResolveCheckpoint("latest"); err == nil {
		t.Error("expect error resolving latest with no checkpoints")
	}
	params := []nnet.Param{{Name: "w", Shape: []int{1, 2}, Data: []float64{1, 2}}}
	for _, step := range []int64{5, 100, 20} {
		if _, err = e.SaveCheckpoint(&Checkpoint{Step: step, Model: "test", Params: params}); err != nil {
			t.Fatal(err)
		}
	}
	steps, err := e.Checkpoints()
	if err != nil || !reflect.DeepEqual(steps, []int64{5, 20, 100}) {
		t.Fatalf("steps %v %v", steps, err)
	}
	path, err := e.ResolveCheckpoint("latest")
	if err != nil || path != e.CheckpointPath(100) {
		t.Fatalf("latest %s %v", path, err)
	}
	c, err := LoadCheckpoint(path)
	if err != nil {
		t.Fatal(err)
	}
	if c.Step != 100 || c.Version != CheckpointVersion || !reflect.DeepEqual(c.Params, params) {
		t.Errorf("loaded %+v", c)
	}
	if path, _ = e.ResolveCheckpoint(filepath.Dir(e.CheckpointPath(5))); path != e.CheckpointPath(5) {
		t.Errorf("resolve dir: %s", path)
	}
	if path, _ = e.ResolveCheckpoint(""); path != "" {
		t.Errorf("resolve empty: %s", path)
	}
	removed, err := e.Prune(2)
	if err != nil || !reflect.DeepEqual(removed, []int64{5}) {
		t.Errorf("prune %v %v", removed, err)
	}
	if steps, _ = e.Checkpoints(); !reflect.DeepEqual(steps, []int64{20, 100}) {
		t.Errorf("after prune %v", steps)
	}
}

func TestSummaries(t *testing.T) {
	e, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	w, err := e.NewSummaryWriter(params{LearningRate: 0.1})
	if err != nil {
		t.Fatal(err)
	}
	for step := int64(1); step <= 3; step++ {
		if err = w.Add(step, nnet.Metrics{"loss": 1 / float64(step), "real": 0.5}); err != nil {
			t.Fatal(err)
		}
	}
	w.Close()
	w2, err := e.NewSummaryWriter(params{LearningRate: 0.1})
	if err != nil {
		t.Fatal(err)
	}
	w2.Add(3, nnet.Metrics{"loss": 0.25})
	w2.Close()

	s, err := e.OpenSummaries()
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	runs, err := s.Runs()
	if err != nil || len(runs) != 2 || runs[0].Hparams != `{"learning_rate":0.1,"features":null,"neural":false}` {
		t.Errorf("runs %+v %v", runs, err)
	}
	tags, err := s.Tags()
	if err != nil || !reflect.DeepEqual(tags, []string{"loss", "real"}) {
		t.Errorf("tags %v %v", tags, err)
	}
	step, m, err := s.Latest()
	if err != nil || step != 3 || m["loss"] != 0.25 || m["real"] != 0.5 {
		t.Errorf("latest %d %v %v", step, m, err)
	}
	points, err := s.Series("loss")
	if err != nil {
		t.Fatal(err)
	}
	expect := []Point{{1, 1}, {2, 0.5}, {3, 0.25}}
	if !reflect.DeepEqual(points, expect) {
		t.Errorf("series %v", points)
	}
}

func TestSummariesEmpty(t *testing.T) {
	e, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	w, err := e.NewSummaryWriter(params{})
	if err != nil {
		t.Fatal(err)
	}
	w.Close()
	s, err := e.OpenSummaries()
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if step, err := s.LatestStep(); err != nil || step != -1 {
		t.Errorf("latest step %d %v", step, err)
	}
	if step, m, err := s.Latest(); err != nil || step != -1 || len(m) != 0 {
		t.Errorf("latest %d %v %v", step, m, err)
	}
}
