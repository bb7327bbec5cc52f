package nnet

import (
	"math"
	"math/rand"
	"testing"

	"github.com/maybellin/generative/num"
	"github.com/maybellin/generative/stats"
)

func TestValidate(t *testing.T) {
	err := DatasetParams{Means: []float64{1, 2}, Stddevs: []float64{1}}.Validate()
	if err != ErrMismatch {
		t.Errorf("got %v", err)
	}
	if err.Error() != "There must be the same number of input means and standard deviations." {
		t.Errorf("message: %s", err)
	}
	for _, p := range []DatasetParams{{}, {Means: []float64{1}, Stddevs: []float64{0}}, {Means: []float64{1}, Stddevs: []float64{-2}}} {
		if err := p.Validate(); err == nil {
			t.Errorf("expect error for %+v", p)
		}
	}
	if err := (DatasetParams{Means: []float64{15}, Stddevs: []float64{7}}).Validate(); err != nil {
		t.Error(err)
	}
}

func TestMixture(t *testing.T) {
	d, err := NewDataset(DatasetParams{Means: []float64{-10, 10}, Stddevs: []float64{0.5, 0.5}}, Mixture, 1000, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatal(err)
	}
	batch := d.NextBatch()
	if s := batch.Shape(); s[0] != 1000 || s[1] != 1 {
		t.Fatalf("shape %v", s)
	}
	data := batch.Data().([]float64)
	low := 0
	for _, x := range data {
		if math.Abs(math.Abs(x)-10) > 3 {
			t.Fatalf("sample %g not near a component", x)
		}
		if x < 0 {
			low++
		}
	}
	if low < 400 || low > 600 {
		t.Errorf("components not equally weighted: %d of 1000 below zero", low)
	}
	if c := d.Center(); c[0] != 0 {
		t.Errorf("center: %v", c)
	}
}

func TestIndependent(t *testing.T) {
	d, err := NewDataset(DatasetParams{Means: []float64{5, 10}, Stddevs: []float64{1.2, 2.4}}, Independent, 5000, rand.New(rand.NewSource(2)))
	if err != nil {
		t.Fatal(err)
	}
	if d.Dims() != 2 {
		t.Fatalf("dims %d", d.Dims())
	}
	data := d.NextBatch().Data().([]float64)
	for i := range d.Means {
		col := make([]float64, d.BatchSize)
		for j := range col {
			col[j] = data[2*j+i]
		}
		m := stats.NewMoments(col)
		t.Logf("column %d: %+v", i, m)
		if math.Abs(m.Mean-d.Means[i]) > 0.2 || math.Abs(m.StdDev-d.Stddevs[i]) > 0.2 {
			t.Errorf("column %d: got %+v", i, m)
		}
	}
	noise := d.Noise(4, 3)
	if num.Prod(noise.Shape()) != 12 {
		t.Errorf("noise shape %v", noise.Shape())
	}
}

func TestDensity(t *testing.T) {
	d, _ := NewDataset(DatasetParams{Means: []float64{-3, 4}, Stddevs: []float64{1, 2}}, Mixture, 1, rand.New(rand.NewSource(1)))
	grid := Grid(-20, 20, 0.025)
	if len(grid) != 1600 {
		t.Fatalf("grid length %d", len(grid))
	}
	total := 0.0
	for _, x := range grid {
		total += d.Density(x) * 0.025
	}
	if math.Abs(total-1) > 1e-3 {
		t.Errorf("density integrates to %g", total)
	}
}

func TestGrid(t *testing.T) {
	tests := []struct {
		start, end, step float64
		n                int
	}{
		{-12, 12, 0.025, 960},
		{0, 1, 0.3, 4},
		{0, 0.1, 1, 1},
		{1, 0, 0.1, 0},
	}
	for _, test := range tests {
		g := Grid(test.start, test.end, test.step)
		if len(g) != test.n {
			t.Errorf("grid %+v: got %d values", test, len(g))
			continue
		}
		if test.n > 0 && (g[0] != test.start || g[len(g)-1] >= test.end) {
			t.Errorf("grid %+v: range %g %g", test, g[0], g[len(g)-1])
		}
	}
}
