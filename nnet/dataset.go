package nnet

import (
	"math"
	"math/rand"

	"github.com/maybellin/generative/num"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
	"gorgonia.org/tensor"
)

// ErrMismatch is returned if the means and standard deviations lists have different lengths.
var ErrMismatch = errors.New("There must be the same number of input means and standard deviations.")

// Sampling mode for a dataset.
type Mode int

const (
	// Mixture draws 1 dimensional samples from an equally weighted mixture with one component per mean.
	Mixture Mode = iota
	// Independent draws one value per mean, each from its own normal distribution.
	Independent
)

// DatasetParams are the parameters of the normal distributions which generate the data.
type DatasetParams struct {
	Means   []float64 `json:"means"`
	Stddevs []float64 `json:"stddevs"`
}

// Validate checks the parameter lists are consistent.
func (p DatasetParams) Validate() error {
	if len(p.Means) != len(p.Stddevs) {
		return ErrMismatch
	}
	if len(p.Means) == 0 {
		return errors.New("at least one input mean and standard deviation is required")
	}
	for i, s := range p.Stddevs {
		if !(s > 0) {
			return errors.Errorf("input standard deviation %d must be positive, got %g", i, s)
		}
	}
	return nil
}

// Dataset generates an unlimited stream of random batches.
type Dataset struct {
	DatasetParams
	Mode      Mode
	BatchSize int
	rng       *rand.Rand
	buffer    []float64
}

// NewDataset returns a new dataset which generates batches of the given size.
func NewDataset(params DatasetParams, mode Mode, batchSize int, rng *rand.Rand) (*Dataset, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if batchSize <= 0 {
		return nil, errors.Errorf("invalid batch size %d", batchSize)
	}
	d := &Dataset{DatasetParams: params, Mode: mode, BatchSize: batchSize, rng: rng}
	d.buffer = make([]float64, batchSize*d.Dims())
	return d, nil
}

// Dims returns the number of features per sample.
func (d *Dataset) Dims() int {
	if d.Mode == Mixture {
		return 1
	}
	return len(d.Means)
}

// Shape of each batch.
func (d *Dataset) Shape() []int {
	return []int{d.BatchSize, d.Dims()}
}

// Sample fills buf with samples in row major order, buf length must be a multiple of Dims.
func (d *Dataset) Sample(buf []float64) {
	switch d.Mode {
	case Mixture:
		for i := range buf {
			c := d.rng.Intn(len(d.Means))
			buf[i] = d.Means[c] + d.Stddevs[c]*d.rng.NormFloat64()
		}
	case Independent:
		nfeat := len(d.Means)
		for i := range buf {
			j := i % nfeat
			buf[i] = d.Means[j] + d.Stddevs[j]*d.rng.NormFloat64()
		}
	}
}

// Get next batch of data
func (d *Dataset) NextBatch() *tensor.Dense {
	d.Sample(d.buffer)
	return num.New(d.buffer, d.Shape()...)
}

// Noise returns a batch of standard normal values with the given shape.
func (d *Dataset) Noise(dims ...int) *tensor.Dense {
	data := make([]float64, num.Prod(dims))
	for i := range data {
		data[i] = d.rng.NormFloat64()
	}
	return num.New(data, dims...)
}

// Density returns the probability density of the data at x. For a mixture x has a single element,
// else one element per dimension.
func (d *Dataset) Density(x ...float64) float64 {
	switch d.Mode {
	case Mixture:
		p := 0.0
		for i, mean := range d.Means {
			p += distuv.Normal{Mu: mean, Sigma: d.Stddevs[i]}.Prob(x[0])
		}
		return p / float64(len(d.Means))
	default:
		p := 1.0
		for i, mean := range d.Means {
			p *= distuv.Normal{Mu: mean, Sigma: d.Stddevs[i]}.Prob(x[i])
		}
		return p
	}
}

// Center returns the mean of the data distribution. For a mixture this is the average component mean.
func (d *Dataset) Center() []float64 {
	if d.Mode == Mixture {
		return []float64{floats.Sum(d.Means) / float64(len(d.Means))}
	}
	return append([]float64{}, d.Means...)
}

// Grid returns evenly spaced values in [start, end) with the given step.
func Grid(start, end, step float64) []float64 {
	if step <= 0 || end <= start {
		return nil
	}
	n := int(math.Ceil((end-start)/step - 1e-9))
	if n == 1 {
		return []float64{start}
	}
	values := make([]float64, n)
	floats.Span(values, start, start+float64(n-1)*step)
	return values
}
