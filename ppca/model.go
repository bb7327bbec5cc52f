// Package ppca fits a probabilistic principal component analysis model to samples from independent
// normal distributions in one or two dimensions.
package ppca

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/maybellin/generative/experiment"
	"github.com/maybellin/generative/nnet"
	"github.com/maybellin/generative/num"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Model name stored in checkpoints.
const ModelName = "ppca"

// Name of the loss metric.
const Loss = "loss"

// ModelParams are the hyperparameters saved with the experiment.
type ModelParams struct {
	LearningRate    float64 `json:"learning_rate"`
	L2Reg           float64 `json:"l2_reg"`
	LatentSpaceSize int     `json:"latent_space_size"`
}

// DefaultModelParams returns the default hyperparameters.
func DefaultModelParams() ModelParams {
	return ModelParams{LearningRate: 0.01, L2Reg: 0.0005, LatentSpaceSize: 2}
}

// DefaultDataset has two independent dimensions.
func DefaultDataset() nnet.DatasetParams {
	return nnet.DatasetParams{Means: []float64{5, 10}, Stddevs: []float64{1.2, 2.4}}
}

// Model of the data as x = W z + mu + e with z ~ N(0, I) and e ~ N(0, exp(log_var) I), so that
// x ~ N(mu, W W' + exp(log_var) I). The loss is the mean negative log likelihood of a batch.
type Model struct {
	ModelParams
	Data   *nnet.Dataset
	dims   int
	step   int64
	g      *G.ExprGraph
	x      *G.Node
	w      *G.Node
	mu     *G.Node
	logVar *G.Node
	loss   G.Value
	obj    *nnet.Objective
}

// New builds the model graph. If ckpt is not nil the parameters and global step are restored from it.
func New(p ModelParams, data *nnet.Dataset, ckpt *experiment.Checkpoint, rng *rand.Rand) (m *Model, err error) {
	dims := data.Dims()
	if err = checkDims(dims); err != nil {
		return nil, err
	}
	if p.LatentSpaceSize < 1 {
		return nil, errors.Errorf("ppca: invalid latent space size %d", p.LatentSpaceSize)
	}
	m = &Model{ModelParams: p, Data: data, dims: dims, g: G.NewGraph()}
	defer func() {
		if r := recover(); r != nil {
			m, err = nil, errors.Errorf("ppca: build graph: %v", r)
		}
	}()
	m.x = G.NewMatrix(m.g, G.Float64, G.WithShape(data.BatchSize, dims), G.WithName("x"), G.WithInit(G.Zeroes()))
	m.w = G.NewMatrix(m.g, G.Float64, G.WithShape(dims, p.LatentSpaceSize), G.WithName("ppca_w"), G.WithInit(G.Zeroes()))
	m.mu = G.NewMatrix(m.g, G.Float64, G.WithShape(1, dims), G.WithName("ppca_mu"), G.WithInit(G.Zeroes()))
	m.logVar = G.NewMatrix(m.g, G.Float64, G.WithShape(1, 1), G.WithName("ppca_log_var"), G.WithInit(G.Zeroes()))
	cost := m.buildLoss()
	G.Read(cost, &m.loss)

	if ckpt != nil {
		err = m.restore(ckpt)
	} else {
		err = m.init(rng)
	}
	if err != nil {
		return nil, err
	}
	m.obj, err = nnet.NewObjective(nnet.Likelihood, m.g, cost, m.Learnables(), nnet.NewSolver(p.LearningRate, p.L2Reg))
	return m, err
}

func checkDims(dims int) error {
	if dims < 1 || dims > 2 {
		return errors.Errorf("ppca: only 1 or 2 dimensions are supported, got %d", dims)
	}
	return nil
}

// Learnables returns the model parameters.
func (m *Model) Learnables() G.Nodes {
	return G.Nodes{m.w, m.mu, m.logVar}
}

// covariance node: W W' + exp(log_var) I
func (m *Model) covariance() *G.Node {
	wwt := G.Must(G.Mul(m.w, G.Must(G.Transpose(m.w))))
	variance := G.Must(G.Sum(G.Must(G.Exp(m.logVar))))
	eye := G.NewConstant(num.Eye(m.dims), G.WithName("eye"))
	return G.Must(G.Add(wwt, G.Must(G.Mul(variance, eye))))
}

func at(x *G.Node, i, j int) *G.Node {
	return G.Must(G.Slice(x, G.S(i), G.S(j)))
}

func mul(a, b *G.Node) *G.Node {
	return G.Must(G.Mul(a, b))
}

// Closed form negative log likelihood, averaged over the batch.
func (m *Model) buildLoss() *G.Node {
	c := m.covariance()
	diff := G.Must(G.BroadcastSub(m.x, m.mu, nil, []byte{0}))
	half := G.NewConstant(0.5)
	norm := G.NewConstant(float64(m.dims) * 0.5 * math.Log(2*math.Pi))
	if m.dims == 1 {
		v := G.Must(G.Sum(c))
		sq := G.Must(G.Mean(G.Must(G.Square(diff))))
		quad := G.Must(G.Div(sq, v))
		return G.Must(G.Add(mul(half, G.Must(G.Add(quad, G.Must(G.Log(v))))), norm))
	}
	a, b, d := at(c, 0, 0), at(c, 0, 1), at(c, 1, 1)
	det := G.Must(G.Sub(mul(a, d), mul(b, b)))
	x0 := G.Must(G.Slice(diff, nil, G.S(0)))
	x1 := G.Must(G.Slice(diff, nil, G.S(1)))
	s00 := G.Must(G.Mean(G.Must(G.Square(x0))))
	s11 := G.Must(G.Mean(G.Must(G.Square(x1))))
	s01 := G.Must(G.Mean(G.Must(G.HadamardProd(x0, x1))))
	// (d s00 - 2 b s01 + a s11) / det
	numer := G.Must(G.Sub(mul(d, s00), mul(G.Must(G.Add(b, b)), s01)))
	numer = G.Must(G.Add(numer, mul(a, s11)))
	quad := G.Must(G.Div(numer, det))
	return G.Must(G.Add(mul(half, G.Must(G.Add(quad, G.Must(G.Log(det))))), norm))
}

// Mean is initialised to zero and the noise variance to one.
func (m *Model) init(rng *rand.Rand) error {
	w := make([]float64, m.w.Shape().TotalSize())
	scale := 1 / math.Sqrt(float64(m.LatentSpaceSize))
	for i := range w {
		w[i] = rng.NormFloat64() * scale
	}
	if err := num.Write(m.w, w); err != nil {
		return err
	}
	if err := num.Write(m.mu, make([]float64, m.dims)); err != nil {
		return err
	}
	return num.Write(m.logVar, []float64{0})
}

func (m *Model) restore(c *experiment.Checkpoint) error {
	if c.Model != ModelName {
		return errors.Errorf("ppca: checkpoint is for %s model", c.Model)
	}
	if err := nnet.ImportNodes(m.Learnables(), c.Params); err != nil {
		return err
	}
	m.step = c.Step
	return nil
}

// Checkpoint returns a snapshot of the parameters at the current step.
func (m *Model) Checkpoint() (*experiment.Checkpoint, error) {
	params, err := nnet.ExportNodes(m.Learnables())
	if err != nil {
		return nil, err
	}
	return &experiment.Checkpoint{Model: ModelName, Step: m.step, Params: params}, nil
}

// Step returns the global step.
func (m *Model) Step() int64 {
	return m.step
}

// Advance increments the global step.
func (m *Model) Advance() {
	m.step++
}

// Optimize applies one solver step using a new batch.
func (m *Model) Optimize(objective string) error {
	if objective != nnet.Likelihood {
		return errors.Errorf("ppca: invalid objective %q", objective)
	}
	if err := num.Bind(m.x, m.Data.NextBatch()); err != nil {
		return err
	}
	return m.obj.Step()
}

// Loss returns the loss for the batch without updating the parameters.
func (m *Model) Loss(batch *tensor.Dense) (float64, error) {
	if err := num.Bind(m.x, batch); err != nil {
		return 0, err
	}
	if err := m.obj.Run(); err != nil {
		return 0, err
	}
	return num.Scalar(m.loss)
}

// Evaluate computes the loss on a new batch along with the mean and covariance of the fitted distribution.
func (m *Model) Evaluate() (nnet.Metrics, error) {
	loss, err := m.Loss(m.Data.NextBatch())
	if err != nil {
		return nil, err
	}
	mean, cov, err := m.Distribution()
	if err != nil {
		return nil, err
	}
	res := nnet.Metrics{Loss: loss}
	for i := 0; i < m.dims; i++ {
		res[fmt.Sprintf("mean_%d", i)] = mean[i]
		for j := 0; j < m.dims; j++ {
			res[fmt.Sprintf("cov_%d%d", i, j)] = cov.At(i, j)
		}
	}
	return res, nil
}

// Distribution returns the mean and covariance of the fitted normal distribution.
func (m *Model) Distribution() ([]float64, *mat.SymDense, error) {
	mean, err := num.Read(m.mu.Value())
	if err != nil {
		return nil, nil, err
	}
	wdata, err := num.Read(m.w.Value())
	if err != nil {
		return nil, nil, err
	}
	logVar, err := num.Scalar(m.logVar.Value())
	if err != nil {
		return nil, nil, err
	}
	w := mat.NewDense(m.dims, m.LatentSpaceSize, wdata)
	cov := mat.NewSymDense(m.dims, nil)
	cov.SymOuterK(1, w)
	variance := math.Exp(logVar)
	for i := 0; i < m.dims; i++ {
		cov.SetSym(i, i, cov.At(i, i)+variance)
	}
	return mean, cov, nil
}

// Close releases the compiled graph.
func (m *Model) Close() {
	if m.obj != nil {
		m.obj.Close()
	}
}
