package gan

import (
	"math/rand"

	"github.com/maybellin/generative/experiment"
	"github.com/maybellin/generative/nnet"
	"github.com/maybellin/generative/num"
	"github.com/maybellin/generative/stats"
	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
)

// Added to probabilities before taking the log.
const epsilon = 1e-8

// Range and spacing of the points where the discriminator output is probed, relative to the data center.
const (
	probeHalfWidth = 12
	probeStep      = 0.025
)

// Names of the metrics computed by Evaluate.
const (
	ProbReal        = "average_probability_real"
	ProbFake        = "average_probability_fake"
	DLoss           = "d_loss"
	GLoss           = "g_loss"
	GeneratorMean   = "generator_mean"
	GeneratorStddev = "generator_stddev"
)

// Model is a GAN over a 1 dimensional mixture of normals. The discriminator and generator objectives
// are compiled into separate graphs, each with a frozen copy of the other network whose values are
// refreshed before each optimizer step. A third graph evaluates the metrics without dropout.
type Model struct {
	ModelParams
	Data  *nnet.Dataset
	Grid  []float64
	step  int64
	probe []float64
	fake  []float64

	disc     *discGraph
	gen      *genGraph
	eval     *evalGraph
	dTrainer *nnet.Objective
	gTrainer *nnet.Objective
	vm       *nnet.Objective
}

// discriminator training graph
type discGraph struct {
	g           *G.ExprGraph
	real, noise *G.Node
	gen         generator
	disc        *nnet.Network
	loss        *G.Node
}

// generator training graph
type genGraph struct {
	g     *G.ExprGraph
	noise *G.Node
	gen   generator
	disc  *nnet.Network
	loss  *G.Node
}

// evaluation graph
type evalGraph struct {
	g                         *G.ExprGraph
	real, noise, grid         *G.Node
	gen                       generator
	disc                      *nnet.Network
	pReal, pFake, dLoss, gLoss G.Value
	fake, probe               G.Value
}

// New builds the model graphs. If ckpt is not nil the weights and global step are restored from it,
// else the weights are randomly initialised.
func New(p ModelParams, data *nnet.Dataset, ckpt *experiment.Checkpoint, rng *rand.Rand) (m *Model, err error) {
	if data.Dims() != 1 {
		return nil, errors.Errorf("gan: expect 1 dimensional data, got %d", data.Dims())
	}
	c := data.Center()[0]
	m = &Model{ModelParams: p, Data: data, Grid: nnet.Grid(c-probeHalfWidth, c+probeHalfWidth, probeStep)}
	defer func() {
		if r := recover(); r != nil {
			m, err = nil, errors.Errorf("gan: build graph: %v", r)
		}
	}()
	if m.disc, err = m.buildDisc(); err != nil {
		return nil, err
	}
	if m.gen, err = m.buildGen(); err != nil {
		return nil, err
	}
	if m.eval, err = m.buildEval(); err != nil {
		return nil, err
	}
	if ckpt != nil {
		err = m.restore(ckpt)
	} else {
		err = m.init(rng)
	}
	if err != nil {
		return nil, err
	}
	if err = m.syncGenerator(); err != nil {
		return nil, err
	}
	if err = m.syncDiscriminator(); err != nil {
		return nil, err
	}
	m.dTrainer, err = nnet.NewObjective(nnet.Discriminator, m.disc.g, m.disc.loss, m.disc.disc.Learnables(),
		nnet.NewSolver(p.DLearningRate, p.DL2Reg))
	if err != nil {
		return nil, err
	}
	m.gTrainer, err = nnet.NewObjective(nnet.Generator, m.gen.g, m.gen.loss, m.gen.gen.Learnables(),
		nnet.NewSolver(p.GLearningRate, p.GL2Reg))
	if err != nil {
		return nil, err
	}
	m.vm, err = nnet.NewObjective("eval", m.eval.g, nil, nil, nil)
	return m, err
}

func (m *Model) input(g *G.ExprGraph, name string, rows int) *G.Node {
	return G.NewMatrix(g, G.Float64, G.WithShape(rows, m.Data.Dims()), G.WithName(name), G.WithInit(G.Zeroes()))
}

func (m *Model) networks(g *G.ExprGraph, batch int, training bool) (generator, *nnet.Network, error) {
	gen, err := newGenerator(g, m.ModelParams, batch, m.Data.Dims())
	if err != nil {
		return nil, nil, err
	}
	disc, err := nnet.New(g, discriminatorName, discriminatorConfig(m.DiscriminatorFeatures, m.Dropout),
		[]int{batch, m.Data.Dims()}, training)
	return gen, disc, err
}

// probability the input is real
func prob(disc *nnet.Network, x *G.Node) *G.Node {
	return G.Must(G.Sigmoid(G.Must(disc.Fprop(x))))
}

// mean(log(x + epsilon))
func meanLog(x *G.Node) *G.Node {
	return G.Must(G.Mean(G.Must(G.Log(G.Must(G.Add(x, G.NewConstant(epsilon)))))))
}

// -mean(log(p_real)) - mean(log(1 - p_fake))
func discriminatorLoss(pReal, pFake *G.Node) *G.Node {
	notFake := G.Must(G.Sub(G.NewConstant(1.0), pFake))
	return G.Must(G.Neg(G.Must(G.Add(meanLog(pReal), meanLog(notFake)))))
}

// -mean(log(p_fake))
func generatorLoss(pFake *G.Node) *G.Node {
	return G.Must(G.Neg(meanLog(pFake)))
}

func (m *Model) buildDisc() (*discGraph, error) {
	d := &discGraph{g: G.NewGraph()}
	batch := m.Data.BatchSize
	var err error
	if d.gen, d.disc, err = m.networks(d.g, batch, true); err != nil {
		return nil, err
	}
	d.real = m.input(d.g, "real", batch)
	d.noise = m.input(d.g, "noise", batch)
	fake := G.Must(d.gen.Fprop(d.noise))
	d.loss = discriminatorLoss(prob(d.disc, d.real), prob(d.disc, fake))
	return d, nil
}

func (m *Model) buildGen() (*genGraph, error) {
	d := &genGraph{g: G.NewGraph()}
	batch := m.Data.BatchSize
	var err error
	if d.gen, d.disc, err = m.networks(d.g, batch, true); err != nil {
		return nil, err
	}
	d.noise = m.input(d.g, "noise", batch)
	d.loss = generatorLoss(prob(d.disc, G.Must(d.gen.Fprop(d.noise))))
	return d, nil
}

func (m *Model) buildEval() (*evalGraph, error) {
	d := &evalGraph{g: G.NewGraph()}
	batch := m.Data.BatchSize
	var err error
	if d.gen, d.disc, err = m.networks(d.g, batch, false); err != nil {
		return nil, err
	}
	d.real = m.input(d.g, "real", batch)
	d.noise = m.input(d.g, "noise", batch)
	d.grid = m.input(d.g, "grid", len(m.Grid))
	fake := G.Must(d.gen.Fprop(d.noise))
	pReal, pFake := prob(d.disc, d.real), prob(d.disc, fake)
	G.Read(G.Must(G.Mean(pReal)), &d.pReal)
	G.Read(G.Must(G.Mean(pFake)), &d.pFake)
	G.Read(discriminatorLoss(pReal, pFake), &d.dLoss)
	G.Read(generatorLoss(pFake), &d.gLoss)
	G.Read(fake, &d.fake)
	G.Read(prob(d.disc, d.grid), &d.probe)
	return d, num.Write(d.grid, m.Grid)
}

func (m *Model) init(rng *rand.Rand) error {
	if err := m.gen.gen.InitWeights(rng); err != nil {
		return err
	}
	return m.disc.disc.InitWeights(rng)
}

// Parameters returns the current generator and discriminator weights.
func (m *Model) Parameters() ([]nnet.Param, error) {
	gen, err := nnet.ExportNodes(m.gen.gen.Learnables())
	if err != nil {
		return nil, err
	}
	disc, err := m.disc.disc.Export()
	return append(gen, disc...), err
}

// Checkpoint returns a snapshot of the weights at the current step.
func (m *Model) Checkpoint() (*experiment.Checkpoint, error) {
	params, err := m.Parameters()
	if err != nil {
		return nil, err
	}
	return &experiment.Checkpoint{Model: ModelName, Step: m.step, Params: params}, nil
}

func (m *Model) restore(c *experiment.Checkpoint) error {
	if c.Model != ModelName {
		return errors.Errorf("gan: checkpoint is for %s model", c.Model)
	}
	if err := nnet.ImportNodes(m.gen.gen.Learnables(), c.Params); err != nil {
		return err
	}
	if err := m.disc.disc.Import(c.Params); err != nil {
		return err
	}
	m.step = c.Step
	return nil
}

// copy the generator weights to the discriminator training and evaluation graphs
func (m *Model) syncGenerator() error {
	src := m.gen.gen.Learnables()
	if err := copyNodes(src, m.disc.gen.Learnables()); err != nil {
		return err
	}
	return copyNodes(src, m.eval.gen.Learnables())
}

// copy the discriminator weights to the generator training and evaluation graphs
func (m *Model) syncDiscriminator() error {
	if err := m.disc.disc.CopyTo(m.gen.disc); err != nil {
		return err
	}
	return m.disc.disc.CopyTo(m.eval.disc)
}

// Step returns the global step.
func (m *Model) Step() int64 {
	return m.step
}

// Advance increments the global step.
func (m *Model) Advance() {
	m.step++
}

// Optimize applies one solver step to the discriminator or generator weights using a new batch.
func (m *Model) Optimize(objective string) error {
	switch objective {
	case nnet.Discriminator:
		if err := num.Bind(m.disc.real, m.Data.NextBatch()); err != nil {
			return err
		}
		if err := num.Bind(m.disc.noise, m.Data.Noise(m.Data.Shape()...)); err != nil {
			return err
		}
		if err := m.dTrainer.Step(); err != nil {
			return err
		}
		return m.syncDiscriminator()
	case nnet.Generator:
		if err := num.Bind(m.gen.noise, m.Data.Noise(m.Data.Shape()...)); err != nil {
			return err
		}
		if err := m.gTrainer.Step(); err != nil {
			return err
		}
		return m.syncGenerator()
	default:
		return errors.Errorf("gan: invalid objective %q", objective)
	}
}

// Evaluate computes the metrics on a new batch and probes the discriminator output over the grid.
func (m *Model) Evaluate() (nnet.Metrics, error) {
	e := m.eval
	if err := num.Bind(e.real, m.Data.NextBatch()); err != nil {
		return nil, err
	}
	if err := num.Bind(e.noise, m.Data.Noise(m.Data.Shape()...)); err != nil {
		return nil, err
	}
	if err := m.vm.Run(); err != nil {
		return nil, err
	}
	res := nnet.Metrics{}
	for name, v := range map[string]G.Value{ProbReal: e.pReal, ProbFake: e.pFake, DLoss: e.dLoss, GLoss: e.gLoss} {
		x, err := num.Scalar(v)
		if err != nil {
			return nil, errors.Wrap(err, name)
		}
		res[name] = x
	}
	var err error
	if m.fake, err = num.Read(e.fake); err != nil {
		return nil, err
	}
	if m.probe, err = num.Read(e.probe); err != nil {
		return nil, err
	}
	mean, stddev, err := m.Generator()
	if err != nil {
		return nil, err
	}
	res[GeneratorMean], res[GeneratorStddev] = mean, stddev
	return res, nil
}

// Generator returns the mean and standard deviation of the generated distribution. For the linear
// generator these are the parameter values, else the moments of the last evaluated batch.
func (m *Model) Generator() (mean, stddev float64, err error) {
	if lin, ok := m.gen.gen.(*linearGenerator); ok {
		if mean, err = num.Scalar(lin.mean.Value()); err != nil {
			return
		}
		stddev, err = num.Scalar(lin.stddev.Value())
		return
	}
	moments := stats.NewMoments(m.fake)
	return moments.Mean, moments.StdDev, nil
}

// Probe returns the discriminator probability at each grid point from the last evaluation.
func (m *Model) Probe() []float64 {
	return m.probe
}

// Describe returns the network layers.
func (m *Model) Describe() string {
	s := m.disc.disc.String()
	if net, ok := m.gen.gen.(*nnet.Network); ok {
		s = net.String() + "\n" + s
	}
	return s
}

// Networks returns the layer configs keyed by network name. The linear generator has no layers.
func (m *Model) Networks() map[string]nnet.Config {
	nets := map[string]nnet.Config{discriminatorName: m.disc.disc.Config}
	if net, ok := m.gen.gen.(*nnet.Network); ok {
		nets[generatorName] = net.Config
	}
	return nets
}

// NetworkPath is the file in the experiment model directory holding the layer config for a network.
func NetworkPath(exp *experiment.Experiment, name string) string {
	return exp.Path("model", name+".json")
}

// NetworkNames lists the networks which may have a saved layer config.
var NetworkNames = []string{generatorName, discriminatorName}

// Close releases the compiled graphs.
func (m *Model) Close() {
	for _, obj := range []*nnet.Objective{m.dTrainer, m.gTrainer, m.vm} {
		if obj != nil {
			obj.Close()
		}
	}
}
