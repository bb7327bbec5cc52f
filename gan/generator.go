package gan

import (
	"math/rand"

	"github.com/maybellin/generative/nnet"
	"github.com/maybellin/generative/num"
	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
)

const (
	generatorName     = "generator"
	discriminatorName = "discriminator"
)

// generator maps a batch of noise to a batch of samples.
type generator interface {
	Fprop(z *G.Node) (*G.Node, error)
	Learnables() G.Nodes
	InitWeights(rng *rand.Rand) error
}

// newGenerator adds a generator to the graph. The input and output shape is [batch, dims].
func newGenerator(g *G.ExprGraph, p ModelParams, batch, dims int) (generator, error) {
	if p.NNGenerator {
		net, err := nnet.New(g, generatorName, generatorConfig(p.GeneratorFeatures, dims), []int{batch, dims}, true)
		if err != nil {
			return nil, err
		}
		return net, nil
	}
	return newLinearGenerator(g, dims), nil
}

// linearGenerator scales and shifts normal noise: x = z * stddev + mean for each dimension.
type linearGenerator struct {
	mean, stddev *G.Node
}

func newLinearGenerator(g *G.ExprGraph, dims int) *linearGenerator {
	return &linearGenerator{
		mean:   G.NewMatrix(g, G.Float64, G.WithShape(1, dims), G.WithName(generatorName+"_mean"), G.WithInit(G.Zeroes())),
		stddev: G.NewMatrix(g, G.Float64, G.WithShape(1, dims), G.WithName(generatorName+"_stddev"), G.WithInit(G.Ones())),
	}
}

func (l *linearGenerator) Fprop(z *G.Node) (*G.Node, error) {
	scaled, err := G.BroadcastHadamardProd(z, l.stddev, nil, []byte{0})
	if err != nil {
		return nil, errors.Wrap(err, "generator")
	}
	return G.BroadcastAdd(scaled, l.mean, nil, []byte{0})
}

func (l *linearGenerator) Learnables() G.Nodes {
	return G.Nodes{l.mean, l.stddev}
}

// Generator starts from the standard normal distribution.
func (l *linearGenerator) InitWeights(rng *rand.Rand) error {
	dims := l.mean.Shape().TotalSize()
	ones := make([]float64, dims)
	for i := range ones {
		ones[i] = 1
	}
	if err := num.Write(l.mean, make([]float64, dims)); err != nil {
		return err
	}
	return num.Write(l.stddev, ones)
}

// copyNodes copies the values of the src nodes to the dst nodes with the same names.
func copyNodes(src, dst G.Nodes) error {
	params, err := nnet.ExportNodes(src)
	if err != nil {
		return err
	}
	return nnet.ImportNodes(dst, params)
}
