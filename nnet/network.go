// Package nnet contains routines for constructing and training small networks on top of the gorgonia
// graph engine: layer configs, the multilayer network builder, the normal distribution datasets and
// the step interleaved training loop.
package nnet

import (
	"fmt"
	"math"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/maybellin/generative/num"
	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
)

// Network type represents a multilayer neural network materialised in a gorgonia graph.
type Network struct {
	Config
	Name     string
	Layers   []Layer
	Training bool
	inShape  []int
}

// Param holds the values of one named parameter tensor.
type Param struct {
	Name  string
	Shape []int
	Data  []float64
}

// New function creates a new network with the given layers. The input shape is [batch, features].
// Dropout layers are only applied if training is set.
func New(g *G.ExprGraph, name string, conf Config, inShape []int, training bool) (*Network, error) {
	if len(inShape) != 2 {
		return nil, errors.Errorf("network %s: expect 2 dimensional input, got %v", name, inShape)
	}
	n := &Network{Config: conf, Name: name, Training: training, inShape: inShape}
	shape := inShape
	for i, l := range conf.Layers {
		layer, err := l.Unmarshal()
		if err != nil {
			return nil, errors.Wrapf(err, "network %s layer %d", name, i)
		}
		layer.Init(g, fmt.Sprintf("%s_%d", name, i), shape)
		n.Layers = append(n.Layers, layer)
		shape = layer.OutShape(shape)
	}
	return n, nil
}

// Initialise network weights using a normal distribution scaled by 1/sqrt(nin). Biases are set to zero.
func (n *Network) InitWeights(rng *rand.Rand) error {
	shape := n.inShape
	for _, layer := range n.Layers {
		if l, ok := layer.(ParamLayer); ok {
			W, B := l.Params()
			scale := 1 / math.Sqrt(float64(shape[1]))
			weights := make([]float64, W.Shape().TotalSize())
			for i := range weights {
				weights[i] = rng.NormFloat64() * scale
			}
			if err := num.Write(W, weights); err != nil {
				return err
			}
			if err := num.Write(B, make([]float64, B.Shape().TotalSize())); err != nil {
				return err
			}
		}
		shape = layer.OutShape(shape)
	}
	return nil
}

// Feed forward the input to get the output node.
func (n *Network) Fprop(input *G.Node) (*G.Node, error) {
	pred := input
	var err error
	for i, layer := range n.Layers {
		if _, ok := layer.(*dropout); ok && !n.Training {
			continue
		}
		if pred, err = layer.Fprop(pred); err != nil {
			return nil, errors.Wrapf(err, "network %s layer %d", n.Name, i)
		}
	}
	return pred, nil
}

// Learnables returns the weight and bias nodes in layer order.
func (n *Network) Learnables() G.Nodes {
	var nodes G.Nodes
	for _, layer := range n.Layers {
		if l, ok := layer.(ParamLayer); ok {
			W, B := l.Params()
			nodes = append(nodes, W, B)
		}
	}
	return nodes
}

// Output shape of the network.
func (n *Network) OutShape() []int {
	shape := n.inShape
	for _, layer := range n.Layers {
		shape = layer.OutShape(shape)
	}
	return shape
}

// Copy weights and bias values to a network with the same config, usually built in another graph.
func (n *Network) CopyTo(net *Network) error {
	src, dst := n.Learnables(), net.Learnables()
	if len(src) != len(dst) {
		return errors.Errorf("copy %s to %s: have %d params, expect %d", n.Name, net.Name, len(src), len(dst))
	}
	for i, node := range src {
		data, err := num.Read(node.Value())
		if err != nil {
			return errors.Wrap(err, node.Name())
		}
		if err = num.Write(dst[i], data); err != nil {
			return err
		}
	}
	return nil
}

// Export current weights and biases.
func (n *Network) Export() ([]Param, error) {
	return ExportNodes(n.Learnables())
}

// Import weights and biases which were previously exported.
func (n *Network) Import(params []Param) error {
	return ImportNodes(n.Learnables(), params)
}

// ExportNodes copies the values bound to each node.
func ExportNodes(nodes G.Nodes) ([]Param, error) {
	params := make([]Param, len(nodes))
	for i, node := range nodes {
		data, err := num.Read(node.Value())
		if err != nil {
			return nil, errors.Wrap(err, node.Name())
		}
		params[i] = Param{Name: node.Name(), Shape: node.Shape().Clone(), Data: data}
	}
	return params, nil
}

// ImportNodes binds the param data to the node with the same name. Every node must have a matching
// param with the same size.
func ImportNodes(nodes G.Nodes, params []Param) error {
	byName := make(map[string]Param, len(params))
	for _, p := range params {
		byName[p.Name] = p
	}
	for _, node := range nodes {
		p, ok := byName[node.Name()]
		if !ok {
			return errors.Errorf("import error: no values for %s", node.Name())
		}
		size := node.Shape().TotalSize()
		if !num.SameShape(p.Shape, node.Shape()) || len(p.Data) != size {
			return errors.Errorf("import error: %s size mismatch - have %v %d - expect %v %d",
				node.Name(), p.Shape, len(p.Data), node.Shape(), size)
		}
		if err := num.Write(node, p.Data); err != nil {
			return err
		}
	}
	return nil
}

// Print network description
func (n *Network) String() string {
	s := make([]string, len(n.Layers))
	shape := n.inShape
	for i, layer := range n.Layers {
		s[i] = fmt.Sprintf("%2d: %-25s %v", i, layer.ToString(), shape)
		shape = layer.OutShape(shape)
	}
	return fmt.Sprintf("== %s ==\n%s", n.Name, strings.Join(s, "\n"))
}

// NewSolver returns an Adam solver with optional L2 regularisation.
func NewSolver(learningRate, l2Reg float64) G.Solver {
	opts := []G.SolverOpt{G.WithLearnRate(learningRate)}
	if l2Reg > 0 {
		opts = append(opts, G.WithL2Reg(l2Reg))
	}
	return G.NewAdamSolver(opts...)
}

// Set random number seed, or random seed if seed <= 0. The seed covers weight init and sampling but
// not the dropout masks, which gorgonia draws from its own time seeded generator.
func SetSeed(seed int64) *rand.Rand {
	if seed <= 0 {
		seed = time.Now().UTC().UnixNano()
	}
	log.WithField("seed", seed).Debug("random seed")
	return rand.New(rand.NewSource(seed))
}

// Exit in case of error
func CheckErr(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
