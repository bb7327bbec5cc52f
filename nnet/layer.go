package nnet

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
)

// Layer interface type represents one layer of the neural net.
type Layer interface {
	Init(g *G.ExprGraph, name string, inShape []int) Layer
	OutShape(inShape []int) []int
	Fprop(in *G.Node) (*G.Node, error)
	ToString() string
}

// ParamLayer is a layer with weight and bias parameters
type ParamLayer interface {
	Layer
	Params() (W, B *G.Node)
}

// Layer configuration details
type LayerConfig struct {
	Type string
	Data json.RawMessage
}

type ConfigLayer interface {
	Marshal() LayerConfig
}

// Unmarshal JSON data and construct new layer
func (l LayerConfig) Unmarshal() (Layer, error) {
	switch l.Type {
	case "linear":
		cfg := new(Linear)
		return cfg.unmarshal(l.Data)
	case "activation":
		cfg := new(Activation)
		return cfg.unmarshal(l.Data)
	case "dropout":
		cfg := new(Dropout)
		return cfg.unmarshal(l.Data)
	default:
		return nil, errors.Errorf("invalid layer type: %s", l.Type)
	}
}

func (l LayerConfig) String() string {
	layer, err := l.Unmarshal()
	if err != nil {
		return err.Error()
	}
	return layer.ToString()
}

// Linear fully connected layer, implements ParamLayer interface.
type Linear struct {
	Nout int
}

func (c Linear) Marshal() LayerConfig {
	return LayerConfig{Type: "linear", Data: marshal(c)}
}

func (c Linear) ToString() string {
	return fmt.Sprintf("linear %+v", c)
}

func (c *Linear) unmarshal(data json.RawMessage) (Layer, error) {
	if err := json.Unmarshal(data, c); err != nil {
		return nil, errors.Wrap(err, "linear layer")
	}
	if c.Nout <= 0 {
		return nil, errors.Errorf("linear layer: invalid output size %d", c.Nout)
	}
	return &linear{Linear: *c}, nil
}

// Sigmoid, tanh, relu or leaky relu activation layer.
type Activation struct {
	Atype string
}

func (c Activation) Marshal() LayerConfig {
	return LayerConfig{Type: "activation", Data: marshal(c)}
}

func (c Activation) ToString() string {
	return fmt.Sprintf("activation %+v", c)
}

func (c *Activation) unmarshal(data json.RawMessage) (Layer, error) {
	if err := json.Unmarshal(data, c); err != nil {
		return nil, errors.Wrap(err, "activation layer")
	}
	layer := &activation{Activation: *c}
	switch c.Atype {
	case "sigmoid":
		layer.activ = G.Sigmoid
	case "tanh":
		layer.activ = G.Tanh
	case "relu":
		layer.activ = G.Rectify
	case "leaky":
		layer.activ = func(x *G.Node) (*G.Node, error) { return G.LeakyRelu(x, 0.01) }
	default:
		return nil, errors.Errorf("activation type %s invalid", c.Atype)
	}
	return layer, nil
}

// Dropout layer zeros each input with probability Prob during training. The masks are not reproducible
// from a seed.
type Dropout struct {
	Prob float64
}

func (c Dropout) Marshal() LayerConfig {
	return LayerConfig{Type: "dropout", Data: marshal(c)}
}

func (c Dropout) ToString() string {
	return fmt.Sprintf("dropout %+v", c)
}

func (c *Dropout) unmarshal(data json.RawMessage) (Layer, error) {
	if err := json.Unmarshal(data, c); err != nil {
		return nil, errors.Wrap(err, "dropout layer")
	}
	if c.Prob < 0 || c.Prob >= 1 {
		return nil, errors.Errorf("dropout probability %g out of range", c.Prob)
	}
	return &dropout{Dropout: *c}, nil
}

// linear layer implementation: y = x.W + b with x of shape [batch, nin]
type linear struct {
	Linear
	w, b *G.Node
}

func (l *linear) OutShape(inShape []int) []int {
	return []int{inShape[0], l.Nout}
}

func (l *linear) Init(g *G.ExprGraph, name string, inShape []int) Layer {
	nIn := inShape[1]
	l.w = G.NewMatrix(g, G.Float64, G.WithShape(nIn, l.Nout), G.WithName(name+"_w"), G.WithInit(G.Zeroes()))
	l.b = G.NewMatrix(g, G.Float64, G.WithShape(1, l.Nout), G.WithName(name+"_b"), G.WithInit(G.Zeroes()))
	return l
}

func (l *linear) Fprop(in *G.Node) (*G.Node, error) {
	xw, err := G.Mul(in, l.w)
	if err != nil {
		return nil, err
	}
	return G.BroadcastAdd(xw, l.b, nil, []byte{0})
}

func (l *linear) Params() (W, B *G.Node) {
	return l.w, l.b
}

// activation layers
type activation struct {
	Activation
	activ func(x *G.Node) (*G.Node, error)
}

func (l *activation) Init(g *G.ExprGraph, name string, inShape []int) Layer { return l }

func (l *activation) OutShape(inShape []int) []int { return inShape }

func (l *activation) Fprop(in *G.Node) (*G.Node, error) {
	return l.activ(in)
}

// dropout layer implementation
type dropout struct {
	Dropout
}

func (l *dropout) Init(g *G.ExprGraph, name string, inShape []int) Layer { return l }

func (l *dropout) OutShape(inShape []int) []int { return inShape }

func (l *dropout) Fprop(in *G.Node) (*G.Node, error) {
	if l.Prob == 0 {
		return in, nil
	}
	return G.Dropout(in, l.Prob)
}

func marshal(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
