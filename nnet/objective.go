package nnet

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	G "gorgonia.org/gorgonia"
)

var log = logrus.StandardLogger()

// SetLogger sets the logger used by the package.
func SetLogger(l *logrus.Logger) {
	log = l
}

// Objective is a compiled graph with a scalar cost which is minimised with respect to a set of learnable
// nodes. Graphs without a cost are compiled for evaluation only.
type Objective struct {
	Name       string
	Graph      *G.ExprGraph
	Cost       *G.Node
	Learnables G.Nodes
	vm         G.VM
	solver     G.Solver
}

// NewObjective adds the gradient nodes to the graph and compiles it. No nodes may be added to the graph
// afterwards. Input values must be bound to the learnable nodes before calling this.
func NewObjective(name string, g *G.ExprGraph, cost *G.Node, learnables G.Nodes, solver G.Solver) (*Objective, error) {
	o := &Objective{Name: name, Graph: g, Cost: cost, Learnables: learnables, solver: solver}
	if cost != nil && len(learnables) > 0 {
		if _, err := G.Grad(cost, learnables...); err != nil {
			return nil, errors.Wrapf(err, "%s: gradient", name)
		}
		o.vm = G.NewTapeMachine(g, G.BindDualValues(learnables...))
	} else {
		o.vm = G.NewTapeMachine(g)
	}
	return o, nil
}

// Run executes the graph once without updating the learnables.
func (o *Objective) Run() error {
	defer o.vm.Reset()
	return errors.Wrapf(o.vm.RunAll(), "%s: run", o.Name)
}

// Step executes the graph and applies one solver update to the learnables.
func (o *Objective) Step() error {
	if o.solver == nil {
		return errors.Errorf("%s: no solver", o.Name)
	}
	if err := o.Run(); err != nil {
		return err
	}
	return errors.Wrapf(o.solver.Step(G.NodesToValueGrads(o.Learnables)), "%s: solver step", o.Name)
}

// Close releases the tape machine.
func (o *Objective) Close() error {
	return o.vm.Close()
}
