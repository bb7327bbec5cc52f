// Package num contains helpers to move float64 data in and out of gorgonia graph values.
package num

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// New returns a dense float64 tensor with the given shape backed by a copy of data.
// If data is nil the tensor is zero filled.
func New(data []float64, dims ...int) *tensor.Dense {
	backing := make([]float64, Prod(dims))
	copy(backing, data)
	return tensor.New(tensor.WithShape(dims...), tensor.WithBacking(backing))
}

// Eye returns an n x n identity matrix.
func Eye(n int) *tensor.Dense {
	data := make([]float64, n*n)
	for i := 0; i < n; i++ {
		data[i*n+i] = 1
	}
	return New(data, n, n)
}

// Read copies the contents of a graph value to a new slice. Scalars are returned as a one element slice.
func Read(v G.Value) ([]float64, error) {
	if v == nil {
		return nil, errors.New("read: value not set")
	}
	switch d := v.Data().(type) {
	case float64:
		return []float64{d}, nil
	case []float64:
		return append([]float64{}, d...), nil
	default:
		return nil, errors.Errorf("read: unsupported data type %T", d)
	}
}

// Scalar returns the first element of a graph value.
func Scalar(v G.Value) (float64, error) {
	data, err := Read(v)
	if err != nil {
		return 0, err
	}
	if len(data) == 0 {
		return 0, errors.New("scalar: empty value")
	}
	return data[0], nil
}

// Write binds a copy of data to an input node. The length must match the node shape.
func Write(n *G.Node, data []float64) error {
	dims := n.Shape().Clone()
	if Prod(dims) != len(data) {
		return errors.Errorf("write %s: have %d values, node shape %v", n.Name(), len(data), dims)
	}
	return errors.Wrapf(G.Let(n, New(data, dims...)), "write %s", n.Name())
}

// Bind binds a tensor to an input node after checking the shape.
func Bind(n *G.Node, t *tensor.Dense) error {
	if !SameShape(n.Shape(), t.Shape()) {
		return errors.Errorf("bind %s: shape %v, node shape %v", n.Name(), t.Shape(), n.Shape())
	}
	return errors.Wrapf(G.Let(n, t), "bind %s", n.Name())
}

// Prod returns the product of the dimensions, the number of elements in a tensor of that shape.
func Prod(dims []int) int {
	prod := 1
	for _, d := range dims {
		prod *= d
	}
	return prod
}

// SameShape reports whether two shapes have the same dimensions.
func SameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Format data as a matrix with the given number of columns.
func Format(data []float64, cols int) string {
	if cols <= 0 {
		cols = len(data)
	}
	var s []string
	for i := 0; i < len(data); i += cols {
		end := i + cols
		if end > len(data) {
			end = len(data)
		}
		row := make([]string, end-i)
		for j, x := range data[i:end] {
			row[j] = fmt.Sprintf("%9.4f", x)
		}
		s = append(s, strings.Join(row, " "))
	}
	return strings.Join(s, "\n")
}
