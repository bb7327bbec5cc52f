package ppca

import (
	"math"
	"os"
	"strconv"
	"strings"
	"text/template"

	"github.com/maybellin/generative/nnet"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Contour level for the 2 dimensional plots.
const level = 0.035

// TrainData records the fitted distribution at each reported step.
type TrainData struct {
	Data        nnet.DatasetParams
	Means       [][]float64
	Covariances [][][]float64
}

// NewTrainData returns a new empty recorder for the given data distribution.
func NewTrainData(data nnet.DatasetParams) *TrainData {
	return &TrainData{Data: data}
}

// Add the fitted mean and covariance.
func (t *TrainData) Add(mean []float64, cov mat.Symmetric) {
	n := cov.SymmetricDim()
	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = make([]float64, n)
		for j := range rows[i] {
			rows[i][j] = cov.At(i, j)
		}
	}
	t.Means = append(t.Means, append([]float64{}, mean...))
	t.Covariances = append(t.Covariances, rows)
}

var plot2D = template.Must(template.New("2d").Parse(`
means = {{.Means}};
stddevs = {{.Covariances}};
level = {{.Level}};

Table[
  ContourPlot[
    {
        PDF[MultinormalDistribution[{{.DataMean}}, {{.DataCovariance}}], {x, y}] == level,
        PDF[MultinormalDistribution[means[[step]], stddevs[[step]]], {x, y}]  == level
    },
    {x, {{.Min}}, {{.Max}}},
    {y, {{.Min}}, {{.Max}}},
    PlotRange -> Full,
    MaxRecursion -> 10
  ],
  {step, 1, Length[means]}
]
`))

var plot1D = template.Must(template.New("1d").Parse(`
means = {{.Means}};
stddevs = {{.Covariances}};

Table[
  Plot[
    {
        PDF[NormalDistribution[{{index .Data.Means 0}}, {{index .Data.Stddevs 0}}], x],
        PDF[NormalDistribution[means[[step, 1]], Sqrt[stddevs[[step, 1, 1]]]], x]
    },
    {x, {{.Min}}, {{.Max}}},
    PlotRange -> Full
  ],
  {step, 1, Length[means]}
]
`))

// Format the recorded steps as Mathematica code which plots the fitted distribution against the
// data distribution at each step.
func (t *TrainData) Format() (string, error) {
	dims := len(t.Data.Means)
	lo, hi := make([]float64, dims), make([]float64, dims)
	variance := make([]float64, dims)
	for i, mean := range t.Data.Means {
		lo[i] = mean - 3*t.Data.Stddevs[i]
		hi[i] = mean + 3*t.Data.Stddevs[i]
		variance[i] = t.Data.Stddevs[i] * t.Data.Stddevs[i]
	}
	cov := make([][]float64, dims)
	for i := range cov {
		cov[i] = make([]float64, dims)
		cov[i][i] = variance[i]
	}
	args := map[string]interface{}{
		"Data":           t.Data,
		"Means":          formatList(t.Means),
		"Covariances":    formatList(t.Covariances),
		"Level":          formatList(level),
		"DataMean":       formatList(t.Data.Means),
		"DataCovariance": formatList(cov),
		"Min":            formatList(math.Floor(floats.Min(lo))),
		"Max":            formatList(math.Ceil(floats.Max(hi))),
	}
	tmpl := plot2D
	if dims == 1 {
		tmpl = plot1D
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, args); err != nil {
		return "", errors.Wrap(err, "format train data")
	}
	return b.String(), nil
}

// Save the Mathematica code to a file.
func (t *TrainData) Save(filePath string) error {
	text, err := t.Format()
	if err != nil {
		return err
	}
	return os.WriteFile(filePath, []byte(text), 0644)
}

// formatList formats numbers and nested lists of numbers as Mathematica lists.
func formatList(v interface{}) string {
	switch x := v.(type) {
	case float64:
		return strconv.FormatFloat(x, 'f', 6, 64)
	case []float64:
		s := make([]string, len(x))
		for i, val := range x {
			s[i] = formatList(val)
		}
		return "{" + strings.Join(s, ",") + "}"
	case [][]float64:
		s := make([]string, len(x))
		for i, val := range x {
			s[i] = formatList(val)
		}
		return "{" + strings.Join(s, ",") + "}"
	case [][][]float64:
		s := make([]string, len(x))
		for i, val := range x {
			s[i] = formatList(val)
		}
		return "{" + strings.Join(s, ",") + "}"
	default:
		panic(errors.Errorf("formatList: unsupported type %T", v))
	}
}
