package web

import (
	"fmt"
	"html/template"
	"image/color"
	"math"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/maybellin/generative/gan"
	"github.com/maybellin/generative/nnet"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
)

type CurvePage struct {
	*Templates
	Index int
	Step  gan.StepData
	Plot  template.HTML
	exp   *Experiment
}

// Base data for handler functions to view the discriminator output and the generated distribution
// at each step recorded in the train data.
func NewCurvePage(t *Templates, exp *Experiment) *CurvePage {
	p := &CurvePage{exp: exp, Templates: t.Select("/curve")}
	p.AddOption(Link{Name: "next", Url: "./next"})
	p.AddOption(Link{Name: "prev", Url: "./prev"})
	p.AddOption(Link{Name: "last", Url: "./last"})
	p.AddOption(Link{Name: "first", Url: "./first"})
	return p
}

// Handler function for the curve template. The step index is taken from the url.
func (p *CurvePage) Base() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		p.exp.Lock()
		defer p.exp.Unlock()
		data, err := p.exp.TrainData()
		if err != nil {
			logError(w, err)
			return
		}
		p.Heading = p.exp.heading()
		p.Plot = ""
		if data == nil || len(data.Steps) == 0 {
			p.Exec(w, "curve", p)
			return
		}
		if index, err := strconv.Atoi(mux.Vars(r)["index"]); err == nil {
			p.Index = index
		}
		p.Index = mod(p.Index, 0, len(data.Steps)-1)
		p.Step = data.Steps[p.Index]
		p.Heading = template.HTML(fmt.Sprintf("%s: step %d of %d", p.Heading, p.Step.Step, data.Steps[len(data.Steps)-1].Step))
		p.Plot = curvePlot(data, p.Index, 720, 400)
		p.Exec(w, "curve", p)
	}
}

// Set option from top menu
func (p *CurvePage) Setopt() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		p.exp.Lock()
		defer p.exp.Unlock()
		switch mux.Vars(r)["opt"] {
		case "next":
			p.Index++
		case "prev":
			p.Index--
		case "first":
			p.Index = 0
		case "last":
			p.Index = -1
		}
		http.Redirect(w, r, "/curve/"+strconv.Itoa(p.Index), http.StatusFound)
	}
}

// plot the discriminator probability with the data and generator densities scaled to a maximum of 1
func curvePlot(data *gan.TrainData, index int, width, height int) template.HTML {
	step := data.Steps[index]
	n := len(step.Discriminator.Points)
	disc := make(plotter.XYs, n)
	for i, pt := range step.Discriminator.Points {
		disc[i].X, disc[i].Y = pt.X, pt.Y
	}
	plt := newPlot()
	plt.Y.Min, plt.Y.Max = 0, 1
	addLine := func(name string, pts plotter.XYs, c color.Color) {
		line := newLine(pts, c)
		plt.Add(line)
		plt.Legend.Add(name, line)
	}
	addLine("discriminator", disc, plotutil.Color(0))
	if dataset, err := nnet.NewDataset(data.Data, nnet.Mixture, 1, nil); err == nil {
		addLine("data", density(disc, func(x float64) float64 { return dataset.Density(x) }), plotutil.Color(1))
	}
	if step.Generator.Stddev != 0 {
		gen := distuv.Normal{Mu: step.Generator.Mean, Sigma: math.Abs(step.Generator.Stddev)}
		addLine("generator", density(disc, gen.Prob), plotutil.Color(2))
	}
	return writePlot(plt, width, height)
}

// density evaluated at the x values of pts, scaled so the maximum is 1
func density(pts plotter.XYs, pdf func(float64) float64) plotter.XYs {
	if len(pts) == 0 {
		return nil
	}
	y := make([]float64, len(pts))
	for i, pt := range pts {
		y[i] = pdf(pt.X)
	}
	if peak := floats.Max(y); peak > 0 {
		floats.Scale(1/peak, y)
	}
	res := make(plotter.XYs, len(pts))
	for i, pt := range pts {
		res[i].X, res[i].Y = pt.X, y[i]
	}
	return res
}

// wrap index to the range [min, max]
func mod(i, min, max int) int {
	n := max - min + 1
	return ((i-min)%n+n)%n + min
}
