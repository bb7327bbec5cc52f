package web

import (
	"bytes"
	"fmt"
	"html/template"
	"image/color"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/maybellin/generative/experiment"
	"github.com/maybellin/generative/nnet"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// PollInterval is how often the summaries are checked for a new step.
var PollInterval = time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Metric groups which share a chart, matched by substring. Other metrics are plotted together.
var plotGroups = []string{"probability", "loss", "mean", "cov", "stddev"}

type StatsPage struct {
	*Templates
	Step    int64
	Metrics nnet.Metrics
	Plots   []template.HTML
	exp     *Experiment
}

// Base data for handler functions to display the training summaries
func NewStatsPage(t *Templates, exp *Experiment) *StatsPage {
	p := &StatsPage{exp: exp}
	p.Templates = t.Select("/stats")
	return p
}

// Handler function for the stats template
func (p *StatsPage) Base() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		p.exp.Lock()
		defer p.exp.Unlock()
		step, m, series, err := p.exp.Series()
		if err != nil {
			logError(w, err)
			return
		}
		p.Step, p.Metrics, p.Plots = step, m, nil
		for _, group := range groupTags(series) {
			p.Plots = append(p.Plots, seriesPlot(group, series, 480, 320))
		}
		p.Heading = template.HTML(fmt.Sprintf(`%s: step <span id="step">%d</span>`, p.exp.heading(), step))
		p.Exec(w, "stats", p)
	}
}

// Handler function for websocket connection. The latest step is sent as "step:<n>" whenever it changes.
func (p *StatsPage) Websocket() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Error(err)
			return
		}
		go p.notify(conn)
	}
}

func (p *StatsPage) notify(conn *websocket.Conn) {
	defer conn.Close()
	closed := make(chan struct{})
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				close(closed)
				return
			}
		}
	}()
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()
	last := int64(-2)
	for {
		step, err := p.exp.LatestStep()
		if err != nil {
			log.Warn(err)
		} else if step != last {
			if err = conn.WriteMessage(websocket.TextMessage, []byte(fmt.Sprintf("step:%d", step))); err != nil {
				return
			}
			last = step
		}
		select {
		case <-closed:
			return
		case <-ticker.C:
		}
	}
}

// groupTags splits the tags into groups of related metrics, each group sorted by name.
func groupTags(series map[string][]experiment.Point) [][]string {
	var tags []string
	for tag := range series {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	groups := make([][]string, len(plotGroups)+1)
	for _, tag := range tags {
		i := len(plotGroups)
		for j, name := range plotGroups {
			if strings.Contains(tag, name) {
				i = j
				break
			}
		}
		groups[i] = append(groups[i], tag)
	}
	var res [][]string
	for _, g := range groups {
		if len(g) > 0 {
			res = append(res, g)
		}
	}
	return res
}

func seriesPlot(tags []string, series map[string][]experiment.Point, width, height int) template.HTML {
	plt := newPlot()
	for i, tag := range tags {
		line := newLinePlot(series[tag], i)
		plt.Add(line)
		plt.Legend.Add(tag, line)
	}
	return writePlot(plt, width, height)
}

func newPlot() *plot.Plot {
	p := plot.New()
	p.X.Padding, p.Y.Padding = 0, 0
	p.X.Tick.Label.Font.Size = vg.Points(10)
	p.Y.Tick.Label.Font.Size = vg.Points(10)
	p.Legend.Top = true
	p.Legend.TextStyle.Font.Size = vg.Points(11)
	p.Add(plotter.NewGrid())
	return p
}

// Pixels per inch when sizing SVG charts.
const svgDPI = 96

func writePlot(p *plot.Plot, w, h int) template.HTML {
	var buf bytes.Buffer
	writer, err := p.WriterTo(vg.Inch*vg.Length(w)/svgDPI, vg.Inch*vg.Length(h)/svgDPI, "svg")
	if err != nil {
		log.Error("Error writing plot: ", err)
		return ""
	}
	writer.WriteTo(&buf)
	return template.HTML(buf.String())
}

func newLinePlot(points []experiment.Point, ix int) *plotter.Line {
	pts := make(plotter.XYs, len(points))
	for i, pt := range points {
		pts[i].X, pts[i].Y = float64(pt.Step), pt.Value
	}
	return newLine(pts, plotutil.Color(ix))
}

func newLine(pts plotter.XYs, c color.Color) *plotter.Line {
	l, err := plotter.NewLine(pts)
	if err != nil {
		log.Warn(err)
		l = &plotter.Line{}
	}
	l.Width = 2
	l.Color = c
	return l
}
