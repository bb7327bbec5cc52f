package web

import (
	"html/template"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/maybellin/generative/experiment"
	"github.com/maybellin/generative/num"
	"github.com/maybellin/generative/stats"
)

type CheckpointPage struct {
	*Templates
	Checkpoints []CheckpointInfo
	Selected    int64
	Params      []ParamInfo
	exp         *Experiment
}

// ParamInfo summarises the values of one saved parameter.
type ParamInfo struct {
	Name   string
	Shape  []int
	Values *stats.Average
	Data   string
}

// Parameters with at most this many values are listed in full.
const maxListed = 16

// Base data for handler functions to list the checkpoints and view the saved parameters
func NewCheckpointPage(t *Templates, exp *Experiment) *CheckpointPage {
	p := &CheckpointPage{exp: exp}
	p.Templates = t.Select("/checkpoints")
	return p
}

// Handler function for the checkpoints template. If a step is given the parameters saved at that
// step are summarised.
func (p *CheckpointPage) Base() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		p.exp.Lock()
		defer p.exp.Unlock()
		var err error
		if p.Checkpoints, err = p.exp.CheckpointList(); err != nil {
			logError(w, err)
			return
		}
		p.Heading = p.exp.heading()
		p.Params = nil
		if step, err := strconv.ParseInt(mux.Vars(r)["step"], 10, 64); err == nil {
			c, err := experiment.LoadCheckpoint(p.exp.CheckpointPath(step))
			if err != nil {
				http.Error(w, err.Error(), http.StatusNotFound)
				return
			}
			p.Selected = step
			p.Params = paramInfo(c)
			p.Heading += template.HTML(" model: " + template.HTMLEscapeString(c.Model))
		}
		p.Exec(w, "checkpoints", p)
	}
}

func paramInfo(c *experiment.Checkpoint) []ParamInfo {
	info := make([]ParamInfo, len(c.Params))
	for i, param := range c.Params {
		avg := new(stats.Average)
		for _, x := range param.Data {
			avg.Add(x)
		}
		info[i] = ParamInfo{Name: param.Name, Shape: param.Shape, Values: avg}
		if len(param.Data) <= maxListed {
			cols := 0
			if len(param.Shape) > 0 {
				cols = param.Shape[len(param.Shape)-1]
			}
			info[i].Data = num.Format(param.Data, cols)
		}
	}
	return info
}
