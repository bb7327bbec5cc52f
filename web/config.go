package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"

	"github.com/maybellin/generative/experiment"
)

type HparamsPage struct {
	*Templates
	Fields   []Field
	Networks []Network
	Runs     []experiment.Run
	exp    *Experiment
}

type Field struct {
	Name  string
	Value string
}

// Base data for handler functions to view the saved hyperparameters
func NewHparamsPage(t *Templates, exp *Experiment) *HparamsPage {
	p := &HparamsPage{exp: exp}
	p.Templates = t.Select("/hparams")
	return p
}

// Handler function for the hparams template
func (p *HparamsPage) Base() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		p.exp.Lock()
		defer p.exp.Unlock()
		params, err := p.exp.Hparams()
		if err != nil {
			logError(w, err)
			return
		}
		p.Fields = getFields(params)
		if p.Networks, err = p.exp.Networks(); err != nil {
			logError(w, err)
			return
		}
		if p.Runs, err = p.exp.Runs(); err != nil {
			logError(w, err)
			return
		}
		p.Heading = p.exp.heading()
		p.Exec(w, "hparams", p)
	}
}

func getFields(params map[string]interface{}) []Field {
	var flds []Field
	for key, val := range params {
		f := Field{Name: key, Value: fmt.Sprint(val)}
		if _, ok := val.([]interface{}); ok {
			if data, err := json.Marshal(val); err == nil {
				f.Value = string(data)
			}
		}
		flds = append(flds, f)
	}
	sort.Slice(flds, func(i, j int) bool { return flds[i].Name < flds[j].Name })
	return flds
}
