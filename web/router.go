package web

import (
	"net/http"

	"github.com/gorilla/mux"
)

// NewRouter returns the dashboard routes for the experiment.
func NewRouter(exp *Experiment) (*mux.Router, error) {
	t, err := NewTemplates()
	if err != nil {
		return nil, err
	}
	statsPage := NewStatsPage(t.Clone(), exp)
	hparamsPage := NewHparamsPage(t.Clone(), exp)
	curvePage := NewCurvePage(t.Clone(), exp)
	checkpointPage := NewCheckpointPage(t.Clone(), exp)

	r := mux.NewRouter()
	r.Handle("/", http.RedirectHandler("/stats", http.StatusFound))
	r.PathPrefix("/static/").Handler(Static())

	r.HandleFunc("/stats", statsPage.Base())
	r.HandleFunc("/ws", statsPage.Websocket())

	r.HandleFunc("/hparams", hparamsPage.Base())

	r.HandleFunc("/curve/", curvePage.Base())
	r.HandleFunc("/curve/{index:-?[0-9]+}", curvePage.Base())
	r.HandleFunc("/curve/{opt:(?:next|prev|first|last)}", curvePage.Setopt())

	r.HandleFunc("/checkpoints/", checkpointPage.Base())
	r.HandleFunc("/checkpoints/{step:[0-9]+}", checkpointPage.Base())
	return r, nil
}
