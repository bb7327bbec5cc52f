// Package web serves a read only dashboard over an experiment directory: the training summaries,
// the saved hyperparameters, the discriminator curves and the checkpoints.
package web

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
)

//go:embed assets
var assets embed.FS

var log = logrus.StandardLogger()

// SetLogger sets the logger used by the package.
func SetLogger(l *logrus.Logger) {
	log = l
}

// Template and main menu definition
type Templates struct {
	*template.Template
	Menu    []Link
	Options []Link
	Heading template.HTML
}

type Link struct {
	Url      string
	Name     string
	Selected bool
}

// Load and parse templates and initialise main menu
func NewTemplates() (*Templates, error) {
	var err error
	t := &Templates{Menu: []Link{}, Options: []Link{}}
	t.Template, err = template.New("").Funcs(template.FuncMap{"fmt": format}).ParseFS(assets, "assets/*.html")
	if err != nil {
		return nil, err
	}
	t.AddMenuItem(Link{Name: "stats", Url: "/stats"})
	t.AddMenuItem(Link{Name: "hparams", Url: "/hparams"})
	t.AddMenuItem(Link{Name: "curve", Url: "/curve/"})
	t.AddMenuItem(Link{Name: "checkpoints", Url: "/checkpoints/"})
	return t, nil
}

// Static returns a handler serving the stylesheet and scripts.
func Static() http.Handler {
	sub, err := fs.Sub(assets, "assets")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}

func (t *Templates) Clone() *Templates {
	return &Templates{
		Template: t.Template,
		Menu:     append([]Link{}, t.Menu...),
		Options:  append([]Link{}, t.Options...),
	}
}

func (t *Templates) Select(url string) *Templates {
	for i, key := range t.Menu {
		t.Menu[i].Selected = strings.HasPrefix(key.Url, url)
	}
	return t
}

func (t *Templates) AddMenuItem(l Link) *Templates {
	t.Menu = append(t.Menu, l)
	return t
}

func (t *Templates) AddOption(l Link) *Templates {
	t.Options = append(t.Options, l)
	return t
}

// Exec executes the named template, logging any error.
func (t *Templates) Exec(w http.ResponseWriter, name string, data interface{}) {
	if err := t.ExecuteTemplate(w, name, data); err != nil {
		logError(w, err)
	}
}

func format(x float64) string {
	return fmt.Sprintf("%.4f", x)
}

func logError(w http.ResponseWriter, err error) {
	log.Error(err)
	http.Error(w, fmt.Sprint(err), http.StatusInternalServerError)
}
