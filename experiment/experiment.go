// Package experiment manages an experiment directory: the persisted hyperparameters, the model
// checkpoints and the summaries database written while training.
package experiment

import (
	"flag"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/maybellin/generative/nnet"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	modelDir     = "model"
	summariesDir = "summaries"
	hparamsFile  = "hparams.json"
)

var log = logrus.StandardLogger()

// SetLogger sets the logger used by the package.
func SetLogger(l *logrus.Logger) {
	log = l
}

// Experiment is a directory holding all of the data for one training setup.
type Experiment struct {
	Dir string
}

// New creates the experiment directory and its model and summaries subdirectories if they do not exist.
func New(dir string) (*Experiment, error) {
	if dir == "" {
		return nil, errors.New("experiment directory is required")
	}
	e := &Experiment{Dir: dir}
	for _, d := range []string{e.ModelDir(), e.SummariesDir()} {
		if err := os.MkdirAll(d, 0755); err != nil {
			return nil, errors.Wrap(err, "create experiment")
		}
	}
	return e, nil
}

// Open an existing experiment directory.
func Open(dir string) (*Experiment, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, errors.Wrap(err, "open experiment")
	}
	if !info.IsDir() {
		return nil, errors.Errorf("open experiment: %s is not a directory", dir)
	}
	return &Experiment{Dir: dir}, nil
}

// Name of the experiment.
func (e *Experiment) Name() string {
	return filepath.Base(filepath.Clean(e.Dir))
}

// ModelDir is the directory holding the checkpoints and exported training data.
func (e *Experiment) ModelDir() string {
	return filepath.Join(e.Dir, modelDir)
}

// SummariesDir is the directory holding the summaries database.
func (e *Experiment) SummariesDir() string {
	return filepath.Join(e.Dir, summariesDir)
}

// HparamsPath is the location of the saved hyperparameters.
func (e *Experiment) HparamsPath() string {
	return filepath.Join(e.Dir, hparamsFile)
}

// Path returns the location of a file in the experiment directory.
func (e *Experiment) Path(elem ...string) string {
	return filepath.Join(append([]string{e.Dir}, elem...)...)
}

// LoadHparams reads the saved hyperparameters into v, which must be a pointer to a struct and holds the
// values from the command line. If no hyperparameters are saved yet v is written to the experiment.
// Saved values always win; every field which differs from the command line is logged.
func (e *Experiment) LoadHparams(v interface{}) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return errors.Errorf("load hparams: expect pointer to struct, got %T", v)
	}
	path := e.HparamsPath()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		log.WithField("path", path).Info("saving hparams")
		return nnet.SaveJSON(path, v)
	}
	saved := reflect.New(rv.Elem().Type())
	if err := nnet.LoadJSON(path, saved.Interface()); err != nil {
		return errors.Wrap(err, "load hparams")
	}
	for _, key := range nnet.Diff(v, saved.Interface()) {
		log.WithFields(logrus.Fields{
			"param": nnet.Tag(v, key),
			"flag":  nnet.Get(v, key),
			"saved": nnet.Get(saved.Interface(), key),
		}).Warn("using saved hparam value")
	}
	rv.Elem().Set(saved.Elem())
	return nil
}

// Override updates the hyperparameters in v from name=value settings, where name is the json name of
// the field. A name without a value sets a boolean field. The updated values are saved.
func (e *Experiment) Override(v interface{}, settings []string) error {
	if len(settings) == 0 {
		return nil
	}
	for _, s := range settings {
		name, val, hasVal := strings.Cut(s, "=")
		name = strings.TrimSpace(name)
		key := fieldName(v, name)
		if key == "" {
			return errors.Errorf("override hparams: unknown parameter %s", name)
		}
		var err error
		if hasVal {
			err = nnet.SetString(v, key, val)
		} else {
			err = nnet.SetBool(v, key, true)
		}
		if err != nil {
			return errors.Wrapf(err, "override hparams: %s", name)
		}
		log.WithFields(logrus.Fields{"param": name, "value": nnet.Get(v, key)}).Info("override hparam")
	}
	return nnet.SaveJSON(e.HparamsPath(), v)
}

func fieldName(v interface{}, name string) string {
	for _, key := range nnet.Fields(v) {
		if nnet.Tag(v, key) == name {
			return key
		}
	}
	return ""
}

// Flags are the command line options common to all training commands.
type Flags struct {
	Dir             string
	LoadCheckpoint  string
	CheckpointEvery int
	KeepCheckpoints int
	Overrides       Settings
}

// AddFlags registers the experiment options with the flag set.
func AddFlags(fs *flag.FlagSet) *Flags {
	f := new(Flags)
	fs.StringVar(&f.Dir, "experiment_dir", "", "The experiment directory to store all the data")
	fs.StringVar(&f.LoadCheckpoint, "load_checkpoint", "", "Continue training from a checkpoint: path or 'latest'")
	fs.IntVar(&f.CheckpointEvery, "checkpoint_every", 0, "Save a checkpoint every n steps if > 0")
	fs.IntVar(&f.KeepCheckpoints, "keep_checkpoints", 0, "Number of checkpoints to keep if > 0")
	fs.Var(&f.Overrides, "hparam", "Override a saved hyperparameter as name=value (repeatable)")
	return f
}

// Open creates the experiment directory given on the command line.
func (f *Flags) Open() (*Experiment, error) {
	if f.Dir == "" {
		return nil, errors.New("the --experiment_dir flag is required")
	}
	return New(f.Dir)
}
