package web

import (
	"fmt"
	"html/template"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/maybellin/generative/experiment"
	"github.com/maybellin/generative/gan"
	"github.com/maybellin/generative/nnet"
	"github.com/pkg/errors"
)

// Experiment gives the page handlers shared access to the experiment directory. Train data is cached
// until the file is modified.
type Experiment struct {
	*experiment.Experiment
	sync.Mutex
	trainData *gan.TrainData
	modTime   time.Time
}

// NewExperiment opens an existing experiment directory.
func NewExperiment(dir string) (*Experiment, error) {
	e, err := experiment.Open(dir)
	if err != nil {
		return nil, err
	}
	return &Experiment{Experiment: e}, nil
}

func (e *Experiment) heading() template.HTML {
	return template.HTML(fmt.Sprintf("experiment: %s", template.HTMLEscapeString(e.Name())))
}

// LatestStep returns the latest step in the summaries, or -1 if there are none.
func (e *Experiment) LatestStep() (int64, error) {
	s, err := e.OpenSummaries()
	if err != nil {
		if isNotExist(err) {
			return -1, nil
		}
		return -1, err
	}
	defer s.Close()
	return s.LatestStep()
}

// Series returns the points for each tag at the latest step.
func (e *Experiment) Series() (int64, nnet.Metrics, map[string][]experiment.Point, error) {
	s, err := e.OpenSummaries()
	if err != nil {
		if isNotExist(err) {
			return -1, nil, nil, nil
		}
		return -1, nil, nil, err
	}
	defer s.Close()
	step, m, err := s.Latest()
	if err != nil {
		return -1, nil, nil, err
	}
	tags, err := s.Tags()
	if err != nil {
		return -1, nil, nil, err
	}
	series := make(map[string][]experiment.Point, len(tags))
	for _, tag := range tags {
		if series[tag], err = s.Series(tag); err != nil {
			return -1, nil, nil, err
		}
	}
	return step, m, series, nil
}

// Hparams returns the saved hyperparameters.
func (e *Experiment) Hparams() (map[string]interface{}, error) {
	params := map[string]interface{}{}
	err := nnet.LoadJSON(e.HparamsPath(), &params)
	if err != nil && isNotExist(err) {
		return params, nil
	}
	return params, err
}

// Runs returns the training runs recorded in the summaries.
func (e *Experiment) Runs() ([]experiment.Run, error) {
	s, err := e.OpenSummaries()
	if err != nil {
		if isNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer s.Close()
	return s.Runs()
}

// TrainData loads the GAN train data, or returns nil if it has not been written.
func (e *Experiment) TrainData() (*gan.TrainData, error) {
	path := e.Path("model", "train-data.json")
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if e.trainData == nil || info.ModTime() != e.modTime {
		if e.trainData, err = gan.LoadTrainData(path); err != nil {
			return nil, err
		}
		e.modTime = info.ModTime()
		log.WithField("steps", len(e.trainData.Steps)).Debug("loaded train data")
	}
	return e.trainData, nil
}

// Network is the saved layer config of one of the model networks.
type Network struct {
	Name   string
	Layers string
}

// Networks loads the saved layer configs.
func (e *Experiment) Networks() ([]Network, error) {
	var nets []Network
	for _, name := range gan.NetworkNames {
		conf, err := nnet.LoadConfig(gan.NetworkPath(e.Experiment, name))
		if os.IsNotExist(errors.Cause(err)) {
			continue
		}
		if err != nil {
			return nil, err
		}
		nets = append(nets, Network{Name: name, Layers: conf.String()})
	}
	return nets, nil
}

// CheckpointInfo describes a saved checkpoint.
type CheckpointInfo struct {
	Step  int64
	Saved time.Time
	Size  int64
}

// CheckpointList returns the saved checkpoints, newest first.
func (e *Experiment) CheckpointList() ([]CheckpointInfo, error) {
	steps, err := e.Checkpoints()
	if err != nil {
		return nil, err
	}
	var list []CheckpointInfo
	for _, step := range steps {
		info, err := os.Stat(e.CheckpointPath(step))
		if err != nil {
			continue
		}
		list = append(list, CheckpointInfo{Step: step, Saved: info.ModTime(), Size: info.Size()})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Step > list[j].Step })
	return list, nil
}

func isNotExist(err error) bool {
	return os.IsNotExist(errors.Cause(err))
}
