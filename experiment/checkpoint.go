package experiment

import (
	"encoding/gob"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/maybellin/generative/nnet"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// CheckpointVersion is incremented when the checkpoint format changes.
const CheckpointVersion = 1

const (
	checkpointPrefix = "checkpoint-"
	checkpointData   = "data"
	latest           = "latest"
)

// Checkpoint is the saved state of a model at a global step. Optimizer state is not included.
type Checkpoint struct {
	Version int
	Step    int64
	Model   string
	Saved   time.Time
	Params  []nnet.Param
}

// CheckpointPath returns the data file for the checkpoint at step.
func (e *Experiment) CheckpointPath(step int64) string {
	return filepath.Join(e.ModelDir(), checkpointPrefix+strconv.FormatInt(step, 10), checkpointData)
}

// SaveCheckpoint writes the checkpoint data in gob format and returns the path.
func (e *Experiment) SaveCheckpoint(c *Checkpoint) (string, error) {
	c.Version = CheckpointVersion
	if c.Saved.IsZero() {
		c.Saved = time.Now()
	}
	filePath := e.CheckpointPath(c.Step)
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return "", errors.Wrap(err, "save checkpoint")
	}
	tmpPath := filePath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return "", errors.Wrap(err, "save checkpoint")
	}
	if err = gob.NewEncoder(f).Encode(c); err != nil {
		f.Close()
		return "", errors.Wrap(err, "save checkpoint")
	}
	if err = f.Close(); err != nil {
		return "", err
	}
	if err = os.Rename(tmpPath, filePath); err != nil {
		return "", err
	}
	log.WithFields(logrus.Fields{"step": c.Step, "path": filePath}).Info("saved checkpoint")
	return filePath, nil
}

// LoadCheckpoint reads back a gob encoded checkpoint file.
func LoadCheckpoint(filePath string) (*Checkpoint, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Wrap(err, "load checkpoint")
	}
	defer f.Close()
	c := new(Checkpoint)
	if err = gob.NewDecoder(f).Decode(c); err != nil {
		return nil, errors.Wrapf(err, "load checkpoint %s", filePath)
	}
	if c.Version != CheckpointVersion {
		return nil, errors.Errorf("load checkpoint %s: version %d not supported", filePath, c.Version)
	}
	log.WithFields(logrus.Fields{"step": c.Step, "path": filePath}).Info("loaded checkpoint")
	return c, nil
}

// Checkpoints returns the steps of the saved checkpoints in ascending order.
func (e *Experiment) Checkpoints() ([]int64, error) {
	entries, err := os.ReadDir(e.ModelDir())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var steps []int64
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), checkpointPrefix) {
			continue
		}
		step, err := strconv.ParseInt(strings.TrimPrefix(entry.Name(), checkpointPrefix), 10, 64)
		if err != nil {
			continue
		}
		if _, err := os.Stat(e.CheckpointPath(step)); err == nil {
			steps = append(steps, step)
		}
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i] < steps[j] })
	return steps, nil
}

// Latest returns the path of the checkpoint with the highest step, or an empty string if there are none.
func (e *Experiment) Latest() (string, error) {
	steps, err := e.Checkpoints()
	if err != nil || len(steps) == 0 {
		return "", err
	}
	return e.CheckpointPath(steps[len(steps)-1]), nil
}

// Prune removes all but the newest keep checkpoints and returns the removed steps.
func (e *Experiment) Prune(keep int) ([]int64, error) {
	if keep <= 0 {
		return nil, nil
	}
	steps, err := e.Checkpoints()
	if err != nil || len(steps) <= keep {
		return nil, err
	}
	removed := steps[:len(steps)-keep]
	for _, step := range removed {
		if err = os.RemoveAll(filepath.Dir(e.CheckpointPath(step))); err != nil {
			return nil, err
		}
		log.WithField("step", step).Debug("removed checkpoint")
	}
	return removed, nil
}

// ResolveCheckpoint converts the load_checkpoint option to a data file path. An empty argument means
// start from scratch, "latest" is the newest checkpoint in the experiment and a checkpoint directory
// refers to the data file inside it.
func (e *Experiment) ResolveCheckpoint(arg string) (string, error) {
	switch arg {
	case "":
		return "", nil
	case latest:
		path, err := e.Latest()
		if err == nil && path == "" {
			err = errors.Errorf("no checkpoints in %s", e.ModelDir())
		}
		return path, err
	}
	info, err := os.Stat(arg)
	if err != nil {
		return "", errors.Wrap(err, "checkpoint")
	}
	if info.IsDir() {
		return filepath.Join(arg, checkpointData), nil
	}
	return arg, nil
}
