package experiment

import (
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/maybellin/generative/nnet"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

const summariesFile = "summaries.db"

const schema = `
CREATE TABLE IF NOT EXISTS runs(
	id TEXT PRIMARY KEY,
	started REAL NOT NULL,
	hparams TEXT
);
CREATE TABLE IF NOT EXISTS scalars(
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run TEXT NOT NULL,
	step INTEGER NOT NULL,
	tag TEXT NOT NULL,
	value REAL NOT NULL,
	wall REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS scalars_tag_step ON scalars(tag, step);
`

// SummariesPath is the location of the summaries database.
func (e *Experiment) SummariesPath() string {
	return filepath.Join(e.SummariesDir(), summariesFile)
}

// SummaryWriter appends the scalar metrics for each training step to the summaries database.
// Each process writes under a new run id.
type SummaryWriter struct {
	RunID string
	db    *sql.DB
}

// NewSummaryWriter opens the summaries database, creating it if needed, and records a new run with the
// given hyperparameters.
func (e *Experiment) NewSummaryWriter(hparams interface{}) (*SummaryWriter, error) {
	if err := os.MkdirAll(e.SummariesDir(), 0755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", e.SummariesPath())
	if err != nil {
		return nil, errors.Wrap(err, "open summaries")
	}
	if _, err = db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		log.WithError(err).Warn("summaries: journal mode not set")
	}
	if _, err = db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create summaries")
	}
	params, err := json.Marshal(hparams)
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "encode hparams")
	}
	w := &SummaryWriter{RunID: uuid.NewString(), db: db}
	if _, err = db.Exec("INSERT INTO runs(id, started, hparams) VALUES(?,?,?)", w.RunID, wallTime(time.Now()), string(params)); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "add run")
	}
	log.WithField("run", w.RunID).Debug("writing summaries")
	return w, nil
}

// Add the metrics for a step in a single transaction.
func (w *SummaryWriter) Add(step int64, m nnet.Metrics) error {
	tx, err := w.db.Begin()
	if err != nil {
		return errors.Wrap(err, "add summary")
	}
	wall := wallTime(time.Now())
	for _, tag := range m.Keys() {
		if _, err = tx.Exec("INSERT INTO scalars(run, step, tag, value, wall) VALUES(?,?,?,?,?)", w.RunID, step, tag, m[tag], wall); err != nil {
			tx.Rollback()
			return errors.Wrapf(err, "add summary %s step %d", tag, step)
		}
	}
	return errors.Wrap(tx.Commit(), "add summary")
}

// Close the database.
func (w *SummaryWriter) Close() error {
	return w.db.Close()
}

// Run is one training process which wrote summaries.
type Run struct {
	ID      string
	Started time.Time
	Hparams string
}

// Point is a scalar value at a step.
type Point struct {
	Step  int64
	Value float64
}

// Summaries provides read access to the summaries database.
type Summaries struct {
	db *sql.DB
}

// OpenSummaries opens the summaries database for reading. It must already exist.
func (e *Experiment) OpenSummaries() (*Summaries, error) {
	path := e.SummariesPath()
	if _, err := os.Stat(path); err != nil {
		return nil, errors.Wrap(err, "open summaries")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open summaries")
	}
	return &Summaries{db: db}, nil
}

// Close the database.
func (s *Summaries) Close() error {
	return s.db.Close()
}

// Runs returns all of the training runs in start order.
func (s *Summaries) Runs() ([]Run, error) {
	rows, err := s.db.Query("SELECT id, started, COALESCE(hparams, '') FROM runs ORDER BY started, rowid")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var runs []Run
	for rows.Next() {
		var r Run
		var started float64
		if err = rows.Scan(&r.ID, &started, &r.Hparams); err != nil {
			return nil, err
		}
		r.Started = fromWallTime(started)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Tags returns the distinct metric names in sorted order.
func (s *Summaries) Tags() ([]string, error) {
	rows, err := s.db.Query("SELECT DISTINCT tag FROM scalars ORDER BY tag")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var tags []string
	for rows.Next() {
		var tag string
		if err = rows.Scan(&tag); err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

// LatestStep returns the highest step recorded, or -1 if there are no summaries.
func (s *Summaries) LatestStep() (int64, error) {
	var step sql.NullInt64
	if err := s.db.QueryRow("SELECT MAX(step) FROM scalars").Scan(&step); err != nil {
		return -1, err
	}
	if !step.Valid {
		return -1, nil
	}
	return step.Int64, nil
}

// Latest returns the most recently written value for each tag at the latest step.
func (s *Summaries) Latest() (int64, nnet.Metrics, error) {
	step, err := s.LatestStep()
	if err != nil {
		return 0, nil, err
	}
	rows, err := s.db.Query("SELECT tag, value FROM scalars WHERE step = ? ORDER BY id", step)
	if err != nil {
		return 0, nil, err
	}
	defer rows.Close()
	m := nnet.Metrics{}
	for rows.Next() {
		var tag string
		var value float64
		if err = rows.Scan(&tag, &value); err != nil {
			return 0, nil, err
		}
		m[tag] = value
	}
	return step, m, rows.Err()
}

// Series returns the values for a tag in step order. If a step was written by more than one run the
// latest value wins.
func (s *Summaries) Series(tag string) ([]Point, error) {
	rows, err := s.db.Query("SELECT step, value FROM scalars WHERE tag = ? ORDER BY step, id", tag)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var points []Point
	for rows.Next() {
		var p Point
		if err = rows.Scan(&p.Step, &p.Value); err != nil {
			return nil, err
		}
		if n := len(points); n > 0 && points[n-1].Step == p.Step {
			points[n-1] = p
		} else {
			points = append(points, p)
		}
	}
	return points, rows.Err()
}

func wallTime(t time.Time) float64 {
	return float64(t.UnixMilli()) / 1000.0
}

func fromWallTime(wall float64) time.Time {
	return time.UnixMilli(int64(wall * 1000))
}
