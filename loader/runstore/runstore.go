// Package runstore persists the time breaks and training statistics of a run so that they can
// be reused, unchanged, at inference time.
package runstore

import (
	"encoding/json"
	"math"

	"github.com/btcsuite/goleveldb/leveldb"
	"github.com/btcsuite/goleveldb/leveldb/util"
	loadersurvival "github.com/ldsec/mmsurv-loader/loader/survival"
	"github.com/pkg/errors"
	uuid "github.com/satori/go.uuid"
	"go.dedis.ch/onet/v3/log"
)

const runPrefix = "run/"

// ErrRunNotFound is returned for an unknown run id
var ErrRunNotFound = errors.New("run not found")

// Store is a LevelDB database of runs
type Store struct {
	db *leveldb.DB
}

// Open opens, or creates, the store at path
func Open(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "opening run store %s", path)
	}
	return &Store{db: db}, nil
}

// Close releases the database
func (s *Store) Close() error {
	return s.db.Close()
}

// NewRunID returns a fresh random run identifier
func NewRunID() (string, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", errors.Wrap(err, "generating run id")
	}
	return id.String(), nil
}

type columnEntry struct {
	Covariate string
	// Median is nil when unknown
	Median *float64
	Mean   float64
	Std    float64
}

type runEntry struct {
	Mode    string
	Breaks  []float64
	Columns []columnEntry
}

// PutRun stores the breaks and statistics of a run, replacing a previous version
func (s *Store) PutRun(id, mode string, breaks loadersurvival.TimeBreaks, stats *loadersurvival.Stats) error {
	entry := runEntry{Mode: mode, Breaks: breaks}
	for _, c := range stats.Columns() {
		cs, _ := stats.Get(c)
		ce := columnEntry{Covariate: c, Mean: cs.Mean, Std: cs.Std}
		if !math.IsNaN(cs.Median) {
			m := cs.Median
			ce.Median = &m
		}
		entry.Columns = append(entry.Columns, ce)
	}

	buf, err := json.Marshal(entry)
	if err != nil {
		return errors.Wrapf(err, "encoding run %s", id)
	}
	if err := s.db.Put([]byte(runPrefix+id), buf, nil); err != nil {
		return errors.Wrapf(err, "storing run %s", id)
	}
	log.Lvl2("Stored run", id, "with", len(entry.Columns), "covariates")
	return nil
}

// GetRun loads what PutRun stored
func (s *Store) GetRun(id string) (mode string, breaks loadersurvival.TimeBreaks, stats *loadersurvival.Stats, err error) {
	buf, err := s.db.Get([]byte(runPrefix+id), nil)
	if err == leveldb.ErrNotFound {
		return "", nil, nil, errors.Wrap(ErrRunNotFound, id)
	}
	if err != nil {
		return "", nil, nil, errors.Wrapf(err, "loading run %s", id)
	}

	var entry runEntry
	if err := json.Unmarshal(buf, &entry); err != nil {
		return "", nil, nil, errors.Wrapf(err, "decoding run %s", id)
	}
	columns := make([]string, len(entry.Columns))
	values := make([]loadersurvival.ColumnStats, len(entry.Columns))
	for i, ce := range entry.Columns {
		columns[i] = ce.Covariate
		values[i] = loadersurvival.ColumnStats{Median: math.NaN(), Mean: ce.Mean, Std: ce.Std}
		if ce.Median != nil {
			values[i].Median = *ce.Median
		}
	}
	stats, err = loadersurvival.NewStats(columns, values)
	if err != nil {
		return "", nil, nil, err
	}
	return entry.Mode, loadersurvival.TimeBreaks(entry.Breaks), stats, nil
}

// Runs lists the stored run ids in key order
func (s *Store) Runs() ([]string, error) {
	iter := s.db.NewIterator(util.BytesPrefix([]byte(runPrefix)), nil)
	defer iter.Release()

	ids := make([]string, 0)
	for iter.Next() {
		ids = append(ids, string(iter.Key()[len(runPrefix):]))
	}
	return ids, errors.Wrap(iter.Error(), "listing runs")
}
