package loadersurvival

import (
	"database/sql"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/ldsec/mmsurv-loader/loader"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"go.dedis.ch/onet/v3/log"
)

// statsRow is one line of a persisted statistics table
type statsRow struct {
	Covariate string  `csv:"covariate"`
	Median    float64 `csv:"median"`
	Mean      float64 `csv:"mean"`
	Std       float64 `csv:"std"`
}

// WriteStatsCSV persists the statistics, one covariate per line, in column order
func WriteStatsCSV(s *Stats, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), os.ModePerm); err != nil {
		return errors.Wrapf(err, "creating directory for %s", filename)
	}
	f, err := os.Create(filename)
	if err != nil {
		return errors.Wrapf(err, "creating %s", filename)
	}
	defer f.Close()

	rows := make([]*statsRow, len(s.columns))
	for i, c := range s.columns {
		cs := s.byName[c]
		rows[i] = &statsRow{Covariate: c, Median: cs.Median, Mean: cs.Mean, Std: cs.Std}
	}
	return errors.Wrapf(gocsv.MarshalFile(&rows, f), "writing %s", filename)
}

// ReadStatsCSV loads statistics indexed by covariate name (first column) with mean and std
// columns and an optional median column.
func ReadStatsCSV(filename string) (*Stats, error) {
	lines, err := readCSV(filename)
	if err != nil {
		return nil, err
	}
	return NewStatsFromLines(lines)
}

// NewStatsFromLines is ReadStatsCSV on already read CSV lines
func NewStatsFromLines(lines [][]string) (*Stats, error) {
	if len(lines) == 0 {
		return nil, errors.Wrap(ErrMissingStatsColumn, "empty statistics table")
	}
	idx := headerIndex(lines[0])
	meanIdx, okMean := idx["mean"]
	stdIdx, okStd := idx["std"]
	if !okMean || !okStd {
		return nil, errors.Wrapf(ErrMissingStatsColumn, "header %v needs mean and std", lines[0])
	}
	medianIdx, okMedian := idx["median"]
	if !okMedian {
		log.Warn("Statistics table has no median column, missing values cannot be filled")
	}

	columns := make([]string, 0, len(lines)-1)
	values := make([]ColumnStats, 0, len(lines)-1)
	var err error
	for n, line := range lines[1:] {
		cs := ColumnStats{Median: math.NaN()}
		if cs.Mean, err = strconv.ParseFloat(strings.TrimSpace(line[meanIdx]), 64); err != nil {
			return nil, errors.Wrapf(err, "statistics line %d: mean", n+2)
		}
		if cs.Std, err = strconv.ParseFloat(strings.TrimSpace(line[stdIdx]), 64); err != nil {
			return nil, errors.Wrapf(err, "statistics line %d: std", n+2)
		}
		if okMedian {
			if cs.Median, err = parseValue(line[medianIdx]); err != nil {
				return nil, errors.Wrapf(err, "statistics line %d: median", n+2)
			}
		}
		columns = append(columns, strings.TrimSpace(line[0]))
		values = append(values, cs)
	}
	return NewStats(columns, values)
}

// breakRow is one line of a persisted time breaks table
type breakRow struct {
	Edge float64 `csv:"edge"`
}

// WriteTimeBreaksCSV persists the time breaks, one edge per line
func WriteTimeBreaksCSV(breaks TimeBreaks, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), os.ModePerm); err != nil {
		return errors.Wrapf(err, "creating directory for %s", filename)
	}
	f, err := os.Create(filename)
	if err != nil {
		return errors.Wrapf(err, "creating %s", filename)
	}
	defer f.Close()

	rows := make([]*breakRow, len(breaks))
	for i, b := range breaks {
		rows[i] = &breakRow{Edge: b}
	}
	return errors.Wrapf(gocsv.MarshalFile(&rows, f), "writing %s", filename)
}

// ReadTimeBreaksCSV loads what WriteTimeBreaksCSV wrote
func ReadTimeBreaksCSV(filename string) (TimeBreaks, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", filename)
	}
	defer f.Close()

	rows := make([]*breakRow, 0)
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, errors.Wrapf(err, "reading %s", filename)
	}
	breaks := make(TimeBreaks, len(rows))
	for i, r := range rows {
		breaks[i] = r.Edge
	}
	if breaks.NumBins() < 1 {
		return nil, errors.Wrapf(ErrInvalidBinCount, "%s holds %d time breaks", filename, len(breaks))
	}
	return breaks, nil
}

// OpenDB opens (lazily) the Postgres database described by settings
func OpenDB(settings loader.DBSettings) (*sql.DB, error) {
	db, err := sql.Open("postgres", settings.ConnString())
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	return db, nil
}

// StatsLoadingScript creates the schema and tables holding persisted runs
func StatsLoadingScript(schema string) (loading string) {
	s := pq.QuoteIdentifier(schema)

	loading += "CREATE SCHEMA IF NOT EXISTS " + s + ";\n"
	loading += "CREATE TABLE IF NOT EXISTS " + s + ".time_breaks (run_id varchar(36) PRIMARY KEY, breaks double precision[] NOT NULL);\n"
	loading += "CREATE TABLE IF NOT EXISTS " + s + ".feature_stats (run_id varchar(36), position int, covariate varchar(255), " +
		"median double precision, mean double precision NOT NULL, std double precision NOT NULL, PRIMARY KEY (run_id, covariate));\n"

	return
}

// SaveStatsDB stores the time breaks and statistics of a run in a single transaction
func SaveStatsDB(db *sql.DB, schema, runID string, breaks TimeBreaks, s *Stats) error {
	q := pq.QuoteIdentifier(schema)
	tx, err := db.Begin()
	if err != nil {
		return errors.Wrap(err, "starting transaction")
	}

	if _, err := tx.Exec("INSERT INTO "+q+".time_breaks (run_id, breaks) VALUES ($1, $2)",
		runID, pq.Array([]float64(breaks))); err != nil {
		tx.Rollback()
		return errors.Wrapf(err, "saving time breaks of run %s", runID)
	}

	stmt, err := tx.Prepare("INSERT INTO " + q + ".feature_stats (run_id, position, covariate, median, mean, std) VALUES ($1, $2, $3, $4, $5, $6)")
	if err != nil {
		tx.Rollback()
		return errors.Wrap(err, "preparing statistics insert")
	}
	defer stmt.Close()
	for i, c := range s.columns {
		cs := s.byName[c]
		median := sql.NullFloat64{Float64: cs.Median, Valid: !math.IsNaN(cs.Median)}
		if _, err := stmt.Exec(runID, i, c, median, cs.Mean, cs.Std); err != nil {
			tx.Rollback()
			return errors.Wrapf(err, "saving statistics of %s", c)
		}
	}
	return errors.Wrap(tx.Commit(), "committing statistics")
}

// LoadStatsDB reads back what SaveStatsDB stored for a run
func LoadStatsDB(db *sql.DB, schema, runID string) (TimeBreaks, *Stats, error) {
	q := pq.QuoteIdentifier(schema)

	var breaks []float64
	if err := db.QueryRow("SELECT breaks FROM "+q+".time_breaks WHERE run_id = $1", runID).Scan(pq.Array(&breaks)); err == sql.ErrNoRows {
		return nil, nil, errors.Wrap(ErrUnknownRun, runID)
	} else if err != nil {
		return nil, nil, errors.Wrapf(err, "loading time breaks of run %s", runID)
	}

	rows, err := db.Query("SELECT covariate, median, mean, std FROM "+q+".feature_stats WHERE run_id = $1 ORDER BY position", runID)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "loading statistics of run %s", runID)
	}
	defer rows.Close()

	var (
		columns []string
		values  []ColumnStats
	)
	for rows.Next() {
		var (
			c      string
			median sql.NullFloat64
			cs     ColumnStats
		)
		if err := rows.Scan(&c, &median, &cs.Mean, &cs.Std); err != nil {
			return nil, nil, errors.Wrap(err, "scanning statistics")
		}
		cs.Median = math.NaN()
		if median.Valid {
			cs.Median = median.Float64
		}
		columns = append(columns, c)
		values = append(values, cs)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, errors.Wrap(err, "iterating statistics")
	}

	s, err := NewStats(columns, values)
	return TimeBreaks(breaks), s, err
}
