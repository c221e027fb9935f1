// Package dbtest registers an in-memory database/sql driver that stands in for the Postgres
// statistics schema (time_breaks and feature_stats tables) when no server is available.
// Every data source name is a separate database.
package dbtest

import (
	"database/sql"
	"database/sql/driver"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// DriverName is the name to pass to sql.Open
const DriverName = "dbtest"

func init() {
	sql.Register(DriverName, &memDriver{})
}

type featureRow struct {
	position int64
	values   []driver.Value // covariate, median, mean, std
}

type database struct {
	mu         sync.Mutex
	statements []string
	breaks     map[string]string
	features   map[string][]featureRow
}

var (
	databasesMu sync.Mutex
	databases   = make(map[string]*database)
)

func open(dsn string) *database {
	databasesMu.Lock()
	defer databasesMu.Unlock()
	db, ok := databases[dsn]
	if !ok {
		db = &database{breaks: make(map[string]string), features: make(map[string][]featureRow)}
		databases[dsn] = db
	}
	return db
}

// Statements returns every statement prepared on the database named dsn, in order
func Statements(dsn string) []string {
	db := open(dsn)
	db.mu.Lock()
	defer db.mu.Unlock()
	return append([]string(nil), db.statements...)
}

type memDriver struct{}

func (memDriver) Open(dsn string) (driver.Conn, error) {
	return &conn{db: open(dsn)}, nil
}

type conn struct {
	db *database
	// pending holds the writes of the open transaction
	pending []func()
	inTx    bool
}

func (c *conn) Prepare(query string) (driver.Stmt, error) {
	c.db.mu.Lock()
	c.db.statements = append(c.db.statements, query)
	c.db.mu.Unlock()
	return &stmt{conn: c, query: query}, nil
}

func (c *conn) Close() error {
	return nil
}

func (c *conn) Begin() (driver.Tx, error) {
	if c.inTx {
		return nil, errors.New("transaction already open")
	}
	c.inTx = true
	return c, nil
}

func (c *conn) Commit() error {
	c.db.mu.Lock()
	for _, apply := range c.pending {
		apply()
	}
	c.db.mu.Unlock()
	c.pending, c.inTx = nil, false
	return nil
}

func (c *conn) Rollback() error {
	c.pending, c.inTx = nil, false
	return nil
}

func (c *conn) write(apply func()) {
	if c.inTx {
		c.pending = append(c.pending, apply)
		return
	}
	c.db.mu.Lock()
	apply()
	c.db.mu.Unlock()
}

type stmt struct {
	conn  *conn
	query string
}

func (s *stmt) Close() error {
	return nil
}

func (s *stmt) NumInput() int {
	return -1
}

func (s *stmt) Exec(args []driver.Value) (driver.Result, error) {
	db := s.conn.db
	switch {
	case strings.HasPrefix(s.query, "INSERT") && strings.Contains(s.query, ".time_breaks"):
		if len(args) != 2 {
			return nil, errors.Errorf("time_breaks insert takes 2 arguments, got %d", len(args))
		}
		runID, _ := args[0].(string)
		literal, ok := args[1].(string)
		if !ok {
			return nil, errors.Errorf("breaks must be an array literal, got %T", args[1])
		}
		db.mu.Lock()
		_, exists := db.breaks[runID]
		db.mu.Unlock()
		if exists {
			return nil, errors.Errorf("duplicate key run_id %s", runID)
		}
		s.conn.write(func() { db.breaks[runID] = literal })

	case strings.HasPrefix(s.query, "INSERT") && strings.Contains(s.query, ".feature_stats"):
		if len(args) != 6 {
			return nil, errors.Errorf("feature_stats insert takes 6 arguments, got %d", len(args))
		}
		runID, _ := args[0].(string)
		position, _ := args[1].(int64)
		row := featureRow{position: position, values: append([]driver.Value(nil), args[2:]...)}
		s.conn.write(func() { db.features[runID] = append(db.features[runID], row) })
	}
	return driver.RowsAffected(1), nil
}

func (s *stmt) Query(args []driver.Value) (driver.Rows, error) {
	if len(args) != 1 {
		return nil, errors.Errorf("query takes the run id, got %d arguments", len(args))
	}
	runID, _ := args[0].(string)
	db := s.conn.db
	db.mu.Lock()
	defer db.mu.Unlock()

	switch {
	case strings.Contains(s.query, ".time_breaks"):
		r := &rows{columns: []string{"breaks"}}
		if literal, ok := db.breaks[runID]; ok {
			r.values = [][]driver.Value{{[]byte(literal)}}
		}
		return r, nil

	case strings.Contains(s.query, ".feature_stats"):
		stored := append([]featureRow(nil), db.features[runID]...)
		sort.Slice(stored, func(i, j int) bool { return stored[i].position < stored[j].position })
		r := &rows{columns: []string{"covariate", "median", "mean", "std"}}
		for _, f := range stored {
			r.values = append(r.values, f.values)
		}
		return r, nil
	}
	return nil, errors.Errorf("unsupported query %q", s.query)
}

type rows struct {
	columns []string
	values  [][]driver.Value
	next    int
}

func (r *rows) Columns() []string {
	return r.columns
}

func (r *rows) Close() error {
	return nil
}

func (r *rows) Next(dest []driver.Value) error {
	if r.next >= len(r.values) {
		return io.EOF
	}
	copy(dest, r.values[r.next])
	r.next++
	return nil
}
