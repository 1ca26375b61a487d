// Copyright 2016 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package db stores analysis reports in a SQL database.
package db

import (
	"bytes"
	"context"
	"database/sql"
	"math"
	"strings"
	"text/template"
	"time"

	"github.com/lfbench/scalestat/benchfit"
	"github.com/lfbench/scalestat/benchproc"
	"github.com/lfbench/scalestat/benchseries"
	"github.com/pkg/errors"
)

// DB is a high-level interface to a results database. It's safe for
// concurrent use by multiple goroutines.
type DB struct {
	sql *sql.DB // underlying database connection
	// prepared statements
	insertRun    *sql.Stmt
	insertSeries *sql.Stmt
	insertPoint  *sql.Stmt
}

// OpenSQL creates a DB backed by a SQL database. The parameters are
// the same as the parameters for sql.Open. Only mysql and sqlite3 are
// explicitly supported; other database engines will receive MySQL
// query syntax which may or may not be compatible.
func OpenSQL(driverName, dataSourceName string) (*DB, error) {
	db, err := sql.Open(driverName, dataSourceName)
	if err != nil {
		return nil, err
	}
	if hook := openHooks[driverName]; hook != nil {
		if err := hook(db); err != nil {
			db.Close()
			return nil, err
		}
	}
	d := &DB{sql: db}
	if err := d.createTables(driverName); err != nil {
		db.Close()
		return nil, err
	}
	if err := d.prepareStatements(); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

var openHooks = make(map[string]func(*sql.DB) error)

// RegisterOpenHook registers a hook to be called after opening a connection to driverName.
// This is used by the sqlite3 package to register a ConnectHook.
// It must be called from an init function.
func RegisterOpenHook(driverName string, hook func(*sql.DB) error) {
	openHooks[driverName] = hook
}

// createTmpl is the template used to prepare the CREATE statements
// for the database. It is evaluated with . as a map containing one
// entry whose key is the driver name.
var createTmpl = template.Must(template.New("create").Parse(`
CREATE TABLE IF NOT EXISTS Runs (
	RunID {{if .sqlite3}}INTEGER PRIMARY KEY AUTOINCREMENT{{else}}SERIAL PRIMARY KEY AUTO_INCREMENT{{end}},
	Created VARCHAR(64) NOT NULL,
	Relative BOOLEAN NOT NULL,
	Speedup BOOLEAN NOT NULL
);
CREATE TABLE IF NOT EXISTS Series (
	RunID BIGINT UNSIGNED,
	SeriesID BIGINT UNSIGNED,
	Panel VARCHAR(255) NOT NULL,
	SeriesKey VARCHAR(1024) NOT NULL,
	Label VARCHAR(255) NOT NULL,
	Marker VARCHAR(8) NOT NULL,
	Unit VARCHAR(64) NOT NULL,
	FitA DOUBLE, FitB DOUBLE, FitN DOUBLE,
	FitDA DOUBLE, FitDB DOUBLE, FitDN DOUBLE,
	FitY0 DOUBLE,
	FitWeighted BOOLEAN,
	FitEvals INT,
	FitError VARCHAR(1024) NOT NULL,
	PRIMARY KEY (RunID, SeriesID),
	FOREIGN KEY (RunID) REFERENCES Runs(RunID) ON UPDATE CASCADE ON DELETE CASCADE
);
CREATE TABLE IF NOT EXISTS Points (
	RunID BIGINT UNSIGNED,
	SeriesID BIGINT UNSIGNED,
	Threads INT NOT NULL,
	Center DOUBLE NOT NULL,
	Err DOUBLE NOT NULL,
	Min DOUBLE NOT NULL,
	PRIMARY KEY (RunID, SeriesID, Threads),
	FOREIGN KEY (RunID, SeriesID) REFERENCES Series(RunID, SeriesID) ON UPDATE CASCADE ON DELETE CASCADE
);
`))

// createTables creates any missing tables on the connection in
// db.sql. driverName is the same driver name passed to sql.Open and
// is used to select the correct syntax.
func (db *DB) createTables(driverName string) error {
	var buf bytes.Buffer
	if err := createTmpl.Execute(&buf, map[string]bool{driverName: true}); err != nil {
		return err
	}
	for _, q := range strings.Split(buf.String(), ";") {
		if strings.TrimSpace(q) == "" {
			continue
		}
		if _, err := db.sql.Exec(q); err != nil {
			return errors.Wrap(err, "create table")
		}
	}
	return nil
}

// prepareStatements calls db.sql.Prepare on reusable SQL statements.
func (db *DB) prepareStatements() error {
	var err error
	db.insertRun, err = db.sql.Prepare("INSERT INTO Runs(Created, Relative, Speedup) VALUES (?, ?, ?)")
	if err != nil {
		return err
	}
	db.insertSeries, err = db.sql.Prepare(`INSERT INTO Series(RunID, SeriesID, Panel, SeriesKey, Label, Marker, Unit,
		FitA, FitB, FitN, FitDA, FitDB, FitDN, FitY0, FitWeighted, FitEvals, FitError)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	db.insertPoint, err = db.sql.Prepare("INSERT INTO Points(RunID, SeriesID, Threads, Center, Err, Min) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return err
	}
	return nil
}

// now is a hook for testing
var now = time.Now

// nullFloat maps non-finite values, which not every database can
// store, to NULL.
func nullFloat(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

// InsertReport stores r as a new run and returns the run's ID.
func (db *DB) InsertReport(ctx context.Context, r *benchseries.Report) (runID int64, err error) {
	tx, err := db.sql.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	res, err := tx.StmtContext(ctx, db.insertRun).ExecContext(ctx, now().UTC().Format(time.RFC3339), r.Mode.Relative, r.Mode.Speedup)
	if err != nil {
		return 0, err
	}
	if runID, err = res.LastInsertId(); err != nil {
		return 0, err
	}

	insertSeries := tx.StmtContext(ctx, db.insertSeries)
	insertPoint := tx.StmtContext(ctx, db.insertPoint)
	var seriesID int64
	for _, p := range r.Panels {
		for _, d := range p.Descriptors {
			var fit [7]sql.NullFloat64
			var weighted sql.NullBool
			var evals sql.NullInt64
			if f := d.Fit; f != nil {
				for i, v := range []float64{f.A, f.B, f.N, f.DA, f.DB, f.DN, f.Y0} {
					fit[i] = nullFloat(v)
				}
				weighted = sql.NullBool{Bool: f.Weighted, Valid: true}
				evals = sql.NullInt64{Int64: int64(f.Evals), Valid: true}
			}
			if _, err := insertSeries.ExecContext(ctx, runID, seriesID, p.Label, d.Key, d.Label, string(d.Marker), d.Unit,
				fit[0], fit[1], fit[2], fit[3], fit[4], fit[5], fit[6], weighted, evals, d.FitErr); err != nil {
				return 0, errors.Wrapf(err, "insert series %s", d.Key)
			}
			for _, pt := range d.Points {
				if _, err := insertPoint.ExecContext(ctx, runID, seriesID, pt.Threads, pt.Center, pt.Err, pt.Min); err != nil {
					return 0, errors.Wrapf(err, "insert point %s at %d threads", d.Key, pt.Threads)
				}
			}
			seriesID++
		}
	}
	return runID, nil
}

// A Run describes a stored report.
type Run struct {
	ID      int64
	Created time.Time
	Mode    benchseries.Mode
}

// ListRuns returns every stored run, oldest first.
func (db *DB) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := db.sql.QueryContext(ctx, "SELECT RunID, Created, Relative, Speedup FROM Runs ORDER BY RunID")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var runs []Run
	for rows.Next() {
		var r Run
		var created string
		if err := rows.Scan(&r.ID, &created, &r.Mode.Relative, &r.Mode.Speedup); err != nil {
			return nil, err
		}
		if r.Created, err = time.Parse(time.RFC3339, created); err != nil {
			return nil, errors.Wrapf(err, "run %d", r.ID)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// A SeriesRecord is one stored series.
type SeriesRecord struct {
	Panel string
	benchseries.Descriptor
}

func orInf(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.Inf(1)
	}
	return v.Float64
}

// ListSeries returns the series of run runID, in insertion order.
func (db *DB) ListSeries(ctx context.Context, runID int64) ([]*SeriesRecord, error) {
	rows, err := db.sql.QueryContext(ctx, `SELECT SeriesID, Panel, SeriesKey, Label, Marker, Unit,
		FitA, FitB, FitN, FitDA, FitDB, FitDN, FitY0, FitWeighted, FitEvals, FitError
		FROM Series WHERE RunID = ? ORDER BY SeriesID`, runID)
	if err != nil {
		return nil, err
	}
	var out []*SeriesRecord
	byID := make(map[int64]*SeriesRecord)
	for rows.Next() {
		var id int64
		var marker string
		var fit [7]sql.NullFloat64
		var weighted sql.NullBool
		var evals sql.NullInt64
		s := new(SeriesRecord)
		if err := rows.Scan(&id, &s.Panel, &s.Key, &s.Label, &marker, &s.Unit,
			&fit[0], &fit[1], &fit[2], &fit[3], &fit[4], &fit[5], &fit[6], &weighted, &evals, &s.FitErr); err != nil {
			rows.Close()
			return nil, err
		}
		s.Marker = benchproc.Marker(marker)
		if fit[0].Valid {
			s.Fit = &benchfit.FittedModel{
				A: fit[0].Float64, B: fit[1].Float64, N: fit[2].Float64,
				DA: orInf(fit[3]), DB: orInf(fit[4]), DN: orInf(fit[5]),
				Y0:       fit[6].Float64,
				Weighted: weighted.Bool,
				Evals:    int(evals.Int64),
			}
		}
		out = append(out, s)
		byID[id] = s
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	rows, err = db.sql.QueryContext(ctx, "SELECT SeriesID, Threads, Center, Err, Min FROM Points WHERE RunID = ? ORDER BY SeriesID, Threads", runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		var pt benchseries.Point
		if err := rows.Scan(&id, &pt.Threads, &pt.Center, &pt.Err, &pt.Min); err != nil {
			return nil, err
		}
		s := byID[id]
		if s == nil {
			return nil, errors.Errorf("point of unknown series %d in run %d", id, runID)
		}
		s.Points = append(s.Points, pt)
	}
	return out, rows.Err()
}

// CountRuns returns the number of stored runs.
func (db *DB) CountRuns(ctx context.Context) (int, error) {
	var n int
	err := db.sql.QueryRowContext(ctx, "SELECT COUNT(*) FROM Runs").Scan(&n)
	return n, err
}

// Close closes the database connections, releasing any open resources.
func (db *DB) Close() error {
	for _, stmt := range []*sql.Stmt{db.insertRun, db.insertSeries, db.insertPoint} {
		if err := stmt.Close(); err != nil {
			return err
		}
	}
	return db.sql.Close()
}
