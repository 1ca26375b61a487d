// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package dbtest opens empty results databases for tests.
package dbtest

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"flag"
	"fmt"
	"testing"

	_ "github.com/go-sql-driver/mysql"
	"github.com/lfbench/scalestat/storage/db"
	_ "github.com/lfbench/scalestat/storage/db/sqlite3"
)

var mysqlDSN = flag.String("mysql", "", "run database tests against the MySQL server at this DSN (e.g. root:@tcp(localhost:3306)/) instead of in-memory SQLite")

// createEmptyMySQLDB makes a new, empty database for the test.
func createEmptyMySQLDB(t *testing.T) (dsn string, cleanup func()) {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		t.Fatal(err)
	}

	name := "scalestat_test_" + hex.EncodeToString(buf)

	db, err := sql.Open("mysql", *mysqlDSN)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := db.Exec(fmt.Sprintf("CREATE DATABASE `%s`", name)); err != nil {
		db.Close()
		t.Fatal(err)
	}

	t.Logf("Using database %q", name)

	return *mysqlDSN + name, func() {
		if _, err := db.Exec(fmt.Sprintf("DROP DATABASE `%s`", name)); err != nil {
			t.Error(err)
		}
		db.Close()
	}
}

// NewDB makes a connection to a testing database, either sqlite3 or
// MySQL depending on the -mysql flag. cleanup must be called when
// done with the testing database, instead of calling db.Close()
func NewDB(t *testing.T) (*db.DB, func()) {
	driverName, dataSourceName := "sqlite3", ":memory:"
	var mysqlCleanup func()
	if *mysqlDSN != "" {
		driverName = "mysql"
		dataSourceName, mysqlCleanup = createEmptyMySQLDB(t)
	}
	d, err := db.OpenSQL(driverName, dataSourceName)
	if err != nil {
		if mysqlCleanup != nil {
			mysqlCleanup()
		}
		t.Fatalf("open database: %v", err)
	}

	cleanup := func() {
		if mysqlCleanup != nil {
			mysqlCleanup()
		}
		d.Close()
	}
	// Make sure the database really is empty.
	runs, err := d.CountRuns(context.Background())
	if err != nil {
		cleanup()
		t.Fatal(err)
	}
	if runs != 0 {
		cleanup()
		t.Fatalf("found %d row(s) in Runs, want 0", runs)
	}
	return d, cleanup
}
