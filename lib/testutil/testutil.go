// Package testutil holds the fixtures shared by package tests.
package testutil

import (
	"database/sql"
	"fmt"
	"testing"
	devenv "zzuli-evaluation/dev/env"
	"zzuli-evaluation/lib/telemetry"

	_ "modernc.org/sqlite"
)

// Telemetry enables debug logging for the rest of the test, exporters are
// installed when a telemetry.json5 is found.
func Telemetry(t testing.TB, name string) {
	t.Cleanup(telemetry.SetupForTesting(t, fmt.Sprintf("test:%s", name)))
}

type DBParams struct {
	// Schema is executed right after opening, skipped when empty.
	Schema string
	// Path defaults to ":memory:", "<dev_state>" is resolved.
	Path string
}

// OpenDB opens a sqlite database that is closed when the test ends.
func OpenDB(t testing.TB, params DBParams) *sql.DB {
	t.Helper()

	path := ":memory:"
	if params.Path != "" && params.Path != ":memory:" {
		var err error
		path, err = devenv.ResolvePath(params.Path)
		if err != nil {
			t.Fatal(err)
		}
	}
	sqlite, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { sqlite.Close() })
	// every connection to :memory: is its own database.
	sqlite.SetMaxOpenConns(1)

	if params.Schema != "" {
		_, err = sqlite.Exec(params.Schema)
		if err != nil {
			t.Fatal(fmt.Errorf("apply schema: %w", err))
		}
	}
	return sqlite
}
