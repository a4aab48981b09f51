package main

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	devenv "zzuli-evaluation/dev/env"
	"zzuli-evaluation/lib/evalstore/db"
)

func createDb(filename, schema string) error {
	path, err := devenv.ResolvePath(filepath.Join("<dev_state>", filename))
	if err != nil {
		return err
	}

	_, err = os.Stat(path)
	if err == nil {
		fmt.Println("database already created at", path)
		return nil
	}

	fmt.Println("creating database at", path)
	sqlite, err := sql.Open("sqlite", path)
	if err != nil {
		return err
	}
	defer sqlite.Close()
	_, err = sqlite.Exec(schema)
	return err
}

func CreateLedger() error {
	return createDb("ledger.db", db.Schema)
}

// the live config is left empty, the live tests skip themselves until it is
// filled in.
const liveConfigTemplate = `{
  // a real account, used by the tests that talk to the campus servers.
  // username: "",
  // password: "",
}
`

func writeTemplate(filename, contents string) error {
	path, err := devenv.ResolvePath(filepath.Join("<dev_state>", filename))
	if err != nil {
		return err
	}
	_, err = os.Stat(path)
	if err == nil {
		fmt.Println("config already exists at", path)
		return nil
	}
	fmt.Println("writing config template to", path)
	return os.WriteFile(path, []byte(contents), 0600)
}

func CreateConfigTemplates() error {
	return writeTemplate("zzuli.json5", liveConfigTemplate)
}

func PrintConfigLocations() {
	slog.Info("tests that talk to the campus servers read dev/.state/zzuli.json5 (or zzuli.local.json5), they are skipped until a username and password are written there.")
}
