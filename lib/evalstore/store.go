// Package evalstore is the local ledger of submission attempts, it only
// records what happened and is never consulted as the source of truth about
// whether a course was evaluated.
package evalstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"
	devenv "zzuli-evaluation/dev/env"
	"zzuli-evaluation/lib/evalstore/db"
	"zzuli-evaluation/lib/timezone"

	_ "modernc.org/sqlite"
)

type Record struct {
	RunID       string
	Username    string
	Period      string
	CourseKey   string
	CourseName  string
	TeacherName string
	Success     bool
	Reason      string
	// ResponseSnippet is the beginning of the server's answer.
	ResponseSnippet string
	SubmittedAt     time.Time
}

type Store struct {
	db  *sql.DB
	qry *db.Queries
}

func NewStore(database *sql.DB) Store {
	return Store{
		db:  database,
		qry: db.New(database),
	}
}

// Open opens (creating it when needed) the sqlite ledger at path, a
// "<dev_state>" prefix is resolved to the dev state directory.
func Open(path string) (Store, error) {
	resolved, err := devenv.ResolvePath(path)
	if err != nil {
		return Store{}, err
	}
	database, err := sql.Open("sqlite", resolved)
	if err != nil {
		return Store{}, err
	}
	_, err = database.Exec(db.Schema)
	if err != nil {
		database.Close()
		return Store{}, fmt.Errorf("initialize ledger schema: %w", err)
	}
	return NewStore(database), nil
}

func (s Store) Close() error {
	return s.db.Close()
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// Add records a submission attempt, the run it belongs to is created on its
// first record.
func (s Store) Add(ctx context.Context, r Record) error {
	if r.SubmittedAt.IsZero() {
		r.SubmittedAt = timezone.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	txqry := s.qry.WithTx(tx)

	err = txqry.CreateRun(ctx, db.CreateRunParams{
		ID:        r.RunID,
		Username:  r.Username,
		Period:    r.Period,
		StartedAt: r.SubmittedAt.Unix(),
	})
	if err != nil {
		return err
	}
	err = txqry.CreateSubmission(ctx, db.CreateSubmissionParams{
		RunID:           r.RunID,
		CourseKey:       r.CourseKey,
		CourseName:      r.CourseName,
		TeacherName:     r.TeacherName,
		Success:         boolInt(r.Success),
		Reason:          r.Reason,
		ResponseSnippet: r.ResponseSnippet,
		SubmittedAt:     r.SubmittedAt.Unix(),
	})
	if err != nil {
		return err
	}
	return tx.Commit()
}

func recordFromRow(row db.SubmissionRow) Record {
	return Record{
		RunID:           row.RunID,
		Username:        row.Username,
		Period:          row.Period,
		CourseKey:       row.CourseKey,
		CourseName:      row.CourseName,
		TeacherName:     row.TeacherName,
		Success:         row.Success != 0,
		Reason:          row.Reason,
		ResponseSnippet: row.ResponseSnippet,
		SubmittedAt:     time.Unix(row.SubmittedAt, 0).In(timezone.Location),
	}
}

func recordsFromRows(rows []db.SubmissionRow) []Record {
	out := make([]Record, len(rows))
	for i, row := range rows {
		out[i] = recordFromRow(row)
	}
	return out
}

// List returns the most recent records first.
func (s Store) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.qry.ListSubmissions(ctx, int64(limit))
	if err != nil {
		return nil, err
	}
	return recordsFromRows(rows), nil
}

// ListRun returns the records of a run in the order they were added.
func (s Store) ListRun(ctx context.Context, runID string) ([]Record, error) {
	rows, err := s.qry.ListRunSubmissions(ctx, runID)
	if err != nil {
		return nil, err
	}
	return recordsFromRows(rows), nil
}

// Succeeded reports whether a successful submission of the course was ever
// recorded for the user in the period.
func (s Store) Succeeded(ctx context.Context, username, period, courseKey string) (bool, error) {
	count, err := s.qry.CountSucceeded(ctx, db.CountSucceededParams{
		Username:  username,
		Period:    period,
		CourseKey: courseKey,
	})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
