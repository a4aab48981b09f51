package db

import (
	"context"
)

const createRun = `-- name: CreateRun :exec
insert into run(id, username, period, started_at)
values (?, ?, ?, ?)
on conflict (id) do nothing
`

type CreateRunParams struct {
	ID        string
	Username  string
	Period    string
	StartedAt int64
}

func (q *Queries) CreateRun(ctx context.Context, arg CreateRunParams) error {
	_, err := q.db.ExecContext(ctx, createRun,
		arg.ID,
		arg.Username,
		arg.Period,
		arg.StartedAt,
	)
	return err
}

const createSubmission = `-- name: CreateSubmission :exec
insert into submission(
    run_id, course_key, course_name, teacher_name,
    success, reason, response_snippet, submitted_at
) values (?, ?, ?, ?, ?, ?, ?, ?)
`

type CreateSubmissionParams struct {
	RunID           string
	CourseKey       string
	CourseName      string
	TeacherName     string
	Success         int64
	Reason          string
	ResponseSnippet string
	SubmittedAt     int64
}

func (q *Queries) CreateSubmission(ctx context.Context, arg CreateSubmissionParams) error {
	_, err := q.db.ExecContext(ctx, createSubmission,
		arg.RunID,
		arg.CourseKey,
		arg.CourseName,
		arg.TeacherName,
		arg.Success,
		arg.Reason,
		arg.ResponseSnippet,
		arg.SubmittedAt,
	)
	return err
}

const submissionColumns = `
    run.id as run_id, run.username, run.period,
    submission.course_key, submission.course_name, submission.teacher_name,
    submission.success, submission.reason, submission.response_snippet,
    submission.submitted_at
`

const listSubmissions = `-- name: ListSubmissions :many
select` + submissionColumns + `from submission
inner join run on run.id = submission.run_id
order by submission.submitted_at desc, submission.id desc
limit ?
`

type SubmissionRow struct {
	RunID           string
	Username        string
	Period          string
	CourseKey       string
	CourseName      string
	TeacherName     string
	Success         int64
	Reason          string
	ResponseSnippet string
	SubmittedAt     int64
}

func (q *Queries) ListSubmissions(ctx context.Context, limit int64) ([]SubmissionRow, error) {
	return q.listSubmissionRows(ctx, listSubmissions, limit)
}

const listRunSubmissions = `-- name: ListRunSubmissions :many
select` + submissionColumns + `from submission
inner join run on run.id = submission.run_id
where run.id = ?
order by submission.id asc
`

func (q *Queries) ListRunSubmissions(ctx context.Context, runID string) ([]SubmissionRow, error) {
	return q.listSubmissionRows(ctx, listRunSubmissions, runID)
}

func (q *Queries) listSubmissionRows(ctx context.Context, query string, args ...interface{}) ([]SubmissionRow, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []SubmissionRow
	for rows.Next() {
		var i SubmissionRow
		if err := rows.Scan(
			&i.RunID,
			&i.Username,
			&i.Period,
			&i.CourseKey,
			&i.CourseName,
			&i.TeacherName,
			&i.Success,
			&i.Reason,
			&i.ResponseSnippet,
			&i.SubmittedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countSucceeded = `-- name: CountSucceeded :one
select count(*) from submission
inner join run on run.id = submission.run_id
where run.username = ? and run.period = ? and submission.course_key = ? and submission.success = 1
`

type CountSucceededParams struct {
	Username  string
	Period    string
	CourseKey string
}

func (q *Queries) CountSucceeded(ctx context.Context, arg CountSucceededParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, countSucceeded, arg.Username, arg.Period, arg.CourseKey)
	var count int64
	err := row.Scan(&count)
	return count, err
}
