package db

type Run struct {
	ID        string
	Username  string
	Period    string
	StartedAt int64
}

type Submission struct {
	ID              int64
	RunID           string
	CourseKey       string
	CourseName      string
	TeacherName     string
	Success         int64
	Reason          string
	ResponseSnippet string
	SubmittedAt     int64
}
