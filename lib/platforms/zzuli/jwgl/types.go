package jwgl

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var (
	// ErrNoSession is returned without touching the network when the session
	// holds no cookie, which means it was never logged in.
	ErrNoSession          = errors.New("session is not logged in")
	ErrSessionInvalidated = errors.New("session invalidated")
	ErrPeriodUnavailable  = errors.New("evaluation period unavailable")
)

// Period is the currently open evaluation window.
type Period struct {
	Year       string
	Semester   string
	PeriodCode string
	// StartDate and EndDate are kept as the server formats them.
	StartDate string
	EndDate   string

	IsIndicatorEval     bool
	IsQuestionnaireEval bool
}

func (p Period) String() string {
	return fmt.Sprintf("%s-%s %s (%s ~ %s)", p.Year, p.Semester, p.PeriodCode, p.StartDate, p.EndDate)
}

// Course is one teacher/course/class evaluation, Evaluated is taken from the
// listing and never updated locally.
type Course struct {
	TeacherRef    string
	TeacherId     string
	TeacherName   string
	CourseCode    string
	CourseName    string
	ClassCode     string
	Credit        string
	EvalType      string
	IsMainTeacher string
	StudentCode   string
	Evaluated     bool
}

// Key identifies the course within a period.
func (c Course) Key() string {
	return strings.Join([]string{c.TeacherRef, c.CourseCode, c.ClassCode, c.StudentCode}, "/")
}

// Result is the server's answer to a submission, a negative answer is not an
// error.
type Result struct {
	Success bool
	// Reason is a snippet of the response when Success is false.
	Reason string
	Body   string
}

// Payload is a form body that keeps the order fields were set in.
type Payload struct {
	keys   []string
	values map[string]string
}

func NewPayload() *Payload {
	return &Payload{values: map[string]string{}}
}

// Set adds a field or replaces the value of an existing one (keeping its
// original position).
func (p *Payload) Set(key, value string) *Payload {
	if _, ok := p.values[key]; !ok {
		p.keys = append(p.keys, key)
	}
	p.values[key] = value
	return p
}

func (p *Payload) Get(key string) (string, bool) {
	value, ok := p.values[key]
	return value, ok
}

func (p *Payload) Keys() []string {
	return append([]string(nil), p.keys...)
}

func (p *Payload) Len() int {
	return len(p.keys)
}

func (p *Payload) Encode() string {
	var out strings.Builder
	for i, key := range p.keys {
		if i > 0 {
			out.WriteByte('&')
		}
		out.WriteString(url.QueryEscape(key))
		out.WriteByte('=')
		out.WriteString(url.QueryEscape(p.values[key]))
	}
	return out.String()
}

func (p *Payload) Values() url.Values {
	out := url.Values{}
	for _, key := range p.keys {
		out.Set(key, p.values[key])
	}
	return out
}
