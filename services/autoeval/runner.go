// Package autoeval drives a whole run: login with either credential source,
// discovery of the pending evaluations and their throttled submission.
package autoeval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"zzuli-evaluation/internal/assert"
	"zzuli-evaluation/internal/components/chrono"
	"zzuli-evaluation/lib/evalstore"
	"zzuli-evaluation/lib/platforms/zzuli"
	"zzuli-evaluation/lib/platforms/zzuli/cas"
	"zzuli-evaluation/lib/platforms/zzuli/jwgl"
	"zzuli-evaluation/lib/platforms/zzuli/qrlogin"
	"zzuli-evaluation/lib/platforms/zzuli/session"
	"zzuli-evaluation/lib/restyutil"
	"zzuli-evaluation/lib/telemetry"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
)

var tracer = otel.Tracer("services/autoeval")

const (
	report_runner_login  = "runner.login"
	report_runner_submit = "runner.submit"
	report_runner_ledger = "runner.ledger"
)

const (
	DefaultDelay = 500 * time.Millisecond
	// snippets of the server's answer kept in the ledger.
	snippetLength = 200
)

var ErrNotLoggedIn = errors.New("runner is not logged in")

// Ledger receives a record of every submission attempt.
type Ledger interface {
	Add(ctx context.Context, r evalstore.Record) error
}

type Options struct {
	Endpoints  zzuli.Endpoints
	Evaluation jwgl.Evaluation
	// Delay is the minimum time between two submissions, defaults to DefaultDelay.
	Delay time.Duration
	// QRTimeout bounds the wait for a QR confirmation, defaults to qrlogin.DefaultTimeout.
	QRTimeout  time.Duration
	OnQRStatus func(qrlogin.Status)
	// Ledger is optional.
	Ledger Ledger
	// Dump receives every http exchange when non-nil.
	Dump  restyutil.Output
	Clock chrono.API
	Tel   telemetry.API
}

// ItemResult is the outcome of the submission of a single course.
type ItemResult struct {
	Course  jwgl.Course
	Success bool
	Reason  string
}

type Summary struct {
	Total     int
	Succeeded int
	Failed    int
}

func Summarize(results []ItemResult) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		if r.Success {
			s.Succeeded++
		} else {
			s.Failed++
		}
	}
	return s
}

// Discovery is what a run found to do.
type Discovery struct {
	Period  jwgl.Period
	Pending []jwgl.Course
}

// Runner owns a single session, it is meant for one run and is not safe for
// concurrent use.
type Runner struct {
	runID    string
	username string

	session *session.Session
	auth    *cas.Authenticator
	qr      *qrlogin.Client
	jwgl    *jwgl.Client

	ledger  Ledger
	delay   time.Duration
	limiter *rate.Limiter
	clock   chrono.API
	tel     telemetry.API
}

func NewRunner(opts Options) (*Runner, error) {
	assert.NotNil(opts.Tel, "runner telemetry")

	endpoints, err := opts.Endpoints.Normalize()
	if err != nil {
		return nil, err
	}
	if opts.Delay <= 0 {
		opts.Delay = DefaultDelay
	}
	if opts.Clock == nil {
		opts.Clock = chrono.NewStandardImpl()
	}

	s, err := session.New(session.Options{Tel: opts.Tel, Dump: opts.Dump})
	if err != nil {
		return nil, err
	}

	return &Runner{
		runID:   uuid.NewString(),
		session: s,
		auth:    cas.NewAuthenticator(s, endpoints, opts.Tel),
		qr: qrlogin.NewClient(s, endpoints, opts.Tel, qrlogin.Options{
			Timeout:  opts.QRTimeout,
			OnStatus: opts.OnQRStatus,
		}),
		jwgl:    jwgl.NewClient(s, endpoints, opts.Evaluation, opts.Tel),
		ledger:  opts.Ledger,
		delay:   opts.Delay,
		limiter: rate.NewLimiter(rate.Every(opts.Delay), 1),
		clock:   opts.Clock,
		tel:     telemetry.NewScopedAPI("autoeval", opts.Tel),
	}, nil
}

func (r *Runner) RunID() string {
	return r.runID
}

// Username is the user that logged in, empty before a successful login.
func (r *Runner) Username() string {
	return r.username
}

func (r *Runner) login(ctx context.Context, cred cas.Credential) error {
	ctx, span := tracer.Start(ctx, "runner:Login")
	defer span.End()

	state, err := r.auth.Login(ctx, cred)
	if err != nil {
		span.SetStatus(codes.Error, "login failed")
		r.tel.ReportWarning(report_runner_login, cred.Source.String(), state.String(), err)
		return err
	}
	r.username = cred.Username
	return nil
}

// LoginPassword logs in with a plaintext password.
func (r *Runner) LoginPassword(ctx context.Context, username, password string) error {
	return r.login(ctx, cas.PasswordCredential(username, password))
}

// StartQR asks the portal for a new QR login, the returned id is used to
// build the code the user scans (see qrlogin.ScanURL) and then passed to
// LoginQR.
func (r *Runner) StartQR(ctx context.Context) (string, error) {
	return r.qr.NewSession(ctx)
}

// LoginQR waits for the QR login to be confirmed and logs in with the
// credential it delivers.
func (r *Runner) LoginQR(ctx context.Context, id string) (qrlogin.Result, error) {
	result, err := r.qr.Await(ctx, id)
	if err != nil {
		return result, err
	}
	return result, r.login(ctx, result.Credential)
}

// Discover looks up the open period and its pending courses.
func (r *Runner) Discover(ctx context.Context) (Discovery, error) {
	if r.username == "" {
		return Discovery{}, ErrNotLoggedIn
	}
	period, err := r.jwgl.Period(ctx)
	if err != nil {
		return Discovery{}, err
	}
	pending, err := r.jwgl.PendingCourses(ctx, period)
	if err != nil {
		return Discovery{}, err
	}
	return Discovery{Period: period, Pending: pending}, nil
}

func periodKey(p jwgl.Period) string {
	return strings.Join([]string{p.Year, p.Semester, p.PeriodCode}, "/")
}

// SubmitAll submits the courses one at a time, pausing for at least the
// configured delay after each submission has finished. onItem (if not nil) is called
// after each course.
//
// a course the server refuses doesn't stop the run. a cancelled context or an
// invalidated session does, the results of the courses attempted so far are
// returned along with the error.
func (r *Runner) SubmitAll(ctx context.Context, p jwgl.Period, courses []jwgl.Course, onItem func(int, ItemResult)) ([]ItemResult, error) {
	ctx, span := tracer.Start(ctx, "runner:SubmitAll")
	defer span.End()
	span.SetAttributes(attribute.Int("courses", len(courses)))

	if r.username == "" {
		return nil, ErrNotLoggedIn
	}

	results := make([]ItemResult, 0, len(courses))
	for i, course := range courses {
		err := r.limiter.Wait(ctx)
		if err != nil {
			span.SetStatus(codes.Error, "cancelled")
			return results, err
		}

		item, res, err := r.submit(ctx, p, course)
		results = append(results, item)
		r.record(ctx, p, item, res)
		if onItem != nil {
			onItem(i, item)
		}
		r.rest()

		if errors.Is(err, jwgl.ErrSessionInvalidated) || errors.Is(err, jwgl.ErrNoSession) || ctx.Err() != nil {
			span.SetStatus(codes.Error, "run aborted")
			if err == nil {
				err = ctx.Err()
			}
			return results, err
		}
	}

	summary := Summarize(results)
	span.SetAttributes(attribute.Int("succeeded", summary.Succeeded), attribute.Int("failed", summary.Failed))
	r.tel.ReportCount(report_runner_submit, int64(summary.Succeeded))
	return results, nil
}

// Submit submits a single course, see SubmitAll.
func (r *Runner) Submit(ctx context.Context, p jwgl.Period, course jwgl.Course) (ItemResult, error) {
	results, err := r.SubmitAll(ctx, p, []jwgl.Course{course}, nil)
	if len(results) == 0 {
		return ItemResult{Course: course, Reason: errReason(err)}, err
	}
	return results[0], err
}

// rest restarts the throttle, the next submission waits a whole delay
// counted from now rather than from the start of the previous one.
func (r *Runner) rest() {
	r.limiter = rate.NewLimiter(rate.Every(r.delay), 1)
	r.limiter.AllowN(time.Now(), 1)
}

func errReason(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func (r *Runner) submit(ctx context.Context, p jwgl.Period, course jwgl.Course) (ItemResult, jwgl.Result, error) {
	res, err := r.jwgl.Submit(ctx, p, course)
	if err != nil {
		r.tel.ReportWarning(report_runner_submit, course.Key(), err)
		return ItemResult{Course: course, Success: false, Reason: err.Error()}, res, err
	}
	return ItemResult{Course: course, Success: res.Success, Reason: res.Reason}, res, nil
}

func (r *Runner) record(ctx context.Context, p jwgl.Period, item ItemResult, res jwgl.Result) {
	if r.ledger == nil {
		return
	}
	snippet := strings.TrimSpace(res.Body)
	if runes := []rune(snippet); len(runes) > snippetLength {
		snippet = string(runes[:snippetLength])
	}
	err := r.ledger.Add(ctx, evalstore.Record{
		RunID:           r.runID,
		Username:        r.username,
		Period:          periodKey(p),
		CourseKey:       item.Course.Key(),
		CourseName:      item.Course.CourseName,
		TeacherName:     item.Course.TeacherName,
		Success:         item.Success,
		Reason:          item.Reason,
		ResponseSnippet: snippet,
		SubmittedAt:     r.clock.Now(),
	})
	if err != nil {
		r.tel.ReportBroken(report_runner_ledger, fmt.Errorf("record %s: %w", item.Course.Key(), err))
	}
}
