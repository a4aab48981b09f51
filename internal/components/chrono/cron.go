package chrono

import (
	"context"
	"fmt"
	"time"
	"zzuli-evaluation/lib/telemetry"
	"zzuli-evaluation/lib/timezone"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("internal/components/chrono")

const (
	report_cron_job = "cron.job"
)

// Job is a unit of scheduled work, its context is cancelled once the
// scheduler is stopped.
type Job func(ctx context.Context) error

// CronAPI is the interface that anything depending on things to happen on a cron job should use.
type CronAPI interface {
	// Schedule runs job on every activation of spec and returns the time of
	// the first one.
	Schedule(spec, name string, job Job) (time.Time, error)
	// Stop stops scheduling new jobs, the returned context is done once the
	// running jobs have finished.
	Stop() context.Context
}

// StandardCron is the standard implementation of CronAPI using `github.com/robfig/cron/v3`,
// specs are interpreted in campus time.
type StandardCron struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	tel    telemetry.API
}

// NewStandardCron starts a scheduler whose jobs inherit ctx.
func NewStandardCron(ctx context.Context, tel telemetry.API) StandardCron {
	logger := cronLogger{tel: tel}
	cronner := cron.New(
		cron.WithLogger(logger),
		cron.WithLocation(timezone.Location),
		// an activation that is due while the previous one still runs is dropped.
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	cronner.Start()

	ctx, cancel := context.WithCancel(ctx)
	return StandardCron{
		cron:   cronner,
		ctx:    ctx,
		cancel: cancel,
		tel:    tel,
	}
}

func (s StandardCron) Schedule(spec, name string, job Job) (time.Time, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse cron spec %q: %w", spec, err)
	}
	s.cron.Schedule(schedule, cron.FuncJob(func() {
		s.run(name, job)
	}))
	return schedule.Next(timezone.Now()), nil
}

func (s StandardCron) run(name string, job Job) {
	ctx, span := tracer.Start(s.ctx, "cron:"+name)
	defer span.End()

	start := time.Now()
	err := job(ctx)
	span.SetAttributes(attribute.Int64("duration_ms", time.Since(start).Milliseconds()))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		s.tel.ReportWarning(report_cron_job, name, err)
		return
	}
	s.tel.ReportDebug("cron job finished", name, time.Since(start))
}

func (s StandardCron) Stop() context.Context {
	done := s.cron.Stop()
	s.cancel()
	return done
}

type cronLogger struct {
	tel telemetry.API
}

func (l cronLogger) formatParams(keysAndValues []any) []any {
	params := []any{}
	for i := 0; i < len(keysAndValues)/2; i++ {
		idx := i * 2
		params = append(params, fmt.Sprintf("%v: %v", keysAndValues[idx], keysAndValues[idx+1]))
	}
	return params
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.tel.ReportDebug("cron: "+msg, l.formatParams(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.tel.ReportBroken(
		"cron",
		fmt.Errorf("%s: %w", msg, err),
		l.formatParams(keysAndValues),
	)
}
