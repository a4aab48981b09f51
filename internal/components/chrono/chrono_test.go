package chrono

import (
	"context"
	"errors"
	"testing"
	"time"
	"zzuli-evaluation/lib/telemetry"
	"zzuli-evaluation/lib/timezone"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/require"
)

func TestFixedImpl(t *testing.T) {
	at := time.Date(2025, time.December, 1, 2, 0, 0, 0, time.UTC)
	clock := FixedImpl{At: at}
	require.True(t, at.Equal(clock.Now()))
	require.Equal(t, timezone.Location, clock.Now().Location())
	require.Equal(t, 10, clock.Now().Hour())
}

func TestCronLogger(t *testing.T) {
	rec := &telemetry.Recorder{}
	logger := cronLogger{tel: rec}

	require.Equal(t, []any{"entry: 1", "next: x"}, logger.formatParams([]any{"entry", 1, "next", "x", "dangling"}))

	logger.Info("schedule", "entry", 1)
	logger.Error(errors.New("boom"), "panic", "entry", 1)

	require.Len(t, rec.Reports("debug", "cron: schedule"), 1)
	broken := rec.Reports("broken", "cron")
	require.Len(t, broken, 1)
	require.ErrorContains(t, broken[0].Params[0].(error), "panic: boom")
}

func TestStandardCron(t *testing.T) {
	rec := &telemetry.Recorder{}
	c := NewStandardCron(context.Background(), rec)

	fired := make(chan struct{}, 1)
	next, err := c.Schedule("@every 1s", "tick", func(ctx context.Context) error {
		select {
		case fired <- struct{}{}:
		default:
		}
		return errors.New("tick failed")
	})
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(time.Second), next, 2*time.Second)

	_, err = c.Schedule("not a spec", "broken", func(ctx context.Context) error { return nil })
	require.Error(t, err)

	select {
	case <-fired:
	case <-time.After(5 * time.Second):
		t.Fatal("job never ran")
	}
	<-c.Stop().Done()

	require.NotEmpty(t, rec.Reports("warning", report_cron_job))
}

func TestStandardCronStopCancelsJobs(t *testing.T) {
	c := NewStandardCron(context.Background(), &telemetry.Recorder{})

	started := make(chan struct{})
	cancelled := make(chan struct{})
	_, err := c.Schedule("@every 1s", "long", func(ctx context.Context) error {
		select {
		case started <- struct{}{}:
		default:
			return nil
		}
		<-ctx.Done()
		close(cancelled)
		return ctx.Err()
	})
	require.NoError(t, err)

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("job never ran")
	}
	done := c.Stop()
	select {
	case <-cancelled:
	case <-time.After(5 * time.Second):
		t.Fatal("job context was not cancelled")
	}
	<-done.Done()
}

func TestDailySchedule(t *testing.T) {
	schedule, err := cron.ParseStandard("0 9 * * *")
	require.NoError(t, err)

	// 08:30 in Zhengzhou is 00:30 UTC.
	now := time.Date(2025, time.December, 1, 0, 30, 0, 0, time.UTC).In(timezone.Location)
	next := schedule.Next(now)
	require.Equal(t, 9, next.Hour())
	require.Equal(t, 1, next.Day())
	require.Equal(t, timezone.Location, next.Location())
}
