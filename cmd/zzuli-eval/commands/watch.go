package commands

import (
	"context"
	"errors"
	"fmt"
	"zzuli-evaluation/internal/components/chrono"
	"zzuli-evaluation/lib/evalstore"
	"zzuli-evaluation/lib/platforms/zzuli/jwgl"
	"zzuli-evaluation/lib/telemetry"

	"github.com/spf13/cobra"
)

var watchSchedule *string

func init() {
	watchSchedule = watchCmd.Flags().String("schedule", "", "A cron spec (campus time), defaults to the config's schedule.")
	rootCmd.AddCommand(watchCmd)
}

// unattended runs a whole evaluation pass without asking anything.
func unattended(ctx context.Context, u *ui, ledger *evalstore.Store) error {
	runner, err := newRunner(u, ledger)
	if err != nil {
		return err
	}
	err = runner.LoginPassword(ctx, config.Username, config.Password)
	if err != nil {
		return fmt.Errorf("登录失败: %s: %w", describeLoginError(err), err)
	}
	discovery, err := runner.Discover(ctx)
	if errors.Is(err, jwgl.ErrPeriodUnavailable) {
		u.Info("当前没有进行中的评价轮次")
		return nil
	}
	if err != nil {
		return err
	}
	courses, err := selectCourses(u, discovery.Pending, "")
	if err != nil {
		return err
	}
	if len(courses) == 0 {
		u.Info("没有待评价课程")
		return nil
	}
	_, err = submit(ctx, u, runner, discovery.Period, courses)
	return err
}

var watchCmd = &cobra.Command{
	Use:   "watch [--schedule <cron spec>]",
	Short: "Stays running and evaluates pending courses on a schedule, needs a password in the config or environment.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if config.Username == "" || config.Password == "" {
			return errors.New("watch needs both a username and a password (config or ZZULI_USERNAME / ZZULI_PASSWORD)")
		}
		schedule := config.Schedule
		if *watchSchedule != "" {
			schedule = *watchSchedule
		}

		ctx := cmd.Context()
		u := newUI()
		ledger, err := openLedger()
		if err != nil {
			return err
		}
		defer ledger.Close()

		cron := chrono.NewStandardCron(ctx, telemetry.NewScopedAPI("watch", telemetry.NewSlogAPI()))
		next, err := cron.Schedule(schedule, "evaluate", func(ctx context.Context) error {
			u.Section("定时评价")
			return unattended(ctx, u, ledger)
		})
		if err != nil {
			return err
		}

		u.Info("已启动，计划: %s，首次运行: %s (Ctrl+C 退出)", schedule, next.Format("2006-01-02 15:04"))
		<-ctx.Done()
		<-cron.Stop().Done()
		return nil
	},
}
