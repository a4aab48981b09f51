package commands

import (
	"context"
	"fmt"
	"zzuli-evaluation/lib/platforms/zzuli/jwgl"
	"zzuli-evaluation/services/autoeval"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	runCourse *string
	runYes    *bool
)

func init() {
	runCourse = runCmd.Flags().String("course", "", "Only evaluate the course whose name is closest to this.")
	runYes = runCmd.Flags().BoolP("yes", "y", false, "Don't ask for confirmation.")
	rootCmd.AddCommand(runCmd)
}

func printResults(u *ui, results []autoeval.ItemResult) {
	t := u.Table()
	t.AppendHeader(table.Row{"课程", "教师", "结果", "原因"})
	for _, r := range results {
		status := u.ok("成功")
		if !r.Success {
			status = u.err("失败")
		}
		t.AppendRow(table.Row{r.Course.CourseName, r.Course.TeacherName, status, r.Reason})
	}
	t.Render()
}

// selectCourses applies the skip list and the --course filter.
func selectCourses(u *ui, pending []jwgl.Course, query string) ([]jwgl.Course, error) {
	kept, excluded := autoeval.Exclude(pending, config.Evaluation.Skip)
	for _, c := range excluded {
		u.Info("跳过 %s (%s)", c.CourseName, c.TeacherName)
	}
	if query == "" {
		return kept, nil
	}
	course, ok := autoeval.Pick(kept, query)
	if !ok {
		return nil, fmt.Errorf("没有与 %q 匹配的待评价课程", query)
	}
	u.Info("已选择: %s - %s", course.CourseName, course.TeacherName)
	return []jwgl.Course{course}, nil
}

// submit submits the courses with a progress bar and prints the outcome.
func submit(ctx context.Context, u *ui, runner *autoeval.Runner, period jwgl.Period, courses []jwgl.Course) (autoeval.Summary, error) {
	bar := u.Progress(len(courses), "正在提交评价")
	results, err := runner.SubmitAll(ctx, period, courses, func(i int, item autoeval.ItemResult) {
		bar.Describe(item.Course.CourseName)
		_ = bar.Add(1)
	})
	_ = bar.Finish()

	printResults(u, results)
	summary := autoeval.Summarize(results)
	if summary.Failed == 0 && err == nil {
		u.Success("全部评价完成！成功: %d 门", summary.Succeeded)
	} else {
		u.Warning("评价完成。成功: %d 门，失败: %d 门", summary.Succeeded, summary.Failed)
	}
	u.Info("提示：请登录教务系统确认评价结果 (记录编号 %s)", runner.RunID())
	return summary, err
}

var runCmd = &cobra.Command{
	Use:   "run [--qr] [-u <username>] [--course <name>] [--yes]",
	Short: "Logs in and evaluates every pending course (or a single one).",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		u := newUI()

		ledger, err := openLedger()
		if err != nil {
			return err
		}
		defer ledger.Close()

		runner, err := newRunner(u, ledger)
		if err != nil {
			return err
		}
		discovery, err := discover(ctx, u, runner)
		if err != nil {
			return err
		}

		u.Section("待评价课程")
		courses, err := selectCourses(u, discovery.Pending, *runCourse)
		if err != nil {
			return err
		}
		if len(courses) == 0 {
			u.Success("所有课程已评价完成")
			return nil
		}
		printCourses(u, courses)

		if !*runYes && !u.Confirm(fmt.Sprintf("确认对以上 %d 门课程进行评价？", len(courses))) {
			u.Info("操作已取消")
			return nil
		}

		summary, err := submit(ctx, u, runner, discovery.Period, courses)
		if err != nil {
			return err
		}
		if summary.Failed > 0 {
			return fmt.Errorf("%d 门课程评价失败", summary.Failed)
		}
		return nil
	},
}
