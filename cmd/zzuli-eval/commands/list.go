package commands

import (
	"context"
	"errors"
	"fmt"
	"zzuli-evaluation/lib/platforms/zzuli/jwgl"
	"zzuli-evaluation/services/autoeval"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(listCmd)
}

func semesterName(p jwgl.Period) string {
	if p.Semester == "0" {
		return "一"
	}
	return "二"
}

func printPeriod(u *ui, p jwgl.Period) {
	u.Info("评价轮次: %s学年第%s学期 (%s)", p.Year, semesterName(p), p.PeriodCode)
	if p.StartDate != "" || p.EndDate != "" {
		u.Info("评价时间: %s ~ %s", p.StartDate, p.EndDate)
	}
}

func printCourses(u *ui, courses []jwgl.Course) {
	t := u.Table()
	t.AppendHeader(table.Row{"#", "课程", "教师", "学分", "课程代码", "班级"})
	for i, c := range courses {
		t.AppendRow(table.Row{i + 1, c.CourseName, c.TeacherName, c.Credit, c.CourseCode, c.ClassCode})
	}
	t.Render()
}

// discover logs in and looks up the pending evaluations.
func discover(ctx context.Context, u *ui, runner *autoeval.Runner) (autoeval.Discovery, error) {
	err := login(ctx, u, runner)
	if err != nil {
		return autoeval.Discovery{}, err
	}

	var discovery autoeval.Discovery
	err = u.Spin("正在获取评价信息...", func() error {
		var err error
		discovery, err = runner.Discover(ctx)
		return err
	})
	if errors.Is(err, jwgl.ErrPeriodUnavailable) {
		return autoeval.Discovery{}, fmt.Errorf("当前没有进行中的评价轮次: %w", err)
	}
	if err != nil {
		return autoeval.Discovery{}, err
	}
	printPeriod(u, discovery.Period)
	return discovery, nil
}

var listCmd = &cobra.Command{
	Use:   "list [--qr] [-u <username>]",
	Short: "Logs in and lists the courses that still need to be evaluated.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		u := newUI()
		runner, err := newRunner(u, nil)
		if err != nil {
			return err
		}

		discovery, err := discover(cmd.Context(), u, runner)
		if err != nil {
			return err
		}

		u.Section("待评价课程")
		if len(discovery.Pending) == 0 {
			u.Success("所有课程已评价完成")
			return nil
		}
		u.Info("共 %d 门待评价课程", len(discovery.Pending))
		printCourses(u, discovery.Pending)
		return nil
	},
}
