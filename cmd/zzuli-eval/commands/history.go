package commands

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var historyLimit *int

func init() {
	historyLimit = historyCmd.Flags().IntP("limit", "n", 20, "The amount of records to show.")
	rootCmd.AddCommand(historyCmd)
}

var historyCmd = &cobra.Command{
	Use:   "history [--limit <n>]",
	Short: "Shows the most recent submissions recorded in the local ledger.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		u := newUI()
		ledger, err := openLedger()
		if err != nil {
			return err
		}
		defer ledger.Close()

		records, err := ledger.List(cmd.Context(), *historyLimit)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			u.Info("暂无记录")
			return nil
		}

		t := u.Table()
		t.AppendHeader(table.Row{"时间", "学号", "轮次", "课程", "教师", "结果", "原因"})
		for _, r := range records {
			status := u.ok("成功")
			if !r.Success {
				status = u.err("失败")
			}
			t.AppendRow(table.Row{
				r.SubmittedAt.Format("2006-01-02 15:04:05"),
				r.Username,
				r.Period,
				r.CourseName,
				r.TeacherName,
				status,
				r.Reason,
			})
		}
		t.Render()
		return nil
	},
}
