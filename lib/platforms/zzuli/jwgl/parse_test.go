package jwgl

import (
	"strings"
	"testing"
	"zzuli-evaluation/lib/platforms/zzuli/zzulitest"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestParsePeriod(t *testing.T) {
	period, err := ParsePeriod(zzulitest.PeriodHTML)
	require.NoError(t, err)
	require.Equal(t, Period{
		Year:                "2025",
		Semester:            "0",
		PeriodCode:          "X1",
		StartDate:           "2025-12-01",
		EndDate:             "2025-12-31",
		IsIndicatorEval:     true,
		IsQuestionnaireEval: true,
	}, period)
	require.Equal(t, "2025/0/X1", strings.Join([]string{period.Year, period.Semester, period.PeriodCode}, "/"))
}

func TestParsePeriodEscaped(t *testing.T) {
	body := `<option value='{&quot;xn&quot;:&quot;2024&quot;,&quot;xq_m&quot;:&quot;1&quot;,&quot;lcdm&quot;:&quot;Y2&quot;,&quot;sfwjpj&quot;:&quot;0&quot;}'>第二学期</option>`
	period, err := ParsePeriod(body)
	require.NoError(t, err)
	require.Equal(t, "2024", period.Year)
	require.Equal(t, "1", period.Semester)
	require.Equal(t, "Y2", period.PeriodCode)
	require.True(t, period.IsIndicatorEval)
	require.False(t, period.IsQuestionnaireEval)
}

func TestParsePeriodFailures(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{name: "missing lcdm", body: `<option value='{"xn":"2025","xq_m":"0"}'>x</option>`},
		{name: "empty year", body: `<option value='{"xn":"","xq_m":"0","lcdm":"X1"}'>x</option>`},
		{name: "no option", body: `<select id="pjlc"></select>`},
		{name: "login page", body: `<html>请重新登录</html>`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := ParsePeriod(c.body)
			require.ErrorIs(t, err, ErrPeriodUnavailable)
		})
	}
}

func TestParseCourses(t *testing.T) {
	courses, skipped := ParseCourses(zzulitest.ListingHTML)
	require.Len(t, skipped, 1)
	require.Contains(t, skipped[0], "missing jsid or kcdm")

	expected := []Course{
		{
			TeacherRef:    "J001",
			TeacherId:     "10086",
			TeacherName:   "张'老师",
			CourseCode:    "K001",
			CourseName:    "高等数学A(二)",
			ClassCode:     "B01",
			Credit:        "4.0",
			EvalType:      "01",
			IsMainTeacher: "1",
			StudentCode:   "542207000000",
		},
		{
			TeacherRef:    "J002",
			TeacherId:     "10010",
			TeacherName:   "李老师",
			CourseCode:    "K002",
			CourseName:    "大学英语(三)",
			ClassCode:     "B02",
			Credit:        "2.0",
			EvalType:      "01",
			IsMainTeacher: "1",
			StudentCode:   "542207000000",
			Evaluated:     true,
		},
		{
			TeacherRef:    "J003",
			TeacherName:   defaultTeacherName,
			CourseCode:    "K003",
			CourseName:    defaultCourseName,
			ClassCode:     "B03",
			Credit:        defaultCredit,
			EvalType:      defaultEvalType,
			IsMainTeacher: defaultIsMainTeacher,
			StudentCode:   "542207000000",
		},
	}
	if diff := cmp.Diff(expected, courses); diff != "" {
		t.Fatalf("courses differ (-want +got):\n%s", diff)
	}
}

func TestParseCoursesPending(t *testing.T) {
	body := `
<a onclick='parent.jxpj("{\"jsid\":\"A\",\"kcdm\":\"C1\",\"skbjdm\":\"S1\"}","0")'>评价</a>
<a onclick='parent.jxpj("{\"jsid\":\"B\",\"kcdm\":\"C2\",\"skbjdm\":\"S2\"}","1")'>查看</a>
`
	courses, skipped := ParseCourses(body)
	require.Empty(t, skipped)
	require.Len(t, courses, 2)

	pending := PendingOnly(courses)
	require.Len(t, pending, 1)
	require.Equal(t, "A", pending[0].TeacherRef)
	require.Equal(t, "A/C1/S1/", pending[0].Key())
}

func TestParseCoursesEmpty(t *testing.T) {
	courses, skipped := ParseCourses("<html>暂无数据</html>")
	require.NotNil(t, courses)
	require.Empty(t, courses)
	require.Empty(t, skipped)
}

func TestDecodeObjectFallback(t *testing.T) {
	// the missing comma breaks the decoder, the keys are still recovered.
	fields := decodeObject(`{"jsid":"J9","xf":3.5 "kcdm":"K9"}`)
	require.Equal(t, "J9", fields["jsid"])
	require.Equal(t, "K9", fields["kcdm"])
	require.Equal(t, "3.5", fields["xf"])
}

func TestTruncate(t *testing.T) {
	require.Equal(t, "abc", truncate("abc", 3))
	require.Equal(t, "张三...", truncate("张三丰", 2))
}
