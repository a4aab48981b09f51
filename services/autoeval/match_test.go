package autoeval

import (
	"testing"
	"zzuli-evaluation/lib/platforms/zzuli/jwgl"

	"github.com/stretchr/testify/require"
)

var courses = []jwgl.Course{
	{TeacherRef: "J1", CourseName: "高等数学A(二)", TeacherName: "张老师"},
	{TeacherRef: "J2", CourseName: "大学英语(三)", TeacherName: "李老师"},
	{TeacherRef: "J3", CourseName: "体育(四)", TeacherName: "王老师"},
}

func TestPick(t *testing.T) {
	c, ok := Pick(courses, "大学英语")
	require.True(t, ok)
	require.Equal(t, "J2", c.TeacherRef)

	c, ok = Pick(courses, "高等数学 张老师")
	require.True(t, ok)
	require.Equal(t, "J1", c.TeacherRef)

	_, ok = Pick(courses, "马克思主义基本原理")
	require.False(t, ok)
	_, ok = Pick(courses, "  ")
	require.False(t, ok)
}

func TestExclude(t *testing.T) {
	kept, excluded := Exclude(courses, []string{"体育", ""})
	require.Len(t, kept, 2)
	require.Len(t, excluded, 1)
	require.Equal(t, "J3", excluded[0].TeacherRef)

	kept, excluded = Exclude(courses, []string{" "})
	require.Len(t, kept, 3)
	require.Empty(t, excluded)
}
