package jwgl

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"zzuli-evaluation/lib/htmlutil"

	"github.com/titanous/json5"
)

const (
	defaultTeacherName   = "未知教师"
	defaultCourseName    = "未知课程"
	defaultCredit        = "0"
	defaultEvalType      = "01"
	defaultIsMainTeacher = "1"
	defaultFlag          = "1"

	evaluatedFlag = "1"
)

var (
	optionRegex   = regexp.MustCompile(`<option[^>]*value='([^']+)'[^>]*>`)
	callSiteRegex = regexp.MustCompile(`parent\.jxpj\("(\{(?:\\"|[^"])*?\})","(\d+)"\)`)
	keyScanRegex  = regexp.MustCompile(`"(\w+)"\s*:\s*(?:"((?:\\"|[^"])*)"|(-?[\d.]+|true|false))`)
)

// decodeObject reads a flat JSON object into strings. it is decoded as json5
// since the markup sometimes carries javascript literals, when even that fails
// the keys are scanned for with a pattern.
func decodeObject(raw string) map[string]string {
	out := map[string]string{}

	var decoded map[string]any
	err := json5.Unmarshal([]byte(raw), &decoded)
	if err == nil {
		for key, value := range decoded {
			if s, ok := scalarString(value); ok {
				out[key] = s
			}
		}
		return out
	}

	for _, match := range keyScanRegex.FindAllStringSubmatch(raw, -1) {
		value := match[2]
		if value == "" {
			value = match[3]
		}
		out[match[1]] = strings.ReplaceAll(value, `\"`, `"`)
	}
	return out
}

func scalarString(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(v), true
	}
	return "", false
}

func field(fields map[string]string, key, fallback string) string {
	value := strings.TrimSpace(fields[key])
	if value == "" {
		return fallback
	}
	return value
}

// periodFromOption builds the period out of the json carried by an <option>.
func periodFromOption(fields map[string]string) (Period, error) {
	missing := []string{}
	for _, key := range []string{"xn", "xq_m", "lcdm"} {
		if strings.TrimSpace(fields[key]) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return Period{}, fmt.Errorf("%w: missing %s", ErrPeriodUnavailable, strings.Join(missing, ", "))
	}

	return Period{
		Year:                field(fields, "xn", ""),
		Semester:            field(fields, "xq_m", ""),
		PeriodCode:          field(fields, "lcdm", ""),
		StartDate:           field(fields, "qsrq", ""),
		EndDate:             field(fields, "jsrq", ""),
		IsIndicatorEval:     field(fields, "sfzbpj", defaultFlag) == "1",
		IsQuestionnaireEval: field(fields, "sfwjpj", defaultFlag) == "1",
	}, nil
}

// ParsePeriod reads the period out of the first <option> of the period lookup
// response.
func ParsePeriod(body string) (Period, error) {
	match := optionRegex.FindStringSubmatch(body)
	if len(match) < 2 {
		return Period{}, fmt.Errorf("%w: no period option", ErrPeriodUnavailable)
	}
	return periodFromOption(decodeObject(htmlutil.UnescapeAttr(match[1])))
}

// courseFromFields builds a course out of the json of a call site, the teacher
// and course references are mandatory.
func courseFromFields(fields map[string]string, flag string) (Course, error) {
	teacherRef := field(fields, "jsid", "")
	courseCode := field(fields, "kcdm", "")
	if teacherRef == "" || courseCode == "" {
		return Course{}, fmt.Errorf("call site is missing jsid or kcdm")
	}

	return Course{
		TeacherRef:    teacherRef,
		TeacherId:     field(fields, "gh", ""),
		TeacherName:   htmlutil.CleanText(field(fields, "xm", defaultTeacherName)),
		CourseCode:    courseCode,
		CourseName:    htmlutil.CleanText(field(fields, "kcmc", defaultCourseName)),
		ClassCode:     field(fields, "skbjdm", ""),
		Credit:        field(fields, "xf", defaultCredit),
		EvalType:      field(fields, "pjlb_m", defaultEvalType),
		IsMainTeacher: field(fields, "sfzjjs", defaultIsMainTeacher),
		StudentCode:   field(fields, "yhdm", ""),
		Evaluated:     flag == evaluatedFlag,
	}, nil
}

// ParseCourses reads every parent.jxpj(...) call site of the listing, done or
// not. call sites that can't be turned into a course are skipped and described
// in skipped.
func ParseCourses(body string) (courses []Course, skipped []string) {
	courses = []Course{}
	for _, match := range callSiteRegex.FindAllStringSubmatch(body, -1) {
		fields := decodeObject(htmlutil.UnescapeAttr(match[1]))
		course, err := courseFromFields(fields, match[2])
		if err != nil {
			skipped = append(skipped, fmt.Sprintf("%s: %s", err, truncate(match[1], 120)))
			continue
		}
		courses = append(courses, course)
	}
	return courses, skipped
}

// PendingOnly keeps the courses that have not been evaluated.
func PendingOnly(courses []Course) []Course {
	out := []Course{}
	for _, c := range courses {
		if !c.Evaluated {
			out = append(out, c)
		}
	}
	return out
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
