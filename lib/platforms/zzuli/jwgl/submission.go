package jwgl

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"zzuli-evaluation/lib/htmlutil"
	"zzuli-evaluation/lib/platforms/zzuli/cas"
	"zzuli-evaluation/lib/platforms/zzuli/session"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const defaultTemplate = "001"

var (
	fallbackIndicators     = []string{"0001", "0002", "0003", "0004", "0005", "0006", "0007", "0008", "0009", "0010"}
	fallbackQuestionnaires = []string{"0001"}
)

// Detail is what the evaluation form of a course carries in hidden fields.
type Detail struct {
	IndicatorTemplate     string
	QuestionnaireTemplate string
	UserCode              string
	Indicators            []string
	Questionnaires        []string
	// the fallback flags are set when no id could be scraped and the fixed
	// fallback ids were used instead.
	IndicatorsFallback     bool
	QuestionnairesFallback bool
}

// scrapeTemplate reads the template ids and the user code, the templates fall
// back to "001" and the user code to "".
func scrapeTemplate(doc *goquery.Document) (indicator, questionnaire, userCode string) {
	indicator, ok := htmlutil.InputValue(doc, "zbmb_m")
	if !ok {
		indicator = defaultTemplate
	}
	questionnaire, ok = htmlutil.InputValue(doc, "wjmb_m")
	if !ok {
		questionnaire = defaultTemplate
	}
	userCode, _ = htmlutil.InputValue(doc, "userCode")
	return indicator, questionnaire, userCode
}

// scrapeIndicators reads the ids of every indicator in order, falling back
// to 0001 through 0010.
func scrapeIndicators(doc *goquery.Document) ([]string, bool) {
	ids := htmlutil.InputValues(doc, "zbdm")
	if len(ids) == 0 {
		return append([]string(nil), fallbackIndicators...), true
	}
	return ids, false
}

// scrapeQuestionnaires reads the ids of every questionnaire field in order,
// falling back to a single 0001.
func scrapeQuestionnaires(doc *goquery.Document) ([]string, bool) {
	ids := htmlutil.InputValues(doc, "wjdm")
	if len(ids) == 0 {
		return append([]string(nil), fallbackQuestionnaires...), true
	}
	return ids, false
}

// ParseDetail scrapes the evaluation form of a course.
func ParseDetail(body string) (Detail, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return Detail{}, err
	}

	var d Detail
	d.IndicatorTemplate, d.QuestionnaireTemplate, d.UserCode = scrapeTemplate(doc)
	d.Indicators, d.IndicatorsFallback = scrapeIndicators(doc)
	d.Questionnaires, d.QuestionnairesFallback = scrapeQuestionnaires(doc)
	return d, nil
}

// indicatorFragment packs the score of every indicator: "score@id@ ;" each.
func indicatorFragment(ids []string, score string) string {
	var out strings.Builder
	for _, id := range ids {
		fmt.Fprintf(&out, "%s@%s@ ;", score, id)
	}
	return out.String()
}

// questionnaireFragment packs the comment of every questionnaire field:
// "id@#@urlencoded comment;" each.
func questionnaireFragment(ids []string, comment string) string {
	encoded := url.QueryEscape(comment)
	var out strings.Builder
	for _, id := range ids {
		fmt.Fprintf(&out, "%s@#@%s;", id, encoded)
	}
	return out.String()
}

// BuildPayload builds the save request of a course. the server wants both the
// packed fragments and a flat field per indicator and questionnaire.
func BuildPayload(p Period, c Course, d Detail, e Evaluation) *Payload {
	const form = "wspjZbpjWjdcForm."

	payload := NewPayload().
		Set(form+"pjlb_m", c.EvalType).
		Set(form+"sfzjjs", c.IsMainTeacher).
		Set(form+"commitZB", indicatorFragment(d.Indicators, e.Score)).
		Set(form+"commitWJText", questionnaireFragment(d.Questionnaires, e.Comment)).
		Set(form+"commitWJSelect", "").
		Set(form+"xn", p.Year).
		Set(form+"xq", p.Semester).
		Set(form+"jsid", c.TeacherRef).
		Set(form+"kcdm", c.CourseCode).
		Set(form+"skbjdm", c.ClassCode).
		Set(form+"pjlc", p.PeriodCode).
		Set(form+"userCode", d.UserCode).
		Set(form+"pjzt_m", evaluationState).
		Set(form+"zbmb_m", d.IndicatorTemplate).
		Set(form+"wjmb_m", d.QuestionnaireTemplate).
		Set("bfzfs_xx", "").
		Set("bfzfs_sx", "").
		Set("totalcj", "100").
		Set("zbSize", strconv.Itoa(len(d.Indicators))).
		Set("zbmb", d.IndicatorTemplate).
		Set("wjmb", d.QuestionnaireTemplate).
		Set("wjSize", strconv.Itoa(len(d.Questionnaires))).
		Set("menucode_current", menuCode)

	for i := range d.Indicators {
		payload.Set(fmt.Sprintf("sel_scorecj%d", i), e.Score)
	}
	for i := range d.Questionnaires {
		payload.Set(fmt.Sprintf("area%d", i), e.Comment)
	}
	return payload
}

var successMarkers = []string{"成功", "保存成功"}

func isBlankAnswer(body string) bool {
	trimmed := strings.TrimSpace(body)
	return trimmed == "" || trimmed == "null"
}

// IsSuccess interprets the answer of the save endpoint.
//
// besides the explicit markers an empty or "null" body is counted as success,
// the endpoint answers that way on success as well. it can just as well hide
// a failure that the server didn't report.
func IsSuccess(body string) bool {
	if isBlankAnswer(body) {
		return true
	}
	trimmed := strings.TrimSpace(body)
	compact := strings.ToLower(strings.Join(strings.Fields(trimmed), ""))
	if strings.Contains(compact, `"status":"200"`) || strings.Contains(compact, `"success":true`) {
		return true
	}
	for _, marker := range successMarkers {
		if strings.Contains(trimmed, marker) {
			return true
		}
	}
	return false
}

func detailQuery(p Period, c Course) string {
	return NewPayload().
		Set("xn", p.Year).
		Set("xq", p.Semester).
		Set("pjlc", p.PeriodCode).
		Set("jsid", c.TeacherRef).
		Set("kcdm", c.CourseCode).
		Set("skbjdm", c.ClassCode).
		Set("pjlb_m", c.EvalType).
		Set("sfzjjs", c.IsMainTeacher).
		Set("yhdm", c.StudentCode).
		Set("pjzt_m", evaluationState).
		Encode()
}

// Detail fetches and scrapes the evaluation form of a course.
func (c *Client) Detail(ctx context.Context, p Period, course Course) (Detail, error) {
	err := c.requireSession()
	if err != nil {
		return Detail{}, err
	}

	res, err := c.session.Get(
		ctx,
		c.endpoints.JWGL+"/student/wspj_tjzbpj_wjdcb_pj.jsp?"+detailQuery(p, course),
		true,
		session.WithHeader("Referer", c.endpoints.JWGL+"/"),
	)
	if err != nil {
		c.tel.ReportBroken(report_client_detail, err, course.Key())
		return Detail{}, fmt.Errorf("evaluation form: %w", err)
	}
	if cas.IsInvalidated(res.Body) {
		return Detail{}, ErrSessionInvalidated
	}

	detail, err := ParseDetail(res.Body)
	if err != nil {
		c.tel.ReportBroken(report_client_detail, err, course.Key())
		return Detail{}, fmt.Errorf("parse evaluation form: %w", err)
	}
	if detail.IndicatorsFallback {
		c.tel.ReportWarning(report_client_detail, "no indicators found, using fallback ids", course.Key())
	}
	if detail.QuestionnairesFallback {
		c.tel.ReportWarning(report_client_detail, "no questionnaires found, using fallback ids", course.Key())
	}
	return detail, nil
}

// Submit fills in and saves the evaluation of a course. a server that refuses
// the evaluation yields a Result with Success false, errors are only returned
// when the server couldn't be talked to.
func (c *Client) Submit(ctx context.Context, p Period, course Course) (Result, error) {
	ctx, span := tracer.Start(ctx, "client:Submit")
	defer span.End()
	span.SetAttributes(attribute.String("course", course.Key()))

	detail, err := c.Detail(ctx, p, course)
	if err != nil {
		span.SetStatus(codes.Error, "failed to get evaluation form")
		return Result{}, err
	}

	payload := BuildPayload(p, course, detail, c.evaluation)
	res, err := c.post(ctx, "/jw/wspjZbpjWjdc/save.action", payload)
	if err != nil {
		span.SetStatus(codes.Error, "request failed")
		c.tel.ReportBroken(report_client_submit, err, course.Key())
		return Result{}, fmt.Errorf("save evaluation: %w", err)
	}

	if !IsSuccess(res.Body) {
		reason := truncate(strings.TrimSpace(res.Body), 200)
		if cas.IsInvalidated(res.Body) {
			reason = ErrSessionInvalidated.Error()
		}
		span.SetStatus(codes.Error, "server refused evaluation")
		c.tel.ReportWarning(report_client_submit, "refused", course.Key(), reason)
		return Result{Success: false, Reason: reason, Body: res.Body}, nil
	}

	if isBlankAnswer(res.Body) {
		c.tel.ReportWarning(report_client_submit, "ambiguous success", course.Key(), res.StatusCode)
	}
	span.SetAttributes(attribute.Bool("success", true))
	return Result{Success: true, Body: res.Body}, nil
}
