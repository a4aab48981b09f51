package jwgl

import (
	"context"
	"fmt"
	"net/url"
	"zzuli-evaluation/lib/platforms/zzuli/cas"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Period probes the home page (which also warms the session up) and then
// looks up the currently open evaluation period.
func (c *Client) Period(ctx context.Context) (Period, error) {
	ctx, span := tracer.Start(ctx, "client:Period")
	defer span.End()

	err := c.requireSession()
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return Period{}, err
	}

	home, err := c.session.Get(ctx, c.endpoints.JWGL+"/", true)
	if err != nil {
		c.tel.ReportWarning(report_client_probe, err)
	} else if cas.IsInvalidated(home.Body) {
		span.SetStatus(codes.Error, "session invalidated")
		c.tel.ReportWarning(report_client_probe, "session invalidated", home.URL)
		return Period{}, ErrSessionInvalidated
	}

	res, err := c.post(ctx, "/jw/wspjZbpjWjdc/getPjlcInfo.action", url.Values{"pjzt_m": {evaluationState}})
	if err != nil {
		span.SetStatus(codes.Error, "request failed")
		c.tel.ReportBroken(report_client_period, err)
		return Period{}, fmt.Errorf("period lookup: %w", err)
	}

	period, err := ParsePeriod(res.Body)
	if err != nil {
		if cas.IsInvalidated(res.Body) {
			span.SetStatus(codes.Error, "session invalidated")
			return Period{}, ErrSessionInvalidated
		}
		span.SetStatus(codes.Error, "no period")
		c.tel.ReportWarning(report_client_period, err, truncate(res.Body, 200))
		return Period{}, err
	}

	span.SetAttributes(
		attribute.String("year", period.Year),
		attribute.String("semester", period.Semester),
		attribute.String("period", period.PeriodCode),
	)
	return period, nil
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func listingPayload(p Period) *Payload {
	return NewPayload().
		Set("xn", p.Year).
		Set("xq", p.Semester).
		Set("pjlc", p.PeriodCode).
		Set("pjzt_m", evaluationState).
		Set("sfzbpj", boolFlag(p.IsIndicatorEval)).
		Set("sfwjpj", boolFlag(p.IsQuestionnaireEval)).
		Set("pjfsbz", "0").
		Set("qyxjkc", "").
		Set("zysx", "").
		Set("djs", "").
		Set("sfbd", "0").
		Set("kgz", "0").
		Set("records", "").
		Set("menucode", menuCode)
}

// Courses lists every course of the period, evaluated or not.
func (c *Client) Courses(ctx context.Context, p Period) ([]Course, error) {
	ctx, span := tracer.Start(ctx, "client:Courses")
	defer span.End()

	err := c.requireSession()
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	res, err := c.post(ctx, "/taglib/DataTable.jsp?tableId=50058&fre=1", listingPayload(p))
	if err != nil {
		span.SetStatus(codes.Error, "request failed")
		c.tel.ReportBroken(report_client_pending_courses, err)
		return nil, fmt.Errorf("course listing: %w", err)
	}

	// a login prompt may still carry call sites of a cached listing.
	if cas.IsInvalidated(res.Body) {
		span.SetStatus(codes.Error, "session invalidated")
		c.tel.ReportWarning(report_client_pending_courses, "session invalidated", res.URL)
		return nil, ErrSessionInvalidated
	}

	courses, skipped := ParseCourses(res.Body)
	for _, reason := range skipped {
		c.tel.ReportWarning(report_client_pending_courses, "skipped call site", reason)
	}

	span.SetAttributes(attribute.Int("courses", len(courses)), attribute.Int("skipped", len(skipped)))
	return courses, nil
}

// PendingCourses lists the courses of the period that still need to be evaluated.
func (c *Client) PendingCourses(ctx context.Context, p Period) ([]Course, error) {
	courses, err := c.Courses(ctx, p)
	if err != nil {
		return nil, err
	}
	pending := PendingOnly(courses)
	c.tel.ReportCount(report_client_pending_courses, int64(len(pending)))
	return pending, nil
}
