package jwgl

import (
	"context"
	"zzuli-evaluation/internal/assert"
	"zzuli-evaluation/lib/platforms/zzuli"
	"zzuli-evaluation/lib/platforms/zzuli/session"
	"zzuli-evaluation/lib/telemetry"

	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("platforms/zzuli/jwgl")

const (
	report_client_probe           = "client.probe"
	report_client_period          = "client.period"
	report_client_pending_courses = "client.pending-courses"
	report_client_detail          = "client.detail"
	report_client_submit          = "client.submit"
)

const (
	// pjzt_m=20 selects evaluations of the student kind.
	evaluationState = "20"
	menuCode        = "S902"

	DefaultScore   = "10"
	DefaultComment = "老师教学认真负责，授课内容充实，课堂氛围活跃，注重培养学生的实践能力和创新思维。"
)

// Evaluation is what gets filled into every evaluation form.
type Evaluation struct {
	// Score is given to every indicator.
	Score string
	// Comment is written into every questionnaire text field.
	Comment string
}

// Client talks to the academic affairs system through a session that already
// went through the cas login.
type Client struct {
	session    *session.Session
	endpoints  zzuli.Endpoints
	evaluation Evaluation
	tel        telemetry.API
}

func NewClient(s *session.Session, endpoints zzuli.Endpoints, evaluation Evaluation, tel telemetry.API) *Client {
	assert.NotNil(s, "session")
	assert.NotNil(tel, "jwgl telemetry")

	if evaluation.Score == "" {
		evaluation.Score = DefaultScore
	}
	if evaluation.Comment == "" {
		evaluation.Comment = DefaultComment
	}
	return &Client{
		session:    s,
		endpoints:  endpoints,
		evaluation: evaluation,
		tel:        telemetry.NewScopedAPI("jwgl", tel),
	}
}

func (c *Client) Evaluation() Evaluation {
	return c.evaluation
}

func (c *Client) requireSession() error {
	if !c.session.HasCookies() {
		return ErrNoSession
	}
	return nil
}

// post sends a form the way the pages' own ajax calls do.
func (c *Client) post(ctx context.Context, path string, form session.Form) (session.Response, error) {
	return c.session.Post(
		ctx,
		c.endpoints.JWGL+path,
		form,
		false,
		session.AsXHR(),
		session.WithHeader("Referer", c.endpoints.JWGL+"/"),
		session.WithHeader("Origin", c.endpoints.JWGL),
	)
}
