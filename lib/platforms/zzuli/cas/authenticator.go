package cas

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"zzuli-evaluation/internal/assert"
	"zzuli-evaluation/lib/platforms/zzuli"
	"zzuli-evaluation/lib/platforms/zzuli/session"
	"zzuli-evaluation/lib/telemetry"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("platforms/zzuli/cas")

const (
	report_authenticator_verify_portal  = "authenticator.verify-portal"
	report_authenticator_obtain_ticket  = "authenticator.obtain-ticket"
	report_authenticator_submit_ticket  = "authenticator.submit-ticket"
	report_authenticator_enter_target   = "authenticator.enter-target"
	report_authenticator_session_cookie = "authenticator.session-cookies"
)

// TicketFormMaxHops bounds the redirect chain after the ticket form is posted,
// it passes through the cas, the portal and back.
const TicketFormMaxHops = 15

type Ticket struct {
	LT        string
	Execution string
}

// Authenticator performs the single sign on handshake that ends with the
// session logged into the academic affairs system.
type Authenticator struct {
	session   *session.Session
	endpoints zzuli.Endpoints
	tel       telemetry.API
}

func NewAuthenticator(s *session.Session, endpoints zzuli.Endpoints, tel telemetry.API) *Authenticator {
	assert.NotNil(s, "session")
	assert.NotNil(tel, "authenticator telemetry")

	return &Authenticator{
		session:   s,
		endpoints: endpoints,
		tel:       telemetry.NewScopedAPI("cas", tel),
	}
}

// Login runs every step of the handshake in order, it returns the last state
// that was reached and a *StepError describing the step that failed.
//
// no step is retried, a failed login must be restarted from scratch with a
// new call (and ideally a new session).
func (a *Authenticator) Login(ctx context.Context, cred Credential) (State, error) {
	ctx, span := tracer.Start(ctx, "authenticator:Login")
	defer span.End()
	span.SetAttributes(attribute.String("source", cred.Source.String()))

	state, err := a.login(ctx, cred)
	span.SetAttributes(attribute.String("state", state.String()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "login failed")
	}
	return state, err
}

func (a *Authenticator) login(ctx context.Context, cred Credential) (State, error) {
	if !cred.valid() {
		return StateStart, &StepError{
			Step:   StatePortalVerified,
			Reason: "username and password must not be empty",
			Err:    ErrCredentialRejected,
		}
	}

	err := a.verifyPortal(ctx, cred)
	if err != nil {
		return StateStart, err
	}

	ticket, err := a.obtainTicket(ctx)
	if err != nil {
		return StatePortalVerified, err
	}

	// the result of the ticket form is not authoritative, entering the target
	// system verifies whether the handshake actually went through.
	a.submitTicket(ctx, cred, ticket)

	err = a.enterTarget(ctx)
	if err != nil {
		return StateTicketFormSubmitted, err
	}

	if !a.session.HasCookies() {
		a.tel.ReportBroken(report_authenticator_session_cookie, "no cookies after a successful handshake")
		return StateTargetEntered, &StepError{
			Step:   StateAuthenticated,
			Reason: "no session cookies",
			Err:    ErrSessionInvalidated,
		}
	}
	return StateAuthenticated, nil
}

func (a *Authenticator) verifyPortal(ctx context.Context, cred Credential) error {
	res, err := a.session.Post(
		ctx,
		a.endpoints.Portal+"/login/authentication",
		url.Values{
			"username": {cred.Username},
			"password": {cred.Encoded},
		},
		false,
		session.AsXHR(),
		session.WithHeader("Referer", a.endpoints.Portal+"/"),
	)
	if err != nil {
		a.tel.ReportBroken(report_authenticator_verify_portal, err)
		return &StepError{Step: StatePortalVerified, Reason: "portal request failed", Err: err}
	}

	if !portalAccepted(res.Body) {
		fallback := defaultRejectedMessage
		if cred.Source == SourceQR {
			fallback = "认证失败"
		}
		msg := extractMessage(res.Body, fallback)
		a.tel.ReportWarning(report_authenticator_verify_portal, "rejected", cred.Username, msg)
		return &StepError{Step: StatePortalVerified, Reason: msg, Err: ErrCredentialRejected}
	}

	a.tel.ReportDebug("portal accepted credential", cred.Username)
	return nil
}

func (a *Authenticator) serviceQuery() string {
	return url.QueryEscape(a.endpoints.Service)
}

func (a *Authenticator) obtainTicket(ctx context.Context) (Ticket, error) {
	res, err := a.session.Get(
		ctx,
		fmt.Sprintf(
			"%s/login?action=getlt&service=%s&callback=jsonpCallback",
			a.endpoints.CAS,
			a.serviceQuery(),
		),
		false,
	)
	if err != nil {
		a.tel.ReportBroken(report_authenticator_obtain_ticket, err)
		return Ticket{}, &StepError{Step: StateTicketObtained, Reason: "ticket request failed", Err: err}
	}

	lt, ok := extractLT(res.Body)
	if !ok {
		a.tel.ReportBroken(report_authenticator_obtain_ticket, "missing lt", res.StatusCode)
		return Ticket{}, &StepError{Step: StateTicketObtained, Reason: "response has no lt", Err: ErrTicketUnavailable}
	}
	execution, ok := extractExecution(res.Body)
	if !ok {
		a.tel.ReportBroken(report_authenticator_obtain_ticket, "missing execution", res.StatusCode)
		return Ticket{}, &StepError{Step: StateTicketObtained, Reason: "response has no execution", Err: ErrTicketUnavailable}
	}

	return Ticket{LT: lt, Execution: execution}, nil
}

// submitTicket soft fails, it reports whether the redirect chain ended in a
// non-error status.
func (a *Authenticator) submitTicket(ctx context.Context, cred Credential, ticket Ticket) bool {
	res, err := a.session.Post(
		ctx,
		fmt.Sprintf("%s/login?service=%s", a.endpoints.CAS, a.serviceQuery()),
		url.Values{
			"username":  {cred.Username},
			"password":  {cred.Encoded},
			"lt":        {ticket.LT},
			"execution": {ticket.Execution},
			"_eventId":  {"submit"},
		},
		true,
		session.WithMaxHops(TicketFormMaxHops),
	)
	if err != nil {
		a.tel.ReportWarning(report_authenticator_submit_ticket, err)
		return false
	}
	if res.StatusCode >= http.StatusBadRequest {
		a.tel.ReportWarning(report_authenticator_submit_ticket, "error status", res.StatusCode, res.URL)
		return false
	}
	if res.Exhausted {
		a.tel.ReportWarning(report_authenticator_submit_ticket, "redirect chain did not settle", res.URL)
	}
	a.tel.ReportDebug("ticket form submitted", res.StatusCode, res.Hops)
	return true
}

func (a *Authenticator) enterTarget(ctx context.Context) error {
	res, err := a.session.Get(ctx, a.endpoints.JWGL+"/caslogin", true)
	if err != nil {
		a.tel.ReportBroken(report_authenticator_enter_target, err)
		return &StepError{Step: StateTargetEntered, Reason: "entry request failed", Err: err}
	}
	if IsInvalidated(res.Body) {
		a.tel.ReportWarning(report_authenticator_enter_target, "credential invalidated", res.URL)
		return &StepError{Step: StateTargetEntered, Reason: "downstream rejected the ticket", Err: ErrSessionInvalidated}
	}
	return nil
}
