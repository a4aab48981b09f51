package cas

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"zzuli-evaluation/lib/platforms/zzuli/session"
	"zzuli-evaluation/lib/platforms/zzuli/zzulitest"
	"zzuli-evaluation/lib/telemetry"

	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*zzulitest.Campus, *session.Session, *Authenticator, *telemetry.Recorder) {
	t.Helper()
	campus := zzulitest.New(t)
	rec := &telemetry.Recorder{}
	s, err := session.New(session.Options{Tel: rec})
	require.NoError(t, err)
	return campus, s, NewAuthenticator(s, campus.Endpoints(), rec), rec
}

func requireStepError(t *testing.T, err error, step State, sentinel error) *StepError {
	t.Helper()
	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr), "expected a *StepError, got %v", err)
	require.Equal(t, step, stepErr.Step)
	if sentinel != nil {
		require.ErrorIs(t, err, sentinel)
	}
	return stepErr
}

func TestLoginPassword(t *testing.T) {
	campus, s, auth, _ := setup(t)

	state, err := auth.Login(context.Background(), PasswordCredential(zzulitest.Username, zzulitest.Password))
	require.NoError(t, err)
	require.Equal(t, StateAuthenticated, state)
	require.Greater(t, s.CookieCount(), 0)

	require.Equal(t, []string{
		"POST /portal-pc/login/authentication",
		"GET /cas/login",
		"POST /cas/login",
		"GET /portal-pc/login/pcLogin",
		"GET /portal-pc/index.html",
		"GET /caslogin",
		"GET /jw/common/showYearTerm.action",
	}, campus.Paths())

	hits := campus.Hits()
	require.Equal(t, EncodePassword(zzulitest.Password), hits[0].Form.Get("password"))

	getlt := hits[1].Query
	require.Equal(t, "getlt", getlt.Get("action"))
	require.Equal(t, "jsonpCallback", getlt.Get("callback"))
	require.Equal(t, campus.Endpoints().Service, getlt.Get("service"))

	form := hits[2].Form
	require.Equal(t, zzulitest.Username, form.Get("username"))
	require.Equal(t, EncodePassword(zzulitest.Password), form.Get("password"))
	require.Equal(t, "LT-1-campus", form.Get("lt"))
	require.Equal(t, "e1s1", form.Get("execution"))
	require.Equal(t, "submit", form.Get("_eventId"))
	require.Equal(t, campus.Endpoints().Service, hits[2].Query.Get("service"))
}

func TestLoginQRToken(t *testing.T) {
	campus, _, auth, _ := setup(t)

	state, err := auth.Login(context.Background(), EncodedCredential(zzulitest.Username, zzulitest.QRToken))
	require.NoError(t, err)
	require.Equal(t, StateAuthenticated, state)

	portal := campus.HitsTo("/portal-pc/login/authentication")
	require.Len(t, portal, 1)
	require.Equal(t, zzulitest.QRToken, portal[0].Form.Get("password"))
	require.Equal(t, zzulitest.QRToken, campus.Hits()[2].Form.Get("password"))
}

func TestLoginPortalMarkers(t *testing.T) {
	for _, body := range []string{`{"success":true}`, `{"code":"0"}`, `{"code":0}`} {
		t.Run(body, func(t *testing.T) {
			campus, _, auth, _ := setup(t)
			campus.PortalSuccess = body

			state, err := auth.Login(context.Background(), PasswordCredential(zzulitest.Username, zzulitest.Password))
			require.NoError(t, err)
			require.Equal(t, StateAuthenticated, state)
		})
	}
}

func TestLoginRejected(t *testing.T) {
	campus, _, auth, rec := setup(t)

	state, err := auth.Login(context.Background(), PasswordCredential(zzulitest.Username, "wrong"))
	require.Equal(t, StateStart, state)
	stepErr := requireStepError(t, err, StatePortalVerified, ErrCredentialRejected)
	require.Equal(t, "账号或密码错误", stepErr.Reason)
	require.Len(t, campus.Hits(), 1)
	require.Len(t, rec.Reports("warning", report_authenticator_verify_portal), 1)

	campus.PortalFailure = `{"success":false}`
	_, err = auth.Login(context.Background(), PasswordCredential(zzulitest.Username, "wrong"))
	stepErr = requireStepError(t, err, StatePortalVerified, ErrCredentialRejected)
	require.Equal(t, "用户名或密码错误", stepErr.Reason)

	_, err = auth.Login(context.Background(), EncodedCredential(zzulitest.Username, "{gilight}_bad"))
	stepErr = requireStepError(t, err, StatePortalVerified, ErrCredentialRejected)
	require.Equal(t, "认证失败", stepErr.Reason)
}

func TestLoginEmptyCredential(t *testing.T) {
	campus, _, auth, _ := setup(t)

	_, err := auth.Login(context.Background(), Credential{Username: zzulitest.Username})
	requireStepError(t, err, StatePortalVerified, ErrCredentialRejected)
	require.Empty(t, campus.Hits())
}

func TestLoginMissingExecution(t *testing.T) {
	campus, _, auth, rec := setup(t)
	campus.TicketBody = `jsonpCallback({"lt":"LT-1-campus"})`

	state, err := auth.Login(context.Background(), PasswordCredential(zzulitest.Username, zzulitest.Password))
	require.Equal(t, StatePortalVerified, state)
	requireStepError(t, err, StateTicketObtained, ErrTicketUnavailable)
	require.Len(t, rec.Reports("broken", report_authenticator_obtain_ticket), 1)

	// nothing past the ticket request is attempted.
	require.Equal(t, []string{
		"POST /portal-pc/login/authentication",
		"GET /cas/login",
	}, campus.Paths())
}

func TestLoginTicketFormSoftFails(t *testing.T) {
	campus, _, auth, rec := setup(t)
	campus.TicketFormStatus = http.StatusInternalServerError

	state, err := auth.Login(context.Background(), PasswordCredential(zzulitest.Username, zzulitest.Password))
	require.NoError(t, err)
	require.Equal(t, StateAuthenticated, state)
	require.Len(t, rec.Reports("warning", report_authenticator_submit_ticket), 1)
	require.Len(t, campus.HitsTo("/caslogin"), 1)
}

func TestLoginInvalidated(t *testing.T) {
	campus, _, auth, _ := setup(t)
	campus.Invalidate = true

	state, err := auth.Login(context.Background(), PasswordCredential(zzulitest.Username, zzulitest.Password))
	require.Equal(t, StateTicketFormSubmitted, state)
	requireStepError(t, err, StateTargetEntered, ErrSessionInvalidated)
}

func TestLoginWithoutCookies(t *testing.T) {
	campus, s, auth, rec := setup(t)
	campus.SkipCookies = true

	state, err := auth.Login(context.Background(), PasswordCredential(zzulitest.Username, zzulitest.Password))
	require.Equal(t, StateTargetEntered, state)
	requireStepError(t, err, StateAuthenticated, ErrSessionInvalidated)
	require.Equal(t, 0, s.CookieCount())
	require.Len(t, rec.Reports("broken", report_authenticator_session_cookie), 1)
}

func TestLoginTransportError(t *testing.T) {
	campus, _, auth, _ := setup(t)
	campus.Server.Close()

	state, err := auth.Login(context.Background(), PasswordCredential(zzulitest.Username, zzulitest.Password))
	require.Equal(t, StateStart, state)
	stepErr := requireStepError(t, err, StatePortalVerified, nil)
	require.False(t, errors.Is(err, ErrCredentialRejected))
	require.Error(t, stepErr.Err)
}
