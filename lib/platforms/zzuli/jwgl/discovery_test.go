package jwgl

import (
	"context"
	"testing"
	"zzuli-evaluation/lib/platforms/zzuli/cas"
	"zzuli-evaluation/lib/platforms/zzuli/session"
	"zzuli-evaluation/lib/platforms/zzuli/zzulitest"
	"zzuli-evaluation/lib/telemetry"

	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T, campus *zzulitest.Campus) (*Client, *telemetry.Recorder) {
	t.Helper()
	rec := &telemetry.Recorder{}
	s, err := session.New(session.Options{Tel: rec})
	require.NoError(t, err)
	return NewClient(s, campus.Endpoints(), Evaluation{}, rec), rec
}

// loggedIn returns a client whose session went through the whole handshake.
func loggedIn(t *testing.T, campus *zzulitest.Campus) (*Client, *telemetry.Recorder) {
	t.Helper()
	rec := &telemetry.Recorder{}
	s, err := session.New(session.Options{Tel: rec})
	require.NoError(t, err)

	auth := cas.NewAuthenticator(s, campus.Endpoints(), rec)
	_, err = auth.Login(context.Background(), cas.PasswordCredential(zzulitest.Username, zzulitest.Password))
	require.NoError(t, err)

	return NewClient(s, campus.Endpoints(), Evaluation{}, rec), rec
}

func TestNoSession(t *testing.T) {
	campus := zzulitest.New(t)
	client, _ := newClient(t, campus)
	ctx := context.Background()

	_, err := client.Period(ctx)
	require.ErrorIs(t, err, ErrNoSession)
	_, err = client.PendingCourses(ctx, Period{Year: "2025"})
	require.ErrorIs(t, err, ErrNoSession)
	_, err = client.Submit(ctx, Period{}, Course{TeacherRef: "J001", CourseCode: "K001"})
	require.ErrorIs(t, err, ErrNoSession)

	require.Empty(t, campus.Hits())
}

func TestDefaultEvaluation(t *testing.T) {
	campus := zzulitest.New(t)
	client, _ := newClient(t, campus)
	require.Equal(t, Evaluation{Score: DefaultScore, Comment: DefaultComment}, client.Evaluation())
}

func TestPeriod(t *testing.T) {
	campus := zzulitest.New(t)
	client, _ := loggedIn(t, campus)
	before := len(campus.Hits())

	period, err := client.Period(context.Background())
	require.NoError(t, err)
	require.Equal(t, "X1", period.PeriodCode)

	paths := campus.Paths()[before:]
	require.Equal(t, []string{"GET /", "POST /jw/wspjZbpjWjdc/getPjlcInfo.action"}, paths)

	lookup := campus.HitsTo("/jw/wspjZbpjWjdc/getPjlcInfo.action")
	require.Equal(t, "20", lookup[0].Form.Get("pjzt_m"))
}

func TestPeriodUnavailable(t *testing.T) {
	campus := zzulitest.New(t)
	campus.PeriodHTML = `<select id="pjlc"></select>`
	client, _ := loggedIn(t, campus)

	_, err := client.Period(context.Background())
	require.ErrorIs(t, err, ErrPeriodUnavailable)
}

func TestPeriodInvalidated(t *testing.T) {
	campus := zzulitest.New(t)
	client, _ := loggedIn(t, campus)
	campus.Invalidate = true

	_, err := client.Period(context.Background())
	require.ErrorIs(t, err, ErrSessionInvalidated)
}

func TestPendingCourses(t *testing.T) {
	campus := zzulitest.New(t)
	client, rec := loggedIn(t, campus)
	ctx := context.Background()

	period, err := client.Period(ctx)
	require.NoError(t, err)

	pending, err := client.PendingCourses(ctx, period)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	require.Equal(t, "J001", pending[0].TeacherRef)
	require.Equal(t, "J003", pending[1].TeacherRef)

	listing := campus.HitsTo("/taglib/DataTable.jsp")
	require.Len(t, listing, 1)
	require.Equal(t, "50058", listing[0].Query.Get("tableId"))
	require.Equal(t, "1", listing[0].Query.Get("fre"))
	form := listing[0].Form
	require.Equal(t, "2025", form.Get("xn"))
	require.Equal(t, "0", form.Get("xq"))
	require.Equal(t, "X1", form.Get("pjlc"))
	require.Equal(t, "20", form.Get("pjzt_m"))
	require.Equal(t, "1", form.Get("sfzbpj"))
	require.Equal(t, "S902", form.Get("menucode"))

	require.Len(t, rec.Reports("warning", "pending-courses"), 1)
	counts := rec.Reports("count", "pending-courses")
	require.Len(t, counts, 1)
	require.Equal(t, []any{int64(2)}, counts[0].Params)
}

func TestPendingCoursesInvalidatedWithCallSites(t *testing.T) {
	campus := zzulitest.New(t)
	client, _ := loggedIn(t, campus)
	ctx := context.Background()

	period, err := client.Period(ctx)
	require.NoError(t, err)

	campus.ListingHTML = zzulitest.ListingHTML + "<script>alert('凭证已失效，请重新登录');</script>"
	pending, err := client.PendingCourses(ctx, period)
	require.ErrorIs(t, err, ErrSessionInvalidated)
	require.Empty(t, pending)
}

func TestListingPayloadOrder(t *testing.T) {
	payload := listingPayload(Period{Year: "2025", Semester: "1", PeriodCode: "X1", IsIndicatorEval: true})
	require.Equal(t, []string{
		"xn", "xq", "pjlc", "pjzt_m", "sfzbpj", "sfwjpj", "pjfsbz",
		"qyxjkc", "zysx", "djs", "sfbd", "kgz", "records", "menucode",
	}, payload.Keys())
	v, _ := payload.Get("sfwjpj")
	require.Equal(t, "0", v)
}
