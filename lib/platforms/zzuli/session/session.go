package session

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"
	"zzuli-evaluation/internal/assert"
	"zzuli-evaluation/lib/htmlutil"
	"zzuli-evaluation/lib/restyutil"
	"zzuli-evaluation/lib/telemetry"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/net/publicsuffix"
)

var tracer = otel.Tracer("platforms/zzuli/session")

const (
	report_session_redirect = "session.redirect"
	report_session_cookies  = "session.cookies"
)

const (
	UserAgent      = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	Accept         = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	AcceptLanguage = "zh-CN,zh;q=0.9,en;q=0.8"

	FormContentType = "application/x-www-form-urlencoded; charset=UTF-8"

	// DefaultMaxHops bounds the redirects followed by a single Get or Post.
	DefaultMaxHops = 10
)

type Charset = htmlutil.Charset

const (
	CharsetAuto = htmlutil.CharsetAuto
	CharsetUTF8 = htmlutil.CharsetUTF8
	CharsetGBK  = htmlutil.CharsetGBK
)

// Form is anything that can be encoded into an x-www-form-urlencoded body,
// url.Values sorts its keys while other implementations may keep insertion order.
type Form interface {
	Encode() string
}

type Options struct {
	Tel telemetry.API
	// Dump receives every request/response pair when non-nil.
	Dump restyutil.Output
	// Timeout applies to every single request (not to a whole redirect chain),
	// defaults to 30 seconds.
	Timeout time.Duration
}

// Session is the cookie carrying http transport shared by every step of a run.
// it never follows redirects by itself, every hop is issued by Get/Post so the
// intermediate responses (and their cookies) can be observed.
//
// TLS certificate verification is disabled since the campus services sit
// behind an internally issued chain, a Session must not be used against
// anything that requires certificate integrity.
type Session struct {
	http *resty.Client
	jar  *cookiejar.Jar
	tel  telemetry.API

	mutex   sync.Mutex
	visited map[string]*url.URL
}

func New(opts Options) (*Session, error) {
	assert.NotNil(opts.Tel, "session telemetry")

	if opts.Timeout == 0 {
		opts.Timeout = time.Second * 30
	}
	tel := telemetry.NewScopedAPI("session", opts.Tel)

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}

	client := resty.New()
	client.SetCookieJar(jar)
	client.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	client.SetRedirectPolicy(resty.RedirectPolicyFunc(func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}))
	client.SetTimeout(opts.Timeout)
	client.SetHeader("User-Agent", UserAgent)
	client.SetHeader("Accept", Accept)
	client.SetHeader("Accept-Language", AcceptLanguage)

	telemetry.InstrumentResty(client, "platforms/zzuli/http", tel)
	restyutil.InstrumentClient(client, opts.Dump)

	return &Session{
		http:    client,
		jar:     jar,
		tel:     tel,
		visited: map[string]*url.URL{},
	}, nil
}

type Response struct {
	StatusCode int
	Body       string
	// URL is the address of the last request made.
	URL string
	// Hops is the amount of redirects that were followed.
	Hops int
	// Exhausted is set when the hop budget ran out while the server was still
	// redirecting, Body then holds the last redirect response.
	Exhausted bool
}

type request struct {
	follow  bool
	maxHops int
	charset Charset
	headers map[string]string
}

type RequestOption func(r *request)

// WithMaxHops overrides DefaultMaxHops.
func WithMaxHops(n int) RequestOption {
	return func(r *request) { r.maxHops = n }
}

// WithCharset forces the charset used to decode the final body.
func WithCharset(charset Charset) RequestOption {
	return func(r *request) { r.charset = charset }
}

func WithHeader(key, value string) RequestOption {
	return func(r *request) { r.headers[key] = value }
}

// AsXHR marks the request the way the pages' own ajax calls do.
func AsXHR() RequestOption {
	return WithHeader("X-Requested-With", "XMLHttpRequest")
}

func newRequest(follow bool, opts []RequestOption) request {
	r := request{
		follow:  follow,
		maxHops: DefaultMaxHops,
		charset: CharsetAuto,
		headers: map[string]string{},
	}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

// Get issues a GET request, following redirects manually when follow is true.
func (s *Session) Get(ctx context.Context, target string, follow bool, opts ...RequestOption) (Response, error) {
	return s.do(ctx, http.MethodGet, target, nil, newRequest(follow, opts))
}

// Post issues a form POST, when follow is true every hop after the first is a
// GET, like a browser submitting a form.
func (s *Session) Post(ctx context.Context, target string, form Form, follow bool, opts ...RequestOption) (Response, error) {
	var body string
	if form != nil {
		body = form.Encode()
	}
	return s.do(ctx, http.MethodPost, target, &body, newRequest(follow, opts))
}

func (s *Session) do(ctx context.Context, method, target string, body *string, req request) (Response, error) {
	ctx, span := tracer.Start(ctx, "session:"+strings.ToLower(method))
	defer span.End()
	span.SetAttributes(attribute.String("url", target), attribute.Bool("follow", req.follow))

	current := target
	for hop := 0; ; hop++ {
		res, err := s.send(ctx, method, current, body, req.headers)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "request failed")
			return Response{URL: current, Hops: hop}, fmt.Errorf("%s %s: %w", method, current, err)
		}

		location := res.Header().Get("Location")
		redirected := isRedirect(res.StatusCode()) && location != ""
		if !req.follow || !redirected || hop >= req.maxHops {
			exhausted := req.follow && redirected
			if exhausted {
				s.tel.ReportWarning(report_session_redirect, "hop budget exhausted", target, req.maxHops)
			}
			span.SetAttributes(attribute.Int("hops", hop), attribute.Int("status", res.StatusCode()))
			return Response{
				StatusCode: res.StatusCode(),
				Body:       htmlutil.DecodeBody(res.Body(), res.Header().Get("Content-Type"), req.charset),
				URL:        current,
				Hops:       hop,
				Exhausted:  exhausted,
			}, nil
		}

		next, err := ResolveLocation(current, location)
		if err != nil {
			span.SetStatus(codes.Error, "unresolvable redirect")
			return Response{URL: current, Hops: hop}, err
		}
		s.tel.ReportDebug(report_session_redirect, res.StatusCode(), current, next)

		current = next
		method = http.MethodGet
		body = nil
	}
}

func (s *Session) send(ctx context.Context, method, target string, body *string, headers map[string]string) (*resty.Response, error) {
	parsed, err := url.Parse(target)
	if err != nil {
		return nil, err
	}
	s.visit(parsed)

	r := s.http.R().
		SetContext(ctx).
		SetHeaders(headers)
	if body != nil {
		r.SetHeader("Content-Type", FormContentType)
		r.SetBody(*body)
	}
	return r.Execute(method, target)
}

func isRedirect(status int) bool {
	return status >= 300 && status < 400
}

func (s *Session) visit(u *url.URL) {
	key := u.Scheme + "://" + u.Host + u.Path
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if _, ok := s.visited[key]; ok {
		return
	}
	s.visited[key] = &url.URL{Scheme: u.Scheme, Host: u.Host, Path: u.Path}
}

// Cookies returns the cookies the session would send to the given url.
func (s *Session) Cookies(target string) []*http.Cookie {
	u, err := url.Parse(target)
	if err != nil {
		return nil
	}
	return s.jar.Cookies(u)
}

// CookieCount returns the number of distinct cookies held for every url the
// session has contacted, cookies are distinguished by host and name.
func (s *Session) CookieCount() int {
	s.mutex.Lock()
	urls := make([]*url.URL, 0, len(s.visited))
	for _, u := range s.visited {
		urls = append(urls, u)
	}
	s.mutex.Unlock()

	seen := map[string]struct{}{}
	for _, u := range urls {
		for _, c := range s.jar.Cookies(u) {
			seen[u.Hostname()+"\x00"+c.Name] = struct{}{}
		}
	}
	s.tel.ReportCount(report_session_cookies, int64(len(seen)))
	return len(seen)
}

// HasCookies reports whether the session holds any cookie at all.
func (s *Session) HasCookies() bool {
	return s.CookieCount() > 0
}
