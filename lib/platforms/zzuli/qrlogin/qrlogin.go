package qrlogin

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
	"zzuli-evaluation/internal/assert"
	"zzuli-evaluation/lib/platforms/zzuli"
	"zzuli-evaluation/lib/platforms/zzuli/cas"
	"zzuli-evaluation/lib/platforms/zzuli/session"
	"zzuli-evaluation/lib/telemetry"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"nhooyr.io/websocket"
)

var tracer = otel.Tracer("platforms/zzuli/qrlogin")

const (
	report_client_new_session = "client.new-session"
	report_client_await       = "client.await"
)

const (
	// OpeningMessage is sent as soon as the signaling socket is open.
	OpeningMessage = "发送数据"
	DefaultTimeout = 120 * time.Second

	scanBase  = "https://iapp.zzuli.edu.cn/portal"
	qrService = "https://api.qrserver.com/v1/create-qr-code/?size=200x200&data="

	maxMessageSize = 64 << 10
)

var (
	ErrNoUUID  = errors.New("portal returned no qr session id")
	ErrExpired = errors.New("qr login expired")
)

// ScanURL is the address the campus app has to open to authorize the session.
func ScanURL(uuid string) string {
	return fmt.Sprintf(
		"%s/login/appLogin?tourl=%s/portal-app/authorize.html?uuid=%s",
		scanBase, scanBase, uuid,
	)
}

// QRImageURL links to a rendered QR code of ScanURL.
func QRImageURL(uuid string) string {
	return qrService + url.QueryEscape(ScanURL(uuid))
}

type Result struct {
	UUID   string
	Status Status
	// Credential is only set when Status is StatusConfirmed.
	Credential cas.Credential
}

type Options struct {
	// Timeout bounds Await, defaults to DefaultTimeout.
	Timeout time.Duration
	// OnStatus observes every status transition, it may be called from the
	// goroutine receiving messages.
	OnStatus func(Status)
}

type Client struct {
	session   *session.Session
	endpoints zzuli.Endpoints
	tel       telemetry.API
	timeout   time.Duration
	onStatus  func(Status)
	dialer    *http.Client
}

func NewClient(s *session.Session, endpoints zzuli.Endpoints, tel telemetry.API, opts Options) *Client {
	assert.NotNil(s, "session")
	assert.NotNil(tel, "qrlogin telemetry")

	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Client{
		session:   s,
		endpoints: endpoints,
		tel:       telemetry.NewScopedAPI("qrlogin", tel),
		timeout:   opts.Timeout,
		onStatus:  opts.OnStatus,
		// the websocket library refuses http clients with a timeout, the
		// deadline comes from the context instead.
		dialer: &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		},
	}
}

var uuidRegex = regexp.MustCompile(`"obj"\s*:\s*"([^"]+)"`)

func extractUUID(body string) (string, bool) {
	match := uuidRegex.FindStringSubmatch(body)
	if len(match) < 2 || strings.TrimSpace(match[1]) == "" {
		return "", false
	}
	return match[1], true
}

// NewSession asks the portal for the one-time id of a new QR login.
func (c *Client) NewSession(ctx context.Context) (string, error) {
	ctx, span := tracer.Start(ctx, "client:NewSession")
	defer span.End()

	res, err := c.session.Post(
		ctx,
		c.endpoints.Portal+"/qrlogin/getUserUUID",
		url.Values{},
		false,
		session.AsXHR(),
	)
	if err != nil {
		span.SetStatus(codes.Error, "request failed")
		c.tel.ReportBroken(report_client_new_session, err)
		return "", fmt.Errorf("qr login: %w", err)
	}
	uuid, ok := extractUUID(res.Body)
	if !ok {
		span.SetStatus(codes.Error, "missing uuid")
		c.tel.ReportBroken(report_client_new_session, ErrNoUUID, res.StatusCode)
		return "", fmt.Errorf("qr login: %w", ErrNoUUID)
	}
	span.SetAttributes(attribute.String("uuid", uuid))
	return uuid, nil
}

type messageType int

// the type field shows up both as a number and as a string.
func (t *messageType) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(data), `"`)
	n, err := strconv.Atoi(raw)
	if err != nil {
		return err
	}
	*t = messageType(n)
	return nil
}

type confirmation struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type message struct {
	Type    messageType     `json:"type"`
	Content json.RawMessage `json:"content"`
}

const (
	messageScanned   messageType = 1
	messageConfirmed messageType = 2
)

// content is sometimes an object and sometimes an object encoded as a string.
func (m message) confirmation() (confirmation, error) {
	var out confirmation
	content := m.Content
	if len(content) > 0 && content[0] == '"' {
		var inner string
		err := json.Unmarshal(content, &inner)
		if err != nil {
			return out, err
		}
		content = json.RawMessage(inner)
	}
	err := json.Unmarshal(content, &out)
	return out, err
}

type outcome struct {
	status Status
	cred   cas.Credential
	err    error
}

// Await opens the signaling socket of the session and blocks until the login
// is confirmed, expires or fails. the socket is always closed on return.
//
// the returned error is nil only for StatusConfirmed, ErrExpired for
// StatusExpired and the cause of the failure for StatusError (including the
// caller's context being cancelled).
func (c *Client) Await(ctx context.Context, uuid string) (Result, error) {
	ctx, span := tracer.Start(ctx, "client:Await")
	defer span.End()
	span.SetAttributes(attribute.String("uuid", uuid))

	t := newTracker(c.onStatus)
	finish := func(out outcome) (Result, error) {
		t.advance(out.status)
		span.SetAttributes(attribute.String("status", out.status.String()))
		result := Result{UUID: uuid, Status: out.status}
		switch out.status {
		case StatusConfirmed:
			result.Credential = out.cred
			return result, nil
		case StatusExpired:
			c.tel.ReportWarning(report_client_await, "expired", uuid, out.err)
			return result, ErrExpired
		default:
			span.SetStatus(codes.Error, "qr login failed")
			c.tel.ReportBroken(report_client_await, out.err, uuid)
			return result, fmt.Errorf("qr login: %w", out.err)
		}
	}

	waitCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	// resolves a wait that ended because of the context.
	contextOutcome := func() outcome {
		if ctx.Err() != nil {
			return outcome{status: StatusError, err: ctx.Err()}
		}
		return outcome{status: StatusExpired, err: waitCtx.Err()}
	}

	conn, _, err := websocket.Dial(waitCtx, c.endpoints.QRSocket+uuid, &websocket.DialOptions{
		HTTPClient: c.dialer,
		HTTPHeader: http.Header{
			"Origin":     {origin(c.endpoints.Portal)},
			"User-Agent": {session.UserAgent},
		},
	})
	if err != nil {
		if waitCtx.Err() != nil {
			return finish(contextOutcome())
		}
		return finish(outcome{status: StatusError, err: fmt.Errorf("dial signaling socket: %w", err)})
	}
	defer conn.Close(websocket.StatusNormalClosure, "")
	conn.SetReadLimit(maxMessageSize)

	err = conn.Write(waitCtx, websocket.MessageText, []byte(OpeningMessage))
	if err != nil {
		if waitCtx.Err() != nil {
			return finish(contextOutcome())
		}
		return finish(outcome{status: StatusError, err: fmt.Errorf("send opening message: %w", err)})
	}
	t.advance(StatusAwaitingScan)

	results := make(chan outcome, 1)
	go c.receive(waitCtx, conn, t, results)

	select {
	case out := <-results:
		return finish(out)
	case <-waitCtx.Done():
		return finish(contextOutcome())
	}
}

// receive reads messages until one of them resolves the login, the first
// outcome is delivered on results (which must have a buffer of 1).
func (c *Client) receive(ctx context.Context, conn *websocket.Conn, t *tracker, results chan<- outcome) {
	deliver := func(out outcome) {
		select {
		case results <- out:
		default:
		}
	}

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if websocket.CloseStatus(err) != -1 {
				deliver(outcome{status: StatusExpired, err: err})
				return
			}
			deliver(outcome{status: StatusError, err: fmt.Errorf("read signaling socket: %w", err)})
			return
		}

		var msg message
		err = json.Unmarshal(data, &msg)
		if err != nil {
			c.tel.ReportDebug("ignoring unparsable qr message", string(data))
			continue
		}

		switch msg.Type {
		case messageScanned:
			t.advance(StatusScanned)
		case messageConfirmed:
			// a confirmation without a credential is not the end of the login,
			// a usable one may still follow before the deadline.
			conf, err := msg.confirmation()
			if err != nil || conf.Username == "" || conf.Password == "" {
				c.tel.ReportWarning(report_client_await, "confirmation carries no credential", string(data))
				continue
			}
			deliver(outcome{
				status: StatusConfirmed,
				cred:   cas.EncodedCredential(conf.Username, conf.Password),
			})
			return
		default:
			c.tel.ReportDebug("ignoring qr message", int(msg.Type))
		}
	}
}

func origin(base string) string {
	u, err := url.Parse(base)
	if err != nil || u.Host == "" {
		return base
	}
	return u.Scheme + "://" + u.Host
}
