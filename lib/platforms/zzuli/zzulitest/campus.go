// Package zzulitest runs a fake of the campus portal, CAS, QR signaling
// socket and academic affairs system on a single httptest server.
package zzulitest

import (
	"context"
	_ "embed"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"
	"zzuli-evaluation/lib/platforms/zzuli"

	"nhooyr.io/websocket"
)

//go:embed fixtures/period.html
var PeriodHTML string

//go:embed fixtures/listing.html
var ListingHTML string

//go:embed fixtures/detail.html
var DetailHTML string

const (
	Username = "542207000000"
	Password = "correct horse"
	QRToken  = "{gilight}_cXJ0b2tlbg=="
	UUID     = "6f1c9f9e-7d7a-4b57-9e55-1f2d3c4b5a69"
)

type Hit struct {
	// At is when the request arrived.
	At     time.Time
	Method string
	Path   string
	Query  url.Values
	Form   url.Values
}

// QRFrame is a message the signaling socket sends after Delay.
type QRFrame struct {
	Delay   time.Duration
	Message string
}

// Campus is a scriptable fake, every exported field may be changed before
// the first request is made.
type Campus struct {
	Server *httptest.Server

	// PortalSuccess is the body answered to an accepted credential.
	PortalSuccess string
	// PortalFailure is the body answered to a rejected credential.
	PortalFailure string
	// TicketBody overrides the jsonp answer of the getlt request.
	TicketBody string
	// TicketFormStatus is the status of the last hop of the ticket form chain.
	TicketFormStatus int
	// Invalidate makes every downstream page ask the user to log in again.
	Invalidate bool
	// SkipCookies makes the fake never set a cookie.
	SkipCookies bool

	PeriodHTML  string
	ListingHTML string
	DetailHTML  string
	// SaveResponse is answered by the save endpoint, SaveResponses (when not
	// empty) is consumed first, one body per call.
	SaveResponse  string
	SaveResponses []string
	// SaveDelay holds every answer of the save endpoint back.
	SaveDelay time.Duration

	QRFrames []QRFrame
	// QRClose closes the socket once every frame is sent, otherwise the socket
	// stays open until the client leaves.
	QRClose bool

	mutex     sync.Mutex
	hits      []Hit
	qrOpening []string
	qrClosed  chan struct{}
}

func New(t testing.TB) *Campus {
	c := &Campus{
		PortalSuccess:    `{"success":true,"code":"0","msg":"登录成功"}`,
		PortalFailure:    `{"success":false,"code":"1","msg":"账号或密码错误"}`,
		TicketBody:       `jsonpCallback({"lt":"LT-1-campus","execution":"e1s1"})`,
		TicketFormStatus: http.StatusOK,
		PeriodHTML:       PeriodHTML,
		ListingHTML:      ListingHTML,
		DetailHTML:       DetailHTML,
		SaveResponse:     `{"status":"200","msg":"保存成功"}`,
		qrClosed:         make(chan struct{}, 1),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /portal-pc/login/authentication", c.authentication)
	mux.HandleFunc("GET /portal-pc/login/pcLogin", c.pcLogin)
	mux.HandleFunc("GET /portal-pc/index.html", c.plain("portal home"))
	mux.HandleFunc("POST /portal-pc/qrlogin/getUserUUID", c.userUUID)
	mux.HandleFunc("GET /portal-pc/websocket/{uuid}", c.websocket)
	mux.HandleFunc("GET /cas/login", c.getlt)
	mux.HandleFunc("POST /cas/login", c.casLogin)
	mux.HandleFunc("GET /caslogin", c.casEntry)
	mux.HandleFunc("GET /jw/common/showYearTerm.action", c.downstream(func() string { return "<html>教学管理</html>" }))
	mux.HandleFunc("GET /{$}", c.downstream(func() string { return "<html>欢迎使用教务系统</html>" }))
	mux.HandleFunc("POST /jw/wspjZbpjWjdc/getPjlcInfo.action", c.downstream(func() string { return c.PeriodHTML }))
	mux.HandleFunc("POST /taglib/DataTable.jsp", c.downstream(func() string { return c.ListingHTML }))
	mux.HandleFunc("GET /student/wspj_tjzbpj_wjdcb_pj.jsp", c.downstream(func() string { return c.DetailHTML }))
	mux.HandleFunc("POST /jw/wspjZbpjWjdc/save.action", c.save)

	c.Server = httptest.NewServer(c.record(mux))
	t.Cleanup(c.Server.Close)
	return c
}

func (c *Campus) Endpoints() zzuli.Endpoints {
	return zzuli.Endpoints{
		Portal:   c.Server.URL + "/portal-pc",
		CAS:      c.Server.URL + "/cas",
		JWGL:     c.Server.URL,
		Service:  c.Server.URL + "/portal-pc/login/pcLogin",
		QRSocket: "ws" + strings.TrimPrefix(c.Server.URL, "http") + "/portal-pc/websocket/",
	}
}

// Hits returns every request received so far in order.
func (c *Campus) Hits() []Hit {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return append([]Hit(nil), c.hits...)
}

// Paths returns "METHOD /path" for every request received so far.
func (c *Campus) Paths() []string {
	paths := []string{}
	for _, h := range c.Hits() {
		paths = append(paths, h.Method+" "+h.Path)
	}
	return paths
}

// HitsTo returns the requests made to a path.
func (c *Campus) HitsTo(path string) []Hit {
	out := []Hit{}
	for _, h := range c.Hits() {
		if h.Path == path {
			out = append(out, h)
		}
	}
	return out
}

// QROpening returns the messages the socket received from clients.
func (c *Campus) QROpening() []string {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return append([]string(nil), c.qrOpening...)
}

// QRClosed is signaled once a signaling socket handler has returned.
func (c *Campus) QRClosed() <-chan struct{} {
	return c.qrClosed
}

func (c *Campus) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := Hit{At: time.Now(), Method: r.Method, Path: r.URL.Path, Query: r.URL.Query()}
		if r.Method == http.MethodPost {
			body, _ := io.ReadAll(r.Body)
			h.Form, _ = url.ParseQuery(string(body))
			r.Body = io.NopCloser(strings.NewReader(string(body)))
		}
		c.mutex.Lock()
		c.hits = append(c.hits, h)
		c.mutex.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (c *Campus) setCookie(w http.ResponseWriter, name, value, path string) {
	if c.SkipCookies {
		return
	}
	http.SetCookie(w, &http.Cookie{Name: name, Value: value, Path: path, HttpOnly: true})
}

func (c *Campus) plain(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=UTF-8")
		_, _ = io.WriteString(w, body)
	}
}

func encoded(password string) string {
	return "{gilight}_" + base64.StdEncoding.EncodeToString([]byte(password))
}

func (c *Campus) authentication(w http.ResponseWriter, r *http.Request) {
	username := r.PostFormValue("username")
	password := r.PostFormValue("password")

	w.Header().Set("Content-Type", "application/json;charset=UTF-8")
	accepted := username == Username && (password == encoded(Password) || password == QRToken)
	if !accepted {
		_, _ = io.WriteString(w, c.PortalFailure)
		return
	}
	c.setCookie(w, "PORTAL_SESSION", "portal-1", "/portal-pc")
	_, _ = io.WriteString(w, c.PortalSuccess)
}

func (c *Campus) getlt(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("action") != "getlt" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/javascript")
	_, _ = io.WriteString(w, c.TicketBody)
}

func (c *Campus) casLogin(w http.ResponseWriter, r *http.Request) {
	service := r.URL.Query().Get("service")
	if r.PostFormValue("lt") == "" || r.PostFormValue("execution") == "" || service == "" {
		http.Error(w, "bad ticket form", http.StatusBadRequest)
		return
	}
	c.setCookie(w, "CASTGC", "TGT-1", "/cas")
	http.Redirect(w, r, service+"?ticket=ST-1-campus", http.StatusFound)
}

func (c *Campus) pcLogin(w http.ResponseWriter, r *http.Request) {
	if c.TicketFormStatus >= http.StatusBadRequest {
		http.Error(w, "ticket rejected", c.TicketFormStatus)
		return
	}
	w.Header().Set("Location", "../index.html")
	w.WriteHeader(http.StatusFound)
}

func (c *Campus) casEntry(w http.ResponseWriter, r *http.Request) {
	if c.Invalidate {
		c.plain("<script>alert('凭证已失效，请重新登录');</script>")(w, r)
		return
	}
	c.setCookie(w, "JSESSIONID", "jwgl-1", "/")
	http.Redirect(w, r, "/jw/common/showYearTerm.action", http.StatusFound)
}

func (c *Campus) downstream(body func() string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, err := r.Cookie("JSESSIONID")
		if c.Invalidate || (err != nil && !c.SkipCookies) {
			c.plain("<html>会话已过期，请重新登录</html>")(w, r)
			return
		}
		c.plain(body())(w, r)
	}
}

func (c *Campus) save(w http.ResponseWriter, r *http.Request) {
	if _, err := r.Cookie("JSESSIONID"); err != nil && !c.SkipCookies {
		c.plain("<html>请重新登录</html>")(w, r)
		return
	}

	c.mutex.Lock()
	body := c.SaveResponse
	if len(c.SaveResponses) > 0 {
		body = c.SaveResponses[0]
		c.SaveResponses = c.SaveResponses[1:]
	}
	c.mutex.Unlock()

	select {
	case <-time.After(c.SaveDelay):
	case <-r.Context().Done():
		return
	}
	w.Header().Set("Content-Type", "text/plain;charset=UTF-8")
	_, _ = io.WriteString(w, body)
}

func (c *Campus) userUUID(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json;charset=UTF-8")
	_, _ = fmt.Fprintf(w, `{"success":true,"obj":"%s"}`, UUID)
}

func (c *Campus) websocket(w http.ResponseWriter, r *http.Request) {
	defer func() {
		select {
		case c.qrClosed <- struct{}{}:
		default:
		}
	}()

	if r.PathValue("uuid") != UUID {
		http.NotFound(w, r)
		return
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusInternalError, "handler returned")

	ctx := r.Context()
	_, opening, err := conn.Read(ctx)
	if err != nil {
		return
	}
	c.mutex.Lock()
	c.qrOpening = append(c.qrOpening, string(opening))
	c.mutex.Unlock()

	if c.QRClose {
		c.sendFrames(ctx, conn, nil)
		_ = conn.Close(websocket.StatusNormalClosure, "expired")
		return
	}

	// reading in the background notices the client leaving while frames are
	// still being sent or while idling.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			_, _, err := conn.Read(context.Background())
			if err != nil {
				return
			}
		}
	}()
	c.sendFrames(ctx, conn, gone)
	<-gone
}

func (c *Campus) sendFrames(ctx context.Context, conn *websocket.Conn, gone <-chan struct{}) {
	for _, frame := range c.QRFrames {
		select {
		case <-time.After(frame.Delay):
		case <-gone:
			return
		}
		err := conn.Write(ctx, websocket.MessageText, []byte(frame.Message))
		if err != nil {
			return
		}
	}
}
