package qrlogin

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"
	"zzuli-evaluation/lib/platforms/zzuli/cas"
	"zzuli-evaluation/lib/platforms/zzuli/session"
	"zzuli-evaluation/lib/platforms/zzuli/zzulitest"
	"zzuli-evaluation/lib/telemetry"

	"github.com/stretchr/testify/require"
)

type statusLog struct {
	mutex    sync.Mutex
	statuses []Status
}

func (l *statusLog) observe(s Status) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.statuses = append(l.statuses, s)
}

func (l *statusLog) all() []Status {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return append([]Status(nil), l.statuses...)
}

// requireMonotonic checks the observed statuses only move forward and end in
// exactly one terminal status.
func requireMonotonic(t *testing.T, statuses []Status, terminal Status) {
	t.Helper()
	require.NotEmpty(t, statuses)
	for i := 1; i < len(statuses); i++ {
		require.Greater(t, statuses[i], statuses[i-1], "went backwards: %v", statuses)
	}
	terminals := 0
	for _, s := range statuses {
		if s.Terminal() {
			terminals++
		}
	}
	require.Equal(t, 1, terminals, "%v", statuses)
	require.Equal(t, terminal, statuses[len(statuses)-1])
}

func setup(t *testing.T, timeout time.Duration) (*zzulitest.Campus, *Client, *statusLog) {
	t.Helper()
	campus := zzulitest.New(t)
	rec := &telemetry.Recorder{}
	s, err := session.New(session.Options{Tel: rec})
	require.NoError(t, err)

	log := &statusLog{}
	client := NewClient(s, campus.Endpoints(), rec, Options{
		Timeout:  timeout,
		OnStatus: log.observe,
	})
	return campus, client, log
}

func waitClosed(t *testing.T, campus *zzulitest.Campus) {
	t.Helper()
	select {
	case <-campus.QRClosed():
	case <-time.After(10 * time.Second):
		t.Fatal("signaling socket was never closed")
	}
}

func TestNewSession(t *testing.T) {
	campus, client, _ := setup(t, time.Second)

	uuid, err := client.NewSession(context.Background())
	require.NoError(t, err)
	require.Equal(t, zzulitest.UUID, uuid)
	require.Equal(t, []string{"POST /portal-pc/qrlogin/getUserUUID"}, campus.Paths())
}

func TestExtractUUID(t *testing.T) {
	uuid, ok := extractUUID(`{"success":true, "obj" : "abc-123"}`)
	require.True(t, ok)
	require.Equal(t, "abc-123", uuid)

	_, ok = extractUUID(`{"success":false,"obj":null}`)
	require.False(t, ok)
	_, ok = extractUUID(`{"obj":" "}`)
	require.False(t, ok)
}

func TestAwaitConfirmed(t *testing.T) {
	campus, client, log := setup(t, 10*time.Second)
	campus.QRFrames = []zzulitest.QRFrame{
		{Delay: 20 * time.Millisecond, Message: `not json`},
		{Delay: 20 * time.Millisecond, Message: `{"type":1,"content":{}}`},
		{Delay: 20 * time.Millisecond, Message: `{"type":"2","content":{"username":"542207000000","password":"{gilight}_cXJ0b2tlbg=="}}`},
		{Delay: 20 * time.Millisecond, Message: `{"type":1,"content":{}}`},
	}

	result, err := client.Await(context.Background(), zzulitest.UUID)
	require.NoError(t, err)
	require.Equal(t, StatusConfirmed, result.Status)
	require.Equal(t, zzulitest.UUID, result.UUID)
	require.Equal(t, cas.EncodedCredential(zzulitest.Username, zzulitest.QRToken), result.Credential)
	require.Equal(t, []string{OpeningMessage}, campus.QROpening())

	waitClosed(t, campus)
	require.Equal(t, []Status{
		StatusCreated,
		StatusAwaitingScan,
		StatusScanned,
		StatusConfirmed,
	}, log.all())
}

func TestAwaitConfirmedStringContent(t *testing.T) {
	campus, client, log := setup(t, 10*time.Second)
	campus.QRFrames = []zzulitest.QRFrame{
		{Message: `{"type":2,"content":"{\"username\":\"542207000000\",\"password\":\"{gilight}_eA==\"}"}`},
	}

	result, err := client.Await(context.Background(), zzulitest.UUID)
	require.NoError(t, err)
	require.Equal(t, "{gilight}_eA==", result.Credential.Encoded)
	requireMonotonic(t, log.all(), StatusConfirmed)
}

func TestAwaitTimeout(t *testing.T) {
	campus, client, log := setup(t, 300*time.Millisecond)
	campus.QRFrames = []zzulitest.QRFrame{
		{Message: `{"type":1,"content":{}}`},
	}

	start := time.Now()
	result, err := client.Await(context.Background(), zzulitest.UUID)
	require.ErrorIs(t, err, ErrExpired)
	require.Equal(t, StatusExpired, result.Status)
	require.Less(t, time.Since(start), 5*time.Second)

	waitClosed(t, campus)
	requireMonotonic(t, log.all(), StatusExpired)
}

func TestAwaitServerClose(t *testing.T) {
	campus, client, log := setup(t, 10*time.Second)
	campus.QRClose = true

	result, err := client.Await(context.Background(), zzulitest.UUID)
	require.ErrorIs(t, err, ErrExpired)
	require.Equal(t, StatusExpired, result.Status)

	waitClosed(t, campus)
	requireMonotonic(t, log.all(), StatusExpired)
}

func TestAwaitCancelled(t *testing.T) {
	campus, client, log := setup(t, 10*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(200*time.Millisecond, cancel)

	result, err := client.Await(ctx, zzulitest.UUID)
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, errors.Is(err, ErrExpired))
	require.Equal(t, StatusError, result.Status)

	waitClosed(t, campus)
	requireMonotonic(t, log.all(), StatusError)
}

func TestAwaitEmptyConfirmation(t *testing.T) {
	campus, client, log := setup(t, 10*time.Second)
	campus.QRFrames = []zzulitest.QRFrame{
		{Message: `{"type":2,"content":{}}`},
		{Message: `{"type":2,"content":{"username":"542207000000","password":""}}`},
		{Delay: 100 * time.Millisecond, Message: `{"type":2,"content":{"username":"542207000000","password":"{gilight}_cXJ0b2tlbg=="}}`},
	}

	result, err := client.Await(context.Background(), zzulitest.UUID)
	require.NoError(t, err)
	require.Equal(t, StatusConfirmed, result.Status)
	require.Equal(t, cas.EncodedCredential(zzulitest.Username, zzulitest.QRToken), result.Credential)

	waitClosed(t, campus)
	require.Equal(t, []Status{
		StatusCreated,
		StatusAwaitingScan,
		StatusConfirmed,
	}, log.all())
}

func TestAwaitEmptyConfirmationExpires(t *testing.T) {
	campus, client, log := setup(t, 300*time.Millisecond)
	campus.QRFrames = []zzulitest.QRFrame{
		{Message: `{"type":1,"content":{}}`},
		{Message: `{"type":2,"content":{"username":"","password":""}}`},
	}

	result, err := client.Await(context.Background(), zzulitest.UUID)
	require.ErrorIs(t, err, ErrExpired)
	require.Equal(t, StatusExpired, result.Status)
	require.Empty(t, result.Credential.Encoded)

	waitClosed(t, campus)
	requireMonotonic(t, log.all(), StatusExpired)
	require.Contains(t, log.all(), StatusScanned)
}

func TestAwaitDialError(t *testing.T) {
	_, client, log := setup(t, 10*time.Second)

	result, err := client.Await(context.Background(), "unknown-uuid")
	require.Error(t, err)
	require.Equal(t, StatusError, result.Status)
	requireMonotonic(t, log.all(), StatusError)
}

func TestTrackerMonotonic(t *testing.T) {
	log := &statusLog{}
	tr := newTracker(log.observe)

	require.True(t, tr.advance(StatusScanned))
	require.False(t, tr.advance(StatusAwaitingScan))
	require.True(t, tr.advance(StatusConfirmed))
	require.False(t, tr.advance(StatusExpired))
	require.False(t, tr.advance(StatusError))
	require.Equal(t, StatusConfirmed, tr.current())

	requireMonotonic(t, log.all(), StatusConfirmed)
}

func TestScanURL(t *testing.T) {
	scan := ScanURL("abc")
	require.Equal(
		t,
		"https://iapp.zzuli.edu.cn/portal/login/appLogin?tourl=https://iapp.zzuli.edu.cn/portal/portal-app/authorize.html?uuid=abc",
		scan,
	)

	image, err := url.Parse(QRImageURL("abc"))
	require.NoError(t, err)
	require.Equal(t, "api.qrserver.com", image.Host)
	require.Equal(t, scan, image.Query().Get("data"))
}
