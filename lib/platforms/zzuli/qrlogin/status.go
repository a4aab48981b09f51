package qrlogin

import (
	"fmt"
	"sync"
)

type Status int

const (
	StatusCreated Status = iota
	StatusAwaitingScan
	StatusScanned
	StatusConfirmed
	StatusExpired
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusCreated:
		return "created"
	case StatusAwaitingScan:
		return "awaiting-scan"
	case StatusScanned:
		return "scanned"
	case StatusConfirmed:
		return "confirmed"
	case StatusExpired:
		return "expired"
	case StatusError:
		return "error"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Terminal reports whether no transition can follow the status.
func (s Status) Terminal() bool {
	return s >= StatusConfirmed
}

// tracker holds the status of one login attempt, it only ever moves forward
// and stops at the first terminal status.
type tracker struct {
	mutex    sync.Mutex
	status   Status
	onStatus func(Status)
}

func newTracker(onStatus func(Status)) *tracker {
	t := &tracker{status: StatusCreated, onStatus: onStatus}
	if onStatus != nil {
		onStatus(StatusCreated)
	}
	return t
}

// advance moves to next, it returns false (leaving the status unchanged) when
// next is not ahead of the current status or the current status is terminal.
func (t *tracker) advance(next Status) bool {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.status.Terminal() || next <= t.status {
		return false
	}
	t.status = next
	if t.onStatus != nil {
		t.onStatus(next)
	}
	return true
}

func (t *tracker) current() Status {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.status
}
