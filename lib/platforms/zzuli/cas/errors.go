package cas

import (
	"errors"
	"fmt"
)

var (
	ErrCredentialRejected = errors.New("credential rejected")
	ErrTicketUnavailable  = errors.New("ticket unavailable")
	ErrSessionInvalidated = errors.New("session invalidated")
)

type State int

const (
	StateStart State = iota
	StatePortalVerified
	StateTicketObtained
	StateTicketFormSubmitted
	StateTargetEntered
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StatePortalVerified:
		return "portal-verified"
	case StateTicketObtained:
		return "ticket-obtained"
	case StateTicketFormSubmitted:
		return "ticket-form-submitted"
	case StateTargetEntered:
		return "target-entered"
	case StateAuthenticated:
		return "authenticated"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// StepError is returned by Login, Step is the state the failed step would
// have reached.
type StepError struct {
	Step   State
	Reason string
	Err    error
}

func (e *StepError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("cas login: %s: %s", e.Step, e.Reason)
	}
	return fmt.Sprintf("cas login: %s: %s: %s", e.Step, e.Reason, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
