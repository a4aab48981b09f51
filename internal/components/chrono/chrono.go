package chrono

import (
	"time"
	"zzuli-evaluation/lib/timezone"
)

type API interface {
	Now() time.Time
	Location() *time.Location
}

// StandardImpl reads the system clock in campus time.
type StandardImpl struct{}

func NewStandardImpl() StandardImpl {
	return StandardImpl{}
}

func (s StandardImpl) Now() time.Time {
	return timezone.Now()
}

func (s StandardImpl) Location() *time.Location {
	return timezone.Location
}

// FixedImpl always returns the same instant, for tests.
type FixedImpl struct {
	At time.Time
}

func (f FixedImpl) Now() time.Time {
	return f.At.In(timezone.Location)
}

func (f FixedImpl) Location() *time.Location {
	return timezone.Location
}
