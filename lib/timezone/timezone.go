package timezone

import (
	"time"
	_ "time/tzdata"
)

var Location *time.Location

func init() {
	var err error
	Location, err = time.LoadLocation("Asia/Shanghai")
	if err != nil {
		panic(err)
	}
}

// the campus runs on Beijing time, evaluation windows and the ledger's day
// boundaries must not depend on where the program happens to run.
func Now() time.Time {
	return time.Now().In(Location)
}

// StartOfDay returns midnight (campus time) of the day t falls on.
func StartOfDay(t time.Time) time.Time {
	t = t.In(Location)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, Location)
}
