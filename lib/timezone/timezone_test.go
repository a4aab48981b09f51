package timezone

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStartOfDay(t *testing.T) {
	cases := []struct {
		now    time.Time
		expect time.Time
	}{
		{
			now:    time.Date(2025, time.December, 1, 15, 30, 0, 0, Location),
			expect: time.Date(2025, time.December, 1, 0, 0, 0, 0, Location),
		},
		{
			// 17:00 UTC is already the next day in Beijing.
			now:    time.Date(2025, time.December, 1, 17, 0, 0, 0, time.UTC),
			expect: time.Date(2025, time.December, 2, 0, 0, 0, 0, Location),
		},
		{
			now:    time.Date(2025, time.December, 31, 0, 0, 0, 0, Location),
			expect: time.Date(2025, time.December, 31, 0, 0, 0, 0, Location),
		},
	}

	for _, test := range cases {
		require.True(t, test.expect.Equal(StartOfDay(test.now)), "%v", test.now)
	}
}

func TestNow(t *testing.T) {
	require.Equal(t, Location, Now().Location())
	_, offset := Now().Zone()
	require.Equal(t, 8*60*60, offset)
}
