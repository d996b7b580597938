package filters

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatDate(t *testing.T) {
	date, err := time.Parse(DateLayout, "2016-05-25 14:34:00")
	require.NoError(t, err)
	assert.Equal(t, "2016-05-25 14:34:00", FormatDate(date))
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{90061 * time.Second, "1 day, 1:01:01"},
		{0, "0:00:00"},
		{5 * time.Second, "0:00:05"},
		{59*time.Minute + 59*time.Second, "0:59:59"},
		{48 * time.Hour, "2 days, 0:00:00"},
		{1500 * time.Millisecond, "0:00:01.500000"},
		{-time.Second, "-1 day, 23:59:59"},
		{-49 * time.Hour, "-3 days, 23:00:00"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatDuration(tt.in))
		})
	}
}

func TestDateFilter(t *testing.T) {
	date := time.Date(2016, 5, 25, 14, 34, 0, 0, time.UTC)

	got, err := dateFilter(date)
	require.NoError(t, err)
	assert.Equal(t, "2016-05-25 14:34:00", got)

	got, err = dateFilter(&date, "2006/01/02")
	require.NoError(t, err)
	assert.Equal(t, "2016/05/25", got)

	for _, missing := range []any{nil, (*time.Time)(nil), time.Time{}} {
		got, err = dateFilter(missing)
		require.NoError(t, err)
		assert.Equal(t, NotAvailable, got)
	}

	for _, in := range []string{"2016-05-25 14:34:00", "2016-05-25T14:34:00Z"} {
		got, err = dateFilter(in)
		require.NoError(t, err)
		assert.Equal(t, "2016-05-25 14:34:00", got)
	}
	got, err = dateFilter("2016-05-25")
	require.NoError(t, err)
	assert.Equal(t, "2016-05-25 00:00:00", got)

	_, err = dateFilter("yesterday")
	assert.ErrorContains(t, err, "cannot parse")

	_, err = dateFilter(42)
	assert.ErrorContains(t, err, "unsupported value")
}

func TestTimeFilter(t *testing.T) {
	d := 90061 * time.Second
	for _, in := range []any{d, &d, 90061, int64(90061), 90061.0, "25h1m1s"} {
		got, err := timeFilter(in)
		require.NoError(t, err)
		assert.Equal(t, "1 day, 1:01:01", got, "input %T", in)
	}

	got, err := timeFilter(nil)
	require.NoError(t, err)
	assert.Equal(t, NotAvailable, got)

	_, err = timeFilter("soon")
	assert.Error(t, err)

	_, err = timeFilter([]int{1})
	assert.ErrorContains(t, err, "unsupported value")
}
