package filters

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the default layout used by datefmt.
const DateLayout = "2006-01-02 15:04:05"

// NotAvailable is rendered for missing timestamps and durations.
const NotAvailable = "n/a"

// FormatDate renders t as YYYY-MM-DD HH:MM:SS.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// FormatDuration renders d the way a Python timedelta prints:
// "[-]N day[s], H:MM:SS[.ffffff]". Days absorb the sign so the clock part is
// never negative.
func FormatDuration(d time.Duration) string {
	const day = 24 * time.Hour

	days := d / day
	rem := d % day
	if rem < 0 {
		days--
		rem += day
	}

	h := rem / time.Hour
	rem -= h * time.Hour
	m := rem / time.Minute
	rem -= m * time.Minute
	s := rem / time.Second
	rem -= s * time.Second
	us := rem / time.Microsecond

	var b strings.Builder
	if days != 0 {
		unit := "day"
		if days != 1 && days != -1 {
			unit = "days"
		}
		fmt.Fprintf(&b, "%d %s, ", days, unit)
	}
	fmt.Fprintf(&b, "%d:%02d:%02d", h, m, s)
	if us != 0 {
		fmt.Fprintf(&b, ".%06d", us)
	}
	return b.String()
}

// inputLayouts are tried in order when datefmt receives a string.
var inputLayouts = []string{time.RFC3339Nano, DateLayout, "2006-01-02"}

func parseDate(s string) (time.Time, error) {
	for _, layout := range inputLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("datefmt: cannot parse %q as a timestamp", s)
}

// dateFilter backs the datefmt template filter. An optional layout argument
// replaces DateLayout.
func dateFilter(v any, layout ...string) (string, error) {
	var t time.Time
	switch x := v.(type) {
	case nil:
		return NotAvailable, nil
	case time.Time:
		t = x
	case *time.Time:
		if x == nil {
			return NotAvailable, nil
		}
		t = *x
	case string:
		var err error
		if t, err = parseDate(x); err != nil {
			return "", err
		}
	default:
		return "", fmt.Errorf("datefmt: unsupported value of type %T", v)
	}
	if t.IsZero() {
		return NotAvailable, nil
	}
	if len(layout) > 0 && layout[0] != "" {
		return t.Format(layout[0]), nil
	}
	return FormatDate(t), nil
}

// timeFilter backs the timefmt template filter. Bare numbers are seconds and
// strings use time.ParseDuration syntax.
func timeFilter(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return NotAvailable, nil
	case time.Duration:
		return FormatDuration(x), nil
	case *time.Duration:
		if x == nil {
			return NotAvailable, nil
		}
		return FormatDuration(*x), nil
	case int:
		return FormatDuration(time.Duration(x) * time.Second), nil
	case int64:
		return FormatDuration(time.Duration(x) * time.Second), nil
	case float64:
		return FormatDuration(time.Duration(x * float64(time.Second))), nil
	case string:
		d, err := time.ParseDuration(x)
		if err != nil {
			return "", fmt.Errorf("timefmt: %w", err)
		}
		return FormatDuration(d), nil
	default:
		return "", fmt.Errorf("timefmt: unsupported value of type %T", v)
	}
}
